package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run against a fresh store.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backend is "memory" (default) or "workbook".
	Backend string `yaml:"backend,omitempty"`

	// Resource names the logbook. Defaults to "scenario".
	Resource string `yaml:"resource,omitempty"`

	// Setup steps establish initial rows and must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps are the operations under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final worksheets and journal.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one store operation.
type Step struct {
	// Op is append, update, delete, replace or reconcile.
	Op        string `yaml:"op"`
	Worksheet string `yaml:"worksheet"`

	// Index addresses the row for update and delete.
	Index int `yaml:"index,omitempty"`

	// Fields is the record text for append and update.
	Fields map[string]string `yaml:"fields,omitempty"`

	// Header and Records are the new content for replace. An empty header
	// means the declared one.
	Header  []string            `yaml:"header,omitempty"`
	Records []map[string]string `yaml:"records,omitempty"`

	// Last, Mode, Delete and Set describe a reconcile: the last rows are
	// snapshotted, the listed indices dropped and the Set edits applied.
	// Zero Last means the whole worksheet.
	Last   int    `yaml:"last,omitempty"`
	Mode   string `yaml:"mode,omitempty"`
	Delete []int  `yaml:"delete,omitempty"`
	Set    []Edit `yaml:"set,omitempty"`

	// Expect checks the outcome. Nil means the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Edit overrides fields of one snapshot row.
type Edit struct {
	Index  int               `yaml:"index"`
	Fields map[string]string `yaml:"fields"`
}

// Expect is the expected outcome of a flow step.
type Expect struct {
	// Outcome is "ok" or an error category such as NOT_FOUND or
	// UNKNOWN_INDEX. Empty means "ok".
	Outcome string `yaml:"outcome,omitempty"`

	// Deleted, Updated and NoChanges check a reconcile result.
	Deleted   []int `yaml:"deleted,omitempty"`
	Updated   []int `yaml:"updated,omitempty"`
	NoChanges bool  `yaml:"no_changes,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	Type      string `yaml:"type"`
	Worksheet string `yaml:"worksheet,omitempty"`

	// Rows are the expected data rows (sheet_rows).
	Rows [][]string `yaml:"rows,omitempty"`

	// Count is the expected row or entry count (row_count, journal_count).
	Count int `yaml:"count,omitempty"`

	// Kind is the journal kind counted by journal_count.
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the expected journal order (journal_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Totals maps YYYY-MM-DD to the expected feeding sum (feeding_totals).
	Totals map[string]float64 `yaml:"totals,omitempty"`
}

// Step operations.
const (
	OpAppend    = "append"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpReplace   = "replace"
	OpReconcile = "reconcile"
)

// Assertion types.
const (
	AssertSheetRows     = "sheet_rows"
	AssertRowCount      = "row_count"
	AssertJournalCount  = "journal_count"
	AssertJournalOrder  = "journal_order"
	AssertFeedingTotals = "feeding_totals"
)

// Backends.
const (
	BackendMemory   = "memory"
	BackendWorkbook = "workbook"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.Backend {
	case "", BackendMemory, BackendWorkbook:
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is only allowed in flow", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Worksheet == "" {
		return fmt.Errorf("worksheet is required")
	}
	switch step.Op {
	case OpAppend, OpUpdate:
		if len(step.Fields) == 0 {
			return fmt.Errorf("fields are required for %s", step.Op)
		}
	case OpDelete, OpReplace, OpReconcile:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	if step.Last < 0 {
		return fmt.Errorf("last must be non-negative")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertSheetRows, AssertRowCount:
		if a.Worksheet == "" {
			return fmt.Errorf("worksheet is required for %s", a.Type)
		}
	case AssertJournalCount:
		if a.Kind == "" {
			return fmt.Errorf("kind is required for journal_count")
		}
	case AssertJournalOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("kinds list is required for journal_order")
		}
	case AssertFeedingTotals:
		if a.Totals == nil {
			return fmt.Errorf("totals are required for feeding_totals")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("count must be non-negative")
	}
	return nil
}
