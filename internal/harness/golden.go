package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/petlog/internal/journal"
)

// TraceSnapshot is the golden form of a run. Timestamps and entry ids are
// left out; sequence numbers and operation ids stay, so grouping and order
// are still compared.
type TraceSnapshot struct {
	Scenario string                `json:"scenario"`
	Trace    []TraceEvent          `json:"trace"`
	Journal  []JournalLine         `json:"journal"`
	Sheets   map[string][][]string `json:"sheets"`
}

// JournalLine is the golden form of a journal entry.
type JournalLine struct {
	Seq       int64      `json:"seq"`
	Operation string     `json:"operation"`
	Worksheet string     `json:"worksheet"`
	Kind      string     `json:"kind"`
	RowIndex  int        `json:"row_index"`
	Cells     [][]string `json:"cells"`
	// Changes lists "op path" of each patch operation.
	Changes []string `json:"changes,omitempty"`
}

// NewTraceSnapshot builds the golden form of result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	lines := make([]JournalLine, len(result.Journal))
	for i, e := range result.Journal {
		lines[i] = journalLine(e)
	}
	return TraceSnapshot{
		Scenario: name,
		Trace:    result.Trace,
		Journal:  lines,
		Sheets:   result.Sheets,
	}
}

func journalLine(e journal.Entry) JournalLine {
	line := JournalLine{
		Seq:       e.Seq,
		Operation: e.OperationID,
		Worksheet: e.Worksheet,
		Kind:      string(e.Kind),
		RowIndex:  e.RowIndex,
		Cells:     e.Cells,
	}
	if line.Cells == nil {
		line.Cells = [][]string{}
	}

	var ops []struct {
		Op   string `json:"op"`
		Path string `json:"path"`
	}
	if len(e.Patch) > 0 && json.Unmarshal(e.Patch, &ops) == nil {
		for _, op := range ops {
			line.Changes = append(line.Changes, op.Op+" "+op.Path)
		}
	}
	return line
}

// RunWithGolden runs scenario in t.TempDir() and compares its trace with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, t.TempDir())
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares result against testdata/golden/{name}.golden
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := json.MarshalIndent(NewTraceSnapshot(name, result), "", "  ")
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, append(data, '\n'))
	return nil
}
