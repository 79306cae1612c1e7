package harness

import (
	"github.com/roach88/petlog/internal/journal"
)

// Step phases.
const (
	PhaseSetup = "setup"
	PhaseFlow  = "flow"
)

// OutcomeOK is the outcome of a step that succeeded.
const OutcomeOK = "ok"

// TraceEvent records how one step went.
type TraceEvent struct {
	Phase     string `json:"phase"`
	Step      int    `json:"step"`
	Op        string `json:"op"`
	Worksheet string `json:"worksheet"`
	Outcome   string `json:"outcome"`
	Deleted   []int  `json:"deleted,omitempty"`
	Updated   []int  `json:"updated,omitempty"`
	NoChanges bool   `json:"no_changes,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Journal holds every entry recorded during the run, oldest first.
	Journal []journal.Entry `json:"journal"`

	// Sheets maps each touched worksheet to its final data rows as
	// canonical cell text.
	Sheets map[string][][]string `json:"sheets"`

	// Totals is the daily feeding sum keyed by YYYY-MM-DD.
	Totals map[string]float64 `json:"totals,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Journal: []journal.Entry{},
		Sheets:  make(map[string][][]string),
	}
}

// AddError records a failed check and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
