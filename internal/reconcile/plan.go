package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wI2L/jsondiff"

	"github.com/roach88/petlog/internal/records"
	"github.com/roach88/petlog/internal/schema"
	"github.com/roach88/petlog/internal/sheet"
)

// ErrUnknownIndex means an edited row carries an index that was not in the
// original snapshot. Rows cannot be added through reconciliation.
var ErrUnknownIndex = errors.New("edited row index not in original snapshot")

// ErrDuplicateIndex means two edited rows carry the same index.
var ErrDuplicateIndex = errors.New("duplicate index in edited snapshot")

// Mode selects how much of a plan is applied.
type Mode string

const (
	// ModeBatch applies every deletion, then every update.
	ModeBatch Mode = "batch"
	// ModeFirstChange applies the deletions if there are any, otherwise
	// only the first changed row.
	ModeFirstChange Mode = "first-change"
)

// ParseMode validates a mode name. Empty means ModeBatch.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeBatch:
		return ModeBatch, nil
	case ModeFirstChange:
		return ModeFirstChange, nil
	}
	return "", fmt.Errorf("unknown reconcile mode %q (want %s or %s)", s, ModeBatch, ModeFirstChange)
}

// Update rewrites one row.
type Update struct {
	// Index is the row's position in the original snapshot.
	Index  int
	Record records.Record
	Patch  jsondiff.Patch
}

// Columns returns the names of the columns the update changes.
func (u Update) Columns() []string {
	var cols []string
	for _, op := range u.Patch {
		path := strings.TrimPrefix(string(op.Path), "/")
		path = strings.NewReplacer("~1", "/", "~0", "~").Replace(path)
		cols = append(cols, path)
	}
	return cols
}

// Plan is the difference between two snapshots.
type Plan struct {
	// Deletes holds original indices, highest first.
	Deletes []int
	// Updates is ordered by original index.
	Updates []Update
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Deletes) == 0 && len(p.Updates) == 0
}

// TextFunc renders a record as canonical cell text per column.
type TextFunc func(w schema.Worksheet, rec records.Record) map[string]string

// Diff compares original and edited snapshots of w.
func Diff(w schema.Worksheet, text TextFunc, original, edited []records.Row) (Plan, error) {
	origByIndex := make(map[int]records.Row, len(original))
	for _, row := range original {
		origByIndex[row.Index] = row
	}

	editByIndex := make(map[int]records.Row, len(edited))
	for _, row := range edited {
		if _, ok := origByIndex[row.Index]; !ok {
			return Plan{}, fmt.Errorf("index %d: %w", row.Index, ErrUnknownIndex)
		}
		if _, dup := editByIndex[row.Index]; dup {
			return Plan{}, fmt.Errorf("index %d: %w", row.Index, ErrDuplicateIndex)
		}
		for name := range row.Record {
			if !w.Has(name) {
				return Plan{}, sheet.NewSchemaMismatch("reconcile", w.Name,
					fmt.Sprintf("index %d: column %q not in header", row.Index, name))
			}
		}
		editByIndex[row.Index] = row
	}

	indices := make([]int, 0, len(origByIndex))
	for idx := range origByIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	plan := Plan{Deletes: []int{}, Updates: []Update{}}
	for _, idx := range indices {
		edit, kept := editByIndex[idx]
		if !kept {
			plan.Deletes = append(plan.Deletes, idx)
			continue
		}
		patch, err := jsondiff.Compare(text(w, origByIndex[idx].Record), text(w, edit.Record))
		if err != nil {
			return Plan{}, fmt.Errorf("diff index %d: %w", idx, err)
		}
		if len(patch) > 0 {
			plan.Updates = append(plan.Updates, Update{Index: idx, Record: edit.Record, Patch: patch})
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(plan.Deletes)))
	return plan, nil
}

// Steps returns what mode applies of the plan, with update targets shifted
// down by the number of deleted rows below them.
func (p Plan) Steps(mode Mode) []Step {
	var steps []Step
	for _, idx := range p.Deletes {
		steps = append(steps, Step{Kind: StepDelete, Index: idx, Target: idx})
	}
	if mode == ModeFirstChange {
		if len(steps) > 0 {
			return steps
		}
		if len(p.Updates) > 0 {
			u := p.Updates[0]
			return []Step{{Kind: StepUpdate, Index: u.Index, Target: u.Index, Update: &u}}
		}
		return nil
	}

	for i := range p.Updates {
		u := p.Updates[i]
		shift := 0
		for _, d := range p.Deletes {
			if d < u.Index {
				shift++
			}
		}
		steps = append(steps, Step{Kind: StepUpdate, Index: u.Index, Target: u.Index - shift, Update: &u})
	}
	return steps
}

// StepKind is a single store call.
type StepKind string

const (
	StepDelete StepKind = "delete"
	StepUpdate StepKind = "update"
)

// Step is one store call of an applied plan.
type Step struct {
	Kind StepKind
	// Index is the original snapshot index.
	Index int
	// Target is the index at the time the step runs.
	Target int
	Update *Update
}

func (s Step) patchJSON() json.RawMessage {
	if s.Update == nil || len(s.Update.Patch) == 0 {
		return nil
	}
	data, err := json.Marshal(s.Update.Patch)
	if err != nil {
		return nil
	}
	return data
}
