package harness

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/petlog/internal/journal"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Journal  []journal.Entry
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Journal) > 0 {
		fmt.Fprintf(&buf, "\nJournal:\n")
		for _, entry := range e.Journal {
			fmt.Fprintf(&buf, "  [%d] %s %s row %d\n", entry.Seq, entry.Kind, entry.Worksheet, entry.RowIndex)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, empty when all pass.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	failures := []string{}
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertSheetRows:
			err = assertSheetRows(result, a)
		case AssertRowCount:
			err = assertRowCount(result, a)
		case AssertJournalCount:
			err = assertJournalCount(result, a)
		case AssertJournalOrder:
			err = assertJournalOrder(result, a)
		case AssertFeedingTotals:
			err = assertFeedingTotals(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return failures
}

func assertSheetRows(result *Result, a Assertion) error {
	got, ok := result.Sheets[a.Worksheet]
	if !ok {
		return &AssertionError{Type: a.Type, Expected: "worksheet " + a.Worksheet, Actual: "not touched by the scenario"}
	}

	want := a.Rows
	if want == nil {
		want = [][]string{}
	}
	if !reflect.DeepEqual(got, want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%q", want),
			Actual:   fmt.Sprintf("%q", got),
			Journal:  result.Journal,
		}
	}
	return nil
}

func assertRowCount(result *Result, a Assertion) error {
	got, ok := result.Sheets[a.Worksheet]
	if !ok {
		return &AssertionError{Type: a.Type, Expected: "worksheet " + a.Worksheet, Actual: "not touched by the scenario"}
	}
	if len(got) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d rows in %s", a.Count, a.Worksheet),
			Actual:   fmt.Sprintf("%d rows", len(got)),
			Journal:  result.Journal,
		}
	}
	return nil
}

func assertJournalCount(result *Result, a Assertion) error {
	count := 0
	for _, e := range result.Journal {
		if string(e.Kind) == a.Kind && (a.Worksheet == "" || e.Worksheet == a.Worksheet) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s entries", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d", count),
			Journal:  result.Journal,
		}
	}
	return nil
}

// assertJournalOrder checks that the kinds occur in order. Other entries
// may sit between them.
func assertJournalOrder(result *Result, a Assertion) error {
	next := 0
	for _, e := range result.Journal {
		if next == len(a.Kinds) {
			break
		}
		if a.Worksheet != "" && e.Worksheet != a.Worksheet {
			continue
		}
		if string(e.Kind) == a.Kinds[next] {
			next++
		}
	}
	if next < len(a.Kinds) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("kinds in order: %v", a.Kinds),
			Actual:   fmt.Sprintf("matched %d, missing %s", next, a.Kinds[next]),
			Journal:  result.Journal,
		}
	}
	return nil
}

func assertFeedingTotals(result *Result, a Assertion) error {
	var diffs []string
	for day, want := range a.Totals {
		got, ok := result.Totals[day]
		switch {
		case !ok:
			diffs = append(diffs, fmt.Sprintf("%s: missing", day))
		case math.Abs(got-want) > 1e-9:
			diffs = append(diffs, fmt.Sprintf("%s: %g, want %g", day, got, want))
		}
	}
	for day, got := range result.Totals {
		if _, ok := a.Totals[day]; !ok {
			diffs = append(diffs, fmt.Sprintf("%s: unexpected %g", day, got))
		}
	}
	if len(diffs) > 0 {
		sort.Strings(diffs)
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%v", a.Totals),
			Actual:   strings.Join(diffs, "; "),
		}
	}
	return nil
}
