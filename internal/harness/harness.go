package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/roach88/petlog/internal/cache"
	"github.com/roach88/petlog/internal/coerce"
	"github.com/roach88/petlog/internal/journal"
	"github.com/roach88/petlog/internal/logbook"
	"github.com/roach88/petlog/internal/reconcile"
	"github.com/roach88/petlog/internal/records"
	"github.com/roach88/petlog/internal/schema"
	"github.com/roach88/petlog/internal/sheet"
	"github.com/roach88/petlog/internal/testutil"
	"github.com/roach88/petlog/internal/workbook"
)

// Outcomes of errors that carry no sheet error code.
const (
	OutcomeUnknownIndex   = "UNKNOWN_INDEX"
	OutcomeDuplicateIndex = "DUPLICATE_INDEX"
	OutcomeError          = "ERROR"
)

// Harness executes the steps of one scenario.
type Harness struct {
	store   *records.Store
	journal *journal.Journal
	opIDs   *testutil.SequentialIDs
	logger  *slog.Logger

	touched []string
}

// Run executes scenario in a fresh store rooted at dir and returns the
// result. dir holds the journal database and, for the workbook backend,
// the xlsx file; tests pass t.TempDir().
//
// An error is returned only when the scenario cannot run: the journal does
// not open or a setup step fails. Failed expectations and assertions are
// reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, dir string) (*Result, error) {
	j, err := journal.Open(filepath.Join(dir, "journal.db"),
		journal.WithIDGenerator(testutil.NewSequentialIDs("entry")),
		journal.WithClock(testutil.NewFakeClock(time.Time{})),
	)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dial := sheet.MemoryDialer()
	if scenario.Backend == BackendWorkbook {
		dial = workbook.FileDialer(dir, logger)
	}
	sleeper := &testutil.RecordingSleeper{}
	client := sheet.NewClient(sheet.NewConnection(dial),
		sheet.WithSleeper(sleeper.Sleep),
		sheet.WithLogger(logger),
	)

	resource := scenario.Resource
	if resource == "" {
		resource = "scenario"
	}

	h := &Harness{
		store: records.New(client, resource,
			records.WithJournal(j),
			records.WithLogger(logger),
			records.WithCache(cache.New[records.Snapshot](0, testutil.NewFakeClock(time.Time{}))),
		),
		journal: j,
		opIDs:   testutil.NewSequentialIDs("op"),
		logger:  logger,
	}

	result := NewResult()
	for i, step := range scenario.Setup {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("setup step %d (%s %s): %w", i, step.Op, step.Worksheet, err)
		}
		ev.Phase, ev.Step = PhaseSetup, i
		result.AddTrace(ev)
	}

	for i, step := range scenario.Flow {
		ev, err := h.execute(ctx, step)
		ev.Phase, ev.Step = PhaseFlow, i
		ev.Outcome = outcomeOf(err)
		result.AddTrace(ev)
		checkExpect(result, i, step, ev, err)

		h.logger.Info("flow step completed", "step", i, "op", step.Op, "worksheet", step.Worksheet, "outcome", ev.Outcome)
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step. The returned event has Op, Worksheet and the
// reconcile fields set; the caller fills in the rest.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	ev := TraceEvent{Op: step.Op, Worksheet: step.Worksheet, Outcome: OutcomeOK}
	ws := step.Worksheet

	if _, err := h.store.Ensure(ctx, ws); err != nil {
		return ev, err
	}
	h.touch(ws)

	w, err := h.store.Worksheet(ctx, ws)
	if err != nil {
		return ev, err
	}

	switch step.Op {
	case OpAppend:
		return ev, h.store.Append(ctx, ws, h.store.Decode(w, step.Fields))
	case OpUpdate:
		return ev, h.store.UpdateByIndex(ctx, ws, step.Index, h.store.Decode(w, step.Fields))
	case OpDelete:
		return ev, h.store.DeleteByIndex(ctx, ws, step.Index)
	case OpReplace:
		header := step.Header
		if len(header) == 0 {
			header = w.Header()
		}
		target := h.store.Registry().Resolve(ws, header)
		recs := make([]records.Record, len(step.Records))
		for i, fields := range step.Records {
			recs[i] = h.store.Decode(target, fields)
		}
		return ev, h.store.ReplaceAll(ctx, ws, header, recs)
	case OpReconcile:
		return h.reconcile(ctx, step, w, ev)
	}
	return ev, fmt.Errorf("unknown op %q", step.Op)
}

func (h *Harness) reconcile(ctx context.Context, step Step, w schema.Worksheet, ev TraceEvent) (TraceEvent, error) {
	mode, err := reconcile.ParseMode(step.Mode)
	if err != nil {
		return ev, err
	}

	var original []records.Row
	if step.Last > 0 {
		original, err = h.store.Tail(ctx, step.Worksheet, step.Last)
	} else {
		original, err = h.store.Load(ctx, step.Worksheet)
	}
	if err != nil {
		return ev, err
	}

	r := reconcile.New(h.store,
		reconcile.WithMode(mode),
		reconcile.WithOperationIDs(h.opIDs.Generate),
		reconcile.WithLogger(h.logger),
	)
	res, err := r.Apply(ctx, step.Worksheet, original, h.edit(w, original, step))
	ev.Deleted, ev.Updated, ev.NoChanges = res.Deleted, res.Updated, res.NoChanges
	return ev, err
}

// edit derives the edited snapshot: rows listed in Delete are dropped and
// Set fields override the row's text. Set entries for indices outside the
// snapshot become extra rows so the reconciler can reject them.
func (h *Harness) edit(w schema.Worksheet, original []records.Row, step Step) []records.Row {
	dropped := make(map[int]bool, len(step.Delete))
	for _, idx := range step.Delete {
		dropped[idx] = true
	}
	sets := make(map[int]map[string]string)
	for _, e := range step.Set {
		if sets[e.Index] == nil {
			sets[e.Index] = make(map[string]string)
		}
		for k, v := range e.Fields {
			sets[e.Index][k] = v
		}
	}

	known := make(map[int]bool, len(original))
	edited := []records.Row{}
	for _, row := range original {
		known[row.Index] = true
		if dropped[row.Index] {
			continue
		}
		text := h.store.Text(w, row.Record)
		for k, v := range sets[row.Index] {
			text[k] = v
		}
		edited = append(edited, records.Row{Index: row.Index, Record: h.store.Decode(w, text)})
	}
	for _, e := range step.Set {
		if !known[e.Index] {
			edited = append(edited, records.Row{Index: e.Index, Record: h.store.Decode(w, e.Fields)})
		}
	}
	return edited
}

// collect fills in the journal, the final rows of every touched worksheet
// and the feeding totals.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	entries, err := h.journal.List(ctx, journal.Filter{})
	if err != nil {
		return fmt.Errorf("list journal: %w", err)
	}
	result.Journal = entries

	for _, ws := range h.touched {
		rows, err := h.store.Load(ctx, ws)
		if err != nil {
			return fmt.Errorf("read final %s: %w", ws, err)
		}
		w, err := h.store.Worksheet(ctx, ws)
		if err != nil {
			return fmt.Errorf("read final %s: %w", ws, err)
		}

		cells := make([][]string, 0, len(rows))
		for _, row := range rows {
			c, err := h.store.Encode(w, row.Record)
			if err != nil {
				return fmt.Errorf("encode final %s row %d: %w", ws, row.Index, err)
			}
			cells = append(cells, c)
		}
		result.Sheets[ws] = cells

		if ws == schema.Feeding {
			result.Totals = make(map[string]float64)
			for _, t := range logbook.DailyFeeding(rows) {
				result.Totals[t.Date.Format(coerce.DateLayout)] = t.Amount
			}
		}
	}
	return nil
}

func (h *Harness) touch(ws string) {
	if !slices.Contains(h.touched, ws) {
		h.touched = append(h.touched, ws)
	}
}

// outcomeOf names the category of err.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, reconcile.ErrUnknownIndex):
		return OutcomeUnknownIndex
	case errors.Is(err, reconcile.ErrDuplicateIndex):
		return OutcomeDuplicateIndex
	}
	if code := sheet.CodeOf(err); code != "" {
		return string(code)
	}
	return OutcomeError
}

func checkExpect(result *Result, i int, step Step, ev TraceEvent, err error) {
	want := OutcomeOK
	if step.Expect != nil && step.Expect.Outcome != "" {
		want = step.Expect.Outcome
	}
	if ev.Outcome != want {
		msg := fmt.Sprintf("flow[%d] %s %s: outcome %s, want %s", i, step.Op, step.Worksheet, ev.Outcome, want)
		if err != nil {
			msg += ": " + err.Error()
		}
		result.AddError(msg)
	}

	if step.Expect == nil {
		return
	}
	if step.Expect.Deleted != nil && !slices.Equal(ev.Deleted, step.Expect.Deleted) {
		result.AddError(fmt.Sprintf("flow[%d]: deleted %v, want %v", i, ev.Deleted, step.Expect.Deleted))
	}
	if step.Expect.Updated != nil && !slices.Equal(ev.Updated, step.Expect.Updated) {
		result.AddError(fmt.Sprintf("flow[%d]: updated %v, want %v", i, ev.Updated, step.Expect.Updated))
	}
	if step.Expect.NoChanges && !ev.NoChanges {
		result.AddError(fmt.Sprintf("flow[%d]: expected no changes", i))
	}
}
