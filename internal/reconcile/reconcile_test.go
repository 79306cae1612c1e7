package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/petlog/internal/coerce"
	"github.com/roach88/petlog/internal/records"
	"github.com/roach88/petlog/internal/schema"
	"github.com/roach88/petlog/internal/sheet"
)

// fakeStore records the calls Apply makes.
type fakeStore struct {
	calls   []string
	failOn  string
	patches []string
}

func (f *fakeStore) Worksheet(context.Context, string) (schema.Worksheet, error) {
	w, _ := schema.Builtin().Lookup(schema.Tasks)
	return w, nil
}

func (f *fakeStore) Text(w schema.Worksheet, rec records.Record) map[string]string {
	out := make(map[string]string)
	for _, col := range w.Columns {
		out[col.Name] = rec[col.Name].Str()
	}
	return out
}

func (f *fakeStore) UpdateByIndex(ctx context.Context, _ string, index int, _ records.Record) error {
	call := fmt.Sprintf("update %d", index)
	if call == f.failOn {
		return sheet.NewRateLimited("update", errors.New("quota"))
	}
	f.calls = append(f.calls, call)
	f.patches = append(f.patches, string(records.PatchFrom(ctx)))
	return nil
}

func (f *fakeStore) DeleteByIndex(_ context.Context, _ string, index int) error {
	call := fmt.Sprintf("delete %d", index)
	if call == f.failOn {
		return sheet.NewNotFound("delete", schema.Tasks, "row")
	}
	f.calls = append(f.calls, call)
	return nil
}

func task(name, status string) records.Record {
	return records.Record{
		"TaskName":    coerce.String(name),
		"Frequency":   coerce.String("daily"),
		"Description": coerce.String(""),
		"Status":      coerce.String(status),
	}
}

func snapshot(names ...string) []records.Row {
	rows := make([]records.Row, len(names))
	for i, n := range names {
		rows[i] = records.Row{Index: i, Record: task(n, "Active")}
	}
	return rows
}

func keep(rows []records.Row, indices ...int) []records.Row {
	var out []records.Row
	for _, idx := range indices {
		out = append(out, records.Row{Index: rows[idx].Index, Record: rows[idx].Record.Clone()})
	}
	return out
}

func fixedIDs() Option {
	return WithOperationIDs(func() string { return "op-1" })
}

func TestApply_DeletesHighestFirst(t *testing.T) {
	store := &fakeStore{}
	original := snapshot("a", "b", "c", "d", "e")
	edited := keep(original, 0, 2, 4)

	res, err := New(store, fixedIDs()).Apply(context.Background(), schema.Tasks, original, edited)
	require.NoError(t, err)
	assert.Equal(t, []string{"delete 3", "delete 1"}, store.calls)
	assert.Equal(t, []int{3, 1}, res.Deleted)
	assert.Equal(t, "op-1", res.OperationID)
	assert.False(t, res.NoChanges)
}

func TestApply_NoChanges(t *testing.T) {
	store := &fakeStore{}
	original := snapshot("a", "b")

	res, err := New(store).Apply(context.Background(), schema.Tasks, original, keep(original, 0, 1))
	require.NoError(t, err)
	assert.True(t, res.NoChanges)
	assert.Empty(t, store.calls)
}

func TestApply_BatchShiftsUpdatesPastDeletions(t *testing.T) {
	store := &fakeStore{}
	original := snapshot("a", "b", "c", "d")
	edited := keep(original, 0, 2, 3)
	edited[0].Record["Status"] = coerce.String("Paused")
	edited[2].Record["Status"] = coerce.String("Done")

	res, err := New(store, fixedIDs()).Apply(context.Background(), schema.Tasks, original, edited)
	require.NoError(t, err)

	// row 3 sits at 2 once row 1 is gone
	assert.Equal(t, []string{"delete 1", "update 0", "update 2"}, store.calls)
	assert.Equal(t, []int{0, 3}, res.Updated)
	assert.JSONEq(t, `[{"op":"replace","path":"/Status","value":"Paused"}]`, store.patches[0])
}

func TestApply_FirstChangeMode(t *testing.T) {
	original := snapshot("a", "b", "c")

	t.Run("deletions only", func(t *testing.T) {
		store := &fakeStore{}
		edited := keep(original, 0, 2)
		edited[0].Record["Status"] = coerce.String("Done")

		res, err := New(store, WithMode(ModeFirstChange)).Apply(context.Background(), schema.Tasks, original, edited)
		require.NoError(t, err)
		assert.Equal(t, []string{"delete 1"}, store.calls)
		assert.Equal(t, 1, res.Skipped)
	})

	t.Run("first update only", func(t *testing.T) {
		store := &fakeStore{}
		edited := keep(original, 0, 1, 2)
		edited[1].Record["Status"] = coerce.String("Done")
		edited[2].Record["Status"] = coerce.String("Done")

		res, err := New(store, WithMode(ModeFirstChange)).Apply(context.Background(), schema.Tasks, original, edited)
		require.NoError(t, err)
		assert.Equal(t, []string{"update 1"}, store.calls)
		assert.Equal(t, 1, res.Skipped)
	})
}

func TestApply_UnknownIndexRejected(t *testing.T) {
	store := &fakeStore{}
	original := snapshot("a", "b")
	edited := append(keep(original, 0, 1), records.Row{Index: 7, Record: task("z", "Active")})

	_, err := New(store).Apply(context.Background(), schema.Tasks, original, edited)
	require.ErrorIs(t, err, ErrUnknownIndex)
	assert.Empty(t, store.calls)
}

func TestApply_DuplicateIndexRejected(t *testing.T) {
	original := snapshot("a", "b")
	edited := keep(original, 0, 0)

	_, err := New(&fakeStore{}).Apply(context.Background(), schema.Tasks, original, edited)
	assert.ErrorIs(t, err, ErrDuplicateIndex)
}

func TestApply_UnknownColumnRejected(t *testing.T) {
	original := snapshot("a")
	edited := keep(original, 0)
	edited[0].Record["Color"] = coerce.String("red")

	_, err := New(&fakeStore{}).Apply(context.Background(), schema.Tasks, original, edited)
	assert.True(t, sheet.IsSchemaMismatch(err))
}

func TestApply_StopsAtFirstFailure(t *testing.T) {
	store := &fakeStore{failOn: "delete 1"}
	original := snapshot("a", "b", "c", "d")
	edited := keep(original, 0, 2)

	res, err := New(store).Apply(context.Background(), schema.Tasks, original, edited)
	require.Error(t, err)
	assert.True(t, sheet.IsNotFound(err))
	assert.Contains(t, err.Error(), "delete row 1")
	assert.Equal(t, []int{3}, res.Deleted)
}

func TestUpdate_Columns(t *testing.T) {
	original := snapshot("a")
	edited := keep(original, 0)
	edited[0].Record["Status"] = coerce.String("Done")
	edited[0].Record["Frequency"] = coerce.String("weekly")

	w, _ := schema.Builtin().Lookup(schema.Tasks)
	plan, err := Diff(w, (&fakeStore{}).Text, original, edited)
	require.NoError(t, err)
	require.Len(t, plan.Updates, 1)
	assert.ElementsMatch(t, []string{"Status", "Frequency"}, plan.Updates[0].Columns())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeBatch, m)

	m, err = ParseMode("first-change")
	require.NoError(t, err)
	assert.Equal(t, ModeFirstChange, m)

	_, err = ParseMode("all")
	assert.Error(t, err)
}

func TestApply_AgainstRecordStore(t *testing.T) {
	ctx := context.Background()
	conn := sheet.NewConnection(sheet.MemoryDialer())
	store := records.New(sheet.NewClient(conn), "maple")
	_, err := store.Ensure(ctx, schema.Feeding)
	require.NoError(t, err)

	w, err := store.Worksheet(ctx, schema.Feeding)
	require.NoError(t, err)
	for _, amount := range []string{"100", "90", "80", "70"} {
		require.NoError(t, store.Append(ctx, schema.Feeding, store.Decode(w, map[string]string{
			"Date": "2024-03-01", "Amount": amount, "Finished": "כן",
		})))
	}

	original, err := store.Tail(ctx, schema.Feeding, 3)
	require.NoError(t, err)

	// drop row 2, change row 3's amount, leave row 1 as is
	edited := []records.Row{
		{Index: 1, Record: original[0].Record.Clone()},
		{Index: 3, Record: original[2].Record.Clone()},
	}
	edited[1].Record["Amount"] = coerce.Float(65)

	res, err := New(store).Apply(ctx, schema.Feeding, original, edited)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.Deleted)
	assert.Equal(t, []int{3}, res.Updated)

	rows, err := store.Load(ctx, schema.Feeding)
	require.NoError(t, err)
	var amounts []float64
	for _, r := range rows {
		a, _ := r.Record["Amount"].Float64()
		amounts = append(amounts, a)
	}
	assert.Equal(t, []float64{100, 90, 65}, amounts)
}
