package records

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/petlog/internal/cache"
	"github.com/roach88/petlog/internal/coerce"
	"github.com/roach88/petlog/internal/journal"
	"github.com/roach88/petlog/internal/schema"
	"github.com/roach88/petlog/internal/sheet"
	"github.com/roach88/petlog/internal/testutil"
)

// countingBackend counts reads and can fail the next calls.
type countingBackend struct {
	*sheet.MemoryBackend
	reads       int
	failRead    error
	failReplace func(b *countingBackend, ws string) error
}

func (c *countingBackend) ReadAll(ctx context.Context, ws string) ([][]string, error) {
	c.reads++
	if c.failRead != nil {
		return nil, c.failRead
	}
	return c.MemoryBackend.ReadAll(ctx, ws)
}

func (c *countingBackend) ReplaceAll(ctx context.Context, ws string, header []string, rows [][]string) error {
	if c.failReplace != nil {
		return c.failReplace(c, ws)
	}
	return c.MemoryBackend.ReplaceAll(ctx, ws, header, rows)
}

type fixture struct {
	store   *Store
	backend *countingBackend
	clock   *testutil.FakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	b := &countingBackend{MemoryBackend: sheet.NewMemoryBackend()}
	conn := sheet.NewConnection(func(context.Context, string) (sheet.Backend, error) { return b, nil })
	client := sheet.NewClient(conn, sheet.WithSleeper((&testutil.RecordingSleeper{}).Sleep))
	clock := testutil.NewFakeClock(time.Time{})

	opts = append([]Option{WithCache(cache.New[Snapshot](time.Minute, clock))}, opts...)
	s := New(client, "maple", opts...)

	for _, ws := range []string{schema.Training, schema.Feeding, schema.Tasks, schema.TaskLogs} {
		_, err := s.Ensure(context.Background(), ws)
		require.NoError(t, err)
	}
	return &fixture{store: s, backend: b, clock: clock}
}

func feeding(day int, amount float64) Record {
	return Record{
		"Date":     coerce.Date(time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC)),
		"Time":     coerce.Clock(8, 0),
		"Type":     coerce.String("בוקר"),
		"Amount":   coerce.Float(amount),
		"Finished": coerce.Bool(true),
		"Notes":    coerce.String(""),
	}
}

func TestStore_AppendThenReadAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := feeding(1, 120)
	require.NoError(t, f.store.Append(ctx, schema.Feeding, rec))

	rows := f.store.ReadAll(ctx, schema.Feeding)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].Index)
	assert.Equal(t, rec, rows[0].Record)
	assert.NoError(t, f.store.LastReadError(schema.Feeding))

	raw, err := f.backend.MemoryBackend.ReadAll(ctx, schema.Feeding)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01", "08:00", "בוקר", "120", "כן"}, raw[1])
}

func TestStore_AppendUnknownColumn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := feeding(1, 120)
	rec["Color"] = coerce.String("red")

	err := f.store.Append(ctx, schema.Feeding, rec)
	require.Error(t, err)
	assert.True(t, sheet.IsSchemaMismatch(err))
	assert.Contains(t, err.Error(), "Color")
	assert.Empty(t, f.store.ReadAll(ctx, schema.Feeding))
}

func TestStore_AppendPartialRecordWritesEmptyCells(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Append(ctx, schema.Training, Record{
		"Date":     coerce.Date(time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC)),
		"Duration": coerce.String("15 min"),
	}))

	rows := f.store.ReadAll(ctx, schema.Training)
	require.Len(t, rows, 1)
	d, ok := rows[0].Record["Duration"].Float64()
	require.True(t, ok)
	assert.Equal(t, 15.0, d)
	assert.False(t, rows[0].Record["StressLevel"].Valid)
	assert.True(t, rows[0].Record["StressLevel"].IsEmpty())
}

func TestStore_AppendRejectsBlankRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, rec := range []Record{{}, {"Notes": coerce.String("")}} {
		err := f.store.Append(ctx, schema.Feeding, rec)
		require.Error(t, err)
		assert.True(t, sheet.IsSchemaMismatch(err))
		assert.Contains(t, err.Error(), "record has no values")
	}
	assert.Empty(t, f.store.ReadAll(ctx, schema.Feeding))
}

func TestStore_AppendToWorksheetWithoutHeader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.backend.MemoryBackend.ReplaceAll(ctx, schema.Tasks, nil, nil))

	w, err := f.store.Worksheet(ctx, schema.Tasks)
	require.NoError(t, err)
	assert.Equal(t, []string{"TaskName", "Frequency", "Description", "Status"}, w.Header())

	require.NoError(t, f.store.Append(ctx, schema.Tasks, Record{
		"TaskName": coerce.String("Sit"),
		"Status":   coerce.String("Active"),
	}))
	require.NoError(t, f.store.Append(ctx, schema.Tasks, Record{"TaskName": coerce.String("Down")}))

	raw, err := f.backend.MemoryBackend.ReadAll(ctx, schema.Tasks)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"TaskName", "Frequency", "Description", "Status"},
		{"Sit", "", "", "Active"},
		{"Down"},
	}, raw)
}

func TestStore_AppendToUndeclaredEmptyWorksheet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.backend.MemoryBackend.Create(ctx, "Scratch", nil))

	err := f.store.Append(ctx, "Scratch", Record{"Note": coerce.String("x")})
	assert.True(t, sheet.IsSchemaMismatch(err))
}

func TestStore_ReadAllUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, schema.Feeding, feeding(1, 100)))

	before := f.backend.reads
	f.store.ReadAll(ctx, schema.Feeding)
	f.store.ReadAll(ctx, schema.Feeding)
	assert.Equal(t, before+1, f.backend.reads)

	f.clock.Advance(time.Minute)
	f.store.ReadAll(ctx, schema.Feeding)
	assert.Equal(t, before+2, f.backend.reads)
}

func TestStore_WriteInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Empty(t, f.store.ReadAll(ctx, schema.Feeding))
	require.NoError(t, f.store.Append(ctx, schema.Feeding, feeding(1, 100)))

	// a cached empty read must not hide the append
	assert.Len(t, f.store.ReadAll(ctx, schema.Feeding), 1)
}

func TestStore_CallerOwnsRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, schema.Feeding, feeding(1, 100)))

	rows := f.store.ReadAll(ctx, schema.Feeding)
	rows[0].Record["Amount"] = coerce.Float(1)

	again := f.store.ReadAll(ctx, schema.Feeding)
	amount, _ := again[0].Record["Amount"].Float64()
	assert.Equal(t, 100.0, amount)
}

func TestStore_ReadAllSwallowsErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.failRead = errors.New("socket closed")
	rows := f.store.ReadAll(ctx, schema.Tasks)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	err := f.store.LastReadError(schema.Tasks)
	require.Error(t, err)
	assert.True(t, sheet.IsUnavailable(err))

	_, err = f.store.Load(ctx, schema.Tasks)
	assert.Error(t, err)

	f.backend.failRead = nil
	f.store.ReadAll(ctx, schema.Tasks)
	assert.NoError(t, f.store.LastReadError(schema.Tasks))
}

func TestStore_ReplaceAllRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for day := 1; day <= 3; day++ {
		require.NoError(t, f.store.Append(ctx, schema.Feeding, feeding(day, 100)))
	}

	w, err := f.store.Worksheet(ctx, schema.Feeding)
	require.NoError(t, err)
	recs := []Record{feeding(10, 50), feeding(11, 60)}
	require.NoError(t, f.store.ReplaceAll(ctx, schema.Feeding, w.Header(), recs))

	rows, err := f.store.Load(ctx, schema.Feeding)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, recs[0], rows[0].Record)
	assert.Equal(t, recs[1], rows[1].Record)
}

func TestStore_ReplaceAllRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, sheet.IsSchemaMismatch(f.store.ReplaceAll(ctx, schema.Tasks, nil, nil)))
	assert.True(t, sheet.IsSchemaMismatch(f.store.ReplaceAll(ctx, schema.Tasks, []string{"A", "A"}, nil)))

	err := f.store.ReplaceAll(ctx, schema.Tasks, []string{"TaskName"}, []Record{
		{"TaskName": coerce.String("Sit")},
		{"Status": coerce.String("Active")},
	})
	require.True(t, sheet.IsSchemaMismatch(err))
	assert.Contains(t, err.Error(), "record 1")
}

func TestStore_ReplaceAllFailureAfterClearIsPartialWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, schema.Feeding, feeding(1, 100)))

	f.backend.failReplace = func(b *countingBackend, ws string) error {
		// header written, data lost
		_ = b.MemoryBackend.ReplaceAll(ctx, ws, []string{"Date"}, nil)
		return errors.New("connection reset")
	}

	w, err := f.store.Worksheet(ctx, schema.Feeding)
	require.NoError(t, err)
	err = f.store.ReplaceAll(ctx, schema.Feeding, w.Header(), []Record{feeding(2, 90)})
	require.Error(t, err)
	assert.True(t, sheet.IsPartialWrite(err))
	assert.Contains(t, err.Error(), schema.Feeding)
}

func TestStore_ReplaceAllFailureWithoutChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, schema.Feeding, feeding(1, 100)))

	f.backend.failReplace = func(*countingBackend, string) error {
		return errors.New("permission denied")
	}

	w, err := f.store.Worksheet(ctx, schema.Feeding)
	require.NoError(t, err)
	err = f.store.ReplaceAll(ctx, schema.Feeding, w.Header(), nil)
	require.Error(t, err)
	assert.False(t, sheet.IsPartialWrite(err))
	assert.True(t, sheet.IsUnavailable(err))
}

func TestStore_DeleteHighestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for day := 1; day <= 5; day++ {
		require.NoError(t, f.store.Append(ctx, schema.Feeding, feeding(day, float64(day))))
	}

	require.NoError(t, f.store.DeleteByIndex(ctx, schema.Feeding, 3))
	require.NoError(t, f.store.DeleteByIndex(ctx, schema.Feeding, 1))

	rows, err := f.store.Load(ctx, schema.Feeding)
	require.NoError(t, err)
	var amounts []float64
	for _, r := range rows {
		a, _ := r.Record["Amount"].Float64()
		amounts = append(amounts, a)
	}
	assert.Equal(t, []float64{1, 3, 5}, amounts)
}

func TestStore_UpdateByIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, schema.Feeding, feeding(1, 100)))
	require.NoError(t, f.store.Append(ctx, schema.Feeding, feeding(2, 100)))

	edited := feeding(2, 75)
	edited["Finished"] = coerce.Bool(false)
	require.NoError(t, f.store.UpdateByIndex(ctx, schema.Feeding, 1, edited))

	rows, err := f.store.Load(ctx, schema.Feeding)
	require.NoError(t, err)
	assert.Equal(t, edited, rows[1].Record)

	err = f.store.UpdateByIndex(ctx, schema.Feeding, 9, edited)
	assert.True(t, sheet.IsNotFound(err))
}

func TestStore_Tail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for day := 1; day <= 4; day++ {
		require.NoError(t, f.store.Append(ctx, schema.Feeding, feeding(day, 1)))
	}

	rows, err := f.store.Tail(ctx, schema.Feeding, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Index)
	assert.Equal(t, 3, rows[1].Index)

	rows, err = f.store.Tail(ctx, schema.Feeding, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	rows, err = f.store.Tail(ctx, schema.Feeding, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_ShortAndLongRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.backend.MemoryBackend.Append(ctx, schema.Tasks, []string{"Sit"}))
	require.NoError(t, f.backend.MemoryBackend.Append(ctx, schema.Tasks, []string{"Stay", "daily", "hold", "Active", "extra"}))

	rows, err := f.store.Load(ctx, schema.Tasks)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Sit", rows[0].Record["TaskName"].Str())
	assert.Equal(t, "", rows[0].Record["Status"].Str())
	assert.Len(t, rows[1].Record, 4)
	assert.Equal(t, "Active", rows[1].Record["Status"].Str())
}

func TestStore_HandEditedHeader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// columns reordered by hand, with an extra column
	require.NoError(t, f.backend.MemoryBackend.ReplaceAll(ctx, schema.Training,
		[]string{"Duration", "Date", "Mood"},
		[][]string{{"20", "2024-01-05", "happy"}},
	))

	rows, err := f.store.Load(ctx, schema.Training)
	require.NoError(t, err)
	d, ok := rows[0].Record["Duration"].Float64()
	require.True(t, ok)
	assert.Equal(t, 20.0, d)
	assert.Equal(t, "happy", rows[0].Record["Mood"].Str())

	require.NoError(t, f.store.Append(ctx, schema.Training, Record{
		"Date": coerce.String("2024/01/06"),
		"Mood": coerce.String("tired"),
	}))
	raw, err := f.backend.MemoryBackend.ReadAll(ctx, schema.Training)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "2024-01-06", "tired"}, raw[2])
}

func TestStore_DuplicateHeaderOnSheet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.backend.MemoryBackend.ReplaceAll(ctx, schema.Tasks, []string{"TaskName", "TaskName"}, nil))

	_, err := f.store.Load(ctx, schema.Tasks)
	assert.True(t, sheet.IsSchemaMismatch(err))
}

func TestStore_EnsureUndeclared(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Ensure(context.Background(), "Scratch")
	assert.True(t, sheet.IsSchemaMismatch(err))
}

func TestStore_JournalsMutations(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"),
		journal.WithIDGenerator(testutil.NewSequentialIDs("e")))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	f := newFixture(t, WithJournal(j))
	ctx := context.Background()

	require.NoError(t, f.store.Append(ctx, schema.Feeding, feeding(1, 100)))
	require.NoError(t, f.store.Append(ctx, schema.Feeding, feeding(2, 80)))

	opCtx := WithOperation(ctx, "op-1")
	require.NoError(t, f.store.DeleteByIndex(opCtx, schema.Feeding, 0))
	require.NoError(t, f.store.UpdateByIndex(WithPatch(opCtx, []byte(`[]`)), schema.Feeding, 0, feeding(2, 85)))

	entries, err := j.List(ctx, journal.Filter{Worksheet: schema.Feeding})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, journal.KindAppend, entries[0].Kind)
	assert.Equal(t, journal.KindDelete, entries[2].Kind)
	assert.Equal(t, [][]string{{"2024-03-01", "08:00", "בוקר", "100", "כן", ""}}, entries[2].Cells)
	assert.Equal(t, journal.KindUpdate, entries[3].Kind)
	assert.JSONEq(t, `[]`, string(entries[3].Patch))

	op, err := j.Operation(ctx, "op-1")
	require.NoError(t, err)
	assert.Len(t, op, 2)
}

func TestStore_DecodeAndText(t *testing.T) {
	f := newFixture(t)
	w, ok := f.store.Registry().Lookup(schema.Feeding)
	require.True(t, ok)

	rec := f.store.Decode(w, map[string]string{"Date": "01.03.2024", "Amount": "1,5", "Finished": "לא"})
	text := f.store.Text(w, rec)
	assert.Equal(t, "2024-03-01", text["Date"])
	assert.Equal(t, "1.5", text["Amount"])
	assert.Equal(t, "לא", text["Finished"])
	assert.Equal(t, "", text["Notes"])
}
