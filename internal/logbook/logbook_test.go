package logbook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/petlog/internal/coerce"
	"github.com/roach88/petlog/internal/records"
	"github.com/roach88/petlog/internal/schema"
	"github.com/roach88/petlog/internal/sheet"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newStore(t *testing.T) *records.Store {
	t.Helper()
	s := records.New(sheet.NewClient(sheet.NewConnection(sheet.MemoryDialer())), "maple")
	for _, ws := range schema.Builtin().Names() {
		_, err := s.Ensure(context.Background(), ws)
		require.NoError(t, err)
	}
	return s
}

func assertGolden(t *testing.T, name string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, append(data, '\n'))
}

func TestDailyFeeding_Scenario(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, f := range []Feeding{
		{Date: day(2024, 1, 1), Time: time.Date(0, 1, 1, 8, 0, 0, 0, time.UTC), Type: MealMorning, Amount: 1.0, Finished: true},
		{Date: day(2024, 1, 2), Time: time.Date(0, 1, 1, 8, 0, 0, 0, time.UTC), Type: MealMorning, Amount: 1.5, Finished: true},
	} {
		require.Empty(t, f.Validate())
		require.NoError(t, s.Append(ctx, schema.Feeding, f.ToRecord()))
	}

	totals := DailyFeeding(s.ReadAll(ctx, schema.Feeding))
	require.Len(t, totals, 2)
	assert.Equal(t, day(2024, 1, 1), totals[0].Date)
	assert.Equal(t, 1.0, totals[0].Amount)
	assert.Equal(t, day(2024, 1, 2), totals[1].Date)
	assert.Equal(t, 1.5, totals[1].Amount)

	assertGolden(t, "feeding_daily", totals)
}

func TestDailyFeeding_SumsAndSkips(t *testing.T) {
	codec := coerce.NewCodec(coerce.DefaultTokens)
	row := func(date, amount string) records.Row {
		return records.Row{Record: records.Record{
			"Date":   codec.Parse(date, coerce.KindDate),
			"Amount": codec.Parse(amount, coerce.KindFloat),
		}}
	}

	totals := DailyFeeding([]records.Row{
		row("2024-02-02", "100"),
		row("2024-02-01", "50 g"),
		row("2024-02-02", "80"),
		row("not a date", "999"),
		row("2024-02-01", "lots"),
	})

	require.Len(t, totals, 2)
	assert.Equal(t, DailyTotal{Date: day(2024, 2, 1), Amount: 50, Meals: 2}, totals[0])
	assert.Equal(t, DailyTotal{Date: day(2024, 2, 2), Amount: 180, Meals: 2}, totals[1])
	assert.Empty(t, DailyFeeding(nil))
}

func TestTrainingSeries(t *testing.T) {
	rows := []records.Row{
		{Record: Training{Date: day(2024, 3, 3), Duration: 20, StressLevel: 2}.ToRecord()},
		{Record: Training{Date: day(2024, 3, 1), Duration: 5, StressLevel: 4}.ToRecord()},
		{Record: records.Record{"Date": coerce.Missing(coerce.KindDate, "?"), "Duration": coerce.Float(9)}},
		{Record: Training{Date: day(2024, 3, 2), Duration: 12, StressLevel: 3}.ToRecord()},
	}

	points := TrainingSeries(rows)
	assert.Equal(t, []Point{
		{Date: day(2024, 3, 1), Value: 5},
		{Date: day(2024, 3, 2), Value: 12},
		{Date: day(2024, 3, 3), Value: 20},
	}, points)

	sum := Summarize(points)
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, 5.0, sum.Min)
	assert.Equal(t, 20.0, sum.Max)
	assert.InDelta(t, 12.33, sum.Mean, 0.01)
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestActiveTasks(t *testing.T) {
	rows := []records.Row{
		{Record: NewTask("Place 10", "daily", "").ToRecord()},
		{Record: NewTask("Place 2", "daily", "").ToRecord()},
		{Record: Task{Name: "Heel", Status: "Paused"}.ToRecord()},
		{Record: NewTask("Place 2", "weekly", "dup").ToRecord()},
		{Record: NewTask("Down", "", "").ToRecord()},
	}

	assert.Equal(t, []string{"Down", "Place 2", "Place 10"}, ActiveTasks(rows))
	assert.Empty(t, ActiveTasks(nil))
}

func TestLastFeedingAmount(t *testing.T) {
	assert.Equal(t, DefaultFeedingAmount, LastFeedingAmount(nil, DefaultFeedingAmount))

	rows := []records.Row{
		{Record: Feeding{Date: day(2024, 1, 1), Type: MealMorning, Amount: 120}.ToRecord()},
		{Record: Feeding{Date: day(2024, 1, 2), Type: MealEvening, Amount: 95.7}.ToRecord()},
	}
	assert.Equal(t, 95, LastFeedingAmount(rows, DefaultFeedingAmount))

	rows = append(rows, records.Row{Record: records.Record{"Amount": coerce.Missing(coerce.KindFloat, "a bit")}})
	assert.Equal(t, 7, LastFeedingAmount(rows, 7))
}

func TestTaskSuccess(t *testing.T) {
	rows := []records.Row{
		{Record: TaskLog{Date: day(2024, 4, 2), TaskName: "Sit", Success: 4}.ToRecord()},
		{Record: TaskLog{Date: day(2024, 4, 1), TaskName: "Stay", Success: 2}.ToRecord()},
		{Record: TaskLog{Date: day(2024, 4, 1), TaskName: "Sit", Success: 3}.ToRecord()},
	}

	assert.Equal(t, []Point{
		{Date: day(2024, 4, 1), Value: 3},
		{Date: day(2024, 4, 2), Value: 4},
	}, TaskSuccess(rows, "Sit"))
	assert.Empty(t, TaskSuccess(rows, "Roll"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		errs  []ValidationError
		codes []string
	}{
		{"valid training", Training{Date: day(2024, 1, 1), Duration: 5, StressLevel: 1}.Validate(), nil},
		{"training", Training{Duration: 0, StressLevel: 6}.Validate(), []string{ErrMissingField, ErrOutOfRange, ErrOutOfRange}},
		{"feeding meal", Feeding{Date: day(2024, 1, 1), Type: "brunch"}.Validate(), []string{ErrUnknownMeal}},
		{"feeding amount", Feeding{Date: day(2024, 1, 1), Type: MealOther, Amount: -1}.Validate(), []string{ErrOutOfRange}},
		{"task", Task{Name: "  "}.Validate(), []string{ErrBlankName}},
		{"task log", TaskLog{TaskName: "Sit", Success: 0}.Validate(), []string{ErrMissingField, ErrOutOfRange}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var codes []string
			for _, e := range tt.errs {
				codes = append(codes, e.Code)
			}
			assert.Equal(t, tt.codes, codes)
		})
	}

	err := Join(Task{}.Validate())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[E204] TaskName")
	assert.NoError(t, Join(nil))
}

func TestFromRecord(t *testing.T) {
	codec := coerce.NewCodec(coerce.DefaultTokens)
	w, _ := schema.Builtin().Lookup(schema.Feeding)
	rec := records.Record{}
	for col, raw := range map[string]string{
		"Date": "2024-05-06", "Time": "7:30", "Type": MealEvening, "Amount": "", "Finished": "לא", "Notes": "left kibble",
	} {
		rec[col] = codec.Parse(raw, w.Kind(col))
	}

	f, errs := FeedingFromRecord(rec)
	require.Len(t, errs, 1)
	assert.Equal(t, "Amount", errs[0].Field)
	assert.Equal(t, day(2024, 5, 6), f.Date)
	assert.Equal(t, 7, f.Time.Hour())
	assert.Equal(t, 30, f.Time.Minute())
	assert.False(t, f.Finished)
	assert.Equal(t, "left kibble", f.Notes)

	tr, errs := TrainingFromRecord(Training{Date: day(2024, 1, 1), Duration: 15, StressLevel: 2, Notes: "calm"}.ToRecord())
	assert.Empty(t, errs)
	assert.Equal(t, Training{Date: day(2024, 1, 1), Duration: 15, StressLevel: 2, Notes: "calm"}, tr)

	l, errs := TaskLogFromRecord(TaskLog{Date: day(2024, 1, 1), TaskName: "Sit", Success: 5}.ToRecord())
	assert.Empty(t, errs)
	assert.Equal(t, 5, l.Success)

	assert.Equal(t, NewTask("Sit", "daily", "treat"), TaskFromRecord(NewTask("Sit", "daily", "treat").ToRecord()))
}
