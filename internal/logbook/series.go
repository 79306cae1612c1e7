package logbook

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/fvbommel/sortorder"

	"github.com/roach88/petlog/internal/records"
)

// DailyTotal is the feeding amount of one calendar day.
type DailyTotal struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
	Meals  int       `json:"meals"`
}

// Point is one value of a time series.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// DailyFeeding sums Amount per date, oldest first. Rows without a readable
// date are skipped; unreadable amounts count as zero.
func DailyFeeding(rows []records.Row) []DailyTotal {
	byDay := make(map[time.Time]*DailyTotal)
	for _, row := range rows {
		day, ok := row.Record["Date"].Time()
		if !ok {
			continue
		}
		total, seen := byDay[day]
		if !seen {
			total = &DailyTotal{Date: day}
			byDay[day] = total
		}
		if amount, ok := row.Record["Amount"].Float64(); ok {
			total.Amount += amount
		}
		total.Meals++
	}

	out := make([]DailyTotal, 0, len(byDay))
	for _, t := range byDay {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// TrainingSeries returns (date, duration) for rows where both are readable,
// sorted by date. Sessions on the same day keep sheet order.
func TrainingSeries(rows []records.Row) []Point {
	return series(rows, "Date", "Duration", nil)
}

// TaskSuccess returns the success scores logged for task over time.
func TaskSuccess(rows []records.Row, task string) []Point {
	return series(rows, "Date", "Success", func(rec records.Record) bool {
		return rec["TaskName"].Str() == task
	})
}

func series(rows []records.Row, dateCol, valueCol string, keep func(records.Record) bool) []Point {
	out := []Point{}
	for _, row := range rows {
		if keep != nil && !keep(row.Record) {
			continue
		}
		day, ok := row.Record[dateCol].Time()
		if !ok {
			continue
		}
		v, ok := row.Record[valueCol].Float64()
		if !ok {
			continue
		}
		out = append(out, Point{Date: day, Value: v})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// ActiveTasks returns the distinct names of tasks with Status Active, in
// natural order.
func ActiveTasks(rows []records.Row) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, row := range rows {
		if row.Record["Status"].Str() != StatusActive {
			continue
		}
		name := strings.TrimSpace(row.Record["TaskName"].Str())
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Sort(sortorder.Natural(names))
	return names
}

// LastFeedingAmount returns the amount of the last feeding row as whole
// grams, or fallback when there are no rows or it is unreadable.
func LastFeedingAmount(rows []records.Row, fallback int) int {
	if len(rows) == 0 {
		return fallback
	}
	amount, ok := rows[len(rows)-1].Record["Amount"].Float64()
	if !ok {
		return fallback
	}
	return int(math.Trunc(amount))
}

// Summary condenses a series for reports.
type Summary struct {
	Count int       `json:"count"`
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
	Mean  float64   `json:"mean"`
}

// Summarize returns count, date range and value statistics of points.
func Summarize(points []Point) Summary {
	if len(points) == 0 {
		return Summary{}
	}
	s := Summary{
		Count: len(points),
		First: points[0].Date,
		Last:  points[len(points)-1].Date,
		Min:   points[0].Value,
		Max:   points[0].Value,
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
		s.Min = math.Min(s.Min, p.Value)
		s.Max = math.Max(s.Max, p.Value)
	}
	s.Mean = sum / float64(len(points))
	return s
}
