package logbook

import (
	"slices"
	"strings"
	"time"

	"github.com/roach88/petlog/internal/coerce"
	"github.com/roach88/petlog/internal/records"
)

// Meal types offered for feedings.
const (
	MealMorning = "בוקר"
	MealEvening = "ערב"
	MealOther   = "אחר"
)

// MealTypes lists the meal types in menu order.
var MealTypes = []string{MealMorning, MealEvening, MealOther}

// StatusActive marks a task that can be logged.
const StatusActive = "Active"

// Score bounds shared by StressLevel and Success.
const (
	MinScore = 1
	MaxScore = 5
)

// DefaultFeedingAmount is the feeding amount offered when no history exists.
const DefaultFeedingAmount = 100

// Training is one alone-time exposure session.
type Training struct {
	Date time.Time `json:"date"`
	// Duration is in minutes.
	Duration    float64 `json:"duration"`
	StressLevel int     `json:"stress_level"`
	Notes       string  `json:"notes,omitempty"`
}

// Validate reports every invalid field.
func (t Training) Validate() []ValidationError {
	var errs []ValidationError
	if t.Date.IsZero() {
		errs = append(errs, missing("Date"))
	}
	if t.Duration < 1 {
		errs = append(errs, ValidationError{Field: "Duration", Message: "must be at least 1 minute", Code: ErrOutOfRange})
	}
	if t.StressLevel < MinScore || t.StressLevel > MaxScore {
		errs = append(errs, outOfRange("StressLevel", MinScore, MaxScore))
	}
	return errs
}

// ToRecord converts t for the Training worksheet.
func (t Training) ToRecord() records.Record {
	return records.Record{
		"Date":        coerce.Date(t.Date),
		"Duration":    coerce.Float(t.Duration),
		"StressLevel": coerce.Int(int64(t.StressLevel)),
		"Notes":       coerce.String(t.Notes),
	}
}

// TrainingFromRecord reads a Training row.
func TrainingFromRecord(rec records.Record) (Training, []ValidationError) {
	var t Training
	var errs []ValidationError
	t.Date, errs = readDate(rec, "Date", errs)
	t.Duration, errs = readFloat(rec, "Duration", errs)
	var stress int64
	stress, errs = readInt(rec, "StressLevel", errs)
	t.StressLevel = int(stress)
	t.Notes = rec["Notes"].Str()
	return t, errs
}

// Feeding is one meal.
type Feeding struct {
	Date time.Time `json:"date"`
	// Time is the time of day; only hour and minute are kept.
	Time time.Time `json:"time"`
	Type string    `json:"type"`
	// Amount is in grams.
	Amount   float64 `json:"amount"`
	Finished bool    `json:"finished"`
	Notes    string  `json:"notes,omitempty"`
}

// Validate reports every invalid field.
func (f Feeding) Validate() []ValidationError {
	var errs []ValidationError
	if f.Date.IsZero() {
		errs = append(errs, missing("Date"))
	}
	if !slices.Contains(MealTypes, f.Type) {
		errs = append(errs, ValidationError{
			Field:   "Type",
			Message: "must be one of " + strings.Join(MealTypes, ", "),
			Code:    ErrUnknownMeal,
		})
	}
	if f.Amount < 0 {
		errs = append(errs, ValidationError{Field: "Amount", Message: "cannot be negative", Code: ErrOutOfRange})
	}
	return errs
}

// ToRecord converts f for the Feeding worksheet.
func (f Feeding) ToRecord() records.Record {
	return records.Record{
		"Date":     coerce.Date(f.Date),
		"Time":     coerce.Clock(f.Time.Hour(), f.Time.Minute()),
		"Type":     coerce.String(f.Type),
		"Amount":   coerce.Float(f.Amount),
		"Finished": coerce.Bool(f.Finished),
		"Notes":    coerce.String(f.Notes),
	}
}

// FeedingFromRecord reads a Feeding row.
func FeedingFromRecord(rec records.Record) (Feeding, []ValidationError) {
	var f Feeding
	var errs []ValidationError
	f.Date, errs = readDate(rec, "Date", errs)
	if t, ok := rec["Time"].Time(); ok {
		f.Time = t
	}
	f.Type = rec["Type"].Str()
	f.Amount, errs = readFloat(rec, "Amount", errs)
	f.Finished, _ = rec["Finished"].Boolean()
	f.Notes = rec["Notes"].Str()
	return f, errs
}

// Task is a homework exercise definition.
type Task struct {
	Name        string `json:"name"`
	Frequency   string `json:"frequency,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
}

// NewTask returns an active task.
func NewTask(name, frequency, description string) Task {
	return Task{Name: name, Frequency: frequency, Description: description, Status: StatusActive}
}

// Validate reports every invalid field.
func (t Task) Validate() []ValidationError {
	if strings.TrimSpace(t.Name) == "" {
		return []ValidationError{{Field: "TaskName", Message: "cannot be blank", Code: ErrBlankName}}
	}
	return nil
}

// ToRecord converts t for the Tasks worksheet.
func (t Task) ToRecord() records.Record {
	return records.Record{
		"TaskName":    coerce.String(t.Name),
		"Frequency":   coerce.String(t.Frequency),
		"Description": coerce.String(t.Description),
		"Status":      coerce.String(t.Status),
	}
}

// TaskFromRecord reads a Tasks row.
func TaskFromRecord(rec records.Record) Task {
	return Task{
		Name:        rec["TaskName"].Str(),
		Frequency:   rec["Frequency"].Str(),
		Description: rec["Description"].Str(),
		Status:      rec["Status"].Str(),
	}
}

// TaskLog is one performance of a task.
type TaskLog struct {
	Date     time.Time `json:"date"`
	TaskName string    `json:"task_name"`
	Success  int       `json:"success"`
	Notes    string    `json:"notes,omitempty"`
}

// Validate reports every invalid field.
func (l TaskLog) Validate() []ValidationError {
	var errs []ValidationError
	if l.Date.IsZero() {
		errs = append(errs, missing("Date"))
	}
	if strings.TrimSpace(l.TaskName) == "" {
		errs = append(errs, ValidationError{Field: "TaskName", Message: "cannot be blank", Code: ErrBlankName})
	}
	if l.Success < MinScore || l.Success > MaxScore {
		errs = append(errs, outOfRange("Success", MinScore, MaxScore))
	}
	return errs
}

// ToRecord converts l for the TaskLogs worksheet.
func (l TaskLog) ToRecord() records.Record {
	return records.Record{
		"Date":     coerce.Date(l.Date),
		"TaskName": coerce.String(l.TaskName),
		"Success":  coerce.Int(int64(l.Success)),
		"Notes":    coerce.String(l.Notes),
	}
}

// TaskLogFromRecord reads a TaskLogs row.
func TaskLogFromRecord(rec records.Record) (TaskLog, []ValidationError) {
	var l TaskLog
	var errs []ValidationError
	l.Date, errs = readDate(rec, "Date", errs)
	l.TaskName = rec["TaskName"].Str()
	var success int64
	success, errs = readInt(rec, "Success", errs)
	l.Success = int(success)
	l.Notes = rec["Notes"].Str()
	return l, errs
}

func readDate(rec records.Record, field string, errs []ValidationError) (time.Time, []ValidationError) {
	t, ok := rec[field].Time()
	if !ok {
		return time.Time{}, append(errs, missing(field))
	}
	return t, errs
}

func readFloat(rec records.Record, field string, errs []ValidationError) (float64, []ValidationError) {
	f, ok := rec[field].Float64()
	if !ok {
		return 0, append(errs, missing(field))
	}
	return f, errs
}

func readInt(rec records.Record, field string, errs []ValidationError) (int64, []ValidationError) {
	i, ok := rec[field].Int64()
	if !ok {
		return 0, append(errs, missing(field))
	}
	return i, errs
}
