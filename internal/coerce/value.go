package coerce

import (
	"strconv"
	"time"
)

// Value is a coerced cell. The zero Value is a missing string.
type Value struct {
	Kind  Kind
	Valid bool
	// Raw is the original cell text, kept for invalid values.
	Raw string

	s string
	t time.Time
	i int64
	f float64
	b bool
}

// String returns a valid string value.
func String(s string) Value {
	return Value{Kind: KindString, Valid: true, Raw: s, s: s}
}

// Date returns a valid date value truncated to the calendar day.
func Date(t time.Time) Value {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Value{Kind: KindDate, Valid: true, t: d}
}

// Clock returns a valid time-of-day value.
func Clock(hour, minute int) Value {
	return Value{Kind: KindTime, Valid: true, t: time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC)}
}

// Int returns a valid integer value.
func Int(i int64) Value {
	return Value{Kind: KindInt, Valid: true, i: i}
}

// Float returns a valid float value.
func Float(f float64) Value {
	return Value{Kind: KindFloat, Valid: true, f: f}
}

// Bool returns a valid boolean value.
func Bool(b bool) Value {
	return Value{Kind: KindBool, Valid: true, b: b}
}

// Missing returns the invalid marker for kind, retaining the raw text.
func Missing(kind Kind, raw string) Value {
	return Value{Kind: kind, Raw: raw}
}

// Str returns the string payload, or the raw text of an invalid value.
func (v Value) Str() string {
	if v.Kind == KindString && v.Valid {
		return v.s
	}
	return v.Raw
}

// Time returns the date or time-of-day payload.
func (v Value) Time() (time.Time, bool) {
	if !v.Valid || (v.Kind != KindDate && v.Kind != KindTime) {
		return time.Time{}, false
	}
	return v.t, true
}

// Int64 returns the integer payload. Integral floats convert.
func (v Value) Int64() (int64, bool) {
	if !v.Valid {
		return 0, false
	}
	switch v.Kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f == float64(int64(v.f)) {
			return int64(v.f), true
		}
	}
	return 0, false
}

// Float64 returns the numeric payload of int and float values.
func (v Value) Float64() (float64, bool) {
	if !v.Valid {
		return 0, false
	}
	switch v.Kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Boolean returns the boolean payload.
func (v Value) Boolean() (bool, bool) {
	if !v.Valid || v.Kind != KindBool {
		return false, false
	}
	return v.b, true
}

// IsEmpty reports whether the value is a missing marker with no raw text.
func (v Value) IsEmpty() bool {
	return !v.Valid && v.Raw == ""
}

// text formats a valid value. Booleans need tokens and are handled by Codec.
func (v Value) text() string {
	switch v.Kind {
	case KindDate:
		return v.t.Format(DateLayout)
	case KindTime:
		return v.t.Format(TimeLayout)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	default:
		return v.s
	}
}
