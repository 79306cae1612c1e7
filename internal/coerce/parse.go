package coerce

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Canonical layouts for written cells.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Tokens is the localized boolean token pair written to the sheet.
type Tokens struct {
	Yes string `yaml:"yes"`
	No  string `yaml:"no"`
}

// DefaultTokens is the Hebrew yes/no pair used by the original sheets.
var DefaultTokens = Tokens{Yes: "כן", No: "לא"}

// Codec parses and formats cells using a fixed token pair.
type Codec struct {
	tokens Tokens
}

// NewCodec returns a Codec. Empty tokens fall back to DefaultTokens.
func NewCodec(tokens Tokens) *Codec {
	if tokens.Yes == "" {
		tokens.Yes = DefaultTokens.Yes
	}
	if tokens.No == "" {
		tokens.No = DefaultTokens.No
	}
	return &Codec{tokens: tokens}
}

// Tokens returns the codec's boolean token pair.
func (c *Codec) Tokens() Tokens {
	return c.tokens
}

// Parse coerces raw into kind. It never panics and never returns an error.
func (c *Codec) Parse(raw string, kind Kind) Value {
	switch kind {
	case KindDate:
		if t, ok := ParseDate(raw); ok {
			return Date(t)
		}
	case KindTime:
		if t, ok := ParseTime(raw); ok {
			return Clock(t.Hour(), t.Minute())
		}
	case KindInt:
		if f, ok := ParseNumber(raw); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return Int(int64(f))
		}
	case KindFloat:
		if f, ok := ParseNumber(raw); ok {
			return Float(f)
		}
	case KindBool:
		if b, ok := c.ParseBool(raw); ok {
			return Bool(b)
		}
	default:
		return String(raw)
	}
	return Missing(kind, raw)
}

// Format renders v as canonical cell text. Invalid values keep their raw
// text so a rewrite never destroys data it could not interpret.
func (c *Codec) Format(v Value) string {
	if !v.Valid {
		return v.Raw
	}
	if v.Kind == KindBool {
		if v.b {
			return c.tokens.Yes
		}
		return c.tokens.No
	}
	return v.text()
}

// Normalize parses raw as kind and formats it back to canonical text.
func (c *Codec) Normalize(raw string, kind Kind) string {
	return c.Format(c.Parse(raw, kind))
}

// ParseBool accepts the configured tokens plus true/false, yes/no and 1/0.
func (c *Codec) ParseBool(raw string) (bool, bool) {
	s := clean(raw)
	if s == "" {
		return false, false
	}
	switch {
	case strings.EqualFold(s, clean(c.tokens.Yes)):
		return true, true
	case strings.EqualFold(s, clean(c.tokens.No)):
		return false, true
	}
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1", "v", "✓":
		return true, true
	case "false", "no", "n", "0", "x", "✗":
		return false, true
	}
	return false, false
}

var dateLayouts = []string{
	DateLayout,
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"2.1.2006",
	"02-01-2006",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate accepts the layouts in dateLayouts and spreadsheet serial days.
// Day-first layouts win over month-first for slash dates.
func ParseDate(raw string) (time.Time, bool) {
	s := clean(raw)
	if s == "" || strings.ContainsAny(s, "\n\r") {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	// Serial day numbers between 1954 and 2119.
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 20000 && f < 80000 {
		return excelEpoch.AddDate(0, 0, int(f)), true
	}
	return time.Time{}, false
}

var timeLayouts = []string{
	TimeLayout,
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3:04 pm",
	"15.04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseTime returns a time-of-day. Date parts of datetime inputs are dropped.
func ParseTime(raw string) (time.Time, bool) {
	s := clean(raw)
	if s == "" || strings.ContainsAny(s, "\n\r") {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(0, 1, 1, t.Hour(), t.Minute(), 0, 0, time.UTC), true
		}
	}
	// "8:5" style single-digit minutes
	if h, m, ok := strings.Cut(s, ":"); ok {
		hour, err1 := strconv.Atoi(h)
		minute, err2 := strconv.Atoi(m)
		if err1 == nil && err2 == nil && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
			return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

var numberRX = regexp.MustCompile(`[-+]?(?:\d+(?:[.,'\x{00A0} ]\d+)*|[.,]\d+)`)

// ParseNumber extracts one number from raw. Unit tokens around the number
// ("120 g", "1.5h") are ignored; a second number makes the cell ambiguous.
func ParseNumber(raw string) (float64, bool) {
	s := clean(raw)
	if s == "" || strings.ContainsAny(s, "\n\r") {
		return 0, false
	}
	loc := numberRX.FindStringIndex(s)
	if loc == nil {
		return 0, false
	}
	if strings.ContainsAny(s[:loc[0]]+s[loc[1]:], "0123456789") {
		return 0, false
	}
	f, err := strconv.ParseFloat(normalizeSeparators(s[loc[0]:loc[1]]), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// normalizeSeparators rewrites grouping and decimal marks to Go syntax.
func normalizeSeparators(num string) string {
	num = strings.NewReplacer(" ", "", "'", "", "\u00a0", "").Replace(num)
	dot := strings.LastIndex(num, ".")
	comma := strings.LastIndex(num, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			num = strings.ReplaceAll(num, ".", "")
			return strings.Replace(num, ",", ".", 1)
		}
		return strings.ReplaceAll(num, ",", "")
	case comma >= 0:
		if strings.Count(num, ",") == 1 && len(num)-comma-1 != 3 {
			return strings.Replace(num, ",", ".", 1)
		}
		return strings.ReplaceAll(num, ",", "")
	case dot >= 0 && strings.Count(num, ".") > 1:
		return strings.ReplaceAll(num, ".", "")
	}
	return num
}

// clean NFC-normalizes, folds full-width forms and trims whitespace.
func clean(raw string) string {
	return strings.TrimSpace(width.Fold.String(norm.NFC.String(raw)))
}
