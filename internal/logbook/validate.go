package logbook

import (
	"errors"
	"fmt"
)

// Validation error codes (E200-E299)
const (
	ErrMissingField = "E201" // required field absent or unreadable
	ErrOutOfRange   = "E202" // numeric field outside its allowed range
	ErrUnknownMeal  = "E203" // feeding type not one of the meal types
	ErrBlankName    = "E204" // task name is blank
)

// ValidationError describes one invalid field of an entry.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Join folds validation errors into one error, or nil.
func Join(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	list := make([]error, len(errs))
	for i, e := range errs {
		list[i] = e
	}
	return errors.Join(list...)
}

func missing(field string) ValidationError {
	return ValidationError{Field: field, Message: "required", Code: ErrMissingField}
}

func outOfRange(field string, lo, hi int) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be between %d and %d", lo, hi),
		Code:    ErrOutOfRange,
	}
}
