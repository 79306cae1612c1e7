package sheet

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store failures.
type ErrorCode string

const (
	// ErrCodeRateLimited is a transient quota rejection; retried.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"

	// ErrCodeUnavailable is a transient-or-permanent failure, or an
	// exhausted retry budget.
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"

	// ErrCodeNotFound means the resource or worksheet does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeSchemaMismatch means the data does not fit the worksheet header.
	ErrCodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"

	// ErrCodePartialWrite means a multi-step write stopped part way and the
	// worksheet may need manual recovery.
	ErrCodePartialWrite ErrorCode = "PARTIAL_WRITE"
)

// Error is a classified store failure.
type Error struct {
	Code      ErrorCode
	Op        string
	Worksheet string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Worksheet != "" {
		return fmt.Sprintf("%s: %s %s: %s", e.Code, e.Op, e.Worksheet, msg)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsRateLimited reports whether err is a RateLimited failure.
func IsRateLimited(err error) bool { return CodeOf(err) == ErrCodeRateLimited }

// IsUnavailable reports whether err is an Unavailable failure.
func IsUnavailable(err error) bool { return CodeOf(err) == ErrCodeUnavailable }

// IsNotFound reports whether err is a NotFound failure.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsSchemaMismatch reports whether err is a SchemaMismatch failure.
func IsSchemaMismatch(err error) bool { return CodeOf(err) == ErrCodeSchemaMismatch }

// IsPartialWrite reports whether err is a PartialWrite failure.
func IsPartialWrite(err error) bool { return CodeOf(err) == ErrCodePartialWrite }

// NewRateLimited wraps a throttling rejection from a backend.
func NewRateLimited(op string, err error) *Error {
	return &Error{Code: ErrCodeRateLimited, Op: op, Message: "rate limited", Err: err}
}

// NewUnavailable wraps a backend failure that is not otherwise classified.
func NewUnavailable(op string, err error) *Error {
	return &Error{Code: ErrCodeUnavailable, Op: op, Message: "store unavailable", Err: err}
}

// NewNotFound reports a missing resource or worksheet.
func NewNotFound(op, worksheet, what string) *Error {
	return &Error{Code: ErrCodeNotFound, Op: op, Worksheet: worksheet, Message: what + " not found"}
}

// NewSchemaMismatch reports data that does not fit a worksheet header.
func NewSchemaMismatch(op, worksheet, message string) *Error {
	return &Error{Code: ErrCodeSchemaMismatch, Op: op, Worksheet: worksheet, Message: message}
}

// NewPartialWrite reports a write that stopped after modifying the worksheet.
func NewPartialWrite(op, worksheet string, err error) *Error {
	return &Error{
		Code:      ErrCodePartialWrite,
		Op:        op,
		Worksheet: worksheet,
		Message:   "worksheet may be partially written, rerun replace from a snapshot to restore it",
		Err:       err,
	}
}

// classify tags unclassified errors as Unavailable and fills in the worksheet.
func classify(op, worksheet string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		if se.Worksheet == "" && worksheet != "" {
			cp := *se
			cp.Worksheet = worksheet
			if cp.Op == "" {
				cp.Op = op
			}
			return &cp
		}
		return err
	}
	return &Error{Code: ErrCodeUnavailable, Op: op, Worksheet: worksheet, Message: "store unavailable", Err: err}
}
