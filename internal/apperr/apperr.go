// Package apperr defines the structured errors that cross the wire.
// Codes are stable identifiers; messages are free text and may change.
package apperr

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Code identifies an error condition to clients.
type Code string

const (
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeLanguageUnknown     Code = "LANGUAGE_UNKNOWN"
	CodeSessionNotFound     Code = "SESSION_NOT_FOUND"
	CodeSessionClosed       Code = "SESSION_CLOSED"
	CodeIllegalState        Code = "ILLEGAL_STATE"
	CodeTranslatorFailed    Code = "TRANSLATOR_FAILED"
	CodeVerifierUnavailable Code = "VERIFIER_UNAVAILABLE"
	CodeVerificationFatal   Code = "VERIFICATION_FATAL"
	CodeTimeout             Code = "TIMEOUT"
	CodeCancelled           Code = "CANCELLED"
	CodeInternal            Code = "INTERNAL"
)

// Error is a coded error with an optional cause. Internal errors carry a
// correlation id that is logged server-side and echoed to the client instead
// of the underlying detail.
type Error struct {
	Code          Code   `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Cause         error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a coded error.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Internal creates an INTERNAL error with a fresh correlation id. The cause
// is retained for logging but never serialized.
func Internal(err error) *Error {
	return &Error{
		Code:          CodeInternal,
		Message:       "internal error",
		CorrelationID: newCorrelationID(),
		Cause:         err,
	}
}

// CodeOf extracts the code from err, unwrapping as needed. Uncoded errors
// report CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func newCorrelationID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}
