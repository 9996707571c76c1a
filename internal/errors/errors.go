// Package errors defines the stable error code system for clipsift.
package errors

import (
	"errors"
	"fmt"
	"io"
)

// Code is a stable error code string.
type Code string

// Error codes. Stable public contract; scripts match on these.
const (
	EUsage    Code = "E_USAGE"
	EInternal Code = "E_INTERNAL"

	// Configuration
	EInvalidConfig Code = "E_INVALID_CONFIG"
	EInvalidValue  Code = "E_INVALID_VALUE" // score/label value rejected at the CLI boundary

	// Persistence (stage-fatal)
	EStoreCorrupt  Code = "E_STORE_CORRUPT"  // state file unreadable where a strict read was requested
	EPersistFailed Code = "E_PERSIST_FAILED" // state/ledger/artifact write failed
	ELockFailed    Code = "E_LOCK_FAILED"    // exclusive lock could not be acquired

	// Run lifecycle
	ENoUnits              Code = "E_NO_UNITS"              // nothing to process under the processing root
	EUnitNotFound         Code = "E_UNIT_NOT_FOUND"        // unit id not tracked in the namespace
	EUnitAmbiguous        Code = "E_UNIT_AMBIGUOUS"        // unit reference matches more than one unit
	EStageFailed          Code = "E_STAGE_FAILED"          // a stage's worker pool reported failure
	EStopped              Code = "E_STOPPED"               // stop requested; later stages not launched
	EConfirmationRequired Code = "E_CONFIRMATION_REQUIRED" // destructive op without --yes

	// Per-unit (recovered locally)
	EScorerFailed   Code = "E_SCORER_FAILED"   // external perception command failed
	EClassifyFailed Code = "E_CLASSIFY_FAILED" // semantic classification call failed
	ESourceMissing  Code = "E_SOURCE_MISSING"  // unit media file not found under the processing root
	ECopyFailed     Code = "E_COPY_FAILED"     // executor copy failed

	EUnsafePath Code = "E_UNSAFE_PATH" // target outside the namespace directory
)

// ClipError is the standard error type for clipsift errors.
type ClipError struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string // optional structured context
}

// Error returns the stable error format: "CODE: message".
func (e *ClipError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *ClipError) Unwrap() error {
	return e.Cause
}

// New creates a new ClipError with the given code and message.
func New(code Code, msg string) error {
	return &ClipError{Code: code, Msg: msg}
}

// NewWithDetails creates a new ClipError with code, message, and details.
// Details map is copied (nil if empty).
func NewWithDetails(code Code, msg string, details map[string]string) error {
	return &ClipError{Code: code, Msg: msg, Details: copyDetails(details)}
}

// Wrap creates a new ClipError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &ClipError{Code: code, Msg: msg, Cause: err}
}

// WrapWithDetails creates a new ClipError wrapping an underlying error with details.
func WrapWithDetails(code Code, msg string, err error, details map[string]string) error {
	return &ClipError{Code: code, Msg: msg, Cause: err, Details: copyDetails(details)}
}

// GetCode extracts the error code from an error, or empty string if not a ClipError.
func GetCode(err error) Code {
	var ce *ClipError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// AsClipError returns (*ClipError, true) if err is or wraps a ClipError.
func AsClipError(err error) (*ClipError, bool) {
	var ce *ClipError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsFatal reports whether err must abort the whole run rather than a single unit.
// Persistence and lock failures mean the shared state can no longer be trusted.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case EPersistFailed, ELockFailed, EStoreCorrupt, EStageFailed, EInternal:
		return true
	}
	return false
}

func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}

// ExitCode returns the appropriate exit code for an error.
// Returns 0 if err is nil, 2 for E_USAGE, 1 for all other errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if GetCode(err) == EUsage {
		return 2
	}
	return 1
}

// Print writes the error to w in the stable stderr format:
//
//	error_code: <CODE>
//	<message>
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	var ce *ClipError
	if errors.As(err, &ce) {
		_, _ = fmt.Fprintf(w, "error_code: %s\n", ce.Code)
		_, _ = fmt.Fprintln(w, ce.Msg)
	} else {
		_, _ = fmt.Fprintln(w, err.Error())
	}
}
