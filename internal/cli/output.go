package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/stemtrack/internal/locator"
	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/resolver"
	"github.com/roach88/stemtrack/internal/runfile"
	"github.com/roach88/stemtrack/internal/store"
	"github.com/roach88/stemtrack/internal/track"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Resolution failure (conflict, declined prompt, record not found)
	ExitCommandError = 2 // Command error (invalid paths, database unavailable, bad flags)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// fail wraps err with ExitFailure when it is a resolution outcome the user
// has to act on, and ExitCommandError otherwise.
func fail(message string, err error) *ExitError {
	if isResolutionFailure(err) {
		return WrapExitError(ExitFailure, message, err)
	}
	return WrapExitError(ExitCommandError, message, err)
}

func isResolutionFailure(err error) bool {
	var re *resolver.Error
	var le *locator.Error
	return errors.As(err, &re) ||
		errors.As(err, &le) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrAlreadyAttached) ||
		errors.Is(err, store.ErrDuplicateIdentity) ||
		errors.Is(err, store.ErrHasSuccessor)
}

// GetExitCode extracts the exit code from an error.
// Errors that are not an ExitError are classified like fail does.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return fail("", err).Code
}

// ErrorCode returns the machine-readable code reported for err.
func ErrorCode(err error) string {
	var re *resolver.Error
	if errors.As(err, &re) {
		return string(re.Code)
	}
	var le *locator.Error
	if errors.As(err, &le) {
		return string(le.Code)
	}
	switch {
	case errors.Is(err, store.ErrDuplicateIdentity):
		return "DUPLICATE_IDENTITY"
	case errors.Is(err, store.ErrAlreadyAttached):
		return "ALREADY_ATTACHED"
	case errors.Is(err, store.ErrHasSuccessor):
		return "HAS_SUCCESSOR"
	case errors.Is(err, store.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, runfile.ErrNoRun):
		return "NO_RUN"
	case errors.Is(err, track.ErrNoKeyOrDescription), errors.Is(err, track.ErrUnsafeKey):
		return "USAGE"
	}
	return "COMMAND_ERROR"
}

// Candidate is one competing record listed with a conflict.
type Candidate struct {
	UID  string `json:"uid"`
	Key  string `json:"key,omitempty"`
	Hash string `json:"hash,omitempty"`
}

// candidatesOf returns the competing records carried by err, if any.
func candidatesOf(err error) []Candidate {
	var recs []record.Record
	var re *resolver.Error
	var le *locator.Error
	switch {
	case errors.As(err, &re):
		recs = re.Candidates
	case errors.As(err, &le):
		recs = le.Candidates
	}
	if len(recs) == 0 {
		return nil
	}
	out := make([]Candidate, len(recs))
	for i, r := range recs {
		out[i] = Candidate{UID: string(r.UID), Key: r.Key, Hash: string(r.ContentHash)}
	}
	return out
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "CONFLICT", "NOT_FOUND", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // competing candidates
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail outputs err with its code and, for conflicts, the competing
// candidates.
func (f *OutputFormatter) Fail(err error) error {
	var details interface{}
	if c := candidatesOf(err); c != nil {
		details = c
	}
	return f.Error(ErrorCode(err), err.Error(), details)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
