package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/stemtrack/internal/record"
)

// ErrorCode categorizes resolution failures.
type ErrorCode string

const (
	// CodeMalformedIdentifier indicates an embedded or supplied token is not
	// a valid stem or uid.
	CodeMalformedIdentifier ErrorCode = "MALFORMED_IDENTIFIER"

	// CodeStemNotFound indicates an explicit stem has no versions and
	// creation was not requested.
	CodeStemNotFound ErrorCode = "STEM_NOT_FOUND"

	// CodeConflict indicates resolution needs human judgement.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeAborted indicates a consent prompt was declined.
	CodeAborted ErrorCode = "ABORTED"
)

// Error is returned for every failed resolution. Candidates names the
// competing records so the user can pick a corrective command.
type Error struct {
	Code       ErrorCode
	Message    string
	Candidates []record.Record
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if len(e.Candidates) > 0 {
		b.WriteString(" (candidates:")
		for i, c := range e.Candidates {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, " %s key=%q hash=%s", c.UID, c.Key, c.ContentHash)
		}
		b.WriteByte(')')
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func codeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsConflict reports whether err is a CONFLICT resolution error.
func IsConflict(err error) bool {
	return codeOf(err) == CodeConflict
}

// IsAborted reports whether err is a declined consent prompt.
func IsAborted(err error) bool {
	return codeOf(err) == CodeAborted
}

// IsStemNotFound reports whether err is a STEM_NOT_FOUND error.
func IsStemNotFound(err error) bool {
	return codeOf(err) == CodeStemNotFound
}

// IsMalformed reports whether err is a MALFORMED_IDENTIFIER error.
func IsMalformed(err error) bool {
	return codeOf(err) == CodeMalformedIdentifier
}

func conflict(msg string, candidates ...record.Record) *Error {
	return &Error{Code: CodeConflict, Message: msg, Candidates: candidates}
}

// Declined returns the ABORTED error for a prompt that was not confirmed.
func Declined(p Prompt) error {
	return aborted(p)
}

func aborted(p Prompt) *Error {
	return &Error{Code: CodeAborted, Message: "declined: " + p.String()}
}

func malformed(token string, err error) *Error {
	return &Error{
		Code:    CodeMalformedIdentifier,
		Message: fmt.Sprintf("%q is neither a 12-character stem nor a 16-character uid", token),
		Err:     err,
	}
}
