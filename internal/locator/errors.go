package locator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/stemtrack/internal/record"
)

// ErrorCode categorizes lookup failures.
type ErrorCode string

const (
	// CodeUnrecognizedURL indicates a URL without any registry segment.
	CodeUnrecognizedURL ErrorCode = "UNRECOGNIZED_URL"

	// CodeNotFound indicates no record matches the reference.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeAmbiguousPrefix indicates several records match a uid prefix and
	// the newest two share a creation time.
	CodeAmbiguousPrefix ErrorCode = "AMBIGUOUS_PREFIX"

	// CodeAmbiguousKey is CodeAmbiguousPrefix for key lookups.
	CodeAmbiguousKey ErrorCode = "AMBIGUOUS_KEY"
)

// Error is returned by every failed lookup.
type Error struct {
	Code       ErrorCode
	Message    string
	Candidates []record.Record
}

func (e *Error) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	uids := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		uids[i] = string(c.UID)
	}
	return fmt.Sprintf("%s: %s (candidates: %s)", e.Code, e.Message, strings.Join(uids, ", "))
}

// IsNotFound reports whether err is a NOT_FOUND lookup error.
func IsNotFound(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.Code == CodeNotFound
}

// IsAmbiguous reports whether err is an AMBIGUOUS_PREFIX or AMBIGUOUS_KEY
// lookup error.
func IsAmbiguous(err error) bool {
	var le *Error
	return errors.As(err, &le) && (le.Code == CodeAmbiguousPrefix || le.Code == CodeAmbiguousKey)
}

// IsUnrecognizedURL reports whether err is an UNRECOGNIZED_URL error.
func IsUnrecognizedURL(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.Code == CodeUnrecognizedURL
}
