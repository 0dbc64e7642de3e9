package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnectionFailed means the target store was unreachable or rejected
	// credentials. Fatal to the request; never retried automatically.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrIntrospection means schema introspection failed entirely. Partial
	// failures on individual tables degrade instead of raising this.
	ErrIntrospection = errors.New("schema introspection failed")

	// ErrNotConnected means no schema catalog is available yet.
	ErrNotConnected = errors.New("not connected to a database")

	// ErrTimeout means query execution or document search exceeded its bound.
	ErrTimeout = errors.New("operation timed out")

	// ErrUnsafeParameter means a user-supplied value tripped the injection
	// screen and execution was refused.
	ErrUnsafeParameter = errors.New("unsafe parameter value")

	// ErrCacheCorruption means an internal cache invariant was violated.
	// The cache resets itself rather than serving possibly-wrong data.
	ErrCacheCorruption = errors.New("cache corruption detected")
)

// QueryNotUnderstoodError is returned when the classifier/planner could not
// resolve a supported operation shape. It carries what was and was not
// recognized so callers can explain the failure to the end user.
type QueryNotUnderstoodError struct {
	Matched   []string // tokens bound to catalog elements
	Unmatched []string // tokens left as free text
	Reason    string
}

func (e *QueryNotUnderstoodError) Error() string {
	var sb strings.Builder
	sb.WriteString("query not understood")
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if len(e.Matched) > 0 {
		fmt.Fprintf(&sb, " (recognized: %s)", strings.Join(e.Matched, ", "))
	}
	if len(e.Unmatched) > 0 {
		fmt.Fprintf(&sb, " (not recognized: %s)", strings.Join(e.Unmatched, ", "))
	}
	return sb.String()
}
