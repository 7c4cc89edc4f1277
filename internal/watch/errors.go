package watch

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry and store operations.
var (
	// ErrJobNotFound indicates no job exists for the given identity.
	ErrJobNotFound = errors.New("watch: job not found")

	// ErrDuplicateJob indicates a job with the same guild and name exists.
	ErrDuplicateJob = errors.New("watch: duplicate job")

	// ErrInvalidDefinition wraps validation failures of a job definition.
	ErrInvalidDefinition = errors.New("watch: invalid job definition")

	// ErrNotLoaded is returned by registry operations invoked before Load.
	ErrNotLoaded = errors.New("watch: registry not loaded")
)

// ResourceFetchError reports that the target resource could not be retrieved
// at all (dead host, refused connection, error status, blocked URL). Jobs
// that hit it are disabled by the runner.
type ResourceFetchError struct {
	URL string

	// Message is the human-readable reason reported to the job's channel.
	Message string

	Err error
}

// NewResourceFetchError builds a ResourceFetchError from a cause.
func NewResourceFetchError(url string, err error) *ResourceFetchError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ResourceFetchError{URL: url, Message: msg, Err: err}
}

// Error implements the error interface.
func (e *ResourceFetchError) Error() string {
	return fmt.Sprintf("watch: fetch %s: %s", e.URL, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ResourceFetchError) Unwrap() error {
	return e.Err
}

// IsResourceFetchError reports whether err carries a ResourceFetchError and
// returns it.
func IsResourceFetchError(err error) (*ResourceFetchError, bool) {
	var rfe *ResourceFetchError
	if errors.As(err, &rfe) {
		return rfe, true
	}
	return nil, false
}

// FailureKind classifies a failed run.
type FailureKind int

// Failure kinds, in the order the runner checks them.
const (
	FailureNone FailureKind = iota
	FailureResourceFetch
	FailureTransient
)

// String implements fmt.Stringer.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureResourceFetch:
		return "resource_fetch"
	case FailureTransient:
		return "transient"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}
