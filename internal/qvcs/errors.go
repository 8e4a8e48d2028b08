package qvcs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: a project, branch, directory, file, revision or commit is missing.
	ErrNotFound = errors.New("not found")
	// ErrStorageFailure wraps every error returned by the persistence layer.
	ErrStorageFailure = errors.New("storage failure")
	// ErrUnauthorized is passed through from the authorizer.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidRequest: the request is malformed or inconsistent.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrFatal marks corrupted state such as a branch ancestry cycle.
	ErrFatal = errors.New("fatal invariant violation")
)

// ErrorKind is the machine-readable classification carried by error responses.
type ErrorKind string

const (
	KindNotFound       ErrorKind = "NotFound"
	KindStorageFailure ErrorKind = "StorageFailure"
	KindUnauthorized   ErrorKind = "Unauthorized"
	KindInvalidRequest ErrorKind = "InvalidRequest"
	KindFatal          ErrorKind = "Fatal"
)

// Classify maps an error to its kind. Errors outside the taxonomy are treated
// as storage failures, since everything else the core does is pure.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrFatal):
		return KindFatal
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindStorageFailure
	}
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidRequest)
}
