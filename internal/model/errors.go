package model

import (
	"errors"
	"fmt"
)

// Client errors. These are returned to the caller and never retried.
var (
	// ErrIncompleteEntity is returned when a required property is missing or
	// a required link cannot be derived
	ErrIncompleteEntity = errors.New("incomplete entity")

	// ErrNoSuchEntity is returned when a referenced entity does not exist
	ErrNoSuchEntity = errors.New("no such entity")

	// ErrInvalidQuery is returned for unresolvable or type-incompatible query options
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidPath is returned when a resource path cannot be resolved
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidPatch is returned when a patch cannot be applied or changes nothing
	ErrInvalidPatch = errors.New("invalid patch")

	// ErrInvalidEntity is returned when an entity document cannot be parsed
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrIDNotAllowed is returned when a client supplies an id the server must generate
	ErrIDNotAllowed = errors.New("id not allowed")
)

func wrap(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// IncompleteEntity returns an ErrIncompleteEntity with detail
func IncompleteEntity(format string, args ...interface{}) error {
	return wrap(ErrIncompleteEntity, format, args...)
}

// NoSuchEntity returns an ErrNoSuchEntity with detail
func NoSuchEntity(format string, args ...interface{}) error {
	return wrap(ErrNoSuchEntity, format, args...)
}

// InvalidQuery returns an ErrInvalidQuery with detail
func InvalidQuery(format string, args ...interface{}) error {
	return wrap(ErrInvalidQuery, format, args...)
}

// InvalidPath returns an ErrInvalidPath with detail
func InvalidPath(format string, args ...interface{}) error {
	return wrap(ErrInvalidPath, format, args...)
}

// InvalidPatch returns an ErrInvalidPatch with detail
func InvalidPatch(format string, args ...interface{}) error {
	return wrap(ErrInvalidPatch, format, args...)
}

// InvalidEntity returns an ErrInvalidEntity with detail
func InvalidEntity(format string, args ...interface{}) error {
	return wrap(ErrInvalidEntity, format, args...)
}

// IsIncompleteEntity returns true if the error is ErrIncompleteEntity
func IsIncompleteEntity(err error) bool {
	return errors.Is(err, ErrIncompleteEntity)
}

// IsNoSuchEntity returns true if the error is ErrNoSuchEntity
func IsNoSuchEntity(err error) bool {
	return errors.Is(err, ErrNoSuchEntity)
}

// IsInvalidQuery returns true for query and path errors
func IsInvalidQuery(err error) bool {
	return errors.Is(err, ErrInvalidQuery) || errors.Is(err, ErrInvalidPath)
}

// IsInvalidPatch returns true if the error is ErrInvalidPatch
func IsInvalidPatch(err error) bool {
	return errors.Is(err, ErrInvalidPatch)
}

// IsClientError reports whether err belongs to the client error taxonomy.
func IsClientError(err error) bool {
	for _, sentinel := range []error{
		ErrIncompleteEntity, ErrNoSuchEntity, ErrInvalidQuery, ErrInvalidPath,
		ErrInvalidPatch, ErrInvalidEntity, ErrIDNotAllowed,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// IllegalStateError is raised with panic when an internal invariant is
// violated, e.g. an update touching more than one row. It is never returned
// as a regular error value.
type IllegalStateError struct {
	Msg string
}

// Error implements the error interface
func (e *IllegalStateError) Error() string {
	return "illegal state: " + e.Msg
}

// IllegalState builds an IllegalStateError for use with panic.
func IllegalState(format string, args ...interface{}) *IllegalStateError {
	return &IllegalStateError{Msg: fmt.Sprintf(format, args...)}
}
