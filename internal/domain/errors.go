package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFieldNotFound signals a document path that resolves to nothing.
	ErrFieldNotFound = errors.New("field not found")
	// ErrFieldTypeMismatch signals a field holding a value of an unexpected type.
	ErrFieldTypeMismatch = errors.New("field type mismatch")
	// ErrInvalidDocument signals a document body or path that cannot be processed.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidPolicy signals a malformed enrichment policy definition.
	ErrInvalidPolicy = errors.New("invalid policy")
	// ErrInvalidSpec signals a malformed enricher definition.
	ErrInvalidSpec = errors.New("invalid enricher spec")
	// ErrPolicyNotFound signals a reference to a policy that is not registered.
	ErrPolicyNotFound = errors.New("policy not found")
	// ErrEnricherNotFound signals a reference to an enricher that is not registered.
	ErrEnricherNotFound = errors.New("enricher not found")

	// ErrInvalidRecord signals a reference record that cannot be indexed.
	ErrInvalidRecord = errors.New("invalid reference record")
	// ErrRecordNotFound signals a reference record that does not exist.
	ErrRecordNotFound = errors.New("reference record not found")

	// ErrSyncExecution signals a synchronous call into an async-only processor.
	ErrSyncExecution = errors.New("synchronous execution is not supported")
)

// PathConflictError wraps ErrInvalidDocument with the path segment that blocked a write.
type PathConflictError struct {
	Path    string
	Segment string
}

func (e *PathConflictError) Error() string {
	return fmt.Sprintf("cannot write path [%s]: segment [%s] is not an object", e.Path, e.Segment)
}

func (e *PathConflictError) Unwrap() error { return ErrInvalidDocument }

// NewPathConflict creates a path conflict error.
func NewPathConflict(path, segment string) error {
	return &PathConflictError{Path: path, Segment: segment}
}
