package enrich

import (
	"github.com/matchgate/enrichd/internal/domain/lookup"
)

// Document is the mutable view of an ingest document a processor works on.
// *document.Document satisfies it; transports may wrap their own carriers.
type Document interface {
	// GetString resolves a dotted path to a string value. ok is false when
	// the field is absent and ignoreMissing allows that, or when the field
	// holds an explicit null.
	GetString(path string, ignoreMissing bool) (value string, ok bool, err error)
	// Has reports whether a path resolves to anything, nulls included.
	Has(path string) bool
	// Set writes a value at a dotted path, creating intermediate objects.
	Set(path string, value any) error
}

// SearchRunner dispatches one lookup and reports its outcome through done
// exactly once. Implementations decide scheduling: a runner may execute
// inline, or queue the query and complete it later from another goroutine.
// Dispatch is not cancelable; once submitted, a lookup always completes.
type SearchRunner func(q *lookup.Query, done func(*lookup.Result, error))
