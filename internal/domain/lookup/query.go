// Package lookup defines the query descriptor and result types for reference
// index lookups. A descriptor is plain data: building one performs no I/O.
package lookup

import "fmt"

// Preference hints where a lookup should execute. It is routing advice, not a
// correctness requirement.
type Preference string

// PreferenceLocal prefers a replica co-located with the caller.
const PreferenceLocal Preference = "local"

// Query describes one exact-match lookup against a reference index.
//
// The shape is deliberately narrow: an equality condition on a single field,
// no relevance ranking, results from offset zero up to Size, full records.
type Query struct {
	// Index is the reference index name, derived from a policy name via
	// policy.BaseName. Callers never pass arbitrary index names.
	Index string
	// MatchField is the reference record field the condition applies to.
	MatchField string
	// Value is the lookup key, compared byte-for-byte without analysis.
	Value string
	// From is always zero.
	From int
	// Size caps the number of returned records.
	Size int
	// ConstantScore disables scoring; results arrive in index insertion order.
	ConstantScore bool
	// FetchSource requests full records with no projection.
	FetchSource bool
	// Preference is the locality routing hint.
	Preference Preference
}

// New builds an exact-match query descriptor. Pure and total: identical
// arguments always produce an identical descriptor and no error is possible.
func New(index, matchField, value string, size int) *Query {
	return &Query{
		Index:         index,
		MatchField:    matchField,
		Value:         value,
		From:          0,
		Size:          size,
		ConstantScore: true,
		FetchSource:   true,
		Preference:    PreferenceLocal,
	}
}

// CacheKey identifies the query for result caching. Two queries with the same
// key are interchangeable, so the key covers every field that shapes the
// result set, Size included.
func (q *Query) CacheKey() string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%d", q.Index, q.MatchField, q.Value, q.Size)
}
