package db

// TermQuery is the input for an exact-match lookup. The match condition is a
// byte-for-byte equality on a single indexed field; no scoring, no ordering
// beyond index insertion order.
type TermQuery struct {
	IndexName string
	Value     string
	Offset    int
	Limit     int
	// PreferLocal routes the read to a co-located replica when the backend
	// supports it. Advisory only.
	PreferLocal bool
}

// SearchResult is the output of a lookup.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single record hit. Source is the full stored record JSON.
type SearchEntry struct {
	Key    string
	Source []byte
}

// MultiSearchItem is the per-query outcome of a batched lookup. Exactly one
// of Result and Err is set; one query's failure never fails its siblings.
type MultiSearchItem struct {
	Result *SearchResult
	Err    error
}
