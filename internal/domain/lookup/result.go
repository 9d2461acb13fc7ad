package lookup

// Record is one full reference record. The alias keeps records addressable by
// document path navigation after they are merged into an ingest document.
type Record = map[string]any

// Result is the outcome of one lookup.
type Result struct {
	// Total is the number of records the index matched, which may exceed
	// the number returned when the query size capped retrieval.
	Total int
	// Records holds up to Query.Size full records in index insertion order.
	Records []Record
}

// Outcome pairs a result with its error for batched lookups. Positions align
// with the submitted queries.
type Outcome struct {
	Result *Result
	Err    error
}
