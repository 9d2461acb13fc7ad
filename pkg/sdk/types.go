package enrichd

// ItemStatus is the outcome of one document in a batch enrichment.
type ItemStatus string

// Item status constants.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// EnricherInfo describes a registered enricher.
type EnricherInfo struct {
	Name          string `json:"name"`
	Policy        string `json:"policy"`
	SourceField   string `json:"source_field"`
	TargetField   string `json:"target_field"`
	IgnoreMissing bool   `json:"ignore_missing"`
	Override      bool   `json:"override"`
	MaxMatches    int    `json:"max_matches"`
}

// PolicyInfo describes a match policy and the state of its reference index.
type PolicyInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	MatchField string `json:"match_field"`
	Index      string `json:"index"`
	Configured bool   `json:"configured"`
	Ready      bool   `json:"ready"`
	Records    int    `json:"records"`
}

// BatchItem is the outcome of one document in a batch enrichment.
// Error is nil for enriched documents; Document is nil for failed ones.
type BatchItem struct {
	ID       string         `json:"id"`
	Status   ItemStatus     `json:"status"`
	Document map[string]any `json:"document,omitempty"`
	Error    *APIError      `json:"error,omitempty"`
}

// BatchResult is the outcome of a batch enrichment call.
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// HealthStatus represents the aggregated service health.
type HealthStatus struct {
	Status string            `json:"status"`           // "ok", "degraded", "error"
	Checks map[string]string `json:"checks,omitempty"` // component → "ok"/"error"
}
