package enrichd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Enrich runs one document through the named enricher and returns the
// enriched body. Documents whose lookup key misses the reference index
// come back unchanged.
func (c *Client) Enrich(
	ctx context.Context, enricher string, doc map[string]any,
) (_ map[string]any, err error) {
	start := time.Now()
	defer func() { c.obs.observe("enrich", start, err) }()

	req, err := c.newRequest(ctx, http.MethodPost,
		"/v1/enrich/"+url.PathEscape(enricher), doc)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err = c.do(req, &out); err != nil {
		return nil, fmt.Errorf("enrich %s: %w", enricher, err)
	}
	return out, nil
}

type batchEnrichRequest struct {
	Documents []map[string]any `json:"documents"`
}

// EnrichBatch runs several documents through the named enricher in one
// call. Per-document failures are reported in the result items, not as
// a call error.
func (c *Client) EnrichBatch(
	ctx context.Context, enricher string, docs []map[string]any,
) (_ BatchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("enrich.batch", start, err) }()

	req, err := c.newRequest(ctx, http.MethodPost,
		"/v1/enrich/"+url.PathEscape(enricher)+"/batch",
		batchEnrichRequest{Documents: docs})
	if err != nil {
		return BatchResult{}, err
	}

	var out BatchResult
	if err = c.do(req, &out); err != nil {
		return BatchResult{}, fmt.Errorf("enrich batch %s: %w", enricher, err)
	}
	return out, nil
}
