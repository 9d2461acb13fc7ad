// Package enrichd provides an HTTP client for the enrichd match
// enrichment service.
//
// The client mirrors the service's REST API: documents go in, enriched
// documents come out, and reference data is managed per policy.
//
//	client, _ := enrichd.New("http://localhost:8080",
//	    enrichd.WithAPIKey("secret"),
//	)
//
//	doc, err := client.Enrich(ctx, "user-lookup", map[string]any{
//	    "email": "jane@example.com",
//	})
//
// Failures carry a stable machine-readable code decoded into *APIError,
// and sentinel errors are provided for errors.Is checks across the HTTP
// boundary:
//
//	if errors.Is(err, enrichd.ErrEnricherNotFound) { ... }
//
// To embed the pipeline in-process without a running server, use the
// root package github.com/matchgate/enrichd instead.
package enrichd
