// Package enrichd embeds the enrichment pipeline in a host process: reference
// records stored in a searchable index are joined onto in-flight documents by
// exact key match. The same engine backs the standalone service in
// cmd/enrichd; the Client runs it in-process with no HTTP hop.
package enrichd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matchgate/enrichd/internal/db"
	dbRedis "github.com/matchgate/enrichd/internal/db/redis"
	dbSqlite "github.com/matchgate/enrichd/internal/db/sqlite"
	"github.com/matchgate/enrichd/internal/domain/document"
	"github.com/matchgate/enrichd/internal/domain/policy"
	"github.com/matchgate/enrichd/internal/repository/reference"
	"github.com/matchgate/enrichd/internal/usecase/coordinator"
	enrichuc "github.com/matchgate/enrichd/internal/usecase/enrich"
	policiesuc "github.com/matchgate/enrichd/internal/usecase/policies"
)

const defaultReadinessTimeout = 10 * time.Second

// EnricherSpec declares one enricher over a declared policy. Override and
// MaxMatches are optional: a nil Override means true, a zero MaxMatches
// means 1.
type EnricherSpec struct {
	Name          string
	Policy        string
	SourceField   string
	TargetField   string
	IgnoreMissing bool
	Override      *bool
	MaxMatches    int
}

// EnricherInfo describes a registered enricher with its defaults resolved.
type EnricherInfo struct {
	Name          string
	Policy        string
	SourceField   string
	TargetField   string
	IgnoreMissing bool
	Override      bool
	MaxMatches    int
}

// BatchResult is the outcome of one document in a batch. Successful items
// carry the enriched document; failed items carry the error.
type BatchResult struct {
	ID       string
	Document map[string]any
	Err      error
}

// Client is the embeddable enrichd entry point.
type Client struct {
	store     db.Store
	coord     *coordinator.Coordinator
	enrichers *enrichuc.Service
	policies  *policiesuc.Service
}

// New creates a Client: it connects the reference store, ensures every
// declared policy's index, and starts the lookup coordinator.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{readinessTimeout: defaultReadinessTimeout}
	for _, o := range opts {
		o(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("enrichd: reference store required (use WithRedis or WithSQLite)")
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pols := make([]policy.Policy, 0, len(cfg.policies))
	for _, pc := range cfg.policies {
		p, err := policy.New(pc.name, policy.TypeMatch, pc.matchField)
		if err != nil {
			return nil, fmt.Errorf("enrichd: %w", err)
		}
		pols = append(pols, p)
	}

	ctx := context.Background()
	store, err := createStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, cfg.readinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("enrichd: reference store not ready: %w", err)
	}

	refRepo := reference.New(store)
	policySvc := policiesuc.NewService(refRepo, pols)
	if err := policySvc.EnsureIndexes(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("enrichd: %w", err)
	}

	coord := coordinator.New(refRepo, coordinator.Config{
		QueueCapacity: cfg.queueCapacity,
		Workers:       cfg.workers,
		BatchSize:     cfg.batchSize,
		CacheSize:     cfg.cacheSize,
		CacheTTL:      cfg.cacheTTL,
		RateLimit:     cfg.rateLimit,
		RateBurst:     cfg.rateBurst,
	}, logger)

	specs := make([]enrichuc.Spec, len(cfg.enrichers))
	for i, e := range cfg.enrichers {
		specs[i] = enrichuc.Spec{
			Tag:           e.Name,
			Policy:        e.Policy,
			SourceField:   e.SourceField,
			TargetField:   e.TargetField,
			IgnoreMissing: e.IgnoreMissing,
			Override:      e.Override,
			MaxMatches:    e.MaxMatches,
		}
	}
	enrichSvc, err := enrichuc.NewService(coord.Bind(), pols, specs)
	if err != nil {
		coord.Stop()
		store.Close()
		return nil, fmt.Errorf("enrichd: %w", err)
	}

	return &Client{
		store:     store,
		coord:     coord,
		enrichers: enrichSvc,
		policies:  policySvc,
	}, nil
}

func createStore(ctx context.Context, cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "redis":
		if len(cfg.addrs) == 0 {
			return nil, errors.New("enrichd: redis address required")
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("enrichd: create redis store: %w", err)
		}
		return s, nil
	case "sqlite":
		s, err := dbSqlite.NewStore(ctx, dbSqlite.Config{Path: cfg.path})
		if err != nil {
			return nil, fmt.Errorf("enrichd: create sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("enrichd: unknown driver %q", cfg.driver)
	}
}

// Close drains pending lookups and releases the store.
func (c *Client) Close() {
	if c.coord != nil {
		c.coord.Stop()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks reference store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Enrich runs one document through an enricher and waits for the outcome.
// The document map is enriched in place and returned.
func (c *Client) Enrich(ctx context.Context, enricher string, doc map[string]any) (map[string]any, error) {
	d := document.New(doc)
	if _, err := c.enrichers.Enrich(ctx, enricher, d); err != nil {
		return nil, err
	}
	return d.Body(), nil
}

// EnrichBatch enriches documents through one enricher with per-item outcomes.
func (c *Client) EnrichBatch(ctx context.Context, enricher string, docs []map[string]any) []BatchResult {
	wrapped := make([]*document.Document, len(docs))
	for i, doc := range docs {
		wrapped[i] = document.New(doc)
	}

	results := c.enrichers.EnrichBatch(ctx, enricher, wrapped)
	out := make([]BatchResult, len(results))
	for i, r := range results {
		out[i] = BatchResult{ID: r.ID(), Err: r.Err()}
		if r.Document() != nil {
			out[i].Document = r.Document().Body()
		}
	}
	return out
}

// Enrichers lists registered enrichers in registration order.
func (c *Client) Enrichers() []EnricherInfo {
	infos := c.enrichers.List()
	out := make([]EnricherInfo, len(infos))
	for i, info := range infos {
		out[i] = toEnricherInfo(info)
	}
	return out
}

// Enricher describes one registered enricher with its defaults resolved.
func (c *Client) Enricher(name string) (EnricherInfo, error) {
	info, err := c.enrichers.Describe(name)
	if err != nil {
		return EnricherInfo{}, err
	}
	return toEnricherInfo(info), nil
}

func toEnricherInfo(info enrichuc.Info) EnricherInfo {
	return EnricherInfo{
		Name:          info.Name,
		Policy:        info.Policy,
		SourceField:   info.SourceField,
		TargetField:   info.TargetField,
		IgnoreMissing: info.IgnoreMissing,
		Override:      info.Override,
		MaxMatches:    info.MaxMatches,
	}
}

// Put stores reference records for a declared policy and returns their ids.
// Records may name their own id under "_id"; otherwise ids are assigned.
func (c *Client) Put(ctx context.Context, policyName string, records []map[string]any) ([]string, error) {
	return c.policies.PutRecords(ctx, policyName, records)
}

// DeleteRecord removes one reference record.
func (c *Client) DeleteRecord(ctx context.Context, policyName, id string) error {
	return c.policies.DeleteRecord(ctx, policyName, id)
}

// CountRecords returns the number of reference records stored for a policy.
func (c *Client) CountRecords(ctx context.Context, policyName string) (int, error) {
	return c.policies.Count(ctx, policyName)
}

// EnsureIndex recreates a policy's reference index if it went missing. New
// already ensures every declared policy; this is for recovery.
func (c *Client) EnsureIndex(ctx context.Context, policyName string) error {
	return c.policies.EnsureIndex(ctx, policyName)
}
