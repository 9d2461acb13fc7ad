// Package reference bridges enrichment lookups and reference index
// maintenance to the store layer.
package reference

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/matchgate/enrichd/internal/db"
	"github.com/matchgate/enrichd/internal/domain"
	"github.com/matchgate/enrichd/internal/domain/lookup"
	"github.com/matchgate/enrichd/internal/domain/policy"
)

// Meta hash fields written next to each reference index.
const (
	metaFieldMatchField = "match_field"
	metaFieldPolicyType = "policy_type"
)

// tagSeparator is the RediSearch TAG separator. Match values containing it
// would split into several tags and match the wrong documents, so they are
// rejected at ingest time.
const tagSeparator = ","

// store is the consumer interface for reference data (ISP).
type store interface {
	SearchTerm(ctx context.Context, q *db.TermQuery) (*db.SearchResult, error)
	SearchTermMulti(ctx context.Context, qs []*db.TermQuery) ([]db.MultiSearchItem, error)
	PutRecords(ctx context.Context, index string, items []db.RecordPut) error
	DeleteRecord(ctx context.Context, key string) error
	CountRecords(ctx context.Context, index string) (int, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SetMeta(ctx context.Context, key string, fields map[string]string) error
	GetMeta(ctx context.Context, key string) (map[string]string, error)
	ListMeta(ctx context.Context, prefix string) ([]string, error)
}

// Repo implements lookup retrieval and reference data maintenance.
type Repo struct {
	store   store
	entropy *ulid.LockedMonotonicReader
}

// New creates a reference repository.
func New(s store) *Repo {
	return &Repo{
		store:   s,
		entropy: &ulid.LockedMonotonicReader{MonotonicReader: ulid.Monotonic(rand.Reader, 0)},
	}
}

// Search runs one exact-match lookup and parses the matched record sources.
func (r *Repo) Search(ctx context.Context, q *lookup.Query) (*lookup.Result, error) {
	sr, err := r.store.SearchTerm(ctx, toTermQuery(q))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.Index, err)
	}
	return parseResult(sr)
}

// SearchMulti runs a batch of lookups in one store round trip. Outcomes are
// positional; one query's failure never fails its siblings.
func (r *Repo) SearchMulti(ctx context.Context, queries []*lookup.Query) ([]lookup.Outcome, error) {
	tqs := make([]*db.TermQuery, len(queries))
	for i, q := range queries {
		tqs[i] = toTermQuery(q)
	}

	items, err := r.store.SearchTermMulti(ctx, tqs)
	if err != nil {
		return nil, fmt.Errorf("multi search: %w", err)
	}
	if len(items) != len(queries) {
		return nil, fmt.Errorf("multi search: %d outcomes for %d queries", len(items), len(queries))
	}

	outcomes := make([]lookup.Outcome, len(items))
	for i, item := range items {
		if item.Err != nil {
			outcomes[i] = lookup.Outcome{Err: fmt.Errorf("search %s: %w", queries[i].Index, item.Err)}
			continue
		}
		res, err := parseResult(item.Result)
		outcomes[i] = lookup.Outcome{Result: res, Err: err}
	}
	return outcomes, nil
}

// EnsureIndex creates the policy's reference index if missing and writes its
// metadata hash. Safe to call repeatedly.
func (r *Repo) EnsureIndex(ctx context.Context, p policy.Policy) error {
	def := &db.IndexDefinition{
		Name:          policy.BaseName(p.Name()),
		Prefix:        policy.RecordPrefix(p.Name()),
		MatchField:    p.MatchField(),
		CaseSensitive: true,
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}

	fields := map[string]string{
		metaFieldMatchField: p.MatchField(),
		metaFieldPolicyType: string(p.Type()),
	}
	if err := r.store.SetMeta(ctx, policy.MetaKey(p.Name()), fields); err != nil {
		return fmt.Errorf("write meta %s: %w", p.Name(), err)
	}
	return nil
}

// IndexReady reports whether the policy's reference index exists in the store.
func (r *Repo) IndexReady(ctx context.Context, p policy.Policy) (bool, error) {
	ok, err := r.store.IndexExists(ctx, policy.BaseName(p.Name()))
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", p.Name(), err)
	}
	return ok, nil
}

// Put stores reference records for a policy and returns their ids. Each record
// must carry a non-empty string under the policy's match field; records may
// name their own id via "_id", otherwise one is assigned.
func (r *Repo) Put(ctx context.Context, p policy.Policy, records []lookup.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, len(records))
	items := make([]db.RecordPut, len(records))
	for i, rec := range records {
		value, err := matchValue(p, rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		id := recordID(rec)
		if id == "" {
			id = ulid.MustNew(ulid.Now(), r.entropy).String()
		}

		source, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: marshal: %w", i, err)
		}

		ids[i] = id
		items[i] = db.RecordPut{
			Key:        policy.RecordKey(p.Name(), id),
			ID:         id,
			MatchValue: value,
			Source:     source,
		}
	}

	if err := r.store.PutRecords(ctx, policy.BaseName(p.Name()), items); err != nil {
		return nil, fmt.Errorf("put records %s: %w", p.Name(), err)
	}
	return ids, nil
}

// Delete removes one reference record.
func (r *Repo) Delete(ctx context.Context, p policy.Policy, id string) error {
	if err := r.store.DeleteRecord(ctx, policy.RecordKey(p.Name(), id)); err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			return domain.ErrRecordNotFound
		}
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

// Count returns the number of reference records indexed for a policy.
func (r *Repo) Count(ctx context.Context, p policy.Policy) (int, error) {
	n, err := r.store.CountRecords(ctx, policy.BaseName(p.Name()))
	if err != nil {
		return 0, fmt.Errorf("count records %s: %w", p.Name(), err)
	}
	return n, nil
}

// ListPolicies reconstructs policies from store-side metadata. Entries whose
// metadata no longer forms a valid policy are skipped; the store may hold
// indexes written by configurations this process never saw.
func (r *Repo) ListPolicies(ctx context.Context) ([]policy.Policy, error) {
	keys, err := r.store.ListMeta(ctx, policy.MetaKeyPrefix())
	if err != nil {
		return nil, fmt.Errorf("list meta: %w", err)
	}

	policies := make([]policy.Policy, 0, len(keys))
	for _, key := range keys {
		name, ok := policy.NameFromMetaKey(key)
		if !ok {
			continue
		}
		fields, err := r.store.GetMeta(ctx, key)
		if err != nil {
			if errors.Is(err, db.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("read meta %s: %w", key, err)
		}
		p, err := policy.New(name, policy.Type(fields[metaFieldPolicyType]), fields[metaFieldMatchField])
		if err != nil {
			continue
		}
		policies = append(policies, p)
	}
	return policies, nil
}

func toTermQuery(q *lookup.Query) *db.TermQuery {
	return &db.TermQuery{
		IndexName:   q.Index,
		Value:       q.Value,
		Offset:      q.From,
		Limit:       q.Size,
		PreferLocal: q.Preference == lookup.PreferenceLocal,
	}
}

// parseResult converts raw search entries into lookup records.
func parseResult(sr *db.SearchResult) (*lookup.Result, error) {
	res := &lookup.Result{Total: sr.Total}
	if len(sr.Entries) == 0 {
		return res, nil
	}

	res.Records = make([]lookup.Record, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		var rec lookup.Record
		if err := json.Unmarshal(entry.Source, &rec); err != nil {
			return nil, fmt.Errorf("parse record %s: %w", entry.Key, err)
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// matchValue extracts and validates the record's match-field value.
func matchValue(p policy.Policy, rec lookup.Record) (string, error) {
	raw, ok := rec[p.MatchField()]
	if !ok || raw == nil {
		return "", fmt.Errorf("missing match field %q: %w", p.MatchField(), domain.ErrInvalidRecord)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("match field %q holds %T, expected string: %w", p.MatchField(), raw, domain.ErrInvalidRecord)
	}
	if value == "" {
		return "", fmt.Errorf("empty match field %q: %w", p.MatchField(), domain.ErrInvalidRecord)
	}
	if strings.Contains(value, tagSeparator) {
		return "", fmt.Errorf("match field %q contains %q: %w", p.MatchField(), tagSeparator, domain.ErrInvalidRecord)
	}
	return value, nil
}

func recordID(rec lookup.Record) string {
	if raw, ok := rec["_id"]; ok {
		if id, ok := raw.(string); ok {
			return id
		}
	}
	return ""
}
