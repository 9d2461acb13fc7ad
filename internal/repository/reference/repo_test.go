package reference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/matchgate/enrichd/internal/db"
	"github.com/matchgate/enrichd/internal/domain"
	"github.com/matchgate/enrichd/internal/domain/lookup"
)

func TestSearch_MapsQueryAndParsesRecords(t *testing.T) {
	repo, ms := newTestRepo(t)

	var got *db.TermQuery
	ms.searchTermFn = func(_ context.Context, q *db.TermQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{
			Total: 5,
			Entries: []db.SearchEntry{
				{Key: "enrich:users:1", Source: []byte(`{"email":"a@example.com","name":"Alice"}`)},
				{Key: "enrich:users:2", Source: []byte(`{"email":"a@example.com","name":"Anna"}`)},
			},
		}, nil
	}

	q := lookup.New("enrich-users", "email", "a@example.com", 2)
	res, err := repo.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.IndexName != "enrich-users" || got.Value != "a@example.com" {
		t.Fatalf("unexpected term query: %+v", got)
	}
	if got.Offset != 0 || got.Limit != 2 {
		t.Fatalf("unexpected window: offset=%d limit=%d", got.Offset, got.Limit)
	}
	if !got.PreferLocal {
		t.Fatal("expected PreferLocal")
	}

	if res.Total != 5 {
		t.Fatalf("expected total 5, got %d", res.Total)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}
	if res.Records[0]["name"] != "Alice" || res.Records[1]["name"] != "Anna" {
		t.Fatalf("unexpected records: %v", res.Records)
	}
}

func TestSearch_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchTermFn = func(_ context.Context, _ *db.TermQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}

	_, err := repo.Search(context.Background(), lookup.New("enrich-ghost", "email", "x", 1))
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestSearch_MalformedSource(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchTermFn = func(_ context.Context, _ *db.TermQuery) (*db.SearchResult, error) {
		return &db.SearchResult{
			Total:   1,
			Entries: []db.SearchEntry{{Key: "enrich:users:1", Source: []byte(`{broken`)}},
		}, nil
	}

	_, err := repo.Search(context.Background(), lookup.New("enrich-users", "email", "x", 1))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "enrich:users:1") {
		t.Fatalf("error should name the record key: %v", err)
	}
}

func TestSearchMulti_PositionalOutcomes(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchTermMultiFn = func(_ context.Context, qs []*db.TermQuery) ([]db.MultiSearchItem, error) {
		if len(qs) != 3 {
			t.Fatalf("expected 3 queries, got %d", len(qs))
		}
		return []db.MultiSearchItem{
			{Result: &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
				{Key: "enrich:users:1", Source: []byte(`{"email":"a@example.com"}`)},
			}}},
			{Err: &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}},
			{Result: &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
				{Key: "enrich:users:2", Source: []byte(`{bad`)},
			}}},
		}, nil
	}

	outcomes, err := repo.SearchMulti(context.Background(), []*lookup.Query{
		lookup.New("enrich-users", "email", "a@example.com", 1),
		lookup.New("enrich-ghost", "email", "b@example.com", 1),
		lookup.New("enrich-users", "email", "c@example.com", 1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}

	if outcomes[0].Err != nil || outcomes[0].Result.Total != 1 {
		t.Fatalf("unexpected first outcome: %+v", outcomes[0])
	}
	if !errors.Is(outcomes[1].Err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", outcomes[1].Err)
	}
	if outcomes[2].Err == nil {
		t.Fatal("expected parse error in third outcome")
	}
}

func TestSearchMulti_OutcomeCountMismatch(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchTermMultiFn = func(_ context.Context, _ []*db.TermQuery) ([]db.MultiSearchItem, error) {
		return []db.MultiSearchItem{{Result: &db.SearchResult{}}}, nil
	}

	_, err := repo.SearchMulti(context.Background(), []*lookup.Query{
		lookup.New("enrich-users", "email", "a", 1),
		lookup.New("enrich-users", "email", "b", 1),
	})
	if err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestEnsureIndex_CreatesIndexAndMeta(t *testing.T) {
	repo, ms := newTestRepo(t)

	var gotDef *db.IndexDefinition
	var gotMetaKey string
	var gotFields map[string]string
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		gotDef = def
		return nil
	}
	ms.setMetaFn = func(_ context.Context, key string, fields map[string]string) error {
		gotMetaKey = key
		gotFields = fields
		return nil
	}

	if err := repo.EnsureIndex(context.Background(), usersPolicy(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotDef.Name != "enrich-users" || gotDef.Prefix != "enrich:users:" || gotDef.MatchField != "email" {
		t.Fatalf("unexpected index definition: %+v", gotDef)
	}
	if !gotDef.CaseSensitive {
		t.Fatal("expected case-sensitive index")
	}
	if gotMetaKey != "enrich:meta:users" {
		t.Fatalf("unexpected meta key: %s", gotMetaKey)
	}
	if gotFields["match_field"] != "email" || gotFields["policy_type"] != "match" {
		t.Fatalf("unexpected meta fields: %v", gotFields)
	}
}

func TestEnsureIndex_AlreadyExists(t *testing.T) {
	repo, ms := newTestRepo(t)

	metaWritten := false
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return &db.Error{Op: db.OpCreateIndex, Err: db.ErrIndexExists}
	}
	ms.setMetaFn = func(_ context.Context, _ string, _ map[string]string) error {
		metaWritten = true
		return nil
	}

	if err := repo.EnsureIndex(context.Background(), usersPolicy(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !metaWritten {
		t.Fatal("meta should be written even when the index exists")
	}
}

func TestPut_AssignsIDsAndBuildsItems(t *testing.T) {
	repo, ms := newTestRepo(t)

	var gotIndex string
	var gotItems []db.RecordPut
	ms.putRecordsFn = func(_ context.Context, index string, items []db.RecordPut) error {
		gotIndex = index
		gotItems = items
		return nil
	}

	records := []lookup.Record{
		{"email": "a@example.com", "name": "Alice"},
		{"_id": "fixed-id", "email": "b@example.com", "name": "Bob"},
	}
	ids, err := repo.Put(context.Background(), usersPolicy(t), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotIndex != "enrich-users" {
		t.Fatalf("unexpected index: %s", gotIndex)
	}
	if len(ids) != 2 || len(gotItems) != 2 {
		t.Fatalf("expected 2 items, got ids=%v items=%d", ids, len(gotItems))
	}

	if ids[0] == "" {
		t.Fatal("expected generated id")
	}
	if ids[1] != "fixed-id" {
		t.Fatalf("expected caller id, got %s", ids[1])
	}
	if gotItems[0].Key != "enrich:users:"+ids[0] {
		t.Fatalf("unexpected key: %s", gotItems[0].Key)
	}
	if gotItems[0].MatchValue != "a@example.com" || gotItems[1].MatchValue != "b@example.com" {
		t.Fatalf("unexpected match values: %+v", gotItems)
	}

	var src map[string]any
	if err := json.Unmarshal(gotItems[1].Source, &src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src["name"] != "Bob" {
		t.Fatalf("unexpected source: %v", src)
	}
}

func TestPut_GeneratedIDsAreUnique(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.putRecordsFn = func(_ context.Context, _ string, _ []db.RecordPut) error { return nil }

	records := make([]lookup.Record, 50)
	for i := range records {
		records[i] = lookup.Record{"email": fmt.Sprintf("u%d@example.com", i)}
	}
	ids, err := repo.Put(context.Background(), usersPolicy(t), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestPut_RejectsBadMatchValues(t *testing.T) {
	repo, _ := newTestRepo(t)

	cases := []struct {
		name   string
		record lookup.Record
	}{
		{"missing field", lookup.Record{"name": "Alice"}},
		{"null field", lookup.Record{"email": nil}},
		{"non-string field", lookup.Record{"email": 42}},
		{"empty value", lookup.Record{"email": ""}},
		{"tag separator", lookup.Record{"email": "a,b@example.com"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.Put(context.Background(), usersPolicy(t), []lookup.Record{tc.record})
			if !errors.Is(err, domain.ErrInvalidRecord) {
				t.Fatalf("expected ErrInvalidRecord, got %v", err)
			}
		})
	}
}

func TestPut_Empty(t *testing.T) {
	repo, ms := newTestRepo(t)

	called := false
	ms.putRecordsFn = func(_ context.Context, _ string, _ []db.RecordPut) error {
		called = true
		return nil
	}

	ids, err := repo.Put(context.Background(), usersPolicy(t), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids != nil || called {
		t.Fatal("empty put should not reach the store")
	}
}

func TestDelete_MapsNotFound(t *testing.T) {
	repo, ms := newTestRepo(t)

	var gotKey string
	ms.deleteRecordFn = func(_ context.Context, key string) error {
		gotKey = key
		return &db.Error{Op: db.OpDel, Err: db.ErrRecordNotFound}
	}

	err := repo.Delete(context.Background(), usersPolicy(t), "01A")
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected domain.ErrRecordNotFound, got %v", err)
	}
	if gotKey != "enrich:users:01A" {
		t.Fatalf("unexpected key: %s", gotKey)
	}
}

func TestCount_UsesBaseName(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.countRecordsFn = func(_ context.Context, index string) (int, error) {
		if index != "enrich-users" {
			t.Fatalf("unexpected index: %s", index)
		}
		return 7, nil
	}

	n, err := repo.Count(context.Background(), usersPolicy(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7, got %d", n)
	}
}

func TestListPolicies_SkipsDrift(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.listMetaFn = func(_ context.Context, prefix string) ([]string, error) {
		if prefix != "enrich:meta:" {
			t.Fatalf("unexpected prefix: %s", prefix)
		}
		return []string{"enrich:meta:users", "enrich:meta:stale", "enrich:meta:hosts", "unrelated:key"}, nil
	}
	ms.getMetaFn = func(_ context.Context, key string) (map[string]string, error) {
		switch key {
		case "enrich:meta:users":
			return map[string]string{"match_field": "email", "policy_type": "match"}, nil
		case "enrich:meta:stale":
			// Written by an older build with a policy type this one dropped.
			return map[string]string{"match_field": "x", "policy_type": "geo"}, nil
		case "enrich:meta:hosts":
			return map[string]string{"match_field": "hostname", "policy_type": "match"}, nil
		}
		return nil, db.ErrRecordNotFound
	}

	policies, err := repo.ListPolicies(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(policies))
	}
	if policies[0].Name() != "users" || policies[1].Name() != "hosts" {
		t.Fatalf("unexpected policies: %v, %v", policies[0].Name(), policies[1].Name())
	}
	if policies[0].MatchField() != "email" {
		t.Fatalf("unexpected match field: %s", policies[0].MatchField())
	}
}
