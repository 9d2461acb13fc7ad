package reference

import (
	"context"
	"testing"

	"github.com/matchgate/enrichd/internal/db"
	"github.com/matchgate/enrichd/internal/domain/policy"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchTermFn      func(ctx context.Context, q *db.TermQuery) (*db.SearchResult, error)
	searchTermMultiFn func(ctx context.Context, qs []*db.TermQuery) ([]db.MultiSearchItem, error)
	putRecordsFn      func(ctx context.Context, index string, items []db.RecordPut) error
	deleteRecordFn    func(ctx context.Context, key string) error
	countRecordsFn    func(ctx context.Context, index string) (int, error)
	createIndexFn     func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn     func(ctx context.Context, name string) (bool, error)
	setMetaFn         func(ctx context.Context, key string, fields map[string]string) error
	getMetaFn         func(ctx context.Context, key string) (map[string]string, error)
	listMetaFn        func(ctx context.Context, prefix string) ([]string, error)
}

func (m *mockStore) SearchTerm(ctx context.Context, q *db.TermQuery) (*db.SearchResult, error) {
	if m.searchTermFn != nil {
		return m.searchTermFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchTermMulti(ctx context.Context, qs []*db.TermQuery) ([]db.MultiSearchItem, error) {
	if m.searchTermMultiFn != nil {
		return m.searchTermMultiFn(ctx, qs)
	}
	items := make([]db.MultiSearchItem, len(qs))
	for i := range items {
		items[i] = db.MultiSearchItem{Result: &db.SearchResult{}}
	}
	return items, nil
}

func (m *mockStore) PutRecords(ctx context.Context, index string, items []db.RecordPut) error {
	if m.putRecordsFn != nil {
		return m.putRecordsFn(ctx, index, items)
	}
	return nil
}

func (m *mockStore) DeleteRecord(ctx context.Context, key string) error {
	if m.deleteRecordFn != nil {
		return m.deleteRecordFn(ctx, key)
	}
	return nil
}

func (m *mockStore) CountRecords(ctx context.Context, index string) (int, error) {
	if m.countRecordsFn != nil {
		return m.countRecordsFn(ctx, index)
	}
	return 0, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SetMeta(ctx context.Context, key string, fields map[string]string) error {
	if m.setMetaFn != nil {
		return m.setMetaFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) GetMeta(ctx context.Context, key string) (map[string]string, error) {
	if m.getMetaFn != nil {
		return m.getMetaFn(ctx, key)
	}
	return nil, db.ErrRecordNotFound
}

func (m *mockStore) ListMeta(ctx context.Context, prefix string) ([]string, error) {
	if m.listMetaFn != nil {
		return m.listMetaFn(ctx, prefix)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func usersPolicy(t *testing.T) policy.Policy {
	t.Helper()
	p, err := policy.New("users", policy.TypeMatch, "email")
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	return p
}
