package policies

import (
	"context"
	"testing"

	"github.com/matchgate/enrichd/internal/domain/lookup"
	"github.com/matchgate/enrichd/internal/domain/policy"
)

// mockRepo implements Repository for tests.
type mockRepo struct {
	ensureIndexFn  func(ctx context.Context, p policy.Policy) error
	indexReadyFn   func(ctx context.Context, p policy.Policy) (bool, error)
	putFn          func(ctx context.Context, p policy.Policy, records []lookup.Record) ([]string, error)
	deleteFn       func(ctx context.Context, p policy.Policy, id string) error
	countFn        func(ctx context.Context, p policy.Policy) (int, error)
	listPoliciesFn func(ctx context.Context) ([]policy.Policy, error)
}

func (m *mockRepo) EnsureIndex(ctx context.Context, p policy.Policy) error {
	if m.ensureIndexFn != nil {
		return m.ensureIndexFn(ctx, p)
	}
	return nil
}

func (m *mockRepo) IndexReady(ctx context.Context, p policy.Policy) (bool, error) {
	if m.indexReadyFn != nil {
		return m.indexReadyFn(ctx, p)
	}
	return true, nil
}

func (m *mockRepo) Put(ctx context.Context, p policy.Policy, records []lookup.Record) ([]string, error) {
	if m.putFn != nil {
		return m.putFn(ctx, p, records)
	}
	ids := make([]string, len(records))
	for i := range ids {
		ids[i] = "id"
	}
	return ids, nil
}

func (m *mockRepo) Delete(ctx context.Context, p policy.Policy, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, p, id)
	}
	return nil
}

func (m *mockRepo) Count(ctx context.Context, p policy.Policy) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, p)
	}
	return 0, nil
}

func (m *mockRepo) ListPolicies(ctx context.Context) ([]policy.Policy, error) {
	if m.listPoliciesFn != nil {
		return m.listPoliciesFn(ctx)
	}
	return nil, nil
}

func mustPolicy(t *testing.T, name, matchField string) policy.Policy {
	t.Helper()
	p, err := policy.New(name, policy.TypeMatch, matchField)
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	return p
}

func newTestService(t *testing.T, pols ...policy.Policy) (*Service, *mockRepo) {
	t.Helper()
	mr := &mockRepo{}
	return NewService(mr, pols), mr
}
