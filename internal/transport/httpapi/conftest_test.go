package httpapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matchgate/enrichd/internal/domain/lookup"
	"github.com/matchgate/enrichd/internal/domain/policy"
	enrichuc "github.com/matchgate/enrichd/internal/usecase/enrich"
	healthuc "github.com/matchgate/enrichd/internal/usecase/health"
	policiesuc "github.com/matchgate/enrichd/internal/usecase/policies"
)

// mockRefRepo implements policies.Repository for tests.
type mockRefRepo struct {
	ensureIndexFn  func(ctx context.Context, p policy.Policy) error
	indexReadyFn   func(ctx context.Context, p policy.Policy) (bool, error)
	putFn          func(ctx context.Context, p policy.Policy, records []lookup.Record) ([]string, error)
	deleteFn       func(ctx context.Context, p policy.Policy, id string) error
	countFn        func(ctx context.Context, p policy.Policy) (int, error)
	listPoliciesFn func(ctx context.Context) ([]policy.Policy, error)
}

func (m *mockRefRepo) EnsureIndex(ctx context.Context, p policy.Policy) error {
	if m.ensureIndexFn != nil {
		return m.ensureIndexFn(ctx, p)
	}
	return nil
}

func (m *mockRefRepo) IndexReady(ctx context.Context, p policy.Policy) (bool, error) {
	if m.indexReadyFn != nil {
		return m.indexReadyFn(ctx, p)
	}
	return true, nil
}

func (m *mockRefRepo) Put(ctx context.Context, p policy.Policy, records []lookup.Record) ([]string, error) {
	if m.putFn != nil {
		return m.putFn(ctx, p, records)
	}
	ids := make([]string, len(records))
	for i := range ids {
		ids[i] = "id"
	}
	return ids, nil
}

func (m *mockRefRepo) Delete(ctx context.Context, p policy.Policy, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, p, id)
	}
	return nil
}

func (m *mockRefRepo) Count(ctx context.Context, p policy.Policy) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, p)
	}
	return 0, nil
}

func (m *mockRefRepo) ListPolicies(ctx context.Context) ([]policy.Policy, error) {
	if m.listPoliciesFn != nil {
		return m.listPoliciesFn(ctx)
	}
	return nil, nil
}

// mockPinger implements health.DBPinger for tests.
type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// matchedRunner completes every lookup with the given records.
func matchedRunner(records ...lookup.Record) enrichuc.SearchRunner {
	return func(_ *lookup.Query, done func(*lookup.Result, error)) {
		done(&lookup.Result{Total: len(records), Records: records}, nil)
	}
}

// failingRunner completes every lookup with err.
func failingRunner(err error) enrichuc.SearchRunner {
	return func(_ *lookup.Query, done func(*lookup.Result, error)) {
		done(nil, err)
	}
}

func mustPolicy(t *testing.T, name, matchField string) policy.Policy {
	t.Helper()
	p, err := policy.New(name, policy.TypeMatch, matchField)
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	return p
}

// newTestHandler builds a router around services wired to the given mocks.
// The registry holds one enricher: user-lookup (users policy, email -> user).
func newTestHandler(t *testing.T, runner enrichuc.SearchRunner, repo *mockRefRepo, db *mockPinger) http.Handler {
	t.Helper()

	pol := mustPolicy(t, "users", "email")
	enrichers, err := enrichuc.NewService(runner, []policy.Policy{pol}, []enrichuc.Spec{
		{Tag: "user-lookup", Policy: "users", SourceField: "email", TargetField: "user"},
	})
	if err != nil {
		t.Fatalf("enrich.NewService: %v", err)
	}

	srv := NewServer(
		enrichers,
		policiesuc.NewService(repo, []policy.Policy{pol}),
		healthuc.New(db, nil),
		zap.NewNop(),
	)

	r := chi.NewRouter()
	srv.Routes(r)
	return r
}
