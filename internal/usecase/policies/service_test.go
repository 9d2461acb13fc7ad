package policies

import (
	"context"
	"errors"
	"testing"

	"github.com/matchgate/enrichd/internal/domain"
	"github.com/matchgate/enrichd/internal/domain/lookup"
	"github.com/matchgate/enrichd/internal/domain/policy"
)

func TestGet_Configured(t *testing.T) {
	svc, _ := newTestService(t, mustPolicy(t, "users", "email"))

	p, err := svc.Get("users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.MatchField() != "email" {
		t.Errorf("expected match field email, got %q", p.MatchField())
	}
}

func TestGet_Unknown(t *testing.T) {
	svc, _ := newTestService(t, mustPolicy(t, "users", "email"))

	_, err := svc.Get("hosts")
	if !errors.Is(err, domain.ErrPolicyNotFound) {
		t.Fatalf("expected ErrPolicyNotFound, got %v", err)
	}
}

func TestList_ConfigurationOrder(t *testing.T) {
	svc, _ := newTestService(t,
		mustPolicy(t, "hosts", "host"),
		mustPolicy(t, "users", "email"),
	)

	got := svc.List()
	if len(got) != 2 || got[0].Name() != "hosts" || got[1].Name() != "users" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestEnsureIndexes_CoversEveryPolicy(t *testing.T) {
	svc, mr := newTestService(t,
		mustPolicy(t, "users", "email"),
		mustPolicy(t, "hosts", "host"),
	)

	var ensured []string
	mr.ensureIndexFn = func(_ context.Context, p policy.Policy) error {
		ensured = append(ensured, p.Name())
		return nil
	}

	if err := svc.EnsureIndexes(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ensured) != 2 || ensured[0] != "users" || ensured[1] != "hosts" {
		t.Errorf("unexpected ensure order: %v", ensured)
	}
}

func TestEnsureIndexes_PropagatesFailure(t *testing.T) {
	svc, mr := newTestService(t, mustPolicy(t, "users", "email"))

	boom := errors.New("store down")
	mr.ensureIndexFn = func(_ context.Context, _ policy.Policy) error { return boom }

	err := svc.EnsureIndexes(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestEnsureIndex_SinglePolicy(t *testing.T) {
	svc, mr := newTestService(t,
		mustPolicy(t, "users", "email"),
		mustPolicy(t, "hosts", "host"),
	)

	var ensured []string
	mr.ensureIndexFn = func(_ context.Context, p policy.Policy) error {
		ensured = append(ensured, p.Name())
		return nil
	}

	if err := svc.EnsureIndex(context.Background(), "hosts"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ensured) != 1 || ensured[0] != "hosts" {
		t.Errorf("unexpected ensure calls: %v", ensured)
	}
}

func TestEnsureIndex_UnknownPolicy(t *testing.T) {
	svc, _ := newTestService(t, mustPolicy(t, "users", "email"))

	err := svc.EnsureIndex(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrPolicyNotFound) {
		t.Fatalf("expected ErrPolicyNotFound, got %v", err)
	}
}

func TestCount_ConfiguredPolicy(t *testing.T) {
	svc, mr := newTestService(t, mustPolicy(t, "users", "email"))

	mr.countFn = func(_ context.Context, p policy.Policy) (int, error) {
		if p.Name() != "users" {
			t.Errorf("counted wrong policy: %s", p.Name())
		}
		return 42, nil
	}

	n, err := svc.Count(context.Background(), "users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 42 {
		t.Errorf("expected 42 records, got %d", n)
	}
}

func TestCount_UnknownPolicy(t *testing.T) {
	svc, _ := newTestService(t, mustPolicy(t, "users", "email"))

	_, err := svc.Count(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrPolicyNotFound) {
		t.Fatalf("expected ErrPolicyNotFound, got %v", err)
	}
}

func TestOverview_MergesStoreEntries(t *testing.T) {
	svc, mr := newTestService(t,
		mustPolicy(t, "users", "email"),
		mustPolicy(t, "hosts", "host"),
	)

	// The store knows users plus a geo policy written by another deployment.
	mr.listPoliciesFn = func(_ context.Context) ([]policy.Policy, error) {
		return []policy.Policy{
			mustPolicy(t, "users", "email"),
			mustPolicy(t, "geo", "ip"),
		}, nil
	}
	mr.indexReadyFn = func(_ context.Context, p policy.Policy) (bool, error) {
		return p.Name() != "hosts", nil
	}
	counts := map[string]int{"users": 3, "geo": 7}
	var counted []string
	mr.countFn = func(_ context.Context, p policy.Policy) (int, error) {
		counted = append(counted, p.Name())
		return counts[p.Name()], nil
	}

	got, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Overview{
		{Name: "users", Type: "match", MatchField: "email", Index: "enrich-users", Configured: true, Ready: true, Records: 3},
		{Name: "hosts", Type: "match", MatchField: "host", Index: "enrich-hosts", Configured: true},
		{Name: "geo", Type: "match", MatchField: "ip", Index: "enrich-geo", Ready: true, Records: 7},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	// Unready indexes are never counted.
	for _, name := range counted {
		if name == "hosts" {
			t.Error("counted records of an unready index")
		}
	}
}

func TestOverview_ListFailure(t *testing.T) {
	svc, mr := newTestService(t, mustPolicy(t, "users", "email"))

	boom := errors.New("scan failed")
	mr.listPoliciesFn = func(_ context.Context) ([]policy.Policy, error) { return nil, boom }

	_, err := svc.Overview(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestPutRecords_EnsuresIndexFirst(t *testing.T) {
	svc, mr := newTestService(t, mustPolicy(t, "users", "email"))

	var calls []string
	mr.ensureIndexFn = func(_ context.Context, p policy.Policy) error {
		calls = append(calls, "ensure:"+p.Name())
		return nil
	}
	mr.putFn = func(_ context.Context, p policy.Policy, records []lookup.Record) ([]string, error) {
		calls = append(calls, "put:"+p.Name())
		return []string{"01A", "01B"}, nil
	}

	ids, err := svc.PutRecords(context.Background(), "users", []lookup.Record{
		{"email": "a@example.com"},
		{"email": "b@example.com"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "01A" || ids[1] != "01B" {
		t.Errorf("unexpected ids: %v", ids)
	}
	if len(calls) != 2 || calls[0] != "ensure:users" || calls[1] != "put:users" {
		t.Errorf("unexpected call order: %v", calls)
	}
}

func TestPutRecords_UnknownPolicy(t *testing.T) {
	svc, mr := newTestService(t, mustPolicy(t, "users", "email"))

	called := false
	mr.putFn = func(_ context.Context, _ policy.Policy, _ []lookup.Record) ([]string, error) {
		called = true
		return nil, nil
	}

	_, err := svc.PutRecords(context.Background(), "hosts", []lookup.Record{{"host": "web-01"}})
	if !errors.Is(err, domain.ErrPolicyNotFound) {
		t.Fatalf("expected ErrPolicyNotFound, got %v", err)
	}
	if called {
		t.Error("put should not run for an unknown policy")
	}
}

func TestPutRecords_Empty(t *testing.T) {
	svc, mr := newTestService(t, mustPolicy(t, "users", "email"))

	mr.ensureIndexFn = func(_ context.Context, _ policy.Policy) error {
		t.Error("ensure should not run for an empty batch")
		return nil
	}

	ids, err := svc.PutRecords(context.Background(), "users", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
}

func TestDeleteRecord_PropagatesNotFound(t *testing.T) {
	svc, mr := newTestService(t, mustPolicy(t, "users", "email"))

	mr.deleteFn = func(_ context.Context, _ policy.Policy, _ string) error {
		return domain.ErrRecordNotFound
	}

	err := svc.DeleteRecord(context.Background(), "users", "01A")
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestDeleteRecord_UnknownPolicy(t *testing.T) {
	svc, _ := newTestService(t, mustPolicy(t, "users", "email"))

	err := svc.DeleteRecord(context.Background(), "hosts", "01A")
	if !errors.Is(err, domain.ErrPolicyNotFound) {
		t.Fatalf("expected ErrPolicyNotFound, got %v", err)
	}
}
