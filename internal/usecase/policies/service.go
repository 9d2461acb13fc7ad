// Package policies manages configured enrichment policies and their
// reference data.
package policies

import (
	"context"
	"fmt"

	"github.com/matchgate/enrichd/internal/domain"
	"github.com/matchgate/enrichd/internal/domain/lookup"
	"github.com/matchgate/enrichd/internal/domain/policy"
)

// Service exposes administrative operations over the configured policies.
type Service struct {
	repo       Repository
	configured map[string]policy.Policy
	order      []string
}

// NewService creates a policy administration service.
func NewService(repo Repository, configured []policy.Policy) *Service {
	s := &Service{
		repo:       repo,
		configured: make(map[string]policy.Policy, len(configured)),
	}
	for _, p := range configured {
		if _, ok := s.configured[p.Name()]; !ok {
			s.order = append(s.order, p.Name())
		}
		s.configured[p.Name()] = p
	}
	return s
}

// Get returns a configured policy by name.
func (s *Service) Get(name string) (policy.Policy, error) {
	p, ok := s.configured[name]
	if !ok {
		return policy.Policy{}, fmt.Errorf("policy %q: %w", name, domain.ErrPolicyNotFound)
	}
	return p, nil
}

// List returns the configured policies in configuration order.
func (s *Service) List() []policy.Policy {
	out := make([]policy.Policy, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.configured[name])
	}
	return out
}

// EnsureIndexes creates the reference index of every configured policy.
// Called once at startup so lookups never race index creation.
func (s *Service) EnsureIndexes(ctx context.Context) error {
	for _, name := range s.order {
		if err := s.repo.EnsureIndex(ctx, s.configured[name]); err != nil {
			return fmt.Errorf("policy %s: %w", name, err)
		}
	}
	return nil
}

// EnsureIndex creates one configured policy's reference index. Idempotent;
// recovers an index dropped behind the service's back.
func (s *Service) EnsureIndex(ctx context.Context, name string) error {
	p, err := s.Get(name)
	if err != nil {
		return err
	}
	if err := s.repo.EnsureIndex(ctx, p); err != nil {
		return fmt.Errorf("policy %s: %w", name, err)
	}
	return nil
}

// Count returns the number of reference records indexed for a configured policy.
func (s *Service) Count(ctx context.Context, name string) (int, error) {
	p, err := s.Get(name)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.Count(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("policy %s: %w", name, err)
	}
	return n, nil
}

// Overview describes one policy's configuration and store state. Records is
// counted only for ready indexes.
type Overview struct {
	Name       string
	Type       string
	MatchField string
	Index      string
	Configured bool
	Ready      bool
	Records    int
}

// Overview merges configured policies with the ones discovered in the store.
// Store-side entries that are not configured usually mean another deployment
// shares the store; they are reported but cannot serve enrichers here.
func (s *Service) Overview(ctx context.Context) ([]Overview, error) {
	stored, err := s.repo.ListPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored policies: %w", err)
	}

	out := make([]Overview, 0, len(s.order)+len(stored))
	for _, name := range s.order {
		ov, err := s.describe(ctx, s.configured[name], true)
		if err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	for _, p := range stored {
		if _, ok := s.configured[p.Name()]; ok {
			continue
		}
		ov, err := s.describe(ctx, p, false)
		if err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	return out, nil
}

func (s *Service) describe(ctx context.Context, p policy.Policy, configured bool) (Overview, error) {
	ready, err := s.repo.IndexReady(ctx, p)
	if err != nil {
		return Overview{}, fmt.Errorf("policy %s: %w", p.Name(), err)
	}

	ov := Overview{
		Name:       p.Name(),
		Type:       string(p.Type()),
		MatchField: p.MatchField(),
		Index:      policy.BaseName(p.Name()),
		Configured: configured,
		Ready:      ready,
	}
	if ready {
		n, err := s.repo.Count(ctx, p)
		if err != nil {
			return Overview{}, fmt.Errorf("policy %s: %w", p.Name(), err)
		}
		ov.Records = n
	}
	return ov, nil
}

// PutRecords ingests reference records for a configured policy and returns
// their ids. The index is ensured first so the records are searchable the
// moment the call returns.
func (s *Service) PutRecords(ctx context.Context, name string, records []lookup.Record) ([]string, error) {
	p, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	if err := s.repo.EnsureIndex(ctx, p); err != nil {
		return nil, fmt.Errorf("policy %s: %w", name, err)
	}
	ids, err := s.repo.Put(ctx, p, records)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", name, err)
	}
	return ids, nil
}

// DeleteRecord removes one reference record of a configured policy.
func (s *Service) DeleteRecord(ctx context.Context, name, id string) error {
	p, err := s.Get(name)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, p, id); err != nil {
		return fmt.Errorf("policy %s: %w", name, err)
	}
	return nil
}
