package policies

import (
	"context"

	"github.com/matchgate/enrichd/internal/domain/lookup"
	"github.com/matchgate/enrichd/internal/domain/policy"
)

// Repository defines the reference data contract for policy administration.
type Repository interface {
	EnsureIndex(ctx context.Context, p policy.Policy) error
	IndexReady(ctx context.Context, p policy.Policy) (bool, error)
	Put(ctx context.Context, p policy.Policy, records []lookup.Record) ([]string, error)
	Delete(ctx context.Context, p policy.Policy, id string) error
	Count(ctx context.Context, p policy.Policy) (int, error)
	ListPolicies(ctx context.Context) ([]policy.Policy, error)
}
