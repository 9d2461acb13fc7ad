package coordinator

import (
	"context"

	"github.com/matchgate/enrichd/internal/domain/lookup"
)

// Searcher is the consumer interface for batched lookups (ISP).
type Searcher interface {
	SearchMulti(ctx context.Context, queries []*lookup.Query) ([]lookup.Outcome, error)
}
