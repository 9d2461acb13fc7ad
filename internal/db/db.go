package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade interface -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	RecordStore
	MetaStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RecordPut holds one reference record for pipelined writes. Key is the full
// storage key; MatchValue is the precomputed match-field value for backends
// that index it out-of-band.
type RecordPut struct {
	Key        string
	ID         string
	MatchValue string
	Source     []byte
}

// RecordStore provides reference record operations.
type RecordStore interface {
	PutRecords(ctx context.Context, index string, items []RecordPut) error
	GetRecord(ctx context.Context, key string) ([]byte, error)
	DeleteRecord(ctx context.Context, key string) error
	CountRecords(ctx context.Context, index string) (int, error)
}

// MetaStore provides small metadata hashes keyed alongside reference records.
type MetaStore interface {
	SetMeta(ctx context.Context, key string, fields map[string]string) error
	GetMeta(ctx context.Context, key string) (map[string]string, error)
	DeleteMeta(ctx context.Context, key string) error
	ListMeta(ctx context.Context, prefix string) ([]string, error)
}

// IndexManager provides reference index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides exact-match lookups over reference indexes.
type Searcher interface {
	SearchTerm(ctx context.Context, q *TermQuery) (*SearchResult, error)
	SearchTermMulti(ctx context.Context, qs []*TermQuery) ([]MultiSearchItem, error)
}
