package sqlite

import (
	"context"
	"fmt"

	"github.com/matchgate/enrichd/internal/db"
)

// SearchTerm runs an exact-match lookup against one index. Total counts all
// matching records; Entries carries the requested page in insertion order.
// PreferLocal is ignored, an embedded database has no replicas.
func (s *Store) SearchTerm(ctx context.Context, q *db.TermQuery) (*db.SearchResult, error) {
	if err := validateTermQuery(q); err != nil {
		return nil, err
	}

	// Empty match values are never indexed, skip the query entirely.
	if q.Value == "" {
		return &db.SearchResult{}, nil
	}

	def, err := s.lookupIndex(ctx, q.IndexName)
	if err != nil {
		return nil, err
	}

	where := `idx = ? AND match_value = ?`
	if !def.caseSensitive {
		where = `idx = ? AND match_value = ? COLLATE NOCASE`
	}

	var total int
	countQ := `SELECT COUNT(*) FROM records WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQ, q.IndexName, q.Value).Scan(&total); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}

	pageQ := `SELECT key, source FROM records WHERE ` + where + ` ORDER BY rowid LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, pageQ, q.IndexName, q.Value, q.Limit, q.Offset)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	defer rows.Close()

	result := &db.SearchResult{Total: total}
	for rows.Next() {
		var (
			key    string
			source string
		)
		if err := rows.Scan(&key, &source); err != nil {
			return nil, &db.Error{Op: db.OpQuery, Err: err}
		}
		result.Entries = append(result.Entries, db.SearchEntry{Key: key, Source: []byte(source)})
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return result, nil
}

// SearchTermMulti runs each query in turn and reports per-item outcomes.
// The embedded engine gains nothing from pipelining, so this is a plain loop
// kept for interface parity with the Redis backend.
func (s *Store) SearchTermMulti(ctx context.Context, queries []*db.TermQuery) ([]db.MultiSearchItem, error) {
	items := make([]db.MultiSearchItem, len(queries))
	for i, q := range queries {
		res, err := s.SearchTerm(ctx, q)
		items[i] = db.MultiSearchItem{Result: res, Err: err}
	}
	return items, nil
}

func validateTermQuery(q *db.TermQuery) error {
	if q == nil {
		return fmt.Errorf("query is required")
	}
	if q.IndexName == "" {
		return fmt.Errorf("index name is required")
	}
	if q.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", q.Limit)
	}
	return nil
}
