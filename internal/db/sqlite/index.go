package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/matchgate/enrichd/internal/db"
)

// indexRow mirrors one row of the indexes table.
type indexRow struct {
	prefix        string
	matchField    string
	caseSensitive bool
}

// lookupIndex fetches an index definition, mapping a missing row to
// db.ErrIndexNotFound so callers see the same sentinel the Redis backend
// produces for an unknown index.
func (s *Store) lookupIndex(ctx context.Context, name string) (*indexRow, error) {
	var (
		row indexRow
		cs  int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT prefix, match_field, case_sensitive FROM indexes WHERE name = ?`, name).
		Scan(&row.prefix, &row.matchField, &cs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &db.Error{Op: db.OpQuery, Err: db.ErrIndexNotFound}
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	row.caseSensitive = cs != 0
	return &row, nil
}

// CreateIndex registers an index definition. Unlike a search engine there is
// nothing to build; records carry their match value in a dedicated column.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	cs := 0
	if def.CaseSensitive {
		cs = 1
	}

	const q = `INSERT INTO indexes (name, prefix, match_field, case_sensitive) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, def.Name, def.Prefix, def.MatchField, cs); err != nil {
		if isUniqueViolation(err) {
			return &db.Error{Op: db.OpCreateIndex, Err: db.ErrIndexExists}
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes an index definition. Records stay in place, matching
// FT.DROPINDEX semantics without DD.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM indexes WHERE name = ?`, name)
	if err != nil {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	if n == 0 {
		return &db.Error{Op: db.OpDropIndex, Err: db.ErrIndexNotFound}
	}
	return nil
}

// IndexExists reports whether an index definition is registered.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	_, err := s.lookupIndex(ctx, name)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// isUniqueViolation matches the primary key conflict SQLite raises when an
// index name is already registered.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
