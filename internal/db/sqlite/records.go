package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/matchgate/enrichd/internal/db"
)

// PutRecords upserts reference records in one transaction. ON CONFLICT
// updates keep the original rowid, so re-ingesting a record does not move
// it in scan order.
func (s *Store) PutRecords(ctx context.Context, index string, items []db.RecordPut) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const q = `INSERT INTO records (key, idx, id, match_value, source)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET idx = excluded.idx, id = excluded.id,
	match_value = excluded.match_value, source = excluded.source`

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, item.Key, index, item.ID, item.MatchValue, string(item.Source)); err != nil {
			return &db.Error{Op: db.OpExec, Err: fmt.Errorf("put %s: %w", item.Key, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	return nil
}

// GetRecord returns the raw JSON source stored under key.
func (s *Store) GetRecord(ctx context.Context, key string) ([]byte, error) {
	var source string
	err := s.db.QueryRowContext(ctx, `SELECT source FROM records WHERE key = ?`, key).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &db.Error{Op: db.OpQuery, Err: db.ErrRecordNotFound}
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return []byte(source), nil
}

// DeleteRecord removes a record by key.
func (s *Store) DeleteRecord(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key)
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	if n == 0 {
		return &db.Error{Op: db.OpExec, Err: db.ErrRecordNotFound}
	}
	return nil
}

// CountRecords returns the number of records held by an index.
func (s *Store) CountRecords(ctx context.Context, index string) (int, error) {
	if _, err := s.lookupIndex(ctx, index); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE idx = ?`, index).Scan(&n); err != nil {
		return 0, &db.Error{Op: db.OpQuery, Err: err}
	}
	return n, nil
}
