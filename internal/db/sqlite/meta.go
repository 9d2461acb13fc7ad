package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/matchgate/enrichd/internal/db"
)

// SetMeta stores a metadata hash under key. Fields are kept as one JSON
// object per key, the embedded analog of a Redis hash.
func (s *Store) SetMeta(ctx context.Context, key string, fields map[string]string) error {
	blob, err := json.Marshal(fields)
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}

	const q = `INSERT INTO meta (key, fields) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET fields = excluded.fields`
	if _, err := s.db.ExecContext(ctx, q, key, string(blob)); err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	return nil
}

// GetMeta returns the metadata hash stored under key.
func (s *Store) GetMeta(ctx context.Context, key string) (map[string]string, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT fields FROM meta WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &db.Error{Op: db.OpQuery, Err: db.ErrRecordNotFound}
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}

	fields := make(map[string]string)
	if err := json.Unmarshal([]byte(blob), &fields); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return fields, nil
}

// DeleteMeta removes a metadata hash. Deleting a missing key is not an error.
func (s *Store) DeleteMeta(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM meta WHERE key = ?`, key); err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	return nil
}

// ListMeta returns all metadata keys starting with prefix.
func (s *Store) ListMeta(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM meta WHERE key LIKE ? ORDER BY key`, prefix+"%")
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, &db.Error{Op: db.OpQuery, Err: err}
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return keys, nil
}
