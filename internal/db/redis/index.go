package redis

import (
	"context"

	"github.com/matchgate/enrichd/internal/db"
)

// CreateIndex creates the FT index for a reference index definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(buildCreateArgs(def)...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes an FT index by name. Record keys stay in place.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

// buildCreateArgs renders the fixed enrich index shape: records stored as
// JSON under one key prefix, one TAG field aliased db.MatchAlias for exact
// lookups.
func buildCreateArgs(def *db.IndexDefinition) []string {
	args := []string{
		def.Name,
		"ON", "JSON",
		"PREFIX", "1", def.Prefix,
		"SCHEMA",
		"$." + def.MatchField, "AS", db.MatchAlias, "TAG",
	}
	if def.CaseSensitive {
		args = append(args, "CASESENSITIVE")
	}
	return args
}
