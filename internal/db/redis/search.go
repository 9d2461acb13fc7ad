package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/matchgate/enrichd/internal/db"
)

// SearchTerm runs one exact-match lookup via FT.SEARCH.
//
// The query filters on the match alias with a TAG equality and requests the
// full record JSON. No scoring is involved: without WITHSCORES or SORTBY the
// server returns hits in index insertion order.
func (s *Store) SearchTerm(ctx context.Context, q *db.TermQuery) (*db.SearchResult, error) {
	if err := validateTermQuery(q); err != nil {
		return nil, err
	}
	if q.Value == "" {
		// Empty tag values are never indexed, so the match set is empty
		// by definition and the round-trip can be skipped.
		return &db.SearchResult{}, nil
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(buildTermArgs(q)...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseTermResult(raw)
}

// SearchTermMulti runs a batch of lookups in a single DoMulti round-trip.
// Outcomes are positional; one query's failure never fails its siblings.
func (s *Store) SearchTermMulti(ctx context.Context, qs []*db.TermQuery) ([]db.MultiSearchItem, error) {
	if len(qs) == 0 {
		return nil, nil
	}

	items := make([]db.MultiSearchItem, len(qs))
	cmds := make([]rueidis.Completed, 0, len(qs))
	positions := make([]int, 0, len(qs))

	for i, q := range qs {
		if err := validateTermQuery(q); err != nil {
			items[i].Err = err
			continue
		}
		if q.Value == "" {
			items[i].Result = &db.SearchResult{}
			continue
		}
		cmds = append(cmds, s.b().Arbitrary("FT.SEARCH").Args(buildTermArgs(q)...).Build())
		positions = append(positions, i)
	}

	if len(cmds) == 0 {
		return items, nil
	}

	results := s.client.DoMulti(ctx, cmds...)
	for j, res := range results {
		i := positions[j]
		raw, err := res.ToArray()
		if err != nil {
			if isRedisErr(err, "unknown index name") {
				items[i].Err = db.ErrIndexNotFound
			} else {
				items[i].Err = &db.Error{Op: db.OpSearch, Err: err}
			}
			continue
		}
		r, err := parseTermResult(raw)
		if err != nil {
			items[i].Err = err
			continue
		}
		items[i].Result = r
	}

	return items, nil
}

func validateTermQuery(q *db.TermQuery) error {
	if q.IndexName == "" {
		return fmt.Errorf("index name is required")
	}
	if q.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	return nil
}

func buildTermArgs(q *db.TermQuery) []string {
	queryStr := buildTagFilter(db.MatchAlias, q.Value)
	return []string{
		q.IndexName, queryStr,
		"RETURN", "1", "$",
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	}
}

// parseTermResult decodes the RESP2 reply.
// 2-stride: [total, key1, fields1, key2, fields2, ...] where fields is a flat
// name/value array holding the record JSON under "$".
func parseTermResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		source, ok := sourceField(fields)
		if !ok {
			continue
		}

		entries = append(entries, db.SearchEntry{Key: key, Source: source})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

// sourceField extracts the "$" value from a flat name/value field array.
func sourceField(fields []rueidis.RedisMessage) ([]byte, bool) {
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil || name != "$" {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			return nil, false
		}
		return []byte(value), true
	}
	return nil, false
}

func buildTagFilter(alias, value string) string {
	escaped := tagEscaper.Replace(value)
	return fmt.Sprintf("@%s:{%s}", alias, escaped)
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	" ", "\\ ",
)
