// Package document implements the mutable ingest document that enrichment
// processors read from and write into. Fields are addressed by dotted paths
// ("user.contact.email"); numeric segments index into lists.
package document

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/matchgate/enrichd/internal/domain"
)

// Document is a JSON-shaped body addressed by dotted paths. It is mutated in
// place by enrichment; callers that need the original must copy it themselves.
type Document struct {
	body map[string]any
}

// New creates a document around the given body. A nil body becomes empty.
func New(body map[string]any) *Document {
	if body == nil {
		body = map[string]any{}
	}
	return &Document{body: body}
}

// FromJSON parses a JSON object into a document.
func FromJSON(data []byte) (*Document, error) {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("parse document: %w: %w", domain.ErrInvalidDocument, err)
	}
	return New(body), nil
}

// Body returns the underlying body. Mutations are visible to the document.
func (d *Document) Body() map[string]any { return d.body }

// MarshalJSON serializes the document body.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.body)
}

// Get resolves a dotted path. The second return is false when the path does
// not resolve. A path that resolves to an explicit null returns (nil, true).
func (d *Document) Get(path string) (any, bool) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	var cur any = d.body
	for _, seg := range segs {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Has reports whether the path resolves to any value, null included.
func (d *Document) Has(path string) bool {
	_, ok := d.Get(path)
	return ok
}

// GetString reads a scalar string at path. Missing paths fail unless
// ignoreMissing is set, in which case ok is false with a nil error. A present
// null counts as missing-with-skip regardless of ignoreMissing. Non-string
// values always fail with ErrFieldTypeMismatch.
func (d *Document) GetString(path string, ignoreMissing bool) (string, bool, error) {
	v, found := d.Get(path)
	if !found {
		if ignoreMissing {
			return "", false, nil
		}
		return "", false, fmt.Errorf("field [%s] not present in document: %w", path, domain.ErrFieldNotFound)
	}
	if v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("field [%s] holds %T, expected string: %w", path, v, domain.ErrFieldTypeMismatch)
	}
	return s, true, nil
}

// Set writes value at path, creating missing intermediate objects. Writing
// through a segment that holds a non-object value fails with a path conflict.
// List segments can be written only at existing indices.
func (d *Document) Set(path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	var parent any = d.body
	for _, seg := range segs[:len(segs)-1] {
		next, ok := step(parent, seg)
		if !ok {
			m, isMap := parent.(map[string]any)
			if !isMap {
				return domain.NewPathConflict(path, seg)
			}
			child := map[string]any{}
			m[seg] = child
			parent = child
			continue
		}
		switch next.(type) {
		case map[string]any, []any, []map[string]any:
			parent = next
		default:
			return domain.NewPathConflict(path, seg)
		}
	}

	last := segs[len(segs)-1]
	switch p := parent.(type) {
	case map[string]any:
		p[last] = value
		return nil
	case []any:
		idx, ok := listIndex(last, len(p))
		if !ok {
			return domain.NewPathConflict(path, last)
		}
		p[idx] = value
		return nil
	default:
		return domain.NewPathConflict(path, last)
	}
}

// step resolves one path segment against a container.
func step(container any, seg string) (any, bool) {
	switch c := container.(type) {
	case map[string]any:
		v, ok := c[seg]
		return v, ok
	case []any:
		idx, ok := listIndex(seg, len(c))
		if !ok {
			return nil, false
		}
		return c[idx], true
	case []map[string]any:
		idx, ok := listIndex(seg, len(c))
		if !ok {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}

func listIndex(seg string, n int) (int, bool) {
	idx, err := strconv.Atoi(seg)
	if err != nil || idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty field path: %w", domain.ErrInvalidDocument)
	}
	segs := strings.Split(path, ".")
	for _, seg := range segs {
		if seg == "" {
			return nil, fmt.Errorf("field path [%s] has an empty segment: %w", path, domain.ErrInvalidDocument)
		}
	}
	return segs, nil
}
