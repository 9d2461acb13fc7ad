package enrichd

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

const tagKey = "enrich"

// Records is a typed seeding handle for one policy's reference data. Field
// mapping comes from `enrich` struct tags, parsed once at construction:
//
//	type User struct {
//	    ID    string `enrich:"user_id,id"` // record id, not a record field
//	    Email string `enrich:"email"`
//	    City  string // stored as "city"
//	    Note  string `enrich:"-"`
//	}
type Records[T any] struct {
	policy string
	client *Client
	meta   *recordSchema
}

// NewRecords builds a typed records handle for a declared policy. T must be
// a struct; its exported fields become record fields.
func NewRecords[T any](client *Client, policy string) (*Records[T], error) {
	meta, err := parseRecordSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("records %q: %w", policy, err)
	}
	return &Records[T]{policy: policy, client: client, meta: meta}, nil
}

// Put stores typed items as reference records and returns their ids.
func (r *Records[T]) Put(ctx context.Context, items ...T) ([]string, error) {
	records := make([]map[string]any, len(items))
	for i, item := range items {
		records[i] = r.meta.toRecord(item)
	}
	return r.client.Put(ctx, r.policy, records)
}

// Delete removes one reference record by id.
func (r *Records[T]) Delete(ctx context.Context, id string) error {
	return r.client.DeleteRecord(ctx, r.policy, id)
}

// Count returns the number of stored reference records.
func (r *Records[T]) Count(ctx context.Context) (int, error) {
	return r.client.CountRecords(ctx, r.policy)
}

// recordSchema holds parsed struct tag metadata, cached per Records handle.
type recordSchema struct {
	idIdx  int // -1 when items carry no id field
	fields []recordField
}

type recordField struct {
	structIdx int
	name      string
}

// parseRecordSchema reflects on T and extracts enrich struct tag metadata.
func parseRecordSchema[T any]() (*recordSchema, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return nil, fmt.Errorf("type parameter is not a struct")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %s is not a struct", t)
	}

	meta := &recordSchema{idIdx: -1}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get(tagKey)
		if tag == "-" {
			continue
		}

		name, modifier, _ := strings.Cut(tag, ",")
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		if modifier == "id" {
			if meta.idIdx != -1 {
				return nil, fmt.Errorf("duplicate id tag on field %s", f.Name)
			}
			if f.Type.Kind() != reflect.String {
				return nil, fmt.Errorf("id field %s must be a string", f.Name)
			}
			meta.idIdx = i
			continue
		}
		meta.fields = append(meta.fields, recordField{structIdx: i, name: name})
	}

	if len(meta.fields) == 0 {
		return nil, fmt.Errorf("type %s has no record fields", t)
	}
	return meta, nil
}

// toRecord converts one typed item into a reference record. An empty id
// field falls through to store-assigned ids.
func (m *recordSchema) toRecord(item any) map[string]any {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}

	rec := make(map[string]any, len(m.fields)+1)
	for _, f := range m.fields {
		rec[f.name] = v.Field(f.structIdx).Interface()
	}
	if m.idIdx != -1 {
		if id := v.Field(m.idIdx).String(); id != "" {
			rec["_id"] = id
		}
	}
	return rec
}
