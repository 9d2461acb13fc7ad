package enrichd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

func TestEnrich_ReturnsEnrichedDocument(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/enrich/user-lookup" {
			t.Errorf("path = %q, want /v1/enrich/user-lookup", r.URL.Path)
		}

		var doc map[string]any
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if doc["email"] != "jane@example.com" {
			t.Errorf("email = %v, want jane@example.com", doc["email"])
		}

		doc["user"] = []map[string]any{{"city": "Berlin"}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	})

	c := newTestClient(t, handler)
	out, err := c.Enrich(context.Background(), "user-lookup",
		map[string]any{"email": "jane@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user, ok := out["user"].([]any)
	if !ok || len(user) != 1 {
		t.Fatalf("user = %#v, want one match", out["user"])
	}
	first, _ := user[0].(map[string]any)
	if first["city"] != "Berlin" {
		t.Errorf("city = %v, want Berlin", first["city"])
	}
}

func TestEnrich_FieldNotFound(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusUnprocessableEntity,
		`{"code":"field_not_found","message":"source field not found"}`))

	_, err := c.Enrich(context.Background(), "user-lookup", map[string]any{"name": "no email"})
	if !errors.Is(err, ErrFieldNotFound) {
		t.Fatalf("err = %v, want ErrFieldNotFound", err)
	}
}

func TestEnrichBatch_MixedOutcomes(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/enrich/user-lookup/batch" {
			t.Errorf("path = %q, want /v1/enrich/user-lookup/batch", r.URL.Path)
		}

		var req struct {
			Documents []map[string]any `json:"documents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Documents) != 2 {
			t.Errorf("documents = %d, want 2", len(req.Documents))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [
				{"id":"0","status":"ok","document":{"email":"a@example.com","user":[{"city":"Berlin"}]}},
				{"id":"1","status":"error","error":{"code":"field_not_found","message":"source field not found"}}
			],
			"succeeded": 1,
			"failed": 1
		}`))
	})

	c := newTestClient(t, handler)
	res, err := c.EnrichBatch(context.Background(), "user-lookup", []map[string]any{
		{"email": "a@example.com"},
		{"name": "no email"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Succeeded != 1 || res.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 1/1", res.Succeeded, res.Failed)
	}
	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(res.Items))
	}

	ok := res.Items[0]
	if ok.Status != StatusOK || ok.Document["email"] != "a@example.com" {
		t.Errorf("first item = %+v, want enriched document", ok)
	}

	failed := res.Items[1]
	if failed.Status != StatusError || failed.Error == nil {
		t.Fatalf("second item = %+v, want error", failed)
	}
	if !errors.Is(failed.Error, ErrFieldNotFound) {
		t.Errorf("item error = %v, want ErrFieldNotFound", failed.Error)
	}
}

func TestEnrichers_List(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusOK,
		`{"items":[{"name":"user-lookup","policy":"users","source_field":"email",
		  "target_field":"user","ignore_missing":false,"override":true,"max_matches":1}]}`))

	infos, err := c.Enrichers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("len = %d, want 1", len(infos))
	}
	if infos[0].Name != "user-lookup" || infos[0].Policy != "users" {
		t.Errorf("info = %+v", infos[0])
	}
	if !infos[0].Override || infos[0].MaxMatches != 1 {
		t.Errorf("defaults not decoded: %+v", infos[0])
	}
}

func TestEnricher_Get(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/enrichers/user-lookup" {
			t.Errorf("path = %q, want /v1/enrichers/user-lookup", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"user-lookup","policy":"users","source_field":"email",
		  "target_field":"user","override":true,"max_matches":1}`))
	})

	c := newTestClient(t, handler)
	info, err := c.Enricher(context.Background(), "user-lookup")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.SourceField != "email" || info.TargetField != "user" {
		t.Errorf("info = %+v", info)
	}
}

func TestPolicies_List(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusOK,
		`{"items":[{"name":"users","type":"match","match_field":"email",
		  "index":"enrich-users","configured":true,"ready":true,"records":42}]}`))

	pols, err := c.Policies(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pols) != 1 {
		t.Fatalf("len = %d, want 1", len(pols))
	}
	if pols[0].Index != "enrich-users" || pols[0].Records != 42 {
		t.Errorf("policy = %+v", pols[0])
	}
}

func TestPutRecords_ReturnsIDs(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if r.URL.Path != "/v1/policies/users/records" {
			t.Errorf("path = %q, want /v1/policies/users/records", r.URL.Path)
		}

		var req struct {
			Records []map[string]any `json:"records"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Records) != 2 {
			t.Errorf("records = %d, want 2", len(req.Records))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ids":["u1","u2"],"count":2}`))
	})

	c := newTestClient(t, handler)
	ids, err := c.PutRecords(context.Background(), "users", []map[string]any{
		{"_id": "u1", "email": "a@example.com", "city": "Berlin"},
		{"email": "b@example.com", "city": "Paris"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "u1" {
		t.Errorf("ids = %v, want [u1 u2]", ids)
	}
}

func TestPutRecords_PolicyNotFound(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusNotFound,
		`{"code":"policy_not_found","message":"policy not found"}`))

	_, err := c.PutRecords(context.Background(), "ghost",
		[]map[string]any{{"email": "a@example.com"}})
	if !errors.Is(err, ErrPolicyNotFound) {
		t.Fatalf("err = %v, want ErrPolicyNotFound", err)
	}
}

func TestDeleteRecord_NoContent(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		if r.URL.Path != "/v1/policies/users/records/u1" {
			t.Errorf("path = %q, want /v1/policies/users/records/u1", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, handler)
	if err := c.DeleteRecord(context.Background(), "users", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteRecord_NotFound(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusNotFound,
		`{"code":"record_not_found","message":"record not found"}`))

	err := c.DeleteRecord(context.Background(), "users", "ghost")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestHealth_Healthy(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusOK,
		`{"status":"ok","checks":{"store":"ok","lookup_queue":"ok"}}`))

	hs, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hs.Status != "ok" {
		t.Errorf("Status = %q, want ok", hs.Status)
	}
	if hs.Checks["lookup_queue"] != "ok" {
		t.Errorf("Checks = %v", hs.Checks)
	}
}

func TestHealth_DegradedStillDecodes(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusServiceUnavailable,
		`{"status":"degraded","checks":{"store":"error"}}`))

	hs, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hs.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", hs.Status)
	}
	if hs.Checks["store"] != "error" {
		t.Errorf("Checks = %v", hs.Checks)
	}
}

func TestHealth_Unauthorized(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusUnauthorized,
		`{"code":"unauthorized","message":"unauthorized"}`))

	_, err := c.Health(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}
