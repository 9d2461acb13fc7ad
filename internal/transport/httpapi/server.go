// Package httpapi exposes enrichment, registry introspection and reference
// data administration over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/matchgate/enrichd/internal/domain"
	dombatch "github.com/matchgate/enrichd/internal/domain/batch"
	"github.com/matchgate/enrichd/internal/domain/document"
	"github.com/matchgate/enrichd/internal/domain/lookup"
	"github.com/matchgate/enrichd/internal/usecase/coordinator"
	enrichuc "github.com/matchgate/enrichd/internal/usecase/enrich"
	healthuc "github.com/matchgate/enrichd/internal/usecase/health"
	policiesuc "github.com/matchgate/enrichd/internal/usecase/policies"
)

type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeValidationFailed  errorCode = "validation_failed"
	codeUnauthorized      errorCode = "unauthorized"
	codeEnricherNotFound  errorCode = "enricher_not_found"
	codePolicyNotFound    errorCode = "policy_not_found"
	codeRecordNotFound    errorCode = "record_not_found"
	codeFieldNotFound     errorCode = "field_not_found"
	codeFieldTypeMismatch errorCode = "field_type_mismatch"
	codeQueueFull         errorCode = "lookup_queue_full"
	codeShuttingDown      errorCode = "shutting_down"
	codeLookupTimeout     errorCode = "lookup_timeout"
	codeInternalError     errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API.
type Server struct {
	enrichers     *enrichuc.Service
	policies      *policiesuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	enrichers *enrichuc.Service,
	policies *policiesuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		enrichers: enrichers,
		policies:  policies,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEnricherNotFound, http.StatusNotFound, codeEnricherNotFound),
		sentinelHandler(domain.ErrPolicyNotFound, http.StatusNotFound, codePolicyNotFound),
		sentinelHandler(domain.ErrRecordNotFound, http.StatusNotFound, codeRecordNotFound),
		sentinelHandler(domain.ErrFieldNotFound, http.StatusUnprocessableEntity, codeFieldNotFound),
		sentinelHandler(domain.ErrFieldTypeMismatch, http.StatusUnprocessableEntity, codeFieldTypeMismatch),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidRecord, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidSpec, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(coordinator.ErrQueueFull, http.StatusTooManyRequests, codeQueueFull),
		sentinelHandler(coordinator.ErrStopped, http.StatusServiceUnavailable, codeShuttingDown),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, codeLookupTimeout),
	}
	return s
}

// Routes mounts all API routes on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/enrich/{enricher}", s.enrichOne)
	r.Post("/v1/enrich/{enricher}/batch", s.enrichBatch)
	r.Get("/v1/enrichers", s.listEnrichers)
	r.Get("/v1/enrichers/{enricher}", s.getEnricher)
	r.Get("/v1/policies", s.listPolicies)
	r.Put("/v1/policies/{policy}/records", s.putRecords)
	r.Delete("/v1/policies/{policy}/records/{id}", s.deleteRecord)
	r.Get("/health", s.healthCheck)
	r.Get("/metrics", s.metrics)
}

// enrichOne handles POST /v1/enrich/{enricher}.
func (s *Server) enrichOne(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	enriched, err := s.enrichers.Enrich(r.Context(), chi.URLParam(r, "enricher"), doc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, enriched)
}

type batchEnrichRequest struct {
	Documents []map[string]any `json:"documents"`
}

type batchResultItem struct {
	ID       string              `json:"id"`
	Status   dombatch.ItemStatus `json:"status"`
	Document *document.Document  `json:"document,omitempty"`
	Error    *errorResponse      `json:"error,omitempty"`
}

type batchEnrichResponse struct {
	Items     []batchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// enrichBatch handles POST /v1/enrich/{enricher}/batch.
func (s *Server) enrichBatch(w http.ResponseWriter, r *http.Request) {
	var req batchEnrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Documents) == 0 || len(req.Documents) > enrichuc.MaxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("documents count must be between 1 and %d", enrichuc.MaxBatchSize))
		return
	}

	docs := make([]*document.Document, len(req.Documents))
	for i, body := range req.Documents {
		docs[i] = document.New(body)
	}

	results := s.enrichers.EnrichBatch(r.Context(), chi.URLParam(r, "enricher"), docs)

	succeeded, failed := 0, 0
	items := make([]batchResultItem, len(results))
	for i, res := range results {
		items[i] = batchResultToItem(res)
		if res.Status() == dombatch.StatusOK {
			succeeded++
		} else {
			failed++
		}
	}

	writeJSON(w, http.StatusOK, batchEnrichResponse{
		Items:     items,
		Succeeded: succeeded,
		Failed:    failed,
	})
}

type enricherResponse struct {
	Name          string `json:"name"`
	Policy        string `json:"policy"`
	SourceField   string `json:"source_field"`
	TargetField   string `json:"target_field"`
	IgnoreMissing bool   `json:"ignore_missing"`
	Override      bool   `json:"override"`
	MaxMatches    int    `json:"max_matches"`
}

// listEnrichers handles GET /v1/enrichers.
func (s *Server) listEnrichers(w http.ResponseWriter, _ *http.Request) {
	infos := s.enrichers.List()
	items := make([]enricherResponse, len(infos))
	for i, info := range infos {
		items[i] = enricherToResponse(info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// getEnricher handles GET /v1/enrichers/{enricher}.
func (s *Server) getEnricher(w http.ResponseWriter, r *http.Request) {
	info, err := s.enrichers.Describe(chi.URLParam(r, "enricher"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enricherToResponse(info))
}

type policyResponse struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	MatchField string `json:"match_field"`
	Index      string `json:"index"`
	Configured bool   `json:"configured"`
	Ready      bool   `json:"ready"`
	Records    int    `json:"records"`
}

// listPolicies handles GET /v1/policies.
func (s *Server) listPolicies(w http.ResponseWriter, r *http.Request) {
	overviews, err := s.policies.Overview(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]policyResponse, len(overviews))
	for i, ov := range overviews {
		items[i] = policyResponse{
			Name:       ov.Name,
			Type:       ov.Type,
			MatchField: ov.MatchField,
			Index:      ov.Index,
			Configured: ov.Configured,
			Ready:      ov.Ready,
			Records:    ov.Records,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type putRecordsRequest struct {
	Records []lookup.Record `json:"records"`
}

type putRecordsResponse struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// putRecords handles PUT /v1/policies/{policy}/records.
func (s *Server) putRecords(w http.ResponseWriter, r *http.Request) {
	var req putRecordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "records are required")
		return
	}

	ids, err := s.policies.PutRecords(r.Context(), chi.URLParam(r, "policy"), req.Records)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, putRecordsResponse{IDs: ids, Count: len(ids)})
}

// deleteRecord handles DELETE /v1/policies/{policy}/records/{id}.
func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	err := s.policies.DeleteRecord(r.Context(), chi.URLParam(r, "policy"), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: report.Status,
		Checks: report.Checks,
	})
}

// metrics handles GET /metrics.
func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeDocument(r *http.Request) (*document.Document, error) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	return document.New(body), nil
}

func enricherToResponse(info enrichuc.Info) enricherResponse {
	return enricherResponse{
		Name:          info.Name,
		Policy:        info.Policy,
		SourceField:   info.SourceField,
		TargetField:   info.TargetField,
		IgnoreMissing: info.IgnoreMissing,
		Override:      info.Override,
		MaxMatches:    info.MaxMatches,
	}
}

func batchResultToItem(res dombatch.Result) batchResultItem {
	item := batchResultItem{
		ID:     res.ID(),
		Status: res.Status(),
	}
	if res.Document() != nil {
		item.Document = res.Document()
	}
	if res.Err() != nil {
		item.Error = &errorResponse{
			Code:    batchErrorCode(res.Err()),
			Message: safeDomainMessage(res.Err()),
		}
	}
	return item
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEnricherNotFound,
		domain.ErrPolicyNotFound,
		domain.ErrRecordNotFound,
		domain.ErrFieldNotFound,
		domain.ErrFieldTypeMismatch,
		domain.ErrInvalidDocument,
		domain.ErrInvalidRecord,
		domain.ErrInvalidSpec,
		coordinator.ErrQueueFull,
		coordinator.ErrStopped,
		context.DeadlineExceeded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func batchErrorCode(err error) errorCode {
	switch {
	case errors.Is(err, domain.ErrEnricherNotFound):
		return codeEnricherNotFound
	case errors.Is(err, domain.ErrFieldNotFound):
		return codeFieldNotFound
	case errors.Is(err, domain.ErrFieldTypeMismatch):
		return codeFieldTypeMismatch
	case errors.Is(err, domain.ErrInvalidDocument):
		return codeValidationFailed
	case errors.Is(err, coordinator.ErrQueueFull):
		return codeQueueFull
	case errors.Is(err, coordinator.ErrStopped):
		return codeShuttingDown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return codeLookupTimeout
	default:
		return codeInternalError
	}
}
