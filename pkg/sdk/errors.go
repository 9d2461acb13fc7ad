package enrichd

import (
	"errors"
	"fmt"
)

// Sentinel errors matched from the service's wire error codes.
// Use errors.Is() to check.
var (
	ErrUnauthorized      = errors.New("enrichd: unauthorized")
	ErrEnricherNotFound  = errors.New("enrichd: enricher not found")
	ErrPolicyNotFound    = errors.New("enrichd: policy not found")
	ErrRecordNotFound    = errors.New("enrichd: record not found")
	ErrFieldNotFound     = errors.New("enrichd: source field not found")
	ErrFieldTypeMismatch = errors.New("enrichd: source field type mismatch")
	ErrValidationFailed  = errors.New("enrichd: validation failed")
	ErrQueueFull         = errors.New("enrichd: lookup queue full")
	ErrShuttingDown      = errors.New("enrichd: service shutting down")
	ErrLookupTimeout     = errors.New("enrichd: lookup timed out")
)

var sentinelByCode = map[string]error{
	"unauthorized":        ErrUnauthorized,
	"enricher_not_found":  ErrEnricherNotFound,
	"policy_not_found":    ErrPolicyNotFound,
	"record_not_found":    ErrRecordNotFound,
	"field_not_found":     ErrFieldNotFound,
	"field_type_mismatch": ErrFieldTypeMismatch,
	"validation_failed":   ErrValidationFailed,
	"lookup_queue_full":   ErrQueueFull,
	"shutting_down":       ErrShuttingDown,
	"lookup_timeout":      ErrLookupTimeout,
}

// APIError is an error response decoded from the service.
type APIError struct {
	Status  int    `json:"-"` // HTTP status, zero for batch item errors
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("enrichd: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("enrichd: %s (%s, HTTP %d)", e.Message, e.Code, e.Status)
}

// Unwrap maps the wire code back to a sentinel so errors.Is works
// across the HTTP boundary.
func (e *APIError) Unwrap() error {
	return sentinelByCode[e.Code]
}
