package batch

import "github.com/matchgate/enrichd/internal/domain/document"

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of enriching one item in a batch. Successful items
// carry the enriched document; failed items carry the error and no document.
type Result struct {
	id     string
	status ItemStatus
	doc    *document.Document
	err    error
}

// NewOK creates a successful batch result.
func NewOK(id string, doc *document.Document) Result {
	return Result{id: id, status: StatusOK, doc: doc}
}

// NewError creates a failed batch result.
func NewError(id string, err error) Result {
	return Result{id: id, status: StatusError, err: err}
}

// ID returns the item identifier.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Document returns the enriched document, nil for failed items.
func (r Result) Document() *document.Document { return r.doc }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }
