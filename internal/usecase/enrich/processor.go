// Package enrich implements exact-match document enrichment: a processor
// reads a key from the document, looks it up in a policy's reference index,
// and merges the matched records into a target field.
package enrich

import (
	"fmt"
	"sync/atomic"

	"github.com/matchgate/enrichd/internal/domain"
	"github.com/matchgate/enrichd/internal/domain/lookup"
)

// Processor enriches documents against one policy's reference index.
// Immutable after construction; safe for concurrent Process calls.
type Processor struct {
	tag           string
	policyName    string
	indexName     string
	matchField    string
	sourceField   string
	targetField   string
	ignoreMissing bool
	override      bool
	maxMatches    int
	runner        SearchRunner
}

// Tag returns the enricher tag.
func (p *Processor) Tag() string { return p.tag }

// PolicyName returns the name of the policy the processor enriches from.
func (p *Processor) PolicyName() string { return p.policyName }

// SourceField returns the document path read for the lookup key.
func (p *Processor) SourceField() string { return p.sourceField }

// TargetField returns the document path the matches are written to.
func (p *Processor) TargetField() string { return p.targetField }

// IgnoreMissing reports whether a missing source field is tolerated.
func (p *Processor) IgnoreMissing() bool { return p.ignoreMissing }

// Override reports whether an existing target field is overwritten.
func (p *Processor) Override() bool { return p.override }

// MaxMatches returns the retrieval cap.
func (p *Processor) MaxMatches() int { return p.maxMatches }

// completion enforces the exactly-once contract on the done callback.
type completion struct {
	done  func(Document, error)
	fired atomic.Bool
}

func (c *completion) complete(doc Document, err error) {
	if !c.fired.CompareAndSwap(false, true) {
		panic("enrich: completion invoked twice")
	}
	c.done(doc, err)
}

// Process enriches doc and reports through done exactly once: (doc, nil) on
// success, (nil, err) on failure. Skipped lookups and empty result sets are
// successes; the document passes through unchanged. done may fire on another
// goroutine, depending on the runner.
func (p *Processor) Process(doc Document, done func(Document, error)) {
	c := &completion{done: done}

	defer func() {
		if r := recover(); r != nil {
			// A panic after completion is not ours to absorb.
			if c.fired.Load() {
				panic(r)
			}
			c.complete(nil, fmt.Errorf("enrichment panic: %v", r))
		}
	}()

	value, ok, err := doc.GetString(p.sourceField, p.ignoreMissing)
	if err != nil {
		c.complete(nil, err)
		return
	}
	if !ok {
		c.complete(doc, nil)
		return
	}

	q := lookup.New(p.indexName, p.matchField, value, p.maxMatches)

	p.runner(q, func(res *lookup.Result, err error) {
		defer func() {
			if r := recover(); r != nil {
				if c.fired.Load() {
					panic(r)
				}
				c.complete(nil, fmt.Errorf("enrichment panic: %v", r))
			}
		}()

		if err != nil {
			c.complete(nil, err)
			return
		}
		if err := p.merge(doc, res); err != nil {
			c.complete(nil, err)
			return
		}
		c.complete(doc, nil)
	})
}

// Execute is the synchronous entry point and always fails: enrichment runs
// through Process, callers that need to wait bridge the callback.
func (p *Processor) Execute(Document) (Document, error) {
	return nil, domain.ErrSyncExecution
}

// merge writes matched records to the target field. No matches and a
// protected target are both no-ops.
func (p *Processor) merge(doc Document, res *lookup.Result) error {
	records := res.Records
	if len(records) == 0 {
		return nil
	}
	if !p.override && doc.Has(p.targetField) {
		return nil
	}
	if len(records) > p.maxMatches {
		records = records[:p.maxMatches]
	}

	// Results may be shared across documents by a caching runner; the
	// document gets its own copy of every record.
	values := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		values = append(values, copyRecord(rec))
	}
	return doc.Set(p.targetField, values)
}

func copyRecord(rec lookup.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyRecord(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return val
	}
}
