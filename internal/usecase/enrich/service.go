package enrich

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/matchgate/enrichd/internal/domain"
	dombatch "github.com/matchgate/enrichd/internal/domain/batch"
	"github.com/matchgate/enrichd/internal/domain/document"
	"github.com/matchgate/enrichd/internal/domain/policy"
)

// MaxBatchSize is the maximum number of documents per batch request.
const MaxBatchSize = 100

// Info describes a registered enricher.
type Info struct {
	Name          string
	Policy        string
	SourceField   string
	TargetField   string
	IgnoreMissing bool
	Override      bool
	MaxMatches    int
}

// Service holds the registered enrichers and bridges their asynchronous
// processors to waiting callers.
type Service struct {
	procs        map[string]*Processor
	order        []string
	maxBatchSize int
}

// NewService builds the enricher registry. Every spec must name a known
// policy and carry a unique non-empty name; a bad spec fails the whole
// registry rather than starting with a hole in it.
func NewService(runner SearchRunner, policies []policy.Policy, specs []Spec) (*Service, error) {
	byName := make(map[string]policy.Policy, len(policies))
	for _, p := range policies {
		byName[p.Name()] = p
	}

	s := &Service{
		procs:        make(map[string]*Processor, len(specs)),
		maxBatchSize: MaxBatchSize,
	}
	for _, spec := range specs {
		if spec.Tag == "" {
			return nil, fmt.Errorf("enricher without a name: %w", domain.ErrInvalidSpec)
		}
		if _, dup := s.procs[spec.Tag]; dup {
			return nil, fmt.Errorf("duplicate enricher %q: %w", spec.Tag, domain.ErrInvalidSpec)
		}
		pol, ok := byName[spec.Policy]
		if !ok {
			return nil, fmt.Errorf("enricher %q: policy %q: %w", spec.Tag, spec.Policy, domain.ErrPolicyNotFound)
		}
		proc, err := NewProcessor(spec, pol, runner)
		if err != nil {
			return nil, fmt.Errorf("enricher %q: %w", spec.Tag, err)
		}
		s.procs[spec.Tag] = proc
		s.order = append(s.order, spec.Tag)
	}
	return s, nil
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Processor returns a registered enricher by name.
func (s *Service) Processor(name string) (*Processor, error) {
	p, ok := s.procs[name]
	if !ok {
		return nil, fmt.Errorf("enricher %q: %w", name, domain.ErrEnricherNotFound)
	}
	return p, nil
}

// Enrich runs one document through an enricher and waits for the outcome.
// The lookup itself is not cancelable: when ctx expires first, the in-flight
// lookup still completes and its result is discarded.
func (s *Service) Enrich(ctx context.Context, name string, doc *document.Document) (*document.Document, error) {
	p, err := s.Processor(name)
	if err != nil {
		return nil, err
	}

	errs := make(chan error, 1)
	p.Process(doc, func(_ Document, err error) {
		errs <- err
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("enrich %s: %w", name, ctx.Err())
	case err := <-errs:
		if err != nil {
			return nil, fmt.Errorf("enrich %s: %w", name, err)
		}
		return doc, nil
	}
}

// EnrichBatch enriches documents through one enricher with per-item
// outcomes keyed by position. All items are dispatched before any is
// awaited, so a queued runner can coalesce the batch into fewer round trips.
func (s *Service) EnrichBatch(ctx context.Context, name string, docs []*document.Document) []dombatch.Result {
	results := make([]dombatch.Result, len(docs))

	if len(docs) > s.maxBatchSize {
		for i := range docs {
			results[i] = dombatch.NewError(
				strconv.Itoa(i),
				fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidDocument),
			)
		}
		return results
	}

	p, err := s.Processor(name)
	if err != nil {
		for i := range docs {
			results[i] = dombatch.NewError(strconv.Itoa(i), err)
		}
		return results
	}

	var wg sync.WaitGroup
	wg.Add(len(docs))
	for i, doc := range docs {
		i, doc := i, doc
		p.Process(doc, func(_ Document, perr error) {
			defer wg.Done()
			if perr != nil {
				results[i] = dombatch.NewError(strconv.Itoa(i), perr)
				return
			}
			results[i] = dombatch.NewOK(strconv.Itoa(i), doc)
		})
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return results
	case <-ctx.Done():
		// Late callbacks keep writing the abandoned slice; report a fresh one.
		late := make([]dombatch.Result, len(docs))
		for i := range late {
			late[i] = dombatch.NewError(strconv.Itoa(i), fmt.Errorf("enrich %s: %w", name, ctx.Err()))
		}
		return late
	}
}

// List returns registered enrichers in registration order.
func (s *Service) List() []Info {
	infos := make([]Info, 0, len(s.order))
	for _, name := range s.order {
		infos = append(infos, describe(s.procs[name]))
	}
	return infos
}

// Describe returns one enricher's configuration.
func (s *Service) Describe(name string) (Info, error) {
	p, err := s.Processor(name)
	if err != nil {
		return Info{}, err
	}
	return describe(p), nil
}

func describe(p *Processor) Info {
	return Info{
		Name:          p.Tag(),
		Policy:        p.PolicyName(),
		SourceField:   p.SourceField(),
		TargetField:   p.TargetField(),
		IgnoreMissing: p.IgnoreMissing(),
		Override:      p.Override(),
		MaxMatches:    p.MaxMatches(),
	}
}
