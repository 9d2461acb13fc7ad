package enrich

import (
	"fmt"

	"github.com/matchgate/enrichd/internal/domain"
	"github.com/matchgate/enrichd/internal/domain/policy"
)

// MaxMatchesLimit caps how many reference records one lookup may retrieve.
const MaxMatchesLimit = 128

// Spec configures one enricher. Override and MaxMatches are optional:
// Override defaults to true, MaxMatches to 1.
type Spec struct {
	Tag           string `yaml:"name"`
	Policy        string `yaml:"policy"`
	SourceField   string `yaml:"source_field"`
	TargetField   string `yaml:"target_field"`
	IgnoreMissing bool   `yaml:"ignore_missing"`
	Override      *bool  `yaml:"override"`
	MaxMatches    int    `yaml:"max_matches"`
}

// NewProcessor validates a spec against its policy and builds a processor.
func NewProcessor(spec Spec, pol policy.Policy, runner SearchRunner) (*Processor, error) {
	if spec.Policy == "" {
		return nil, fmt.Errorf("[policy] is required: %w", domain.ErrInvalidSpec)
	}
	if spec.Policy != pol.Name() {
		return nil, fmt.Errorf("spec names policy %q, given %q: %w", spec.Policy, pol.Name(), domain.ErrInvalidSpec)
	}
	if spec.SourceField == "" {
		return nil, fmt.Errorf("[source_field] is required: %w", domain.ErrInvalidSpec)
	}
	if spec.TargetField == "" {
		return nil, fmt.Errorf("[target_field] is required: %w", domain.ErrInvalidSpec)
	}
	if runner == nil {
		return nil, fmt.Errorf("search runner is required: %w", domain.ErrInvalidSpec)
	}

	maxMatches := spec.MaxMatches
	if maxMatches == 0 {
		maxMatches = 1
	}
	if maxMatches < 1 || maxMatches > MaxMatchesLimit {
		return nil, fmt.Errorf(
			"[max_matches] should be between 1 and %d, got %d: %w",
			MaxMatchesLimit, spec.MaxMatches, domain.ErrInvalidSpec,
		)
	}

	override := true
	if spec.Override != nil {
		override = *spec.Override
	}

	return &Processor{
		tag:           spec.Tag,
		policyName:    pol.Name(),
		indexName:     policy.BaseName(pol.Name()),
		matchField:    pol.MatchField(),
		sourceField:   spec.SourceField,
		targetField:   spec.TargetField,
		ignoreMissing: spec.IgnoreMissing,
		override:      override,
		maxMatches:    maxMatches,
		runner:        runner,
	}, nil
}
