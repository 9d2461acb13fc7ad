// Package policy defines enrichment policies and the naming convention that
// ties a policy to its reference index.
package policy

import (
	"fmt"
	"regexp"

	"github.com/matchgate/enrichd/internal/domain"
)

// Type identifies how a policy matches documents against reference records.
type Type string

// TypeMatch is the exact-match policy type. It is the only type supported.
const TypeMatch Type = "match"

// Naming convention constants. Changing them invalidates every existing
// reference index, so they are fixed rather than configurable.
const (
	indexPrefix = "enrich-"
	keyPrefix   = "enrich:"
	metaPrefix  = "enrich:meta:"
)

var nameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Policy describes one enrichment source: which reference index to query and
// which record field carries the match key. Immutable after construction.
type Policy struct {
	name       string
	typ        Type
	matchField string
}

// New validates and creates a policy.
func New(name string, typ Type, matchField string) (Policy, error) {
	if !nameRe.MatchString(name) {
		return Policy{}, fmt.Errorf("policy name %q must match %s: %w", name, nameRe.String(), domain.ErrInvalidPolicy)
	}
	if typ != TypeMatch {
		return Policy{}, fmt.Errorf("unsupported policy type %q: %w", typ, domain.ErrInvalidPolicy)
	}
	if matchField == "" {
		return Policy{}, fmt.Errorf("policy %q has no match field: %w", name, domain.ErrInvalidPolicy)
	}
	return Policy{name: name, typ: typ, matchField: matchField}, nil
}

// Name returns the policy name.
func (p Policy) Name() string { return p.name }

// Type returns the policy type.
func (p Policy) Type() Type { return p.typ }

// MatchField returns the reference record field holding the match key.
func (p Policy) MatchField() string { return p.matchField }

// BaseName returns the policy base name of the given policy, i.e. the name of
// the reference index queried on behalf of that policy. Pure: no lookups, no
// state, same input always yields the same name.
func BaseName(policyName string) string { return indexPrefix + policyName }

// RecordPrefix returns the storage key prefix for the policy's reference records.
func RecordPrefix(policyName string) string { return keyPrefix + policyName + ":" }

// RecordKey returns the storage key of a single reference record.
func RecordKey(policyName, id string) string { return RecordPrefix(policyName) + id }

// MetaKey returns the storage key of the policy's metadata hash.
func MetaKey(policyName string) string { return metaPrefix + policyName }

// MetaKeyPrefix returns the shared prefix of all policy metadata keys.
func MetaKeyPrefix() string { return metaPrefix }

// NameFromMetaKey recovers the policy name from a metadata key. The second
// return is false when the key does not carry the metadata prefix.
func NameFromMetaKey(key string) (string, bool) {
	if len(key) <= len(metaPrefix) || key[:len(metaPrefix)] != metaPrefix {
		return "", false
	}
	return key[len(metaPrefix):], true
}
