package db

import "errors"

// MatchAlias is the schema alias every reference index maps its match field
// to. Queries always filter on the alias, so lookups stay oblivious to where
// the match field sits inside the record.
const MatchAlias = "match"

// IndexDefinition describes one reference index: records under Prefix,
// indexed for exact matching on MatchField.
type IndexDefinition struct {
	Name       string
	Prefix     string
	MatchField string
	// CaseSensitive controls tag matching. Reference lookups are identity
	// matches, so it defaults to true everywhere this is constructed.
	CaseSensitive bool
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if idx.Prefix == "" {
		return errors.New("key prefix is required")
	}
	if idx.MatchField == "" {
		return errors.New("match field is required")
	}
	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
