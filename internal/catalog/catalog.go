// Package catalog holds the reference set of known medicines and the tiered
// fuzzy lookup used to resolve free-text extracted names against it.
package catalog

import "context"

// Entry is a canonical medicine. Reference data: the scan pipeline only
// reads it, never creates or mutates it.
type Entry struct {
	ID            string `json:"id"`
	CanonicalName string `json:"canonical_name"`
	Manufacturer  string `json:"manufacturer"`
}

// Result caps per tier. A tier-1 exact hit is unambiguous so only one entry
// is returned; fuzzy tiers may return several candidate formulations.
const (
	maxExactMatches = 1
	maxFuzzyMatches = 3
)

// Matcher looks up a free-text medicine name against the catalog.
// An empty result is a miss, not an error.
type Matcher interface {
	Find(ctx context.Context, name string) ([]Entry, error)
}
