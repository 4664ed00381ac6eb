package scrape

import (
	"strings"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
)

// KeywordFilter matches listing titles against configured search keywords.
// Matching is case-insensitive substring containment, OR across keywords.
type KeywordFilter struct {
	keywords []string // lowercased, trimmed, non-empty
}

// NewKeywordFilter builds a filter from raw keywords. Blank entries are
// dropped; a list that cleans down to nothing is a configuration error.
func NewKeywordFilter(keywords []string) (*KeywordFilter, error) {
	cleaned := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		cleaned = append(cleaned, k)
	}
	if len(cleaned) == 0 {
		return nil, models.ErrNoKeywords
	}
	return &KeywordFilter{keywords: cleaned}, nil
}

// Keywords returns the cleaned keyword list.
func (f *KeywordFilter) Keywords() []string {
	out := make([]string, len(f.keywords))
	copy(out, f.keywords)
	return out
}

// Match reports whether the title contains any configured keyword.
func (f *KeywordFilter) Match(title string) bool {
	lower := strings.ToLower(title)
	for _, k := range f.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Filter returns the items whose titles match, preserving input order.
// Repeated IDs within the batch are dropped after their first occurrence so
// one run never produces two notifications for the same listing.
func (f *KeywordFilter) Filter(items []models.ListingItem) []models.ListingItem {
	seen := make(map[string]struct{}, len(items))
	var out []models.ListingItem
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		if !f.Match(item.Title) {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}
