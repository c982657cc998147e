// Package filter derives the visible catalog and the popular list from a
// catalog snapshot. Everything here is pure: the input slice is never modified
// and results preserve catalog order unless stated otherwise.
package filter

import (
	"slices"
	"sort"
	"strings"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
)

// All is the "no restriction" value for the type and level selectors.
const All = "All"

// PopularLimit is the size of the popular list.
const PopularLimit = 4

// Criteria is the current filter state. Empty Type and Level behave like All.
type Criteria struct {
	Search   string   `json:"search"`
	Type     string   `json:"type"`
	Subjects []string `json:"subjects"`
	Level    string   `json:"level"`
}

// DefaultCriteria returns the unfiltered view.
func DefaultCriteria() Criteria {
	return Criteria{Type: All, Level: All}
}

// IsDefault reports whether no filter is active.
func (c Criteria) IsDefault() bool {
	return c.Search == "" && isAll(c.Type) && len(c.Subjects) == 0 && isAll(c.Level)
}

func isAll(v string) bool {
	return v == "" || v == All
}

// Matches reports whether r passes every active filter. Offline resources
// never match.
func (c Criteria) Matches(r catalog.Resource) bool {
	if !r.Online() {
		return false
	}
	if c.Search != "" && !matchesSearch(r, strings.ToLower(c.Search)) {
		return false
	}
	if !isAll(c.Type) && string(r.Type) != c.Type {
		return false
	}
	if len(c.Subjects) > 0 && !slices.Contains(c.Subjects, r.Subject) {
		return false
	}
	if !isAll(c.Level) && string(r.Level) != c.Level {
		return false
	}
	return true
}

// matchesSearch does a literal, case-insensitive substring match; the term is
// never interpreted as a pattern.
func matchesSearch(r catalog.Resource, term string) bool {
	if strings.Contains(strings.ToLower(r.Title), term) ||
		strings.Contains(strings.ToLower(r.Description), term) {
		return true
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// Apply returns the resources matching c, in catalog order.
func Apply(resources []catalog.Resource, c Criteria) []catalog.Resource {
	out := make([]catalog.Resource, 0, len(resources))
	for _, r := range resources {
		if c.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Popular returns up to limit online resources with at least one view,
// ordered by views descending. Ties keep catalog order.
func Popular(resources []catalog.Resource, limit int) []catalog.Resource {
	out := make([]catalog.Resource, 0, limit)
	for _, r := range resources {
		if r.Online() && r.Views > 0 {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Views > out[j].Views
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Subjects lists the distinct subjects of online resources, sorted.
func Subjects(resources []catalog.Resource) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range resources {
		if !r.Online() || r.Subject == "" {
			continue
		}
		if _, ok := seen[r.Subject]; ok {
			continue
		}
		seen[r.Subject] = struct{}{}
		out = append(out, r.Subject)
	}
	sort.Strings(out)
	return out
}
