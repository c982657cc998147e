// Package tagreg derives the tag registry from a catalog snapshot and computes
// the resources touched by a tag rename or delete. The registry is rebuilt on
// every call; it is never cached alongside the catalog.
package tagreg

import (
	"sort"
	"strings"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
)

// Entry is one registry row.
type Entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Registry lists distinct tags, sorted, with the number of resources using each.
type Registry struct {
	Tags   []string
	Counts map[string]int
}

// Build computes the registry over every resource, online or not. Tags are
// case-sensitive; a tag repeated on one resource counts once.
func Build(resources []catalog.Resource) Registry {
	counts := make(map[string]int)
	for _, r := range resources {
		seen := make(map[string]struct{}, len(r.Tags))
		for _, t := range r.Tags {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			counts[t]++
		}
	}
	tags := make([]string, 0, len(counts))
	for t := range counts {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return Registry{Tags: tags, Counts: counts}
}

// Count returns how many resources carry tag.
func (r Registry) Count(tag string) int {
	return r.Counts[tag]
}

// Entries returns the registry as sorted rows.
func (r Registry) Entries() []Entry {
	out := make([]Entry, len(r.Tags))
	for i, t := range r.Tags {
		out[i] = Entry{Name: t, Count: r.Counts[t]}
	}
	return out
}

// Rename returns updated copies of every resource carrying oldName, with the
// tag replaced by newName and the list deduplicated. A blank newName, or one
// equal to oldName, is a no-op and yields nil.
func Rename(resources []catalog.Resource, oldName, newName string) []catalog.Resource {
	newName = strings.TrimSpace(newName)
	if newName == "" || newName == oldName {
		return nil
	}
	var affected []catalog.Resource
	for _, r := range resources {
		if !r.HasTag(oldName) {
			continue
		}
		updated := r.Clone()
		for i, t := range updated.Tags {
			if t == oldName {
				updated.Tags[i] = newName
			}
		}
		updated.Tags = catalog.CleanTags(updated.Tags)
		affected = append(affected, updated)
	}
	return affected
}

// Delete returns updated copies of every resource carrying tag, with the tag
// removed.
func Delete(resources []catalog.Resource, tag string) []catalog.Resource {
	var affected []catalog.Resource
	for _, r := range resources {
		if !r.HasTag(tag) {
			continue
		}
		updated := r.Clone()
		kept := updated.Tags[:0]
		for _, t := range updated.Tags {
			if t != tag {
				kept = append(kept, t)
			}
		}
		updated.Tags = kept
		affected = append(affected, updated)
	}
	return affected
}
