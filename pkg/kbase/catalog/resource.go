// Package catalog defines the knowledge-base resource model shared by the
// backend and the dashboard, plus the in-memory catalog store.
package catalog

import (
	"slices"
	"strings"
	"time"
)

// ResourceType classifies a resource.
type ResourceType string

const (
	TypePDF          ResourceType = "PDF"
	TypeVideo        ResourceType = "VIDEO"
	TypeLink         ResourceType = "LINK"
	TypeDoc          ResourceType = "DOC"
	TypeImage        ResourceType = "IMAGE"
	TypePresentation ResourceType = "PRESENTATION"
	TypeSpreadsheet  ResourceType = "SPREADSHEET"
	TypeCode         ResourceType = "CODE"
)

// ResourceTypes lists every type in display order.
var ResourceTypes = []ResourceType{
	TypePDF, TypeVideo, TypeLink, TypeDoc, TypeImage, TypePresentation, TypeSpreadsheet, TypeCode,
}

var typeLabels = map[ResourceType]string{
	TypePDF:          "PDF document",
	TypeVideo:        "Video",
	TypeLink:         "Website",
	TypeDoc:          "Document",
	TypeImage:        "Image",
	TypePresentation: "Presentation",
	TypeSpreadsheet:  "Spreadsheet",
	TypeCode:         "Source code",
}

// Valid reports whether t is one of the known types.
func (t ResourceType) Valid() bool {
	_, ok := typeLabels[t]
	return ok
}

// Label is the human readable name used in citations.
func (t ResourceType) Label() string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Level is the academic audience of a resource.
type Level string

const (
	LevelUndergraduate Level = "Undergraduate"
	LevelGraduate      Level = "Graduate"
	LevelFaculty       Level = "Faculty/Admin"
)

// Levels lists every level.
var Levels = []Level{LevelUndergraduate, LevelGraduate, LevelFaculty}

// Valid reports whether l is a known level. The empty level is valid and
// means unspecified.
func (l Level) Valid() bool {
	return l == "" || slices.Contains(Levels, l)
}

// Status controls catalog visibility.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Valid reports whether s is online or offline.
func (s Status) Valid() bool {
	return s == StatusOnline || s == StatusOffline
}

// DefaultTag is applied when a resource is saved without tags.
const DefaultTag = "uncategorized"

// Resource is a catalog entry.
type Resource struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	Type               ResourceType `json:"type"`
	Department         string       `json:"department"`
	Subject            string       `json:"subject"`
	Level              Level        `json:"level"`
	Tags               []string     `json:"tags"`
	DateAdded          time.Time    `json:"dateAdded"`
	URL                string       `json:"url"`
	ExternalURL        string       `json:"external_url,omitempty"`
	OriginalFilename   string       `json:"original_filename,omitempty"`
	Status             Status       `json:"status"`
	RelatedResourceIDs []string     `json:"relatedResourceIds"`
	Views              uint         `json:"views"`
	Downloads          uint         `json:"downloads"`
}

// Clone returns a deep copy of r.
func (r Resource) Clone() Resource {
	r.Tags = slices.Clone(r.Tags)
	r.RelatedResourceIDs = slices.Clone(r.RelatedResourceIDs)
	return r
}

// Online reports whether the resource is visible in the public catalog.
func (r Resource) Online() bool {
	return r.Status == StatusOnline
}

// HasTag reports whether tag is attached to r. Tags are case-sensitive.
func (r Resource) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// Normalize trims text fields, cleans tags and applies defaults in place.
func (r *Resource) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Department = strings.TrimSpace(r.Department)
	r.Subject = strings.TrimSpace(r.Subject)
	r.URL = strings.TrimSpace(r.URL)
	r.ExternalURL = strings.TrimSpace(r.ExternalURL)
	r.Type = ResourceType(strings.ToUpper(strings.TrimSpace(string(r.Type))))
	if r.Status == "" {
		r.Status = StatusOnline
	}
	if r.Type == TypeLink {
		r.ExternalURL = ""
	}
	r.Tags = CleanTags(r.Tags)
	if r.RelatedResourceIDs == nil {
		r.RelatedResourceIDs = []string{}
	}
}

// CleanTags trims each tag, drops empties and removes duplicates keeping the
// first occurrence.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Upload is the result of storing a file in object storage.
type Upload struct {
	URL              string `json:"url"`
	Key              string `json:"key"`
	OriginalFilename string `json:"original_filename"`
}
