package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrNotFound is returned when a resource id is unknown.
	ErrNotFound = errors.New("resource not found")
)

// MaxTagLength bounds a single tag.
const MaxTagLength = 64

// ValidationError describes an invalid resource field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks the resource invariants. Call Normalize first.
func (r Resource) Validate() error {
	if r.Title == "" {
		return &ValidationError{"title", "is required"}
	}
	if !r.Type.Valid() {
		return &ValidationError{"type", fmt.Sprintf("unknown type %q", r.Type)}
	}
	if !r.Level.Valid() {
		return &ValidationError{"level", fmt.Sprintf("unknown level %q", r.Level)}
	}
	if !r.Status.Valid() {
		return &ValidationError{"status", fmt.Sprintf("unknown status %q", r.Status)}
	}
	if r.URL == "" {
		if r.Type == TypeLink {
			return &ValidationError{"url", "is required for links"}
		}
		return &ValidationError{"url", "a file upload or url is required"}
	}
	if !validURL(r.URL) {
		return &ValidationError{"url", "must be an absolute http(s) url or a path"}
	}
	if r.ExternalURL != "" && !validURL(r.ExternalURL) {
		return &ValidationError{"external_url", "must be an absolute http(s) url"}
	}
	if err := ValidateTags(r.Tags); err != nil {
		return err
	}
	for _, id := range r.RelatedResourceIDs {
		if strings.TrimSpace(id) == "" {
			return &ValidationError{"relatedResourceIds", "contains an empty id"}
		}
	}
	return nil
}

// ValidateTags rejects empty, oversized or comma-bearing tags.
func ValidateTags(tags []string) error {
	for _, t := range tags {
		switch {
		case strings.TrimSpace(t) == "":
			return &ValidationError{"tags", "contains an empty tag"}
		case len(t) > MaxTagLength:
			return &ValidationError{"tags", fmt.Sprintf("tag %q is longer than %d characters", t, MaxTagLength)}
		case strings.Contains(t, ","):
			return &ValidationError{"tags", fmt.Sprintf("tag %q contains a comma", t)}
		}
	}
	return nil
}

// validURL accepts absolute http(s) urls and site-relative paths such as
// locally served uploads.
func validURL(raw string) bool {
	if strings.HasPrefix(raw, "/") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
