// Package preview decides how a resource is shown inline.
//
// A Resolver walks an ordered list of rules; the first rule that matches the
// candidate URL wins and anything unmatched becomes a plain link. Resolution
// never fails: malformed input degrades to a link.
package preview

import (
	"strings"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
)

// Kind is the presentation strategy for a preview.
type Kind string

const (
	KindNone   Kind = "none"
	KindIframe Kind = "iframe"
	KindImage  Kind = "image"
	KindVideo  Kind = "video"
	KindPDF    Kind = "pdf"
	KindLink   Kind = "link"
)

// Result is a resolved preview.
type Result struct {
	Kind Kind   `json:"kind"`
	URL  string `json:"url,omitempty"`
}

// Fallback describes what the viewer shows when the primary presentation
// cannot be rendered.
func (r Result) Fallback() string {
	switch r.Kind {
	case KindNone:
		return "no preview available"
	case KindLink:
		return "open in new tab"
	default:
		return "download or open in new tab"
	}
}

// Rule maps a candidate URL to a Result when it applies.
type Rule struct {
	Name  string
	Match func(candidate string) (Result, bool)
}

// Resolver applies rules in order.
type Resolver struct {
	rules []Rule
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOfficeViewer replaces the office viewer URL template.
// The template must end where the escaped document URL is appended.
func WithOfficeViewer(template string) Option {
	return func(r *Resolver) {
		for i := range r.rules {
			if r.rules[i].Name == "office" {
				r.rules[i] = officeRule(template)
			}
		}
	}
}

// New returns a Resolver with the default rule order.
func New(opts ...Option) *Resolver {
	r := &Resolver{rules: DefaultRules()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rules returns the names of the rules in evaluation order.
func (r *Resolver) Rules() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name
	}
	return names
}

// Candidate picks the URL to preview: the primary url, else the secondary
// link, else nothing.
func Candidate(res catalog.Resource) string {
	if u := strings.TrimSpace(res.URL); u != "" {
		return u
	}
	return strings.TrimSpace(res.ExternalURL)
}

// Resolve returns the preview for a resource.
func (r *Resolver) Resolve(res catalog.Resource) Result {
	return r.ResolveURL(Candidate(res))
}

// ResolveURL returns the preview for a bare URL.
func (r *Resolver) ResolveURL(candidate string) Result {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return Result{Kind: KindNone}
	}
	for _, rule := range r.rules {
		if res, ok := rule.Match(candidate); ok {
			return res
		}
	}
	return Result{Kind: KindLink, URL: candidate}
}

var defaultResolver = New()

// Resolve resolves with the default rules.
func Resolve(res catalog.Resource) Result {
	return defaultResolver.Resolve(res)
}

// ResolveURL resolves a bare URL with the default rules.
func ResolveURL(candidate string) Result {
	return defaultResolver.ResolveURL(candidate)
}
