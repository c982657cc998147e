// Package citation formats bibliographic citations for catalog resources.
package citation

import (
	"fmt"
	"strings"
	"time"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
)

// Format is a citation style.
type Format string

const (
	APA     Format = "APA"
	MLA     Format = "MLA"
	Chicago Format = "Chicago"
	IEEE    Format = "IEEE"
)

// Formats lists the supported styles in display order.
var Formats = []Format{APA, MLA, Chicago, IEEE}

// ParseFormat matches a style name case-insensitively.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(string(f), strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown citation format %q", s)
}

// Permalink is the catalog page of a resource.
func Permalink(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/resources/" + id
}

// Generate formats r in the given style. The output depends only on its
// arguments; now supplies the current year and access date.
func Generate(r catalog.Resource, format Format, now time.Time, baseURL string) (string, error) {
	link := r.URL
	if link == "" {
		link = Permalink(baseURL, r.ID)
	}
	author := r.Department
	if author == "" {
		author = "Knowledge Base"
	}
	added := r.DateAdded
	if added.IsZero() {
		added = now
	}
	kind := r.Type.Label()

	switch format {
	case APA:
		return fmt.Sprintf("%s. (%d). %s [%s]. Retrieved %s, from %s",
			author, now.Year(), r.Title, kind, now.Format("January 2, 2006"), link), nil
	case MLA:
		return fmt.Sprintf("%s. \"%s.\" %s, %s, %s. Accessed %s.",
			author, r.Title, kind, mlaDate(added), link, mlaDate(now)), nil
	case Chicago:
		return fmt.Sprintf("%s. \"%s.\" %s. Last modified %s. Accessed %s. %s.",
			author, r.Title, kind, added.Format("January 2, 2006"), now.Format("January 2, 2006"), link), nil
	case IEEE:
		return fmt.Sprintf("%s, \"%s,\" %s, %d. [Online]. Available: %s. [Accessed: %s].",
			author, r.Title, kind, now.Year(), link, ieeeDate(now)), nil
	default:
		return "", fmt.Errorf("unknown citation format %q", format)
	}
}

var mlaMonths = [...]string{"Jan.", "Feb.", "Mar.", "Apr.", "May", "June", "July", "Aug.", "Sept.", "Oct.", "Nov.", "Dec."}

// mlaDate renders "2 Mar. 2026".
func mlaDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), mlaMonths[t.Month()-1], t.Year())
}

// ieeeDate renders "Mar. 2, 2026".
func ieeeDate(t time.Time) string {
	return fmt.Sprintf("%s %d, %d", mlaMonths[t.Month()-1], t.Day(), t.Year())
}
