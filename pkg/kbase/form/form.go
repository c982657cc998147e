// Package form holds the admin resource form: per-type field rules, the
// submit gate and the create/edit submission flow.
package form

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mikepea/kbase/pkg/kbase/catalog"
)

// ErrIncomplete is returned when the form cannot be submitted yet.
var ErrIncomplete = errors.New("form is incomplete")

// Input is how a resource type accepts its content.
type Input int

const (
	// InputURL requires a typed URL.
	InputURL Input = iota
	// InputUploadOrURL accepts a file or a typed URL.
	InputUploadOrURL
	// InputUploadOnly accepts a file only.
	InputUploadOnly
)

// Requirements describes the form fields a resource type uses.
type Requirements struct {
	Input              Input
	RequiresURL        bool
	AllowsUpload       bool
	AllowsURL          bool
	AllowsExternalLink bool
}

// RequirementsFor returns the field rules for t.
func RequirementsFor(t catalog.ResourceType) Requirements {
	switch t {
	case catalog.TypeLink:
		return Requirements{Input: InputURL, RequiresURL: true, AllowsURL: true}
	case catalog.TypeVideo, catalog.TypeDoc, catalog.TypePresentation:
		return Requirements{Input: InputUploadOrURL, AllowsUpload: true, AllowsURL: true, AllowsExternalLink: true}
	default:
		return Requirements{Input: InputUploadOnly, AllowsUpload: true, AllowsExternalLink: true}
	}
}

// File is an attached upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// State is the admin form. Tags is the raw comma-separated input.
type State struct {
	Title       string               `validate:"required,max=200"`
	Description string               `validate:"max=5000"`
	Type        catalog.ResourceType `validate:"required"`
	Department  string               `validate:"max=120"`
	Subject     string               `validate:"max=120"`
	Level       catalog.Level
	Tags        string
	URL         string `validate:"omitempty,url|startswith=/"`
	ExternalURL string `validate:"omitempty,url"`
	Status      catalog.Status
	RelatedIDs  []string `validate:"dive,required"`

	// File is an attached upload, if any.
	File *File `validate:"-"`
	// Editing is the stored resource being edited; nil when creating.
	Editing *catalog.Resource `validate:"-"`
}

// NewState returns a blank form for creating a resource.
func NewState() State {
	return State{Type: catalog.TypePDF, Status: catalog.StatusOnline}
}

// EditState loads r into a form.
func EditState(r catalog.Resource) State {
	existing := r.Clone()
	return State{
		Title:       r.Title,
		Description: r.Description,
		Type:        r.Type,
		Department:  r.Department,
		Subject:     r.Subject,
		Level:       r.Level,
		Tags:        strings.Join(r.Tags, ", "),
		URL:         r.URL,
		ExternalURL: r.ExternalURL,
		Status:      r.Status,
		RelatedIDs:  append([]string(nil), r.RelatedResourceIDs...),
		Editing:     &existing,
	}
}

// Reset returns a blank form that keeps department, subject and level.
func (s State) Reset() State {
	blank := NewState()
	blank.Department = s.Department
	blank.Subject = s.Subject
	blank.Level = s.Level
	return blank
}

// CanSubmit reports whether the submit action is enabled.
func (s State) CanSubmit() bool {
	switch RequirementsFor(s.Type).Input {
	case InputURL:
		return strings.TrimSpace(s.URL) != ""
	case InputUploadOrURL:
		return s.File != nil || strings.TrimSpace(s.URL) != "" || s.Editing != nil
	default:
		return s.File != nil || s.Editing != nil
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field formats. It does not repeat the CanSubmit gate.
func (s State) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("unknown resource type %q", s.Type)
	}
	if !s.Level.Valid() {
		return fmt.Errorf("unknown level %q", s.Level)
	}
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q validation", strings.ToLower(fe.Field()), fe.Tag())
		}
		return err
	}
	return nil
}

// SplitTags splits comma-separated input into trimmed, distinct tags.
// Empty input yields the default tag.
func SplitTags(raw string) []string {
	tags := catalog.CleanTags(strings.Split(raw, ","))
	if len(tags) == 0 {
		return []string{catalog.DefaultTag}
	}
	return tags
}

// Payload builds the resource to persist. upload is the stored file, if one
// was attached; it takes precedence over any typed URL. When editing without
// a new file the stored URL and original filename are kept.
func (s State) Payload(upload *catalog.Upload) catalog.Resource {
	req := RequirementsFor(s.Type)

	r := catalog.Resource{
		Title:              strings.TrimSpace(s.Title),
		Description:        strings.TrimSpace(s.Description),
		Type:               s.Type,
		Department:         strings.TrimSpace(s.Department),
		Subject:            strings.TrimSpace(s.Subject),
		Level:              s.Level,
		Tags:               SplitTags(s.Tags),
		Status:             s.Status,
		RelatedResourceIDs: append([]string{}, s.RelatedIDs...),
	}
	if r.Status == "" {
		r.Status = catalog.StatusOnline
	}
	if s.Editing != nil {
		r.ID = s.Editing.ID
		r.DateAdded = s.Editing.DateAdded
		r.Views = s.Editing.Views
		r.Downloads = s.Editing.Downloads
		r.OriginalFilename = s.Editing.OriginalFilename
		r.URL = s.Editing.URL
	}

	switch {
	case upload != nil && req.AllowsUpload:
		r.URL = upload.URL
		r.OriginalFilename = upload.OriginalFilename
	case req.AllowsURL && strings.TrimSpace(s.URL) != "":
		r.URL = strings.TrimSpace(s.URL)
		if s.Editing == nil || r.URL != s.Editing.URL {
			r.OriginalFilename = ""
		}
	}
	if req.AllowsExternalLink {
		r.ExternalURL = strings.TrimSpace(s.ExternalURL)
	}
	return r
}
