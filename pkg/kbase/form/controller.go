package form

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/rs/zerolog"
)

// Backend is the part of the API the form needs.
type Backend interface {
	Upload(ctx context.Context, name, contentType string, size int64, content io.Reader) (catalog.Upload, error)
	CreateResource(ctx context.Context, r catalog.Resource) (catalog.Resource, error)
	UpdateResource(ctx context.Context, r catalog.Resource) (catalog.Resource, error)
	SetRelated(ctx context.Context, id string, related []string) error
	ListResources(ctx context.Context) ([]catalog.Resource, error)
}

// Controller drives one admin form.
type Controller struct {
	backend Backend
	store   *catalog.Store

	mu    sync.Mutex
	state State
	err   error
}

// NewController returns a controller with a blank form.
func NewController(backend Backend, store *catalog.Store) *Controller {
	return &Controller{backend: backend, store: store, state: NewState()}
}

// State returns the current form state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Update replaces the form state.
func (c *Controller) Update(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Edit loads r into the form.
func (c *Controller) Edit(r catalog.Resource) {
	c.Update(EditState(r))
}

// CanSubmit reports whether submit is enabled.
func (c *Controller) CanSubmit() bool {
	return c.State().CanSubmit()
}

// Err returns the last submission error until dismissed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// DismissError clears the last submission error.
func (c *Controller) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = nil
}

// Submit uploads the attached file, persists the metadata, records related
// ids and re-fetches the catalog. On success the form resets, keeping
// department, subject and level. On failure the form state is kept and the
// error is also retained for display. Once the metadata has been saved, a
// failure switches the form to editing the saved resource so a retry updates
// it instead of creating another one.
func (c *Controller) Submit(ctx context.Context) (catalog.Resource, error) {
	s := c.State()
	saved, err := c.submit(ctx, &s)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.err = err
		c.state = s
		return catalog.Resource{}, err
	}
	c.err = nil
	c.state = s.Reset()
	return saved, nil
}

func (c *Controller) submit(ctx context.Context, s *State) (catalog.Resource, error) {
	log := zerolog.Ctx(ctx)

	if !s.CanSubmit() {
		return catalog.Resource{}, ErrIncomplete
	}
	if err := s.Validate(); err != nil {
		return catalog.Resource{}, err
	}

	var upload *catalog.Upload
	if s.File != nil && RequirementsFor(s.Type).AllowsUpload {
		u, err := c.backend.Upload(ctx, s.File.Name, s.File.ContentType, s.File.Size, s.File.Content)
		if err != nil {
			return catalog.Resource{}, fmt.Errorf("upload %s: %w", s.File.Name, err)
		}
		upload = &u
		log.Debug().Str("key", u.Key).Msg("file uploaded")
	}

	payload := s.Payload(upload)
	editing := s.Editing != nil

	var (
		saved catalog.Resource
		err   error
	)
	if editing {
		saved, err = c.backend.UpdateResource(ctx, payload)
	} else {
		saved, err = c.backend.CreateResource(ctx, payload)
	}
	if err != nil {
		return catalog.Resource{}, fmt.Errorf("save resource: %w", err)
	}

	// The resource exists from here on.
	s.Editing = &saved
	s.File = nil
	if upload != nil {
		s.URL = ""
	}

	relatedErr := c.backend.SetRelated(ctx, saved.ID, payload.RelatedResourceIDs)
	if relatedErr == nil {
		saved.RelatedResourceIDs = payload.RelatedResourceIDs
	}

	resources, err := c.backend.ListResources(ctx)
	if err == nil {
		err = c.store.Apply(catalog.Mutation{Kind: catalog.MutationReplace, Resources: resources})
	}
	if relatedErr != nil {
		if err != nil {
			log.Warn().Err(err).Msg("catalog refresh after failed save")
		}
		return catalog.Resource{}, fmt.Errorf("set related resources: %w", relatedErr)
	}
	if err != nil {
		return catalog.Resource{}, fmt.Errorf("refresh catalog: %w", err)
	}
	log.Info().Str("id", saved.ID).Bool("edit", editing).Msg("resource saved")
	return saved, nil
}
