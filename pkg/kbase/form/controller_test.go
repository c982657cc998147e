package form

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	resources []catalog.Resource
	calls     []string
	uploaded  string
	related   map[string][]string
	failOn    string
}

func newFakeBackend(resources ...catalog.Resource) *fakeBackend {
	return &fakeBackend{resources: resources, related: map[string][]string{}}
}

func (f *fakeBackend) fail(call string) error {
	f.calls = append(f.calls, call)
	if f.failOn == call {
		return errors.New(call + " failed")
	}
	return nil
}

func (f *fakeBackend) Upload(ctx context.Context, name, contentType string, size int64, content io.Reader) (catalog.Upload, error) {
	if err := f.fail("upload"); err != nil {
		return catalog.Upload{}, err
	}
	data, _ := io.ReadAll(content)
	f.uploaded = string(data)
	return catalog.Upload{
		URL:              "https://cdn.example.edu/uploads/u1_" + name,
		Key:              "uploads/u1_" + name,
		OriginalFilename: name,
	}, nil
}

func (f *fakeBackend) CreateResource(ctx context.Context, r catalog.Resource) (catalog.Resource, error) {
	if err := f.fail("create"); err != nil {
		return catalog.Resource{}, err
	}
	r.ID = fmt.Sprintf("res-%d", len(f.resources)+1)
	f.resources = append(f.resources, r)
	return r, nil
}

func (f *fakeBackend) UpdateResource(ctx context.Context, r catalog.Resource) (catalog.Resource, error) {
	if err := f.fail("update"); err != nil {
		return catalog.Resource{}, err
	}
	for i := range f.resources {
		if f.resources[i].ID == r.ID {
			f.resources[i] = r
			return r, nil
		}
	}
	return catalog.Resource{}, catalog.ErrNotFound
}

func (f *fakeBackend) SetRelated(ctx context.Context, id string, related []string) error {
	if err := f.fail("related"); err != nil {
		return err
	}
	f.related[id] = related
	for i := range f.resources {
		if f.resources[i].ID == id {
			f.resources[i].RelatedResourceIDs = related
		}
	}
	return nil
}

func (f *fakeBackend) ListResources(ctx context.Context) ([]catalog.Resource, error) {
	if err := f.fail("list"); err != nil {
		return nil, err
	}
	return append([]catalog.Resource(nil), f.resources...), nil
}

func TestSubmitCreateWithUpload(t *testing.T) {
	backend := newFakeBackend()
	store := catalog.NewStore()
	c := NewController(backend, store)

	c.Update(State{
		Title:      "Lecture 1",
		Type:       catalog.TypeVideo,
		URL:        "https://youtu.be/abcdefg",
		Department: "Physics",
		Subject:    "Mechanics",
		Level:      catalog.LevelUndergraduate,
		Tags:       "mechanics, week1",
		RelatedIDs: []string{"res-0"},
		File:       &File{Name: "lecture1.mp4", ContentType: "video/mp4", Size: 5, Content: strings.NewReader("video")},
	})
	require.True(t, c.CanSubmit())

	saved, err := c.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"upload", "create", "related", "list"}, backend.calls)
	assert.Equal(t, "video", backend.uploaded)
	assert.Equal(t, "https://cdn.example.edu/uploads/u1_lecture1.mp4", saved.URL, "upload wins over typed url")
	assert.Equal(t, "lecture1.mp4", saved.OriginalFilename)
	assert.Equal(t, []string{"res-0"}, backend.related[saved.ID])

	got, ok := store.Get(saved.ID)
	require.True(t, ok, "store refreshed from backend")
	assert.Equal(t, []string{"mechanics", "week1"}, got.Tags)

	state := c.State()
	assert.Empty(t, state.Title)
	assert.Nil(t, state.File)
	assert.Equal(t, "Physics", state.Department)
	assert.Equal(t, "Mechanics", state.Subject)
	assert.Equal(t, catalog.LevelUndergraduate, state.Level)
	assert.NoError(t, c.Err())
}

func TestSubmitEdit(t *testing.T) {
	existing := catalog.Resource{
		ID:               "res-1",
		Title:            "Notes",
		Type:             catalog.TypePDF,
		URL:              "https://cdn.example.edu/uploads/a_notes.pdf",
		OriginalFilename: "notes.pdf",
		Status:           catalog.StatusOnline,
		Tags:             []string{"old"},
	}
	backend := newFakeBackend(existing)
	store := catalog.NewStore(existing)
	c := NewController(backend, store)

	c.Edit(existing)
	s := c.State()
	s.Title = "Notes (revised)"
	s.Tags = "new"
	c.Update(s)

	saved, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"update", "related", "list"}, backend.calls, "no upload without a file")
	assert.Equal(t, "notes.pdf", saved.OriginalFilename)

	got, _ := store.Get("res-1")
	assert.Equal(t, "Notes (revised)", got.Title)
	assert.Equal(t, []string{"new"}, got.Tags)
}

func TestSubmitIncomplete(t *testing.T) {
	backend := newFakeBackend()
	c := NewController(backend, catalog.NewStore())
	c.Update(State{Title: "Site", Type: catalog.TypeLink})

	assert.False(t, c.CanSubmit())
	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Empty(t, backend.calls)

	s := c.State()
	s.URL = "https://example.edu"
	c.Update(s)
	assert.True(t, c.CanSubmit())
}

func TestSubmitFailureKeepsState(t *testing.T) {
	backend := newFakeBackend()
	backend.failOn = "create"
	store := catalog.NewStore()
	c := NewController(backend, store)

	c.Update(State{Title: "Site", Type: catalog.TypeLink, URL: "https://example.edu"})
	_, err := c.Submit(context.Background())
	require.Error(t, err)

	assert.Equal(t, "Site", c.State().Title, "form retained")
	assert.ErrorContains(t, c.Err(), "create failed")
	assert.Equal(t, 0, store.Len())

	c.DismissError()
	assert.NoError(t, c.Err())
}

func TestSubmitUploadFailureStopsBeforeSave(t *testing.T) {
	backend := newFakeBackend()
	backend.failOn = "upload"
	c := NewController(backend, catalog.NewStore())
	c.Update(State{Title: "Scan", Type: catalog.TypeImage, File: &File{Name: "scan.png", Content: strings.NewReader("png")}})

	_, err := c.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"upload"}, backend.calls)
}

func TestSubmitRetryAfterPartialCreateUpdates(t *testing.T) {
	backend := newFakeBackend(catalog.Resource{ID: "res-0", Title: "Intro", Type: catalog.TypeLink, URL: "https://example.edu"})
	backend.failOn = "related"
	store := catalog.NewStore()
	c := NewController(backend, store)

	c.Update(State{
		Title:      "Slides",
		Type:       catalog.TypePDF,
		Tags:       "week1",
		RelatedIDs: []string{"res-0"},
		File:       &File{Name: "slides.pdf", ContentType: "application/pdf", Size: 3, Content: strings.NewReader("pdf")},
	})

	_, err := c.Submit(context.Background())
	require.ErrorContains(t, err, "related failed")
	assert.Equal(t, []string{"upload", "create", "related", "list"}, backend.calls)
	assert.Equal(t, 2, store.Len(), "catalog refreshed even though related ids failed")

	state := c.State()
	require.NotNil(t, state.Editing, "form now edits the created resource")
	assert.Equal(t, "res-2", state.Editing.ID)
	assert.Nil(t, state.File)
	assert.Equal(t, "Slides", state.Title)

	backend.failOn = ""
	backend.calls = nil
	saved, err := c.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"update", "related", "list"}, backend.calls)
	assert.Len(t, backend.resources, 2, "retry must not create a duplicate")
	assert.Equal(t, "res-2", saved.ID)
	assert.Equal(t, "https://cdn.example.edu/uploads/u1_slides.pdf", saved.URL)
	assert.Equal(t, "slides.pdf", saved.OriginalFilename)
	assert.Equal(t, []string{"res-0"}, backend.related["res-2"])
	assert.Nil(t, c.State().Editing)
}
