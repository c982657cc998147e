package dashboard

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/client"
	"github.com/mikepea/kbase/pkg/kbase/events"
	"github.com/mikepea/kbase/pkg/kbase/filter"
	"github.com/mikepea/kbase/pkg/kbase/notify"
	"github.com/mikepea/kbase/pkg/kbase/prefs"
	"github.com/mikepea/kbase/pkg/kbase/preview"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu        sync.Mutex
	resources []catalog.Resource
	views     map[string]int
	downloads map[string]int
	batches   [][]catalog.Resource
	deleted   []string
	history   [][]client.ChatMessage
	failChat  bool
}

func newFakeBackend(resources ...catalog.Resource) *fakeBackend {
	return &fakeBackend{resources: resources, views: map[string]int{}, downloads: map[string]int{}}
}

func (f *fakeBackend) Upload(ctx context.Context, name, contentType string, size int64, content io.Reader) (catalog.Upload, error) {
	return catalog.Upload{URL: "/files/uploads/" + name, Key: "uploads/" + name, OriginalFilename: name}, nil
}

func (f *fakeBackend) CreateResource(ctx context.Context, r catalog.Resource) (catalog.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = "new"
	f.resources = append(f.resources, r)
	return r, nil
}

func (f *fakeBackend) UpdateResource(ctx context.Context, r catalog.Resource) (catalog.Resource, error) {
	return r, nil
}

func (f *fakeBackend) SetRelated(ctx context.Context, id string, related []string) error {
	return nil
}

func (f *fakeBackend) ListResources(ctx context.Context) ([]catalog.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]catalog.Resource, len(f.resources))
	for i, r := range f.resources {
		out[i] = r.Clone()
	}
	return out, nil
}

func (f *fakeBackend) DeleteResource(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.resources {
		if r.ID == id {
			f.resources = append(f.resources[:i], f.resources[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return catalog.ErrNotFound
}

func (f *fakeBackend) BatchUpdate(ctx context.Context, resources []catalog.Resource) ([]catalog.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, resources)
	return resources, nil
}

func (f *fakeBackend) RecordView(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views[id]++
	return nil
}

func (f *fakeBackend) RecordDownload(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads[id]++
	return errors.New("counter service down")
}

func (f *fakeBackend) Chat(ctx context.Context, message string, history []client.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failChat {
		return "", errors.New("assistant unavailable")
	}
	f.history = append(f.history, history)
	return "echo: " + message, nil
}

func fixture() []catalog.Resource {
	return []catalog.Resource{
		{ID: "a", Title: "Calculus Notes", Type: catalog.TypePDF, Subject: "Math", Department: "Mathematics",
			URL: "/files/uploads/a_notes.pdf", Status: catalog.StatusOnline, Tags: []string{"math", "notes"}, Views: 5},
		{ID: "b", Title: "Mechanics Lecture", Type: catalog.TypeVideo, Subject: "Physics",
			URL: "https://www.youtube.com/watch?v=abcdefghijk", Status: catalog.StatusOnline, Tags: []string{"physics"},
			RelatedResourceIDs: []string{"a"}, Views: 9},
		{ID: "c", Title: "Draft Syllabus", Type: catalog.TypeDoc, Subject: "Math",
			URL: "https://example.edu/syllabus.docx", Status: catalog.StatusOffline, Tags: []string{"math"},
			RelatedResourceIDs: []string{"a", "b"}},
	}
}

func setup(t *testing.T) (*Dashboard, *fakeBackend, *notify.Notifier) {
	t.Helper()
	backend := newFakeBackend(fixture()...)
	n := notify.New(zerolog.Nop(), time.Second)
	p := prefs.Load(prefs.FileStore{Dir: t.TempDir()}, zerolog.Nop())
	d := New(backend, p, n, zerolog.Nop(),
		WithBaseURL("https://kb.example.edu/"),
		WithClock(func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, d.Refresh(context.Background()))
	return d, backend, n
}

func ids(list []catalog.Resource) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID
	}
	return out
}

func TestRefreshPrunesBookmarks(t *testing.T) {
	backend := newFakeBackend(fixture()...)
	p := prefs.Load(prefs.FileStore{Dir: t.TempDir()}, zerolog.Nop())
	_, err := p.ToggleBookmark("gone")
	require.NoError(t, err)
	_, err = p.ToggleBookmark("a")
	require.NoError(t, err)

	d := New(backend, p, notify.New(zerolog.Nop(), 0), zerolog.Nop())
	require.NoError(t, d.Refresh(context.Background()))

	assert.Equal(t, 3, d.Store().Len())
	assert.Equal(t, []string{"a"}, p.Bookmarks())
}

func TestVisibleAndPopular(t *testing.T) {
	d, _, _ := setup(t)

	assert.Equal(t, []string{"a", "b"}, ids(d.Visible()), "offline resources are hidden")
	assert.Equal(t, []string{"b", "a"}, ids(d.Popular()))
	assert.Equal(t, []string{"Math", "Physics"}, d.Subjects())
	assert.Len(t, d.Admin(), 3)

	c := filter.DefaultCriteria()
	c.Search = "calculus"
	d.SetCriteria(c)
	assert.Equal(t, []string{"a"}, ids(d.Visible()))
	assert.Nil(t, d.Popular(), "popular list only shows in the default view")
	assert.Equal(t, "calculus", d.Criteria().Search)
}

func TestOpenCountsViewAndResolvesPreview(t *testing.T) {
	d, backend, n := setup(t)

	v, err := d.Open("a")
	require.NoError(t, err)
	assert.Equal(t, uint(6), v.Resource.Views)
	assert.Equal(t, preview.KindPDF, v.Preview.Kind)
	assert.True(t, d.IsCurrent(v))

	got, _ := d.Store().Get("a")
	assert.Equal(t, uint(6), got.Views, "counted locally before the backend answers")

	n.Wait()
	assert.Equal(t, 1, backend.views["a"])

	_, err = d.Open("missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestOnlyLatestViewingIsCurrent(t *testing.T) {
	d, _, n := setup(t)
	defer n.Wait()

	first, err := d.Open("a")
	require.NoError(t, err)
	second, err := d.Open("b")
	require.NoError(t, err)

	assert.False(t, d.IsCurrent(first))
	assert.True(t, d.IsCurrent(second))
	assert.Equal(t, preview.KindIframe, second.Preview.Kind)

	d.CloseViewer()
	assert.False(t, d.IsCurrent(second))
	assert.False(t, d.IsCurrent(Viewing{}))
}

func TestDownloadKeepsLocalCountWhenReportFails(t *testing.T) {
	d, backend, n := setup(t)

	u, err := d.Download("a")
	require.NoError(t, err)
	assert.Equal(t, "https://kb.example.edu/files/uploads/a_notes.pdf", u)

	n.Wait()
	assert.Equal(t, 1, backend.downloads["a"])
	got, _ := d.Store().Get("a")
	assert.Equal(t, uint(1), got.Downloads)

	_, err = d.Download("missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestDeletePrunesRelatedAndBookmarks(t *testing.T) {
	d, backend, _ := setup(t)
	_, err := d.ToggleBookmark("a")
	require.NoError(t, err)
	_, err = d.ToggleBookmark("b")
	require.NoError(t, err)

	require.NoError(t, d.Delete(context.Background(), "a"))

	assert.Equal(t, []string{"a"}, backend.deleted)
	_, ok := d.Store().Get("a")
	assert.False(t, ok)
	b, _ := d.Store().Get("b")
	assert.Empty(t, b.RelatedResourceIDs)
	c, _ := d.Store().Get("c")
	assert.Equal(t, []string{"b"}, c.RelatedResourceIDs)
	assert.Equal(t, []string{"b"}, d.Prefs().Bookmarks())

	err = d.Delete(context.Background(), "a")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestBookmarks(t *testing.T) {
	d, _, _ := setup(t)

	on, err := d.ToggleBookmark("b")
	require.NoError(t, err)
	assert.True(t, on)
	_, err = d.ToggleBookmark("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(d.Bookmarked()))

	_, err = d.ToggleBookmark("missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestTagRename(t *testing.T) {
	d, backend, _ := setup(t)

	op := d.RequestTagRename("math", "mathematics")
	assert.Equal(t, 2, op.Count())

	n, err := op.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, backend.batches, 1)

	a, _ := d.Store().Get("a")
	assert.Equal(t, []string{"mathematics", "notes"}, a.Tags)

	_, err = op.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrOperationClosed)

	counts := map[string]int{}
	for _, e := range d.Tags() {
		counts[e.Name] = e.Count
	}
	assert.Equal(t, 2, counts["mathematics"])
	assert.Zero(t, counts["math"])
}

func TestTagDeleteAndCancel(t *testing.T) {
	d, backend, _ := setup(t)

	op := d.RequestTagDelete("physics")
	op.Cancel()
	_, err := op.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrOperationClosed)
	assert.Empty(t, backend.batches)

	op = d.RequestTagDelete("physics")
	n, err := op.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	b, _ := d.Store().Get("b")
	assert.Empty(t, b.Tags)

	noop := d.RequestTagRename("notes", "  ")
	n, err = noop.Confirm(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, backend.batches, 1)
}

func TestCite(t *testing.T) {
	d, _, _ := setup(t)

	text, err := d.Cite("a", "apa")
	require.NoError(t, err)
	assert.Equal(t, "Mathematics. (2026). Calculus Notes [PDF document]. Retrieved March 2, 2026, from https://kb.example.edu/files/uploads/a_notes.pdf", text)

	_, err = d.Cite("a", "harvard")
	assert.Error(t, err)
	_, err = d.Cite("missing", "APA")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestAskKeepsHistory(t *testing.T) {
	d, backend, _ := setup(t)
	ctx := context.Background()

	text, err := d.Ask(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", text)

	_, err = d.Ask(ctx, "more")
	require.NoError(t, err)
	require.Len(t, backend.history, 2)
	assert.Empty(t, backend.history[0])
	assert.Len(t, backend.history[1], 2)
	assert.Len(t, d.History(), 4)

	backend.failChat = true
	_, err = d.Ask(ctx, "lost")
	assert.Error(t, err)
	assert.Len(t, d.History(), 4, "failed exchanges are not recorded")

	_, err = d.Ask(ctx, "   ")
	assert.Error(t, err)

	d.ResetChat()
	assert.Empty(t, d.History())
}

type fakeSource struct {
	events []events.Event
}

func (s fakeSource) Watch(ctx context.Context, fn func(events.Event)) error {
	for _, ev := range s.events {
		fn(ev)
	}
	return nil
}

func TestWatchRefreshes(t *testing.T) {
	d, backend, _ := setup(t)

	backend.mu.Lock()
	backend.resources = append(backend.resources, catalog.Resource{ID: "d", Title: "New", Type: catalog.TypeLink, URL: "https://example.com", Status: catalog.StatusOnline})
	backend.mu.Unlock()

	err := d.Watch(context.Background(), fakeSource{events: []events.Event{{Type: events.ResourceCreated, IDs: []string{"d"}}}})
	require.NoError(t, err)
	_, ok := d.Store().Get("d")
	assert.True(t, ok)
}

func TestCatalogChangesPruneBookmarks(t *testing.T) {
	d, backend, _ := setup(t)
	for _, id := range []string{"a", "b", "c"} {
		_, err := d.ToggleBookmark(id)
		require.NoError(t, err)
	}

	require.NoError(t, d.Store().Apply(catalog.Mutation{Kind: catalog.MutationDelete, ID: "c"}))
	assert.Equal(t, []string{"a", "b"}, d.Prefs().Bookmarks())

	// Another admin deleted b; the form's post-submit re-fetch brings the
	// catalog up to date.
	backend.mu.Lock()
	backend.resources = backend.resources[:1]
	backend.mu.Unlock()

	f := d.Form()
	s := f.State()
	s.Title = "Course site"
	s.Type = catalog.TypeLink
	s.URL = "https://example.edu/course"
	f.Update(s)
	_, err := f.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, d.Prefs().Bookmarks())
}
