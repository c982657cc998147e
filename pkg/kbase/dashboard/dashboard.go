// Package dashboard is the client session behind the catalog UI: it keeps
// the local catalog in sync with the backend and derives every view the UI
// renders from it.
package dashboard

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/citation"
	"github.com/mikepea/kbase/pkg/kbase/client"
	"github.com/mikepea/kbase/pkg/kbase/events"
	"github.com/mikepea/kbase/pkg/kbase/filter"
	"github.com/mikepea/kbase/pkg/kbase/form"
	"github.com/mikepea/kbase/pkg/kbase/notify"
	"github.com/mikepea/kbase/pkg/kbase/prefs"
	"github.com/mikepea/kbase/pkg/kbase/preview"
	"github.com/mikepea/kbase/pkg/kbase/tagreg"
	"github.com/rs/zerolog"
)

// Backend is the API surface the dashboard uses. *client.Client satisfies it.
type Backend interface {
	form.Backend
	DeleteResource(ctx context.Context, id string) error
	BatchUpdate(ctx context.Context, resources []catalog.Resource) ([]catalog.Resource, error)
	RecordView(ctx context.Context, id string) error
	RecordDownload(ctx context.Context, id string) error
	Chat(ctx context.Context, message string, history []client.ChatMessage) (string, error)
}

// Source delivers catalog change events. *client.Client satisfies it.
type Source interface {
	Watch(ctx context.Context, fn func(events.Event)) error
}

var (
	_ Backend = (*client.Client)(nil)
	_ Source  = (*client.Client)(nil)
)

// Dashboard is one user's session.
type Dashboard struct {
	backend  Backend
	store    *catalog.Store
	prefs    *prefs.Prefs
	notifier *notify.Notifier
	resolver *preview.Resolver
	form     *form.Controller
	logger   zerolog.Logger
	baseURL  string
	now      func() time.Time

	mu       sync.Mutex
	criteria filter.Criteria
	viewing  uint64
	history  []client.ChatMessage
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithBaseURL sets the site root used to absolutize hosted file paths and to
// build catalog permalinks.
func WithBaseURL(u string) Option {
	return func(d *Dashboard) { d.baseURL = strings.TrimRight(u, "/") }
}

// WithResolver replaces the default preview resolver.
func WithResolver(r *preview.Resolver) Option {
	return func(d *Dashboard) { d.resolver = r }
}

// WithClock replaces time.Now for citations.
func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) { d.now = now }
}

// New returns a dashboard with an empty catalog. Call Refresh to load it.
func New(backend Backend, p *prefs.Prefs, n *notify.Notifier, logger zerolog.Logger, opts ...Option) *Dashboard {
	store := catalog.NewStore()
	d := &Dashboard{
		backend:  backend,
		store:    store,
		prefs:    p,
		notifier: n,
		resolver: preview.New(),
		form:     form.NewController(backend, store),
		logger:   logger,
		now:      time.Now,
		criteria: filter.DefaultCriteria(),
	}
	for _, opt := range opts {
		opt(d)
	}
	store.Subscribe(d.syncBookmarks)
	return d
}

// syncBookmarks drops bookmarks of resources that left the catalog, whichever
// path changed it: Refresh, the admin form's re-fetch or Delete.
func (d *Dashboard) syncBookmarks(m catalog.Mutation) {
	var err error
	switch m.Kind {
	case catalog.MutationReplace:
		existing := make(map[string]struct{}, len(m.Resources))
		for _, r := range m.Resources {
			existing[r.ID] = struct{}{}
		}
		err = d.prefs.Prune(existing)
	case catalog.MutationDelete:
		err = d.prefs.RemoveBookmarks(m.ID)
	default:
		return
	}
	if err != nil {
		d.logger.Warn().Err(err).Str("mutation", m.Kind.String()).Msg("update bookmarks failed")
	}
}

// Store returns the local catalog.
func (d *Dashboard) Store() *catalog.Store { return d.store }

// Prefs returns the persisted preferences.
func (d *Dashboard) Prefs() *prefs.Prefs { return d.prefs }

// Form returns the admin form controller bound to this session.
func (d *Dashboard) Form() *form.Controller { return d.form }

// Refresh replaces the local catalog with the backend's and drops bookmarks
// of resources that no longer exist.
func (d *Dashboard) Refresh(ctx context.Context) error {
	list, err := d.backend.ListResources(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	return d.store.Apply(catalog.Mutation{Kind: catalog.MutationReplace, Resources: list})
}

// SetCriteria replaces the filter state.
func (d *Dashboard) SetCriteria(c filter.Criteria) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.criteria = c
}

// Criteria returns the filter state.
func (d *Dashboard) Criteria() filter.Criteria {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.criteria
}

// Visible returns the resources matching the current criteria.
func (d *Dashboard) Visible() []catalog.Resource {
	return filter.Apply(d.store.Snapshot(), d.Criteria())
}

// Popular returns the most viewed resources, only in the default view.
func (d *Dashboard) Popular() []catalog.Resource {
	if !d.Criteria().IsDefault() {
		return nil
	}
	return filter.Popular(d.store.Snapshot(), filter.PopularLimit)
}

// Subjects lists the subjects offered by the subject filter.
func (d *Dashboard) Subjects() []string {
	return filter.Subjects(d.store.Snapshot())
}

// Admin returns every resource, offline ones included, for the console.
func (d *Dashboard) Admin() []catalog.Resource {
	return d.store.Snapshot()
}

// absolute turns hosted paths like /files/uploads/x.pdf into full URLs.
func (d *Dashboard) absolute(u string) string {
	if d.baseURL != "" && strings.HasPrefix(u, "/") {
		return d.baseURL + u
	}
	return u
}

func (d *Dashboard) get(id string) (catalog.Resource, error) {
	r, ok := d.store.Get(id)
	if !ok {
		return catalog.Resource{}, catalog.ErrNotFound
	}
	return r, nil
}

// Tags is the registry over the whole local catalog.
func (d *Dashboard) Tags() []tagreg.Entry {
	return tagreg.Build(d.store.Snapshot()).Entries()
}

// Cite formats a resource in the named style.
func (d *Dashboard) Cite(id string, format string) (string, error) {
	r, err := d.get(id)
	if err != nil {
		return "", err
	}
	f, err := citation.ParseFormat(format)
	if err != nil {
		return "", err
	}
	r.URL = d.absolute(r.URL)
	return citation.Generate(r, f, d.now(), d.baseURL)
}

// ToggleBookmark flips the bookmark on id.
func (d *Dashboard) ToggleBookmark(id string) (bool, error) {
	if _, err := d.get(id); err != nil {
		return false, err
	}
	return d.prefs.ToggleBookmark(id)
}

// Bookmarked returns the bookmarked resources in bookmark order.
func (d *Dashboard) Bookmarked() []catalog.Resource {
	var out []catalog.Resource
	for _, id := range d.prefs.Bookmarks() {
		if r, ok := d.store.Get(id); ok {
			out = append(out, r)
		}
	}
	return out
}

// Delete removes a resource on the backend, then locally, then from every
// local related list. The bookmark goes with the local delete.
func (d *Dashboard) Delete(ctx context.Context, id string) error {
	if err := d.backend.DeleteResource(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if err := d.store.Apply(catalog.Mutation{Kind: catalog.MutationDelete, ID: id}); err != nil {
		d.logger.Debug().Err(err).Str("id", id).Msg("deleted resource was not in the local catalog")
		if err := d.prefs.RemoveBookmarks(id); err != nil {
			d.logger.Warn().Err(err).Str("id", id).Msg("remove bookmark failed")
		}
	}

	var touched []catalog.Resource
	for _, r := range d.store.Snapshot() {
		if !slices.Contains(r.RelatedResourceIDs, id) {
			continue
		}
		r.RelatedResourceIDs = slices.DeleteFunc(r.RelatedResourceIDs, func(rel string) bool { return rel == id })
		touched = append(touched, r)
	}
	if len(touched) > 0 {
		if err := d.store.Apply(catalog.Mutation{Kind: catalog.MutationBatchUpdate, Resources: touched}); err != nil {
			return err
		}
	}
	return nil
}

// Ask sends message to the assistant with the conversation so far. The
// exchange is added to the history only when the assistant answers.
func (d *Dashboard) Ask(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("empty message")
	}
	d.mu.Lock()
	history := slices.Clone(d.history)
	d.mu.Unlock()

	text, err := d.backend.Chat(ctx, message, history)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	d.history = append(d.history,
		client.ChatMessage{Role: "user", Text: message},
		client.ChatMessage{Role: "assistant", Text: text},
	)
	d.mu.Unlock()
	return text, nil
}

// History returns the assistant conversation.
func (d *Dashboard) History() []client.ChatMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.history)
}

// ResetChat forgets the assistant conversation.
func (d *Dashboard) ResetChat() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = nil
}

// Watch refreshes the catalog whenever source reports a change, until ctx
// is done. Failed refreshes are logged and the watch continues.
func (d *Dashboard) Watch(ctx context.Context, source Source) error {
	return source.Watch(ctx, func(ev events.Event) {
		d.logger.Debug().Str("type", string(ev.Type)).Strs("ids", ev.IDs).Msg("catalog changed")
		if err := d.Refresh(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn().Err(err).Msg("refresh after change failed")
		}
	})
}
