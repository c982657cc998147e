package dashboard

import (
	"context"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/preview"
)

// Viewing is an opened resource. Only the most recent Viewing is current;
// results of work started for an older one should be discarded.
type Viewing struct {
	Resource catalog.Resource
	Preview  preview.Result
	gen      uint64
}

// Open shows a resource in the viewer. The view counter is bumped locally
// right away and reported to the backend in the background.
func (d *Dashboard) Open(id string) (Viewing, error) {
	if err := d.store.Apply(catalog.Mutation{Kind: catalog.MutationIncrementViews, ID: id}); err != nil {
		return Viewing{}, err
	}
	r, err := d.get(id)
	if err != nil {
		return Viewing{}, err
	}

	d.mu.Lock()
	d.viewing++
	gen := d.viewing
	d.mu.Unlock()

	d.notifier.Dispatch("view "+id, func(ctx context.Context) error {
		return d.backend.RecordView(ctx, id)
	})

	candidate := r
	candidate.URL = d.absolute(r.URL)
	return Viewing{Resource: r, Preview: d.resolver.Resolve(candidate), gen: gen}, nil
}

// IsCurrent reports whether v is still the open resource.
func (d *Dashboard) IsCurrent(v Viewing) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return v.gen != 0 && v.gen == d.viewing
}

// CloseViewer invalidates the current Viewing.
func (d *Dashboard) CloseViewer() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewing++
}

// Download bumps the download counter locally, reports it in the background
// and returns the URL to fetch.
func (d *Dashboard) Download(id string) (string, error) {
	if err := d.store.Apply(catalog.Mutation{Kind: catalog.MutationIncrementDownloads, ID: id}); err != nil {
		return "", err
	}
	r, err := d.get(id)
	if err != nil {
		return "", err
	}

	d.notifier.Dispatch("download "+id, func(ctx context.Context) error {
		return d.backend.RecordDownload(ctx, id)
	})
	return d.absolute(r.URL), nil
}
