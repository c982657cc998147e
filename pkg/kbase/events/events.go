// Package events fans catalog changes out to websocket subscribers so open
// dashboards can refetch instead of polling.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
)

// Type names a catalog change.
type Type string

const (
	ResourceCreated    Type = "resource.created"
	ResourceUpdated    Type = "resource.updated"
	ResourceDeleted    Type = "resource.deleted"
	RelatedUpdated     Type = "resource.related"
	ResourcesBatch     Type = "resources.batch"
	ResourcesImported  Type = "resources.imported"
	ResourceViewed     Type = "resource.viewed"
	ResourceDownloaded Type = "resource.downloaded"
)

// Event is one change notification.
type Event struct {
	Type     Type              `json:"type"`
	IDs      []string          `json:"ids"`
	Resource *catalog.Resource `json:"resource,omitempty"`
	At       time.Time         `json:"at"`
}

// Publisher accepts events. Handlers depend on this rather than the Hub.
type Publisher interface {
	Publish(Event)
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

const subscriberBuffer = 32

// Hub broadcasts events to subscribers. A subscriber that falls a full
// buffer behind is disconnected.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
	now    func() time.Time
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{}), now: time.Now}
}

// Publish delivers ev to every subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = h.now().UTC()
	}
	if ev.IDs == nil {
		ev.IDs = []string{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Subscribe registers a new subscriber. The channel is closed when cancel is
// called, the hub shuts down or the subscriber falls behind.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Name implements grace.Grace.
func (h *Hub) Name() string {
	return "events"
}

// Run blocks until ctx is done, then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.close()
	return nil
}

// Shutdown disconnects every subscriber.
func (h *Hub) Shutdown(context.Context) error {
	h.close()
	return nil
}

func (h *Hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
