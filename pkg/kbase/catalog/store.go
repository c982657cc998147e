package catalog

import (
	"fmt"
	"sync"
)

// MutationKind names a catalog change.
type MutationKind int

const (
	// MutationReplace swaps in a freshly fetched catalog.
	MutationReplace MutationKind = iota
	MutationCreate
	MutationUpdate
	MutationDelete
	MutationBatchUpdate
	MutationIncrementViews
	MutationIncrementDownloads
)

func (k MutationKind) String() string {
	switch k {
	case MutationReplace:
		return "replace"
	case MutationCreate:
		return "create"
	case MutationUpdate:
		return "update"
	case MutationDelete:
		return "delete"
	case MutationBatchUpdate:
		return "batch-update"
	case MutationIncrementViews:
		return "increment-views"
	case MutationIncrementDownloads:
		return "increment-downloads"
	default:
		return fmt.Sprintf("mutation(%d)", int(k))
	}
}

// Mutation is the only way to change a Store.
// Resources carries the payload for replace/create/update/batch-update;
// ID names the target for delete and the counters.
type Mutation struct {
	Kind      MutationKind
	Resources []Resource
	ID        string
}

// Store holds the client's copy of the catalog. Reads return copies, so
// derived views never alias store state.
type Store struct {
	mu        sync.RWMutex
	resources []Resource
	version   uint64
	listeners []func(Mutation)
}

// NewStore creates a store seeded with resources.
func NewStore(resources ...Resource) *Store {
	s := &Store{}
	s.resources = cloneAll(resources)
	return s
}

// Apply performs a mutation. Update, delete and counter mutations naming an
// unknown id fail with ErrNotFound and leave the store untouched; a batch
// update is all-or-nothing.
func (s *Store) Apply(m Mutation) error {
	s.mu.Lock()
	err := s.apply(m)
	if err == nil {
		s.version++
	}
	listeners := append([]func(Mutation){}, s.listeners...)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, fn := range listeners {
		fn(m)
	}
	return nil
}

func (s *Store) apply(m Mutation) error {
	switch m.Kind {
	case MutationReplace:
		s.resources = cloneAll(m.Resources)
	case MutationCreate:
		for _, r := range m.Resources {
			if s.index(r.ID) >= 0 {
				return fmt.Errorf("create %s: duplicate id", r.ID)
			}
		}
		s.resources = append(s.resources, cloneAll(m.Resources)...)
	case MutationUpdate, MutationBatchUpdate:
		idx := make([]int, len(m.Resources))
		for i, r := range m.Resources {
			idx[i] = s.index(r.ID)
			if idx[i] < 0 {
				return fmt.Errorf("%s %s: %w", m.Kind, r.ID, ErrNotFound)
			}
		}
		for i, r := range m.Resources {
			s.resources[idx[i]] = r.Clone()
		}
	case MutationDelete:
		i := s.index(m.ID)
		if i < 0 {
			return fmt.Errorf("delete %s: %w", m.ID, ErrNotFound)
		}
		s.resources = append(s.resources[:i], s.resources[i+1:]...)
	case MutationIncrementViews, MutationIncrementDownloads:
		i := s.index(m.ID)
		if i < 0 {
			return fmt.Errorf("%s %s: %w", m.Kind, m.ID, ErrNotFound)
		}
		if m.Kind == MutationIncrementViews {
			s.resources[i].Views++
		} else {
			s.resources[i].Downloads++
		}
	default:
		return fmt.Errorf("unknown mutation %s", m.Kind)
	}
	return nil
}

func (s *Store) index(id string) int {
	for i := range s.resources {
		if s.resources[i].ID == id {
			return i
		}
	}
	return -1
}

// Snapshot returns a deep copy of the catalog in store order.
func (s *Store) Snapshot() []Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.resources)
}

// Get returns a copy of the resource with the given id.
func (s *Store) Get(id string) (Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.resources[i].Clone(), true
	}
	return Resource{}, false
}

// Len returns the number of resources.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.resources)
}

// Version increases with every applied mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers fn to run after each applied mutation, outside the
// store lock.
func (s *Store) Subscribe(fn func(Mutation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func cloneAll(in []Resource) []Resource {
	out := make([]Resource, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
