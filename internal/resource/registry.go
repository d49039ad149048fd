package resource

import (
	"fmt"
	"slices"
	"sync"

	"github.com/zjrosen/statesync/internal/log"
	"github.com/zjrosen/statesync/internal/pubsub"
)

// Registry owns every Record for the life of the process. There is no
// eviction and no delete.
type Registry struct {
	mu      sync.RWMutex
	records map[ResourceID]*Record
	feed    pubsub.Publisher[Change]
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithChangeFeed publishes a Change for every create and update.
func WithChangeFeed(p pubsub.Publisher[Change]) RegistryOption {
	return func(r *Registry) {
		r.feed = p
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		records: make(map[ResourceID]*Record),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers rec under id. Of any number of concurrent creates for
// the same id exactly one succeeds; the rest get ErrAlreadyExists.
func (r *Registry) Create(id ResourceID, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}

	r.mu.Lock()
	if _, exists := r.records[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	if r.feed != nil {
		feed := r.feed
		rec.onWrite = func(s Snapshot) {
			feed.Publish(pubsub.UpdatedEvent, changeFromSnapshot(s))
		}
	}
	r.records[id] = rec
	// Published before unlocking so no update event can precede it.
	if r.feed != nil {
		r.feed.Publish(pubsub.CreatedEvent, changeFromSnapshot(rec.Read()))
	}
	r.mu.Unlock()

	log.Debug(log.CatResource, "resource created", "id", id)
	return nil
}

// Get returns the record for id, or ErrNotFound.
func (r *Registry) Get(id ResourceID) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// IDs returns every registered id in sorted order.
func (r *Registry) IDs() []ResourceID {
	r.mu.RLock()
	ids := make([]ResourceID, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}
