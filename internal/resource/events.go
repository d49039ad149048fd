package resource

import (
	"time"

	"github.com/zjrosen/statesync/internal/pubsub"
)

// Change describes one create or update on the change feed.
type Change struct {
	ID         ResourceID `json:"id"`
	Name       string     `json:"name"`
	Version    int64      `json:"version"`
	Size       int        `json:"size"`
	LastUpdate time.Time  `json:"last_update"`
}

func changeFromSnapshot(s Snapshot) Change {
	return Change{
		ID:         s.ID,
		Name:       s.Name,
		Version:    s.Version,
		Size:       len(s.Data),
		LastUpdate: s.LastUpdate,
	}
}

// ChangeEvent is a change feed event.
type ChangeEvent = pubsub.Event[Change]
