package resource

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Snapshot is a consistent copy of a record's state at one version.
type Snapshot struct {
	ID         ResourceID
	Name       string
	Data       []byte
	Version    int64
	LastUpdate time.Time
}

// NextVersion is the version the next successful update will create.
func (s Snapshot) NextVersion() int64 {
	return s.Version + 1
}

// Record is a named, versioned blob with one Notifier bound to it for its
// whole lifetime. Version starts at 1 and grows by exactly 1 per write.
type Record struct {
	mu         sync.RWMutex
	id         ResourceID
	name       string
	data       []byte
	version    int64
	lastUpdate time.Time
	notifier   *Notifier

	// onWrite runs after every successful write while the lock is still
	// held, so observers see versions in order. It must not block.
	onWrite func(Snapshot)
}

// NewRecord creates a record at version 1 seeded with data. Creation is not
// a write: it does not signal the notifier.
func NewRecord(name string, data []byte) *Record {
	return &Record{
		id:         Normalize(name),
		name:       name,
		data:       clone(data),
		version:    1,
		lastUpdate: time.Now(),
		notifier:   NewNotifier(),
	}
}

// ID returns the record's normalized id.
func (r *Record) ID() ResourceID {
	return r.id
}

// Read returns the current state. It never blocks on waiters.
func (r *Record) Read() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Write replaces the data, increments the version and wakes every waiter.
func (r *Record) Write(data []byte) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeLocked(data)
}

// WriteIf writes data only if nextVersion is exactly the current version
// plus one. Otherwise it returns ErrVersionConflict and leaves the record
// untouched. Two concurrent calls naming the same version cannot both win.
func (r *Record) WriteIf(nextVersion int64, data []byte) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if nextVersion != r.version+1 {
		return Snapshot{}, fmt.Errorf("%w: got %d, current is %d", ErrVersionConflict, nextVersion, r.version)
	}
	return r.writeLocked(data), nil
}

// writeLocked mutates the record and signals the notifier in the same
// critical section, so a waiter that checked the version under the lock is
// always in the round this signal resolves. Callers hold mu for writing.
func (r *Record) writeLocked(data []byte) Snapshot {
	r.data = clone(data)
	r.version++
	r.lastUpdate = time.Now()
	r.notifier.Signal()

	snap := r.snapshotLocked()
	if r.onWrite != nil {
		r.onWrite(snap)
	}
	return snap
}

// WaitForNextVersion blocks until the next write or until timeout elapses
// for the current round. Callers re-read the record afterwards.
func (r *Record) WaitForNextVersion(ctx context.Context, timeout time.Duration) (WakeReason, error) {
	return r.notifier.Wait(ctx, timeout)
}

// WaitForVersion returns immediately if version is already available.
// Otherwise it waits once for the next write or the round timeout and returns
// the latest state, which is unchanged if the wait timed out. The version
// check and joining the round happen under the record lock, so a concurrent
// write cannot be missed.
func (r *Record) WaitForVersion(ctx context.Context, version int64, timeout time.Duration) (Snapshot, WakeReason, error) {
	r.mu.RLock()
	if version <= r.version {
		snap := r.snapshotLocked()
		r.mu.RUnlock()
		return snap, AlreadyAvailable, nil
	}
	n := r.notifier
	n.mu.Lock()
	rnd := n.joinLocked(timeout)
	n.mu.Unlock()
	r.mu.RUnlock()

	reason, err := n.await(ctx, rnd)
	if err != nil {
		return Snapshot{}, reason, err
	}
	return r.Read(), reason, nil
}

// Notifier exposes the record's notifier for diagnostics.
func (r *Record) Notifier() *Notifier {
	return r.notifier
}

func (r *Record) snapshotLocked() Snapshot {
	return Snapshot{
		ID:         r.id,
		Name:       r.name,
		Data:       clone(r.data),
		Version:    r.version,
		LastUpdate: r.lastUpdate,
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
