package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/statesync/internal/pubsub"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	reg := NewRegistry()
	rec := NewRecord("Alice", []byte("hello"))

	require.NoError(t, reg.Create(rec.ID(), rec))

	got, err := reg.Get("alice")
	require.NoError(t, err)
	require.Same(t, rec, got)
	require.Equal(t, 1, reg.Len())
}

func TestRegistry_CreateRejectsDuplicate(t *testing.T) {
	reg := NewRegistry()
	first := NewRecord("Alice", []byte("first"))
	second := NewRecord("ALICE", []byte("second"))

	require.NoError(t, reg.Create(first.ID(), first))

	err := reg.Create(second.ID(), second)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrAlreadyExists))

	got, err := reg.Get("alice")
	require.NoError(t, err)
	require.Equal(t, []byte("first"), got.Read().Data)
	require.Equal(t, 1, reg.Len())
}

func TestRegistry_CreateNilRecord(t *testing.T) {
	require.Error(t, NewRegistry().Create("x", nil))
}

func TestRegistry_GetMissing(t *testing.T) {
	_, err := NewRegistry().Get("nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ConcurrentCreateSingleWinner(t *testing.T) {
	reg := NewRegistry()

	var wins, dupes atomic.Int32
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := NewRecord("race", []byte(fmt.Sprintf("writer-%d", i)))
			err := reg.Create(rec.ID(), rec)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrAlreadyExists):
				dupes.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, int32(31), dupes.Load())
	require.Equal(t, 1, reg.Len())
}

func TestRegistry_IDsSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"carol", "alice", "bob"} {
		rec := NewRecord(name, nil)
		require.NoError(t, reg.Create(rec.ID(), rec))
	}

	require.Equal(t, []ResourceID{"alice", "bob", "carol"}, reg.IDs())
}

func TestRegistry_ChangeFeed(t *testing.T) {
	broker := pubsub.NewBroker[Change]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := broker.Subscribe(ctx)

	reg := NewRegistry(WithChangeFeed(broker))
	rec := NewRecord("Alice", []byte("hello"))
	require.NoError(t, reg.Create(rec.ID(), rec))

	_, err := rec.WriteIf(2, []byte("world!"))
	require.NoError(t, err)

	// Rejected writes publish nothing.
	_, err = rec.WriteIf(2, []byte("stale"))
	require.Error(t, err)

	want := []struct {
		typ     pubsub.EventType
		version int64
		size    int
	}{
		{pubsub.CreatedEvent, 1, 5},
		{pubsub.UpdatedEvent, 2, 6},
	}
	for _, w := range want {
		select {
		case ev := <-events:
			require.Equal(t, w.typ, ev.Type)
			require.Equal(t, ResourceID("alice"), ev.Payload.ID)
			require.Equal(t, "Alice", ev.Payload.Name)
			require.Equal(t, w.version, ev.Payload.Version)
			require.Equal(t, w.size, ev.Payload.Size)
		case <-time.After(time.Second):
			require.FailNow(t, "missing change event")
		}
	}

	select {
	case ev := <-events:
		require.Failf(t, "unexpected event", "%+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}
