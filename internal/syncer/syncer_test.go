package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"feedmill/internal/cache"
	"feedmill/internal/store"
)

// flakyRemote fails every Upsert while failing is true.
type flakyRemote struct {
	mu      sync.Mutex
	failing bool
	applied []store.Record
}

func (r *flakyRemote) GetAll(context.Context, string) ([]store.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, errors.New("remote unreachable")
	}
	return append([]store.Record(nil), r.applied...), nil
}

func (r *flakyRemote) Upsert(_ context.Context, _ string, rec store.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errors.New("remote unreachable")
	}
	r.applied = append(r.applied, rec)
	return nil
}

func (r *flakyRemote) setFailing(v bool) {
	r.mu.Lock()
	r.failing = v
	r.mu.Unlock()
}

func (r *flakyRemote) upserts() []store.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.Record(nil), r.applied...)
}

func newTestSyncer(t *testing.T) (*Syncer, *flakyRemote, *cache.Cache) {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "feedmill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	remote := &flakyRemote{}
	return New(remote, c, store.NewNotifier(), zap.NewNop()), remote, c
}

type doc struct {
	Name string `json:"name"`
}

func TestPersistNeverTouchesTheRemote(t *testing.T) {
	s, remote, c := newTestSyncer(t)

	// Persist is local only: cache write plus outbox entry. The remote
	// push belongs to the replay loop, so a slow or dead remote cannot
	// stall the caller.
	s.Persist(context.Background(), store.CollectionLocations, "RM-01", doc{Name: "bay"})
	assert.Empty(t, remote.upserts())

	blob, ok, err := c.Get(store.CollectionLocations, "RM-01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(blob), "bay")

	pending, err := c.Pending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "RM-01", pending[0].RecordID)

	require.NoError(t, s.Replay(context.Background()))
	applied := remote.upserts()
	require.Len(t, applied, 1)
	assert.Equal(t, "RM-01", applied[0].ID)
}

func TestPersistWakesTheReplayLoop(t *testing.T) {
	s, _, _ := newTestSyncer(t)

	s.Persist(context.Background(), store.CollectionLocations, "RM-01", doc{Name: "bay"})

	select {
	case <-s.wake:
	default:
		t.Fatal("persist left no wake-up for the replay loop")
	}
}

func TestReplayDrainsInEnqueueOrder(t *testing.T) {
	s, remote, c := newTestSyncer(t)
	remote.setFailing(true)

	// The caller never sees the remote being down.
	s.Persist(context.Background(), store.CollectionLocations, "RM-01", doc{Name: "first"})
	s.Persist(context.Background(), store.CollectionLocations, "RM-02", doc{Name: "second"})

	require.Error(t, s.Replay(context.Background()))
	assert.False(t, s.Online())

	pending, err := c.Pending(10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "RM-01", pending[0].RecordID)
	assert.Equal(t, "RM-02", pending[1].RecordID)

	// Connectivity returns: replay drains the outbox in enqueue order.
	remote.setFailing(false)
	require.NoError(t, s.Replay(context.Background()))
	assert.True(t, s.Online())

	pending, err = c.Pending(10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	applied := remote.upserts()
	require.Len(t, applied, 2)
	assert.Equal(t, "RM-01", applied[0].ID)
	assert.Equal(t, "RM-02", applied[1].ID)
}

func TestReplayStopsOnFailureAndPreservesOrder(t *testing.T) {
	s, remote, c := newTestSyncer(t)
	remote.setFailing(true)

	s.Persist(context.Background(), store.CollectionLocations, "RM-01", doc{Name: "first"})
	s.Persist(context.Background(), store.CollectionLocations, "RM-02", doc{Name: "second"})

	// Still down: the pass fails and the queue is intact.
	require.Error(t, s.Replay(context.Background()))
	pending, err := c.Pending(10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Equal(t, "RM-01", pending[0].RecordID)
}

func TestReplayDeadLettersAfterMaxAttempts(t *testing.T) {
	s, remote, c := newTestSyncer(t)
	remote.setFailing(true)

	s.Persist(context.Background(), store.CollectionLocations, "RM-01", doc{Name: "doomed"})

	for i := 0; i < maxAttempts; i++ {
		_ = s.Replay(context.Background())
	}

	pending, err := c.Pending(10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	dead, err := c.DeadLetters()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "RM-01", dead[0].RecordID)
	assert.Equal(t, maxAttempts, dead[0].Attempts)
}

func TestReplayFailurePublishesSyncFailedEvent(t *testing.T) {
	c, err := cache.Open(filepath.Join(t.TempDir(), "feedmill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	notifier := store.NewNotifier()
	var types []store.EventType
	notifier.Subscribe(store.CollectionLocations, func(evt store.Event) {
		types = append(types, evt.Type)
	})

	remote := &flakyRemote{}
	remote.setFailing(true)
	s := New(remote, c, notifier, zap.NewNop())
	s.Persist(context.Background(), store.CollectionLocations, "RM-01", doc{Name: "bay"})
	require.Error(t, s.Replay(context.Background()))

	require.Contains(t, types, store.EventSyncFailed)
	// The ordinary change event still goes out: the mutation itself stands.
	assert.Contains(t, types, store.EventInsert)
}

func TestLoadFallsBackToCache(t *testing.T) {
	s, remote, _ := newTestSyncer(t)

	s.Persist(context.Background(), store.CollectionLocations, "RM-01", doc{Name: "bay"})

	remote.setFailing(true)
	records, err := s.Load(context.Background(), store.CollectionLocations)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "RM-01", records[0].ID)
	assert.False(t, s.Online())
}

func TestNotifierReceivesPerRecordEvents(t *testing.T) {
	c, err := cache.Open(filepath.Join(t.TempDir(), "feedmill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	notifier := store.NewNotifier()
	var events []store.Event
	notifier.Subscribe(store.CollectionLocations, func(evt store.Event) {
		events = append(events, evt)
	})

	s := New(&flakyRemote{}, c, notifier, zap.NewNop())
	s.Persist(context.Background(), store.CollectionLocations, "RM-01", doc{Name: "bay"})
	s.Persist(context.Background(), store.CollectionLocations, "RM-01", doc{Name: "bay again"})

	require.Len(t, events, 2)
	assert.Equal(t, store.EventInsert, events[0].Type)
	assert.Equal(t, store.EventUpdate, events[1].Type)
	assert.Equal(t, "RM-01", events[0].RecordID)
}
