// Package syncer reconciles in-memory state with the remote store and
// the local cache. Mutations are applied optimistically by their
// owners; the syncer writes them through the cache, queues an
// idempotent replay record in the outbox, and pushes to the remote
// store from its own loop, so no caller ever waits on the network.
package syncer

import (
	"context"
	"encoding/json"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"feedmill/internal/cache"
	"feedmill/internal/store"
	apperrors "feedmill/pkg/errors"
)

// Persister is what the ledger and workflow services see: persist a
// record after a committed in-memory mutation. Only local writes
// happen on the caller's goroutine; remote failure never propagates
// back to the mutation's caller.
type Persister interface {
	Persist(ctx context.Context, collection, id string, record any)
}

const (
	maxAttempts    = 8
	baseBackoff    = 500 * time.Millisecond
	maxBackoff     = 2 * time.Minute
	replayBatchLen = 100
)

type Syncer struct {
	remote   store.Remote
	cache    *cache.Cache
	notifier *store.Notifier
	log      *zap.Logger
	online   atomic.Bool
	wake     chan struct{}
}

func New(remote store.Remote, c *cache.Cache, notifier *store.Notifier, log *zap.Logger) *Syncer {
	s := &Syncer{remote: remote, cache: c, notifier: notifier, log: log, wake: make(chan struct{}, 1)}
	s.online.Store(true)
	return s
}

// Persist writes the record through the local cache, queues it for the
// replay loop, and publishes the per-record change event. The
// in-memory mutation has already been committed by the caller; nothing
// here can undo it, and nothing here touches the network.
func (s *Syncer) Persist(ctx context.Context, collection, id string, record any) {
	doc, err := json.Marshal(record)
	if err != nil {
		s.log.Error("failed to encode record for sync",
			zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		return
	}

	eventType := store.EventInsert
	if _, known, err := s.cache.Get(collection, id); err != nil {
		s.log.Error("cache read failed", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
	} else if known {
		eventType = store.EventUpdate
	}

	if err := s.cache.Put(collection, id, doc); err != nil {
		s.log.Error("cache write failed", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
	}

	s.enqueue(collection, id, doc)
	s.notifier.Publish(store.Event{Type: eventType, Collection: collection, RecordID: id, Doc: doc})

	// Nudge the replay loop; drop the nudge if one is already pending.
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Syncer) enqueue(collection, id string, doc []byte) {
	op := cache.QueuedOp{
		MutationID: uuid.NewString(),
		Action:     cache.ActionUpsert,
		Collection: collection,
		RecordID:   id,
		Payload:    doc,
	}
	if err := s.cache.Enqueue(op); err != nil {
		s.log.Error("failed to enqueue sync op",
			zap.String("collection", collection), zap.String("id", id), zap.Error(err))
	}
}

// Load reads a whole collection, preferring the remote store and
// falling back to the local cache when the remote is unreachable.
func (s *Syncer) Load(ctx context.Context, collection string) ([]store.Record, error) {
	records, err := s.remote.GetAll(ctx, collection)
	if err == nil {
		for _, rec := range records {
			if cacheErr := s.cache.Put(collection, rec.ID, rec.Doc); cacheErr != nil {
				s.log.Error("cache refresh failed", zap.String("collection", collection), zap.Error(cacheErr))
			}
		}
		return records, nil
	}

	s.log.Warn("remote read failed, loading from local cache",
		zap.String("collection", collection), zap.Error(err))
	s.online.Store(false)

	docs, cacheErr := s.cache.All(collection)
	if cacheErr != nil {
		return nil, cacheErr
	}
	records = make([]store.Record, 0, len(docs))
	for id, doc := range docs {
		records = append(records, store.Record{ID: id, Doc: doc})
	}
	return records, nil
}

// Online reports whether the last remote interaction succeeded and the
// outbox has been drained since.
func (s *Syncer) Online() bool {
	return s.online.Load()
}

// Replay drains the outbox in enqueue order. The first failure stops
// the pass (order must be preserved); an operation that has exhausted
// its attempts is parked in the dead-letter table and skipped.
func (s *Syncer) Replay(ctx context.Context) error {
	for {
		ops, err := s.cache.Pending(replayBatchLen)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			s.online.Store(true)
			return nil
		}

		for _, op := range ops {
			if err := s.remote.Upsert(ctx, op.Collection, store.Record{ID: op.RecordID, Doc: op.Payload}); err != nil {
				s.online.Store(false)
				s.notifier.Publish(store.Event{
					Type:       store.EventSyncFailed,
					Collection: op.Collection,
					RecordID:   op.RecordID,
				})

				attempts, attemptErr := s.cache.RecordAttempt(op.Seq)
				if attemptErr != nil {
					s.log.Error("failed to record replay attempt", zap.Error(attemptErr))
				}
				if attempts >= maxAttempts {
					op.Attempts = attempts
					if dlErr := s.cache.DeadLetter(op, err.Error()); dlErr != nil {
						s.log.Error("failed to dead-letter sync op", zap.Error(dlErr))
					} else {
						s.log.Error("sync op exhausted retries, parked in dead letter",
							zap.String("mutation_id", op.MutationID),
							zap.String("collection", op.Collection),
							zap.String("id", op.RecordID))
					}
					continue
				}
				return &apperrors.RemoteSyncError{Collection: op.Collection, RecordID: op.RecordID, Err: err}
			}
			if err := s.cache.Ack(op.Seq); err != nil {
				s.log.Error("failed to ack replayed op", zap.Error(err))
			}
		}
	}
}

// Run replays the outbox until the context is cancelled: promptly when
// a mutation wakes it, on a short timer otherwise, and with
// exponential backoff between failed passes.
func (s *Syncer) Run(ctx context.Context) {
	failures := 0
	for {
		delay := baseBackoff
		if failures > 0 {
			delay = time.Duration(float64(baseBackoff) * math.Pow(2, float64(failures)))
			if delay > maxBackoff {
				delay = maxBackoff
			}
		}

		// While backing off, ignore wake-ups so a burst of mutations
		// cannot hammer a struggling remote.
		wake := s.wake
		if failures > 0 {
			wake = nil
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		case <-wake:
		}

		if err := s.Replay(ctx); err != nil {
			failures++
			s.log.Warn("outbox replay pass failed", zap.Int("failures", failures), zap.Error(err))
			continue
		}
		failures = 0
	}
}
