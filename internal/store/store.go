// Package store defines the contract the ledger needs from the hosted
// row store: read a collection, upsert by id, and observe per-record
// changes. The remote backend is opaque beyond this.
package store

import "context"

const (
	CollectionLocations    = "storage_locations"
	CollectionRequisitions = "requisitions"
	CollectionLots         = "production_lots"
	CollectionAuditLog     = "audit_log"
)

// Record is one row of a collection: the id plus the JSON document.
type Record struct {
	ID  string
	Doc []byte
}

// Remote is the persistent row store. Upsert is idempotent by id.
type Remote interface {
	GetAll(ctx context.Context, collection string) ([]Record, error)
	Upsert(ctx context.Context, collection string, rec Record) error
}

// CounterStore serializes sequence-counter read-modify-write. This is
// the single serialization point that keeps concurrently issued lot
// numbers collision free.
type CounterStore interface {
	// Reserve issues count consecutive integers for scope, seeding the
	// counter at seed when the scope is new, and returns the first one.
	Reserve(ctx context.Context, scope string, count, seed int64) (int64, error)
	// Raise lifts the counter for scope to at least next. Used by the
	// startup repair pass; never lowers the counter.
	Raise(ctx context.Context, scope string, next int64) error
	All(ctx context.Context) (map[string]int64, error)
}

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	// EventSyncFailed tells subscribers a record could not reach the
	// remote store and now waits in the outbox. Informational only.
	EventSyncFailed EventType = "SYNC_FAILED"
)

// Event is a per-record change notification.
type Event struct {
	Type       EventType
	Collection string
	RecordID   string
	Doc        []byte
}
