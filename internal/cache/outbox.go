package cache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionUpsert Action = "UPSERT"
)

// QueuedOp is one mutation waiting to be replayed against the remote
// store. It carries enough to apply later without re-deriving intent,
// and a MutationID so replay can be deduplicated.
type QueuedOp struct {
	Seq        int64  `msgpack:"-"`
	MutationID string `msgpack:"mutation_id"`
	Action     Action `msgpack:"action"`
	Collection string `msgpack:"collection"`
	RecordID   string `msgpack:"record_id"`
	Payload    []byte `msgpack:"payload"`
	Attempts   int    `msgpack:"-"`
}

// Enqueue appends the operation to the outbox. A second enqueue with
// the same mutation id is a no-op.
func (c *Cache) Enqueue(op QueuedOp) error {
	blob, err := msgpack.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to encode outbox op %s: %w", op.MutationID, err)
	}

	_, err = c.db.Exec(
		`INSERT INTO outbox (mutation_id, envelope, enqueued_at) VALUES (?, ?, ?)
		 ON CONFLICT (mutation_id) DO NOTHING`,
		op.MutationID, blob, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue op %s: %w", op.MutationID, err)
	}
	return nil
}

// Pending returns queued operations in enqueue order.
func (c *Cache) Pending(limit int) ([]QueuedOp, error) {
	rows, err := c.db.Query(`SELECT seq, envelope, attempts FROM outbox ORDER BY seq LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	defer rows.Close()

	var ops []QueuedOp
	for rows.Next() {
		var seq int64
		var blob []byte
		var attempts int
		if err := rows.Scan(&seq, &blob, &attempts); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		var op QueuedOp
		if err := msgpack.Unmarshal(blob, &op); err != nil {
			return nil, fmt.Errorf("failed to decode outbox op seq %d: %w", seq, err)
		}
		op.Seq = seq
		op.Attempts = attempts
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Ack removes a successfully applied operation.
func (c *Cache) Ack(seq int64) error {
	if _, err := c.db.Exec(`DELETE FROM outbox WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("failed to ack outbox seq %d: %w", seq, err)
	}
	return nil
}

// RecordAttempt bumps the failure count for an operation and returns
// the new count.
func (c *Cache) RecordAttempt(seq int64) (int, error) {
	if _, err := c.db.Exec(`UPDATE outbox SET attempts = attempts + 1 WHERE seq = ?`, seq); err != nil {
		return 0, fmt.Errorf("failed to record attempt for outbox seq %d: %w", seq, err)
	}
	var attempts int
	row := c.db.QueryRow(`SELECT attempts FROM outbox WHERE seq = ?`, seq)
	if err := row.Scan(&attempts); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read attempts for outbox seq %d: %w", seq, err)
	}
	return attempts, nil
}

// DeadLetter moves an operation out of the outbox after it has
// exhausted its retries.
func (c *Cache) DeadLetter(op QueuedOp, reason string) error {
	blob, err := msgpack.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to encode dead-letter op %s: %w", op.MutationID, err)
	}

	_, err = c.db.Exec(
		`INSERT INTO dead_letter (mutation_id, envelope, attempts, reason, failed_at) VALUES (?, ?, ?, ?, ?)`,
		op.MutationID, blob, op.Attempts, reason, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to dead-letter op %s: %w", op.MutationID, err)
	}
	return c.Ack(op.Seq)
}

// DeadLetters lists parked operations for the operational surface.
func (c *Cache) DeadLetters() ([]QueuedOp, error) {
	rows, err := c.db.Query(`SELECT envelope, attempts FROM dead_letter ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}
	defer rows.Close()

	var ops []QueuedOp
	for rows.Next() {
		var blob []byte
		var attempts int
		if err := rows.Scan(&blob, &attempts); err != nil {
			return nil, fmt.Errorf("failed to scan dead-letter row: %w", err)
		}
		var op QueuedOp
		if err := msgpack.Unmarshal(blob, &op); err != nil {
			return nil, fmt.Errorf("failed to decode dead-letter op: %w", err)
		}
		op.Attempts = attempts
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
