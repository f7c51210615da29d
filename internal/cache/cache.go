// Package cache is the local durable store used for offline-first
// operation: a write-through copy of every record keyed like the
// remote collections, plus the outbox of mutations waiting to be
// replayed against the remote store.
package cache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

type Cache struct {
	db *sql.DB
}

// envelope is the msgpack frame stored in the records table.
type envelope struct {
	Collection string `msgpack:"collection"`
	ID         string `msgpack:"id"`
	Doc        []byte `msgpack:"doc"`
	UpdatedMs  int64  `msgpack:"updated_ms"`
}

func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("could not open cache at %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=10000"); err != nil {
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			envelope BLOB NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			mutation_id TEXT NOT NULL UNIQUE,
			envelope BLOB NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			enqueued_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dead_letter (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			mutation_id TEXT NOT NULL,
			envelope BLOB NOT NULL,
			attempts INTEGER NOT NULL,
			reason TEXT NOT NULL,
			failed_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("cache migration failed: %w", err)
		}
	}
	return nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Put writes the record through to the cache. Last write per key wins.
func (c *Cache) Put(collection, id string, doc []byte) error {
	blob, err := msgpack.Marshal(envelope{
		Collection: collection,
		ID:         id,
		Doc:        doc,
		UpdatedMs:  time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache envelope for %s/%s: %w", collection, id, err)
	}

	_, err = c.db.Exec(
		`INSERT INTO records (collection, id, envelope) VALUES (?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET envelope = excluded.envelope`,
		collection, id, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to cache %s/%s: %w", collection, id, err)
	}
	return nil
}

// Get returns the cached document for a key, or ok=false when the key
// has never been written.
func (c *Cache) Get(collection, id string) (doc []byte, ok bool, err error) {
	var blob []byte
	row := c.db.QueryRow(`SELECT envelope FROM records WHERE collection = ? AND id = ?`, collection, id)
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache %s/%s: %w", collection, id, err)
	}

	var env envelope
	if err := msgpack.Unmarshal(blob, &env); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache envelope for %s/%s: %w", collection, id, err)
	}
	return env.Doc, true, nil
}

// All returns every cached document in a collection, keyed by id.
// Used to bootstrap the in-memory state when the remote store is
// unreachable.
func (c *Cache) All(collection string) (map[string][]byte, error) {
	rows, err := c.db.Query(`SELECT id, envelope FROM records WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to scan cache collection %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make(map[string][]byte)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan cache row: %w", err)
		}
		var env envelope
		if err := msgpack.Unmarshal(blob, &env); err != nil {
			return nil, fmt.Errorf("failed to decode cache envelope for %s/%s: %w", collection, id, err)
		}
		docs[id] = env.Doc
	}
	return docs, rows.Err()
}
