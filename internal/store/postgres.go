package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

// PostgresStore implements Remote and CounterStore over the hosted
// relational backend. Every collection lives in a table of
// (id, doc, updated_at) rows; upserts are idempotent by id.
type PostgresStore struct {
	DB            *sql.DB
	GoquDBWrapper *goqu.Database
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		DB:            db,
		GoquDBWrapper: goqu.New("postgres", db),
	}
}

func WithTransaction(db *goqu.Database, fn func(tx *goqu.TxDatabase) error) (err error) {
	rawTx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	tx := goqu.NewTx("postgres", rawTx)
	defer func() {
		if p := recover(); p != nil {
			rawTx.Rollback()
			panic(p)
		} else if err != nil {
			rawTx.Rollback()
		} else {
			err = rawTx.Commit()
		}
	}()

	err = fn(tx)
	return
}

func (s *PostgresStore) GetAll(ctx context.Context, collection string) ([]Record, error) {
	type row struct {
		ID  string `db:"id"`
		Doc []byte `db:"doc"`
	}
	var rows []row
	query := s.GoquDBWrapper.Select("id", "doc").From(collection)
	if err := query.Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("unable to read collection %s: %w", collection, err)
	}

	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, Record{ID: r.ID, Doc: r.Doc})
	}
	return records, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, collection string, rec Record) error {
	query := s.GoquDBWrapper.Insert(collection).
		Rows(goqu.Record{
			"id":         rec.ID,
			"doc":        rec.Doc,
			"updated_at": time.Now().UTC(),
		}).
		OnConflict(goqu.DoUpdate("id", goqu.Record{
			"doc":        rec.Doc,
			"updated_at": time.Now().UTC(),
		}))

	if _, err := query.Executor().ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", collection, rec.ID, err)
	}
	return nil
}

// Reserve advances the scope's counter by count in one statement, so
// concurrent generators cannot issue overlapping ranges.
func (s *PostgresStore) Reserve(ctx context.Context, scope string, count, seed int64) (int64, error) {
	query := s.GoquDBWrapper.Insert("sequence_counters").
		Rows(goqu.Record{
			"scope_key": scope,
			"next":      seed + count,
		}).
		OnConflict(goqu.DoUpdate("scope_key", goqu.Record{
			"next": goqu.L("sequence_counters.next + ?", count),
		})).
		Returning("next")

	var next int64
	if _, err := query.Executor().ScanValContext(ctx, &next); err != nil {
		return 0, fmt.Errorf("failed to reserve %d number(s) for scope %s: %w", count, scope, err)
	}
	return next - count, nil
}

func (s *PostgresStore) Raise(ctx context.Context, scope string, next int64) error {
	query := s.GoquDBWrapper.Insert("sequence_counters").
		Rows(goqu.Record{
			"scope_key": scope,
			"next":      next,
		}).
		OnConflict(goqu.DoUpdate("scope_key", goqu.Record{
			"next": goqu.L("GREATEST(sequence_counters.next, EXCLUDED.next)"),
		}))

	if _, err := query.Executor().ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to raise counter for scope %s: %w", scope, err)
	}
	return nil
}

func (s *PostgresStore) All(ctx context.Context) (map[string]int64, error) {
	type row struct {
		ScopeKey string `db:"scope_key"`
		Next     int64  `db:"next"`
	}
	var rows []row
	query := s.GoquDBWrapper.Select("scope_key", "next").From("sequence_counters")
	if err := query.Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("unable to read sequence counters: %w", err)
	}

	counters := make(map[string]int64, len(rows))
	for _, r := range rows {
		counters[r.ScopeKey] = r.Next
	}
	return counters, nil
}
