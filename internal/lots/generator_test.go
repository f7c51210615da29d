package lots

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"feedmill/internal/ledger"
	"feedmill/internal/store"
	"feedmill/pkg/auditlog"
	"feedmill/pkg/models"
)

type nopPersister struct{}

func (nopPersister) Persist(context.Context, string, string, any) {}

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *ledger.Ledger) {
	t.Helper()
	logger := zap.NewNop()
	persister := nopPersister{}
	audit := auditlog.NewAuditLog(persister, logger)
	led := ledger.New(persister, audit, logger)
	mem := store.NewMemoryStore()
	return NewService(mem, led, persister, audit, logger), mem, led
}

func TestFiscalYearCode(t *testing.T) {
	tests := []struct {
		name     string
		date     time.Time
		expected string
	}{
		{name: "April starts the year", date: time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), expected: "2526"},
		{name: "March belongs to previous year", date: time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC), expected: "2526"},
		{name: "Mid year", date: time.Date(2025, time.October, 15, 0, 0, 0, 0, time.UTC), expected: "2526"},
		{name: "January", date: time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC), expected: "2425"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FiscalYearCode(tt.date))
		})
	}
}

func TestParseLotNumber(t *testing.T) {
	scope, seq, ok := ParseLotNumber("2526K11007")
	require.True(t, ok)
	assert.Equal(t, "2526-K1", scope)
	assert.Equal(t, int64(1007), seq)

	_, _, ok = ParseLotNumber("garbage")
	assert.False(t, ok)
}

func TestGenerate(t *testing.T) {
	s, _, _ := newTestService(t)
	date := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)

	numbers, err := s.Generate(context.Background(), "Kovvur Plant-1", date, 5)
	require.NoError(t, err)
	require.Len(t, numbers, 5)

	prev := int64(0)
	for i, n := range numbers {
		assert.True(t, strings.HasPrefix(n, "2526K1"), n)
		suffix, convErr := strconv.ParseInt(strings.TrimPrefix(n, "2526K1"), 10, 64)
		require.NoError(t, convErr)
		if i == 0 {
			assert.Equal(t, int64(1000), suffix) // fresh scope seeds at 1000
		} else {
			assert.Equal(t, prev+1, suffix) // contiguous, strictly increasing
		}
		prev = suffix

		lot, getErr := s.Get(n)
		require.NoError(t, getErr)
		assert.Equal(t, models.LotUnassigned, lot.Status)
		assert.Equal(t, "Kovvur Plant-1", lot.Facility)
	}

	// A second batch continues where the first stopped.
	more, err := s.Generate(context.Background(), "Kovvur Plant-1", date, 2)
	require.NoError(t, err)
	assert.Equal(t, "2526K11005", more[0])
	assert.Equal(t, "2526K11006", more[1])
}

func TestGenerateUnknownFacilitySentinel(t *testing.T) {
	s, _, _ := newTestService(t)
	date := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)

	numbers, err := s.Generate(context.Background(), "Mystery Plant", date, 1)
	require.NoError(t, err)
	assert.Equal(t, "2526XX1000", numbers[0])
}

func TestHealCounters(t *testing.T) {
	s, mem, _ := newTestService(t)

	// A lot inserted out of band, ahead of the stored counter.
	doc, err := json.Marshal(&models.ProductionLot{
		LotNumber: "2526K11007",
		Status:    models.LotPendingQA,
		Facility:  "Kovvur Plant-1",
	})
	require.NoError(t, err)
	require.NoError(t, s.Load([]store.Record{{ID: "2526K11007", Doc: doc}}))

	// Stale counter: scope thinks the next number is 1000.
	_, err = mem.Reserve(context.Background(), "2526-K1", 0, 1000)
	require.NoError(t, err)

	require.NoError(t, s.HealCounters(context.Background()))

	counters, err := mem.All(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, counters["2526-K1"], int64(1008))

	// The next generated number collides with nothing.
	date := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	numbers, err := s.Generate(context.Background(), "Kovvur Plant-1", date, 1)
	require.NoError(t, err)
	scope, seq, ok := ParseLotNumber(numbers[0])
	require.True(t, ok)
	assert.Equal(t, "2526-K1", scope)
	assert.GreaterOrEqual(t, seq, int64(1008))

	// Healing again changes nothing.
	require.NoError(t, s.HealCounters(context.Background()))
	after, err := mem.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, counters["2526-K1"]+1, after["2526-K1"])
}
