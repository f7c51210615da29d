// Package lots issues fiscal-year/facility-scoped lot numbers and
// tracks each production lot from generation through QA to placement
// in a finished-goods bay.
package lots

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"feedmill/internal/ledger"
	"feedmill/internal/store"
	"feedmill/internal/syncer"
	"feedmill/pkg/auditlog"
	"feedmill/pkg/facility"
	"feedmill/pkg/models"
)

// New scopes start issuing at this sequence.
const seedSequence = 1000

type Service struct {
	mu        sync.Mutex
	lots      map[string]*models.ProductionLot
	counters  store.CounterStore
	ledger    *ledger.Ledger
	persister syncer.Persister
	audit     *auditlog.Auditlog
	log       *zap.Logger
}

func NewService(counters store.CounterStore, l *ledger.Ledger, persister syncer.Persister, audit *auditlog.Auditlog, log *zap.Logger) *Service {
	return &Service{
		lots:      make(map[string]*models.ProductionLot),
		counters:  counters,
		ledger:    l,
		persister: persister,
		audit:     audit,
		log:       log,
	}
}

// Load replaces the in-memory lot index with the given records.
func (s *Service) Load(records []store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lots = make(map[string]*models.ProductionLot, len(records))
	for _, rec := range records {
		var lot models.ProductionLot
		if err := json.Unmarshal(rec.Doc, &lot); err != nil {
			return fmt.Errorf("failed to decode production lot %s: %w", rec.ID, err)
		}
		s.lots[lot.LotNumber] = &lot
	}
	return nil
}

// FiscalYearCode returns the April-start fiscal year code for a date:
// two-digit start year followed by two-digit end year, e.g. any date
// from April 2025 through March 2026 gives "2526".
func FiscalYearCode(date time.Time) string {
	start := date.Year()
	if date.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%02d%02d", start%100, (start+1)%100)
}

// ScopeKey is the counter key for one fiscal year at one facility.
func ScopeKey(facilityName string, date time.Time) string {
	return FiscalYearCode(date) + "-" + facility.Code(facilityName)
}

var lotNumberPattern = regexp.MustCompile(`^(\d{4})([A-Z][A-Z0-9])(\d+)$`)

// ParseLotNumber splits a lot number into its counter scope and
// numeric suffix.
func ParseLotNumber(lotNumber string) (scope string, seq int64, ok bool) {
	m := lotNumberPattern.FindStringSubmatch(lotNumber)
	if m == nil {
		return "", 0, false
	}
	seq, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return m[1] + "-" + m[2], seq, true
}

// Generate issues count new lot numbers for a facility and creates the
// corresponding unassigned lots. Numbers issued in one call are
// contiguous and strictly increasing; cross-process safety rests on
// the counter store serializing Reserve.
func (s *Service) Generate(ctx context.Context, facilityName string, date time.Time, count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("lot count must be positive, got %d", count)
	}

	fy := FiscalYearCode(date)
	code := facility.Code(facilityName)
	if code == facility.UnknownCode {
		s.log.Warn("unknown facility, issuing sentinel-coded lot numbers",
			zap.String("facility", facilityName))
	}
	scope := fy + "-" + code

	start, err := s.counters.Reserve(ctx, scope, int64(count), seedSequence)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve lot numbers for scope %s: %w", scope, err)
	}

	canonical := facility.Canonical(facilityName)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	numbers := make([]string, 0, count)
	for i := int64(0); i < int64(count); i++ {
		lotNumber := fmt.Sprintf("%s%s%d", fy, code, start+i)
		lot := &models.ProductionLot{
			LotNumber: lotNumber,
			Status:    models.LotUnassigned,
			Facility:  canonical,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.lots[lotNumber] = lot
		s.persister.Persist(ctx, store.CollectionLots, lotNumber, lot)
		s.audit.Log(ctx, "generate", nil, lot)
		numbers = append(numbers, lotNumber)
	}
	return numbers, nil
}

// HealCounters raises each scope's counter above the highest sequence
// observed in existing lot numbers. It runs at startup, is idempotent,
// and logs every raise. This guards against drift from out-of-band
// inserts; it is best-effort, not a duplicate-issuance guarantee.
func (s *Service) HealCounters(ctx context.Context) error {
	current, err := s.counters.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to read counters for healing: %w", err)
	}

	s.mu.Lock()
	observed := make(map[string]int64)
	for lotNumber := range s.lots {
		scope, seq, ok := ParseLotNumber(lotNumber)
		if !ok {
			s.log.Warn("lot number does not parse, skipping in counter heal",
				zap.String("lot_number", lotNumber))
			continue
		}
		if seq > observed[scope] {
			observed[scope] = seq
		}
	}
	s.mu.Unlock()

	for scope, maxSeq := range observed {
		// Next issued suffix must be strictly greater than anything seen.
		next := maxSeq + 1
		if stored, ok := current[scope]; ok && stored >= next {
			continue
		}
		if err := s.counters.Raise(ctx, scope, next); err != nil {
			return fmt.Errorf("failed to heal counter for scope %s: %w", scope, err)
		}
		s.log.Warn("healed sequence counter",
			zap.String("scope", scope),
			zap.Int64("stored", current[scope]),
			zap.Int64("raised_to", next))
	}
	return nil
}
