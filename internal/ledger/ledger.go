// Package ledger owns the bin/bay records and every quantity mutation
// applied to them. Mutations are serialized behind one mutex, applied
// to memory first, then written through the sync layer.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"feedmill/internal/store"
	"feedmill/internal/syncer"
	"feedmill/pkg/auditlog"
	apperrors "feedmill/pkg/errors"
	"feedmill/pkg/facility"
	"feedmill/pkg/models"
	"feedmill/pkg/uom"
)

type Operation string

const (
	OpAdd    Operation = "add"
	OpRemove Operation = "remove"
	OpSet    Operation = "set"
)

// MutationRequest describes one quantity mutation. Material and Grade
// are explicit patches: the zero value keeps the stored value, Set
// overrides it, so empty strings never sneak through as "absent".
type MutationRequest struct {
	LocationID string
	Quantity   decimal.Decimal
	Operation  Operation
	Material   models.Patch[string]
	Grade      models.Patch[string]
	Unit       *uom.Unit
	Lot        *models.LotRef
}

type Ledger struct {
	mu        sync.Mutex
	locations map[string]*models.StorageLocation
	persister syncer.Persister
	audit     *auditlog.Auditlog
	log       *zap.Logger
}

func New(persister syncer.Persister, audit *auditlog.Auditlog, log *zap.Logger) *Ledger {
	return &Ledger{
		locations: make(map[string]*models.StorageLocation),
		persister: persister,
		audit:     audit,
		log:       log,
	}
}

// Load replaces the in-memory index with the given records.
func (l *Ledger) Load(records []store.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.locations = make(map[string]*models.StorageLocation, len(records))
	for _, rec := range records {
		var loc models.StorageLocation
		if err := json.Unmarshal(rec.Doc, &loc); err != nil {
			return fmt.Errorf("failed to decode storage location %s: %w", rec.ID, err)
		}
		l.locations[loc.ID] = &loc
	}
	return nil
}

// Register adds or replaces a location record. Facility names are
// canonicalized here, at the ingestion boundary, so the rest of the
// system deals in one spelling per plant.
func (l *Ledger) Register(ctx context.Context, loc models.StorageLocation) (*models.StorageLocation, error) {
	if loc.ID == "" {
		return nil, fmt.Errorf("storage location id must not be empty")
	}
	if loc.Quantity.IsNegative() {
		return nil, &apperrors.InvalidQuantityError{Value: loc.Quantity.String()}
	}
	loc.Facility = facility.Canonical(loc.Facility)
	// Occupancy is derived, not trusted: a location holds stock exactly
	// when it has a quantity or a material. MAINTENANCE is the only
	// state a caller may assert directly.
	if loc.Occupancy != models.OccupancyMaintenance {
		if loc.Quantity.Sign() > 0 || loc.Material != nil {
			loc.Occupancy = models.OccupancyOccupied
		} else {
			loc.Occupancy = models.OccupancyEmpty
			loc.Grade = nil
			loc.OccupyingLots = nil
		}
	}
	loc.LastUpdated = time.Now().UTC()

	l.mu.Lock()
	l.locations[loc.ID] = &loc
	snapshot := loc.Clone()
	l.persister.Persist(ctx, store.CollectionLocations, loc.ID, snapshot)
	l.mu.Unlock()

	l.audit.Log(ctx, "register", snapshot, snapshot)
	return snapshot, nil
}

// Mutate applies one ADD/REMOVE/SET to a location and returns the full
// updated record. Validation happens before anything changes; a
// rejected mutation leaves no trace.
func (l *Ledger) Mutate(ctx context.Context, req MutationRequest) (*models.StorageLocation, error) {
	if req.Quantity.IsNegative() {
		return nil, &apperrors.InvalidQuantityError{Value: req.Quantity.String()}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	loc, ok := l.locations[req.LocationID]
	if !ok {
		return nil, &apperrors.UnknownLocationError{LocationID: req.LocationID}
	}

	locUnit, unitOK := uom.Parse(loc.UnitOfMeasure)
	if !unitOK {
		locUnit = uom.KGS
		l.log.Warn("location carries an unrecognized unit tag, treating as KGS",
			zap.String("location_id", loc.ID),
			zap.String("uom", loc.UnitOfMeasure))
	}
	inputUnit := locUnit
	if req.Unit != nil {
		inputUnit = *req.Unit
	}

	switch req.Operation {
	case OpAdd:
		qty, err := uom.Convert(req.Quantity, inputUnit, locUnit)
		if err != nil {
			return nil, err
		}
		loc.Quantity = uom.Round3(loc.Quantity.Add(qty))
		loc.Occupancy = models.OccupancyOccupied
		l.mergeHeldStock(loc, req)
		if req.Lot != nil {
			l.attachLot(loc, *req.Lot)
		}

	case OpRemove:
		qty, err := uom.Convert(req.Quantity, inputUnit, locUnit)
		if err != nil {
			return nil, err
		}
		remaining := loc.Quantity.Sub(qty)
		if remaining.Sign() <= 0 {
			// Closes out the remainder: never negative, never an error.
			l.clearLocation(loc)
		} else {
			loc.Quantity = uom.Round3(remaining)
			if req.Lot != nil {
				l.detachLot(loc, req.Lot.LotNumber)
			}
		}

	case OpSet:
		if loc.Occupancy == models.OccupancyEmpty && req.Unit != nil {
			// An empty location may be redefined to the incoming unit.
			loc.UnitOfMeasure = string(inputUnit)
			locUnit = inputUnit
		}
		qty, err := uom.Convert(req.Quantity, inputUnit, locUnit)
		if err != nil {
			return nil, err
		}
		if qty.Sign() <= 0 {
			l.clearLocation(loc)
		} else {
			loc.Quantity = uom.Round3(qty)
			loc.Occupancy = models.OccupancyOccupied
			l.mergeHeldStock(loc, req)
		}

	default:
		return nil, fmt.Errorf("unknown ledger operation %q", req.Operation)
	}

	loc.LastUpdated = time.Now().UTC()
	snapshot := loc.Clone()
	l.persister.Persist(ctx, store.CollectionLocations, loc.ID, snapshot)
	l.audit.Log(ctx, "mutate_"+string(req.Operation), req, snapshot)
	return snapshot, nil
}

func (l *Ledger) mergeHeldStock(loc *models.StorageLocation, req MutationRequest) {
	if m, ok := req.Material.Value(); ok {
		loc.Material = &m
	}
	if g, ok := req.Grade.Value(); ok {
		loc.Grade = &g
	}
}

func (l *Ledger) attachLot(loc *models.StorageLocation, ref models.LotRef) {
	if loc.Kind == models.KindBin {
		// Bins hold at most one lot at a time.
		loc.OccupyingLots = []models.LotRef{ref}
		return
	}
	for _, held := range loc.OccupyingLots {
		if held.LotNumber == ref.LotNumber {
			return
		}
	}
	loc.OccupyingLots = append(loc.OccupyingLots, ref)
}

func (l *Ledger) detachLot(loc *models.StorageLocation, lotNumber string) {
	kept := loc.OccupyingLots[:0]
	for _, held := range loc.OccupyingLots {
		if held.LotNumber != lotNumber {
			kept = append(kept, held)
		}
	}
	loc.OccupyingLots = kept
}

func (l *Ledger) clearLocation(loc *models.StorageLocation) {
	loc.Quantity = decimal.Zero
	loc.Material = nil
	loc.Grade = nil
	loc.OccupyingLots = nil
	loc.Occupancy = models.OccupancyEmpty
}

// Get returns a snapshot of one location.
func (l *Ledger) Get(id string) (*models.StorageLocation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	loc, ok := l.locations[id]
	if !ok {
		return nil, &apperrors.UnknownLocationError{LocationID: id}
	}
	return loc.Clone(), nil
}

// All returns snapshots of every location, ordered by id.
func (l *Ledger) All() []*models.StorageLocation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.StorageLocation, 0, len(l.locations))
	for _, loc := range l.locations {
		out = append(out, loc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindByFacility returns locations of a kind at a facility. Matching
// is deliberately fuzzy (aliases, casing, containment): facility names
// arrive spelled differently from different subsystems, and strict
// equality silently returns nothing. Pass kind "" for any kind.
func (l *Ledger) FindByFacility(facilityName string, kind models.LocationKind) []*models.StorageLocation {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.StorageLocation
	for _, loc := range l.locations {
		if kind != "" && loc.Kind != kind {
			continue
		}
		if facility.Match(loc.Facility, facilityName) {
			out = append(out, loc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
