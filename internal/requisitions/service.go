// Package requisitions drives the material-requisition workflow: bay
// assignment, dumping into staging bins, and closure. Each transition
// validates fully before touching the stock ledger, so a rejected
// operation leaves no partial state behind.
package requisitions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"feedmill/internal/ledger"
	"feedmill/internal/store"
	"feedmill/internal/syncer"
	"feedmill/pkg/auditlog"
	apperrors "feedmill/pkg/errors"
	"feedmill/pkg/facility"
	"feedmill/pkg/models"
	"feedmill/pkg/uom"
)

type Service struct {
	mu           sync.Mutex
	requisitions map[string]*models.Requisition
	ledger       *ledger.Ledger
	counters     store.CounterStore
	persister    syncer.Persister
	audit        *auditlog.Auditlog
	log          *zap.Logger
}

func NewService(l *ledger.Ledger, counters store.CounterStore, persister syncer.Persister, audit *auditlog.Auditlog, log *zap.Logger) *Service {
	return &Service{
		requisitions: make(map[string]*models.Requisition),
		ledger:       l,
		counters:     counters,
		persister:    persister,
		audit:        audit,
		log:          log,
	}
}

// Load replaces the in-memory requisition index.
func (s *Service) Load(records []store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requisitions = make(map[string]*models.Requisition, len(records))
	for _, rec := range records {
		var req models.Requisition
		if err := json.Unmarshal(rec.Doc, &req); err != nil {
			return fmt.Errorf("failed to decode requisition %s: %w", rec.ID, err)
		}
		s.requisitions[req.ID] = &req
	}
	return nil
}

// Create opens a requisition in pending-bay-assignment with a
// deterministic id carrying the facility code and date.
func (s *Service) Create(ctx context.Context, facilityName string, items []models.RequisitionItem, targets []models.TargetProduct) (*models.Requisition, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("a requisition needs at least one item")
	}
	for _, item := range items {
		if item.Qty.Sign() <= 0 {
			return nil, &apperrors.InvalidQuantityError{Value: item.Qty.String()}
		}
		if _, ok := uom.Parse(item.UnitOfMeasure); !ok {
			return nil, fmt.Errorf("item %q has unrecognized unit %q", item.MaterialName, item.UnitOfMeasure)
		}
	}

	now := time.Now().UTC()
	code := facility.Code(facilityName)
	day := now.Format("20060102")
	seq, err := s.counters.Reserve(ctx, "MR-"+code+"-"+day, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve requisition sequence: %w", err)
	}

	req := &models.Requisition{
		ID:             fmt.Sprintf("MR/%s/%s/%03d", code, day, seq),
		Facility:       facility.Canonical(facilityName),
		Status:         models.RequisitionPendingBayAssignment,
		Items:          append([]models.RequisitionItem(nil), items...),
		TargetProducts: append([]models.TargetProduct(nil), targets...),
		CreatedAt:      now,
	}
	// Source bays only exist after the assignment step; whatever the
	// caller sent is not a valid assignment.
	for i := range req.Items {
		req.Items[i].SourceBayID = nil
	}

	s.mu.Lock()
	s.requisitions[req.ID] = req
	snapshot := req.Clone()
	s.persister.Persist(ctx, store.CollectionRequisitions, req.ID, snapshot)
	s.mu.Unlock()

	s.audit.Log(ctx, "create", snapshot, snapshot)
	return snapshot, nil
}

// Get returns a copy of one requisition.
func (s *Service) Get(id string) (*models.Requisition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requisitions[id]
	if !ok {
		return nil, fmt.Errorf("requisition %s not found", id)
	}
	return req.Clone(), nil
}

// All returns copies of every requisition, newest first.
func (s *Service) All() []*models.Requisition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Requisition, 0, len(s.requisitions))
	for _, req := range s.requisitions {
		out = append(out, req.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// AssignBays gives every item its source bay and advances the
// requisition to pending-dumping. Partial assignment is rejected
// before anything is written.
func (s *Service) AssignBays(ctx context.Context, id string, bayByItem map[int]string) (*models.Requisition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requisitions[id]
	if !ok {
		return nil, fmt.Errorf("requisition %s not found", id)
	}
	if req.Status != models.RequisitionPendingBayAssignment {
		return nil, &apperrors.InvalidTransitionError{
			Resource: "requisition " + id,
			From:     string(req.Status),
			Event:    "assign bays",
		}
	}

	var unassigned []string
	for i, item := range req.Items {
		if _, ok := bayByItem[i]; !ok {
			unassigned = append(unassigned, item.MaterialName)
		}
	}
	if len(unassigned) > 0 {
		return nil, &apperrors.IncompleteAssignmentError{RequisitionID: id, Unassigned: unassigned}
	}
	for i, item := range req.Items {
		bay, err := s.ledger.Get(bayByItem[i])
		if err != nil {
			return nil, err
		}
		if bay.Material == nil || !strings.EqualFold(*bay.Material, item.MaterialName) {
			have := ""
			if bay.Material != nil {
				have = *bay.Material
			}
			return nil, &apperrors.MaterialMismatchError{
				LocationID: bay.ID,
				Want:       item.MaterialName,
				Have:       have,
			}
		}
	}

	for i := range req.Items {
		bayID := bayByItem[i]
		req.Items[i].SourceBayID = &bayID
	}
	req.Status = models.RequisitionPendingDumping

	snapshot := req.Clone()
	s.persister.Persist(ctx, store.CollectionRequisitions, id, snapshot)
	s.audit.Log(ctx, "assign_bays", bayByItem, snapshot)
	return snapshot, nil
}

// RecordDump moves one item's quantity from its source bay into a
// staging bin. The first successful dump marks the requisition in
// progress.
func (s *Service) RecordDump(ctx context.Context, id string, itemIndex int, targetBinID string, qty decimal.Decimal, unit *uom.Unit) (*models.Requisition, error) {
	if qty.Sign() <= 0 {
		return nil, &apperrors.InvalidQuantityError{Value: qty.String()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requisitions[id]
	if !ok {
		return nil, fmt.Errorf("requisition %s not found", id)
	}
	if req.Status != models.RequisitionPendingDumping && req.Status != models.RequisitionInProgress {
		return nil, &apperrors.InvalidTransitionError{
			Resource: "requisition " + id,
			From:     string(req.Status),
			Event:    "dump",
		}
	}
	if itemIndex < 0 || itemIndex >= len(req.Items) {
		return nil, fmt.Errorf("requisition %s has no item %d", id, itemIndex)
	}
	item := req.Items[itemIndex]
	if item.SourceBayID == nil {
		return nil, &apperrors.IncompleteAssignmentError{RequisitionID: id, Unassigned: []string{item.MaterialName}}
	}

	dumpUnit, ok := uom.Parse(item.UnitOfMeasure)
	if !ok {
		dumpUnit = uom.KGS
	}
	if unit != nil {
		dumpUnit = *unit
	}

	// Resolve and check both sides before mutating either, so a bad
	// target cannot leave the source already decremented.
	if err := s.precheckDump(*item.SourceBayID, targetBinID, qty, dumpUnit); err != nil {
		return nil, err
	}

	if _, err := s.ledger.Mutate(ctx, ledger.MutationRequest{
		LocationID: *item.SourceBayID,
		Quantity:   qty,
		Operation:  ledger.OpRemove,
		Unit:       &dumpUnit,
	}); err != nil {
		return nil, fmt.Errorf("failed to remove dump quantity from bay %s: %w", *item.SourceBayID, err)
	}
	if _, err := s.ledger.Mutate(ctx, ledger.MutationRequest{
		LocationID: targetBinID,
		Quantity:   qty,
		Operation:  ledger.OpAdd,
		Material:   models.Set(item.MaterialName),
		Unit:       &dumpUnit,
	}); err != nil {
		return nil, fmt.Errorf("failed to add dump quantity to bin %s: %w", targetBinID, err)
	}

	if req.Status == models.RequisitionPendingDumping {
		req.Status = models.RequisitionInProgress
	}

	snapshot := req.Clone()
	s.persister.Persist(ctx, store.CollectionRequisitions, id, snapshot)
	s.audit.Log(ctx, "dump", map[string]any{
		"item": itemIndex, "bin": targetBinID, "qty": qty.String(), "uom": string(dumpUnit),
	}, snapshot)
	return snapshot, nil
}

func (s *Service) precheckDump(sourceBayID, targetBinID string, qty decimal.Decimal, unit uom.Unit) error {
	source, err := s.ledger.Get(sourceBayID)
	if err != nil {
		return err
	}
	target, err := s.ledger.Get(targetBinID)
	if err != nil {
		return err
	}
	for _, loc := range []*models.StorageLocation{source, target} {
		locUnit, ok := uom.Parse(loc.UnitOfMeasure)
		if !ok {
			continue
		}
		if _, err := uom.Convert(qty, unit, locUnit); err != nil {
			return err
		}
	}
	return nil
}

// Close consumes the staged bins, records the consumption and any
// produced lots, and seals the requisition. Validation of every bin
// happens before the first ledger call: either the whole closure
// applies or none of it does.
func (s *Service) Close(ctx context.Context, id string, consumptions []models.ConsumptionEntry, producedLots []string) (*models.Requisition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requisitions[id]
	if !ok {
		return nil, fmt.Errorf("requisition %s not found", id)
	}
	if req.Status != models.RequisitionInProgress {
		return nil, &apperrors.InvalidTransitionError{
			Resource: "requisition " + id,
			From:     string(req.Status),
			Event:    "close",
		}
	}
	if len(consumptions) == 0 {
		return nil, fmt.Errorf("closure of %s needs at least one consumed bin", id)
	}

	// Phase one: validate everything.
	for _, entry := range consumptions {
		if entry.QuantityConsumed.Sign() <= 0 {
			return nil, &apperrors.InvalidQuantityError{Value: entry.QuantityConsumed.String()}
		}
		if _, err := s.ledger.Get(entry.StorageLocationID); err != nil {
			return nil, err
		}
	}

	// Phase two: apply all ledger removals.
	for _, entry := range consumptions {
		if _, err := s.ledger.Mutate(ctx, ledger.MutationRequest{
			LocationID: entry.StorageLocationID,
			Quantity:   entry.QuantityConsumed,
			Operation:  ledger.OpRemove,
		}); err != nil {
			// Validated above; a failure here is a bug worth surfacing loudly.
			return nil, fmt.Errorf("closure of %s failed consuming bin %s: %w", id, entry.StorageLocationID, err)
		}
	}

	now := time.Now().UTC()
	req.Consumption = append([]models.ConsumptionEntry(nil), consumptions...)
	req.ProducedLots = append([]string(nil), producedLots...)
	req.ClosedAt = &now
	req.Status = models.RequisitionClosed

	snapshot := req.Clone()
	s.persister.Persist(ctx, store.CollectionRequisitions, id, snapshot)
	s.audit.Log(ctx, "close", consumptions, snapshot)
	return snapshot, nil
}
