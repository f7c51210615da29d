package lots

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"feedmill/internal/ledger"
	"feedmill/internal/store"
	apperrors "feedmill/pkg/errors"
	"feedmill/pkg/models"
	"feedmill/pkg/uom"
)

// ProductionDetails is what the production-entry step records against
// a generated lot.
type ProductionDetails struct {
	FGName              string          `json:"fg_name"`
	Grade               string          `json:"grade"`
	Shift               string          `json:"shift"`
	ProducedQty         decimal.Decimal `json:"produced_qty"`
	UnitOfMeasure       string          `json:"uom"`
	SourceRequisitionID string          `json:"source_requisition_id"`
}

// Get returns a copy of one lot.
func (s *Service) Get(lotNumber string) (*models.ProductionLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, ok := s.lots[lotNumber]
	if !ok {
		return nil, fmt.Errorf("lot %s not found", lotNumber)
	}
	cp := *lot
	return &cp, nil
}

// All returns copies of every lot, ordered by lot number.
func (s *Service) All() []*models.ProductionLot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ProductionLot, 0, len(s.lots))
	for _, lot := range s.lots {
		cp := *lot
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LotNumber < out[j].LotNumber })
	return out
}

// RecordProductionDetails fills in what was produced under a lot
// number and moves the lot to pending QA. Re-entry is allowed: the
// details are overwritten and the status forced back to pending QA
// regardless of where it was.
func (s *Service) RecordProductionDetails(ctx context.Context, lotNumber string, details ProductionDetails) (*models.ProductionLot, error) {
	if details.ProducedQty.IsNegative() {
		return nil, &apperrors.InvalidQuantityError{Value: details.ProducedQty.String()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lot, ok := s.lots[lotNumber]
	if !ok {
		return nil, fmt.Errorf("lot %s not found", lotNumber)
	}

	lot.FGName = details.FGName
	lot.Grade = details.Grade
	lot.Shift = details.Shift
	lot.ProducedQty = uom.Round3(details.ProducedQty)
	lot.UnitOfMeasure = details.UnitOfMeasure
	lot.SourceRequisitionID = details.SourceRequisitionID
	lot.Status = models.LotPendingQA
	lot.UpdatedAt = time.Now().UTC()

	cp := *lot
	s.persister.Persist(ctx, store.CollectionLots, lotNumber, &cp)
	s.audit.Log(ctx, "production_details", details, &cp)
	return &cp, nil
}

// RecordQAOutcome sets the terminal QA status for a lot pending QA.
func (s *Service) RecordQAOutcome(ctx context.Context, lotNumber string, approved bool) (*models.ProductionLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lot, ok := s.lots[lotNumber]
	if !ok {
		return nil, fmt.Errorf("lot %s not found", lotNumber)
	}
	if lot.Status != models.LotPendingQA {
		return nil, &apperrors.InvalidTransitionError{
			Resource: "lot " + lotNumber,
			From:     string(lot.Status),
			Event:    "qa outcome",
		}
	}

	if approved {
		lot.Status = models.LotApproved
	} else {
		lot.Status = models.LotRejected
	}
	lot.UpdatedAt = time.Now().UTC()

	cp := *lot
	s.persister.Persist(ctx, store.CollectionLots, lotNumber, &cp)
	s.audit.Log(ctx, "qa_outcome", map[string]bool{"approved": approved}, &cp)
	return &cp, nil
}

// PlaceInBay records the physical placement of an approved lot into a
// finished-goods bay. This is the single point where the lot lifecycle
// touches the stock ledger: one ADD of the produced quantity.
func (s *Service) PlaceInBay(ctx context.Context, lotNumber, bayID string) (*models.ProductionLot, error) {
	s.mu.Lock()
	lot, ok := s.lots[lotNumber]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("lot %s not found", lotNumber)
	}
	if lot.Status != models.LotApproved {
		status := lot.Status
		s.mu.Unlock()
		return nil, &apperrors.InvalidTransitionError{
			Resource: "lot " + lotNumber,
			From:     string(status),
			Event:    "place in bay",
		}
	}
	placement := *lot
	s.mu.Unlock()

	unit, ok := uom.Parse(placement.UnitOfMeasure)
	var unitPtr *uom.Unit
	if ok {
		unitPtr = &unit
	}

	if _, err := s.ledger.Mutate(ctx, ledger.MutationRequest{
		LocationID: bayID,
		Quantity:   placement.ProducedQty,
		Operation:  ledger.OpAdd,
		Material:   models.Set(placement.FGName),
		Grade:      models.Set(placement.Grade),
		Unit:       unitPtr,
		Lot: &models.LotRef{
			LotNumber: placement.LotNumber,
			Material:  placement.FGName,
			Grade:     placement.Grade,
			Shift:     placement.Shift,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to place lot %s into bay %s: %w", lotNumber, bayID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lot.FGBay = &bayID
	lot.UpdatedAt = time.Now().UTC()
	cp := *lot
	s.persister.Persist(ctx, store.CollectionLots, lotNumber, &cp)
	s.audit.Log(ctx, "place_in_bay", map[string]string{"bay": bayID}, &cp)
	return &cp, nil
}
