package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequisitionStatus string

const (
	RequisitionPendingBayAssignment RequisitionStatus = "pending_bay_assignment"
	RequisitionPendingDumping       RequisitionStatus = "pending_dumping"
	RequisitionInProgress           RequisitionStatus = "in_progress"
	RequisitionClosed               RequisitionStatus = "closed"
)

type RequisitionItem struct {
	MaterialName  string          `json:"material_name"`
	Qty           decimal.Decimal `json:"qty"`
	UnitOfMeasure string          `json:"uom"`
	SourceBayID   *string         `json:"source_bay_id,omitempty"`
}

type TargetProduct struct {
	FinishedGoodName string          `json:"finished_good_name"`
	PlannedQty       decimal.Decimal `json:"planned_qty"`
}

type ConsumptionEntry struct {
	StorageLocationID string          `json:"storage_location_id"`
	QuantityConsumed  decimal.Decimal `json:"quantity_consumed"`
}

// Requisition is a request to move raw material from bays into
// production staging bins. Status only moves forward.
type Requisition struct {
	ID             string             `json:"id" db:"id"`
	Facility       string             `json:"facility" db:"facility"`
	Status         RequisitionStatus  `json:"status" db:"status"`
	Items          []RequisitionItem  `json:"items" db:"items"`
	TargetProducts []TargetProduct    `json:"target_products" db:"target_products"`
	ProducedLots   []string           `json:"produced_lots,omitempty" db:"produced_lots"`
	Consumption    []ConsumptionEntry `json:"consumption,omitempty" db:"consumption"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	ClosedAt       *time.Time         `json:"closed_at,omitempty" db:"closed_at"`
}

func (r *Requisition) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   r.ID,
		ResourceType: "requisition",
	}
}

func (r *Requisition) Clone() *Requisition {
	cp := *r
	cp.Items = append([]RequisitionItem(nil), r.Items...)
	for i := range cp.Items {
		if src := r.Items[i].SourceBayID; src != nil {
			s := *src
			cp.Items[i].SourceBayID = &s
		}
	}
	cp.TargetProducts = append([]TargetProduct(nil), r.TargetProducts...)
	cp.ProducedLots = append([]string(nil), r.ProducedLots...)
	cp.Consumption = append([]ConsumptionEntry(nil), r.Consumption...)
	if r.ClosedAt != nil {
		t := *r.ClosedAt
		cp.ClosedAt = &t
	}
	return &cp
}
