package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LotStatus string

const (
	LotUnassigned LotStatus = "unassigned"
	LotPendingQA  LotStatus = "pending_qa"
	LotApproved   LotStatus = "approved"
	LotRejected   LotStatus = "rejected"
)

// ProductionLot is one traceable batch of finished goods. The lot
// number doubles as the primary identifier.
type ProductionLot struct {
	LotNumber           string          `json:"lot_number" db:"lot_number"`
	Status              LotStatus       `json:"status" db:"status"`
	FGName              string          `json:"fg_name,omitempty" db:"fg_name"`
	Grade               string          `json:"grade,omitempty" db:"grade"`
	Shift               string          `json:"shift,omitempty" db:"shift"`
	Facility            string          `json:"facility" db:"facility"`
	ProducedQty         decimal.Decimal `json:"produced_qty" db:"produced_qty"`
	UnitOfMeasure       string          `json:"uom,omitempty" db:"uom"`
	SourceRequisitionID string          `json:"source_requisition_id,omitempty" db:"source_requisition_id"`
	FGBay               *string         `json:"fg_bay,omitempty" db:"fg_bay"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

func (l *ProductionLot) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   l.LotNumber,
		ResourceType: "production_lot",
	}
}

// SequenceCounter maps a fiscal-year/facility scope key to the next
// sequence number to issue.
type SequenceCounter struct {
	ScopeKey string `json:"scope_key" db:"scope_key"`
	Next     int64  `json:"next" db:"next"`
}
