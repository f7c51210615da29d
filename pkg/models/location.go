package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LocationKind string

const (
	KindBay LocationKind = "bay"
	KindBin LocationKind = "bin"
)

type Occupancy string

const (
	OccupancyEmpty       Occupancy = "EMPTY"
	OccupancyOccupied    Occupancy = "OCCUPIED"
	OccupancyMaintenance Occupancy = "MAINTENANCE"
)

// LotRef is a weak reference to a production lot held at a location.
// Bays aggregate several, bins hold at most one.
type LotRef struct {
	LotNumber string `json:"lot_number"`
	Material  string `json:"material"`
	Grade     string `json:"grade,omitempty"`
	Shift     string `json:"shift,omitempty"`
}

type StorageLocation struct {
	ID            string          `json:"id" db:"id"`
	Kind          LocationKind    `json:"kind" db:"kind"`
	Facility      string          `json:"facility" db:"facility"`
	Occupancy     Occupancy       `json:"occupancy" db:"occupancy"`
	Material      *string         `json:"material" db:"material"`
	Grade         *string         `json:"grade" db:"grade"`
	Quantity      decimal.Decimal `json:"quantity" db:"quantity"`
	UnitOfMeasure string          `json:"uom" db:"uom"`
	OccupyingLots []LotRef        `json:"occupying_lots" db:"occupying_lots"`
	LastUpdated   time.Time       `json:"last_updated" db:"last_updated"`
}

func (l *StorageLocation) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   l.ID,
		ResourceType: "storage_location",
	}
}

// Clone returns a deep copy so callers can hold a snapshot without
// aliasing the ledger's record.
func (l *StorageLocation) Clone() *StorageLocation {
	cp := *l
	if l.Material != nil {
		m := *l.Material
		cp.Material = &m
	}
	if l.Grade != nil {
		g := *l.Grade
		cp.Grade = &g
	}
	cp.OccupyingLots = append([]LotRef(nil), l.OccupyingLots...)
	return &cp
}
