package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedmill/pkg/models"
	"feedmill/pkg/uom"
)

func TestRepairUnits(t *testing.T) {
	l, _ := newTestLedger(t)

	// A bay holding "12000 MT" of fish meal can only be kilograms.
	registerBay(t, l, "RM-01", "FISH MEAL", "12000", uom.MT)
	// A plausible tonnage is left alone.
	registerBay(t, l, "RM-02", "SOYA DOC", "40", uom.MT)
	// Bins are never touched by this pass.
	m := "WHEAT FLOUR"
	_, err := l.Register(context.Background(), models.StorageLocation{
		ID: "BIN-01", Kind: models.KindBin, Facility: "Kovvur Plant-1",
		Occupancy: models.OccupancyOccupied, Material: &m,
		Quantity: decimal.NewFromInt(9000), UnitOfMeasure: string(uom.MT),
	})
	require.NoError(t, err)

	repaired := l.RepairUnits(context.Background())
	assert.Equal(t, 1, repaired)

	fixed, err := l.Get("RM-01")
	require.NoError(t, err)
	assert.Equal(t, string(uom.KGS), fixed.UnitOfMeasure)
	assert.True(t, fixed.Quantity.Equal(decimal.NewFromInt(12000)))

	untouched, err := l.Get("RM-02")
	require.NoError(t, err)
	assert.Equal(t, string(uom.MT), untouched.UnitOfMeasure)

	// Second run finds nothing left to fix.
	assert.Equal(t, 0, l.RepairUnits(context.Background()))
}
