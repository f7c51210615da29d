// Package ledgertest holds test-only helpers for the stock ledger.
// Nothing here is part of the production contract.
package ledgertest

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"feedmill/internal/ledger"
	"feedmill/pkg/models"
	"feedmill/pkg/uom"
)

// SeedStock force-occupies a fixed set of bays and bins so workflow
// tests have somewhere to move stock from and to.
func SeedStock(ctx context.Context, l *ledger.Ledger) error {
	fishMeal := "FISH MEAL"
	soya := "SOYA DOC"

	seed := []models.StorageLocation{
		{
			ID: "RM-01", Kind: models.KindBay, Facility: "Kovvur Plant-1",
			Occupancy: models.OccupancyOccupied, Material: &fishMeal,
			Quantity: decimal.NewFromInt(2000), UnitOfMeasure: string(uom.KGS),
		},
		{
			ID: "RM-02", Kind: models.KindBay, Facility: "Kovvur Plant-1",
			Occupancy: models.OccupancyOccupied, Material: &soya,
			Quantity: decimal.NewFromInt(5), UnitOfMeasure: string(uom.MT),
		},
		{
			ID: "FG-01", Kind: models.KindBay, Facility: "Kovvur Plant-1",
			Occupancy: models.OccupancyEmpty, UnitOfMeasure: string(uom.KGS),
		},
		{
			ID: "BIN-07", Kind: models.KindBin, Facility: "Kovvur Plant-1",
			Occupancy: models.OccupancyEmpty, UnitOfMeasure: string(uom.KGS),
		},
		{
			ID: "BIN-08", Kind: models.KindBin, Facility: "Kovvur Plant-1",
			Occupancy: models.OccupancyEmpty, UnitOfMeasure: string(uom.KGS),
		},
	}

	for _, loc := range seed {
		if _, err := l.Register(ctx, loc); err != nil {
			return fmt.Errorf("failed to seed %s: %w", loc.ID, err)
		}
	}
	return nil
}
