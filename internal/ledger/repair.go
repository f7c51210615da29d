package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"feedmill/internal/store"
	"feedmill/pkg/models"
	"feedmill/pkg/uom"
)

// Quantities at or above this magnitude are not plausible in metric
// tons for a raw-material bay; they were entered in kilograms and
// mislabelled.
var mtImplausibleAbove = decimal.NewFromInt(5000)

// RepairUnits is the startup pass that corrects locations whose unit
// tag contradicts their quantity magnitude. It runs once at
// initialization, is idempotent, and reports every correction it
// makes. Never call it from a mutation path.
func (l *Ledger) RepairUnits(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	repaired := 0
	for _, loc := range l.locations {
		if loc.Kind != models.KindBay {
			continue
		}
		unit, ok := uom.Parse(loc.UnitOfMeasure)
		if !ok || unit != uom.MT {
			continue
		}
		if loc.Quantity.LessThan(mtImplausibleAbove) {
			continue
		}

		l.log.Warn("repairing implausible unit of measure",
			zap.String("location", loc.ID),
			zap.String("quantity", loc.Quantity.String()),
			zap.String("from", string(uom.MT)),
			zap.String("to", string(uom.KGS)))

		loc.UnitOfMeasure = string(uom.KGS)
		snapshot := loc.Clone()
		l.persister.Persist(ctx, store.CollectionLocations, loc.ID, snapshot)
		l.audit.Log(ctx, "repair_uom", map[string]string{
			"from": string(uom.MT), "to": string(uom.KGS),
		}, snapshot)
		repaired++
	}
	return repaired
}
