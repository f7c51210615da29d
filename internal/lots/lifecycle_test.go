package lots

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "feedmill/pkg/errors"
	"feedmill/pkg/models"
	"feedmill/pkg/uom"
)

func generateOne(t *testing.T, s *Service) string {
	t.Helper()
	date := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	numbers, err := s.Generate(context.Background(), "Kovvur Plant-1", date, 1)
	require.NoError(t, err)
	return numbers[0]
}

func TestRecordProductionDetailsForcesPendingQA(t *testing.T) {
	s, _, _ := newTestService(t)
	lotNumber := generateOne(t, s)

	details := ProductionDetails{
		FGName:        "PROFEED STARTER",
		Grade:         "PROFEED STARTER",
		Shift:         "A",
		ProducedQty:   decimal.RequireFromString("12.5"),
		UnitOfMeasure: string(uom.MT),
	}
	lot, err := s.RecordProductionDetails(context.Background(), lotNumber, details)
	require.NoError(t, err)
	assert.Equal(t, models.LotPendingQA, lot.Status)
	assert.Equal(t, "PROFEED STARTER", lot.FGName)

	// Re-entry is allowed and lands back in pending QA.
	_, err = s.RecordQAOutcome(context.Background(), lotNumber, true)
	require.NoError(t, err)
	details.Shift = "B"
	lot, err = s.RecordProductionDetails(context.Background(), lotNumber, details)
	require.NoError(t, err)
	assert.Equal(t, models.LotPendingQA, lot.Status)
	assert.Equal(t, "B", lot.Shift)
}

func TestRecordQAOutcome(t *testing.T) {
	s, _, _ := newTestService(t)
	lotNumber := generateOne(t, s)

	// QA before production entry is out of order.
	_, err := s.RecordQAOutcome(context.Background(), lotNumber, true)
	var invalid *apperrors.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)

	_, err = s.RecordProductionDetails(context.Background(), lotNumber, ProductionDetails{
		FGName: "TITAN NO.1", ProducedQty: decimal.NewFromInt(10), UnitOfMeasure: string(uom.MT),
	})
	require.NoError(t, err)

	lot, err := s.RecordQAOutcome(context.Background(), lotNumber, false)
	require.NoError(t, err)
	assert.Equal(t, models.LotRejected, lot.Status)
}

func TestPlaceInBay(t *testing.T) {
	s, _, led := newTestService(t)
	_, err := led.Register(context.Background(), models.StorageLocation{
		ID: "FG-01", Kind: models.KindBay, Facility: "Kovvur Plant-1",
		Occupancy: models.OccupancyEmpty, UnitOfMeasure: string(uom.KGS),
	})
	require.NoError(t, err)

	lotNumber := generateOne(t, s)
	_, err = s.RecordProductionDetails(context.Background(), lotNumber, ProductionDetails{
		FGName:        "TITAN NO.1",
		Grade:         "TITAN NO.1 - 25 KG",
		Shift:         "A",
		ProducedQty:   decimal.RequireFromString("2.5"),
		UnitOfMeasure: string(uom.MT),
	})
	require.NoError(t, err)

	// Placement before approval is rejected.
	_, err = s.PlaceInBay(context.Background(), lotNumber, "FG-01")
	var invalid *apperrors.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)

	_, err = s.RecordQAOutcome(context.Background(), lotNumber, true)
	require.NoError(t, err)

	lot, err := s.PlaceInBay(context.Background(), lotNumber, "FG-01")
	require.NoError(t, err)
	require.NotNil(t, lot.FGBay)
	assert.Equal(t, "FG-01", *lot.FGBay)
	assert.Equal(t, models.LotApproved, lot.Status) // placement does not change status

	bay, err := led.Get("FG-01")
	require.NoError(t, err)
	assert.Equal(t, models.OccupancyOccupied, bay.Occupancy)
	assert.True(t, bay.Quantity.Equal(decimal.NewFromInt(2500)), "got %s", bay.Quantity)
	require.Len(t, bay.OccupyingLots, 1)
	assert.Equal(t, lotNumber, bay.OccupyingLots[0].LotNumber)
}

func TestPlaceInBayUnknownBay(t *testing.T) {
	s, _, _ := newTestService(t)
	lotNumber := generateOne(t, s)
	_, err := s.RecordProductionDetails(context.Background(), lotNumber, ProductionDetails{
		FGName: "TITAN NO.1", ProducedQty: decimal.NewFromInt(1), UnitOfMeasure: string(uom.MT),
	})
	require.NoError(t, err)
	_, err = s.RecordQAOutcome(context.Background(), lotNumber, true)
	require.NoError(t, err)

	_, err = s.PlaceInBay(context.Background(), lotNumber, "NO-SUCH-BAY")
	var unknown *apperrors.UnknownLocationError
	assert.ErrorAs(t, err, &unknown)
}
