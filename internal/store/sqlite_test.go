package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvis-group/procure-cli/internal/config"
	"github.com/pvis-group/procure-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewSQLite_InvalidDSN(t *testing.T) {
	_, err := NewSQLite("/nonexistent/dir/subdir/warehouse.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}

func TestSQLite_FactRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	n, err := s.UpsertSuppliers(ctx, []model.Supplier{
		{ID: 1, Name: "Acme Metals", Country: "DE", DefaultCurrency: "EUR", LeadTimeDays: 14},
		{ID: 2, Name: "Pacific Polymers", Country: "JP", DefaultCurrency: "JPY", LeadTimeDays: 21},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.UpsertMaterials(ctx, []model.Material{
		{ID: 10, Name: "Steel Coil", Category: "Raw", StandardCost: 500},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	delivered := date(2025, 3, 18)
	n, err = s.InsertOrderLines(ctx, []model.PurchaseOrderLine{
		{SupplierID: 1, MaterialID: 10, OrderDate: date(2025, 3, 3), DeliveryDate: &delivered, Quantity: 40, UnitPrice: 510, Currency: "EUR"},
		{SupplierID: 2, MaterialID: 10, OrderDate: date(2025, 3, 10), Quantity: 15, UnitPrice: 495, Currency: "JPY"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.InsertIncidents(ctx, []model.QualityIncident{
		{SupplierID: 1, MaterialID: 10, IncidentDate: date(2025, 3, 20), DefectRate: 0.02},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.InsertFXRates(ctx, []model.FXRateObservation{
		{Currency: "EUR", Date: date(2025, 3, 1), RateToBase: 0.92},
		{Currency: "EUR", Date: date(2025, 3, 2), RateToBase: 0.93},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	facts, err := s.LoadFacts(ctx)
	require.NoError(t, err)
	require.Len(t, facts.Suppliers, 2)
	require.Len(t, facts.Materials, 1)
	require.Len(t, facts.Orders, 2)
	require.Len(t, facts.Incidents, 1)
	require.Len(t, facts.FXRates, 2)

	assert.Equal(t, "Acme Metals", facts.Suppliers[0].Name)
	assert.Equal(t, 14, facts.Suppliers[0].LeadTimeDays)

	// First order line was delivered; realized lead time survives the trip.
	require.True(t, facts.Orders[0].Delivered())
	assert.InDelta(t, 15, facts.Orders[0].LeadTimeDays(), 1e-9)
	assert.False(t, facts.Orders[1].Delivered())

	assert.InDelta(t, 0.02, facts.Incidents[0].DefectRate, 1e-12)
}

func TestSQLite_UpsertSupplierOverwrites(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.UpsertSuppliers(ctx, []model.Supplier{
		{ID: 1, Name: "Acme", LeadTimeDays: 14, DefaultCurrency: "USD"},
	})
	require.NoError(t, err)

	_, err = s.UpsertSuppliers(ctx, []model.Supplier{
		{ID: 1, Name: "Acme Metals GmbH", Country: "DE", LeadTimeDays: 10, DefaultCurrency: "EUR"},
	})
	require.NoError(t, err)

	facts, err := s.LoadFacts(ctx)
	require.NoError(t, err)
	require.Len(t, facts.Suppliers, 1)
	assert.Equal(t, "Acme Metals GmbH", facts.Suppliers[0].Name)
	assert.Equal(t, 10, facts.Suppliers[0].LeadTimeDays)
}

func TestSQLite_FXRateReingestOverwrites(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.InsertFXRates(ctx, []model.FXRateObservation{
		{Currency: "EUR", Date: date(2025, 3, 1), RateToBase: 0.92},
	})
	require.NoError(t, err)

	// Same trading day again with a corrected quote.
	_, err = s.InsertFXRates(ctx, []model.FXRateObservation{
		{Currency: "EUR", Date: date(2025, 3, 1), RateToBase: 0.925},
	})
	require.NoError(t, err)

	series, err := s.RateHistory(ctx, "EUR")
	require.NoError(t, err)
	require.Len(t, series.Points, 1)
	assert.InDelta(t, 0.925, series.Points[0].Rate, 1e-12)
}

func TestSQLite_RateHistorySortedAndScoped(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.InsertFXRates(ctx, []model.FXRateObservation{
		{Currency: "EUR", Date: date(2025, 3, 3), RateToBase: 0.94},
		{Currency: "EUR", Date: date(2025, 3, 1), RateToBase: 0.92},
		{Currency: "JPY", Date: date(2025, 3, 1), RateToBase: 149.2},
	})
	require.NoError(t, err)

	series, err := s.RateHistory(ctx, "EUR")
	require.NoError(t, err)
	require.Len(t, series.Points, 2)
	assert.True(t, series.Points[0].Date.Before(series.Points[1].Date))
	assert.InDelta(t, 0.94, series.Latest(), 1e-12)

	currencies, err := s.Currencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR", "JPY"}, currencies)
}

func TestSQLite_ScoresRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	oldRun := uuid.New().String()
	require.NoError(t, s.SaveScores(ctx, []model.CompositeRiskScore{
		{RunID: oldRun, SupplierID: 1, SupplierName: "Acme", Score: 12.5,
			Components: map[string]float64{"lead_time": 0.1}, ComputedAt: date(2025, 3, 1)},
	}))

	newRun := uuid.New().String()
	require.NoError(t, s.SaveScores(ctx, []model.CompositeRiskScore{
		{RunID: newRun, SupplierID: 1, SupplierName: "Acme", Score: 40,
			Components:    map[string]float64{"lead_time": 0.5, "defect_rate": 0.2},
			LowConfidence: true, ComputedAt: date(2025, 4, 1)},
		{RunID: newRun, SupplierID: 2, SupplierName: "Pacific", Score: 88.25,
			Components: map[string]float64{"lead_time": 1.0, "defect_rate": 0.9},
			ComputedAt: date(2025, 4, 1)},
	}))

	scores, err := s.LatestScores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 2)

	// Only the newest run comes back, highest risk first.
	assert.Equal(t, newRun, scores[0].RunID)
	assert.Equal(t, int64(2), scores[0].SupplierID)
	assert.InDelta(t, 88.25, scores[0].Score, 1e-9)
	assert.True(t, scores[1].LowConfidence)
	assert.InDelta(t, 0.5, scores[1].Components["lead_time"], 1e-12)
}

func TestSQLite_SimulationRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	seed := uint64(42)
	require.NoError(t, s.SaveSimulation(ctx, &model.SimulationResult{
		ID: uuid.New().String(), Currency: "EUR", AsOfDate: date(2025, 3, 31),
		HorizonDays: 90, PathCount: 10000,
		Seed: &seed, CurrentRate: 0.93, P5: 0.88, Median: 0.94, P95: 1.01,
		Drift: 0.0002, Volatility: 0.006, CreatedAt: date(2025, 4, 1),
	}))
	require.NoError(t, s.SaveSimulation(ctx, &model.SimulationResult{
		ID: uuid.New().String(), Currency: "JPY", AsOfDate: date(2025, 4, 1),
		HorizonDays: 30, PathCount: 5000,
		CurrentRate: 149.2, P5: 142, Median: 150, P95: 158,
		Drift: -0.0001, Volatility: 0.009, CreatedAt: date(2025, 4, 2),
	}))

	all, err := s.ListSimulations(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first.
	assert.Equal(t, "JPY", all[0].Currency)
	assert.Nil(t, all[0].Seed)

	eur, err := s.ListSimulations(ctx, "EUR", 10)
	require.NoError(t, err)
	require.Len(t, eur, 1)
	require.NotNil(t, eur[0].Seed)
	assert.Equal(t, uint64(42), *eur[0].Seed)
	assert.InDelta(t, 0.88, eur[0].P5, 1e-12)
	// The as-of date of the underlying series survives the trip; a zero
	// value here would render as year 1 in reports.
	assert.Equal(t, date(2025, 3, 31), eur[0].AsOfDate)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpen_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open.db")
	s, err := Open(context.Background(), config.StoreConfig{Driver: "sqlite", DatabaseURL: path})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
