package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvis-group/procure-cli/internal/config"
	"github.com/pvis-group/procure-cli/internal/model"
)

func testConfig() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		BaseCurrency:       "USD",
		WeightLeadTime:     0.30,
		WeightDefect:       0.35,
		WeightOTD:          0.25,
		WeightFX:           0.10,
		DefaultHorizonDays: 90,
		DefaultPathCount:   10000,
		MinHorizonDays:     30,
		MaxHorizonDays:     1095,
		MinPathCount:       1000,
		MaxPathCount:       50000,
	}
}

func TestMinMax(t *testing.T) {
	out := MinMax([]float64{2, 4, 6})
	assert.InDelta(t, 0.0, out[0], 1e-9)
	assert.InDelta(t, 0.5, out[1], 1e-9)
	assert.InDelta(t, 1.0, out[2], 1e-9)

	for _, v := range out {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestMinMaxDegenerate(t *testing.T) {
	// All entities identical on the metric: every value is exactly 0,
	// never a division by zero.
	out := MinMax([]float64{3, 3, 3})
	for _, v := range out {
		assert.Zero(t, v)
	}

	assert.Equal(t, []float64{0}, MinMax([]float64{42}))
	assert.Empty(t, MinMax(nil))
}

func TestNewScorerRejectsInvalidWeights(t *testing.T) {
	cfg := testConfig()
	cfg.WeightDefect = 0.9
	_, err := NewScorer(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func supplierFixture() *model.FactSet {
	mk := func(supplier int64, ordered time.Time, days int, price float64, currency string) model.PurchaseOrderLine {
		delivered := ordered.AddDate(0, 0, days)
		return model.PurchaseOrderLine{
			SupplierID:   supplier,
			MaterialID:   1,
			OrderDate:    ordered,
			DeliveryDate: &delivered,
			Quantity:     10,
			UnitPrice:    price,
			Currency:     currency,
		}
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	facts := &model.FactSet{
		Suppliers: []model.Supplier{
			{ID: 1, Name: "Alpha", LeadTimeDays: 10},
			{ID: 2, Name: "Bravo", LeadTimeDays: 10},
			{ID: 3, Name: "Charlie", LeadTimeDays: 10},
		},
		Materials: []model.Material{{ID: 1, StandardCost: 10}},
		FXRates: []model.FXRateObservation{
			{Currency: "EUR", Date: base, RateToBase: 0.9},
		},
	}

	// Alpha: 10 orders, all delivered exactly on day 10, at standard cost,
	// all in the base currency, zero defects.
	for i := 0; i < 10; i++ {
		facts.Orders = append(facts.Orders, mk(1, base.AddDate(0, 0, i*7), 10, 10, "USD"))
	}
	// Bravo: slow and late, priced above standard, partly in EUR.
	for i := 0; i < 10; i++ {
		facts.Orders = append(facts.Orders, mk(2, base.AddDate(0, 0, i*7), 18, 13, "EUR"))
	}
	// Charlie: middling.
	for i := 0; i < 10; i++ {
		facts.Orders = append(facts.Orders, mk(3, base.AddDate(0, 0, i*7), 12, 11, "USD"))
	}
	facts.Incidents = []model.QualityIncident{
		{SupplierID: 2, IncidentDate: base, DefectRate: 0.08},
		{SupplierID: 3, IncidentDate: base, DefectRate: 0.02},
	}
	return facts
}

func TestScoreSuppliersEndToEnd(t *testing.T) {
	s, err := NewScorer(testConfig())
	require.NoError(t, err)

	scores, err := s.ScoreSuppliers(supplierFixture())
	require.NoError(t, err)
	require.Len(t, scores, 3)

	byName := make(map[string]model.CompositeRiskScore, 3)
	for _, sc := range scores {
		byName[sc.SupplierName] = sc
		assert.GreaterOrEqual(t, sc.Score, 0.0)
		assert.LessOrEqual(t, sc.Score, 100.0)
		assert.NotEmpty(t, sc.RunID)
	}

	// Alpha sits at the population minimum on lead time, defects and FX
	// exposure, and at the maximum on OTD: lowest composite risk.
	assert.Zero(t, byName["Alpha"].Components["lead_time"])
	assert.Zero(t, byName["Alpha"].Components["defect_rate"])
	assert.Zero(t, byName["Alpha"].Components["fx_exposure"])
	assert.Less(t, byName["Alpha"].Score, byName["Charlie"].Score)
	assert.Less(t, byName["Charlie"].Score, byName["Bravo"].Score)

	// Results are sorted descending by score.
	assert.Equal(t, "Bravo", scores[0].SupplierName)
	assert.Equal(t, "Alpha", scores[2].SupplierName)
}

func TestDirectionality(t *testing.T) {
	// Higher on-time delivery must mean lower risk. A supplier that is
	// perfect on OTD and identical elsewhere must score strictly below a
	// supplier that is always late.
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(supplier int64, days int) model.PurchaseOrderLine {
		delivered := base.AddDate(0, 0, days)
		return model.PurchaseOrderLine{
			SupplierID: supplier, MaterialID: 1, OrderDate: base,
			DeliveryDate: &delivered, Quantity: 1, UnitPrice: 10, Currency: "USD",
		}
	}
	facts := &model.FactSet{
		Suppliers: []model.Supplier{
			{ID: 1, Name: "OnTime", LeadTimeDays: 10},
			{ID: 2, Name: "Late", LeadTimeDays: 10},
		},
		Materials: []model.Material{{ID: 1, StandardCost: 10}},
		Orders: []model.PurchaseOrderLine{
			mk(1, 10), mk(1, 10),
			mk(2, 10), mk(2, 20), // same mean spread around, one late
		},
	}

	s, err := NewScorer(testConfig())
	require.NoError(t, err)
	scores, err := s.ScoreSuppliers(facts)
	require.NoError(t, err)
	require.Len(t, scores, 2)

	byName := map[string]float64{}
	for _, sc := range scores {
		byName[sc.SupplierName] = sc.Score
	}
	assert.Less(t, byName["OnTime"], byName["Late"])
}

func TestScoreSuppliersEmptyPopulation(t *testing.T) {
	s, err := NewScorer(testConfig())
	require.NoError(t, err)

	scores, err := s.ScoreSuppliers(&model.FactSet{})
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestLowConfidenceCarriedThrough(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	delivered := base.AddDate(0, 0, 5)
	facts := &model.FactSet{
		Suppliers: []model.Supplier{
			{ID: 1, Name: "Thin", LeadTimeDays: 10},
			{ID: 2, Name: "Thick", LeadTimeDays: 10},
		},
		Orders: []model.PurchaseOrderLine{
			{SupplierID: 1, MaterialID: 1, OrderDate: base, DeliveryDate: &delivered, Quantity: 1, UnitPrice: 1, Currency: "USD"},
			{SupplierID: 2, MaterialID: 1, OrderDate: base, DeliveryDate: &delivered, Quantity: 1, UnitPrice: 1, Currency: "USD"},
			{SupplierID: 2, MaterialID: 1, OrderDate: base.AddDate(0, 0, 1), DeliveryDate: &delivered, Quantity: 1, UnitPrice: 1, Currency: "USD"},
		},
	}

	s, err := NewScorer(testConfig())
	require.NoError(t, err)
	scores, err := s.ScoreSuppliers(facts)
	require.NoError(t, err)
	require.Len(t, scores, 2)

	// The thin-history supplier is still scored against the full
	// population, just flagged.
	for _, sc := range scores {
		if sc.SupplierName == "Thin" {
			assert.True(t, sc.LowConfidence)
		} else {
			assert.False(t, sc.LowConfidence)
		}
	}
}
