// Package metrics derives per-supplier statistics and per-currency rate
// series from raw warehouse facts. All functions work on fully materialized
// in-memory inputs and perform no I/O.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/pvis-group/procure-cli/internal/model"
)

// Extractor turns fact tables into one statistics tuple per supplier.
type Extractor struct {
	baseCurrency string
}

// NewExtractor creates an extractor. Non-base spend is measured against the
// given base currency.
func NewExtractor(baseCurrency string) *Extractor {
	return &Extractor{baseCurrency: baseCurrency}
}

// Extract computes one SupplierMetricSnapshot per supplier with at least one
// order, sorted by supplier ID. Suppliers with fewer than 2 completed orders
// report a zero lead-time stddev and are flagged low-confidence instead of
// being dropped from the comparative population. Order lines whose supplier
// is missing from the fact set are skipped with a warning.
func (e *Extractor) Extract(facts *model.FactSet) []model.SupplierMetricSnapshot {
	materials := facts.MaterialByID()
	suppliers := facts.SupplierByID()
	rates, err := BuildRateSeries(facts.FXRates)
	if err != nil {
		// Duplicate observations are an ingest defect; the extractor can
		// still proceed on the deduplicated series it got back.
		zap.L().Warn("metrics: fx series has duplicates, using first observation per day",
			zap.Error(err))
	}

	bySupplier := make(map[int64][]model.PurchaseOrderLine)
	for _, line := range facts.Orders {
		bySupplier[line.SupplierID] = append(bySupplier[line.SupplierID], line)
	}

	incidents := make(map[int64][]float64)
	for _, qi := range facts.Incidents {
		incidents[qi.SupplierID] = append(incidents[qi.SupplierID], qi.DefectRate)
	}

	ids := make([]int64, 0, len(bySupplier))
	for id := range bySupplier {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	snapshots := make([]model.SupplierMetricSnapshot, 0, len(ids))
	for _, id := range ids {
		lines := bySupplier[id]
		sup, known := suppliers[id]
		if !known {
			// Order lines referencing a supplier absent from the fact set:
			// the warehouse FK rules this out, but in-memory fact sets can
			// carry it. A zero-value supplier (published lead time 0) would
			// count every delivered order as late.
			zap.L().Warn("metrics: order lines reference unknown supplier, skipping",
				zap.Int64("supplier_id", id),
				zap.Int("order_lines", len(lines)))
			continue
		}

		snap := model.SupplierMetricSnapshot{
			SupplierID:   id,
			SupplierName: sup.Name,
			OrderCount:   len(lines),
		}

		leadTimes := completedLeadTimes(lines)
		snap.CompletedOrders = len(leadTimes)

		switch len(leadTimes) {
		case 0:
			// No delivered orders: no evidence of lateness, but nothing to
			// estimate from either.
			snap.OnTimeRatio = 1
			snap.LowConfidence = true
		case 1:
			snap.AvgLeadTimeDays = leadTimes[0]
			snap.LowConfidence = true
		default:
			snap.AvgLeadTimeDays = stat.Mean(leadTimes, nil)
			snap.LeadTimeStdDev = stat.StdDev(leadTimes, nil)
		}
		if len(leadTimes) > 0 {
			snap.OnTimeRatio = onTimeRatio(leadTimes, sup.LeadTimeDays)
		}

		// Absence of incidents is no evidence of defects, not missing data.
		if defects, ok := incidents[id]; ok && len(defects) > 0 {
			snap.DefectRate = stat.Mean(defects, nil)
		}

		snap.CostVarianceRatio = costVarianceRatio(lines, materials)
		snap.FXExposureRatio = e.fxExposureRatio(lines, rates)

		snapshots = append(snapshots, snap)
	}

	zap.L().Debug("metrics: extracted supplier snapshots",
		zap.Int("suppliers", len(snapshots)),
		zap.Int("orders", len(facts.Orders)),
	)
	return snapshots
}

// completedLeadTimes returns realized lead times in days for delivered lines.
func completedLeadTimes(lines []model.PurchaseOrderLine) []float64 {
	var out []float64
	for i := range lines {
		if lines[i].Delivered() {
			out = append(out, lines[i].LeadTimeDays())
		}
	}
	return out
}

// onTimeRatio counts deliveries within the supplier's published lead time.
// The published value is the contractual commitment; per-order expected
// delivery fields would trivially self-fulfill and are deliberately not used.
func onTimeRatio(leadTimes []float64, publishedDays int) float64 {
	onTime := 0
	for _, lt := range leadTimes {
		if lt <= float64(publishedDays) {
			onTime++
		}
	}
	return float64(onTime) / float64(len(leadTimes))
}

// costVarianceRatio is above-standard spend over total spend. Below-standard
// pricing contributes zero leakage, never a credit.
func costVarianceRatio(lines []model.PurchaseOrderLine, materials map[int64]model.Material) float64 {
	var leakage, total float64
	for i := range lines {
		l := &lines[i]
		total += l.Spend()
		mat, ok := materials[l.MaterialID]
		if !ok {
			continue
		}
		leakage += math.Max(0, l.UnitPrice-mat.StandardCost) * l.Quantity
	}
	if total == 0 {
		return 0
	}
	return leakage / total
}

// fxExposureRatio is the fraction of base-equivalent spend transacted in a
// non-base currency.
func (e *Extractor) fxExposureRatio(lines []model.PurchaseOrderLine, rates map[string]model.RateSeries) float64 {
	var total, nonBase float64
	for i := range lines {
		l := &lines[i]
		spend := l.Spend() / rateOn(rates, l.Currency, l.OrderDate)
		total += spend
		if l.Currency != e.baseCurrency {
			nonBase += spend
		}
	}
	if total == 0 {
		return 0
	}
	return nonBase / total
}

// rateOn returns the most recent observed rate on or before the given date,
// or 1 when the currency has no usable history (base currency included).
func rateOn(rates map[string]model.RateSeries, currency string, date time.Time) float64 {
	series, ok := rates[currency]
	if !ok || len(series.Points) == 0 {
		return 1
	}
	pts := series.Points
	idx := sort.Search(len(pts), func(i int) bool {
		return pts[i].Date.After(date)
	})
	if idx == 0 {
		// All observations are after the order date; use the earliest.
		return pts[0].Rate
	}
	return pts[idx-1].Rate
}

// BuildRateSeries groups FX observations by currency into date-sorted series.
// Duplicate (currency, date) pairs violate the warehouse invariant; the first
// observation wins and an error reports the violation alongside the usable
// result.
func BuildRateSeries(obs []model.FXRateObservation) (map[string]model.RateSeries, error) {
	byCurrency := make(map[string][]model.RatePoint)
	seen := make(map[string]map[int64]bool)
	var dups int

	for _, o := range obs {
		day := o.Date.Unix()
		if seen[o.Currency] == nil {
			seen[o.Currency] = make(map[int64]bool)
		}
		if seen[o.Currency][day] {
			dups++
			continue
		}
		seen[o.Currency][day] = true
		byCurrency[o.Currency] = append(byCurrency[o.Currency], model.RatePoint{Date: o.Date, Rate: o.RateToBase})
	}

	out := make(map[string]model.RateSeries, len(byCurrency))
	for cur, pts := range byCurrency {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
		out[cur] = model.RateSeries{Currency: cur, Points: pts}
	}

	if dups > 0 {
		return out, eris.Errorf("metrics: %d duplicate (currency, date) fx observations", dups)
	}
	return out, nil
}
