package metrics

import (
	"sort"

	"github.com/pvis-group/procure-cli/internal/model"
)

// MonthlySpend buckets base-equivalent spend by supplier, material category
// and calendar month. Output is sorted by supplier, then category, then
// period, so report sheets are stable across runs.
func (e *Extractor) MonthlySpend(facts *model.FactSet) []model.MonthlySpend {
	materials := facts.MaterialByID()
	rates, _ := BuildRateSeries(facts.FXRates)

	type key struct {
		supplier    int64
		category    string
		year, month int
	}
	buckets := make(map[key]float64)

	for i := range facts.Orders {
		l := &facts.Orders[i]
		category := ""
		if mat, ok := materials[l.MaterialID]; ok {
			category = mat.Category
		}
		k := key{
			supplier: l.SupplierID,
			category: category,
			year:     l.OrderDate.Year(),
			month:    int(l.OrderDate.Month()),
		}
		buckets[k] += l.Spend() / rateOn(rates, l.Currency, l.OrderDate)
	}

	out := make([]model.MonthlySpend, 0, len(buckets))
	for k, spend := range buckets {
		out = append(out, model.MonthlySpend{
			SupplierID: k.supplier,
			Category:   k.category,
			Year:       k.year,
			Month:      k.month,
			SpendBase:  spend,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SupplierID != b.SupplierID {
			return a.SupplierID < b.SupplierID
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})
	return out
}
