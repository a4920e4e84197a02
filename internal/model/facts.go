// Package model defines the warehouse fact records and derived analytics
// records shared across the pipeline.
package model

import "time"

// Supplier is a procurement counterparty. Read-only during scoring.
type Supplier struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Country         string `json:"country"`
	DefaultCurrency string `json:"default_currency"`
	LeadTimeDays    int    `json:"lead_time_days"` // published lead time
}

// Material is a purchasable item with a negotiated standard unit cost.
type Material struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	StandardCost float64 `json:"standard_cost"`
}

// PurchaseOrderLine is one line of a purchase order. Immutable once recorded;
// the unit of analysis for cost-variance and lead-time metrics.
type PurchaseOrderLine struct {
	SupplierID   int64      `json:"supplier_id"`
	MaterialID   int64      `json:"material_id"`
	OrderDate    time.Time  `json:"order_date"`
	DeliveryDate *time.Time `json:"delivery_date,omitempty"` // nil until delivered
	Quantity     float64    `json:"quantity"`                // > 0
	UnitPrice    float64    `json:"unit_price"`              // > 0
	Currency     string     `json:"currency"`
}

// Delivered reports whether the line has a recorded delivery date.
func (l *PurchaseOrderLine) Delivered() bool {
	return l.DeliveryDate != nil
}

// LeadTimeDays returns the realized lead time in days for a delivered line.
// The result is meaningless for undelivered lines.
func (l *PurchaseOrderLine) LeadTimeDays() float64 {
	if l.DeliveryDate == nil {
		return 0
	}
	return l.DeliveryDate.Sub(l.OrderDate).Hours() / 24
}

// Spend returns the line amount in its transaction currency.
func (l *PurchaseOrderLine) Spend() float64 {
	return l.Quantity * l.UnitPrice
}

// QualityIncident is one appended entry in the quality log.
type QualityIncident struct {
	SupplierID   int64     `json:"supplier_id"`
	MaterialID   int64     `json:"material_id"`
	IncidentDate time.Time `json:"incident_date"`
	DefectRate   float64   `json:"defect_rate"` // [0,1]
}

// FXRateObservation is one row of the exchange-rate time series: units of
// the quoted currency per unit of the base currency on a trading day.
type FXRateObservation struct {
	Currency   string    `json:"currency"`
	Date       time.Time `json:"date"`
	RateToBase float64   `json:"rate_to_base"` // > 0
}

// RatePoint is a (date, rate) pair in a sorted series.
type RatePoint struct {
	Date time.Time `json:"date"`
	Rate float64   `json:"rate"`
}

// RateSeries is one currency's rate history sorted ascending by date.
// Spacing between points may be irregular; consumers must tolerate gaps.
type RateSeries struct {
	Currency string      `json:"currency"`
	Points   []RatePoint `json:"points"`
}

// Latest returns the most recent observed rate, or 0 for an empty series.
func (s RateSeries) Latest() float64 {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].Rate
}

// Tail returns the trailing n points, or the full series when n <= 0 or
// n exceeds the series length.
func (s RateSeries) Tail(n int) RateSeries {
	if n <= 0 || n >= len(s.Points) {
		return s
	}
	return RateSeries{Currency: s.Currency, Points: s.Points[len(s.Points)-n:]}
}

// FactSet is the fully materialized input to an analytics run. The analytics
// packages perform no I/O; the store hands them one of these.
type FactSet struct {
	Suppliers []Supplier          `json:"suppliers"`
	Materials []Material          `json:"materials"`
	Orders    []PurchaseOrderLine `json:"orders"`
	Incidents []QualityIncident   `json:"incidents"`
	FXRates   []FXRateObservation `json:"fx_rates"`
}

// MaterialByID builds a lookup map over the fact set's materials.
func (f *FactSet) MaterialByID() map[int64]Material {
	m := make(map[int64]Material, len(f.Materials))
	for _, mat := range f.Materials {
		m[mat.ID] = mat
	}
	return m
}

// SupplierByID builds a lookup map over the fact set's suppliers.
func (f *FactSet) SupplierByID() map[int64]Supplier {
	m := make(map[int64]Supplier, len(f.Suppliers))
	for _, s := range f.Suppliers {
		m[s.ID] = s
	}
	return m
}
