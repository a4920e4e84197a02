// Package ingest parses CSV extracts into warehouse facts. Each reader
// validates row-by-row and fails the whole file on the first bad row, so a
// load is all-or-nothing from the caller's point of view.
package ingest

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/pvis-group/procure-cli/internal/model"
)

const dateLayout = "2006-01-02"

type supplierRow struct {
	SupplierID      int64  `csv:"supplier_id"`
	Name            string `csv:"name"`
	Country         string `csv:"country"`
	DefaultCurrency string `csv:"default_currency"`
	LeadTimeDays    int    `csv:"lead_time_days"`
}

type materialRow struct {
	MaterialID   int64   `csv:"material_id"`
	Name         string  `csv:"name"`
	Category     string  `csv:"category"`
	StandardCost float64 `csv:"standard_cost"`
}

type orderLineRow struct {
	SupplierID   int64   `csv:"supplier_id"`
	MaterialID   int64   `csv:"material_id"`
	OrderDate    string  `csv:"order_date"`
	DeliveryDate string  `csv:"delivery_date"` // empty = undelivered
	Quantity     float64 `csv:"quantity"`
	UnitPrice    float64 `csv:"unit_price"`
	Currency     string  `csv:"currency"`
}

type incidentRow struct {
	SupplierID   int64   `csv:"supplier_id"`
	MaterialID   int64   `csv:"material_id"`
	IncidentDate string  `csv:"incident_date"`
	DefectRate   float64 `csv:"defect_rate"`
}

type fxRateRow struct {
	Currency   string  `csv:"currency"`
	Date       string  `csv:"date"`
	RateToBase float64 `csv:"rate_to_base"`
}

func newDecoder(r io.Reader) (*csvutil.Decoder, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	return dec, nil
}

func parseDate(s, field string, row int) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "ingest: row %d: bad %s %q", row, field, s)
	}
	return t, nil
}

// ReadSuppliers decodes and validates a supplier dimension extract.
func ReadSuppliers(r io.Reader) ([]model.Supplier, error) {
	dec, err := newDecoder(r)
	if err != nil {
		return nil, err
	}

	var out []model.Supplier
	for row := 1; ; row++ {
		var rec supplierRow
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "ingest: suppliers row %d", row)
		}
		if rec.SupplierID <= 0 {
			return nil, eris.Errorf("ingest: suppliers row %d: supplier_id must be positive, got %d", row, rec.SupplierID)
		}
		if rec.Name == "" {
			return nil, eris.Errorf("ingest: suppliers row %d: name is required", row)
		}
		if rec.LeadTimeDays <= 0 {
			return nil, eris.Errorf("ingest: suppliers row %d: lead_time_days must be positive, got %d", row, rec.LeadTimeDays)
		}
		out = append(out, model.Supplier{
			ID:              rec.SupplierID,
			Name:            rec.Name,
			Country:         rec.Country,
			DefaultCurrency: rec.DefaultCurrency,
			LeadTimeDays:    rec.LeadTimeDays,
		})
	}
	return out, nil
}

// ReadMaterials decodes and validates a material dimension extract.
func ReadMaterials(r io.Reader) ([]model.Material, error) {
	dec, err := newDecoder(r)
	if err != nil {
		return nil, err
	}

	var out []model.Material
	for row := 1; ; row++ {
		var rec materialRow
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "ingest: materials row %d", row)
		}
		if rec.MaterialID <= 0 {
			return nil, eris.Errorf("ingest: materials row %d: material_id must be positive, got %d", row, rec.MaterialID)
		}
		if rec.Name == "" {
			return nil, eris.Errorf("ingest: materials row %d: name is required", row)
		}
		if rec.StandardCost < 0 {
			return nil, eris.Errorf("ingest: materials row %d: standard_cost must not be negative, got %g", row, rec.StandardCost)
		}
		out = append(out, model.Material{
			ID:           rec.MaterialID,
			Name:         rec.Name,
			Category:     rec.Category,
			StandardCost: rec.StandardCost,
		})
	}
	return out, nil
}

// ReadOrderLines decodes and validates a purchase-order-line extract.
// An empty delivery_date marks a line still in transit.
func ReadOrderLines(r io.Reader) ([]model.PurchaseOrderLine, error) {
	dec, err := newDecoder(r)
	if err != nil {
		return nil, err
	}

	var out []model.PurchaseOrderLine
	for row := 1; ; row++ {
		var rec orderLineRow
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "ingest: order lines row %d", row)
		}
		if rec.Quantity <= 0 {
			return nil, eris.Errorf("ingest: order lines row %d: quantity must be positive, got %g", row, rec.Quantity)
		}
		if rec.UnitPrice <= 0 {
			return nil, eris.Errorf("ingest: order lines row %d: unit_price must be positive, got %g", row, rec.UnitPrice)
		}
		if rec.Currency == "" {
			return nil, eris.Errorf("ingest: order lines row %d: currency is required", row)
		}

		orderDate, err := parseDate(rec.OrderDate, "order_date", row)
		if err != nil {
			return nil, err
		}

		line := model.PurchaseOrderLine{
			SupplierID: rec.SupplierID,
			MaterialID: rec.MaterialID,
			OrderDate:  orderDate,
			Quantity:   rec.Quantity,
			UnitPrice:  rec.UnitPrice,
			Currency:   rec.Currency,
		}
		if rec.DeliveryDate != "" {
			d, err := parseDate(rec.DeliveryDate, "delivery_date", row)
			if err != nil {
				return nil, err
			}
			if d.Before(orderDate) {
				return nil, eris.Errorf("ingest: order lines row %d: delivery_date %s precedes order_date %s",
					row, rec.DeliveryDate, rec.OrderDate)
			}
			line.DeliveryDate = &d
		}
		out = append(out, line)
	}
	return out, nil
}

// ReadIncidents decodes and validates a quality-log extract.
func ReadIncidents(r io.Reader) ([]model.QualityIncident, error) {
	dec, err := newDecoder(r)
	if err != nil {
		return nil, err
	}

	var out []model.QualityIncident
	for row := 1; ; row++ {
		var rec incidentRow
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "ingest: incidents row %d", row)
		}
		if rec.DefectRate < 0 || rec.DefectRate > 1 {
			return nil, eris.Errorf("ingest: incidents row %d: defect_rate must be in [0,1], got %g", row, rec.DefectRate)
		}
		date, err := parseDate(rec.IncidentDate, "incident_date", row)
		if err != nil {
			return nil, err
		}
		out = append(out, model.QualityIncident{
			SupplierID:   rec.SupplierID,
			MaterialID:   rec.MaterialID,
			IncidentDate: date,
			DefectRate:   rec.DefectRate,
		})
	}
	return out, nil
}

// ReadFXRates decodes and validates an exchange-rate extract. Duplicate
// (currency, date) pairs inside one file are rejected rather than
// last-wins resolved, since the file order carries no meaning.
func ReadFXRates(r io.Reader) ([]model.FXRateObservation, error) {
	dec, err := newDecoder(r)
	if err != nil {
		return nil, err
	}

	type key struct {
		currency string
		date     string
	}
	seen := make(map[key]int)

	var out []model.FXRateObservation
	for row := 1; ; row++ {
		var rec fxRateRow
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "ingest: fx rates row %d", row)
		}
		if rec.Currency == "" {
			return nil, eris.Errorf("ingest: fx rates row %d: currency is required", row)
		}
		if rec.RateToBase <= 0 {
			return nil, eris.Errorf("ingest: fx rates row %d: rate_to_base must be positive, got %g", row, rec.RateToBase)
		}
		date, err := parseDate(rec.Date, "date", row)
		if err != nil {
			return nil, err
		}

		k := key{rec.Currency, rec.Date}
		if prev, dup := seen[k]; dup {
			return nil, eris.Errorf("ingest: fx rates row %d: duplicate observation for %s on %s (first seen at row %d)",
				row, rec.Currency, rec.Date, prev)
		}
		seen[k] = row

		out = append(out, model.FXRateObservation{
			Currency:   rec.Currency,
			Date:       date,
			RateToBase: rec.RateToBase,
		})
	}
	return out, nil
}
