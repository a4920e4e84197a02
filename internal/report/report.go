// Package report renders analytics output as an Excel workbook for the
// procurement team. One workbook per run: risk scores, FX forecasts and
// the monthly spend aggregation, each on its own sheet.
package report

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/pvis-group/procure-cli/internal/model"
)

const dateLayout = "2006-01-02"

// Workbook collects the inputs for one rendered report.
type Workbook struct {
	Scores      []model.CompositeRiskScore
	Simulations []model.SimulationResult
	Spend       []model.MonthlySpend
}

// componentOrder is the fixed column order for score components.
var componentOrder = []string{"lead_time", "defect_rate", "otd", "fx_exposure", "cost_variance"}

// Write renders the workbook to an .xlsx file at path.
func Write(path string, wb Workbook) error {
	log := zap.L().With(zap.String("component", "report"))

	f := xlsx.NewFile()

	if err := addScoresSheet(f, wb.Scores); err != nil {
		return err
	}
	if err := addForecastSheet(f, wb.Simulations); err != nil {
		return err
	}
	if err := addSpendSheet(f, wb.Spend); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save workbook %s", path)
	}

	log.Info("workbook written",
		zap.String("path", path),
		zap.Int("scores", len(wb.Scores)),
		zap.Int("forecasts", len(wb.Simulations)),
		zap.Int("spend_rows", len(wb.Spend)))
	return nil
}

func headerStyle() *xlsx.Style {
	style := xlsx.NewStyle()
	style.Font.Bold = true
	return style
}

func addHeader(sheet *xlsx.Sheet, cols []string) {
	row := sheet.AddRow()
	style := headerStyle()
	for _, c := range cols {
		cell := row.AddCell()
		cell.Value = c
		cell.SetStyle(style)
	}
}

func addScoresSheet(f *xlsx.File, scores []model.CompositeRiskScore) error {
	sheet, err := f.AddSheet("Risk Scores")
	if err != nil {
		return eris.Wrap(err, "report: add scores sheet")
	}

	cols := []string{"Supplier ID", "Supplier", "Score"}
	for _, c := range componentOrder {
		cols = append(cols, c)
	}
	cols = append(cols, "Low Confidence", "Run ID", "Computed At")
	addHeader(sheet, cols)

	for _, sc := range scores {
		row := sheet.AddRow()
		row.AddCell().SetInt64(sc.SupplierID)
		row.AddCell().Value = sc.SupplierName
		row.AddCell().SetFloatWithFormat(sc.Score, "0.00")
		for _, c := range componentOrder {
			row.AddCell().SetFloatWithFormat(sc.Components[c], "0.0000")
		}
		row.AddCell().SetBool(sc.LowConfidence)
		row.AddCell().Value = sc.RunID
		row.AddCell().Value = sc.ComputedAt.UTC().Format(time.RFC3339)
	}
	return nil
}

func addForecastSheet(f *xlsx.File, sims []model.SimulationResult) error {
	sheet, err := f.AddSheet("FX Forecasts")
	if err != nil {
		return eris.Wrap(err, "report: add forecast sheet")
	}

	addHeader(sheet, []string{
		"Currency", "As Of", "Horizon (days)", "Paths", "Spot",
		"P5", "Median", "P95", "Expected Change %", "Daily Drift", "Daily Volatility", "Seed",
	})

	for _, sim := range sims {
		row := sheet.AddRow()
		row.AddCell().Value = sim.Currency
		row.AddCell().Value = sim.AsOfDate.Format(dateLayout)
		row.AddCell().SetInt(sim.HorizonDays)
		row.AddCell().SetInt(sim.PathCount)
		row.AddCell().SetFloatWithFormat(sim.CurrentRate, "0.000000")
		row.AddCell().SetFloatWithFormat(sim.P5, "0.000000")
		row.AddCell().SetFloatWithFormat(sim.Median, "0.000000")
		row.AddCell().SetFloatWithFormat(sim.P95, "0.000000")
		row.AddCell().SetFloatWithFormat(sim.ExpectedChangePct(), "0.00")
		row.AddCell().SetFloatWithFormat(sim.Drift, "0.000000")
		row.AddCell().SetFloatWithFormat(sim.Volatility, "0.000000")
		seedCell := row.AddCell()
		if sim.Seed != nil {
			seedCell.Value = fmt.Sprintf("%d", *sim.Seed)
		}
	}
	return nil
}

func addSpendSheet(f *xlsx.File, spend []model.MonthlySpend) error {
	sheet, err := f.AddSheet("Monthly Spend")
	if err != nil {
		return eris.Wrap(err, "report: add spend sheet")
	}

	addHeader(sheet, []string{"Supplier ID", "Category", "Year", "Month", "Spend (base)"})

	for _, s := range spend {
		row := sheet.AddRow()
		row.AddCell().SetInt64(s.SupplierID)
		row.AddCell().Value = s.Category
		row.AddCell().SetInt(s.Year)
		row.AddCell().SetInt(s.Month)
		row.AddCell().SetFloatWithFormat(s.SpendBase, "#,##0.00")
	}
	return nil
}
