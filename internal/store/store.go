// Package store persists warehouse facts and analytics results. Two
// backends exist: Postgres for the reference deployment and SQLite for
// single-file local warehouses. The analytics packages never touch it;
// they work on materialized FactSets handed out by LoadFacts.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/pvis-group/procure-cli/internal/config"
	"github.com/pvis-group/procure-cli/internal/model"
)

// Store is the persistence interface for the procurement warehouse.
type Store interface {
	// Facts
	LoadFacts(ctx context.Context) (*model.FactSet, error)
	RateHistory(ctx context.Context, currency string) (model.RateSeries, error)
	Currencies(ctx context.Context) ([]string, error)

	// Ingestion
	UpsertSuppliers(ctx context.Context, suppliers []model.Supplier) (int64, error)
	UpsertMaterials(ctx context.Context, materials []model.Material) (int64, error)
	InsertOrderLines(ctx context.Context, lines []model.PurchaseOrderLine) (int64, error)
	InsertIncidents(ctx context.Context, incidents []model.QualityIncident) (int64, error)
	InsertFXRates(ctx context.Context, rates []model.FXRateObservation) (int64, error)

	// Results
	SaveScores(ctx context.Context, scores []model.CompositeRiskScore) error
	LatestScores(ctx context.Context) ([]model.CompositeRiskScore, error)
	SaveSimulation(ctx context.Context, result *model.SimulationResult) error
	ListSimulations(ctx context.Context, currency string, limit int) ([]model.SimulationResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q (want postgres or sqlite)", cfg.Driver)
	}
}
