package store

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pvis-group/procure-cli/internal/db"
	"github.com/pvis-group/procure-cli/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockKey is the advisory-lock key guarding concurrent migrations.
const migrationLockKey = 7420115

// PostgresStore is the warehouse backend for the reference deployment.
// All methods run against a db.Pool, so pgxmock covers them in tests.
type PostgresStore struct {
	pool db.Pool
	log  *zap.Logger
}

// NewPostgres connects a pgx pool to the given database URL.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "store: connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping postgres")
	}
	return NewPostgresWithPool(pool), nil
}

// NewPostgresWithPool wraps an existing pool. Tests hand in a pgxmock pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		log:  zap.L().With(zap.String("component", "store.postgres")),
	}
}

// Migrate runs all pending SQL migrations in lexicographic order under an
// advisory lock, so overlapping deploys cannot race each other.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return eris.Wrap(err, "store: acquire migration advisory lock")
	}
	defer func() {
		if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockKey); err != nil {
			s.log.Warn("failed to release migration advisory lock", zap.Error(err))
		}
	}()

	if err := s.ensureMigrationTable(ctx); err != nil {
		return err
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "store: read migration dir")
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if applied[name] {
			continue
		}

		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return eris.Wrapf(err, "store: read migration %s", name)
		}

		s.log.Info("applying migration", zap.String("file", name))

		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "store: apply migration %s", name)
		}
		if _, err := s.pool.Exec(ctx,
			"INSERT INTO procure.schema_migrations (filename, applied_at) VALUES ($1, now())",
			name,
		); err != nil {
			return eris.Wrapf(err, "store: record migration %s", name)
		}
	}

	return nil
}

func (s *PostgresStore) ensureMigrationTable(ctx context.Context) error {
	sql := `
		CREATE SCHEMA IF NOT EXISTS procure;
		CREATE TABLE IF NOT EXISTS procure.schema_migrations (
			id         SERIAL PRIMARY KEY,
			filename   TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return eris.Wrap(err, "store: ensure migration table")
	}
	return nil
}

func (s *PostgresStore) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, "SELECT filename FROM procure.schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "store: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "store: scan migration row")
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// LoadFacts materializes the full fact set for an analytics run.
func (s *PostgresStore) LoadFacts(ctx context.Context) (*model.FactSet, error) {
	facts := &model.FactSet{}

	rows, err := s.pool.Query(ctx,
		`SELECT supplier_id, name, country, default_currency, lead_time_days
		   FROM procure.suppliers ORDER BY supplier_id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: query suppliers")
	}
	for rows.Next() {
		var sup model.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Country, &sup.DefaultCurrency, &sup.LeadTimeDays); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "store: scan supplier")
		}
		facts.Suppliers = append(facts.Suppliers, sup)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate suppliers")
	}

	rows, err = s.pool.Query(ctx,
		`SELECT material_id, name, category, standard_cost
		   FROM procure.materials ORDER BY material_id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: query materials")
	}
	for rows.Next() {
		var mat model.Material
		if err := rows.Scan(&mat.ID, &mat.Name, &mat.Category, &mat.StandardCost); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "store: scan material")
		}
		facts.Materials = append(facts.Materials, mat)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate materials")
	}

	rows, err = s.pool.Query(ctx,
		`SELECT supplier_id, material_id, order_date, delivery_date, quantity, unit_price, currency
		   FROM procure.purchase_order_lines ORDER BY order_date, line_id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: query order lines")
	}
	for rows.Next() {
		var line model.PurchaseOrderLine
		if err := rows.Scan(&line.SupplierID, &line.MaterialID, &line.OrderDate, &line.DeliveryDate, &line.Quantity, &line.UnitPrice, &line.Currency); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "store: scan order line")
		}
		facts.Orders = append(facts.Orders, line)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate order lines")
	}

	rows, err = s.pool.Query(ctx,
		`SELECT supplier_id, material_id, incident_date, defect_rate
		   FROM procure.quality_incidents ORDER BY incident_date, incident_id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: query quality incidents")
	}
	for rows.Next() {
		var inc model.QualityIncident
		if err := rows.Scan(&inc.SupplierID, &inc.MaterialID, &inc.IncidentDate, &inc.DefectRate); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "store: scan quality incident")
		}
		facts.Incidents = append(facts.Incidents, inc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate quality incidents")
	}

	rows, err = s.pool.Query(ctx,
		`SELECT currency, rate_date, rate_to_base
		   FROM procure.fx_rates ORDER BY currency, rate_date`)
	if err != nil {
		return nil, eris.Wrap(err, "store: query fx rates")
	}
	for rows.Next() {
		var obs model.FXRateObservation
		if err := rows.Scan(&obs.Currency, &obs.Date, &obs.RateToBase); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "store: scan fx rate")
		}
		facts.FXRates = append(facts.FXRates, obs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate fx rates")
	}

	return facts, nil
}

// RateHistory returns one currency's rate series sorted ascending by date.
func (s *PostgresStore) RateHistory(ctx context.Context, currency string) (model.RateSeries, error) {
	series := model.RateSeries{Currency: currency}

	rows, err := s.pool.Query(ctx,
		`SELECT rate_date, rate_to_base
		   FROM procure.fx_rates
		  WHERE currency = $1
		  ORDER BY rate_date`, currency)
	if err != nil {
		return series, eris.Wrapf(err, "store: query rate history for %s", currency)
	}
	defer rows.Close()

	for rows.Next() {
		var pt model.RatePoint
		if err := rows.Scan(&pt.Date, &pt.Rate); err != nil {
			return series, eris.Wrap(err, "store: scan rate point")
		}
		series.Points = append(series.Points, pt)
	}
	return series, eris.Wrap(rows.Err(), "store: iterate rate history")
}

// Currencies lists the distinct currencies with rate history.
func (s *PostgresStore) Currencies(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT currency FROM procure.fx_rates ORDER BY currency")
	if err != nil {
		return nil, eris.Wrap(err, "store: query currencies")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "store: scan currency")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate currencies")
}

// UpsertSuppliers idempotently loads the supplier dimension.
func (s *PostgresStore) UpsertSuppliers(ctx context.Context, suppliers []model.Supplier) (int64, error) {
	rows := make([][]any, 0, len(suppliers))
	for _, sup := range suppliers {
		rows = append(rows, []any{sup.ID, sup.Name, sup.Country, sup.DefaultCurrency, sup.LeadTimeDays})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "procure.suppliers",
		Columns:      []string{"supplier_id", "name", "country", "default_currency", "lead_time_days"},
		ConflictKeys: []string{"supplier_id"},
	}, rows)
}

// UpsertMaterials idempotently loads the material dimension.
func (s *PostgresStore) UpsertMaterials(ctx context.Context, materials []model.Material) (int64, error) {
	rows := make([][]any, 0, len(materials))
	for _, mat := range materials {
		rows = append(rows, []any{mat.ID, mat.Name, mat.Category, mat.StandardCost})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "procure.materials",
		Columns:      []string{"material_id", "name", "category", "standard_cost"},
		ConflictKeys: []string{"material_id"},
	}, rows)
}

// InsertOrderLines appends purchase-order lines via the COPY fast path.
func (s *PostgresStore) InsertOrderLines(ctx context.Context, lines []model.PurchaseOrderLine) (int64, error) {
	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []any{l.SupplierID, l.MaterialID, l.OrderDate, l.DeliveryDate, l.Quantity, l.UnitPrice, l.Currency})
	}
	return db.CopyInto(ctx, s.pool, "procure", "purchase_order_lines",
		[]string{"supplier_id", "material_id", "order_date", "delivery_date", "quantity", "unit_price", "currency"},
		rows)
}

// InsertIncidents appends quality-log entries via the COPY fast path.
func (s *PostgresStore) InsertIncidents(ctx context.Context, incidents []model.QualityIncident) (int64, error) {
	rows := make([][]any, 0, len(incidents))
	for _, inc := range incidents {
		rows = append(rows, []any{inc.SupplierID, inc.MaterialID, inc.IncidentDate, inc.DefectRate})
	}
	return db.CopyInto(ctx, s.pool, "procure", "quality_incidents",
		[]string{"supplier_id", "material_id", "incident_date", "defect_rate"},
		rows)
}

// InsertFXRates upserts rate observations; re-ingesting the same trading
// day overwrites the prior quote.
func (s *PostgresStore) InsertFXRates(ctx context.Context, rates []model.FXRateObservation) (int64, error) {
	rows := make([][]any, 0, len(rates))
	for _, r := range rates {
		rows = append(rows, []any{r.Currency, r.Date, r.RateToBase})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "procure.fx_rates",
		Columns:      []string{"currency", "rate_date", "rate_to_base"},
		ConflictKeys: []string{"currency", "rate_date"},
	}, rows)
}

// SaveScores writes one scoring run atomically.
func (s *PostgresStore) SaveScores(ctx context.Context, scores []model.CompositeRiskScore) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: save scores: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, sc := range scores {
		if _, err := tx.Exec(ctx,
			`INSERT INTO procure.supplier_risk_scores
			        (run_id, supplier_id, supplier_name, score, components, low_confidence, scored_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sc.RunID, sc.SupplierID, sc.SupplierName, sc.Score, sc.Components, sc.LowConfidence, sc.ComputedAt,
		); err != nil {
			return eris.Wrapf(err, "store: insert score for supplier %d", sc.SupplierID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "store: save scores: commit")
	}

	s.log.Info("scores saved",
		zap.String("run_id", scores[0].RunID),
		zap.Int("suppliers", len(scores)))
	return nil
}

// LatestScores returns the most recent run's scores, highest risk first.
func (s *PostgresStore) LatestScores(ctx context.Context) ([]model.CompositeRiskScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, supplier_id, supplier_name, score, components, low_confidence, scored_at
		   FROM procure.supplier_risk_scores
		  WHERE run_id = (
		        SELECT run_id FROM procure.supplier_risk_scores
		         ORDER BY scored_at DESC LIMIT 1)
		  ORDER BY score DESC, supplier_id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: query latest scores")
	}
	defer rows.Close()

	var out []model.CompositeRiskScore
	for rows.Next() {
		var sc model.CompositeRiskScore
		if err := rows.Scan(&sc.RunID, &sc.SupplierID, &sc.SupplierName, &sc.Score, &sc.Components, &sc.LowConfidence, &sc.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan score")
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate latest scores")
}

// SaveSimulation records one Monte Carlo forecast summary.
func (s *PostgresStore) SaveSimulation(ctx context.Context, result *model.SimulationResult) error {
	var seed *string
	if result.Seed != nil {
		v := strconv.FormatUint(*result.Seed, 10)
		seed = &v
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO procure.fx_simulation_results
		        (simulation_id, currency, as_of_date, horizon_days, path_count, seed,
		         spot_rate, p5, median, p95, drift, volatility, simulated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		result.ID, result.Currency, result.AsOfDate, result.HorizonDays, result.PathCount, seed,
		result.CurrentRate, result.P5, result.Median, result.P95,
		result.Drift, result.Volatility, result.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "store: insert simulation for %s", result.Currency)
	}
	return nil
}

// ListSimulations returns recent forecasts, newest first. An empty currency
// matches all currencies; limit <= 0 means no limit.
func (s *PostgresStore) ListSimulations(ctx context.Context, currency string, limit int) ([]model.SimulationResult, error) {
	if limit <= 0 {
		limit = 1000
	}

	query := `SELECT simulation_id, currency, as_of_date, horizon_days, path_count, seed,
	                 spot_rate, p5, median, p95, drift, volatility, simulated_at
	            FROM procure.fx_simulation_results`
	args := []any{}
	if currency != "" {
		query += " WHERE currency = $1 ORDER BY simulated_at DESC LIMIT $2"
		args = append(args, currency, limit)
	} else {
		query += " ORDER BY simulated_at DESC LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: query simulations")
	}
	defer rows.Close()

	var out []model.SimulationResult
	for rows.Next() {
		var (
			res  model.SimulationResult
			seed *string
		)
		if err := rows.Scan(&res.ID, &res.Currency, &res.AsOfDate, &res.HorizonDays, &res.PathCount, &seed,
			&res.CurrentRate, &res.P5, &res.Median, &res.P95,
			&res.Drift, &res.Volatility, &res.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan simulation")
		}
		if seed != nil {
			v, err := strconv.ParseUint(*seed, 10, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "store: parse stored seed %q", *seed)
			}
			res.Seed = &v
		}
		out = append(out, res)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate simulations")
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var _ Store = (*PostgresStore)(nil)
