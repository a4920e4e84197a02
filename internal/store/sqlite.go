package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/pvis-group/procure-cli/internal/model"
)

// dateLayout is how DATE columns are stored in SQLite.
const dateLayout = "2006-01-02"

// SQLiteStore implements Store using modernc.org/sqlite. Dates are stored
// as ISO-8601 text; JSON columns as serialized text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS suppliers (
	supplier_id      INTEGER PRIMARY KEY,
	name             TEXT NOT NULL,
	country          TEXT NOT NULL DEFAULT '',
	default_currency TEXT NOT NULL DEFAULT 'USD',
	lead_time_days   INTEGER NOT NULL CHECK (lead_time_days > 0)
);

CREATE TABLE IF NOT EXISTS materials (
	material_id   INTEGER PRIMARY KEY,
	name          TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	standard_cost REAL NOT NULL CHECK (standard_cost >= 0)
);

CREATE TABLE IF NOT EXISTS purchase_order_lines (
	line_id       INTEGER PRIMARY KEY AUTOINCREMENT,
	supplier_id   INTEGER NOT NULL REFERENCES suppliers(supplier_id),
	material_id   INTEGER NOT NULL REFERENCES materials(material_id),
	order_date    TEXT NOT NULL,
	delivery_date TEXT,
	quantity      REAL NOT NULL CHECK (quantity > 0),
	unit_price    REAL NOT NULL CHECK (unit_price > 0),
	currency      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quality_incidents (
	incident_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	supplier_id   INTEGER NOT NULL REFERENCES suppliers(supplier_id),
	material_id   INTEGER NOT NULL REFERENCES materials(material_id),
	incident_date TEXT NOT NULL,
	defect_rate   REAL NOT NULL CHECK (defect_rate >= 0 AND defect_rate <= 1)
);

CREATE TABLE IF NOT EXISTS fx_rates (
	currency     TEXT NOT NULL,
	rate_date    TEXT NOT NULL,
	rate_to_base REAL NOT NULL CHECK (rate_to_base > 0),
	PRIMARY KEY (currency, rate_date)
);

CREATE TABLE IF NOT EXISTS supplier_risk_scores (
	run_id         TEXT NOT NULL,
	supplier_id    INTEGER NOT NULL,
	supplier_name  TEXT NOT NULL,
	score          REAL NOT NULL CHECK (score >= 0 AND score <= 100),
	components     TEXT NOT NULL,
	low_confidence INTEGER NOT NULL DEFAULT 0,
	scored_at      DATETIME NOT NULL,
	PRIMARY KEY (run_id, supplier_id)
);

CREATE TABLE IF NOT EXISTS fx_simulation_results (
	simulation_id TEXT PRIMARY KEY,
	currency      TEXT NOT NULL,
	as_of_date    TEXT NOT NULL,
	horizon_days  INTEGER NOT NULL,
	path_count    INTEGER NOT NULL,
	seed          TEXT,
	spot_rate     REAL NOT NULL,
	p5            REAL NOT NULL,
	median        REAL NOT NULL,
	p95           REAL NOT NULL,
	drift         REAL NOT NULL,
	volatility    REAL NOT NULL,
	simulated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_po_lines_supplier ON purchase_order_lines(supplier_id);
CREATE INDEX IF NOT EXISTS idx_quality_incidents_supplier ON quality_incidents(supplier_id);
CREATE INDEX IF NOT EXISTS idx_risk_scores_scored_at ON supplier_risk_scores(scored_at);
CREATE INDEX IF NOT EXISTS idx_fx_sim_currency ON fx_simulation_results(currency, simulated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadFacts(ctx context.Context) (*model.FactSet, error) {
	facts := &model.FactSet{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT supplier_id, name, country, default_currency, lead_time_days
		   FROM suppliers ORDER BY supplier_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query suppliers")
	}
	for rows.Next() {
		var sup model.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Country, &sup.DefaultCurrency, &sup.LeadTimeDays); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan supplier")
		}
		facts.Suppliers = append(facts.Suppliers, sup)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate suppliers")
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT material_id, name, category, standard_cost
		   FROM materials ORDER BY material_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query materials")
	}
	for rows.Next() {
		var mat model.Material
		if err := rows.Scan(&mat.ID, &mat.Name, &mat.Category, &mat.StandardCost); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan material")
		}
		facts.Materials = append(facts.Materials, mat)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate materials")
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT supplier_id, material_id, order_date, delivery_date, quantity, unit_price, currency
		   FROM purchase_order_lines ORDER BY order_date, line_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query order lines")
	}
	for rows.Next() {
		var (
			line     model.PurchaseOrderLine
			ordered  string
			deliver  sql.NullString
		)
		if err := rows.Scan(&line.SupplierID, &line.MaterialID, &ordered, &deliver, &line.Quantity, &line.UnitPrice, &line.Currency); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan order line")
		}
		if line.OrderDate, err = parseDate(ordered); err != nil {
			rows.Close()
			return nil, err
		}
		if deliver.Valid {
			d, err := parseDate(deliver.String)
			if err != nil {
				rows.Close()
				return nil, err
			}
			line.DeliveryDate = &d
		}
		facts.Orders = append(facts.Orders, line)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate order lines")
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT supplier_id, material_id, incident_date, defect_rate
		   FROM quality_incidents ORDER BY incident_date, incident_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query quality incidents")
	}
	for rows.Next() {
		var (
			inc  model.QualityIncident
			date string
		)
		if err := rows.Scan(&inc.SupplierID, &inc.MaterialID, &date, &inc.DefectRate); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan quality incident")
		}
		if inc.IncidentDate, err = parseDate(date); err != nil {
			rows.Close()
			return nil, err
		}
		facts.Incidents = append(facts.Incidents, inc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate quality incidents")
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT currency, rate_date, rate_to_base
		   FROM fx_rates ORDER BY currency, rate_date`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query fx rates")
	}
	for rows.Next() {
		var (
			obs  model.FXRateObservation
			date string
		)
		if err := rows.Scan(&obs.Currency, &date, &obs.RateToBase); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan fx rate")
		}
		if obs.Date, err = parseDate(date); err != nil {
			rows.Close()
			return nil, err
		}
		facts.FXRates = append(facts.FXRates, obs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate fx rates")
	}

	return facts, nil
}

func (s *SQLiteStore) RateHistory(ctx context.Context, currency string) (model.RateSeries, error) {
	series := model.RateSeries{Currency: currency}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rate_date, rate_to_base FROM fx_rates WHERE currency = ? ORDER BY rate_date`,
		currency)
	if err != nil {
		return series, eris.Wrapf(err, "sqlite: query rate history for %s", currency)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pt   model.RatePoint
			date string
		)
		if err := rows.Scan(&date, &pt.Rate); err != nil {
			return series, eris.Wrap(err, "sqlite: scan rate point")
		}
		if pt.Date, err = parseDate(date); err != nil {
			return series, err
		}
		series.Points = append(series.Points, pt)
	}
	return series, eris.Wrap(rows.Err(), "sqlite: iterate rate history")
}

func (s *SQLiteStore) Currencies(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT currency FROM fx_rates ORDER BY currency")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query currencies")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan currency")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate currencies")
}

func (s *SQLiteStore) UpsertSuppliers(ctx context.Context, suppliers []model.Supplier) (int64, error) {
	var n int64
	for _, sup := range suppliers {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO suppliers (supplier_id, name, country, default_currency, lead_time_days)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(supplier_id) DO UPDATE SET
			     name = excluded.name,
			     country = excluded.country,
			     default_currency = excluded.default_currency,
			     lead_time_days = excluded.lead_time_days`,
			sup.ID, sup.Name, sup.Country, sup.DefaultCurrency, sup.LeadTimeDays)
		if err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert supplier %d", sup.ID)
		}
		rows, _ := res.RowsAffected()
		n += rows
	}
	return n, nil
}

func (s *SQLiteStore) UpsertMaterials(ctx context.Context, materials []model.Material) (int64, error) {
	var n int64
	for _, mat := range materials {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO materials (material_id, name, category, standard_cost)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(material_id) DO UPDATE SET
			     name = excluded.name,
			     category = excluded.category,
			     standard_cost = excluded.standard_cost`,
			mat.ID, mat.Name, mat.Category, mat.StandardCost)
		if err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert material %d", mat.ID)
		}
		rows, _ := res.RowsAffected()
		n += rows
	}
	return n, nil
}

func (s *SQLiteStore) InsertOrderLines(ctx context.Context, lines []model.PurchaseOrderLine) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert order lines: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for _, l := range lines {
		var deliver any
		if l.DeliveryDate != nil {
			deliver = l.DeliveryDate.Format(dateLayout)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO purchase_order_lines
			        (supplier_id, material_id, order_date, delivery_date, quantity, unit_price, currency)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			l.SupplierID, l.MaterialID, l.OrderDate.Format(dateLayout), deliver,
			l.Quantity, l.UnitPrice, l.Currency); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert order line")
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert order lines: commit")
	}
	return n, nil
}

func (s *SQLiteStore) InsertIncidents(ctx context.Context, incidents []model.QualityIncident) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert incidents: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for _, inc := range incidents {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO quality_incidents (supplier_id, material_id, incident_date, defect_rate)
			 VALUES (?, ?, ?, ?)`,
			inc.SupplierID, inc.MaterialID, inc.IncidentDate.Format(dateLayout), inc.DefectRate); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert incident")
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert incidents: commit")
	}
	return n, nil
}

func (s *SQLiteStore) InsertFXRates(ctx context.Context, rates []model.FXRateObservation) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert fx rates: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for _, r := range rates {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO fx_rates (currency, rate_date, rate_to_base)
			 VALUES (?, ?, ?)
			 ON CONFLICT(currency, rate_date) DO UPDATE SET rate_to_base = excluded.rate_to_base`,
			r.Currency, r.Date.Format(dateLayout), r.RateToBase)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert fx rate %s %s", r.Currency, r.Date.Format(dateLayout))
		}
		rows, _ := res.RowsAffected()
		n += rows
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert fx rates: commit")
	}
	return n, nil
}

func (s *SQLiteStore) SaveScores(ctx context.Context, scores []model.CompositeRiskScore) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: save scores: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, sc := range scores {
		components, err := json.Marshal(sc.Components)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal components")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO supplier_risk_scores
			        (run_id, supplier_id, supplier_name, score, components, low_confidence, scored_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sc.RunID, sc.SupplierID, sc.SupplierName, sc.Score, string(components),
			sc.LowConfidence, sc.ComputedAt.UTC()); err != nil {
			return eris.Wrapf(err, "sqlite: insert score for supplier %d", sc.SupplierID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: save scores: commit")
}

func (s *SQLiteStore) LatestScores(ctx context.Context) ([]model.CompositeRiskScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, supplier_id, supplier_name, score, components, low_confidence, scored_at
		   FROM supplier_risk_scores
		  WHERE run_id = (
		        SELECT run_id FROM supplier_risk_scores
		         ORDER BY scored_at DESC LIMIT 1)
		  ORDER BY score DESC, supplier_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query latest scores")
	}
	defer rows.Close()

	var out []model.CompositeRiskScore
	for rows.Next() {
		var (
			sc         model.CompositeRiskScore
			components string
		)
		if err := rows.Scan(&sc.RunID, &sc.SupplierID, &sc.SupplierName, &sc.Score, &components, &sc.LowConfidence, &sc.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		if err := json.Unmarshal([]byte(components), &sc.Components); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal components")
		}
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate latest scores")
}

func (s *SQLiteStore) SaveSimulation(ctx context.Context, result *model.SimulationResult) error {
	var seed any
	if result.Seed != nil {
		seed = strconv.FormatUint(*result.Seed, 10)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fx_simulation_results
		        (simulation_id, currency, as_of_date, horizon_days, path_count, seed,
		         spot_rate, p5, median, p95, drift, volatility, simulated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.Currency, result.AsOfDate.Format(dateLayout), result.HorizonDays, result.PathCount, seed,
		result.CurrentRate, result.P5, result.Median, result.P95,
		result.Drift, result.Volatility, result.CreatedAt.UTC())
	return eris.Wrapf(err, "sqlite: insert simulation for %s", result.Currency)
}

func (s *SQLiteStore) ListSimulations(ctx context.Context, currency string, limit int) ([]model.SimulationResult, error) {
	if limit <= 0 {
		limit = 1000
	}

	query := `SELECT simulation_id, currency, as_of_date, horizon_days, path_count, seed,
	                 spot_rate, p5, median, p95, drift, volatility, simulated_at
	            FROM fx_simulation_results`
	var args []any
	if currency != "" {
		query += ` WHERE currency = ?`
		args = append(args, currency)
	}
	query += ` ORDER BY simulated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query simulations")
	}
	defer rows.Close()

	var out []model.SimulationResult
	for rows.Next() {
		var (
			res  model.SimulationResult
			asOf string
			seed sql.NullString
		)
		if err := rows.Scan(&res.ID, &res.Currency, &asOf, &res.HorizonDays, &res.PathCount, &seed,
			&res.CurrentRate, &res.P5, &res.Median, &res.P95,
			&res.Drift, &res.Volatility, &res.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan simulation")
		}
		if res.AsOfDate, err = parseDate(asOf); err != nil {
			return nil, err
		}
		if seed.Valid {
			v, err := strconv.ParseUint(seed.String, 10, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "sqlite: parse stored seed %q", seed.String)
			}
			res.Seed = &v
		}
		out = append(out, res)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate simulations")
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse date %q", s)
	}
	return t, nil
}

var _ Store = (*SQLiteStore)(nil)
