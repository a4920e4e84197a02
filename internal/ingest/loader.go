package ingest

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pvis-group/procure-cli/internal/store"
)

// Kind names one of the ingestible extract types.
type Kind string

const (
	KindSuppliers  Kind = "suppliers"
	KindMaterials  Kind = "materials"
	KindOrderLines Kind = "orders"
	KindIncidents  Kind = "incidents"
	KindFXRates    Kind = "fx-rates"
)

// Kinds lists the supported extract types in ingestion order: dimensions
// before facts, so foreign keys resolve.
func Kinds() []Kind {
	return []Kind{KindSuppliers, KindMaterials, KindOrderLines, KindIncidents, KindFXRates}
}

// Loader parses extracts and persists them through a Store.
type Loader struct {
	store store.Store
	log   *zap.Logger
}

// NewLoader wires a loader to the given store.
func NewLoader(st store.Store) *Loader {
	return &Loader{
		store: st,
		log:   zap.L().With(zap.String("component", "ingest")),
	}
}

// LoadFile ingests one CSV file of the given kind. Dimensions upsert;
// facts append; fx rates upsert per (currency, date).
func (l *Loader) LoadFile(ctx context.Context, kind Kind, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	n, err := l.Load(ctx, kind, f)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: load %s", path)
	}

	l.log.Info("extract loaded",
		zap.String("kind", string(kind)),
		zap.String("path", path),
		zap.Int64("rows", n))
	return n, nil
}

// Load ingests one extract stream of the given kind.
func (l *Loader) Load(ctx context.Context, kind Kind, r io.Reader) (int64, error) {
	switch kind {
	case KindSuppliers:
		recs, err := ReadSuppliers(r)
		if err != nil {
			return 0, err
		}
		return l.store.UpsertSuppliers(ctx, recs)
	case KindMaterials:
		recs, err := ReadMaterials(r)
		if err != nil {
			return 0, err
		}
		return l.store.UpsertMaterials(ctx, recs)
	case KindOrderLines:
		recs, err := ReadOrderLines(r)
		if err != nil {
			return 0, err
		}
		return l.store.InsertOrderLines(ctx, recs)
	case KindIncidents:
		recs, err := ReadIncidents(r)
		if err != nil {
			return 0, err
		}
		return l.store.InsertIncidents(ctx, recs)
	case KindFXRates:
		recs, err := ReadFXRates(r)
		if err != nil {
			return 0, err
		}
		return l.store.InsertFXRates(ctx, recs)
	default:
		return 0, eris.Errorf("ingest: unknown extract kind %q", kind)
	}
}
