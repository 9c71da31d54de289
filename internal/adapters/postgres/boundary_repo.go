package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	geojson "github.com/paulmach/go.geojson"

	geojsonadapter "github.com/samirrijal/polysync/internal/adapters/geojson"
	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/pkg/metrics"
)

// BoundaryRepo implements ports.BoundaryRepository and ports.BoundaryWriter
// over the PostGIS boundaries table.
type BoundaryRepo struct {
	db     *DB
	logger *slog.Logger
}

// NewBoundaryRepo creates a new BoundaryRepo.
func NewBoundaryRepo(db *DB, logger *slog.Logger) *BoundaryRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &BoundaryRepo{db: db, logger: logger}
}

// List returns every stored boundary ordered by key. Rows whose geometry
// cannot be read back as a polygon are skipped.
func (r *BoundaryRepo) List(ctx context.Context) ([]domain.BoundaryFeature, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT feature_key, name, ST_AsGeoJSON(geom), COALESCE(properties, '{}')
		FROM boundaries
		ORDER BY feature_key
	`)
	if err != nil {
		return nil, fmt.Errorf("query boundaries: %w", err)
	}
	defer rows.Close()

	var out []domain.BoundaryFeature
	for rows.Next() {
		var (
			key, name string
			geomJSON  []byte
			propsJSON []byte
		)
		if err := rows.Scan(&key, &name, &geomJSON, &propsJSON); err != nil {
			return nil, fmt.Errorf("scan boundary: %w", err)
		}

		g, err := geojson.UnmarshalGeometry(geomJSON)
		if err != nil {
			metrics.BoundariesSkipped.WithLabelValues("parse").Inc()
			r.logger.Warn("skipping boundary row", "key", key, "error", err)
			continue
		}
		path, err := geojsonadapter.PathFromGeometry(g)
		if err != nil {
			metrics.BoundariesSkipped.WithLabelValues("parse").Inc()
			r.logger.Warn("skipping boundary row", "key", key, "error", err)
			continue
		}

		var props map[string]any
		_ = json.Unmarshal(propsJSON, &props)

		out = append(out, domain.BoundaryFeature{
			ID:         key,
			Name:       name,
			Path:       path,
			Properties: props,
		})
	}
	return out, rows.Err()
}

// UpsertBatch inserts or updates many boundaries using pgx.Batch.
func (r *BoundaryRepo) UpsertBatch(ctx context.Context, features []domain.BoundaryFeature) error {
	if len(features) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, f := range features {
		geomJSON, err := geojsonadapter.PathGeometry(f.Path).MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.ID, err)
		}
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return fmt.Errorf("encode %s properties: %w", f.ID, err)
		}
		batch.Queue(`
			INSERT INTO boundaries (feature_key, name, geom, properties)
			VALUES ($1, $2, ST_SetSRID(ST_GeomFromGeoJSON($3), 4326), $4)
			ON CONFLICT (feature_key) DO UPDATE
			SET name = EXCLUDED.name, geom = EXCLUDED.geom,
			    properties = EXCLUDED.properties, updated_at = NOW()
		`, f.ID, f.Name, string(geomJSON), props)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range features {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// Count returns the number of stored boundaries.
func (r *BoundaryRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM boundaries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count boundaries: %w", err)
	}
	return n, nil
}
