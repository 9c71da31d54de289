//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/polysync/internal/adapters/http"
	"github.com/samirrijal/polysync/internal/adapters/postgres"
	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/usecases"
	"github.com/samirrijal/polysync/internal/pkg/config"
)

// setupTestDB connects to the test database. The boundaries migration must
// already be applied.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("polysync-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	db := &postgres.DB{Pool: pool}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	return db
}

// setupTestDeps loads boundaries from the real table, no cache.
func setupTestDeps(t *testing.T, db *postgres.DB) *http.Dependencies {
	repo := postgres.NewBoundaryRepo(db, nil)
	boundaries := usecases.NewBoundaryService(repo, nil, nil)
	if _, err := boundaries.Load(context.Background()); err != nil {
		t.Fatalf("load boundaries: %v", err)
	}

	sessions := usecases.NewSessionManager(context.Background(), initialPath, usecases.SessionManagerOptions{})
	t.Cleanup(sessions.CloseAll)

	return &http.Dependencies{
		Sessions:   sessions,
		Boundaries: boundaries,
		Overlay: usecases.NewOverlayService(boundaries, usecases.Viewport{
			Center: domain.Vertex{Lat: 40.730610, Lng: -73.935242},
			Zoom:   12,
		}, nil),
		DB: db,
	}
}

// seedTestBoundaries upserts test features through the repository.
func seedTestBoundaries(t *testing.T, db *postgres.DB, features ...domain.BoundaryFeature) {
	ctx := context.Background()
	if err := postgres.NewBoundaryRepo(db, nil).UpsertBatch(ctx, features); err != nil {
		t.Fatalf("seed boundaries: %v", err)
	}
	t.Cleanup(func() {
		for _, f := range features {
			_, _ = db.Pool.Exec(context.Background(), `DELETE FROM boundaries WHERE feature_key = $1`, f.ID)
		}
	})
}

// TestGetBoundary_Integration_WithRealDB round-trips a polygon through PostGIS.
func TestGetBoundary_Integration_WithRealDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	seedTestBoundaries(t, db,
		domain.BoundaryFeature{
			ID:         "TEST01",
			Name:       "Test Heights",
			Path:       square(40.690, -74.000, 40.700, -73.990),
			Properties: map[string]any{"BoroName": "Brooklyn"},
		},
	)

	app := setupApp(setupTestDeps(t, db))

	req := httptest.NewRequest("GET", "/v1/boundaries/TEST01", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var f domain.BoundaryFeature
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Name != "Test Heights" {
		t.Errorf("expected Test Heights, got %s", f.Name)
	}
	// The closing vertex added for storage is dropped on the way back.
	if f.Path.Len() != 4 {
		t.Errorf("expected 4 vertices, got %d", f.Path.Len())
	}
	if f.Properties["BoroName"] != "Brooklyn" {
		t.Errorf("expected properties to survive, got %v", f.Properties)
	}
}

// TestListBoundaries_Integration_BBox tests bounding box filtering over a
// dataset loaded from the database.
func TestListBoundaries_Integration_BBox(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	seedTestBoundaries(t, db,
		domain.BoundaryFeature{ID: "TEST10", Name: "Inside", Path: square(10.00, 10.00, 10.01, 10.01)},
		domain.BoundaryFeature{ID: "TEST11", Name: "Outside", Path: square(20.00, 20.00, 20.01, 20.01)},
	)

	app := setupApp(setupTestDeps(t, db))

	req := httptest.NewRequest("GET", "/v1/boundaries?min_lat=9.9&min_lng=9.9&max_lat=10.1&max_lng=10.1", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data []domain.BoundaryFeature `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Data) != 1 || result.Data[0].ID != "TEST10" {
		t.Errorf("expected only TEST10, got %+v", result.Data)
	}
}

// TestReady_Integration_WithRealDB checks readiness reports the database.
func TestReady_Integration_WithRealDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	app := setupApp(setupTestDeps(t, db))

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Checks map[string]string `json:"checks"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Checks["database"] != "ok" {
		t.Errorf("expected database ok, got %q", result.Checks["database"])
	}
}
