package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	geojsonadapter "github.com/samirrijal/polysync/internal/adapters/geojson"
	"github.com/samirrijal/polysync/internal/adapters/http"
	natsadapter "github.com/samirrijal/polysync/internal/adapters/nats"
	"github.com/samirrijal/polysync/internal/adapters/postgres"
	"github.com/samirrijal/polysync/internal/adapters/valkey"
	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/ports"
	"github.com/samirrijal/polysync/internal/core/usecases"
	"github.com/samirrijal/polysync/internal/pkg/config"
	"github.com/samirrijal/polysync/internal/pkg/logging"
	"github.com/samirrijal/polysync/internal/pkg/metrics"
	"github.com/samirrijal/polysync/internal/pkg/telemetry"
)

// noBoundaries serves an empty dataset when boundaries are disabled.
type noBoundaries struct{}

func (noBoundaries) List(context.Context) ([]domain.BoundaryFeature, error) { return nil, nil }

func main() {
	cfg, err := config.Load("polysync-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	initial, err := cfg.Editor.Path()
	if err != nil {
		log.Fatalf("editor.initial_path: %v", err)
	}

	// Boundary dataset
	var (
		db   *postgres.DB
		repo ports.BoundaryRepository
	)
	switch cfg.Dataset.Source {
	case "postgres":
		db, err = postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		repo = postgres.NewBoundaryRepo(db, slog.Default())
		go reportPoolStats(ctx, db)
	case "file":
		repo = geojsonadapter.NewFileRepo(cfg.Dataset.Path, geojsonadapter.Decoder{
			IDProperty:   cfg.Dataset.IDProperty,
			NameProperty: cfg.Dataset.NameProperty,
			Logger:       slog.Default(),
		})
	default:
		repo = noBoundaries{}
	}

	// Cache
	var boundaryCache ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		cache = nil
	} else {
		defer cache.Close()
		boundaryCache = cache
	}

	// NATS
	var publisher ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Close()
		publisher = nc
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	// Use cases
	boundarySvc := usecases.NewBoundaryService(repo, boundaryCache, slog.Default())
	if n, err := boundarySvc.Load(ctx); err != nil {
		slog.Error("boundaries unavailable, serving without references", "source", cfg.Dataset.Source, "error", err)
	} else {
		slog.Info("boundaries ready", "source", cfg.Dataset.Source, "count", n)
	}

	sessionMgr := usecases.NewSessionManager(ctx, initial, usecases.SessionManagerOptions{
		QueueSize: cfg.Editor.QueueSize,
		Publisher: publisher,
		Logger:    slog.Default(),
	})
	defer sessionMgr.CloseAll()

	overlaySvc := usecases.NewOverlayService(boundarySvc, usecases.Viewport{
		Center: cfg.Map.Center(),
		Zoom:   cfg.Map.Zoom,
	}, slog.Default())

	deps := &http.Dependencies{
		Sessions:   sessionMgr,
		Boundaries: boundarySvc,
		Overlay:    overlaySvc,
		NATS:       natsConn,
		DB:         db,
		Cache:      cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "polysync API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped", "sessions", sessionMgr.Len())
}

// reportPoolStats copies pgx pool statistics into the db gauges.
func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		case <-ctx.Done():
			return
		}
	}
}
