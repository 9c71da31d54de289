package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/polysync/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 600 requests per minute per IP. WebSocket traffic is
	// one request per connection and is not limited here.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, 429, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")

	// Edit sessions
	v1.Post("/sessions", CreateSessionHandler(deps))
	v1.Get("/sessions", ListSessionsHandler(deps))
	v1.Get("/sessions/:id", GetSessionHandler(deps))
	v1.Get("/sessions/:id/path", SessionPathHandler(deps))
	v1.Get("/sessions/:id/path.geojson", SessionPathGeoJSONHandler(deps))
	v1.Get("/sessions/:id/overlay", timeout.NewWithContext(SessionOverlayHandler(deps), requestTimeout))
	v1.Delete("/sessions/:id", DeleteSessionHandler(deps))

	// Reference boundaries
	v1.Get("/boundaries", timeout.NewWithContext(ListBoundariesHandler(deps), requestTimeout))
	v1.Get("/boundaries/:id", GetBoundaryHandler(deps))
	v1.Post("/boundaries/reload", timeout.NewWithContext(ReloadBoundariesHandler(deps), requestTimeout))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.OpenAPIPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id", websocket.New(EditorHandler(deps)))
	app.Get("/ws/watch", websocket.New(WatchHandler(deps.NATS)))
}
