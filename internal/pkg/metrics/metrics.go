package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polysync",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "polysync",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "polysync",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Edit synchronization
	EditsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polysync",
		Subsystem: "edit",
		Name:      "applied_total",
		Help:      "Path replacements performed by the edit synchronizer",
	}, []string{"trigger"})

	StaleEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polysync",
		Subsystem: "edit",
		Name:      "stale_events_total",
		Help:      "Edit triggers received while no geometry was attached",
	}, []string{"trigger"})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "polysync",
		Subsystem: "edit",
		Name:      "active_subscriptions",
		Help:      "Geometry listeners currently registered across all sessions",
	})

	LifecycleRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polysync",
		Subsystem: "edit",
		Name:      "lifecycle_rejections_total",
		Help:      "Attach/detach notifications rejected by the binding controller",
	}, []string{"reason"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "polysync",
		Subsystem: "edit",
		Name:      "active_sessions",
		Help:      "Edit sessions currently open",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "polysync",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	// Boundary dataset
	BoundariesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "polysync",
		Subsystem: "boundaries",
		Name:      "loaded",
		Help:      "Reference polygons currently indexed",
	})

	BoundariesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polysync",
		Subsystem: "boundaries",
		Name:      "skipped_total",
		Help:      "Malformed boundary features skipped",
	}, []string{"stage"})

	OverlayRenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "polysync",
		Subsystem: "overlay",
		Name:      "render_duration_seconds",
		Help:      "Time spent building a render frame",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polysync",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polysync",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "polysync",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "polysync",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "polysync",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics copies pool statistics into the db gauges. It accepts
// anything shaped like *pgxpool.Stat so this package stays free of pgx.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
