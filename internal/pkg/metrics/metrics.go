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
		Namespace: "darkhorizon",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "darkhorizon",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "darkhorizon",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Raster metrics
	RasterLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darkhorizon",
		Subsystem: "raster",
		Name:      "loads_total",
		Help:      "Raster fetch+decode attempts by outcome",
	}, []string{"raster", "outcome"})

	RasterLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "darkhorizon",
		Subsystem: "raster",
		Name:      "load_duration_seconds",
		Help:      "Duration of raster fetch+decode",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"raster"})

	Samples = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darkhorizon",
		Subsystem: "sampler",
		Name:      "classifications_total",
		Help:      "Point classifications by outcome (hit, out_of_domain, unavailable, cancelled)",
	}, []string{"outcome"})

	// Query channel metrics
	ChannelTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darkhorizon",
		Subsystem: "query",
		Name:      "triggers_total",
		Help:      "Debounced triggers per query channel",
	}, []string{"channel"})

	ChannelSuperseded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darkhorizon",
		Subsystem: "query",
		Name:      "superseded_total",
		Help:      "Pending or in-flight work cancelled before delivery",
	}, []string{"channel"})

	ChannelDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darkhorizon",
		Subsystem: "query",
		Name:      "delivered_total",
		Help:      "Results delivered to the session",
	}, []string{"channel"})

	ChannelFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darkhorizon",
		Subsystem: "query",
		Name:      "failures_total",
		Help:      "Worker failures that were not cancellations",
	}, []string{"channel"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "darkhorizon",
		Subsystem: "ws",
		Name:      "active_sessions",
		Help:      "Current number of viewport WebSocket sessions",
	})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "darkhorizon",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency of third-party elevation and geocoding calls",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"service", "outcome"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darkhorizon",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darkhorizon",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "darkhorizon",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "darkhorizon",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "darkhorizon",
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

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
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
