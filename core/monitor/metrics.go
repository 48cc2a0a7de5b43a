package monitor

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route template
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarcycle_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solarcycle_http_request_duration_seconds",
		Help:    "HTTP request latency distributions.",
		Buckets: []float64{0.05, 0.1, 0.3, 0.5, 1.0, 2.0, 5.0},
	}, []string{"method", "path"})

	TriageEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarcycle_triage_evaluations_total",
		Help: "Triage classifications by outcome.",
	}, []string{"result"})

	AssetTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarcycle_asset_transitions_total",
		Help: "Committed asset status transitions by target status.",
	}, []string{"to"})

	// LedgerCalls counts external ledger calls by operation and result (ok, error, disabled)
	LedgerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarcycle_ledger_calls_total",
		Help: "External ledger calls by operation and result.",
	}, []string{"op", "result"})

	OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solarcycle_ledger_outbox_pending",
		Help: "Ledger outbox rows waiting for delivery after the last drain.",
	})

	RecoveredKg = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarcycle_material_recovered_kg_total",
		Help: "Kilograms of material recovered by recycling.",
	}, []string{"material"})

	Purchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarcycle_purchases_total",
		Help: "Settlement attempts by kind and final order status.",
	}, []string{"kind", "status"})
)

// EchoMiddleware records request count and latency per route template.
func EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				// render now so the final status is known
				c.Error(err)
			}
			path := c.Path()
			if path == "" {
				return nil
			}
			status := c.Response().Status
			HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
