package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"practice-controlplane/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("metrics", fx.Provide(ProvideCollector))

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	LicensesCreatedTotal prometheus.Counter
	LicensesRevokedTotal prometheus.Counter
	ReconcileDuration    prometheus.Histogram
	ReconcileErrorsTotal prometheus.Counter

	FeedbackSubmittedTotal prometheus.Counter
	RatingAllocationsTotal prometheus.Counter

	WebhookEventsTotal *prometheus.CounterVec
}

func ProvideCollector(cfg *config.Config) *Collector {
	return NewCollector(prometheus.DefaultRegisterer, namespace(cfg.AppName))
}

func namespace(appName string) string {
	if appName == "" {
		return "practice"
	}
	return strings.ReplaceAll(appName, "-", "_")
}

func NewCollector(reg prometheus.Registerer, ns string) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		LicensesCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "license",
			Name:      "created_total",
			Help:      "Licenses created by seat reconciliation.",
		}),

		LicensesRevokedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "license",
			Name:      "revoked_total",
			Help:      "Licenses revoked by seat reconciliation.",
		}),

		ReconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "license",
			Name:      "reconcile_duration_seconds",
			Help:      "Seat reconciliation latency including lock wait.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),

		ReconcileErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "license",
			Name:      "reconcile_errors_total",
			Help:      "Seat reconciliations that failed and were rolled back.",
		}),

		FeedbackSubmittedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "rating",
			Name:      "feedback_submitted_total",
			Help:      "Appointment feedback submissions that were distributed.",
		}),

		RatingAllocationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "rating",
			Name:      "allocations_total",
			Help:      "Practitioner rating rows written.",
		}),

		WebhookEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Billing webhook deliveries by event type and outcome.",
		}, []string{"type", "result"}),
	}
}

func (c *Collector) ObserveReconcile(created, revoked int, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.ReconcileDuration.Observe(d.Seconds())
	if err != nil {
		c.ReconcileErrorsTotal.Inc()
		return
	}
	c.LicensesCreatedTotal.Add(float64(created))
	c.LicensesRevokedTotal.Add(float64(revoked))
}

func (c *Collector) ObserveFeedback(allocations int) {
	if c == nil {
		return
	}
	c.FeedbackSubmittedTotal.Inc()
	c.RatingAllocationsTotal.Add(float64(allocations))
}

func (c *Collector) ObserveWebhook(eventType, result string) {
	if c == nil {
		return
	}
	c.WebhookEventsTotal.WithLabelValues(eventType, result).Inc()
}

// Middleware records request count, latency and in-flight requests per route template.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if c == nil {
			ctx.Next()
			return
		}

		start := time.Now()
		c.InFlightGauge.Inc()
		defer c.InFlightGauge.Dec()

		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(ctx.Writer.Status())
		c.RequestsTotal.WithLabelValues(ctx.Request.Method, path, status).Inc()
		c.RequestDuration.WithLabelValues(ctx.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
