package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	// Registry backs the /metrics endpoint.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	requestsTotal     *prometheus.CounterVec
	closuresPublished prometheus.Counter
	payoutReads       *prometheus.CounterVec
	linksAdded        *prometheus.CounterVec
	configDiagnostics prometheus.Gauge
	storeErrors       *prometheus.CounterVec
	closurePending    prometheus.Gauge
}

// NewMetrics registers every collector in a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sales_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by method.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sales_http_requests_total",
				Help: "HTTP requests by status code.",
			},
			[]string{"code"},
		),
		closuresPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "sales_closures_published_total",
			Help: "Monthly closures published.",
		}),
		payoutReads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sales_payout_reads_total",
				Help: "Payout breakdowns served, by finalized state.",
			},
			[]string{"finalized"},
		),
		linksAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sales_marketplace_links_total",
				Help: "Marketplace link submissions by outcome.",
			},
			[]string{"outcome"},
		),
		configDiagnostics: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sales_config_diagnostics",
			Help: "Problems found in the last parsed tier configuration.",
		}),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sales_store_errors_total",
				Help: "Store failures by operation.",
			},
			[]string{"operation"},
		),
		closurePending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sales_closure_pending",
			Help: "1 while last month's closure is overdue.",
		}),
	}
}

func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
	m.requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *Metrics) IncrClosurePublished() {
	if m == nil {
		return
	}
	m.closuresPublished.Inc()
}

func (m *Metrics) IncrPayoutRead(finalized bool) {
	if m == nil {
		return
	}
	m.payoutReads.WithLabelValues(strconv.FormatBool(finalized)).Inc()
}

// IncrLink records a link submission; outcome is "added" or "duplicate".
func (m *Metrics) IncrLink(outcome string) {
	if m == nil {
		return
	}
	m.linksAdded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetConfigDiagnostics(n int) {
	if m == nil {
		return
	}
	m.configDiagnostics.Set(float64(n))
}

func (m *Metrics) IncrStoreError(operation string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(operation).Inc()
}

func (m *Metrics) SetClosurePending(pending bool) {
	if m == nil {
		return
	}
	v := 0.0
	if pending {
		v = 1
	}
	m.closurePending.Set(v)
}
