package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	balance          prometheus.Gauge
	transfers        prometheus.Counter
	receiptStatus    *prometheus.GaugeVec

	mu         sync.Mutex
	lastStatus string
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),

		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Chain operations by kind and result",
			},
			[]string{"op", "result"},
		),
		operationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Chain operation round trip time",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		balance: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "token_balance",
				Help:      "Last observed token balance in whole tokens",
			},
		),
		transfers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_submitted_total",
				Help:      "Transfers acknowledged by the node",
			},
		),
		receiptStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "receipt_status",
				Help:      "1 for the status of the last fetched receipt",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.operations,
		m.operationLatency,
		m.balance,
		m.transfers,
		m.receiptStatus,
	)
	return m
}

func (m *PrometheusMetrics) ObserveOperation(op, result string, latency time.Duration) {
	m.operations.WithLabelValues(op, result).Inc()
	m.operationLatency.WithLabelValues(op).Observe(latency.Seconds())
}

func (m *PrometheusMetrics) SetBalance(value float64) {
	m.balance.Set(value)
}

func (m *PrometheusMetrics) IncTransfersSubmitted() {
	m.transfers.Inc()
}

// SetReceiptStatus moves the single 1 to the new status label.
func (m *PrometheusMetrics) SetReceiptStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastStatus != "" && m.lastStatus != status {
		m.receiptStatus.WithLabelValues(m.lastStatus).Set(0)
	}
	m.receiptStatus.WithLabelValues(status).Set(1)
	m.lastStatus = status
}

// Registry exposes the underlying registry for tests.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
