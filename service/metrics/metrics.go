package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Fee quote Metrics
	feeQuotesTotal    *prometheus.CounterVec
	solPriceUSD       prometheus.Gauge
	feeLamports       prometheus.Histogram
	transactionsBuilt *prometheus.CounterVec

	// Balance sweep Metrics
	sweepRecordsTotal *prometheus.CounterVec
	sweepDuration     prometheus.Histogram

	// Notification Metrics
	notificationsPublished *prometheus.CounterVec
	notificationDuration   *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),

		// Fee quote Metrics
		feeQuotesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fee_quotes_total",
				Help: "Total number of fee quotes by outcome (ok, cached, zero_reserve, malformed, unavailable)",
			},
			[]string{"outcome"},
		),
		solPriceUSD: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sol_price_usd",
				Help: "Last SOL price derived from pool reserves",
			},
		),
		feeLamports: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "payment_fee_lamports",
				Help:    "Fee lamports attached to built payment transactions",
				Buckets: prometheus.ExponentialBuckets(1e5, 4, 10),
			},
		),
		transactionsBuilt: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_transactions_built_total",
				Help: "Total number of payment transactions assembled by status",
			},
			[]string{"status"},
		),

		// Balance sweep Metrics
		sweepRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balance_sweep_records_total",
				Help: "Subscription records processed by balance sweeps by result (sufficient, insufficient, failed, skipped)",
			},
			[]string{"result"},
		),
		sweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "balance_sweep_duration_seconds",
				Help:    "Duration of a full balance sweep in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 900},
			},
		),

		// Notification Metrics
		notificationsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_published_total",
				Help: "Total number of notification events published",
			},
			[]string{"kind", "status"},
		),
		notificationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notification_publish_duration_seconds",
				Help:    "Duration of notification publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"kind"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status", "error_class"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status", "error_class"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// Fee quote metric helpers

// RecordFeeQuote records the outcome of a fee quote.
func (m *Metrics) RecordFeeQuote(outcome string) {
	m.feeQuotesTotal.WithLabelValues(outcome).Inc()
}

// RecordSOLPrice records the last derived SOL price.
func (m *Metrics) RecordSOLPrice(price float64) {
	m.solPriceUSD.Set(price)
}

// RecordTransactionBuilt records a payment transaction assembly attempt.
func (m *Metrics) RecordTransactionBuilt(status string, lamports uint64) {
	m.transactionsBuilt.WithLabelValues(status).Inc()
	if status == "success" {
		m.feeLamports.Observe(float64(lamports))
	}
}

// Balance sweep metric helpers

// RecordSweepRecord records the classification of one subscription record.
func (m *Metrics) RecordSweepRecord(result string) {
	m.sweepRecordsTotal.WithLabelValues(result).Inc()
}

// RecordSweepDuration records the duration of a full sweep.
func (m *Metrics) RecordSweepDuration(duration float64) {
	m.sweepDuration.Observe(duration)
}

// Notification metric helpers

// RecordNotification records a notification publish operation.
func (m *Metrics) RecordNotification(kind, status string, duration float64) {
	m.notificationsPublished.WithLabelValues(kind, status).Inc()
	m.notificationDuration.WithLabelValues(kind).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration. errorClass separates
// failures that share a status, such as degenerate ledger state and upstream outages.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, errorClass string, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status, errorClass).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status, errorClass).Inc()
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
