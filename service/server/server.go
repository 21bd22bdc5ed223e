package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/subpay/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultWriteTimeout bounds a response, including a synchronous balance sweep.
const DefaultWriteTimeout = 5 * time.Minute

// Version is reported by /health and set at build time with -ldflags.
var Version = "dev"

// Server represents the HTTP server for the payment service.
type Server struct {
	addr         string
	writeTimeout time.Duration
	payments     PaymentService
	balances     BalanceService
	gatherer     prometheus.Gatherer
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, no request metrics are recorded and /metrics is not served.
func New(addr string, payments PaymentService, balances BalanceService, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		writeTimeout: DefaultWriteTimeout,
		payments:     payments,
		balances:     balances,
		gatherer:     prometheus.DefaultGatherer,
		metrics:      m,
		logger:       logger,
	}
}

// WithGatherer serves /metrics from g instead of the default registry.
func (s *Server) WithGatherer(g prometheus.Gatherer) *Server {
	s.gatherer = g
	return s
}

// WithWriteTimeout sets the response write timeout. Non-positive values are ignored.
func (s *Server) WithWriteTimeout(d time.Duration) *Server {
	if d > 0 {
		s.writeTimeout = d
	}
	return s
}

// Handler returns the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	// Payment routes
	route("POST /api/v1/payments/transaction", "/api/v1/payments/transaction", handleCreatePaymentTransaction(s.payments, s.logger))
	route("GET /api/v1/fee-quote", "/api/v1/fee-quote", handleFeeQuote(s.payments, s.logger))
	route("POST /api/v1/fee-quote", "/api/v1/fee-quote", handleFeeQuote(s.payments, s.logger))

	// Notification routes
	route("GET /api/v1/notifications/low-balance", "/api/v1/notifications/low-balance", handleLowBalanceSweep(s.balances, s.logger))
	route("POST /api/v1/notifications/low-balance", "/api/v1/notifications/low-balance", handleLowBalanceSweep(s.balances, s.logger))
	route("POST /api/v1/notifications/payment-failed", "/api/v1/notifications/payment-failed", handlePaymentFailed(s.balances, s.logger))
	route("POST /api/v1/notifications/receipt", "/api/v1/notifications/receipt", handleReceipt(s.balances, s.logger))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "version": Version}, http.StatusOK)
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.server = s.httpServer()

	s.logger.Info("starting HTTP server", "addr", s.addr, "write_timeout", s.writeTimeout)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
