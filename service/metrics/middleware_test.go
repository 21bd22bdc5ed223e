package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsMiddleware_ErrorClass(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	failing := HTTPMetricsMiddleware(m, "/quote")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetErrorClass(w, "degenerate_state")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	ok := HTTPMetricsMiddleware(m, "/quote")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))

	w := httptest.NewRecorder()
	failing.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/quote", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	ok.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/quote", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/quote", "GET", "5xx", "degenerate_state")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/quote", "GET", "2xx", ErrorClassNone)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/quote", "GET", "5xx", "upstream")))
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	called := false
	h := HTTPMetricsMiddleware(nil, "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		SetErrorClass(w, "upstream")
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, w.Code)
}
