package metrics

import (
	"net/http"
	"time"
)

// ErrorClassNone labels requests that completed without a failure response.
const ErrorClassNone = "none"

// HTTPMetricsMiddleware records duration and count per route, method, status
// class and error class. Handlers report the error class with SetErrorClass.
func HTTPMetricsMiddleware(m *Metrics, handlerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				errorClass:     ErrorClassNone,
			}

			next.ServeHTTP(rec, r)

			m.RecordHTTPRequest(handlerName, r.Method, rec.statusCode, rec.errorClass, time.Since(start).Seconds())
		})
	}
}

// SetErrorClass tags the in-flight request with class. It is a no-op when w
// was not wrapped by HTTPMetricsMiddleware.
func SetErrorClass(w http.ResponseWriter, class string) {
	if rec, ok := w.(*statusRecorder); ok && class != "" {
		rec.errorClass = class
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	errorClass string
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
