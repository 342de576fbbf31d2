package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestRecorder receives one observation per completed request. Satisfied
// by handler.Metrics; kept as an interface so the middleware package does not
// depend on the metrics implementation.
type RequestRecorder interface {
	RecordRequest(method, path, status string, duration time.Duration)
}

// Logging logs every request with a status-scaled level and feeds the
// request recorder. Uses chi's response writer wrapper to capture the
// status and bytes written.
func Logging(logger *slog.Logger, recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			status := wrapped.Status()
			if status == 0 {
				status = http.StatusOK
			}

			if recorder != nil {
				recorder.RecordRequest(r.Method, r.URL.Path, strconv.Itoa(status), duration)
			}

			logFn := logger.Info
			if status >= 500 {
				logFn = logger.Error
			} else if status >= 400 {
				logFn = logger.Warn
			}

			logFn("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", wrapped.BytesWritten(),
				"duration_ms", duration.Milliseconds(),
				"correlation_id", GetCorrelationID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}
