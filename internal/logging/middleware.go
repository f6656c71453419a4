package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// quietPaths are polled by probes and scrapers and only logged at debug.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// Middleware puts a request scoped logger into the request context and logs
// one entry per completed request. Server errors are logged at Error, client
// errors at Warn.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLogger := logger.WithFields(Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			ctx := (&CtxLogger{reqLogger}).WithContext(r.Context())
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := Fields{
				"status":     status,
				"bytes":      ww.BytesWritten(),
				"latency_ms": float64(time.Since(start).Microseconds()) / 1000.0,
				"remote":     r.RemoteAddr,
			}
			switch {
			case status >= http.StatusInternalServerError:
				reqLogger.Error("Request failed", fields)
			case status >= http.StatusBadRequest:
				reqLogger.Warn("Request rejected", fields)
			case quietPaths[r.URL.Path]:
				reqLogger.Debug("Request completed", fields)
			default:
				reqLogger.Info("Request completed", fields)
			}
		})
	}
}
