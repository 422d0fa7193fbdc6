package middleware

import (
	"net/http"
	"time"

	"github.com/vazzup/indian-palmistry-ai-sub000/internal/logging"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/metrics"
)

// LoggingMiddleware logs HTTP requests and records request metrics
func LoggingMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(recorder, r)

			duration := time.Since(start)
			metrics.RecordHTTPRequest(r.Method, r.URL.Path, recorder.statusCode, duration.Seconds())
			metrics.GetGlobalStats().RecordRequest(r.URL.Path, duration)

			logger.Info("HTTP request", map[string]interface{}{
				"request_id":  GetRequestID(r.Context()),
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": recorder.statusCode,
				"duration_ms": duration.Milliseconds(),
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.UserAgent(),
			})
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
