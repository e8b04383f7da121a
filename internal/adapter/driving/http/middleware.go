package httphandler

import (
	"log/slog"
	"net/http"
	"time"
)

// responseTracker wraps http.ResponseWriter to capture the status code and the
// number of body bytes written.
type responseTracker struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rt *responseTracker) WriteHeader(status int) {
	rt.status = status
	rt.ResponseWriter.WriteHeader(status)
}

func (rt *responseTracker) Write(p []byte) (int, error) {
	n, err := rt.ResponseWriter.Write(p)
	rt.bytes += n
	return n, err
}

// loggingMiddleware logs one line per request: method, path, status, response
// size, and duration.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		tracker := &responseTracker{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(tracker, r)

		logger.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", tracker.status,
			"bytes", tracker.bytes,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

// recoveryMiddleware converts a handler panic into a logged 500 so one bad
// request cannot take the scan loop's process down with it.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("panic recovered",
					"panic", v,
					"method", r.Method,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
