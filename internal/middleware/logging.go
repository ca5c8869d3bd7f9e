package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/better-wallet/multisig/internal/logger"
)

// Logging logs one line per request after it completes. Server errors log at
// ERROR, client errors at WARN. Headers are included, redacted, at DEBUG.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewStatusRecorder(w)

		next.ServeHTTP(rec, r)

		ctx := r.Context()
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.StatusCode,
			"bytes", rec.Bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", ClientIP(r),
		}

		l := logger.FromContext(ctx)
		switch {
		case rec.StatusCode >= http.StatusInternalServerError:
			l.Error("http request", attrs...)
		case rec.StatusCode >= http.StatusBadRequest:
			l.Warn("http request", attrs...)
		default:
			l.Info("http request", attrs...)
		}
		if l.Enabled(ctx, slog.LevelDebug) {
			l.Debug("http request headers", "headers", RedactHeaders(r.Header))
		}
	})
}
