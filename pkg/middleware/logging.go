package middleware

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RequestLogger returns middleware that stamps each response with an
// X-Process-Time header (milliseconds) and writes a zap access log line.
// Pass nil logger to keep the header but skip logging.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code and defer the
			// timing header until the first write.
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK, start: start}

			next.ServeHTTP(wrapped, r)
			wrapped.ensureHeader()

			if logger == nil {
				return
			}
			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	start       time.Time
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ensureHeader()
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.ensureHeader()
	return rw.ResponseWriter.Write(b)
}

// ensureHeader sets X-Process-Time exactly once, before headers flush.
func (rw *responseWriter) ensureHeader() {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	elapsed := float64(time.Since(rw.start).Microseconds()) / 1000.0
	rw.Header().Set("X-Process-Time", fmt.Sprintf("%.2f", elapsed))
}
