// internal/app/system/reqlog/reqlog.go
package reqlog

import (
	"context"
	"net/http"
	"time"

	"github.com/projectgoat/projectgoat/internal/app/system/network"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ctxKey is the context key type for request-scoped values.
type ctxKey int

const ctxKeyRequestID ctxKey = iota

// Header carries the request ID back to the client and is honored on the
// way in, so upstream proxies can supply their own correlation IDs.
const Header = "X-Request-ID"

// RequestID returns the request ID from the context, or "" if the
// middleware did not run.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// statusWriter captures the response status code for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Middleware assigns each request an ID and logs method, path, status,
// duration, and client IP when the request completes.
func Middleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(Header)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(Header, requestID)

			ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(sw, r.WithContext(ctx))

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("http request",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.String("ip", network.GetClientIP(r)),
			)
		})
	}
}
