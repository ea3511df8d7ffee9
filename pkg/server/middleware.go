package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/your-org/ci-breakage-dashboard/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

type requestIDContextKey struct{}

// NormalizeRequestID keeps a client supplied UUIDv4 and replaces anything
// else with a fresh one
func NormalizeRequestID(value string) string {
	if parsed, err := uuid.Parse(value); err == nil && parsed.Version() == 4 {
		return value
	}
	return uuid.NewString()
}

// RequestIDFromContext returns the request id set by the middleware
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := NormalizeRequestID(r.Header.Get(requestIDHeader))
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContextKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		entry := logger.WithFields(logrus.Fields{
			"request_id": RequestIDFromContext(r.Context()),
			"method":     r.Method,
			"path":       route,
			"raw_path":   r.URL.Path,
			"query":      r.URL.RawQuery,
			"status":     rec.status,
			"latency_ms": time.Since(start).Milliseconds(),
		})
		switch {
		case rec.status >= 500:
			entry.Error("http request completed")
		case rec.status >= 400:
			entry.Warn("http request completed")
		default:
			entry.Debug("http request completed")
		}
	})
}
