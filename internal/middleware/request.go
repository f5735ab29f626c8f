package middleware

import (
	"context"
	"net/http"
	"time"

	"fallwatch/internal/logger"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id on requests and responses.
const RequestIDHeader = "X-Request-ID"

type contextKey struct{}

// RequestID tags every request with an id, reusing the caller's X-Request-ID
// when present, and logs the request once it completes.
func RequestID(logger *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), contextKey{}, id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))

		logger.Info("%s %s [%s] %v", r.Method, r.URL.Path, id, time.Since(start).Round(time.Millisecond))
	})
}

// RequestIDFromContext returns the id assigned by RequestID, or "" outside it.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
