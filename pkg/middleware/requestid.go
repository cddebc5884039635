package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID reuses the caller's X-Request-ID or generates a new one, echoes
// it on the response and stores it in the request context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// GetRequestID returns the request id stored by RequestID.
func GetRequestID(ctx context.Context) string {
	return logger.RequestID(ctx)
}

// Chain applies middleware so the first one listed is outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
