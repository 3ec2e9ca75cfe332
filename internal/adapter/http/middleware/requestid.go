package middleware

import (
	"net/http"

	wrap "github.com/adilzhan-b/ride-dispatch/pkg/logger/wrapper"
	"github.com/adilzhan-b/ride-dispatch/pkg/uuid"
)

const requestIDHeader = "X-Request-Id"

// RequestID attaches a request id to the context and echoes it back in the
// response. An inbound X-Request-Id is honoured so correlation survives
// proxies and retries.
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.MustNew().String()
		}

		w.Header().Set(requestIDHeader, requestID)

		ctx := wrap.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
