package quota

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/faraday/faraday/internal/logging"
	"github.com/faraday/faraday/internal/metrics"
	"github.com/faraday/faraday/pkg/protocol"
)

// RejectFunc writes the response for a rate-limited request.
type RejectFunc func(w http.ResponseWriter, r *http.Request)

// ClientKey identifies the caller: the X-Client-Info header when present,
// otherwise the remote IP.
func ClientKey(r *http.Request) string {
	if info := r.Header.Get("X-Client-Info"); info != "" {
		return "client:" + info
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// DefaultReject answers with the API error envelope.
func DefaultReject(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: "rate limit exceeded",
		Code:  http.StatusTooManyRequests,
	})
}

// RateLimitMiddleware returns middleware that enforces per-client rate
// limits. OPTIONS requests are never limited. reject may be nil.
func RateLimitMiddleware(limiter *RateLimiter, reject RejectFunc) func(http.Handler) http.Handler {
	if reject == nil {
		reject = DefaultReject
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Enabled() || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := ClientKey(r)
			if !limiter.Allow(key) {
				metrics.RecordRateLimitHit()
				logging.WithContext(r.Context()).Warn("rate limit exceeded", zap.String("client", key))
				w.Header().Set("Retry-After", strconv.Itoa(limiter.RetryAfter(key)))
				reject(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
