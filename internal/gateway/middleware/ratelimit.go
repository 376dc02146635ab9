// Package middleware holds the HTTP middleware specific to the public
// storefront server: CORS for the JSON API and per-client rate limiting of
// the search proxy.
package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/nyanglife/catshop/internal/gateway/clientip"
	"github.com/nyanglife/catshop/internal/gateway/ratelimit"
	"github.com/nyanglife/catshop/pkg/logger"
)

// RateLimit rejects requests under /api/ with 429 once the client address
// has used up its tokens. Pages and health checks are not limited. The
// address comes from resolver; nil trusts only loopback proxies.
func RateLimit(limiter *ratelimit.Limiter, resolver *clientip.Resolver) func(http.Handler) http.Handler {
	if resolver == nil {
		resolver = clientip.Loopback()
	}
	retryAfter := strconv.Itoa(int(math.Ceil(limiter.RetryAfter().Seconds())))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			client := resolver.Resolve(r)
			if !limiter.Allow(client) {
				logger.FromContext(r.Context()).Warn("rate limit exceeded", "client", client, "path", r.URL.Path)
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
