package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nyanglife/catshop/internal/gateway/clientip"
	"github.com/nyanglife/catshop/internal/gateway/ratelimit"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimitOnlyAPI(t *testing.T) {
	h := RateLimit(ratelimit.New(1, time.Minute), nil)(okHandler)

	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("/api/products?keyword=a").Code)
	limited := do("/api/products?keyword=a")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, limited.Body.String())

	assert.Equal(t, http.StatusOK, do("/products/food").Code)
	assert.Equal(t, http.StatusOK, do("/health/live").Code)
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	limiter := ratelimit.New(2, time.Minute)
	h := RateLimit(limiter, clientip.Loopback())(okHandler)

	allowed := 0
	for i := range 100 {
		req := httptest.NewRequest(http.MethodGet, "/api/products?keyword=a", nil)
		req.RemoteAddr = "198.51.100.20:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}

	assert.Equal(t, 2, allowed)
	assert.Equal(t, 1, limiter.Len())
}

func TestRateLimitTrustsLoopbackProxy(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute)
	h := RateLimit(limiter, nil)(okHandler)

	do := func(xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/products?keyword=a", nil)
		req.RemoteAddr = "127.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("203.0.113.9"))
	assert.Equal(t, http.StatusOK, do("203.0.113.10"))
	assert.Equal(t, http.StatusTooManyRequests, do("1.1.1.1, 203.0.113.9"))
	assert.Equal(t, 2, limiter.Len())
}

func TestCORS(t *testing.T) {
	h := CORS(NewCORSConfig([]string{"https://nyang.example"}))(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://nyang.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://nyang.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://nyang.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
