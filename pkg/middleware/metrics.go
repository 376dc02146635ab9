package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nyanglife/catshop/pkg/metrics"
)

// routeLabels are the only path label values besides the category pattern;
// anything else is recorded as "other" to keep label cardinality fixed.
var routeLabels = map[string]bool{
	"/":                        true,
	"/products":                true,
	"/api/products":            true,
	"/api/analytics":           true,
	"/api/analytics/snapshots": true,
	"/health/live":             true,
	"/health/ready":            true,
}

// Metrics records request count, latency and the in-flight gauge.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			path := routeLabel(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }

func routeLabel(path string) string {
	if rest, ok := strings.CutPrefix(path, "/products/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/products/{category}"
	}
	if routeLabels[path] {
		return path
	}
	return "other"
}
