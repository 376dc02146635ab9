// Package router wires the storefront server's routes and middleware.
package router

import (
	"net/http"
	"time"

	"github.com/nyanglife/catshop/internal/gateway/clientip"
	gwmw "github.com/nyanglife/catshop/internal/gateway/middleware"
	"github.com/nyanglife/catshop/internal/gateway/ratelimit"
	"github.com/nyanglife/catshop/internal/products/handler"
	"github.com/nyanglife/catshop/internal/storefront"
	"github.com/nyanglife/catshop/pkg/health"
	"github.com/nyanglife/catshop/pkg/metrics"
	pkgmw "github.com/nyanglife/catshop/pkg/middleware"
)

// Options configures the middleware. Nil Limiter or Metrics disables that
// layer; a zero RequestTimeout disables the timeout. A nil Resolver trusts
// only loopback proxies.
type Options struct {
	Limiter        *ratelimit.Limiter
	Resolver       *clientip.Resolver
	Metrics        *metrics.Metrics
	CORS           gwmw.CORSConfig
	RequestTimeout time.Duration
}

// New builds the full HTTP handler.
//
// Route table:
//
//	GET    /                        → redirect to /products
//	GET    /products                → category index page
//	GET    /products/{category}     → category product page
//	GET    /api/products?keyword=   → signed upstream search (JSON)
//	GET    /health/live, /health/ready
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → RateLimit → Timeout → mux
func New(products *handler.Handler, pages *storefront.Pages, checker *health.Checker, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", http.RedirectHandler("/products", http.StatusFound))
	mux.HandleFunc("GET /products", pages.Index)
	mux.HandleFunc("GET /products/{category}", pages.Category)

	mux.HandleFunc("GET /api/products", products.Search)

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if opts.RequestTimeout > 0 {
		chain = pkgmw.Timeout(opts.RequestTimeout)(chain)
	}
	if opts.Limiter != nil {
		chain = gwmw.RateLimit(opts.Limiter, opts.Resolver)(chain)
	}
	if opts.Metrics != nil {
		chain = pkgmw.Metrics(opts.Metrics)(chain)
	}
	chain = gwmw.CORS(opts.CORS)(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}

// NewAdmin builds the operator routes served on the private metrics
// listener, never on the public port:
//
//	GET    /admin/cache/stats       → response cache counters
//	POST   /admin/cache/invalidate  → drop cached search responses
func NewAdmin(products *handler.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/cache/stats", products.CacheStats)
	mux.HandleFunc("POST /admin/cache/invalidate", products.CacheInvalidate)
	return pkgmw.RequestID(mux)
}
