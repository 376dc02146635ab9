package storefront

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nyanglife/catshop/internal/gateway/clientip"
	"github.com/nyanglife/catshop/pkg/logger"
)

// Pages serves /products and /products/{category}.
type Pages struct {
	fetcher  Fetcher
	renderer *Renderer
	shell    *Shell
	wait     time.Duration
	resolver *clientip.Resolver
	logger   *slog.Logger
}

// NewPages creates the page handlers. wait bounds how long a category page
// waits for the product search before rendering the loading state. resolver
// picks the browser address forwarded to the proxy; nil trusts only loopback.
func NewPages(fetcher Fetcher, renderer *Renderer, shell *Shell, wait time.Duration, resolver *clientip.Resolver) *Pages {
	if shell == nil {
		shell = NewShell()
	}
	if wait <= 0 {
		wait = 15 * time.Second
	}
	if resolver == nil {
		resolver = clientip.Loopback()
	}
	return &Pages{
		fetcher:  fetcher,
		renderer: renderer,
		shell:    shell,
		wait:     wait,
		resolver: resolver,
		logger:   slog.Default().With("component", "storefront-pages"),
	}
}

func (p *Pages) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := p.renderer.RenderIndex(w, p.shell.State()); err != nil {
		p.logger.Error("failed to render index", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// Category renders the view for the slug in the path. Unknown slugs render
// the sentinel heading with status 404 and never reach the proxy.
func (p *Pages) Category(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	slug := r.PathValue("category")

	ctx, cancel := context.WithTimeout(r.Context(), p.wait)
	defer cancel()
	ctx = WithForwardedFor(ctx, p.resolver.Resolve(r))

	view := NewView(p.fetcher)
	select {
	case <-view.Route(ctx, slug):
	case <-ctx.Done():
		log.Warn("category page rendered before search settled", "slug", slug)
	}
	state := view.Snapshot()

	status := http.StatusOK
	if state.Status == StatusUnknown {
		status = http.StatusNotFound
	}

	var buf bytes.Buffer
	if err := p.renderer.RenderCategory(&buf, p.shell.State(), state); err != nil {
		log.Error("failed to render category page", "slug", slug, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
