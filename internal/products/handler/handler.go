// Package handler serves the product search proxy endpoint and the response
// cache admin endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nyanglife/catshop/internal/analytics"
	"github.com/nyanglife/catshop/internal/coupang"
	"github.com/nyanglife/catshop/internal/products/cache"
	apperrors "github.com/nyanglife/catshop/pkg/errors"
	"github.com/nyanglife/catshop/pkg/logger"
	"github.com/nyanglife/catshop/pkg/metrics"
	"github.com/nyanglife/catshop/pkg/middleware"
	"github.com/nyanglife/catshop/pkg/tracing"
)

// Tracker receives one event per search call.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

// Config wires optional collaborators. Only Source is required.
type Config struct {
	Source    coupang.Source
	Mode      string
	Cache     *cache.ResponseCache
	Collector Tracker
	Metrics   *metrics.Metrics
}

type Handler struct {
	source    coupang.Source
	mode      string
	cache     *cache.ResponseCache
	collector Tracker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(cfg Config) *Handler {
	return &Handler{
		source:    cfg.Source,
		mode:      cfg.Mode,
		cache:     cfg.Cache,
		collector: cfg.Collector,
		metrics:   cfg.Metrics,
		logger:    slog.Default().With("component", "products-handler"),
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// Search handles GET /api/products?keyword=. A successful upstream body is
// written back unchanged.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		h.finish(ctx, keyword, analytics.OutcomeInvalid, http.StatusBadRequest, 0, false, start)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: coupang.MsgKeywordRequired})
		return
	}

	ctx, span := tracing.Start(ctx, "product_search", middleware.GetRequestID(ctx))
	span.SetAttr("keyword", keyword)
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()

	var (
		body     json.RawMessage
		cacheHit bool
		err      error
	)
	if h.cache != nil {
		lookupCtx, lookup := tracing.StartChild(ctx, "cache.lookup")
		body, cacheHit, err = h.cache.GetOrFetch(lookupCtx, keyword, func(fetchCtx context.Context) (json.RawMessage, error) {
			return h.source.Search(fetchCtx, keyword)
		})
		lookup.SetAttr("hit", cacheHit)
		lookup.End()
		h.countCache(cacheHit)
	} else {
		body, err = h.source.Search(ctx, keyword)
	}

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) && !errors.Is(err, apperrors.ErrCanceled) {
		err = apperrors.Canceled(err)
	}
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		resp := errorResponse{Error: apperrors.PublicMessage(err)}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			resp.Detail = appErr.Detail
		}
		log.Warn("product search failed",
			"keyword", keyword,
			"status", status,
			"error", err,
		)
		span.SetAttr("status", status)
		h.finish(ctx, keyword, outcomeOf(err), status, 0, false, start)
		h.writeJSON(w, status, resp)
		return
	}

	count := resultCount(body)
	log.Info("product search completed",
		"keyword", keyword,
		"results", count,
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.finish(ctx, keyword, analytics.OutcomeOK, http.StatusOK, count, cacheHit, start)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "caching is disabled"})
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "cache invalidation failed"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) finish(ctx context.Context, keyword, outcome string, status, count int, cacheHit bool, start time.Time) {
	if h.metrics != nil {
		h.metrics.ProductSearchesTotal.WithLabelValues(outcome).Inc()
	}
	if h.collector == nil {
		return
	}
	h.collector.Track(analytics.SearchEvent{
		Type:        analytics.EventProductSearch,
		Keyword:     keyword,
		Mode:        h.mode,
		Outcome:     outcome,
		Status:      status,
		ResultCount: count,
		CacheHit:    cacheHit,
		LatencyMs:   time.Since(start).Milliseconds(),
		Timestamp:   time.Now().UTC(),
		RequestID:   middleware.GetRequestID(ctx),
	})
}

func (h *Handler) countCache(hit bool) {
	if h.metrics == nil {
		return
	}
	if hit {
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrCanceled):
		return analytics.OutcomeCanceled
	case errors.Is(err, apperrors.ErrInvalidInput):
		return analytics.OutcomeInvalid
	case errors.Is(err, apperrors.ErrConfiguration):
		return analytics.OutcomeConfigError
	case errors.Is(err, apperrors.ErrTimeout):
		return analytics.OutcomeTimeout
	case errors.Is(err, apperrors.ErrCircuitOpen):
		return analytics.OutcomeCircuitOpen
	case errors.Is(err, apperrors.ErrUpstream):
		return analytics.OutcomeUpstreamError
	default:
		return analytics.OutcomeTransportError
	}
}

// resultCount reads only data.productData so the relayed body stays untouched.
func resultCount(body json.RawMessage) int {
	var envelope struct {
		Data struct {
			ProductData []json.RawMessage `json:"productData"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0
	}
	return len(envelope.Data.ProductData)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
