package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyanglife/catshop/internal/coupang"
	gwmw "github.com/nyanglife/catshop/internal/gateway/middleware"
	"github.com/nyanglife/catshop/internal/gateway/ratelimit"
	"github.com/nyanglife/catshop/internal/products/handler"
	"github.com/nyanglife/catshop/internal/storefront"
	"github.com/nyanglife/catshop/pkg/health"
	"github.com/nyanglife/catshop/pkg/metrics"
	pkgmw "github.com/nyanglife/catshop/pkg/middleware"
)

// newSampleServer runs the whole server in sample mode. The category pages
// call back into the same server's /api/products.
func newSampleServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	var root http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		root.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	renderer, err := storefront.NewRenderer()
	require.NoError(t, err)
	pages := storefront.NewPages(storefront.NewProductsClient(srv.URL, time.Second), renderer, nil, 2*time.Second, nil)
	products := handler.New(handler.Config{Source: coupang.NewSampleCatalog(), Mode: "sample"})
	root = New(products, pages, health.NewChecker("storefront"), opts)
	return srv
}

func TestSampleModeEndToEnd(t *testing.T) {
	srv := newSampleServer(t, Options{
		Metrics:        metrics.NewWithRegistry(prometheus.NewRegistry()),
		CORS:           gwmw.NewCORSConfig([]string{"*"}),
		RequestTimeout: 5 * time.Second,
	})

	resp, err := http.Get(srv.URL + "/products/food")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(pkgmw.RequestIDHeader))
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "사료 추천 상품", doc.Find("h1").Text())
	assert.Positive(t, doc.Find(".product").Length())
	doc.Find(".product-price").Each(func(_ int, s *goquery.Selection) {
		assert.True(t, strings.HasSuffix(s.Text(), "원"))
	})
}

func TestAPIProductsMissingKeyword(t *testing.T) {
	srv := newSampleServer(t, Options{CORS: gwmw.NewCORSConfig(nil)})

	resp, err := http.Get(srv.URL + "/api/products")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Keyword is required", body["error"])
}

func TestAPIProductsSampleNoMatchIsEmptySuccess(t *testing.T) {
	srv := newSampleServer(t, Options{CORS: gwmw.NewCORSConfig(nil)})

	resp, err := http.Get(srv.URL + "/api/products?keyword=" + url.QueryEscape("강아지 간식"))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body coupang.SearchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "0", body.RCode)
	assert.Empty(t, body.Data.ProductData)
}

func TestRootRedirectsToIndex(t *testing.T) {
	srv := newSampleServer(t, Options{CORS: gwmw.NewCORSConfig(nil)})
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/products", resp.Header.Get("Location"))
}

func TestRateLimitAppliesToAPIOnly(t *testing.T) {
	srv := newSampleServer(t, Options{
		Limiter: ratelimit.New(1, time.Minute),
		CORS:    gwmw.NewCORSConfig(nil),
	})

	first, err := http.Get(srv.URL + "/api/products?keyword=x")
	require.NoError(t, err)
	first.Body.Close()
	second, err := http.Get(srv.URL + "/api/products?keyword=x")
	require.NoError(t, err)
	second.Body.Close()
	live, err := http.Get(srv.URL + "/health/live")
	require.NoError(t, err)
	live.Body.Close()

	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, http.StatusOK, live.StatusCode)
}

func TestCacheAdminNotOnPublicMux(t *testing.T) {
	srv := newSampleServer(t, Options{CORS: gwmw.NewCORSConfig([]string{"*"})})

	for _, path := range []string{"/api/cache/invalidate", "/admin/cache/invalidate"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestAdminServesCacheRoutes(t *testing.T) {
	admin := NewAdmin(handler.New(handler.Config{Source: coupang.NewSampleCatalog()}))

	rec := httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(pkgmw.RequestIDHeader))

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/cache/invalidate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimitUsesTrustedProxyHop(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute)
	srv := newSampleServer(t, Options{Limiter: limiter, CORS: gwmw.NewCORSConfig(nil)})

	resp, err := http.Get(srv.URL + "/products/food")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	api, err := http.Get(srv.URL + "/api/products?keyword=x")
	require.NoError(t, err)
	api.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, api.StatusCode)
	assert.Equal(t, 1, limiter.Len())
}
