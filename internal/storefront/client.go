// Package storefront renders the category product pages. It resolves a URL
// slug to a category, calls the product search proxy over HTTP and turns
// the reply into a Loading, Error, Empty or Success view.
package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nyanglife/catshop/internal/coupang"
	"github.com/nyanglife/catshop/internal/gateway/clientip"
)

const (
	msgCoupangFailed = "Failed to fetch products from Coupang."
	maxProxyBytes    = 10 << 20
)

type forwardedKey struct{}

// WithForwardedFor records the browser's resolved address so proxy calls
// made on its behalf are attributed, and rate limited, as that browser.
func WithForwardedFor(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, forwardedKey{}, addr)
}

// FetchError is a failure shown to the user as-is.
type FetchError struct {
	Status  int
	Message string
}

func (e *FetchError) Error() string {
	return e.Message
}

// Fetcher returns the products for a keyword.
type Fetcher interface {
	Fetch(ctx context.Context, keyword string) ([]coupang.Product, error)
}

// ProductsClient calls GET /api/products on the search proxy.
type ProductsClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewProductsClient(baseURL string, timeout time.Duration) *ProductsClient {
	return &ProductsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  slog.Default().With("component", "storefront-client"),
	}
}

// Fetch reports a non-2xx reply with the proxy's error field, falling back to
// the HTTP status, and a 2xx reply whose rCode is not "0" with its rMessage.
func (c *ProductsClient) Fetch(ctx context.Context, keyword string) ([]coupang.Product, error) {
	endpoint := c.baseURL + "/api/products?keyword=" + url.QueryEscape(keyword)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building proxy request: %w", err)
	}
	if addr, ok := ctx.Value(forwardedKey{}).(string); ok && addr != "" {
		req.Header.Set(clientip.Header, addr)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("proxy request failed", "keyword", keyword, "error", err)
		return nil, &FetchError{Message: "Failed to fetch"}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBytes))
	if err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Message: "Failed to fetch"}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		msg := fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return nil, &FetchError{Status: resp.StatusCode, Message: msg}
	}

	var result coupang.SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("proxy returned invalid JSON", "keyword", keyword, "error", err)
		return nil, &FetchError{Status: resp.StatusCode, Message: "Invalid response from product search"}
	}
	if result.RCode != coupang.SuccessCode {
		msg := result.RMessage
		if msg == "" {
			msg = msgCoupangFailed
		}
		return nil, &FetchError{Status: resp.StatusCode, Message: msg}
	}
	if result.Data.ProductData == nil {
		return []coupang.Product{}, nil
	}
	return result.Data.ProductData, nil
}
