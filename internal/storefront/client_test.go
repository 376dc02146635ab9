package storefront

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proxyReturning(t *testing.T, status int, body string) (*ProductsClient, *string) {
	t.Helper()
	var gotKeyword string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		gotKeyword = r.URL.Query().Get("keyword")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewProductsClient(srv.URL, time.Second), &gotKeyword
}

func fetchErr(t *testing.T, err error) *FetchError {
	t.Helper()
	var fe *FetchError
	require.True(t, errors.As(err, &fe), "expected FetchError, got %v", err)
	return fe
}

func TestFetchSuccess(t *testing.T) {
	c, kw := proxyReturning(t, http.StatusOK,
		`{"rCode":"0","rMessage":"","data":{"landingUrl":"x","productData":[{"productId":7,"productName":"츄르","productPrice":12345,"productImage":"i","productUrl":"u"}]}}`)

	products, err := c.Fetch(context.Background(), "고양이 사료")

	require.NoError(t, err)
	assert.Equal(t, "고양이 사료", *kw)
	require.Len(t, products, 1)
	assert.Equal(t, int64(7), products[0].ProductID)
	assert.Equal(t, int64(12345), products[0].ProductPrice)
}

func TestFetchMissingProductDataIsEmpty(t *testing.T) {
	c, _ := proxyReturning(t, http.StatusOK, `{"rCode":"0","data":{}}`)

	products, err := c.Fetch(context.Background(), "k")

	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"proxy error field", http.StatusBadRequest, `{"error":"Keyword is required"}`, "Keyword is required"},
		{"relayed upstream status", http.StatusUnauthorized, `{"error":"Coupang API request failed with status: 401","detail":"x"}`, "Coupang API request failed with status: 401"},
		{"no error field", http.StatusBadGateway, `{}`, "HTTP error! status: 502"},
		{"non-json error body", http.StatusInternalServerError, `oops`, "HTTP error! status: 500"},
		{"rCode failure with message", http.StatusOK, `{"rCode":"400","rMessage":"Invalid keyword"}`, "Invalid keyword"},
		{"rCode failure without message", http.StatusOK, `{"rCode":"500"}`, "Failed to fetch products from Coupang."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := proxyReturning(t, tt.status, tt.body)

			_, err := c.Fetch(context.Background(), "k")

			fe := fetchErr(t, err)
			assert.Equal(t, tt.message, fe.Message)
			assert.Equal(t, tt.status, fe.Status)
		})
	}
}

func TestFetchUnreachableProxy(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewProductsClient(url, time.Second).Fetch(context.Background(), "k")

	assert.Equal(t, "Failed to fetch", fetchErr(t, err).Message)
}

func TestFetchForwardsClientAddress(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Forwarded-For")
		_, _ = w.Write([]byte(`{"rCode":"0","data":{"productData":[]}}`))
	}))
	defer srv.Close()

	ctx := WithForwardedFor(context.Background(), "198.51.100.4")
	_, err := NewProductsClient(srv.URL, time.Second).Fetch(ctx, "k")

	require.NoError(t, err)
	assert.Equal(t, "198.51.100.4", got)
}
