package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetPaths(t *testing.T) {
	api, err := targetPaths("api")
	require.NoError(t, err)
	require.Len(t, api, 10)
	u, err := url.Parse(api[0])
	require.NoError(t, err)
	assert.Equal(t, "/api/products", u.Path)
	assert.Equal(t, "고양이 사료", u.Query().Get("keyword"))

	pages, err := targetPaths("pages")
	require.NoError(t, err)
	assert.Equal(t, "/products/food", pages[0])
	assert.Equal(t, "/products/carrier", pages[9])

	_, err = targetPaths("search")
	assert.Error(t, err)
}

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}
	assert.Equal(t, 50*time.Millisecond, percentile(sorted, 50))
	assert.Equal(t, 99*time.Millisecond, percentile(sorted, 99))
	assert.Equal(t, 1*time.Millisecond, percentile(sorted, 0))
	assert.Equal(t, 100*time.Millisecond, percentile(sorted, 100))
	assert.Zero(t, percentile(nil, 50))
}

func TestStatsAndReport(t *testing.T) {
	s := NewStats()
	s.RecordRequest(10*time.Millisecond, http.StatusOK, nil)
	s.RecordRequest(30*time.Millisecond, http.StatusTooManyRequests, nil)
	s.RecordRequest(0, 0, errors.New("connection refused"))

	assert.Equal(t, int64(3), s.totalRequests.Load())
	assert.Equal(t, int64(1), s.successCount.Load())
	assert.Equal(t, int64(2), s.errorCount.Load())

	var buf bytes.Buffer
	require.True(t, printReport(&buf, s, time.Second))
	out := buf.String()
	assert.Contains(t, out, "Total Requests:  3")
	assert.Contains(t, out, "  200: 1")
	assert.Contains(t, out, "  429: 1")
	assert.Contains(t, out, "Max:    30ms")
}

func TestReportWithNoRequests(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, printReport(&buf, NewStats(), time.Second))
	assert.Contains(t, buf.String(), "No requests completed")
}

func TestRunLoadTest(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	stats := runLoadTest(Config{
		BaseURL:     srv.URL,
		Concurrency: 2,
		Duration:    200 * time.Millisecond,
		Paths:       []string{"/products/food"},
	})

	assert.Positive(t, stats.totalRequests.Load())
	assert.Equal(t, stats.totalRequests.Load(), stats.successCount.Load())
	assert.GreaterOrEqual(t, hits.Load(), stats.totalRequests.Load())
}
