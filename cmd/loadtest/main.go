// Command loadtest drives concurrent traffic at a running storefront server
// and prints throughput, latency percentiles and status code counts.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -target api -concurrency 20 -duration 30s
//
// With -target api every worker cycles through the category search keywords
// on GET /api/products. With -target pages it requests the rendered category
// pages instead, which exercises the storefront's own call back into the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nyanglife/catshop/internal/catalog"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Paths       []string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the storefront server")
	target := flag.String("target", "api", "what to request: api or pages")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	paths, err := targetPaths(*target)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Paths:       paths,
	}

	fmt.Println("=== Storefront Load Test ===")
	fmt.Printf("Target:      %s (%s)\n", cfg.BaseURL, *target)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Paths:       %d unique\n", len(cfg.Paths))
	fmt.Println()

	stats := runLoadTest(cfg)
	if !printReport(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

// targetPaths lists the request paths for one round over every category.
func targetPaths(target string) ([]string, error) {
	categories := catalog.All()
	paths := make([]string, 0, len(categories))
	for _, c := range categories {
		switch target {
		case "api":
			keyword, _ := c.Keyword()
			paths = append(paths, "/api/products?keyword="+url.QueryEscape(keyword))
		case "pages":
			paths = append(paths, c.Path())
		default:
			return nil, fmt.Errorf("unknown target %q (want api or pages)", target)
		}
	}
	return paths, nil
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 20 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	fmt.Print("Running")
	go progress(ctx)

	g, ctx := errgroup.WithContext(ctx)
	for w := range cfg.Concurrency {
		g.Go(func() error {
			for i := w; ; i++ {
				elapsed, status, err := doRequest(ctx, client, cfg.BaseURL+cfg.Paths[i%len(cfg.Paths)])
				if ctx.Err() != nil {
					// In-flight requests cut off by the deadline are not counted.
					return nil
				}
				stats.RecordRequest(elapsed, status, err)
			}
		})
	}
	_ = g.Wait()

	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func doRequest(ctx context.Context, client *http.Client, rawURL string) (time.Duration, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, 0, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return elapsed, resp.StatusCode, nil
}

func progress(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Print(".")
		}
	}
}
