// Command server runs the storefront: the signed product search proxy at
// GET /api/products and the server-rendered category pages under /products.
//
// Usage:
//
//	go run ./cmd/server [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nyanglife/catshop/internal/analytics"
	"github.com/nyanglife/catshop/internal/coupang"
	"github.com/nyanglife/catshop/internal/gateway/clientip"
	gwmw "github.com/nyanglife/catshop/internal/gateway/middleware"
	"github.com/nyanglife/catshop/internal/gateway/ratelimit"
	"github.com/nyanglife/catshop/internal/gateway/router"
	"github.com/nyanglife/catshop/internal/products/cache"
	"github.com/nyanglife/catshop/internal/products/handler"
	"github.com/nyanglife/catshop/internal/storefront"
	"github.com/nyanglife/catshop/pkg/config"
	"github.com/nyanglife/catshop/pkg/health"
	"github.com/nyanglife/catshop/pkg/kafka"
	"github.com/nyanglife/catshop/pkg/logger"
	"github.com/nyanglife/catshop/pkg/metrics"
	pkgredis "github.com/nyanglife/catshop/pkg/redis"
	"github.com/nyanglife/catshop/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting storefront server", "port", cfg.Server.Port, "mode", cfg.Coupang.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	checker := health.NewChecker("storefront")
	source := newSource(cfg, m, checker)

	var responseCache *cache.ResponseCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, product caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			responseCache = cache.New(redisClient, cfg.Redis.CacheTTL)
			slog.Info("product cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	var tracker handler.Tracker
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		checker.Register("kafka", func(context.Context) health.ComponentHealth {
			published, failed := producer.Counts()
			msg := fmt.Sprintf("published %d, failed %d", published, failed)
			if failed > 0 && published == 0 {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: msg}
			}
			return health.ComponentHealth{Status: health.StatusUp, Message: msg}
		})
		slog.Info("search events enabled", "topic", cfg.Kafka.Topics.SearchEvents)
	}

	products := handler.New(handler.Config{
		Source:    source,
		Mode:      cfg.Coupang.Mode,
		Cache:     responseCache,
		Collector: tracker,
		Metrics:   m,
	})

	proxyURL := cfg.Storefront.ProxyURL
	if proxyURL == "" {
		proxyURL = "http://127.0.0.1:" + strconv.Itoa(cfg.Server.Port)
	}
	renderer, err := storefront.NewRenderer()
	if err != nil {
		slog.Error("failed to load page templates", "error", err)
		os.Exit(1)
	}
	resolver, err := clientip.NewResolver(cfg.Server.TrustedProxies)
	if err != nil {
		slog.Error("invalid trusted proxies", "error", err)
		os.Exit(1)
	}

	pages := storefront.NewPages(
		storefront.NewProductsClient(proxyURL, cfg.Storefront.Timeout),
		renderer,
		storefront.NewShell(),
		cfg.Storefront.Timeout,
		resolver,
	)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, router.NewAdmin(products))
		defer shutdownMetrics(context.Background())
	} else {
		slog.Warn("metrics listener disabled, cache admin routes are unavailable")
	}

	opts := router.Options{
		Resolver:       resolver,
		Metrics:        m,
		CORS:           gwmw.NewCORSConfig(cfg.CORS.AllowOrigins),
		RequestTimeout: cfg.Server.WriteTimeout,
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		go limiter.Run(ctx, 5*time.Minute)
		opts.Limiter = limiter
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.New(products, pages, checker, opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("storefront server listening", "addr", server.Addr, "proxy_url", proxyURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("storefront server stopped")
}

// newSource picks the product source for the configured mode and registers
// its health check.
func newSource(cfg *config.Config, m *metrics.Metrics, checker *health.Checker) coupang.Source {
	if cfg.Coupang.Mode == config.ModeSample {
		slog.Warn("serving the built-in sample catalog; no upstream calls will be made")
		checker.Register("upstream", func(context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusUp, Message: "sample catalog"}
		})
		return coupang.NewSampleCatalog()
	}

	breaker := resilience.NewCircuitBreaker("coupang", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Coupang.BreakerFailureThreshold,
		ResetTimeout:     cfg.Coupang.BreakerResetTimeout,
		IsFailure:        coupang.TripsBreaker,
		Ignore:           coupang.CallerGone,
		OnStateChange: func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	checker.Register("upstream", func(context.Context) health.ComponentHealth {
		if st := breaker.Status(); st.State != resilience.StateClosed {
			return health.ComponentHealth{
				Status:  health.StatusDegraded,
				Message: fmt.Sprintf("circuit %s after %d failures, retry in %s", st.State, st.ConsecutiveFailures, st.RetryIn.Round(time.Second)),
			}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	return coupang.NewClient(coupang.ClientConfig{
		BaseURL: cfg.Coupang.BaseURL,
		Credentials: coupang.Credentials{
			AccessKey: cfg.Coupang.AccessKey,
			SecretKey: cfg.Coupang.SecretKey,
		},
		Timeout: cfg.Coupang.Timeout,
		Breaker: breaker,
		Observe: func(status string, latency time.Duration) {
			m.UpstreamLatency.WithLabelValues(status).Observe(latency.Seconds())
		},
	})
}
