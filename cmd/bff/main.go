// Package main is the entry point for the exoview BFF server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orbitfold/exoview/internal/catalog"
	"github.com/orbitfold/exoview/internal/config"
	"github.com/orbitfold/exoview/internal/dataaccess"
	"github.com/orbitfold/exoview/internal/explorer"
	"github.com/orbitfold/exoview/internal/observability"
	"github.com/orbitfold/exoview/internal/pages"
	"github.com/orbitfold/exoview/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "exoview-bff", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Upstream catalogue client.
	client := catalog.New(cfg.Catalog, catalog.WithRecorder(metrics))

	// Endpoint explorer index. A load failure is not fatal: the rest of the
	// BFF works without it, and readiness reports the gap.
	index := loadExplorerIndex(ctx, cfg.Explorer, client, logger)
	if index != nil {
		metrics.SetOpenAPIEndpointsIndexed(float64(len(index.Endpoints())))
	}

	// Data access cache.
	store := dataaccess.NewStore(cfg.Cache.Staleness, cfg.Cache.Retention,
		dataaccess.WithLogger(logger),
		dataaccess.WithRecorder(metrics),
		dataaccess.WithMaxEntries(cfg.Cache.MaxEntries),
	)
	defer store.Close()

	// Idempotency store (optional).
	idemStore, idemCloser, err := buildIdempotencyStore(cfg.Idempotency, logger)
	if err != nil {
		logger.Error("idempotency store initialization failed", zap.Error(err))
		return 1
	}

	providerOpts := []pages.ProviderOption{pages.WithRecorder(metrics)}
	if idemStore != nil {
		providerOpts = append(providerOpts,
			pages.WithIdempotencyStore(idemStore, cfg.Idempotency.Store.DefaultTTL))
	}
	provider := pages.NewProvider(client, store, logger, providerOpts...)

	readinessChecks := observability.ReadinessChecks{
		ExplorerLoaded: func() bool { return index != nil },
		Catalog:        client,
	}
	if hc, ok := idemStore.(observability.HealthChecker); ok {
		readinessChecks.IdempotencyStore = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Pages:    provider,
		Explorer: index,
		Metrics:  metrics,
		Ready:    readinessChecks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("catalog", cfg.Catalog.BaseURL),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if idemCloser != nil {
		idemCloser()
	}
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// loadExplorerIndex loads the catalogue's OpenAPI document from the
// configured file, the configured URL, or the catalogue itself, in that
// order of precedence. It returns nil when no source works.
func loadExplorerIndex(ctx context.Context, cfg config.ExplorerConfig, client *catalog.Client, logger *zap.Logger) *explorer.Index {
	if cfg.SpecFile != "" {
		index, err := explorer.LoadFile(cfg.SpecFile)
		if err != nil {
			logger.Warn("explorer index load failed",
				zap.String("file", cfg.SpecFile), zap.Error(err))
			return nil
		}
		logger.Info("explorer index loaded",
			zap.String("file", cfg.SpecFile),
			zap.Int("endpoints", len(index.Endpoints())))
		return index
	}

	data, err := fetchSpec(ctx, cfg.SpecURL, client)
	if err != nil {
		logger.Warn("OpenAPI document fetch failed", zap.Error(err))
		return nil
	}
	index, err := explorer.LoadBytes(data)
	if err != nil {
		logger.Warn("explorer index load failed", zap.Error(err))
		return nil
	}
	logger.Info("explorer index loaded",
		zap.Int("endpoints", len(index.Endpoints())))
	return index
}

// fetchSpec retrieves the OpenAPI document, from the configured URL when set
// and from the catalogue's own /openapi.json otherwise.
func fetchSpec(ctx context.Context, specURL string, client *catalog.Client) ([]byte, error) {
	if specURL == "" {
		return client.OpenAPIDocument(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, specURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", specURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

// buildIdempotencyStore constructs the configured idempotency store. A nil
// store disables create deduplication.
func buildIdempotencyStore(cfg config.IdempotencyConfig, logger *zap.Logger) (pages.IdempotencyStore, func(), error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	switch cfg.Store.Driver {
	case "", "memory":
		logger.Info("idempotency store initialized", zap.String("driver", "memory"))
		return pages.NewMemoryIdempotencyStore(), nil, nil
	case "redis":
		addr := os.Getenv(cfg.Store.AddrEnv)
		if addr == "" {
			return nil, nil, fmt.Errorf("redis idempotency store: %s is not set", cfg.Store.AddrEnv)
		}
		rdb := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.Store.DB})
		logger.Info("idempotency store initialized",
			zap.String("driver", "redis"), zap.String("addr", addr))
		return pages.NewRedisIdempotencyStore(rdb), func() { rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown idempotency store driver %q", cfg.Store.Driver)
	}
}
