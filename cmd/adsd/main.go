// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/luxfi/adengine/internal/stores"
	"github.com/luxfi/adengine/pkg/api"
	"github.com/luxfi/adengine/pkg/catalog"
	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/config"
	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/frequency"
	"github.com/luxfi/adengine/pkg/history"
	"github.com/luxfi/adengine/pkg/issuers"
	"github.com/luxfi/adengine/pkg/ledger"
	"github.com/luxfi/adengine/pkg/log"
	"github.com/luxfi/adengine/pkg/metric"
	"github.com/luxfi/adengine/pkg/serving"
	"github.com/luxfi/adengine/pkg/targeting"
)

const (
	// historyRetention bounds how far back interaction history is kept
	historyRetention = 30 * 24 * time.Hour
	purgeInterval    = time.Hour
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	flags := pflag.NewFlagSet("adsd", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to the YAML config file")
	listenAddr := flags.String("listen", "", "Override listen_addr")
	logLevel := flags.String("log-level", "", "Override log_level")
	showVersion := flags.Bool("version", false, "Print version and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("adsd %s (commit: %s)\n", Version, GitCommit)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := log.NewWithLevel(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("adsd failed", log.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger log.Logger) error {
	logger.Info("starting adsd",
		log.String("version", Version),
		log.String("listen", cfg.ListenAddr),
		log.String("storage", cfg.Storage.Type))

	clk := clock.Real()

	metrics, err := metric.NewMetrics()
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	backends, err := stores.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Warn("failed to close storage", log.Error(err))
		}
	}()

	l := ledger.New(backends.Ledger, clk, metrics, logger.With(log.String("component", "ledger")))
	defer l.Close()

	var ads []core.CreativeAd
	if cfg.CatalogPath != "" {
		ads, err = catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			return err
		}
	}
	cat := catalog.New(ads, clk, logger.With(log.String("component", "catalog")))
	logger.Info("catalog loaded", log.Int("creatives", cat.Len()))

	resource := targeting.AntiTargetingResource{}
	if cfg.AntiTargetingPath != "" {
		f, err := os.Open(cfg.AntiTargetingPath)
		if err != nil {
			return fmt.Errorf("open anti-targeting resource: %w", err)
		}
		resource, err = targeting.LoadAntiTargetingResource(f)
		_ = f.Close()
		if err != nil {
			return err
		}
	}

	hist := history.NewStore(logger.With(log.String("component", "history")))
	go purgeHistory(ctx, hist, clk, logger)

	registry := issuers.NewRegistry(backends.State, logger.With(log.String("component", "issuers")))
	if _, err := registry.Load(); err != nil {
		logger.Warn("ignoring persisted issuers", log.Error(err))
	}

	if cfg.Issuers.URL != "" {
		refresher := issuers.NewRefresher(issuers.RefresherConfig{
			Source:           issuers.NewFetcher(cfg.Issuers.URL, nil),
			Registry:         registry,
			Clock:            clk,
			Metrics:          metrics,
			FallbackInterval: cfg.Issuers.FallbackInterval,
		}, logger.With(log.String("component", "issuers")))
		if err := refresher.Start(ctx); err != nil {
			logger.Warn("initial issuers fetch failed", log.Error(err))
		}
		defer refresher.Stop()
	}

	selector, err := serving.NewSelector(cfg.Serving.Selector)
	if err != nil {
		return err
	}

	srv := serving.NewServer(serving.Config{
		Catalog: cat,
		Filters: targeting.Filters{
			targeting.NewSubdivisionFilter(targeting.StaticGeo{Location: cfg.Geo.Location()}),
			targeting.NewAntiTargetingFilter(resource, hist),
		},
		Deps: frequency.Deps{
			History:  hist,
			Flagged:  hist,
			OptOuts:  hist,
			Activity: hist,
			Issuers:  registry,
			Platform: frequency.StaticPlatform(cfg.Platform.Mobile),
			Clock:    clk,
		},
		Settings: cfg.Frequency,
		Selector: selector,
		Metrics:  metrics,
	}, logger.With(log.String("component", "serving")))

	handler := api.New(api.Config{
		Serving: srv,
		Catalog: cat,
		History: hist,
		Ledger:  l,
		Issuers: registry,
		Metrics: metrics,
		Clock:   clk,
	}, logger.With(log.String("component", "api")))

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", log.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", log.Error(err))
	}
	return nil
}

func purgeHistory(ctx context.Context, hist *history.Store, clk clock.Clock, logger log.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := hist.PurgeBefore(clk.Now().Add(-historyRetention)); n > 0 {
				logger.Debug("purged history", log.Int("entries", n))
			}
		}
	}
}
