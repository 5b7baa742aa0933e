// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// issuerd serves the issuers endpoint that adsd refreshes from. The snapshot
// is read from a JSON file in the wire format and re-read on SIGHUP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/luxfi/adengine/pkg/issuers"
	"github.com/luxfi/adengine/pkg/log"
)

func main() {
	flags := pflag.NewFlagSet("issuerd", pflag.ExitOnError)
	listen := flags.String("listen", ":8090", "Listen address")
	issuersFile := flags.String("issuers-file", "issuers.json", "Issuers snapshot in wire format")
	env := flags.String("env", "development", "Environment (development/production)")
	origins := flags.StringSlice("allow-origin", []string{"*"}, "CORS allowed origins")
	logLevel := flags.String("log-level", "info", "Log level")
	_ = flags.Parse(os.Args[1:])

	logger := log.NewWithLevel(*logLevel)
	defer func() { _ = logger.Sync() }()

	registry := issuers.NewRegistry(nil, logger)
	if err := loadFile(registry, *issuersFile); err != nil {
		logger.Error("failed to load issuers", log.String("file", *issuersFile), log.Error(err))
		os.Exit(1)
	}

	if *env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              *listen,
		Handler:           setupRouter(registry, *origins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", log.Error(err))
			os.Exit(1)
		}
	}()
	logger.Info("issuerd listening", log.String("addr", *listen))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range signals {
		if sig == syscall.SIGHUP {
			if err := loadFile(registry, *issuersFile); err != nil {
				logger.Warn("reload failed, keeping current issuers", log.Error(err))
			}
			continue
		}
		break
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", log.Error(err))
	}
}

func loadFile(registry *issuers.Registry, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var info issuers.IssuersInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	_, err = registry.Set(info)
	return err
}

func setupRouter(registry *issuers.Registry, origins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	if slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	config.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	router.Use(cors.New(config))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"hasIssuers": registry.HasIssuers(),
		})
	})

	router.GET(issuers.Path, func(c *gin.Context) {
		info, ok := registry.Get()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no issuers loaded"})
			return
		}
		c.JSON(http.StatusOK, info)
	})

	return router
}
