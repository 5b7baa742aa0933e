// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the ad engine daemon configuration from YAML.
// Environment references like ${ISSUERS_URL} are expanded before parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prebid/openrtb/v20/openrtb2"
	"gopkg.in/yaml.v3"

	"github.com/luxfi/adengine/pkg/frequency"
	"github.com/luxfi/adengine/pkg/issuers"
	"github.com/luxfi/adengine/pkg/serving"
	"github.com/luxfi/adengine/pkg/storage"
)

// StorageSQLite selects the SQL ledger backend
const StorageSQLite = "sqlite"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	ListenAddr        string             `yaml:"listen_addr"`
	LogLevel          string             `yaml:"log_level"`
	Storage           StorageConfig      `yaml:"storage"`
	Frequency         frequency.Settings `yaml:"frequency"`
	Serving           ServingConfig      `yaml:"serving"`
	Issuers           IssuersConfig      `yaml:"issuers"`
	Platform          PlatformConfig     `yaml:"platform"`
	Geo               GeoConfig          `yaml:"geo"`
	CatalogPath       string             `yaml:"catalog_path"`
	AntiTargetingPath string             `yaml:"anti_targeting_path"`
}

// StorageConfig selects the ledger backend. Type is memory, badger or
// sqlite. Path is the badger directory or the sqlite file. StatePath is a
// badger directory for issuer and migration state; empty keeps that state
// with the ledger (memory or badger) or in memory (sqlite).
type StorageConfig struct {
	Type      string `yaml:"type"`
	Path      string `yaml:"path"`
	StatePath string `yaml:"state_path"`
}

type ServingConfig struct {
	Selector string `yaml:"selector"`
}

type IssuersConfig struct {
	URL              string        `yaml:"url"`
	FallbackInterval time.Duration `yaml:"fallback_interval"`
}

type PlatformConfig struct {
	Mobile bool `yaml:"mobile"`
}

// GeoConfig is the user's location for subdivision targeting
type GeoConfig struct {
	Country string `yaml:"country"`
	Region  string `yaml:"region"`
}

// Location returns the configured geo, or nil when no country is set
func (g GeoConfig) Location() *openrtb2.Geo {
	if g.Country == "" {
		return nil
	}
	return &openrtb2.Geo{Country: g.Country, Region: g.Region}
}

// Default returns a config that runs fully in memory
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		Storage:    StorageConfig{Type: storage.TypeMemory},
		Frequency:  frequency.DefaultSettings(),
		Serving:    ServingConfig{Selector: serving.SelectorRandom},
		Issuers:    IssuersConfig{FallbackInterval: issuers.DefaultFallbackInterval},
	}
}

// Load reads path and overlays it on Default
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(raw)
}

// Parse expands environment references in raw and overlays it on Default
func Parse(raw []byte) (Config, error) {
	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr is required", ErrInvalidConfig)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	switch c.Storage.Type {
	case storage.TypeMemory:
	case storage.TypeBadger, StorageSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is required for %s storage", ErrInvalidConfig, c.Storage.Type)
		}
	default:
		return fmt.Errorf("%w: unknown storage.type %q", ErrInvalidConfig, c.Storage.Type)
	}

	f := c.Frequency
	if f.AdsPerHour < 0 || f.AdsPerDay < 0 || f.InlineContentAdsPerHour < 0 || f.InlineContentAdsPerDay < 0 {
		return fmt.Errorf("%w: frequency caps must not be negative", ErrInvalidConfig)
	}
	if f.UserActivityThreshold < 0 {
		return fmt.Errorf("%w: frequency.user_activity_threshold must not be negative", ErrInvalidConfig)
	}
	if f.UserActivityWindow <= 0 {
		return fmt.Errorf("%w: frequency.user_activity_window must be positive", ErrInvalidConfig)
	}

	if _, err := serving.NewSelector(c.Serving.Selector); err != nil {
		return fmt.Errorf("%w: serving.selector: %w", ErrInvalidConfig, err)
	}

	if c.Issuers.FallbackInterval <= 0 {
		return fmt.Errorf("%w: issuers.fallback_interval must be positive", ErrInvalidConfig)
	}

	if c.Geo.Region != "" && c.Geo.Country == "" {
		return fmt.Errorf("%w: geo.region requires geo.country", ErrInvalidConfig)
	}

	return nil
}
