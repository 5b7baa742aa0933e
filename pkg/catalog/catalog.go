// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package catalog provides an in-memory creative catalog loaded from YAML.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/log"
)

var (
	ErrMissingCreativeInstanceID = errors.New("missing creative instance id")
	ErrDuplicateCreative         = errors.New("duplicate creative instance id")
)

type document struct {
	Creatives []creativeRecord `yaml:"creatives"`
}

type creativeRecord struct {
	core.CreativeAd `yaml:",inline"`

	Dimensions string `yaml:"dimensions"`
	Value      string `yaml:"value"`
}

// Catalog holds the creatives available for serving
type Catalog struct {
	mu    sync.RWMutex
	ads   []core.CreativeAd
	clock clock.Clock
	log   log.Logger
}

// New creates a catalog holding ads
func New(ads []core.CreativeAd, clk clock.Clock, logger log.Logger) *Catalog {
	c := &Catalog{clock: clk, log: logger}
	c.Replace(ads)
	return c
}

// Replace swaps the whole catalog content
func (c *Catalog) Replace(ads []core.CreativeAd) {
	cp := make([]core.CreativeAd, len(ads))
	copy(cp, ads)

	c.mu.Lock()
	c.ads = cp
	c.mu.Unlock()
}

// Len returns the number of creatives held
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ads)
}

// Get returns the creative with the given instance id
func (c *Catalog) Get(creativeInstanceID string) (core.CreativeAd, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, ad := range c.ads {
		if ad.CreativeInstanceID == creativeInstanceID {
			return ad, true
		}
	}
	return core.CreativeAd{}, false
}

// FetchCandidates returns the live creatives of adType that satisfy
// constraints. Inline content ads must match the requested dimensions exactly.
func (c *Catalog) FetchCandidates(ctx context.Context, adType core.AdType, constraints core.Constraints) ([]core.CreativeAd, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := c.clock.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []core.CreativeAd
	for _, ad := range c.ads {
		if ad.Type != adType || !ad.IsLive(now) {
			continue
		}
		if adType == core.AdTypeInlineContent {
			if constraints.Dimensions == nil || !core.SameDimensions(ad.Dimensions, *constraints.Dimensions) {
				continue
			}
		}
		out = append(out, ad)
	}

	c.log.Debug("fetched candidates",
		log.String("type", adType.String()),
		log.Int("count", len(out)))

	return out, nil
}

// Load decodes a YAML catalog document
func Load(r io.Reader) ([]core.CreativeAd, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Creatives))
	ads := make([]core.CreativeAd, 0, len(doc.Creatives))
	for i, rec := range doc.Creatives {
		ad := rec.CreativeAd
		if ad.CreativeInstanceID == "" {
			return nil, fmt.Errorf("creative %d: %w", i, ErrMissingCreativeInstanceID)
		}
		if _, ok := seen[ad.CreativeInstanceID]; ok {
			return nil, fmt.Errorf("creative %s: %w", ad.CreativeInstanceID, ErrDuplicateCreative)
		}
		seen[ad.CreativeInstanceID] = struct{}{}

		if _, err := core.ParseAdType(ad.Type.String()); err != nil {
			return nil, fmt.Errorf("creative %s: %w", ad.CreativeInstanceID, err)
		}
		if rec.Dimensions != "" {
			dims, err := core.ParseDimensions(rec.Dimensions)
			if err != nil {
				return nil, fmt.Errorf("creative %s: %w", ad.CreativeInstanceID, err)
			}
			ad.Dimensions = dims
		}
		if rec.Value != "" {
			value, err := decimal.NewFromString(rec.Value)
			if err != nil {
				return nil, fmt.Errorf("creative %s: invalid value: %w", ad.CreativeInstanceID, err)
			}
			ad.Value = value
		}

		ads = append(ads, ad)
	}
	return ads, nil
}

// LoadFile reads a YAML catalog from path
func LoadFile(path string) ([]core.CreativeAd, error) {
	// #nosec G304 -- path is operator-provided catalog path.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f)
}
