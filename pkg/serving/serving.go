// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package serving decides whether an ad may be shown right now and which one.
package serving

import (
	"context"
	"fmt"
	"time"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/frequency"
	"github.com/luxfi/adengine/pkg/ids"
	"github.com/luxfi/adengine/pkg/log"
	"github.com/luxfi/adengine/pkg/metric"
	"github.com/luxfi/adengine/pkg/sequence"
	"github.com/luxfi/adengine/pkg/targeting"
)

// Catalog supplies candidate creatives
type Catalog interface {
	FetchCandidates(ctx context.Context, adType core.AdType, constraints core.Constraints) ([]core.CreativeAd, error)
}

// Request describes one serve attempt
type Request struct {
	Type core.AdType
	// Dimensions is the exact "WxH" size, required for inline content ads
	Dimensions string
}

// ChosenAd is the outcome of a successful serve
type ChosenAd struct {
	PlacementID ids.ID
	Ad          core.CreativeAd
	Dimensions  *openrtb2.Format
	ServedAt    time.Time
}

// Config wires a Server
type Config struct {
	Catalog  Catalog
	Filters  targeting.Filters
	Deps     frequency.Deps
	Settings frequency.Settings
	Selector Selector
	Metrics  *metric.Metrics
}

// Server is the ad serving orchestrator. It holds no mutable decision state;
// every call re-reads history and the catalog.
type Server struct {
	catalog  Catalog
	filters  targeting.Filters
	deps     frequency.Deps
	settings frequency.Settings
	selector Selector
	guard    *sequence.Guard
	metrics  *metric.Metrics
	log      log.Logger
}

// NewServer creates a serving orchestrator
func NewServer(cfg Config, logger log.Logger) *Server {
	selector := cfg.Selector
	if selector == nil {
		selector = NewRandomSelector()
	}

	return &Server{
		catalog:  cfg.Catalog,
		filters:  cfg.Filters,
		deps:     cfg.Deps,
		settings: cfg.Settings,
		selector: selector,
		guard:    sequence.NewGuard(),
		metrics:  cfg.Metrics,
		log:      logger,
	}
}

// MaybeServeAdNotification serves a notification ad
func (s *Server) MaybeServeAdNotification(ctx context.Context) (*ChosenAd, error) {
	return s.MaybeServeAd(ctx, Request{Type: core.AdTypeNotification})
}

// MaybeServeInlineContentAd serves an inline content ad of exactly dimensions
func (s *Server) MaybeServeInlineContentAd(ctx context.Context, dimensions string) (*ChosenAd, error) {
	return s.MaybeServeAd(ctx, Request{Type: core.AdTypeInlineContent, Dimensions: dimensions})
}

// MaybeServeAd runs the serving pipeline: permission rules, catalog fetch,
// targeting, exclusion rules, then selection. Any failed step returns a
// *NotServedError.
func (s *Server) MaybeServeAd(ctx context.Context, req Request) (*ChosenAd, error) {
	start := time.Now()
	seq := s.guard.Begin(req.Type.String())

	chosen, err := s.serve(ctx, req, seq)

	if s.metrics != nil {
		s.metrics.ServeLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.AdsNotServed.WithLabelValues(req.Type.String(), metricReason(err)).Inc()
		} else {
			s.metrics.AdsServed.WithLabelValues(req.Type.String()).Inc()
		}
	}

	if err != nil {
		s.log.Info("ad not served",
			log.String("type", req.Type.String()),
			log.Error(err))
		return nil, err
	}

	s.log.Info("ad served",
		log.String("type", req.Type.String()),
		log.String("creative_instance_id", chosen.Ad.CreativeInstanceID),
		log.String("placement_id", chosen.PlacementID.String()))
	return chosen, nil
}

func (s *Server) serve(ctx context.Context, req Request, seq uint64) (*ChosenAd, error) {
	if _, err := core.ParseAdType(req.Type.String()); err != nil {
		return nil, notServed(req.Type, "unsupported ad type", err)
	}

	var constraints core.Constraints
	if req.Type == core.AdTypeInlineContent {
		dims, err := core.ParseDimensions(req.Dimensions)
		if err != nil {
			return nil, notServed(req.Type, "invalid dimensions", err)
		}
		constraints.Dimensions = &dims
	}

	if rule := frequency.PermissionRulesFor(req.Type, s.deps, s.settings).FirstDisallowing(); rule != nil {
		return nil, notServed(req.Type, rule.Reason(), ErrNotAllowed)
	}

	if s.catalog == nil {
		return nil, notServed(req.Type, "catalog unavailable", ErrCatalogUnavailable)
	}
	candidates, err := s.catalog.FetchCandidates(ctx, req.Type, constraints)
	if err != nil {
		return nil, notServed(req.Type, "catalog unavailable", fmt.Errorf("%w: %w", ErrCatalogUnavailable, err))
	}
	if len(candidates) == 0 {
		reason := "no ads in catalog"
		if constraints.Dimensions != nil {
			reason = "no ads for dimensions " + req.Dimensions
		}
		return nil, notServed(req.Type, reason, ErrNoEligibleAds)
	}

	candidates = s.filters.Apply(candidates)
	eligible := frequency.ExclusionRulesFor(req.Type, s.deps).Apply(candidates)
	if len(eligible) == 0 {
		return nil, notServed(req.Type, "no eligible ads", ErrNoEligibleAds)
	}

	if !s.guard.IsCurrent(req.Type.String(), seq) {
		return nil, notServed(req.Type, "superseded", ErrSuperseded)
	}

	return &ChosenAd{
		PlacementID: ids.Generate(),
		Ad:          s.selector.Select(eligible),
		Dimensions:  constraints.Dimensions,
		ServedAt:    s.now(),
	}, nil
}

func (s *Server) now() time.Time {
	if s.deps.Clock == nil {
		return time.Now()
	}
	return s.deps.Clock.Now()
}

func notServed(adType core.AdType, reason string, err error) *NotServedError {
	return &NotServedError{Type: adType, Reason: reason, Err: err}
}
