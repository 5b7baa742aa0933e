// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package targeting

import (
	"strings"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/luxfi/adengine/pkg/core"
)

// GeoSource supplies the user's current location, nil when unknown
type GeoSource interface {
	Geo() *openrtb2.Geo
}

// StaticGeo is a GeoSource with a fixed location
type StaticGeo struct {
	Location *openrtb2.Geo
}

func (s StaticGeo) Geo() *openrtb2.Geo { return s.Location }

// SubdivisionFilter keeps creatives whose geo targets match the user's country
// ("US") or subdivision ("US-CA"). Untargeted creatives always match.
type SubdivisionFilter struct {
	source GeoSource
}

func NewSubdivisionFilter(source GeoSource) *SubdivisionFilter {
	return &SubdivisionFilter{source: source}
}

func (f *SubdivisionFilter) Name() string { return "subdivision" }

func (f *SubdivisionFilter) Apply(ads []core.CreativeAd) []core.CreativeAd {
	var geo *openrtb2.Geo
	if f.source != nil {
		geo = f.source.Geo()
	}

	return keep(ads, func(ad core.CreativeAd) bool {
		return MatchesGeo(ad.GeoTargets, geo)
	})
}

// MatchesGeo reports whether any of targets covers geo. An unknown location
// only matches untargeted creatives.
func MatchesGeo(targets []string, geo *openrtb2.Geo) bool {
	if len(targets) == 0 {
		return true
	}
	if geo == nil || geo.Country == "" {
		return false
	}

	country := strings.ToUpper(geo.Country)
	subdivision := ""
	if geo.Region != "" {
		subdivision = country + "-" + strings.ToUpper(geo.Region)
	}

	for _, target := range targets {
		target = strings.ToUpper(strings.TrimSpace(target))
		if target == country || (subdivision != "" && target == subdivision) {
			return true
		}
	}
	return false
}
