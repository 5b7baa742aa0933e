// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package targeting narrows a candidate pool before exclusion rules run.
package targeting

import (
	"github.com/luxfi/adengine/pkg/core"
)

// Filter narrows a candidate pool. Filters never reorder candidates.
type Filter interface {
	Apply(ads []core.CreativeAd) []core.CreativeAd
	Name() string
}

// Filters applies each filter in order
type Filters []Filter

func (fs Filters) Apply(ads []core.CreativeAd) []core.CreativeAd {
	for _, f := range fs {
		if len(ads) == 0 {
			return ads
		}
		ads = f.Apply(ads)
	}
	return ads
}

func keep(ads []core.CreativeAd, match func(core.CreativeAd) bool) []core.CreativeAd {
	out := make([]core.CreativeAd, 0, len(ads))
	for _, ad := range ads {
		if match(ad) {
			out = append(out, ad)
		}
	}
	return out
}
