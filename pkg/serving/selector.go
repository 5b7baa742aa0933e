// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serving

import (
	"fmt"
	"math/rand/v2"

	"github.com/luxfi/adengine/pkg/core"
)

const (
	SelectorRandom   = "random"
	SelectorPriority = "priority"
)

// Selector picks one ad from a non-empty pool
type Selector interface {
	Select(ads []core.CreativeAd) core.CreativeAd
}

// NewSelector returns the selector registered under name
func NewSelector(name string) (Selector, error) {
	switch name {
	case "", SelectorRandom:
		return NewRandomSelector(), nil
	case SelectorPriority:
		return NewPrioritySelector(), nil
	default:
		return nil, fmt.Errorf("unknown selector %q", name)
	}
}

// RandomSelector picks uniformly at random
type RandomSelector struct {
	intN func(n int) int
}

func NewRandomSelector() *RandomSelector {
	return &RandomSelector{intN: rand.IntN}
}

func (s *RandomSelector) Select(ads []core.CreativeAd) core.CreativeAd {
	return ads[s.intN(len(ads))]
}

// PrioritySelector keeps the ads with the lowest priority value and picks
// uniformly among them
type PrioritySelector struct {
	random *RandomSelector
}

func NewPrioritySelector() *PrioritySelector {
	return &PrioritySelector{random: NewRandomSelector()}
}

func (s *PrioritySelector) Select(ads []core.CreativeAd) core.CreativeAd {
	best := ads[0].Priority
	for _, ad := range ads[1:] {
		if ad.Priority < best {
			best = ad.Priority
		}
	}

	top := make([]core.CreativeAd, 0, len(ads))
	for _, ad := range ads {
		if ad.Priority == best {
			top = append(top, ad)
		}
	}
	return s.random.Select(top)
}
