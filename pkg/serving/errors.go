// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serving

import (
	"errors"

	"github.com/luxfi/adengine/pkg/core"
)

var (
	ErrNotAllowed         = errors.New("not allowed by permission rules")
	ErrNoEligibleAds      = errors.New("no eligible ads")
	ErrInvalidDimensions  = core.ErrInvalidDimensions
	ErrInvalidAdType      = core.ErrUnknownAdType
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrSuperseded         = errors.New("superseded by a newer request")
)

// NotServedError reports why no ad was chosen
type NotServedError struct {
	Type   core.AdType
	Reason string
	Err    error
}

func (e *NotServedError) Error() string {
	return "ad not served: " + e.Reason
}

func (e *NotServedError) Unwrap() error {
	return e.Err
}

// metricReason maps an error to a bounded metric label
func metricReason(err error) string {
	switch {
	case errors.Is(err, ErrNotAllowed):
		return "not_allowed"
	case errors.Is(err, ErrNoEligibleAds):
		return "no_eligible_ads"
	case errors.Is(err, ErrInvalidDimensions):
		return "invalid_dimensions"
	case errors.Is(err, ErrInvalidAdType):
		return "invalid_ad_type"
	case errors.Is(err, ErrCatalogUnavailable):
		return "catalog_unavailable"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	default:
		return "other"
	}
}
