// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownAdType           = errors.New("unknown ad type")
	ErrUnknownConfirmationType = errors.New("unknown confirmation type")
)

// AdType is the format tag of a creative
type AdType string

const (
	AdTypeUndefined       AdType = ""
	AdTypeNotification    AdType = "ad_notification"
	AdTypeNewTabPage      AdType = "new_tab_page_ad"
	AdTypePromotedContent AdType = "promoted_content_ad"
	AdTypeInlineContent   AdType = "inline_content_ad"
)

// ParseAdType validates a wire value
func ParseAdType(s string) (AdType, error) {
	switch t := AdType(s); t {
	case AdTypeNotification, AdTypeNewTabPage, AdTypePromotedContent, AdTypeInlineContent:
		return t, nil
	}
	return AdTypeUndefined, fmt.Errorf("%w: %q", ErrUnknownAdType, s)
}

func (t AdType) String() string {
	return string(t)
}

// CreativeAd is a read-only candidate supplied by the catalog
type CreativeAd struct {
	CreativeInstanceID string `json:"creative_instance_id" yaml:"creative_instance_id"`
	CreativeSetID      string `json:"creative_set_id" yaml:"creative_set_id"`
	CampaignID         string `json:"campaign_id" yaml:"campaign_id"`
	AdvertiserID       string `json:"advertiser_id" yaml:"advertiser_id"`
	Type               AdType `json:"type" yaml:"type"`

	// Targeting
	Segment    string   `json:"segment" yaml:"segment"`
	GeoTargets []string `json:"geo_targets" yaml:"geo_targets"` // "US" or "US-CA"

	// Caps; a zero cap blocks the creative
	PerDay   int `json:"per_day" yaml:"per_day"`
	DailyCap int `json:"daily_cap" yaml:"daily_cap"`
	TotalMax int `json:"total_max" yaml:"total_max"`

	Priority int `json:"priority" yaml:"priority"`

	// Inline content only
	Dimensions openrtb2.Format `json:"dimensions" yaml:"-"`

	StartAt *time.Time `json:"start_at,omitempty" yaml:"start_at,omitempty"`
	EndAt   *time.Time `json:"end_at,omitempty" yaml:"end_at,omitempty"`

	Title     string          `json:"title" yaml:"title"`
	Body      string          `json:"body" yaml:"body"`
	TargetURL string          `json:"target_url" yaml:"target_url"`
	Value     decimal.Decimal `json:"value" yaml:"-"`
}

// IsLive reports whether the creative's flight covers now
func (c CreativeAd) IsLive(now time.Time) bool {
	if c.StartAt != nil && now.Before(*c.StartAt) {
		return false
	}
	if c.EndAt != nil && now.After(*c.EndAt) {
		return false
	}
	return true
}

// AdContent identifies the ad a history entry refers to
type AdContent struct {
	CreativeInstanceID string           `json:"creative_instance_id"`
	CreativeSetID      string           `json:"creative_set_id"`
	CampaignID         string           `json:"campaign_id"`
	AdvertiserID       string           `json:"advertiser_id"`
	Segment            string           `json:"segment"`
	Type               AdType           `json:"type"`
	ConfirmationType   ConfirmationType `json:"confirmation_type"`
}

// ContentFor builds the history content for an interaction with ad
func ContentFor(ad CreativeAd, confirmationType ConfirmationType) AdContent {
	return AdContent{
		CreativeInstanceID: ad.CreativeInstanceID,
		CreativeSetID:      ad.CreativeSetID,
		CampaignID:         ad.CampaignID,
		AdvertiserID:       ad.AdvertiserID,
		Segment:            ad.Segment,
		Type:               ad.Type,
		ConfirmationType:   confirmationType,
	}
}

// AdHistoryEntry is one observed user/ad interaction
type AdHistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Content   AdContent `json:"ad_content"`
}
