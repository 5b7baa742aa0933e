// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package frequency

import (
	"time"

	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/core"
)

// Settings holds the user-facing pacing limits
type Settings struct {
	AdsPerHour              int           `yaml:"ads_per_hour"`
	AdsPerDay               int           `yaml:"ads_per_day"`
	InlineContentAdsPerHour int           `yaml:"inline_content_ads_per_hour"`
	InlineContentAdsPerDay  int           `yaml:"inline_content_ads_per_day"`
	UserActivityThreshold   int           `yaml:"user_activity_threshold"`
	UserActivityWindow      time.Duration `yaml:"user_activity_window"`
}

// DefaultSettings returns the stock pacing limits
func DefaultSettings() Settings {
	return Settings{
		AdsPerHour:              2,
		AdsPerDay:               20,
		InlineContentAdsPerHour: 6,
		InlineContentAdsPerDay:  20,
		UserActivityThreshold:   2,
		UserActivityWindow:      15 * time.Minute,
	}
}

// Deps are the collaborators rules read from
type Deps struct {
	History  History
	Flagged  FlaggedContent
	OptOuts  OptOuts
	Activity Activity
	Issuers  Issuers
	Platform Platform
	Clock    clock.Clock
}

// PermissionRules is an ordered list evaluated with short-circuit
type PermissionRules []PermissionRule

// FirstDisallowing returns the first rule that disallows serving, or nil
func (rules PermissionRules) FirstDisallowing() PermissionRule {
	for _, rule := range rules {
		if !rule.IsAllowed() {
			return rule
		}
	}
	return nil
}

// IsAllowed reports whether every rule allows serving
func (rules PermissionRules) IsAllowed() bool {
	return rules.FirstDisallowing() == nil
}

// ExclusionRules is an ordered list evaluated with short-circuit per candidate
type ExclusionRules []ExclusionRule

// FirstExcluding returns the first rule that excludes ad, or nil
func (rules ExclusionRules) FirstExcluding(ad core.CreativeAd) ExclusionRule {
	for _, rule := range rules {
		if rule.ShouldExclude(ad) {
			return rule
		}
	}
	return nil
}

// ShouldExclude reports whether any rule excludes ad
func (rules ExclusionRules) ShouldExclude(ad core.CreativeAd) bool {
	return rules.FirstExcluding(ad) != nil
}

// Apply returns the candidates no rule excludes, preserving order
func (rules ExclusionRules) Apply(ads []core.CreativeAd) []core.CreativeAd {
	eligible := make([]core.CreativeAd, 0, len(ads))
	for _, ad := range ads {
		if !rules.ShouldExclude(ad) {
			eligible = append(eligible, ad)
		}
	}
	return eligible
}

// PermissionRulesFor builds the permission rules for one ad format
func PermissionRulesFor(adType core.AdType, deps Deps, settings Settings) PermissionRules {
	rules := PermissionRules{
		NewIssuersRule(deps.Issuers),
		NewUserActivityRule(deps.Activity, deps.Clock, settings.UserActivityThreshold, settings.UserActivityWindow),
	}

	switch adType {
	case core.AdTypeNotification:
		rules = append(rules,
			NewAdsPerDayRule(deps.History, deps.Clock, settings.AdsPerDay),
			NewAdsPerHourRule(deps.History, deps.Platform, deps.Clock, settings.AdsPerHour),
			NewMinimumWaitTimeRule(deps.History, deps.Platform, deps.Clock, settings.AdsPerHour),
		)
	case core.AdTypeInlineContent:
		rules = append(rules,
			NewInlineContentAdsPerDayRule(deps.History, deps.Clock, settings.InlineContentAdsPerDay),
			NewInlineContentAdsPerHourRule(deps.History, deps.Clock, settings.InlineContentAdsPerHour),
		)
	}

	return rules
}

// ExclusionRulesFor builds the exclusion rules for one ad format
func ExclusionRulesFor(adType core.AdType, deps Deps) ExclusionRules {
	rules := ExclusionRules{
		NewMarkedAsInappropriateRule(deps.Flagged),
		NewMarkedToNoLongerReceiveRule(deps.OptOuts),
		NewConversionRule(deps.History),
		NewDailyCapRule(deps.History, deps.Clock),
		NewPerDayRule(deps.History, deps.Clock),
		NewTotalMaxRule(deps.History),
	}

	switch adType {
	case core.AdTypeNotification:
		rules = append(rules,
			NewDismissedRule(deps.History, deps.Clock),
			NewPerHourRule(deps.History, deps.Clock),
		)
	case core.AdTypeInlineContent:
		rules = append(rules, NewPerHourRule(deps.History, deps.Clock))
	}

	return rules
}
