// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package frequency

import (
	"time"

	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/core"
)

// AdsPerHourRule caps viewed notification ads in a rolling hour. Mobile form
// factors pace notifications elsewhere, so the rule always allows there.
type AdsPerHourRule struct {
	history  History
	platform Platform
	clock    clock.Clock
	cap      int
}

func NewAdsPerHourRule(history History, platform Platform, clk clock.Clock, adsPerHour int) *AdsPerHourRule {
	return &AdsPerHourRule{history: history, platform: platform, clock: clk, cap: adsPerHour}
}

func (r *AdsPerHourRule) IsAllowed() bool {
	if r.history == nil || r.platform == nil || r.clock == nil {
		return false
	}
	if r.platform.IsMobile() {
		return true
	}

	ts := timestampsWhere(r.history.History(), viewedOfType(core.AdTypeNotification))
	return DoesHistoryRespectCapForRollingTimeConstraint(ts, r.clock.Now(), time.Hour, r.cap)
}

func (r *AdsPerHourRule) Reason() string {
	return "You have exceeded the allowed ads per hour"
}

// AdsPerWindowRule caps viewed ads of one type in a rolling window
type AdsPerWindowRule struct {
	adType  core.AdType
	window  time.Duration
	cap     int
	history History
	clock   clock.Clock
	reason  string
}

func NewAdsPerDayRule(history History, clk clock.Clock, adsPerDay int) *AdsPerWindowRule {
	return &AdsPerWindowRule{
		adType:  core.AdTypeNotification,
		window:  24 * time.Hour,
		cap:     adsPerDay,
		history: history,
		clock:   clk,
		reason:  "You have exceeded the allowed ads per day",
	}
}

func NewInlineContentAdsPerHourRule(history History, clk clock.Clock, adsPerHour int) *AdsPerWindowRule {
	return &AdsPerWindowRule{
		adType:  core.AdTypeInlineContent,
		window:  time.Hour,
		cap:     adsPerHour,
		history: history,
		clock:   clk,
		reason:  "You have exceeded the allowed inline content ads per hour",
	}
}

func NewInlineContentAdsPerDayRule(history History, clk clock.Clock, adsPerDay int) *AdsPerWindowRule {
	return &AdsPerWindowRule{
		adType:  core.AdTypeInlineContent,
		window:  24 * time.Hour,
		cap:     adsPerDay,
		history: history,
		clock:   clk,
		reason:  "You have exceeded the allowed inline content ads per day",
	}
}

func (r *AdsPerWindowRule) IsAllowed() bool {
	if r.history == nil || r.clock == nil {
		return false
	}

	ts := timestampsWhere(r.history.History(), viewedOfType(r.adType))
	return DoesHistoryRespectCapForRollingTimeConstraint(ts, r.clock.Now(), r.window, r.cap)
}

func (r *AdsPerWindowRule) Reason() string {
	return r.reason
}

// MinimumWaitTimeRule spaces notification ads evenly: at most one viewed
// notification per (1 hour / ads per hour).
type MinimumWaitTimeRule struct {
	history    History
	platform   Platform
	clock      clock.Clock
	adsPerHour int
}

func NewMinimumWaitTimeRule(history History, platform Platform, clk clock.Clock, adsPerHour int) *MinimumWaitTimeRule {
	return &MinimumWaitTimeRule{history: history, platform: platform, clock: clk, adsPerHour: adsPerHour}
}

func (r *MinimumWaitTimeRule) IsAllowed() bool {
	if r.history == nil || r.platform == nil || r.clock == nil {
		return false
	}
	if r.platform.IsMobile() {
		return true
	}
	if r.adsPerHour <= 0 {
		return false
	}

	window := time.Hour / time.Duration(r.adsPerHour)
	ts := timestampsWhere(r.history.History(), viewedOfType(core.AdTypeNotification))
	return DoesHistoryRespectCapForRollingTimeConstraint(ts, r.clock.Now(), window, 1)
}

func (r *MinimumWaitTimeRule) Reason() string {
	return "Ad cannot be shown as minimum wait time has not passed"
}

// UserActivityRule requires enough recent browsing signals before serving
type UserActivityRule struct {
	activity  Activity
	clock     clock.Clock
	threshold int
	window    time.Duration
}

func NewUserActivityRule(activity Activity, clk clock.Clock, threshold int, window time.Duration) *UserActivityRule {
	return &UserActivityRule{activity: activity, clock: clk, threshold: threshold, window: window}
}

func (r *UserActivityRule) IsAllowed() bool {
	if r.activity == nil || r.clock == nil {
		return false
	}

	events := r.activity.UserActivity()
	ts := make([]time.Time, 0, len(events))
	for _, event := range events {
		ts = append(ts, event.Timestamp)
	}

	// Allowed once the count reaches the threshold.
	return !DoesHistoryRespectCapForRollingTimeConstraint(ts, r.clock.Now(), r.window, r.threshold)
}

func (r *UserActivityRule) Reason() string {
	return "User was inactive"
}

// IssuersRule requires confirmation and payment issuers to be known
type IssuersRule struct {
	issuers Issuers
}

func NewIssuersRule(issuers Issuers) *IssuersRule {
	return &IssuersRule{issuers: issuers}
}

func (r *IssuersRule) IsAllowed() bool {
	if r.issuers == nil {
		return false
	}
	return r.issuers.HasIssuers()
}

func (r *IssuersRule) Reason() string {
	return "Missing issuers"
}
