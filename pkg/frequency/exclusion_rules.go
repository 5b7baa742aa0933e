// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package frequency

import (
	"strings"
	"time"

	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/core"
)

const dismissedWindow = 48 * time.Hour

// PerHourRule excludes a creative instance viewed within the last hour
type PerHourRule struct {
	history History
	clock   clock.Clock
}

func NewPerHourRule(history History, clk clock.Clock) *PerHourRule {
	return &PerHourRule{history: history, clock: clk}
}

func (r *PerHourRule) ShouldExclude(ad core.CreativeAd) bool {
	if r.history == nil || r.clock == nil {
		return true
	}

	ts := timestampsWhere(r.history.History(), func(c core.AdContent) bool {
		return c.CreativeInstanceID == ad.CreativeInstanceID &&
			c.ConfirmationType == core.ConfirmationTypeViewed
	})
	return !DoesHistoryRespectCapForRollingTimeConstraint(ts, r.clock.Now(), time.Hour, 1)
}

func (r *PerHourRule) Reason() string {
	return "creativeInstanceId has exceeded the perHour frequency cap"
}

// PerDayRule caps views of a creative set in a rolling day
type PerDayRule struct {
	history History
	clock   clock.Clock
}

func NewPerDayRule(history History, clk clock.Clock) *PerDayRule {
	return &PerDayRule{history: history, clock: clk}
}

func (r *PerDayRule) ShouldExclude(ad core.CreativeAd) bool {
	if r.history == nil || r.clock == nil {
		return true
	}

	ts := timestampsWhere(r.history.History(), func(c core.AdContent) bool {
		return c.CreativeSetID == ad.CreativeSetID &&
			c.ConfirmationType == core.ConfirmationTypeViewed
	})
	return !DoesHistoryRespectCapForRollingTimeConstraint(ts, r.clock.Now(), 24*time.Hour, ad.PerDay)
}

func (r *PerDayRule) Reason() string {
	return "creativeSetId has exceeded the perDay frequency cap"
}

// DailyCapRule caps views of a campaign in a rolling day
type DailyCapRule struct {
	history History
	clock   clock.Clock
}

func NewDailyCapRule(history History, clk clock.Clock) *DailyCapRule {
	return &DailyCapRule{history: history, clock: clk}
}

func (r *DailyCapRule) ShouldExclude(ad core.CreativeAd) bool {
	if r.history == nil || r.clock == nil {
		return true
	}

	ts := timestampsWhere(r.history.History(), func(c core.AdContent) bool {
		return c.CampaignID == ad.CampaignID &&
			c.ConfirmationType == core.ConfirmationTypeViewed
	})
	return !DoesHistoryRespectCapForRollingTimeConstraint(ts, r.clock.Now(), 24*time.Hour, ad.DailyCap)
}

func (r *DailyCapRule) Reason() string {
	return "campaignId has exceeded the dailyCap frequency cap"
}

// TotalMaxRule caps all-time views of a creative set
type TotalMaxRule struct {
	history History
}

func NewTotalMaxRule(history History) *TotalMaxRule {
	return &TotalMaxRule{history: history}
}

func (r *TotalMaxRule) ShouldExclude(ad core.CreativeAd) bool {
	if r.history == nil {
		return true
	}

	ts := timestampsWhere(r.history.History(), func(c core.AdContent) bool {
		return c.CreativeSetID == ad.CreativeSetID &&
			c.ConfirmationType == core.ConfirmationTypeViewed
	})
	return !DoesHistoryRespectCap(ts, ad.TotalMax)
}

func (r *TotalMaxRule) Reason() string {
	return "creativeSetId has exceeded the totalMax frequency cap"
}

// DismissedRule excludes a creative set the user dismissed in the last 48 hours
type DismissedRule struct {
	history History
	clock   clock.Clock
}

func NewDismissedRule(history History, clk clock.Clock) *DismissedRule {
	return &DismissedRule{history: history, clock: clk}
}

func (r *DismissedRule) ShouldExclude(ad core.CreativeAd) bool {
	if r.history == nil || r.clock == nil {
		return true
	}

	ts := timestampsWhere(r.history.History(), func(c core.AdContent) bool {
		return c.CreativeSetID == ad.CreativeSetID &&
			c.ConfirmationType == core.ConfirmationTypeDismissed
	})
	return !DoesHistoryRespectCapForRollingTimeConstraint(ts, r.clock.Now(), dismissedWindow, 1)
}

func (r *DismissedRule) Reason() string {
	return "creativeSetId was dismissed recently"
}

// ConversionRule excludes a creative set that already converted
type ConversionRule struct {
	history History
}

func NewConversionRule(history History) *ConversionRule {
	return &ConversionRule{history: history}
}

func (r *ConversionRule) ShouldExclude(ad core.CreativeAd) bool {
	if r.history == nil {
		return true
	}

	ts := timestampsWhere(r.history.History(), func(c core.AdContent) bool {
		return c.CreativeSetID == ad.CreativeSetID &&
			c.ConfirmationType == core.ConfirmationTypeConversion
	})
	return len(ts) > 0
}

func (r *ConversionRule) Reason() string {
	return "creativeSetId has already converted"
}

// MarkedAsInappropriateRule excludes creative sets the user flagged
type MarkedAsInappropriateRule struct {
	flagged FlaggedContent
}

func NewMarkedAsInappropriateRule(flagged FlaggedContent) *MarkedAsInappropriateRule {
	return &MarkedAsInappropriateRule{flagged: flagged}
}

func (r *MarkedAsInappropriateRule) ShouldExclude(ad core.CreativeAd) bool {
	if r.flagged == nil {
		return true
	}

	_, flagged := r.flagged.FlaggedCreativeSets()[ad.CreativeSetID]
	return flagged
}

func (r *MarkedAsInappropriateRule) Reason() string {
	return "creativeSetId is marked as inappropriate"
}

// MarkedToNoLongerReceiveRule excludes ads whose segment, or parent segment,
// the user opted out of
type MarkedToNoLongerReceiveRule struct {
	optOuts OptOuts
}

func NewMarkedToNoLongerReceiveRule(optOuts OptOuts) *MarkedToNoLongerReceiveRule {
	return &MarkedToNoLongerReceiveRule{optOuts: optOuts}
}

func (r *MarkedToNoLongerReceiveRule) ShouldExclude(ad core.CreativeAd) bool {
	if r.optOuts == nil {
		return true
	}

	segments := r.optOuts.OptedOutSegments()
	if _, ok := segments[ad.Segment]; ok {
		return true
	}
	_, ok := segments[ParentSegment(ad.Segment)]
	return ok
}

func (r *MarkedToNoLongerReceiveRule) Reason() string {
	return "segment is marked to no longer receive"
}

// ParentSegment returns the top-level segment, e.g. "technology & computing"
// for "technology & computing-software"
func ParentSegment(segment string) string {
	parent, _, _ := strings.Cut(segment, "-")
	return parent
}
