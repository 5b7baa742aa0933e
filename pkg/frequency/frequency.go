// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package frequency implements the permission and exclusion rules that gate
// ad serving. Every rule is recomputed from history on each call; nothing is
// cached between calls.
package frequency

import (
	"time"

	"github.com/luxfi/adengine/pkg/core"
)

// PermissionRule gates whether any ad may be served right now
type PermissionRule interface {
	IsAllowed() bool
	Reason() string
}

// ExclusionRule gates whether one specific candidate may be served
type ExclusionRule interface {
	ShouldExclude(ad core.CreativeAd) bool
	Reason() string
}

// History supplies the time-ordered ad interaction log
type History interface {
	History() []core.AdHistoryEntry
}

// FlaggedContent supplies the creative sets the user marked as inappropriate
type FlaggedContent interface {
	FlaggedCreativeSets() map[string]struct{}
}

// OptOuts supplies the segments the user no longer wants to receive
type OptOuts interface {
	OptedOutSegments() map[string]struct{}
}

// Activity supplies recorded browsing signals
type Activity interface {
	UserActivity() []core.ActivityEvent
}

// Issuers reports whether the token issuers needed for redemption are known
type Issuers interface {
	HasIssuers() bool
}

// Platform reports the device form factor
type Platform interface {
	IsMobile() bool
}

// StaticPlatform is a Platform with a fixed answer
type StaticPlatform bool

func (p StaticPlatform) IsMobile() bool { return bool(p) }

// DoesHistoryRespectCapForRollingTimeConstraint counts the timestamps inside
// [now-window, now] and reports whether that count is below cap.
func DoesHistoryRespectCapForRollingTimeConstraint(
	history []time.Time,
	now time.Time,
	window time.Duration,
	cap int,
) bool {
	from := now.Add(-window)

	count := 0
	for _, ts := range history {
		if ts.Before(from) || ts.After(now) {
			continue
		}
		count++
	}

	return count < cap
}

// DoesHistoryRespectCap reports whether the all-time count is below cap
func DoesHistoryRespectCap(history []time.Time, cap int) bool {
	return len(history) < cap
}

func timestampsWhere(entries []core.AdHistoryEntry, match func(core.AdContent) bool) []time.Time {
	var out []time.Time
	for _, entry := range entries {
		if match(entry.Content) {
			out = append(out, entry.Timestamp)
		}
	}
	return out
}

func viewedOfType(adType core.AdType) func(core.AdContent) bool {
	return func(c core.AdContent) bool {
		return c.Type == adType && c.ConfirmationType == core.ConfirmationTypeViewed
	}
}
