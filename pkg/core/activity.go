// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownActivityType = errors.New("unknown activity event type")

// ActivityEventType is a browsing signal used to decide whether the user is active
type ActivityEventType string

const (
	ActivityOpenedNewTab      ActivityEventType = "opened_new_tab"
	ActivityClosedTab         ActivityEventType = "closed_tab"
	ActivityFocusedOnTab      ActivityEventType = "focused_on_existing_tab"
	ActivityClickedLink       ActivityEventType = "clicked_link"
	ActivityTypedURL          ActivityEventType = "typed_url"
	ActivityPlayedMedia       ActivityEventType = "played_media"
	ActivityBrowserForeground ActivityEventType = "browser_did_become_active"
)

// ParseActivityEventType validates a wire value
func ParseActivityEventType(s string) (ActivityEventType, error) {
	switch t := ActivityEventType(s); t {
	case ActivityOpenedNewTab, ActivityClosedTab, ActivityFocusedOnTab, ActivityClickedLink,
		ActivityTypedURL, ActivityPlayedMedia, ActivityBrowserForeground:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownActivityType, s)
}

// ActivityEvent is one recorded browsing signal
type ActivityEvent struct {
	Type      ActivityEventType `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
}
