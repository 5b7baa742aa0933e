// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

import "fmt"

// ConfirmationType is the kind of user/ad interaction recorded as a transaction
type ConfirmationType string

const (
	ConfirmationTypeUndefined  ConfirmationType = ""
	ConfirmationTypeViewed     ConfirmationType = "view"
	ConfirmationTypeClicked    ConfirmationType = "click"
	ConfirmationTypeDismissed  ConfirmationType = "dismiss"
	ConfirmationTypeLanded     ConfirmationType = "landed"
	ConfirmationTypeFlagged    ConfirmationType = "flag"
	ConfirmationTypeUpvoted    ConfirmationType = "upvote"
	ConfirmationTypeDownvoted  ConfirmationType = "downvote"
	ConfirmationTypeSaved      ConfirmationType = "bookmark"
	ConfirmationTypeConversion ConfirmationType = "conversion"
)

var confirmationTypes = map[ConfirmationType]struct{}{
	ConfirmationTypeViewed:     {},
	ConfirmationTypeClicked:    {},
	ConfirmationTypeDismissed:  {},
	ConfirmationTypeLanded:     {},
	ConfirmationTypeFlagged:    {},
	ConfirmationTypeUpvoted:    {},
	ConfirmationTypeDownvoted:  {},
	ConfirmationTypeSaved:      {},
	ConfirmationTypeConversion: {},
}

// IsValid reports whether c is a known, defined confirmation type
func (c ConfirmationType) IsValid() bool {
	_, ok := confirmationTypes[c]
	return ok
}

func (c ConfirmationType) String() string {
	return string(c)
}

// ParseConfirmationType validates a wire value
func ParseConfirmationType(s string) (ConfirmationType, error) {
	c := ConfirmationType(s)
	if !c.IsValid() {
		return ConfirmationTypeUndefined, fmt.Errorf("%w: %q", ErrUnknownConfirmationType, s)
	}
	return c, nil
}
