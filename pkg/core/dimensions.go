// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/prebid/openrtb/v20/openrtb2"
)

var ErrInvalidDimensions = errors.New("invalid dimensions")

var dimensionsPattern = regexp.MustCompile(`^[1-9][0-9]*x[1-9][0-9]*$`)

// Constraints narrow a catalog fetch
type Constraints struct {
	// Dimensions is required for inline content ads and ignored otherwise
	Dimensions *openrtb2.Format
}

// ParseDimensions parses an exact "WxH" pixel size such as "200x100".
// Wildcards and partial sizes are rejected.
func ParseDimensions(s string) (openrtb2.Format, error) {
	if !dimensionsPattern.MatchString(s) {
		return openrtb2.Format{}, fmt.Errorf("%w: %q", ErrInvalidDimensions, s)
	}

	w, h, _ := strings.Cut(s, "x")
	width, err := strconv.ParseInt(w, 10, 64)
	if err != nil {
		return openrtb2.Format{}, fmt.Errorf("%w: %q: %v", ErrInvalidDimensions, s, err)
	}
	height, err := strconv.ParseInt(h, 10, 64)
	if err != nil {
		return openrtb2.Format{}, fmt.Errorf("%w: %q: %v", ErrInvalidDimensions, s, err)
	}

	return openrtb2.Format{W: width, H: height}, nil
}

// SameDimensions reports whether a and b describe the same pixel size.
// Format carries a raw Ext payload, so it cannot be compared with ==.
func SameDimensions(a, b openrtb2.Format) bool {
	return a.W == b.W && a.H == b.H
}

// FormatDimensions renders f as "WxH"
func FormatDimensions(f openrtb2.Format) string {
	return strconv.FormatInt(f.W, 10) + "x" + strconv.FormatInt(f.H, 10)
}
