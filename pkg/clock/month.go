// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clock

import "time"

// BeginningOfMonth returns the first instant of t's calendar month, in t's location.
func BeginningOfMonth(t time.Time) time.Time {
	year, month, _ := t.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the last representable instant of t's calendar month.
func EndOfMonth(t time.Time) time.Time {
	return BeginningOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// BeginningOfPreviousMonth returns the first instant of the month before t's.
func BeginningOfPreviousMonth(t time.Time) time.Time {
	return BeginningOfMonth(t).AddDate(0, -1, 0)
}

// EndOfPreviousMonth returns the last instant of the month before t's.
func EndOfPreviousMonth(t time.Time) time.Time {
	return BeginningOfMonth(t).Add(-time.Nanosecond)
}

// MonthKey formats t's month as "YYYY-MM".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
