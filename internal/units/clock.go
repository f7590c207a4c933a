// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

// Package units provides small typed values (Clock, Bytes, Bitrate) used
// throughout the sender, receiver and congestion controller, instead of
// passing bare ints and floats across package boundaries.
package units

import "time"

// Clock is a millisecond timestamp or duration measured against a single
// monotonic clock. Since saturates at zero instead of wrapping, so a
// sample that arrives out of order never underflows; the plain + and -
// operators on Clock values are unchecked.
type Clock uint64

// ClockMax is the largest representable Clock value.
const ClockMax = Clock(^uint64(0))

// Since returns the Clock elapsed from earlier to c, saturating at 0 if
// earlier is after c (time going backwards).
func (c Clock) Since(earlier Clock) Clock {
	if c < earlier {
		return 0
	}
	return c - earlier
}

// Milliseconds returns the Clock value as a plain uint64 of milliseconds.
func (c Clock) Milliseconds() uint64 {
	return uint64(c)
}

// Duration returns the Clock value as a time.Duration.
func (c Clock) Duration() time.Duration {
	return time.Duration(c) * time.Millisecond
}

// ClockFromDuration converts a time.Duration to a Clock, truncating to
// millisecond resolution.
func ClockFromDuration(d time.Duration) Clock {
	if d < 0 {
		return 0
	}
	return Clock(d.Milliseconds())
}

// Now returns the current time as a Clock relative to the given epoch.
func Now(epoch time.Time) Clock {
	return ClockFromDuration(time.Since(epoch))
}
