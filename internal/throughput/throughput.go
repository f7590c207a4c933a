// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

// Package throughput implements the receiver-side delivered-rate tracker,
// adapted from the original lab's ThroughputTracker: an EWMA over
// bits-received-per-interval, reported whenever an interval boundary is
// crossed rather than on a fixed timer.
package throughput

import "github.com/ccwnd-lab/datagrump/internal/units"

// Tracker accumulates bits received since the last report and folds the
// interval's rate into an EWMA once more than minIntervalMs has elapsed.
type Tracker struct {
	alpha         float64
	minIntervalMs uint64

	lastTimestampMs uint64
	bitsInInterval  uint64

	ewmaBps float64
}

// New returns a Tracker seeded at startTimestampMs. alpha is the EWMA
// smoothing factor and an interval is folded into a new sample only once
// it has run longer than minIntervalMs, matching the original alpha=0.5,
// min_time_delta=100ms defaults.
func New(startTimestampMs uint64, alpha float64, minIntervalMs uint64) *Tracker {
	return &Tracker{
		alpha:           alpha,
		minIntervalMs:   minIntervalMs,
		lastTimestampMs: startTimestampMs,
	}
}

// Update folds bitsReceived into the current interval and, if the
// interval has run for more than minIntervalMs, recomputes the EWMA and
// starts a new interval. It returns the current EWMA bitrate either way.
func (t *Tracker) Update(bitsReceived, timestampMs uint64) units.Bitrate {
	t.bitsInInterval += bitsReceived
	if timestampMs <= t.lastTimestampMs+t.minIntervalMs {
		return units.Bitrate(t.ewmaBps)
	}

	elapsedMs := timestampMs - t.lastTimestampMs
	curBps := float64(t.bitsInInterval) * 1000 / float64(elapsedMs)
	if t.ewmaBps == 0 {
		t.ewmaBps = curBps
	} else {
		t.ewmaBps = t.alpha*curBps + (1-t.alpha)*t.ewmaBps
	}

	t.bitsInInterval = 0
	t.lastTimestampMs = timestampMs
	return units.Bitrate(t.ewmaBps)
}

// Throughput returns the most recently computed EWMA bitrate without
// mutating tracker state.
func (t *Tracker) Throughput() units.Bitrate {
	return units.Bitrate(t.ewmaBps)
}
