// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

// Package bgtraffic generates the sender's background cross-traffic: a
// constant-bitrate stream of marker-tagged filler datagrams, toggled on
// and off every ToggleInterval, adapted from the original sender's
// inject_bg_packet/toggle logic.
package bgtraffic

import (
	"time"

	"github.com/ccwnd-lab/datagrump/internal/units"
	"github.com/ccwnd-lab/datagrump/internal/wire"
)

// ToggleInterval is how long background traffic stays on or off before
// flipping, matching the original sender's ten-second toggle period.
const ToggleInterval = 10 * time.Second

// Pacer decides when the next background datagram is due and flips
// on/off at ToggleInterval boundaries. It holds no socket; the caller
// sends the background datagram itself when Tick reports one is due.
type Pacer struct {
	period units.Clock // time between background datagrams while on

	on           bool
	nextSendMs   units.Clock
	nextToggleMs units.Clock
}

// NewPacer returns a Pacer starting "off" at startMs. A rate of 0 means
// background traffic is disabled entirely: Tick never reports one due.
func NewPacer(rate units.Bitrate, startMs units.Clock) *Pacer {
	p := &Pacer{nextToggleMs: startMs + units.ClockFromDuration(ToggleInterval)}
	if rate > 0 {
		p.period = units.ClockFromDuration(units.TransferTime(rate, units.Bytes(wire.PayloadBytes)))
	}
	return p
}

// Tick advances the pacer to now, flipping on/off at toggle boundaries,
// and reports whether a background datagram is due to be sent right now.
// When it returns true, the caller should send one wire.EncodeDatagram(0,
// sendTsMs, true) and the pacer will not report due again until one more
// period has elapsed.
func (p *Pacer) Tick(now units.Clock) bool {
	if now >= p.nextToggleMs {
		p.on = !p.on
		p.nextToggleMs = now + units.ClockFromDuration(ToggleInterval)
	}
	if p.period == 0 || !p.on {
		return false
	}
	if now < p.nextSendMs {
		return false
	}
	p.nextSendMs = now + p.period
	return true
}

// On reports whether background traffic is currently enabled.
func (p *Pacer) On() bool {
	return p.on
}
