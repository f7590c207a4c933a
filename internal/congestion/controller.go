// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package congestion

import "math"

// Controller is a single-owner, single-threaded congestion-control state
// machine. It is mutated only by DatagramWasSent and AckReceived and is
// never shared across goroutines without external synchronization.
type Controller struct {
	debug   bool
	variant Variant
	params  Params

	mode Mode

	cwndInt  uint64
	dwndInt  uint64
	cwndReal float64
	dwndReal float64

	nextExpectedSeq uint64
	lastLossTimeMs  uint64

	rttSmoothMs float64
	rttMinMs    float64

	rateMean float64
	rateVar  float64

	tickSeq     uint64
	tickTimeMs  uint64
	recvSeqHigh uint64
	curRate     float64
}

// NewController returns a Controller using the reference default
// parameters for variant.
func NewController(debug bool, variant Variant) *Controller {
	return NewControllerWithParams(debug, variant, DefaultParams())
}

// NewControllerWithParams returns a Controller with explicitly overridden
// parameters. Callers that don't need to override any constant should use
// NewController instead.
func NewControllerWithParams(debug bool, variant Variant, params Params) *Controller {
	return &Controller{
		debug:    debug,
		variant:  variant,
		params:   params,
		mode:     SlowStart,
		cwndInt:  1,
		dwndInt:  0,
		cwndReal: 1,
		dwndReal: 0,
		rttMinMs: math.Inf(1),
	}
}

// WindowSize returns the current number of datagrams the sender may keep
// in flight. It never mutates state and is guaranteed to return at least
// MinWindowDatagrams (default 1).
func (c *Controller) WindowSize() uint64 {
	w := c.cwndInt + c.dwndInt
	if w < c.params.MinWindowDatagrams {
		return c.params.MinWindowDatagrams
	}
	return w
}

// CwndInt returns the current congestion window, in datagrams.
func (c *Controller) CwndInt() uint64 {
	return c.cwndInt
}

// DwndInt returns the current delay window, in datagrams. It is always
// zero for the EwmaForecast variant.
func (c *Controller) DwndInt() uint64 {
	return c.dwndInt
}

// Mode returns the controller's current slow-start / steady-state phase.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Variant returns the configured Steady-mode strategy.
func (c *Controller) Variant() Variant {
	return c.variant
}

// RTTSmoothMs returns the current smoothed RTT estimate, in milliseconds.
func (c *Controller) RTTSmoothMs() float64 {
	return c.rttSmoothMs
}

// RTTMinMs returns the minimum observed RTT, in milliseconds, or +Inf if
// no ack has been processed yet.
func (c *Controller) RTTMinMs() float64 {
	return c.rttMinMs
}

// RateMean returns the current EWMA of the delivered rate, in datagrams
// per millisecond.
func (c *Controller) RateMean() float64 {
	return c.rateMean
}

// TimeoutMs returns the caller-side poll budget: how long to wait for an
// ack before probing with a timeout-triggered send. It is a constant and
// is never zero.
func (c *Controller) TimeoutMs() uint32 {
	return c.params.TimeoutMs
}

// DatagramWasSent notifies the controller that a datagram was sent. It is
// purely advisory except that afterTimeout forces a transition back to
// slow-start, per the controller's timeout-recovery rule.
func (c *Controller) DatagramWasSent(seq, sendTsMs uint64, afterTimeout bool) {
	if afterTimeout {
		c.resetToSlowStart()
	}
}

// AckReceived is the controller's main entry point, processing one
// received acknowledgement: it updates the RTT estimate, classifies the
// ack as lossy or clean, advances the rate estimator's logical tick, and
// drives the slow-start / steady-state window state machine.
func (c *Controller) AckReceived(ackSeq, sendTsMs, recvTsMs, ackArrivalTsMs uint64) {
	sample := satSub(ackArrivalTsMs, sendTsMs)

	verdict := c.classifyLoss(ackSeq, sample, ackArrivalTsMs)
	c.nextExpectedSeq = max64(c.nextExpectedSeq, ackSeq+1)
	c.updateRTT(sample)
	c.tick(ackSeq, recvTsMs)
	c.advanceWindow(verdict)
}

// resetToSlowStart re-initializes cwnd/dwnd and returns the controller to
// slow-start, as performed on a declared steady-state collapse or a
// timeout-triggered retransmission.
func (c *Controller) resetToSlowStart() {
	c.mode = SlowStart
	c.cwndInt = 1
	c.dwndInt = 0
	c.cwndReal = 1
	c.dwndReal = 0
}

// satSub returns a-b, saturating at 0 instead of underflowing, per the
// controller's handling of non-monotone timestamps.
func satSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func floor64(f float64) uint64 {
	if f < 0 {
		return 0
	}
	return uint64(math.Floor(f))
}
