// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package congestion

import "math"

// advanceWindow drives the slow-start / steady-state state machine,
// dispatching to the configured variant's Steady-mode rule.
func (c *Controller) advanceWindow(verdict lossVerdict) {
	switch c.mode {
	case SlowStart:
		c.advanceSlowStart(verdict)
	case Steady:
		if c.variant == CompoundTCP {
			c.advanceCompoundTCP(verdict)
		}
		// EwmaForecast's Steady-mode window is recomputed exclusively by
		// the rate estimator's tick: no per-ack AIMD, no dwnd.
	}
}

// advanceSlowStart implements the shared slow-start rule: additive +1 per
// clean ack, reset to cwnd=1 on a declared loss, and a variant-specific
// exit criterion to Steady mode.
func (c *Controller) advanceSlowStart(verdict lossVerdict) {
	switch verdict {
	case ackLossDeclared:
		c.resetToSlowStart()
	case ackLossSuppressed:
		// absorbed: neither grows nor resets the window.
	case ackClean:
		c.cwndInt++
		if c.slowStartExitCriterion() {
			c.mode = Steady
			c.cwndReal = float64(c.cwndInt)
			c.dwndReal = 0
		}
	}
}

// slowStartExitCriterion reports whether the configured variant's
// slow-start exit condition holds.
func (c *Controller) slowStartExitCriterion() bool {
	if c.rttSmoothMs <= c.params.SlowStartRTTMs {
		return false
	}
	if c.variant == EwmaForecast {
		return c.rateMean > 0
	}
	return true
}

// advanceCompoundTCP implements the Compound-TCP Steady-mode cwnd rule
// and the delay-window rule. The loss branch halves cwnd_real before the
// dwnd loss formula runs, so that formula observes the already-halved
// cwnd_int — this ordering is deliberate and must be preserved.
func (c *Controller) advanceCompoundTCP(verdict lossVerdict) {
	switch verdict {
	case ackLossSuppressed:
		return
	case ackLossDeclared:
		c.cwndReal /= 2
		if c.cwndReal <= 1 {
			c.resetToSlowStart()
			return
		}
		c.cwndInt = floor64(c.cwndReal)
		c.updateDelayWindow(true)
	case ackClean:
		c.cwndReal += 1 / (c.cwndReal + c.dwndReal)
		c.updateDelayWindow(false)
	}
	c.cwndInt = floor64(c.cwndReal)
	c.dwndInt = floor64(c.dwndReal)
}

// updateDelayWindow implements the dwnd_real update.
func (c *Controller) updateDelayWindow(loss bool) {
	if c.rttMinMs <= 0 || c.rttSmoothMs <= 0 || math.IsInf(c.rttMinMs, 1) {
		return
	}
	p := &c.params
	win := c.cwndReal + c.dwndReal
	if loss {
		c.dwndReal = win*(1-p.CtcpBeta) - float64(c.cwndInt)/2
		if c.dwndReal < 0 {
			c.dwndReal = 0
		}
		return
	}
	expected := win / c.rttMinMs
	actual := win / c.rttSmoothMs
	diff := (expected - actual) * c.rttMinMs
	if diff < p.CtcpGamma {
		update := p.CtcpAlpha*math.Pow(win, p.CtcpK) - 1
		if update < 0 {
			update = 0
		}
		c.dwndReal += update
	} else {
		c.dwndReal -= p.CtcpZeta * diff
		if c.dwndReal < 0 {
			c.dwndReal = 0
		}
	}
}
