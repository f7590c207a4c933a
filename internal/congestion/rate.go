// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package congestion

import "math"

// tick advances the rate estimator. A logical tick fires when the
// receiver-clock gap since the last tick exceeds TickMs, or on the very
// first ack (ack_seq == 0) so the estimator isn't stalled waiting for
// the first real interval — the controller otherwise simply holds the
// initial window until then.
func (c *Controller) tick(ackSeq, recvTsMs uint64) {
	if ackSeq > c.recvSeqHigh {
		c.recvSeqHigh = ackSeq
	}
	if !(recvTsMs > c.tickTimeMs+c.params.TickMs || ackSeq == 0) {
		return
	}
	deltaMs := satSub(recvTsMs, c.tickTimeMs)
	if deltaMs == 0 {
		// avoid a division by zero in the rate calculation: skip this tick.
		return
	}
	curRate := float64(c.recvSeqHigh-c.tickSeq) / float64(deltaMs)
	c.curRate = curRate

	if c.mode == SlowStart {
		// A slow-start tick is a probe: seed the mean directly and assign a
		// deliberately wide initial dispersion.
		c.rateMean = curRate
		if curRate >= 0 {
			c.rateVar = math.Sqrt(curRate)
		} else {
			c.rateVar = 0
		}
	} else {
		mu := c.params.RateMeanSmooth
		c.rateMean = mu*curRate + (1-mu)*c.rateMean
		sqdev := (curRate - c.rateMean) * (curRate - c.rateMean)
		nu := c.params.RateVarSmooth
		c.rateVar = nu*sqdev + (1-nu)*c.rateVar

		if c.variant == EwmaForecast {
			c.recomputeForecastWindow(curRate)
		}
	}

	c.tickSeq = c.recvSeqHigh
	c.tickTimeMs = recvTsMs
}

// recomputeForecastWindow implements the EwmaForecast variant's
// Steady-mode window formula: size the window to the number of
// datagrams expected to drain from the bottleneck in the next
// forecast_ms milliseconds, capped by a multiple of the bandwidth-delay
// product so a momentarily tiny variance can't explode the window.
func (c *Controller) recomputeForecastWindow(curRate float64) {
	p := &c.params
	stddev := math.Sqrt(c.rateVar)
	cautiousRate := c.rateMean - p.ForecastConfidenceMult*stddev
	forecastMs := p.ForecastBaseMs - p.ForecastSpread*stddev
	bdp := curRate * c.rttSmoothMs

	cwnd := math.Max(p.ForecastMinWindowDatagrams, cautiousRate*forecastMs)
	if cap := p.ForecastBDPMult * bdp; cwnd > cap {
		cwnd = math.Max(p.ForecastMinWindowDatagrams, cap)
	}
	c.cwndInt = floor64(cwnd)
	c.dwndInt = 0
}
