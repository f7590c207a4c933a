// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package congestion

// lossVerdict classifies one ack for the window controller.
type lossVerdict int

const (
	// ackClean is a normal ack: neither a sequence gap nor a delay-excess
	// signal was present.
	ackClean lossVerdict = iota
	// ackLossDeclared is a signal that cleared the refractory window and
	// triggers the steady-state/slow-start loss response.
	ackLossDeclared
	// ackLossSuppressed is a signal that arrived inside the refractory
	// window: it is absorbed and leaves cwnd/dwnd untouched, rather than
	// being treated as either a loss or a clean ack.
	ackLossSuppressed
)

// classifyLoss combines two independent signals — a sequence gap
// (stochastic loss) and an excessive one-way delay (queue-full) — and
// debounces declared loss events with a refractory window so that a
// whole round-trip's worth of delayed acks doesn't each reduce the
// window.
func (c *Controller) classifyLoss(ackSeq, sampleMs, ackArrivalTsMs uint64) lossVerdict {
	stochastic := ackSeq != c.nextExpectedSeq
	delayExcess := sampleMs > c.params.DelayThresholdMs
	if !stochastic && !delayExcess {
		return ackClean
	}
	if ackArrivalTsMs < c.lastLossTimeMs+c.params.LossRefractoryMs {
		return ackLossSuppressed
	}
	c.lastLossTimeMs = ackArrivalTsMs
	return ackLossDeclared
}
