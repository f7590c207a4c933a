// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package congestion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ackAt feeds one ack with the given sequence number and timestamps
// through the controller; whether it reads as clean or lossy depends on
// the controller's expected sequence number and refractory state.
func ackAt(c *Controller, seq, sendTs, recvTs, arrivalTs uint64) {
	c.AckReceived(seq, sendTs, recvTs, arrivalTs)
}

func TestNewControllerInvariants(t *testing.T) {
	c := NewController(false, CompoundTCP)
	assert.Equal(t, SlowStart, c.Mode())
	assert.GreaterOrEqual(t, c.WindowSize(), c.params.MinWindowDatagrams)
	assert.True(t, math.IsInf(c.RTTMinMs(), 1))
	assert.NotZero(t, c.TimeoutMs())
}

// TestWindowSizeNeverBelowMinimum exercises the public contract of
// WindowSize across a long, varied sequence of acks and losses.
func TestWindowSizeNeverBelowMinimum(t *testing.T) {
	for _, v := range []Variant{CompoundTCP, EwmaForecast} {
		c := NewController(false, v)
		ts := uint64(0)
		for i := uint64(0); i < 500; i++ {
			ts += 10
			seq := i
			if i%37 == 0 && i > 0 {
				seq += 2 // inject a sequence gap
			}
			ackAt(c, seq, ts, ts, ts+20)
			require.GreaterOrEqual(t, c.WindowSize(), c.params.MinWindowDatagrams)
		}
	}
}

// TestSlowStartGrowsAdditively checks that a clean ack in slow-start grows
// cwnd_int by exactly one datagram.
func TestSlowStartGrowsAdditively(t *testing.T) {
	c := NewController(false, CompoundTCP)
	before := c.WindowSize()
	ackAt(c, 0, 0, 0, 10)
	assert.Equal(t, before+1, c.WindowSize())
}

// TestSlowStartExitsToSteadyOnRTTThreshold drives enough clean acks with a
// high RTT sample to cross SlowStartRTTMs and checks the controller
// transitions to Steady with cwnd_real seeded from cwnd_int.
func TestSlowStartExitsToSteadyOnRTTThreshold(t *testing.T) {
	c := NewController(false, CompoundTCP)
	ts := uint64(0)
	for i := uint64(0); i < 10; i++ {
		ts += 200
		ackAt(c, i, ts, ts, ts+200) // 200ms sample, well above the 125ms threshold
		if c.Mode() == Steady {
			break
		}
	}
	require.Equal(t, Steady, c.Mode())
	assert.Equal(t, float64(c.cwndInt), c.cwndReal)
	assert.Zero(t, c.dwndReal)
}

// TestLossResetsSlowStart checks that a declared loss signal during
// slow-start collapses the window back to its initial state.
func TestLossResetsSlowStart(t *testing.T) {
	c := NewController(false, CompoundTCP)
	ackAt(c, 0, 0, 0, 10)
	ackAt(c, 1, 10, 10, 20)
	require.Greater(t, c.WindowSize(), uint64(1))

	// a sequence gap: expected 2, got 5, arriving after the initial
	// 80ms refractory window (last loss time starts at 0).
	ackAt(c, 5, 100, 100, 110)
	assert.Equal(t, uint64(1), c.cwndInt)
	assert.Equal(t, SlowStart, c.Mode())
}

// TestCompoundTCPSteadyAIMDGrowth checks the AIMD growth formula:
// cwnd_real += 1 / (cwnd_real + dwnd_real) on a clean ack in Steady mode.
func TestCompoundTCPSteadyAIMDGrowth(t *testing.T) {
	c := NewController(false, CompoundTCP)
	c.mode = Steady
	c.cwndReal = 6
	c.dwndReal = 0
	c.cwndInt = 6
	c.rttSmoothMs = 150
	c.rttMinMs = 100

	want := c.cwndReal + 1/(c.cwndReal+c.dwndReal)
	c.advanceWindow(ackClean)
	assert.InDelta(t, want, c.cwndReal, 1e-9)
}

// TestCompoundTCPLossHalvesBeforeDwndReadsCwndInt reproduces spec scenario
// S3: a declared loss in Steady mode halves cwnd_real, recomputes cwnd_int
// from the halved value, and only then evaluates the dwnd loss branch,
// which must observe the already-halved cwnd_int.
func TestCompoundTCPLossHalvesBeforeDwndReadsCwndInt(t *testing.T) {
	c := NewController(false, CompoundTCP)
	c.mode = Steady
	c.cwndReal = 6
	c.dwndReal = 0
	c.cwndInt = 6
	c.rttSmoothMs = 150
	c.rttMinMs = 100

	c.advanceWindow(ackLossDeclared)

	assert.InDelta(t, 3.0, c.cwndReal, 1e-9)
	assert.Equal(t, uint64(3), c.cwndInt)
	// dwnd_real = win*(1-beta) - cwnd_int/2, with win = 3.0 (dwnd_real
	// was 0 going in) and cwnd_int already halved to 3.
	wantDwnd := 3.0*(1-c.params.CtcpBeta) - 3.0/2
	assert.InDelta(t, wantDwnd, c.dwndReal, 1e-9)
}

// TestLossRefractorySuppressesSecondLoss reproduces spec scenario S4: a
// second loss signal inside the refractory window is absorbed, leaving
// cwnd_real and dwnd_real untouched rather than halving again.
func TestLossRefractorySuppressesSecondLoss(t *testing.T) {
	c := NewController(false, CompoundTCP)
	c.mode = Steady
	c.cwndReal = 6
	c.dwndReal = 0
	c.cwndInt = 6
	c.rttSmoothMs = 150
	c.rttMinMs = 100
	c.nextExpectedSeq = 10

	// first gap at arrival_ts=200: declared loss.
	ackAt(c, 15, 100, 100, 200)
	cwndAfterFirstLoss := c.cwndReal
	dwndAfterFirstLoss := c.dwndReal
	require.InDelta(t, 3.0, cwndAfterFirstLoss, 1e-9)

	// second gap at arrival_ts=250, inside the 80ms refractory window.
	c.nextExpectedSeq = 20
	ackAt(c, 25, 220, 220, 250)

	assert.InDelta(t, cwndAfterFirstLoss, c.cwndReal, 1e-9)
	assert.InDelta(t, dwndAfterFirstLoss, c.dwndReal, 1e-9)
}

// TestCompoundTCPCollapseBelowOneReenterSlowStart checks that a loss which
// would halve cwnd_real to at or below 1 resets to slow-start instead.
func TestCompoundTCPCollapseBelowOneReenterSlowStart(t *testing.T) {
	c := NewController(false, CompoundTCP)
	c.mode = Steady
	c.cwndReal = 1.5
	c.dwndReal = 0
	c.cwndInt = 1

	c.advanceWindow(ackLossDeclared)

	assert.Equal(t, SlowStart, c.Mode())
	assert.Equal(t, uint64(1), c.cwndInt)
	assert.Equal(t, float64(1), c.cwndReal)
}

// TestRTTEstimatorSeedsThenSmooths checks that the first sample seeds
// rtt_smooth_ms directly, and later samples are EWMA-smoothed.
func TestRTTEstimatorSeedsThenSmooths(t *testing.T) {
	c := NewController(false, CompoundTCP)
	c.updateRTT(100)
	assert.Equal(t, float64(100), c.rttSmoothMs)
	assert.Equal(t, float64(100), c.rttMinMs)

	c.updateRTT(200)
	want := c.params.RTTAlpha*200 + (1-c.params.RTTAlpha)*100
	assert.InDelta(t, want, c.rttSmoothMs, 1e-9)
	assert.Equal(t, float64(100), c.rttMinMs) // min unaffected by a higher sample
}

// TestEwmaForecastNeverGrowsCwndViaAIMD checks that an EwmaForecast
// controller in Steady mode ignores the per-ack CompoundTCP growth path:
// only tick() may change cwnd_int/dwnd_int.
func TestEwmaForecastNeverGrowsCwndViaAIMD(t *testing.T) {
	c := NewController(false, EwmaForecast)
	c.mode = Steady
	c.cwndInt = 10
	c.dwndInt = 0

	c.advanceWindow(ackClean)
	assert.Equal(t, uint64(10), c.cwndInt)
	assert.Equal(t, uint64(0), c.dwndInt)

	c.advanceWindow(ackLossDeclared)
	assert.Equal(t, uint64(10), c.cwndInt)
}

// TestEwmaForecastWindowFormula reproduces spec scenario S5: with
// rate_mean=4, rate_var=1 (std=1) and rtt_smooth_ms=50, the cautious-rate
// forecast (3.25 * 100 = 325) is well under the BDP cap (2 * 4*50 = 400),
// so cwnd_int must land on the uncapped forecast value.
func TestEwmaForecastWindowFormula(t *testing.T) {
	c := NewController(false, EwmaForecast)
	c.rateMean = 4
	c.rateVar = 1
	c.rttSmoothMs = 50

	c.recomputeForecastWindow(4)

	assert.Equal(t, uint64(325), c.cwndInt)
	assert.Zero(t, c.dwndInt)
}

// TestEwmaForecastWindowFormulaBDPCap exercises the other branch of the
// same formula: a tiny rtt_smooth_ms drives the bandwidth-delay product
// cap below the uncapped cautious-rate forecast, so cwnd_int must be
// clamped to BDP_MULT * bdp instead.
func TestEwmaForecastWindowFormulaBDPCap(t *testing.T) {
	c := NewController(false, EwmaForecast)
	c.rateMean = 10
	c.rateVar = 1 // std = 1, cautious_rate = 10 - 0.75 = 9.25
	c.rttSmoothMs = 10

	// uncapped forecast = 9.25 * 100 = 925; bdp = 10*10 = 100, cap = 200.
	c.recomputeForecastWindow(10)

	assert.Equal(t, uint64(200), c.cwndInt)
	assert.Zero(t, c.dwndInt)
}

// TestEwmaForecastWindowFormulaFloorsAtForecastMinWindow checks that when
// the BDP cap falls under ForecastMinWindowDatagrams, cwnd_int is floored
// at that minimum rather than the smaller cap value.
func TestEwmaForecastWindowFormulaFloorsAtForecastMinWindow(t *testing.T) {
	c := NewController(false, EwmaForecast)
	c.rateMean = 1
	c.rateVar = 0.01 // std = 0.1, cautious_rate = 1 - 0.075 = 0.925
	c.rttSmoothMs = 1

	// uncapped forecast = 0.925 * 100 = 92.5; bdp = 1*1 = 1, cap = 2.
	// cap (2) is below ForecastMinWindowDatagrams (5), so the floor wins.
	c.recomputeForecastWindow(1)

	assert.Equal(t, uint64(5), c.cwndInt)
	assert.Zero(t, c.dwndInt)
}

// TestSatSubSaturatesAtZero checks the timestamp-underflow guard used
// throughout the estimator.
func TestSatSubSaturatesAtZero(t *testing.T) {
	assert.Equal(t, uint64(0), satSub(5, 10))
	assert.Equal(t, uint64(5), satSub(10, 5))
}
