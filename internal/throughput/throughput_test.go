// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package throughput

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateHoldsUntilIntervalElapses(t *testing.T) {
	tr := New(0, 0.5, 100)
	got := tr.Update(8000, 50) // within the 100ms interval floor
	assert.Equal(t, float64(0), float64(got))
}

func TestUpdateSeedsThenSmooths(t *testing.T) {
	tr := New(0, 0.5, 100)

	got := tr.Update(8_000_000, 1000) // 1000ms interval, 8Mbit -> 8Mbps
	assert.InDelta(t, 8_000_000, float64(got), 1)

	got = tr.Update(16_000_000, 2000) // next 1000ms interval, 16Mbps
	want := 0.5*16_000_000 + 0.5*8_000_000
	assert.InDelta(t, want, float64(got), 1)
}

func TestThroughputReflectsLastUpdate(t *testing.T) {
	tr := New(0, 0.5, 100)
	tr.Update(8_000_000, 1000)
	assert.InDelta(t, 8_000_000, float64(tr.Throughput()), 1)
}
