// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

// Package metrics exports a running Controller's state as Prometheus
// gauges, so a sender process can be scraped the same way any other
// long-running collector loop is.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ccwnd-lab/datagrump/internal/congestion"
)

// Exporter holds the gauge set for one sender's Controller.
type Exporter struct {
	windowSize prometheus.Gauge
	cwnd       prometheus.Gauge
	dwnd       prometheus.Gauge
	rttSmooth  prometheus.Gauge
	rttMin     prometheus.Gauge
	rateMean   prometheus.Gauge
}

// NewExporter registers a fresh gauge set against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// registry across multiple instances in one process.
func NewExporter(reg prometheus.Registerer) *Exporter {
	f := promauto.With(reg)
	return &Exporter{
		windowSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "datagrump_window_size_datagrams",
			Help: "Current datagram window size (cwnd_int + dwnd_int, floored at MIN_WINDOW).",
		}),
		cwnd: f.NewGauge(prometheus.GaugeOpts{
			Name: "datagrump_cwnd_datagrams",
			Help: "Current congestion window, in datagrams.",
		}),
		dwnd: f.NewGauge(prometheus.GaugeOpts{
			Name: "datagrump_dwnd_datagrams",
			Help: "Current delay window, in datagrams (CompoundTcp only).",
		}),
		rttSmooth: f.NewGauge(prometheus.GaugeOpts{
			Name: "datagrump_rtt_smooth_ms",
			Help: "Smoothed round-trip time estimate, in milliseconds.",
		}),
		rttMin: f.NewGauge(prometheus.GaugeOpts{
			Name: "datagrump_rtt_min_ms",
			Help: "Minimum observed round-trip time, in milliseconds.",
		}),
		rateMean: f.NewGauge(prometheus.GaugeOpts{
			Name: "datagrump_rate_mean_datagrams_per_ms",
			Help: "EWMA of the delivered rate, in datagrams per millisecond.",
		}),
	}
}

// Observe reads every published field off c and updates the gauges. The
// caller is expected to call this once per processed ack, from the same
// goroutine that owns c.
func (e *Exporter) Observe(c *congestion.Controller) {
	e.windowSize.Set(float64(c.WindowSize()))
	e.cwnd.Set(float64(c.CwndInt()))
	e.dwnd.Set(float64(c.DwndInt()))
	e.rttSmooth.Set(c.RTTSmoothMs())
	if min := c.RTTMinMs(); min < 1e18 {
		e.rttMin.Set(min)
	}
	e.rateMean.Set(c.RateMean())
}

// Handler returns an http.Handler serving the registry's metrics in the
// Prometheus text exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
