// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

// Command sender is the congestion-controlled UDP sender. Its CLI
// preserves the original lab's positional invocation:
//
//	sender HOST PORT [bg_rate_mbps] [debug] [tcp]
//
// while also accepting the same choices as long flags.
package main

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ccwnd-lab/datagrump/internal/bgtraffic"
	"github.com/ccwnd-lab/datagrump/internal/congestion"
	"github.com/ccwnd-lab/datagrump/internal/metrics"
	"github.com/ccwnd-lab/datagrump/internal/rlog"
	"github.com/ccwnd-lab/datagrump/internal/transport"
	"github.com/ccwnd-lab/datagrump/internal/units"
	"github.com/ccwnd-lab/datagrump/internal/wire"
	"github.com/ccwnd-lab/datagrump/internal/xplot"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log := rlog.New(cfg.debug)
	log.Infof("sending to %s:%s, bg_rate=%s, variant=%s", cfg.host, cfg.port, cfg.bgRate, cfg.variant)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := transport.DialSender(ctx, cfg.host, cfg.port)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	reg := prometheus.NewRegistry()
	exp := metrics.NewExporter(reg)
	if cfg.metricsAddr != "" {
		serveMetrics(cfg.metricsAddr, reg, log)
	}

	ctrl := congestion.NewController(cfg.debug, cfg.variant)
	s := &sender{
		conn:  conn,
		ctrl:  ctrl,
		log:   log,
		exp:   exp,
		pacer: bgtraffic.NewPacer(cfg.bgRate, conn.Now()),
	}

	if cfg.xplotPrefix != "" {
		if err := s.openXplots(cfg.xplotPrefix); err != nil {
			log.Fatalf("open xplot traces: %v", err)
		}
		defer s.closeXplots()
	}

	if err := transport.RunLoop(ctx, conn, s, s, s, s.timeout, s.onTimeout); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("run loop: %v", err)
	}
}

// sender ties together the congestion controller, the wire codec and the
// transport event loop: it is the transport.Sender, transport.Receiver
// and transport.Ticker that RunLoop drives.
type sender struct {
	conn  *transport.Conn
	ctrl  *congestion.Controller
	log   *rlog.Logger
	exp   *metrics.Exporter
	pacer *bgtraffic.Pacer

	seq             uint64
	nextAckExpected uint64

	xplotWnd  *xplot.Plot
	xplotRtt  *xplot.Plot
	priorMode congestion.Mode
}

// openXplots creates the window and RTT traces at prefix-wnd.xpl and
// prefix-rtt.xpl, matching the original lab's practice of one xplot
// double-double file per plotted quantity.
func (s *sender) openXplots(prefix string) error {
	wnd, err := xplot.Open(prefix+"-wnd.xpl", xplot.Plot{
		Title:      "window size",
		X:          xplot.Axis{Label: "time", Units: "ms"},
		Y:          xplot.Axis{Label: "datagrams"},
		Decimation: units.Clock(5),
	})
	if err != nil {
		return err
	}
	rtt, err := xplot.Open(prefix+"-rtt.xpl", xplot.Plot{
		Title:      "rtt",
		X:          xplot.Axis{Label: "time", Units: "ms"},
		Y:          xplot.Axis{Label: "rtt", Units: "ms"},
		Decimation: units.Clock(5),
	})
	if err != nil {
		wnd.Close()
		return err
	}
	s.xplotWnd = wnd
	s.xplotRtt = rtt
	return nil
}

func (s *sender) closeXplots() {
	if s.xplotWnd != nil {
		if err := s.xplotWnd.Close(); err != nil {
			s.log.Errorf("close window xplot trace: %v", err)
		}
	}
	if s.xplotRtt != nil {
		if err := s.xplotRtt.Close(); err != nil {
			s.log.Errorf("close rtt xplot trace: %v", err)
		}
	}
}

// plotState records cwnd/dwnd/rtt at now, and marks the slow-start ->
// steady-state transition with a vertical line across the window trace.
func (s *sender) plotState(now units.Clock) {
	if s.xplotWnd != nil {
		s.xplotWnd.Dot(now, s.ctrl.CwndInt(), xplot.Green)
		if s.ctrl.DwndInt() > 0 {
			s.xplotWnd.Plus(now, s.ctrl.DwndInt(), xplot.Red)
		}
		if s.priorMode == congestion.SlowStart && s.ctrl.Mode() == congestion.Steady {
			s.xplotWnd.Line(now, 0, now, s.ctrl.WindowSize(), xplot.Yellow)
		}
	}
	if s.xplotRtt != nil {
		s.xplotRtt.Dot(now, s.ctrl.RTTSmoothMs(), xplot.Blue)
		if min := s.ctrl.RTTMinMs(); !math.IsInf(min, 1) {
			s.xplotRtt.Cross(now, min, xplot.Purple)
		}
	}
	s.priorMode = s.ctrl.Mode()
}

func (s *sender) WindowOpen() bool {
	return s.seq-s.nextAckExpected < s.ctrl.WindowSize()
}

func (s *sender) SendOne() error {
	return s.sendDatagram(false)
}

func (s *sender) sendDatagram(afterTimeout bool) error {
	now := s.conn.Now()
	seq := s.seq
	s.seq++
	buf := wire.EncodeDatagram(seq, now.Milliseconds(), false)
	if _, err := s.conn.Write(buf); err != nil {
		return err
	}
	s.ctrl.DatagramWasSent(seq, now.Milliseconds(), afterTimeout)
	return nil
}

func (s *sender) HandleDatagram(buf []byte, from *net.UDPAddr, recvClock units.Clock) error {
	ack, err := wire.DecodeAck(buf)
	if err != nil {
		s.log.Debugf("dropping malformed ack: %v", err)
		return nil
	}
	if ack.Seq+1 > s.nextAckExpected {
		s.nextAckExpected = ack.Seq + 1
	}
	s.ctrl.AckReceived(ack.Seq, ack.SendTsMs, ack.RecvTsMs, recvClock.Milliseconds())
	s.exp.Observe(s.ctrl)
	s.plotState(recvClock)
	return nil
}

func (s *sender) Tick(now units.Clock) error {
	if !s.pacer.Tick(now) {
		return nil
	}
	if s.xplotWnd != nil {
		s.xplotWnd.Plus(now, s.ctrl.WindowSize(), xplot.Orange)
	}
	buf := wire.EncodeDatagram(0, now.Milliseconds(), true)
	_, err := s.conn.Write(buf)
	return err
}

func (s *sender) timeout() time.Duration {
	return time.Duration(s.ctrl.TimeoutMs()) * time.Millisecond
}

func (s *sender) onTimeout() error {
	return s.sendDatagram(true)
}

func serveMetrics(addr string, reg *prometheus.Registry, log *rlog.Logger) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		log.Infof("serving metrics on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("metrics server: %v", err)
		}
	}()
}

type senderConfig struct {
	host        string
	port        string
	bgRate      units.Bitrate
	debug       bool
	variant     congestion.Variant
	metricsAddr string
	xplotPrefix string
}

// parseArgs accepts both the original positional invocation and long
// flags for the same options.
func parseArgs(args []string) (senderConfig, error) {
	fs := pflag.NewFlagSet("sender", pflag.ContinueOnError)
	bgRateMbps := fs.Float64("bg-rate-mbps", 10, "background cross-traffic rate in Mbps (0 disables it)")
	debug := fs.Bool("debug", false, "enable debug logging")
	tcp := fs.Bool("tcp", false, "use the EwmaForecast/AIMD variant instead of CompoundTcp")
	metricsAddr := fs.String("metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9100")
	xplotPrefix := fs.String("xplot", "", "write <prefix>-wnd.xpl and <prefix>-rtt.xpl xplot traces of cwnd/dwnd/rtt (disabled if empty)")
	fs.Usage = func() {
		os.Stderr.WriteString("usage: sender HOST PORT [bg_rate_mbps] [debug] [tcp]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return senderConfig{}, err
	}

	pos := fs.Args()
	if len(pos) < 2 {
		return senderConfig{}, errUsage
	}
	cfg := senderConfig{
		host:        pos[0],
		port:        pos[1],
		bgRate:      units.Bitrate(*bgRateMbps * float64(units.Mbps)),
		debug:       *debug,
		metricsAddr: *metricsAddr,
		xplotPrefix: *xplotPrefix,
	}
	if *tcp {
		cfg.variant = congestion.EwmaForecast
	} else {
		cfg.variant = congestion.CompoundTCP
	}

	// Positional-compatible overrides, matching the original lab's
	// "HOST PORT [bg_rate_mbps] [debug] [tcp]" argv scan.
	if len(pos) >= 3 {
		if n, err := strconv.Atoi(pos[2]); err == nil {
			cfg.bgRate = units.Bitrate(n) * units.Mbps
		}
	}
	if len(pos) >= 4 && len(pos[3]) > 0 && pos[3][0] == 'd' {
		cfg.debug = true
	}
	if len(pos) >= 5 && len(pos[4]) > 0 && pos[4][0] == 't' {
		cfg.variant = congestion.EwmaForecast
	}
	return cfg, nil
}

var errUsage = errors.New("usage: sender HOST PORT [bg_rate_mbps] [debug] [tcp]")
