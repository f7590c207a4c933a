// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

// Command receiver acknowledges every non-background datagram it
// receives and tracks delivered throughput, per
// original_source/datagrump/receiver.cc.
package main

import (
	"net"
	"os"

	"github.com/spf13/pflag"

	"github.com/ccwnd-lab/datagrump/internal/rlog"
	"github.com/ccwnd-lab/datagrump/internal/throughput"
	"github.com/ccwnd-lab/datagrump/internal/transport"
	"github.com/ccwnd-lab/datagrump/internal/units"
	"github.com/ccwnd-lab/datagrump/internal/wire"
)

// throughputAlpha and throughputMinIntervalMs match the original
// ThroughputTracker's defaults (alpha=0.5, min_time_delta=100ms).
const (
	throughputAlpha         = 0.5
	throughputMinIntervalMs = 100
	packetSizeBits          = wire.PayloadBytes * 8
)

func main() {
	debug := pflag.Bool("debug", false, "enable debug logging")
	pflag.Parse()

	pos := pflag.Args()
	if len(pos) < 1 {
		os.Stderr.WriteString("usage: receiver PORT\n")
		os.Exit(1)
	}
	port := pos[0]

	log := rlog.New(*debug)
	conn, err := transport.ListenReceiver(port)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer conn.Close()
	log.Infof("listening on %s", conn.LocalAddr())

	r := &receiver{conn: conn, log: log}
	buf := make([]byte, transport.MaxDatagramBytes)
	for {
		n, from, recvClock, timedOut, err := conn.ReadWithDeadline(buf, 0)
		if timedOut {
			continue
		}
		if err != nil {
			log.Fatalf("read: %v", err)
		}
		if err := r.HandleDatagram(buf[:n], from, recvClock); err != nil {
			log.Errorf("handle datagram: %v", err)
		}
	}
}

// receiver acknowledges every measured datagram and discards background
// cross-traffic, matching the original receiver's two-phase loop (wait
// for the first real datagram, then run the steady acknowledgement
// loop) collapsed into one pass since the tracker seeds itself lazily.
type receiver struct {
	conn    *transport.Conn
	log     *rlog.Logger
	tracker *throughput.Tracker
}

func (r *receiver) HandleDatagram(buf []byte, from *net.UDPAddr, recvClock units.Clock) error {
	d, err := wire.DecodeDatagram(buf)
	if err != nil {
		r.log.Debugf("dropping malformed datagram: %v", err)
		return nil
	}
	if d.Background {
		return nil
	}

	if r.tracker == nil {
		r.tracker = throughput.New(recvClock.Milliseconds(), throughputAlpha, throughputMinIntervalMs)
	} else {
		bps := r.tracker.Update(packetSizeBits, recvClock.Milliseconds())
		r.log.WithClock(recvClock.Milliseconds()).Debugf("throughput: %s", bps)
	}

	ack := wire.EncodeAck(wire.Ack{
		Seq:      d.Seq,
		SendTsMs: d.SendTsMs,
		RecvTsMs: recvClock.Milliseconds(),
	})
	_, err = r.conn.WriteTo(ack, from)
	return err
}
