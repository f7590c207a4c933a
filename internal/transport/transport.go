// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

// Package transport owns the real UDP socket and the sender/receiver
// event loop. A handler processes received packets, a ticker runs once per
// loop iteration and a timeout callback reacts to a read that waited out
// its deadline, driven by a real net.UDPConn polled with read deadlines
// instead of a simulated input channel.
package transport

import (
	"context"
	"net"
	"time"

	"github.com/ccwnd-lab/datagrump/internal/units"
)

// MaxDatagramBytes is large enough to hold the wire package's fixed
// datagram envelope with headroom for the UDP/IP layer.
const MaxDatagramBytes = 2048

// Conn wraps a UDP socket and the wall-clock epoch every Clock value
// handed to the congestion controller is measured against.
type Conn struct {
	udp   *net.UDPConn
	epoch time.Time
}

// DialSender opens a UDP socket connected to host:port, the way the
// original sender "connect"s its socket purely to tag a peer address
// locally; no bytes are sent by Dial itself.
func DialSender(ctx context.Context, host, port string) (*Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, err
	}
	c, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &Conn{udp: c, epoch: time.Now()}, nil
}

// ListenReceiver opens a UDP socket bound to the given local port.
func ListenReceiver(port string) (*Conn, error) {
	laddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort("", port))
	if err != nil {
		return nil, err
	}
	c, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &Conn{udp: c, epoch: time.Now()}, nil
}

// Now returns the current wall-clock time as a Clock measured from the
// connection's epoch, in milliseconds.
func (c *Conn) Now() units.Clock {
	return units.Now(c.epoch)
}

// LocalAddr returns the socket's local address.
func (c *Conn) LocalAddr() net.Addr {
	return c.udp.LocalAddr()
}

// Write sends buf to the connected peer. Only valid on a Conn returned by
// DialSender.
func (c *Conn) Write(buf []byte) (int, error) {
	return c.udp.Write(buf)
}

// WriteTo sends buf to addr. Only valid on a Conn returned by
// ListenReceiver, since a connected socket has no addressed peer.
func (c *Conn) WriteTo(buf []byte, addr *net.UDPAddr) (int, error) {
	return c.udp.WriteToUDP(buf, addr)
}

// ReadWithDeadline blocks for at most timeout waiting for one datagram, or
// indefinitely if timeout is 0 or negative. It returns the payload, the
// sender's address (nil on a connected socket), the Clock at which the
// read completed, and whether the read timed out rather than erred.
func (c *Conn) ReadWithDeadline(buf []byte, timeout time.Duration) (n int, addr *net.UDPAddr, recvClock units.Clock, timedOut bool, err error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err = c.udp.SetReadDeadline(deadline); err != nil {
		return
	}
	n, addr, err = c.udp.ReadFromUDP(buf)
	recvClock = c.Now()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil, recvClock, true, nil
		}
		return 0, nil, recvClock, false, err
	}
	return n, addr, recvClock, false, nil
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.udp.Close()
}

// Sender is the subset of event-loop behaviour a host program drives: a
// readiness check for whether more datagrams may be sent right now, and a
// send action to perform when it is.
type Sender interface {
	// WindowOpen reports whether the congestion window currently allows
	// another datagram to be sent.
	WindowOpen() bool
	// SendOne sends exactly one datagram and is only called when
	// WindowOpen is true.
	SendOne() error
}

// Receiver processes one received datagram's payload, already separated
// from any UDP/socket error handling.
type Receiver interface {
	HandleDatagram(buf []byte, from *net.UDPAddr, recvClock units.Clock) error
}

// Ticker performs periodic, non-blocking work — background traffic
// injection in the sender, for instance — on every loop iteration
// regardless of whether a datagram arrived.
type Ticker interface {
	Tick(now units.Clock) error
}

// RunLoop drives the send/receive/timeout cycle: while the window is
// open, send; otherwise block for up to timeout waiting for one datagram,
// and on timeout call onTimeout. It returns when ctx is cancelled or on
// the first error from a read, SendOne, Tick, onTimeout or
// HandleDatagram.
func RunLoop(ctx context.Context, conn *Conn, sender Sender, receiver Receiver, ticker Ticker, timeout func() time.Duration, onTimeout func() error) error {
	buf := make([]byte, MaxDatagramBytes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		for sender != nil && sender.WindowOpen() {
			if err := sender.SendOne(); err != nil {
				return err
			}
		}
		if ticker != nil {
			if err := ticker.Tick(conn.Now()); err != nil {
				return err
			}
		}
		n, from, recvClock, timedOut, err := conn.ReadWithDeadline(buf, timeout())
		if err != nil {
			return err
		}
		if timedOut {
			if onTimeout != nil {
				if err := onTimeout(); err != nil {
					return err
				}
			}
			continue
		}
		if receiver != nil {
			if err := receiver.HandleDatagram(buf[:n], from, recvClock); err != nil {
				return err
			}
		}
	}
}
