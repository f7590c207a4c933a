// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

// Package wire implements the on-the-wire framing: a fixed-size datagram
// envelope carrying a sequence number, a send timestamp and a payload, and
// a small ack envelope echoing those timestamps back to the sender.
// Encoding is plain big-endian binary, in the spirit of the original
// contest message layout, not a general-purpose serialization format.
package wire

import (
	"encoding/binary"
	"fmt"
)

// PayloadBytes is the fixed datagram payload size.
const PayloadBytes = 1424

// marker is the payload's first byte, distinguishing measured traffic
// from background cross-traffic that the receiver must ignore for
// throughput and ack purposes.
type marker byte

const (
	markerData       marker = 'c'
	markerBackground marker = 'b'
)

// datagramHeaderBytes is sizeof(seq) + sizeof(sendTsMs).
const datagramHeaderBytes = 8 + 8

// DatagramBytes is the total wire size of an encoded datagram.
const DatagramBytes = datagramHeaderBytes + PayloadBytes

// Datagram is one application or background datagram as read off the
// wire. Background is true when the payload's marker byte identifies
// cross-traffic that must be ignored by the congestion controller and
// the throughput tracker alike.
type Datagram struct {
	Seq        uint64
	SendTsMs   uint64
	Background bool
}

// EncodeDatagram writes seq, sendTsMs and a marker-prefixed filler payload
// into a new DatagramBytes-length buffer. A background datagram carries
// sequence number 0, matching the sender's null-sequence convention for
// cross-traffic.
func EncodeDatagram(seq, sendTsMs uint64, background bool) []byte {
	buf := make([]byte, DatagramBytes)
	binary.BigEndian.PutUint64(buf[0:8], seq)
	binary.BigEndian.PutUint64(buf[8:16], sendTsMs)
	m := byte(markerData)
	if background {
		m = byte(markerBackground)
	}
	for i := datagramHeaderBytes; i < len(buf); i++ {
		buf[i] = m
	}
	return buf
}

// DecodeDatagram parses a datagram read from the wire.
func DecodeDatagram(buf []byte) (Datagram, error) {
	if len(buf) < datagramHeaderBytes+1 {
		return Datagram{}, fmt.Errorf("wire: short datagram: %d bytes", len(buf))
	}
	d := Datagram{
		Seq:      binary.BigEndian.Uint64(buf[0:8]),
		SendTsMs: binary.BigEndian.Uint64(buf[8:16]),
	}
	d.Background = marker(buf[datagramHeaderBytes]) == markerBackground
	return d, nil
}

// ackMarker distinguishes the ack envelope from a datagram on the wire;
// acks are far shorter than PayloadBytes so the two never collide in
// practice, but an explicit marker keeps decoding unambiguous.
const ackMarker = 'a'

// AckBytes is the total wire size of an encoded ack.
const AckBytes = 1 + 8 + 8 + 8

// Ack is a receiver-originated acknowledgement of one datagram, echoing
// back the sequence number and the send timestamp it was stamped with,
// plus the receiver's own arrival timestamp.
type Ack struct {
	Seq      uint64
	SendTsMs uint64
	RecvTsMs uint64
}

// EncodeAck writes ack into a new AckBytes-length buffer.
func EncodeAck(ack Ack) []byte {
	buf := make([]byte, AckBytes)
	buf[0] = ackMarker
	binary.BigEndian.PutUint64(buf[1:9], ack.Seq)
	binary.BigEndian.PutUint64(buf[9:17], ack.SendTsMs)
	binary.BigEndian.PutUint64(buf[17:25], ack.RecvTsMs)
	return buf
}

// DecodeAck parses an ack read from the wire.
func DecodeAck(buf []byte) (Ack, error) {
	if len(buf) != AckBytes {
		return Ack{}, fmt.Errorf("wire: bad ack length: %d bytes", len(buf))
	}
	if buf[0] != ackMarker {
		return Ack{}, fmt.Errorf("wire: bad ack marker: %#x", buf[0])
	}
	return Ack{
		Seq:      binary.BigEndian.Uint64(buf[1:9]),
		SendTsMs: binary.BigEndian.Uint64(buf[9:17]),
		RecvTsMs: binary.BigEndian.Uint64(buf[17:25]),
	}, nil
}

// IsBackground reports whether buf, read straight off a UDP socket,
// is a datagram (not an ack) carrying the background marker byte. It
// applies the same test as DecodeDatagram's Background field without
// decoding the header.
func IsBackground(buf []byte) bool {
	if len(buf) <= datagramHeaderBytes {
		return false
	}
	return marker(buf[datagramHeaderBytes]) == markerBackground
}
