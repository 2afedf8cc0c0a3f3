// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ch9325

import (
	"errors"
	"fmt"
)

// ErrPacketLength is returned for transfers that are not exactly 8 bytes
var ErrPacketLength = errors.New("ch9325: packet must be exactly 8 bytes")

// Packet is one interrupt transfer from the adapter
type Packet [PacketSize]byte

// ParsePacket copies an 8-byte transfer into a Packet
func ParsePacket(b []byte) (Packet, error) {
	var p Packet
	if len(b) != PacketSize {
		return p, fmt.Errorf("%w: got %d", ErrPacketLength, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// DataPacket returns a packet carrying payload b
func DataPacket(b byte) Packet {
	return Packet{MarkerData, b}
}

// IdlePacket returns an idle poll packet
func IdlePacket() Packet {
	return Packet{MarkerIdle}
}

// Marker returns byte 0
func (p Packet) Marker() byte {
	return p[0]
}

// Payload returns the data byte and whether the packet carries one
func (p Packet) Payload() (byte, bool) {
	return p[1], p[0] == MarkerData
}

// HasData reports whether the packet carries a payload byte
func (p Packet) HasData() bool {
	return p[0] == MarkerData
}
