// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ch9325 reads the byte stream of a WCH CH9325 USB-to-serial HID
// adapter and reassembles it into FS9922 protocol frames.
//
// The adapter delivers one serial byte per 8-byte interrupt packet:
//
//	+--------+---------+------------------+
//	| 0      | 1       | 2..7             |
//	| marker | payload | padding          |
//	+--------+---------+------------------+
//
// A marker of 0xF1 carries a payload byte; 0xF0 is an idle poll.
package ch9325

import "time"

// USB identity
const (
	VendorID  uint16 = 0x1A86
	ProductID uint16 = 0xE008

	Interface  uint8 = 0
	EndpointIn uint8 = 0x82 // endpoint 2, IN
)

// Packet layout
const (
	PacketSize = 8

	MarkerIdle = 0xF0
	MarkerData = 0xF1
)

// HID SET_REPORT request used to configure the UART
const (
	reportRequestType = 0x21 // host to device, class, interface
	reportRequest     = 0x09 // SET_REPORT
	reportValue       = 0x0300
	reportIndex       = 0
	reportConfig      = 0x03
)

// Serial defaults
const (
	DefaultBaudRate = 2400
	DefaultTimeout  = 100 * time.Millisecond

	// DefaultDiscoveryTimeout bounds the wait for a matching device
	DefaultDiscoveryTimeout = 2 * time.Second
)

// ConfigReport returns the 5-byte feature report that sets the adapter baud
// rate. For 2400 baud this is 60 09 00 00 03.
func ConfigReport(baud uint32) []byte {
	return []byte{
		byte(baud),
		byte(baud >> 8),
		byte(baud >> 16),
		byte(baud >> 24),
		reportConfig,
	}
}
