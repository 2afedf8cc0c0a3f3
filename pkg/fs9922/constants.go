// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package fs9922 implements the serial output protocol of the Fortune
// Semiconductor FS9922-DMM3 multimeter chip, as used by the Uni-T UT61B and
// similar meters.
//
// The chip emits a fixed 14-byte frame a few times per second:
//
//	+--------+--------+-----+--------+--------+--------+--------+--------+--------+---------+--------+--------+
//	| 0      | 1..4   | 5   | 6      | 7      | 8      | 9      | 10     | 11     | 12      | 13     |
//	| sign   | digits | ' ' | dp     | status | status | status | unit   | bar    | 0x0D    | 0x0A   |
//	+--------+--------+-----+--------+--------+--------+--------+--------+--------+---------+--------+
//
// This package validates frames and decodes them into Measurement values.
package fs9922

// Frame layout
const (
	FrameSize = 14

	Terminator1 = 0x0D
	Terminator2 = 0x0A

	OverflowMarker = '?'
)

// Byte offsets within a frame
const (
	offsetSign      = 0
	offsetDigits    = 1
	offsetSeparator = 5
	offsetValueEnd  = 6 // exclusive end of the ASCII value field
	offsetDecimal   = 6
	offsetStatus7   = 7
	offsetStatus8   = 8
	offsetStatus9   = 9
	offsetUnit      = 10
	offsetBargraph  = 11
	offsetTerm1     = 12
	offsetTerm2     = 13
)

// Decimal-place codes (byte 6)
const (
	DecimalNone  = '0'
	DecimalMilli = '1' // value x 10^-3
	DecimalCenti = '2' // value x 10^-2
	DecimalDeci  = '4' // value x 10^-1
)

// Byte 7 status bits
const (
	b7Bargraph = 0x01
	b7Hold     = 0x02
	b7Relative = 0x04
	b7AC       = 0x08
	b7DC       = 0x10
	b7Auto     = 0x20
)

// Byte 8 status bits
const (
	b8Nano       = 0x02
	b8LowBattery = 0x04
	b8APO        = 0x08
	b8Min        = 0x10
	b8Max        = 0x20
)

// Byte 9 status bits. The high nibble doubles as the prefix selector.
const (
	b9Percent = 0x02
	b9Diode   = 0x04
	b9Beep    = 0x08
	b9Mega    = 0x10
	b9Kilo    = 0x20
	b9Milli   = 0x40
	b9Micro   = 0x80
)

// Byte 11 bargraph encoding
const (
	bargraphSign      = 0x80
	bargraphMagnitude = 0x7F

	BargraphMax = 99
)
