// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fs9922

import (
	"errors"
	"fmt"
)

// Frame errors
var (
	ErrFrameLength     = errors.New("fs9922: frame must be exactly 14 bytes")
	ErrFrameTerminator = errors.New("fs9922: frame not terminated by CR LF")
)

// Frame is a validated 14-byte FS9922 protocol frame.
// The zero value is not a valid frame; use NewFrame.
type Frame struct {
	raw [FrameSize]byte
}

// NewFrame validates b and copies it into a Frame
func NewFrame(b []byte) (Frame, error) {
	if len(b) != FrameSize {
		return Frame{}, fmt.Errorf("%w: got %d", ErrFrameLength, len(b))
	}
	if !HasTerminator(b) {
		return Frame{}, fmt.Errorf("%w: got 0x%02X 0x%02X", ErrFrameTerminator, b[offsetTerm1], b[offsetTerm2])
	}
	var f Frame
	copy(f.raw[:], b)
	return f, nil
}

// MustFrame is like NewFrame but panics on invalid input.
// Intended for constants and tests.
func MustFrame(b []byte) Frame {
	f, err := NewFrame(b)
	if err != nil {
		panic(err)
	}
	return f
}

// HasTerminator reports whether b is frame-sized and ends with CR LF
func HasTerminator(b []byte) bool {
	return len(b) == FrameSize && b[offsetTerm1] == Terminator1 && b[offsetTerm2] == Terminator2
}

// Raw returns the frame bytes by value
func (f Frame) Raw() [FrameSize]byte {
	return f.raw
}

// Bytes returns a copy of the frame bytes
func (f Frame) Bytes() []byte {
	b := make([]byte, FrameSize)
	copy(b, f.raw[:])
	return b
}

// IsZero reports whether f is the zero Frame (never produced by NewFrame)
func (f Frame) IsZero() bool {
	return f.raw == [FrameSize]byte{}
}

// Fields returns the typed view of the frame
func (f Frame) Fields() Fields {
	return ParseFields(f.raw)
}

// Status7 holds the byte 7 indicator bits
type Status7 uint8

func (s Status7) Bargraph() bool { return s&b7Bargraph != 0 }
func (s Status7) Hold() bool     { return s&b7Hold != 0 }
func (s Status7) Relative() bool { return s&b7Relative != 0 }
func (s Status7) AC() bool       { return s&b7AC != 0 }
func (s Status7) DC() bool       { return s&b7DC != 0 }
func (s Status7) Auto() bool     { return s&b7Auto != 0 }

// Status8 holds the byte 8 indicator bits
type Status8 uint8

func (s Status8) Nano() bool       { return s&b8Nano != 0 }
func (s Status8) LowBattery() bool { return s&b8LowBattery != 0 }
func (s Status8) APO() bool        { return s&b8APO != 0 }
func (s Status8) Min() bool        { return s&b8Min != 0 }
func (s Status8) Max() bool        { return s&b8Max != 0 }

// Status9 holds the byte 9 indicator bits and prefix selector
type Status9 uint8

func (s Status9) Percent() bool { return s&b9Percent != 0 }
func (s Status9) Diode() bool   { return s&b9Diode != 0 }
func (s Status9) Beep() bool    { return s&b9Beep != 0 }

// Prefix interprets the whole byte as a prefix selector. Only the exact
// single-bit values select a prefix; any other combination is PrefixNone.
func (s Status9) Prefix() Prefix {
	switch s {
	case b9Mega, b9Kilo, b9Milli, b9Micro:
		return Prefix(s)
	default:
		return PrefixNone
	}
}

// Fields is a frame split into named, typed parts. It can be built from any
// 14 bytes; interpretation never fails.
type Fields struct {
	Sign      byte
	Digits    [5]byte // bytes 1-5, ASCII digits, decimal point or blank
	Decimal   byte
	Status7   Status7
	Status8   Status8
	Status9   Status9
	UnitCode  uint8
	Bargraph  uint8
	Terminal1 byte
	Terminal2 byte
}

// ParseFields splits raw frame bytes into Fields
func ParseFields(raw [FrameSize]byte) Fields {
	f := Fields{
		Sign:      raw[offsetSign],
		Decimal:   raw[offsetDecimal],
		Status7:   Status7(raw[offsetStatus7]),
		Status8:   Status8(raw[offsetStatus8]),
		Status9:   Status9(raw[offsetStatus9]),
		UnitCode:  raw[offsetUnit],
		Bargraph:  raw[offsetBargraph],
		Terminal1: raw[offsetTerm1],
		Terminal2: raw[offsetTerm2],
	}
	copy(f.Digits[:], raw[offsetDigits:offsetValueEnd])
	return f
}

// ValueText returns the ASCII value field (bytes 0-5)
func (f Fields) ValueText() string {
	b := make([]byte, 0, offsetValueEnd)
	b = append(b, f.Sign)
	b = append(b, f.Digits[:]...)
	return string(b)
}

// Overflow reports whether the meter shows OL
func (f Fields) Overflow() bool {
	return f.Digits[0] == OverflowMarker
}

// Prefix resolves the SI prefix: nano from byte 8, otherwise the byte 9 selector
func (f Fields) Prefix() Prefix {
	if f.Status8.Nano() {
		return PrefixNano
	}
	return f.Status9.Prefix()
}

// Unit resolves the unit: duty cycle when the percent bit is set, otherwise
// the byte 10 selector
func (f Fields) Unit() Unit {
	if f.Status9.Percent() {
		return UnitDuty
	}
	switch u := Unit(f.UnitCode); u {
	case UnitFahrenheit, UnitCelsius, UnitFarad, UnitHertz, UnitHFE, UnitOhm, UnitAmpere, UnitVolt:
		return u
	default:
		return UnitNone
	}
}

// Power resolves the AC/DC indicator. DC takes precedence.
func (f Fields) Power() PowerMode {
	switch {
	case f.Status7.DC():
		return PowerDC
	case f.Status7.AC():
		return PowerAC
	default:
		return PowerNone
	}
}

// MinMax resolves the min/max indicator. MAX takes precedence.
func (f Fields) MinMax() MinMax {
	switch {
	case f.Status8.Max():
		return MinMaxMax
	case f.Status8.Min():
		return MinMaxMin
	default:
		return MinMaxNone
	}
}

// BargraphValue returns the signed bargraph reading, clamped to -99..99
func (f Fields) BargraphValue() int {
	v := int(f.Bargraph & bargraphMagnitude)
	if v > BargraphMax {
		v = BargraphMax
	}
	if f.Bargraph&bargraphSign != 0 {
		return -v
	}
	return v
}

// DecimalScale returns the divisor selected by the byte 6 code
// (1 for unrecognized codes)
func (f Fields) DecimalScale() float64 {
	switch f.Decimal {
	case DecimalMilli:
		return 1e3
	case DecimalCenti:
		return 1e2
	case DecimalDeci:
		return 1e1
	default:
		return 1
	}
}
