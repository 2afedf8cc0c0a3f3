// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fs9922

import (
	"errors"
	"fmt"
	"math"
)

// ErrDigits is returned by FrameBuilder.Build when the digit field is invalid
var ErrDigits = errors.New("fs9922: digits must be 4 ASCII characters")

// FrameBuilder assembles protocol frames from typed fields.
// Setters return the builder so calls can be chained.
type FrameBuilder struct {
	raw [FrameSize]byte
	err error
}

// NewFrameBuilder returns a builder for "+0000" with no unit, prefix or flags
func NewFrameBuilder() *FrameBuilder {
	b := &FrameBuilder{}
	b.raw[offsetSign] = '+'
	copy(b.raw[offsetDigits:], "0000")
	b.raw[offsetSeparator] = ' '
	b.raw[offsetDecimal] = DecimalNone
	b.raw[offsetTerm1] = Terminator1
	b.raw[offsetTerm2] = Terminator2
	return b
}

// Digits sets the sign byte and the four display digits
func (b *FrameBuilder) Digits(sign byte, digits string) *FrameBuilder {
	if len(digits) != 4 {
		b.err = fmt.Errorf("%w: got %q", ErrDigits, digits)
		return b
	}
	b.raw[offsetSign] = sign
	copy(b.raw[offsetDigits:], digits)
	return b
}

// Decimal sets the decimal-place code (byte 6)
func (b *FrameBuilder) Decimal(code byte) *FrameBuilder {
	b.raw[offsetDecimal] = code
	return b
}

// Value sets sign, digits and decimal code to display v with the most
// precision four digits allow. Values of 10000 or more overflow.
func (b *FrameBuilder) Value(v float64) *FrameBuilder {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return b.Overflow()
	}
	sign := byte('+')
	if v < 0 {
		sign = '-'
		v = -v
	}
	var code byte
	var scaled float64
	switch {
	case math.Round(v*1e3) < 1e4:
		code, scaled = DecimalMilli, math.Round(v*1e3)
	case math.Round(v*1e2) < 1e4:
		code, scaled = DecimalCenti, math.Round(v*1e2)
	case math.Round(v*1e1) < 1e4:
		code, scaled = DecimalDeci, math.Round(v*1e1)
	case math.Round(v) < 1e4:
		code, scaled = DecimalNone, math.Round(v)
	default:
		return b.Overflow()
	}
	b.Digits(sign, fmt.Sprintf("%04d", int(scaled)))
	return b.Decimal(code)
}

// Overflow sets the digit field to the OL pattern
func (b *FrameBuilder) Overflow() *FrameBuilder {
	b.raw[offsetSign] = ' '
	copy(b.raw[offsetDigits:], "?0:?")
	return b
}

// Unit selects the unit. UnitDuty sets the percent bit and clears byte 10.
func (b *FrameBuilder) Unit(u Unit) *FrameBuilder {
	b.raw[offsetStatus9] &^= b9Percent
	if u == UnitDuty {
		b.raw[offsetStatus9] |= b9Percent
		b.raw[offsetUnit] = 0
		return b
	}
	b.raw[offsetUnit] = byte(u)
	return b
}

// UnitCode writes byte 10 verbatim
func (b *FrameBuilder) UnitCode(code byte) *FrameBuilder {
	b.raw[offsetUnit] = code
	return b
}

// Prefix selects the SI prefix. The byte 9 selector nibble is replaced.
func (b *FrameBuilder) Prefix(p Prefix) *FrameBuilder {
	b.raw[offsetStatus9] &^= b9Mega | b9Kilo | b9Milli | b9Micro
	b.raw[offsetStatus8] &^= b8Nano
	switch p {
	case PrefixNano:
		b.raw[offsetStatus8] |= b8Nano
	case PrefixMega, PrefixKilo, PrefixMilli, PrefixMicro:
		b.raw[offsetStatus9] |= byte(p)
	}
	return b
}

// Power sets the AC/DC indicator
func (b *FrameBuilder) Power(p PowerMode) *FrameBuilder {
	b.raw[offsetStatus7] &^= b7AC | b7DC
	switch p {
	case PowerAC:
		b.raw[offsetStatus7] |= b7AC
	case PowerDC:
		b.raw[offsetStatus7] |= b7DC
	}
	return b
}

// MinMax sets the min/max indicator
func (b *FrameBuilder) MinMax(m MinMax) *FrameBuilder {
	b.raw[offsetStatus8] &^= b8Min | b8Max
	switch m {
	case MinMaxMin:
		b.raw[offsetStatus8] |= b8Min
	case MinMaxMax:
		b.raw[offsetStatus8] |= b8Max
	}
	return b
}

func (b *FrameBuilder) setBit(offset int, mask byte, on bool) *FrameBuilder {
	if on {
		b.raw[offset] |= mask
	} else {
		b.raw[offset] &^= mask
	}
	return b
}

func (b *FrameBuilder) Hold(on bool) *FrameBuilder         { return b.setBit(offsetStatus7, b7Hold, on) }
func (b *FrameBuilder) Relative(on bool) *FrameBuilder     { return b.setBit(offsetStatus7, b7Relative, on) }
func (b *FrameBuilder) Autorange(on bool) *FrameBuilder    { return b.setBit(offsetStatus7, b7Auto, on) }
func (b *FrameBuilder) AutoPowerOff(on bool) *FrameBuilder { return b.setBit(offsetStatus8, b8APO, on) }
func (b *FrameBuilder) LowBattery(on bool) *FrameBuilder   { return b.setBit(offsetStatus8, b8LowBattery, on) }
func (b *FrameBuilder) Diode(on bool) *FrameBuilder        { return b.setBit(offsetStatus9, b9Diode, on) }
func (b *FrameBuilder) Beep(on bool) *FrameBuilder         { return b.setBit(offsetStatus9, b9Beep, on) }

// Bargraph makes the bargraph visible at position v. Magnitudes beyond
// 0x7F are truncated to the 7-bit field.
func (b *FrameBuilder) Bargraph(v int) *FrameBuilder {
	b.setBit(offsetStatus7, b7Bargraph, true)
	var raw byte
	if v < 0 {
		raw = bargraphSign
		v = -v
	}
	b.raw[offsetBargraph] = raw | byte(v)&bargraphMagnitude
	return b
}

// Build returns the assembled frame
func (b *FrameBuilder) Build() (Frame, error) {
	if b.err != nil {
		return Frame{}, b.err
	}
	return Frame{raw: b.raw}, nil
}

// MustBuild is like Build but panics on error
func (b *FrameBuilder) MustBuild() Frame {
	f, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("fs9922: build error: %v", err))
	}
	return f
}

// EncodeMeasurement builds a frame that decodes to m, up to the precision
// of the four-digit display
func EncodeMeasurement(m Measurement) Frame {
	b := NewFrameBuilder()
	if m.Overflow() {
		b.Overflow()
	} else {
		b.Value(m.Value())
	}
	b.Unit(m.Unit()).
		Prefix(m.Prefix()).
		Power(m.Power()).
		MinMax(m.MinMax()).
		Hold(m.Hold()).
		Relative(m.Relative()).
		Autorange(m.Autorange()).
		AutoPowerOff(m.AutoPowerOff()).
		LowBattery(m.LowBattery()).
		Diode(m.Diode()).
		Beep(m.Beep())
	if m.BargraphVisible() {
		b.Bargraph(m.Bargraph())
	}
	return b.MustBuild()
}
