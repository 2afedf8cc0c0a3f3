// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fs9922

import (
	"math"
	"strconv"
)

// Decode interprets a validated frame as a measurement
func Decode(f Frame) Measurement {
	return DecodeRaw(f.raw)
}

// DecodeRaw interprets any 14 bytes as a measurement. It never fails:
// malformed content yields a well-defined but possibly meaningless record.
func DecodeRaw(raw [FrameSize]byte) Measurement {
	fields := ParseFields(raw)

	m := Measurement{
		overflow:      fields.Overflow(),
		unit:          fields.Unit(),
		prefix:        fields.Prefix(),
		power:         fields.Power(),
		minmax:        fields.MinMax(),
		hold:          fields.Status7.Hold(),
		relative:      fields.Status7.Relative(),
		bargraph:      fields.Status7.Bargraph(),
		autorange:     fields.Status7.Auto(),
		autoPowerOff:  fields.Status8.APO(),
		lowBattery:    fields.Status8.LowBattery(),
		diode:         fields.Status9.Diode(),
		beep:          fields.Status9.Beep(),
		bargraphValue: fields.BargraphValue(),
	}

	// The sign byte is ignored on overflow
	if m.overflow {
		m.value = math.Inf(1)
		m.valueUnscaled = math.Inf(1)
		return m
	}

	m.value = parseLeadingFloat(fields.ValueText()) / fields.DecimalScale()
	m.valueUnscaled = m.prefix.Apply(m.value)
	return m
}

// parseLeadingFloat parses the longest leading decimal literal of s
// (optional blanks, optional sign, digits, optional point and digits).
// Returns 0 when s has no leading digits.
func parseLeadingFloat(s string) float64 {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	start := i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(s[start:i], 64)
	if err != nil {
		return 0
	}
	return v
}

// validValueText reports whether the whole value field is a clean literal
func validValueText(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-' || s[i] == ' ') {
		i++
	}
	digits, points := 0, 0
	for ; i < len(s); i++ {
		switch {
		case isDigit(s[i]):
			digits++
		case s[i] == '.':
			points++
		case s[i] == ' ' && i == len(s)-1:
			// trailing separator
		default:
			return false
		}
	}
	return digits > 0 && points <= 1
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
