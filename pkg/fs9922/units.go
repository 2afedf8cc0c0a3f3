// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fs9922

// Unit is the measured quantity selected on the meter
type Unit uint16

// Unit values. The selector values match byte 10 of the frame; UnitDuty is
// produced by the percent bit in byte 9.
const (
	UnitNone       Unit = 0x000
	UnitFahrenheit Unit = 0x001
	UnitCelsius    Unit = 0x002
	UnitFarad      Unit = 0x004
	UnitHertz      Unit = 0x008
	UnitHFE        Unit = 0x010
	UnitOhm        Unit = 0x020
	UnitAmpere     Unit = 0x040
	UnitVolt       Unit = 0x080
	UnitDuty       Unit = 0x100
)

// String returns the display symbol of the unit ("" when unknown)
func (u Unit) String() string {
	switch u {
	case UnitFahrenheit:
		return "°F"
	case UnitCelsius:
		return "°C"
	case UnitFarad:
		return "F"
	case UnitHertz:
		return "Hz"
	case UnitHFE:
		return "hFE"
	case UnitOhm:
		return "Ω"
	case UnitAmpere:
		return "A"
	case UnitVolt:
		return "V"
	case UnitDuty:
		return "%"
	default:
		return ""
	}
}

// Prefix is the SI prefix shown next to the reading
type Prefix uint16

// Prefix values. Mega through micro match the byte 9 selector; nano is
// signalled separately by byte 8.
const (
	PrefixNone  Prefix = 0x000
	PrefixMega  Prefix = 0x010
	PrefixKilo  Prefix = 0x020
	PrefixMilli Prefix = 0x040
	PrefixMicro Prefix = 0x080
	PrefixNano  Prefix = 0x100
)

// String returns the display symbol of the prefix ("" when none)
func (p Prefix) String() string {
	switch p {
	case PrefixMega:
		return "M"
	case PrefixKilo:
		return "k"
	case PrefixMilli:
		return "m"
	case PrefixMicro:
		return "µ"
	case PrefixNano:
		return "n"
	default:
		return ""
	}
}

// Apply converts v from the prefixed unit to the base unit.
// Positive powers multiply and negative powers divide so that exact
// decimal inputs stay as close as possible to their literal values.
func (p Prefix) Apply(v float64) float64 {
	switch p {
	case PrefixMega:
		return v * 1e6
	case PrefixKilo:
		return v * 1e3
	case PrefixMilli:
		return v / 1e3
	case PrefixMicro:
		return v / 1e6
	case PrefixNano:
		return v / 1e9
	default:
		return v
	}
}

// PowerMode is the AC/DC coupling indicator
type PowerMode uint8

// Power mode values
const (
	PowerNone PowerMode = iota
	PowerDC
	PowerAC
)

// String returns the display abbreviation ("" when none)
func (p PowerMode) String() string {
	switch p {
	case PowerAC:
		return "AC"
	case PowerDC:
		return "DC"
	default:
		return ""
	}
}

// MinMax is the min/max hold indicator
type MinMax uint8

// Min/max values
const (
	MinMaxNone MinMax = iota
	MinMaxMin
	MinMaxMax
)

// String returns the display abbreviation ("" when none)
func (m MinMax) String() string {
	switch m {
	case MinMaxMax:
		return "MAX"
	case MinMaxMin:
		return "MIN"
	default:
		return ""
	}
}
