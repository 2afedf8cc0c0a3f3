// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fs9922

// Measurement is a decoded multimeter reading
type Measurement struct {
	value         float64
	valueUnscaled float64
	overflow      bool
	unit          Unit
	prefix        Prefix
	power         PowerMode
	minmax        MinMax

	hold         bool
	relative     bool
	bargraph     bool
	autorange    bool
	autoPowerOff bool
	lowBattery   bool
	diode        bool
	beep         bool

	bargraphValue int
}

// Value returns the reading as displayed, in prefixed units (+Inf on overflow)
func (m Measurement) Value() float64 {
	return m.value
}

// ValueUnscaled returns the reading converted to base units (+Inf on overflow)
func (m Measurement) ValueUnscaled() float64 {
	return m.valueUnscaled
}

// Overflow reports whether the meter shows OL
func (m Measurement) Overflow() bool {
	return m.overflow
}

func (m Measurement) Unit() Unit            { return m.unit }
func (m Measurement) Prefix() Prefix        { return m.prefix }
func (m Measurement) Power() PowerMode      { return m.power }
func (m Measurement) MinMax() MinMax        { return m.minmax }
func (m Measurement) Hold() bool            { return m.hold }
func (m Measurement) Relative() bool        { return m.relative }
func (m Measurement) BargraphVisible() bool { return m.bargraph }
func (m Measurement) Autorange() bool       { return m.autorange }
func (m Measurement) AutoPowerOff() bool    { return m.autoPowerOff }
func (m Measurement) LowBattery() bool      { return m.lowBattery }
func (m Measurement) Diode() bool           { return m.diode }
func (m Measurement) Beep() bool            { return m.beep }

// Bargraph returns the signed bargraph position in -99..99
func (m Measurement) Bargraph() int {
	return m.bargraphValue
}

// StatusWords returns the active indicator names in display order
func (m Measurement) StatusWords() []string {
	var words []string
	if m.hold {
		words = append(words, "HOLD")
	}
	if m.relative {
		words = append(words, "REL")
	}
	if m.autorange {
		words = append(words, "AUTO")
	}
	if m.autoPowerOff {
		words = append(words, "APO")
	}
	if m.lowBattery {
		words = append(words, "BAT")
	}
	if m.diode {
		words = append(words, "DIODE")
	}
	if m.beep {
		words = append(words, "BEEP")
	}
	if s := m.power.String(); s != "" {
		words = append(words, s)
	}
	if s := m.minmax.String(); s != "" {
		words = append(words, s)
	}
	return words
}
