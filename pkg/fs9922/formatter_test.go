// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fs9922

import (
	"strings"
	"testing"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		b    *FrameBuilder
		want string
	}{
		{"millivolt", NewFrameBuilder().Digits('+', "1234").Decimal(DecimalCenti).Unit(UnitVolt).Prefix(PrefixMilli), "12.34 mV"},
		{"negative microamp", NewFrameBuilder().Digits('-', "0042").Decimal(DecimalMilli).Unit(UnitAmpere).Prefix(PrefixMicro), "-0.042 µA"},
		{"megaohm overflow", NewFrameBuilder().Overflow().Unit(UnitOhm).Prefix(PrefixMega), "OL MΩ"},
		{"duty cycle", NewFrameBuilder().Digits('+', "5000").Decimal(DecimalDeci).Unit(UnitDuty), "500 %"},
		{"no unit", NewFrameBuilder().Digits('+', "0007"), "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(Decode(tt.b.MustBuild())); got != tt.want {
				t.Errorf("FormatValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatStatus(t *testing.T) {
	f := NewFrameBuilder().Hold(true).Relative(true).Autorange(true).AutoPowerOff(true).
		LowBattery(true).Diode(true).Beep(true).Power(PowerAC).MinMax(MinMaxMax).MustBuild()
	want := "HOLD REL AUTO APO BAT DIODE BEEP AC MAX"
	if got := FormatStatus(Decode(f)); got != want {
		t.Errorf("FormatStatus() = %q, want %q", got, want)
	}
}

func TestFormatMeasurement(t *testing.T) {
	f := NewFrameBuilder().Digits('+', "1234").Decimal(DecimalCenti).Unit(UnitVolt).
		Power(PowerDC).Autorange(true).Bargraph(12).MustBuild()
	want := "12.34 V [AUTO DC] bar=+12"
	if got := FormatMeasurement(Decode(f)); got != want {
		t.Errorf("FormatMeasurement() = %q, want %q", got, want)
	}
}

func TestFormatHex(t *testing.T) {
	got := FormatHex([]byte{0x2B, 0x0D, 0x0A, 0xFF})
	if got != "2b 0d 0a ff" {
		t.Errorf("FormatHex() = %q", got)
	}
	if FormatHex(nil) != "" {
		t.Error("FormatHex(nil) should be empty")
	}
}

func TestFormatBargraph(t *testing.T) {
	tests := []struct {
		in    int
		sign  string
		pipes int
	}{
		{0, "+", 0},
		{12, "+", 12},
		{-5, "-", 5},
		{40, "+", 40},
		{85, "+", 40},
		{-99, "-", 40},
	}

	for _, tt := range tests {
		got := FormatBargraph(tt.in)
		if !strings.HasPrefix(got, tt.sign+" [ ") || !strings.HasSuffix(got, " ]") {
			t.Errorf("FormatBargraph(%d) = %q, bad framing", tt.in, got)
		}
		if n := strings.Count(got, "|"); n != tt.pipes {
			t.Errorf("FormatBargraph(%d) has %d bars, want %d", tt.in, n, tt.pipes)
		}
		if len(got) != len(BargraphScale)+1 {
			t.Errorf("FormatBargraph(%d) width = %d, want %d", tt.in, len(got), len(BargraphScale)+1)
		}
	}
}

func TestFormatFrame(t *testing.T) {
	f := NewFrameBuilder().Digits('+', "1234").Decimal(DecimalCenti).Unit(UnitHertz).Prefix(PrefixKilo).Bargraph(3).MustBuild()
	out := FormatFrame(f)
	for _, want := range []string{"FRAME 2b 31 32 33 34 20 32", "12.34 kHz", "Base: 12340 Hz", "Bargraph: +3"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatFrame() missing %q:\n%s", want, out)
		}
	}
}
