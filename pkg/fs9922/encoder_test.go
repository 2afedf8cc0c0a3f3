// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fs9922

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFrameBuilder_Defaults(t *testing.T) {
	f := NewFrameBuilder().MustBuild()
	want := rawFrame("+0000", DecimalNone, 0, 0, 0, 0, 0)
	if f.Raw() != want {
		t.Errorf("default frame = % x, want % x", f.Raw(), want)
	}
	if len(Validate(f)) != 0 {
		t.Errorf("default frame has anomalies: %s", FormatAnomalies(Validate(f)))
	}
}

func TestFrameBuilder_Fields(t *testing.T) {
	f := NewFrameBuilder().
		Digits('-', "0815").
		Decimal(DecimalDeci).
		Unit(UnitAmpere).
		Prefix(PrefixMilli).
		Power(PowerDC).
		MinMax(MinMaxMax).
		Hold(true).
		Autorange(true).
		LowBattery(true).
		Bargraph(-18).
		MustBuild()

	want := rawFrame("-0815", DecimalDeci,
		b7Bargraph|b7Hold|b7DC|b7Auto,
		b8LowBattery|b8Max,
		b9Milli,
		byte(UnitAmpere), 0x92)
	if f.Raw() != want {
		t.Errorf("frame = % x, want % x", f.Raw(), want)
	}
}

func TestFrameBuilder_Value(t *testing.T) {
	tests := []struct {
		in       float64
		text     string
		decimal  byte
		overflow bool
	}{
		{1.234, "+1234", DecimalMilli, false},
		{12.34, "+1234", DecimalCenti, false},
		{123.4, "+1234", DecimalDeci, false},
		{1234, "+1234", DecimalNone, false},
		{-5.67, "-5670", DecimalMilli, false},
		{0, "+0000", DecimalMilli, false},
		{9.9996, "+1000", DecimalCenti, false},
		{12345, "", 0, true},
		{math.Inf(-1), "", 0, true},
	}

	for _, tt := range tests {
		f := NewFrameBuilder().Value(tt.in).MustBuild()
		fields := f.Fields()
		if fields.Overflow() != tt.overflow {
			t.Errorf("Value(%v): Overflow() = %v, want %v", tt.in, fields.Overflow(), tt.overflow)
			continue
		}
		if tt.overflow {
			continue
		}
		if got := string(f.Bytes()[:5]); got != tt.text || fields.Decimal != tt.decimal {
			t.Errorf("Value(%v) = %q code %q, want %q code %q", tt.in, got, fields.Decimal, tt.text, tt.decimal)
		}
	}
}

func TestFrameBuilder_BadDigits(t *testing.T) {
	_, err := NewFrameBuilder().Digits('+', "12345").Build()
	if !errors.Is(err, ErrDigits) {
		t.Errorf("Build() error = %v, want ErrDigits", err)
	}
}

func TestFrameBuilder_DutyAndNano(t *testing.T) {
	f := NewFrameBuilder().Unit(UnitVolt).Unit(UnitDuty).Prefix(PrefixKilo).Prefix(PrefixNano).MustBuild()
	m := Decode(f)
	if m.Unit() != UnitDuty {
		t.Errorf("Unit() = %v, want duty", m.Unit())
	}
	if m.Prefix() != PrefixNano {
		t.Errorf("Prefix() = %v, want nano", m.Prefix())
	}
	if f.Raw()[offsetUnit] != 0 {
		t.Errorf("unit byte = 0x%02X, want 0", f.Raw()[offsetUnit])
	}
}

func TestEncodeMeasurement_RoundTrip(t *testing.T) {
	frames := []*FrameBuilder{
		NewFrameBuilder().Digits('+', "1234").Decimal(DecimalCenti).Unit(UnitVolt).Prefix(PrefixMilli).Power(PowerDC),
		NewFrameBuilder().Digits('-', "0042").Decimal(DecimalMilli).Unit(UnitAmpere).Prefix(PrefixMicro).Power(PowerAC).Hold(true),
		NewFrameBuilder().Overflow().Unit(UnitOhm).Prefix(PrefixMega).Autorange(true),
		NewFrameBuilder().Digits('+', "5000").Decimal(DecimalDeci).Unit(UnitDuty),
		NewFrameBuilder().Digits('+', "0471").Decimal(DecimalMilli).Unit(UnitFarad).Prefix(PrefixNano).Bargraph(-47),
		NewFrameBuilder().Digits('+', "0023").Decimal(DecimalNone).Unit(UnitCelsius).MinMax(MinMaxMin).Relative(true).
			AutoPowerOff(true).Diode(true).Beep(true),
	}

	for i, b := range frames {
		want := Decode(b.MustBuild())
		got := Decode(EncodeMeasurement(want))
		if diff := cmp.Diff(want, got, measurementCmp); diff != "" {
			t.Errorf("frame %d round trip mismatch (-want +got):\n%s", i, diff)
		}
	}
}
