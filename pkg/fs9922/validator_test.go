// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fs9922

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		raw   [FrameSize]byte
		wants []AnomalyType
	}{
		{
			name:  "clean frame",
			raw:   rawFrame("+1234", DecimalCenti, b7DC|b7Auto, 0, b9Milli, byte(UnitVolt), 0),
			wants: nil,
		},
		{
			name:  "clean overflow",
			raw:   rawFrame(" ?0:?", DecimalCenti, b7Auto, 0, b9Mega, byte(UnitOhm), 0),
			wants: nil,
		},
		{
			name:  "clean duty cycle",
			raw:   rawFrame("+0500", DecimalDeci, 0, 0, b9Percent, 0, 0),
			wants: nil,
		},
		{
			name:  "non-numeric value",
			raw:   rawFrame("+12x4", DecimalNone, 0, 0, 0, byte(UnitVolt), 0),
			wants: []AnomalyType{AnomalyInvalidValue},
		},
		{
			name:  "unknown decimal code",
			raw:   rawFrame("+1234", '3', 0, 0, 0, byte(UnitVolt), 0),
			wants: []AnomalyType{AnomalyInvalidDecimal},
		},
		{
			name:  "bargraph out of range",
			raw:   rawFrame("+1234", DecimalNone, b7Bargraph, 0, 0, byte(UnitVolt), 0xE4),
			wants: []AnomalyType{AnomalyBargraphRange},
		},
		{
			name:  "unknown unit",
			raw:   rawFrame("+1234", DecimalNone, 0, 0, 0, 0x81, 0),
			wants: []AnomalyType{AnomalyUnknownUnit},
		},
		{
			name:  "unknown prefix",
			raw:   rawFrame("+1234", DecimalNone, 0, 0, b9Kilo|b9Mega, byte(UnitOhm), 0),
			wants: []AnomalyType{AnomalyUnknownPrefix},
		},
		{
			name:  "ac and dc",
			raw:   rawFrame("+1234", DecimalNone, b7AC|b7DC, 0, 0, byte(UnitVolt), 0),
			wants: []AnomalyType{AnomalyPowerConflict},
		},
		{
			name:  "min and max",
			raw:   rawFrame("+1234", DecimalNone, 0, b8Min|b8Max, 0, byte(UnitVolt), 0),
			wants: []AnomalyType{AnomalyMinMaxConflict},
		},
		{
			name:  "several at once",
			raw:   rawFrame("+abcd", 'x', b7AC|b7DC, 0, 0, byte(UnitVolt), 0),
			wants: []AnomalyType{AnomalyInvalidValue, AnomalyInvalidDecimal, AnomalyPowerConflict},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(MustFrame(tt.raw[:]))
			if len(errs) != len(tt.wants) {
				t.Fatalf("Validate() returned %d errors (%s), want %d", len(errs), FormatAnomalies(errs), len(tt.wants))
			}
			for i, want := range tt.wants {
				if errs[i].Type != want {
					t.Errorf("error %d type = %v, want %v", i, errs[i].Type, want)
				}
				if errs[i].Error() == "" {
					t.Errorf("error %d has empty message", i)
				}
			}
		})
	}
}

func TestAnomalyType_String(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range AnomalyTypes {
		s := a.String()
		if s == "unknown" || seen[s] {
			t.Errorf("AnomalyType(%d).String() = %q is not unique", a, s)
		}
		seen[s] = true
	}
}
