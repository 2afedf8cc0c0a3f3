// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package datalog

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
	"github.com/google/go-cmp/cmp"
)

func sample(elapsed time.Duration, f fs9922.Frame) capture.Sample {
	return capture.Sample{Elapsed: elapsed, Frame: f, Measurement: fs9922.Decode(f)}
}

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		frame   fs9922.Frame
		want    string
	}{
		{
			name:    "millivolts DC auto",
			seconds: 1.5,
			frame: fs9922.NewFrameBuilder().Value(12.34).Unit(fs9922.UnitVolt).Prefix(fs9922.PrefixMilli).
				Power(fs9922.PowerDC).Autorange(true).MustBuild(),
			want: "1.500 0.01234 12.34 m V DC - 0 0 1 0 0 0 0",
		},
		{
			name:    "overflow ohms",
			seconds: 0,
			frame:   fs9922.NewFrameBuilder().Overflow().Unit(fs9922.UnitOhm).Prefix(fs9922.PrefixMega).MustBuild(),
			want:    "0.000 inf inf M Ω - - 0 0 0 0 0 0 0",
		},
		{
			name:    "hold max low battery beep",
			seconds: 12.25,
			frame: fs9922.NewFrameBuilder().Value(-1.5).Unit(fs9922.UnitAmpere).MinMax(fs9922.MinMaxMax).
				Hold(true).LowBattery(true).Beep(true).MustBuild(),
			want: "12.250 -1.5 -1.5 - A - MAX 1 0 0 0 1 0 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatLine(tt.seconds, fs9922.Decode(tt.frame))
			if got != tt.want {
				t.Errorf("FormatLine() = %q, want %q", got, tt.want)
			}
			if n := len(strings.Fields(got)); n != Columns {
				t.Errorf("FormatLine() has %d fields, want %d", n, Columns)
			}
		})
	}
}

func TestWriterOpensLazily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dmm.log")
	w := Create(path)

	if w.Opened() {
		t.Fatal("Opened() = true before the first sample")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() without samples: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("log file exists before the first sample: %v", err)
	}

	w = Create(path)
	f := fs9922.NewFrameBuilder().Value(5).Unit(fs9922.UnitVolt).Power(fs9922.PowerDC).MustBuild()
	for i := range 3 {
		if err := w.Consume(sample(time.Duration(i)*time.Second, f)); err != nil {
			t.Fatalf("Consume() error: %v", err)
		}
	}

	// each line is flushed, so the file is readable before Close
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), data)
	}
	if lines[0] != Header {
		t.Errorf("header = %q", lines[0])
	}
	if w.Lines() != 3 {
		t.Errorf("Lines() = %d, want 3", w.Lines())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}

func TestWriterTimeStartsAtFirstFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	f := fs9922.NewFrameBuilder().Value(1).Unit(fs9922.UnitVolt).MustBuild()
	for _, elapsed := range []time.Duration{2500 * time.Millisecond, 3 * time.Second} {
		if err := w.Consume(sample(elapsed, f)); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Time != 0 || entries[1].Time != 0.5 {
		t.Errorf("times = %v, %v, want 0, 0.5", entries[0].Time, entries[1].Time)
	}
}

func TestWriterCreateFailure(t *testing.T) {
	w := Create(filepath.Join(t.TempDir(), "missing", "dmm.log"))
	f := fs9922.NewFrameBuilder().MustBuild()
	if err := w.Consume(sample(0, f)); err == nil {
		t.Fatal("Consume() into a missing directory succeeded")
	}
}

func TestParseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	frames := []fs9922.Frame{
		fs9922.NewFrameBuilder().Value(12.34).Unit(fs9922.UnitVolt).Prefix(fs9922.PrefixMilli).Power(fs9922.PowerAC).MustBuild(),
		fs9922.NewFrameBuilder().Overflow().Unit(fs9922.UnitOhm).Prefix(fs9922.PrefixKilo).MustBuild(),
		fs9922.NewFrameBuilder().Value(0.5).Unit(fs9922.UnitDuty).Relative(true).Diode(true).AutoPowerOff(true).MustBuild(),
	}
	for i, f := range frames {
		if err := w.Consume(sample(time.Duration(i)*500*time.Millisecond, f)); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	want := []Entry{
		{Time: 0, ValueUnscaled: 0.01234, Value: 12.34, Prefix: "m", Unit: "V", Power: "AC"},
		{Time: 0.5, ValueUnscaled: math.Inf(1), Value: math.Inf(1), Prefix: "k", Unit: "Ω"},
		{Time: 1, ValueUnscaled: 0.5, Value: 0.5, Unit: "%", Relative: true, Diode: true, AutoPowerOff: true},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
	if !entries[1].Overflow() || entries[0].Overflow() {
		t.Error("Overflow() does not follow the value column")
	}
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "0.0 1 1 - V DC -"},
		{"bad number", "0.0 x 1 - V DC - 0 0 0 0 0 0 0"},
		{"bad flag", "0.0 1 1 - V DC - 0 0 2 0 0 0 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLine(tt.line); !errors.Is(err, ErrMalformed) {
				t.Errorf("ParseLine(%q) error = %v, want ErrMalformed", tt.line, err)
			}
		})
	}

	_, err := Parse(strings.NewReader(Header + "\n\n0.0 1 1 - V DC - 0 0 0 0 0 0 0\nbroken\n"))
	if err == nil || !strings.Contains(err.Error(), "line 4") {
		t.Errorf("Parse() error = %v, want line 4", err)
	}
}
