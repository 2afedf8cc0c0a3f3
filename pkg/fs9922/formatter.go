// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fs9922

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BargraphColumns is the width of the rendered bargraph
const BargraphColumns = 40

// BargraphScale is the ruler printed under FormatBargraph output
const BargraphScale = "    1        10        20        30        40"

// FormatValue formats the displayed value with prefix and unit, e.g. "12.34 mV".
// Overflow is rendered as "OL".
func FormatValue(m Measurement) string {
	if m.Overflow() || math.IsInf(m.Value(), 0) {
		return strings.TrimSpace("OL " + m.Prefix().String() + m.Unit().String())
	}
	v := strconv.FormatFloat(m.Value(), 'g', -1, 64)
	suffix := m.Prefix().String() + m.Unit().String()
	if suffix == "" {
		return v
	}
	return v + " " + suffix
}

// FormatStatus joins the active status words with single spaces
func FormatStatus(m Measurement) string {
	return strings.Join(m.StatusWords(), " ")
}

// FormatMeasurement formats a measurement on a single line
func FormatMeasurement(m Measurement) string {
	result := FormatValue(m)
	if status := FormatStatus(m); status != "" {
		result += " [" + status + "]"
	}
	if m.BargraphVisible() {
		result += fmt.Sprintf(" bar=%+d", m.Bargraph())
	}
	return result
}

// FormatHex renders frame bytes as lowercase two-digit hex separated by spaces
func FormatHex(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", v)
	}
	return sb.String()
}

// FormatBargraph renders a bargraph value as "+ [ ||||    ]" with
// BargraphColumns columns. Magnitudes beyond the width are clipped.
func FormatBargraph(v int) string {
	sign := "+"
	if v < 0 {
		sign = "-"
		v = -v
	}
	if v > BargraphColumns {
		v = BargraphColumns
	}
	return sign + " [ " + strings.Repeat("|", v) + strings.Repeat(" ", BargraphColumns-v) + " ]"
}

// FormatFrame formats a frame and its decoded measurement for logging,
// one field per line
func FormatFrame(f Frame) string {
	fields := f.Fields()
	m := Decode(f)

	var sb strings.Builder
	fmt.Fprintf(&sb, "FRAME %s\n", FormatHex(f.Bytes()))
	fmt.Fprintf(&sb, "  Value: %s (text %q, decimal %q)\n", FormatValue(m), fields.ValueText(), fields.Decimal)
	fmt.Fprintf(&sb, "  Base: %s %s\n", strconv.FormatFloat(m.ValueUnscaled(), 'g', -1, 64), m.Unit())
	fmt.Fprintf(&sb, "  Status: 0x%02X 0x%02X 0x%02X", uint8(fields.Status7), uint8(fields.Status8), uint8(fields.Status9))
	if status := FormatStatus(m); status != "" {
		fmt.Fprintf(&sb, " (%s)", status)
	}
	sb.WriteByte('\n')
	if m.BargraphVisible() {
		fmt.Fprintf(&sb, "  Bargraph: %+d\n", m.Bargraph())
	}
	return sb.String()
}

// FormatAnomalies summarizes validation errors on one line
func FormatAnomalies(errs []ValidationError) string {
	if len(errs) == 0 {
		return ""
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Type.String() + ": " + e.Message
	}
	return strings.Join(parts, "; ")
}
