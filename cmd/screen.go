// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
)

const clearScreen = "\033[H\033[2J"

// captureLimits holds the optional frame count and duration caps
type captureLimits struct {
	frames   uint64
	duration time.Duration
}

// consumers returns the stop policies for the configured limits
func (l captureLimits) consumers() capture.Consumers {
	var c capture.Consumers
	if l.frames > 0 {
		c = append(c, capture.StopAfterFrames(l.frames))
	}
	if l.duration > 0 {
		c = append(c, capture.StopAfterDuration(l.duration))
	}
	return c
}

func (l captureLimits) timeLine(elapsed time.Duration) string {
	line := fmt.Sprintf("%.2f s", elapsed.Seconds())
	if l.duration > 0 {
		line += fmt.Sprintf(" (max %.2f s)", l.duration.Seconds())
	}
	return line
}

func (l captureLimits) frameLine(seq uint64) string {
	line := fmt.Sprintf("%d", seq)
	if l.frames > 0 {
		line += fmt.Sprintf(" (max %d)", l.frames)
	}
	return line
}

// renderScreen draws the full live screen for one sample
func renderScreen(w io.Writer, s capture.Sample, lim captureLimits) {
	m := s.Measurement

	var sb strings.Builder
	sb.WriteString(clearScreen)
	sb.WriteString("dmmstat - FS9922-DMM3\n\n")
	fmt.Fprintf(&sb, "time   : %s\n", lim.timeLine(s.Elapsed))
	fmt.Fprintf(&sb, "frame  : %s\n", lim.frameLine(s.Seq))
	fmt.Fprintf(&sb, "value  : %s\n", fs9922.FormatValue(m))
	fmt.Fprintf(&sb, "status : %s\n", fs9922.FormatStatus(m))
	if len(s.Anomalies) > 0 {
		fmt.Fprintf(&sb, "check  : %s\n", fs9922.FormatAnomalies(s.Anomalies))
	}
	sb.WriteString("\nbargraph:\n")
	if m.BargraphVisible() {
		sb.WriteString(fs9922.FormatBargraph(m.Bargraph()))
		sb.WriteString("\n")
		sb.WriteString(fs9922.BargraphScale)
	}
	sb.WriteString("\n\nraw value:\n")
	sb.WriteString(fs9922.FormatHex(s.Frame.Bytes()))
	sb.WriteString("\n")

	io.WriteString(w, sb.String())
}
