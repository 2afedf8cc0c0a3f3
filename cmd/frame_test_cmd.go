// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
	"github.com/spf13/cobra"
)

var (
	frameTestTimeout int
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a complete frame",
	Long: `Wait for a complete FS9922 frame on the source until timeout.

This command opens the adapter (or serial port) and waits for any frame with
a valid CR LF terminator. Stray bytes are dropped by resynchronizing, the
same way a capture does.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a frame
  2 - Connection error

Useful for checking that the meter's data output (RS232 mode) is switched on.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(frameTestTimeout)*time.Second)
	defer cancel()

	src, connInfo, err := OpenSource(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer src.Close()

	fmt.Printf("dmmstat - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for a frame...\n\n")

	var got *capture.Sample
	first := capture.ConsumerFunc(func(s capture.Sample) error {
		got = &s
		return capture.ErrStop
	})

	c := capture.New(src, first, captureConfig())
	runErr := c.Run(ctx)
	stats := c.Statistics()

	if got != nil {
		if stats.Resyncs > 0 {
			fmt.Printf("(skipped %d invalid bytes before sync)\n", stats.Resyncs)
		}
		fmt.Printf("SUCCESS: Received frame\n")
		fmt.Printf("  Raw: %s\n", fs9922.FormatHex(got.Frame.Bytes()))
		fmt.Printf("  Value: %s\n", fs9922.FormatMeasurement(got.Measurement))
		fmt.Printf("  Packets: %d (%d idle)\n", stats.Packets, stats.IdlePackets)
		if len(got.Anomalies) > 0 {
			fmt.Printf("  Anomalies: %s\n", fs9922.FormatAnomalies(got.Anomalies))
		}
		src.Close()
		os.Exit(0)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Read error: %v\n", runErr)
		src.Close()
		os.Exit(2)
	}

	fmt.Fprintf(os.Stderr, "TIMEOUT: No frame received within %d seconds\n", frameTestTimeout)
	src.Close()
	os.Exit(1)
	return nil
}
