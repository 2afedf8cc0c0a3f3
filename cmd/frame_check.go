// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
)

var frameCheckCmd = &cobra.Command{
	Use:   "frame_check",
	Short: "Detect and analyze anomalous frames and transport errors",
	Long: `Track frame anomalies, resyncs and transport errors with statistics.

This command validates each frame and detects:
  - Non-numeric value fields and unknown decimal codes
  - Unknown unit and prefix selectors
  - Conflicting indicators (AC with DC, MIN with MAX)
  - Bargraph magnitudes beyond the display range
  - Resyncs, read timeouts and adapter errors

By default, only anomalies are displayed. Use --show-all to display valid
frames too.

Frames are validated in real-time, with anomalies highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runFrameCheck,
}

func init() {
	rootCmd.AddCommand(frameCheckCmd)
	frameCheckCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just anomalies)")
	frameCheckCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

// syncTracker reports the bytes dropped before the first frame and resync
// limit events
type syncTracker struct {
	capture.NopObserver
	out *sync.Mutex

	mu           sync.Mutex
	synchronized bool
	skipped      int
}

func (t *syncTracker) Resync() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.synchronized {
		t.skipped++
	}
}

func (t *syncTracker) ResyncLimit(streak int) {
	t.out.Lock()
	defer t.out.Unlock()
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mRESYNC LIMIT:\033[0m %d bytes dropped without a frame\n\n", timestamp, streak)
}

func (t *syncTracker) TransportError(err error) {
	t.out.Lock()
	defer t.out.Unlock()
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mTRANSPORT ERROR:\033[0m %v\n\n", timestamp, err)
}

// frameSeen returns the skipped byte count the first time it is called
func (t *syncTracker) frameSeen() (skipped int, first bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.synchronized {
		return 0, false
	}
	t.synchronized = true
	return t.skipped, true
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(s capture.Sample) {
	timestamp := s.Time.Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m frame %d\n", timestamp, s.Seq)
	fmt.Printf("  Raw: %s\n", fs9922.FormatHex(s.Frame.Bytes()))
	fmt.Printf("  Decoded: %s\n", fs9922.FormatMeasurement(s.Measurement))

	for i, err := range s.Anomalies {
		fmt.Printf("  Issue %d: \033[1;31m%s\033[0m (%s)\n", i+1, err.Message, err.Type)
		for _, k := range slices.Sorted(maps.Keys(err.Details)) {
			fmt.Printf("    %s=%v\n", k, err.Details[k])
		}
	}
	fmt.Println()
}

func runFrameCheck(cmd *cobra.Command, args []string) error {
	if statsInterval < 1 {
		return fmt.Errorf("--stats-interval must be at least 1 second")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	src, connInfo, err := OpenSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	fmt.Printf("dmmstat - Frame Check Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Anomalies only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var out sync.Mutex
	tracker := &syncTracker{out: &out}

	check := capture.ConsumerFunc(func(s capture.Sample) error {
		out.Lock()
		defer out.Unlock()

		if skipped, first := tracker.frameSeen(); first {
			if skipped > 0 {
				fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", skipped)
			} else {
				fmt.Printf("[SYNC] Synchronized\n\n")
			}
		}

		if len(s.Anomalies) > 0 {
			printValidationErrors(s)
		} else if showAll {
			fmt.Printf("[%s] ", s.Time.Format("15:04:05.000"))
			fmt.Print(fs9922.FormatFrame(s.Frame))
		}
		return nil
	})

	c := capture.New(src, check, captureConfig(tracker))

	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()

	// Statistics ticker
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case err := <-done:
			stats := c.Statistics()
			fmt.Println()
			fmt.Print(stats.String())
			return err

		case <-statsTicker.C:
			stats := c.Statistics()
			out.Lock()
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
			out.Unlock()
		}
	}
}
