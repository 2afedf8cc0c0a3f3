// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/datalog"
	"github.com/Thermoquad/dmmstat/pkg/store"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	captureFrames  uint64
	captureTime    time.Duration
	captureFile    string
	captureRecord  bool
	captureNote    string
	captureTUI     bool
	captureShowAll bool
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture measurements with a live display",
	Long: `Read frames from the meter and show the current measurement.

The live screen shows the elapsed time, frame number, value with prefix and
unit, status indicators, the bargraph and the raw frame bytes. On a terminal
the interactive TUI is used unless --tui=false is given.

Each frame can also be written to a whitespace-separated data log (--file)
and recorded as a session in the sqlite store (--record).

Capture ends after --frames frames, after --time, or on Ctrl+C.

Examples:
  # Capture 100 frames into a data log
  dmmstat capture -n 100 -f measurement.dat

  # Record a one minute session into the store
  dmmstat capture -t 1m --record --note "battery discharge"`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().Uint64VarP(&captureFrames, "frames", "n", 0, "Maximum number of frames to capture (0 = unlimited)")
	captureCmd.Flags().DurationVarP(&captureTime, "time", "t", 0, "Maximum capture time, e.g. 30s (0 = unlimited)")
	captureCmd.Flags().StringVarP(&captureFile, "file", "f", "", "Write frames to a data log file")
	captureCmd.Flags().BoolVar(&captureRecord, "record", false, "Record the capture as a session in the store")
	captureCmd.Flags().StringVar(&captureNote, "note", "", "Note attached to the recorded session")
	captureCmd.Flags().BoolVar(&captureTUI, "tui", false, "Use the interactive TUI (default when stdout is a terminal)")
	captureCmd.Flags().BoolVar(&captureShowAll, "show-all", false, "Log every frame in the TUI event list")
	captureCmd.Flags().StringVar(&storePath, "db", "", "Store database path (overrides config)")
}

// captureSettings merges the capture flags over the configuration
func captureSettings(cmd *cobra.Command) (captureLimits, string) {
	lim := captureLimits{
		frames:   cfg.Capture.Frames,
		duration: cfg.Capture.Duration,
	}
	file := cfg.Capture.LogFile

	flags := cmd.Flags()
	if flags.Changed("frames") {
		lim.frames = captureFrames
	}
	if flags.Changed("time") {
		lim.duration = captureTime
	}
	if flags.Changed("file") {
		file = captureFile
	}
	return lim, file
}

func runCapture(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lim, logFile := captureSettings(cmd)

	useTUI := term.IsTerminal(int(os.Stdout.Fd()))
	if cmd.Flags().Changed("tui") {
		useTUI = captureTUI
	}

	src, connInfo, err := OpenSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	var consumers capture.Consumers

	if logFile != "" {
		w := datalog.Create(logFile)
		defer func() {
			if err := w.Close(); err != nil {
				log.WithError(err).Error("Failed to close data log")
			}
		}()
		consumers = append(consumers, w)
	}

	var rec *store.Recorder
	if captureRecord {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		session, err := st.CreateSession(ctx, cfg.Device.Source, captureNote, time.Now())
		if err != nil {
			return err
		}
		rec = st.NewRecorder(ctx, session)
		consumers = append(consumers, rec)
		defer func() {
			// The capture context may already be cancelled here
			if err := st.EndSession(context.Background(), session.ID, time.Now()); err != nil {
				log.WithError(err).Error("Failed to close session")
			}
		}()
	}

	if useTUI {
		err = runCaptureTUI(ctx, cancel, src, connInfo, lim, consumers)
	} else {
		err = runCaptureText(ctx, src, connInfo, lim, consumers)
	}

	if rec != nil {
		fmt.Printf("Session: %s\n", rec.Session().ID)
	}
	if logFile != "" {
		fmt.Printf("Data log: %s\n", logFile)
	}
	return err
}

func runCaptureText(ctx context.Context, src capture.Source, connInfo string, lim captureLimits, consumers capture.Consumers) error {
	fmt.Printf("dmmstat - Capture\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	display := capture.ConsumerFunc(func(s capture.Sample) error {
		renderScreen(os.Stdout, s, lim)
		return nil
	})
	consumers = append(consumers, display)
	consumers = append(consumers, lim.consumers()...)

	c := capture.New(src, consumers, captureConfig())
	err := c.Run(ctx)

	stats := c.Statistics()
	fmt.Printf("\n%s", stats.String())
	return err
}

func runCaptureTUI(ctx context.Context, cancel context.CancelFunc, src capture.Source, connInfo string, lim captureLimits, consumers capture.Consumers) error {
	var p *tea.Program
	send := func(msg tea.Msg) { p.Send(msg) }

	display := capture.ConsumerFunc(func(s capture.Sample) error {
		send(sampleMsg(s))
		return nil
	})
	consumers = append(consumers, display)
	consumers = append(consumers, lim.consumers()...)

	c := capture.New(src, consumers, captureConfig(tuiObserver{send: send}))
	p = tea.NewProgram(initialModel(connInfo, lim, captureShowAll, c.Statistics))

	// The alt screen owns the terminal, so log lines go to the event list
	log.SetOutput(io.Discard)
	log.AddHook(tuiLogHook{send: send})

	errCh := make(chan error, 1)
	go func() {
		err := c.Run(ctx)
		errCh <- err
		send(captureDoneMsg{err: err})
	}()

	_, tuiErr := p.Run()
	cancel()
	runErr := <-errCh

	log.SetOutput(os.Stderr)
	stats := c.Statistics()
	fmt.Print(stats.String())

	if tuiErr != nil {
		return fmt.Errorf("TUI error: %w", tuiErr)
	}
	return runErr
}
