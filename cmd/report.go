// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Thermoquad/dmmstat/pkg/datalog"
	"github.com/Thermoquad/dmmstat/pkg/report"
	"github.com/spf13/cobra"
)

var (
	reportLog  string
	reportHTML string
	reportPNG  string
)

var reportCmd = &cobra.Command{
	Use:   "report [session-id]",
	Short: "Summarize a recorded session or data log",
	Long: `Print summary statistics for a recorded session or a data log file and
optionally render it as a chart.

The summary covers the dominant unit of the capture: count, mean, standard
deviation, minimum, maximum and median over finite values. Overflow readings
and readings in other units are counted but left out of the statistics.

Examples:
  # Summarize a stored session and write an interactive chart
  dmmstat report 0b6c...e1 --html session.html

  # Summarize a data log written by 'capture --file'
  dmmstat report --log measurement.dat --png measurement.png`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportLog, "log", "l", "", "Read a data log file instead of a session")
	reportCmd.Flags().StringVar(&reportHTML, "html", "", "Write an interactive HTML chart")
	reportCmd.Flags().StringVar(&reportPNG, "png", "", "Write a static PNG plot")
	reportCmd.Flags().StringVar(&storePath, "db", "", "Store database path (overrides config)")
}

func runReport(cmd *cobra.Command, args []string) error {
	var (
		series report.Series
		err    error
	)

	switch {
	case reportLog != "" && len(args) > 0:
		return errors.New("give either a session id or --log, not both")
	case reportLog != "":
		series, err = seriesFromLog(reportLog)
	case len(args) == 1:
		series, err = seriesFromSession(cmd, args[0])
	default:
		return errors.New("a session id or --log is required")
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s\n\n", series.Title)
	fmt.Print(report.Summarize(series).String())

	if reportHTML != "" {
		f, err := os.Create(reportHTML)
		if err != nil {
			return fmt.Errorf("failed to create chart file: %w", err)
		}
		if err := report.RenderChart(f, series); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("\nChart: %s\n", reportHTML)
	}

	if reportPNG != "" {
		if err := report.SavePNG(reportPNG, series); err != nil {
			return err
		}
		fmt.Printf("Plot: %s\n", reportPNG)
	}
	return nil
}

func seriesFromLog(path string) (report.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return report.Series{}, fmt.Errorf("failed to open data log: %w", err)
	}
	defer f.Close()

	entries, err := datalog.Parse(f)
	if err != nil {
		return report.Series{}, err
	}
	return report.FromEntries(filepath.Base(path), entries), nil
}

func seriesFromSession(cmd *cobra.Command, arg string) (report.Series, error) {
	id, err := parseSessionID(arg)
	if err != nil {
		return report.Series{}, err
	}

	st, err := openStore()
	if err != nil {
		return report.Series{}, err
	}
	defer st.Close()

	session, err := st.Session(cmd.Context(), id)
	if err != nil {
		return report.Series{}, err
	}
	records, err := st.Samples(cmd.Context(), id)
	if err != nil {
		return report.Series{}, err
	}

	title := fmt.Sprintf("Session %s (%s)", session.ID, session.StartedAt.Format("2006-01-02 15:04:05"))
	if session.Note != "" {
		title += " - " + session.Note
	}
	return report.FromRecords(title, records), nil
}
