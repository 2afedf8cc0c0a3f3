// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/datalog"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
	"github.com/Thermoquad/dmmstat/pkg/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	storePath  string
	exportFile string
	schemaDown bool
)

// openStore opens the session database from --db or the configuration
func openStore() (*store.Store, error) {
	path := cfg.Store.Path
	if storePath != "" {
		path = storePath
	}
	return store.Open(path, log)
}

func parseSessionID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid session id %q: %w", arg, err)
	}
	return id, nil
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and manage recorded capture sessions",
	Long: `Work with the sessions recorded by 'capture --record' and 'serve --record'.

Without a subcommand the sessions are listed, newest first.`,
	Args: cobra.NoArgs,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the samples of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>...",
	Short: "Delete sessions and their samples",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSessionsDelete,
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Write a session as a data log file",
	Long: `Write the samples of a session in the data log format used by
'capture --file', with times relative to the session start.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsExport,
}

var sessionsSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show or roll back the database schema version",
	Args:  cobra.NoArgs,
	RunE:  runSessionsSchema,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.PersistentFlags().StringVar(&storePath, "db", "", "Store database path (overrides config)")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd, sessionsExportCmd, sessionsSchemaCmd)

	sessionsExportCmd.Flags().StringVarP(&exportFile, "file", "f", "", "Output data log file (required)")
	sessionsExportCmd.MarkFlagRequired("file")

	sessionsSchemaCmd.Flags().BoolVar(&schemaDown, "down", false, "Roll back every migration (deletes all data)")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.Sessions(cmd.Context())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tFRAMES\tSOURCE\tNOTE")
	for _, s := range sessions {
		duration := "open"
		if !s.Open() {
			duration = s.Duration().Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), duration, s.Frames, s.Source, s.Note)
	}
	return tw.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	session, err := st.Session(cmd.Context(), id)
	if err != nil {
		return err
	}
	records, err := st.Samples(cmd.Context(), id)
	if err != nil {
		return err
	}

	fmt.Printf("Session: %s\n", session.ID)
	fmt.Printf("Source: %s\n", session.Source)
	if session.Note != "" {
		fmt.Printf("Note: %s\n", session.Note)
	}
	fmt.Printf("Started: %s\n", session.StartedAt.Format(time.RFC3339))
	fmt.Printf("Frames: %d\n\n", session.Frames)

	for _, r := range records {
		line := fmt.Sprintf("%6d %9.3fs  %s", r.Seq, r.Elapsed.Seconds(), fs9922.FormatMeasurement(r.Measurement()))
		if len(r.Anomalies) > 0 {
			line += fmt.Sprintf("  [ANOMALY %v]", r.Anomalies)
		}
		fmt.Println(line)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	for _, arg := range args {
		id, err := parseSessionID(arg)
		if err != nil {
			return err
		}
		if err := st.DeleteSession(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", id)
	}
	return nil
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Samples(cmd.Context(), id)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("session %s has no samples", id)
	}

	w := datalog.Create(exportFile)
	for _, r := range records {
		s := capture.Sample{
			Seq:         r.Seq,
			Time:        r.Time,
			Elapsed:     r.Elapsed,
			Frame:       r.Frame,
			Measurement: r.Measurement(),
		}
		if err := w.Consume(s); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	fmt.Printf("Wrote %d lines to %s\n", w.Lines(), exportFile)
	return nil
}

func runSessionsSchema(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if schemaDown {
		if err := st.MigrateDown(); err != nil {
			return err
		}
		log.Warn("All migrations rolled back")
	}

	version, dirty, err := st.SchemaVersion()
	if err != nil {
		return err
	}
	fmt.Printf("Schema version: %d", version)
	if dirty {
		fmt.Printf(" (dirty)")
	}
	fmt.Println()
	return nil
}
