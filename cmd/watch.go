// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/dmmstat/pkg/fs9922"
	"github.com/Thermoquad/dmmstat/pkg/stream"
	"github.com/spf13/cobra"
)

var (
	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	watchCount uint64
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live readings of a 'dmmstat serve' instance",
	Long: `Connect to the WebSocket stream published by 'dmmstat serve' and print
each reading as it arrives.

For authentication, the password is read from the DMMSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell
history.

Exit codes:
  0 - Stream ended normally or --count readings received
  1 - Stream failed
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&wsURL, "url", "u", "ws://localhost:8080/ws", "WebSocket URL (ws:// or wss://)")
	watchCmd.Flags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	watchCmd.Flags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
	watchCmd.Flags().Uint64VarP(&watchCount, "count", "n", 0, "Stop after this many readings (0 = unlimited)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	password := ""
	if wsUsername != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return err
		}
	}

	client, err := stream.Dial(ctx, wsURL, wsUsername, password, wsNoSSLVerify)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	// Unblock Next on Ctrl+C
	go func() {
		<-ctx.Done()
		client.Close()
	}()

	fmt.Printf("dmmstat - Watch\n")
	fmt.Printf("Connection: WebSocket: %s\n", wsURL)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var received uint64
	for watchCount == 0 || received < watchCount {
		r, err := client.Next()
		if err != nil {
			if errors.Is(err, stream.ErrConnectionClosed) || ctx.Err() != nil {
				log.Info("Connection closed")
				return nil
			}
			return err
		}
		received++
		printReading(r)
	}
	cancel()
	return nil
}

func printReading(r fs9922.Reading) {
	timestamp := r.Time().Format("15:04:05.000")
	f, err := r.Frame()
	if err != nil {
		fmt.Printf("[%s #%d] %g %s%s (no frame: %v)\n", timestamp, r.Seq, r.Value, r.Prefix, r.Unit, err)
		return
	}
	fmt.Printf("[%s #%d] %s\n", timestamp, r.Seq, fs9922.FormatMeasurement(fs9922.Decode(f)))
}
