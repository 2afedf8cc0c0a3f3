// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/ch9325"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
	"github.com/spf13/cobra"
)

var rawLogPackets bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display FS9922 frames as they arrive.

Each frame is printed as its raw bytes followed by the decoded value, the
status bytes and the bargraph. With --packets every adapter packet is printed
as well, which helps diagnose adapters that drop or duplicate bytes.

Supports the USB, serial and simulated sources.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogPackets, "packets", false, "Also print every adapter packet")
}

// packetPrinter prints adapter packets and resync events
type packetPrinter struct {
	capture.NopObserver
}

func (packetPrinter) PacketReceived(p ch9325.Packet) {
	if b, ok := p.Payload(); ok {
		fmt.Printf("PACKET %s (data 0x%02x)\n", fs9922.FormatHex(p[:]), b)
		return
	}
	fmt.Printf("PACKET %s (idle)\n", fs9922.FormatHex(p[:]))
}

func (packetPrinter) Resync() {
	fmt.Printf("[RESYNC] dropped one byte\n")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	src, connInfo, err := OpenSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	fmt.Printf("dmmstat - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	printer := capture.ConsumerFunc(func(s capture.Sample) error {
		fmt.Printf("[%s +%.3fs #%d] ", s.Time.Format("15:04:05.000"), s.Elapsed.Seconds(), s.Seq)
		fmt.Print(fs9922.FormatFrame(s.Frame))
		if len(s.Anomalies) > 0 {
			fmt.Printf("  [ANOMALY] %s\n", fs9922.FormatAnomalies(s.Anomalies))
		}
		return nil
	})

	var observers []capture.Observer
	if rawLogPackets {
		observers = append(observers, packetPrinter{})
	}

	c := capture.New(src, printer, captureConfig(observers...))
	if err := c.Run(ctx); err != nil {
		return err
	}
	log.Info("Connection closed")
	return nil
}
