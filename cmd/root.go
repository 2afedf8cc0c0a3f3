// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/Thermoquad/dmmstat/pkg/ch9325"
	"github.com/Thermoquad/dmmstat/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string

	// Device flags
	sourceKind  string
	portName    string
	baudRate    int
	vendorID    uint16
	productID   uint16
	readTimeout time.Duration

	// Logging flags
	logLevel  string
	logFormat string
)

var (
	cfg *config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dmmstat",
	Short: "FS9922-DMM3 multimeter capture tool",
	Long: `dmmstat - A CLI tool for capturing and analyzing measurements from
multimeters speaking the FS9922-DMM3 protocol.

The meter is read through a CH9325 USB HID adapter (the default), a plain
serial cable, or a built-in simulator.

Sources:
  USB:       --source usb [--vid 0x1a86 --pid 0xe008] [--baud 2400]
  Serial:    --source serial --port /dev/ttyUSB0 [--baud 2400]
  Simulated: --source simulate

Settings can also be read from a YAML file with --config. Flags given on the
command line override values from the file.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	// Device flags
	rootCmd.PersistentFlags().StringVarP(&sourceKind, "source", "s", config.SourceUSB, "Measurement source (usb, serial, simulate)")
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device (serial only)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", ch9325.DefaultBaudRate, "Meter baud rate")
	rootCmd.PersistentFlags().Uint16Var(&vendorID, "vid", ch9325.VendorID, "USB vendor ID of the adapter")
	rootCmd.PersistentFlags().Uint16Var(&productID, "pid", ch9325.ProductID, "USB product ID of the adapter")
	rootCmd.PersistentFlags().DurationVar(&readTimeout, "read-timeout", ch9325.DefaultTimeout, "Per-packet read timeout")

	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
}

// loadConfig reads --config over the defaults, then applies the flags the
// user actually set
func loadConfig(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		c = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("source") {
		c.Device.Source = sourceKind
	}
	if flags.Changed("port") {
		c.Device.Port = portName
	}
	if flags.Changed("baud") {
		c.Device.BaudRate = baudRate
	}
	if flags.Changed("vid") {
		c.Device.VendorID = vendorID
	}
	if flags.Changed("pid") {
		c.Device.ProductID = productID
	}
	if flags.Changed("read-timeout") {
		c.Device.ReadTimeout = readTimeout
	}
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		c.Log.Format = logFormat
	}

	if err := c.Validate(); err != nil {
		return err
	}

	cfg = c
	log = setupLogger(c.Log)
	ch9325.SetUSBLogLevel(log.GetLevel())
	return nil
}

func setupLogger(c config.LogConfig) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if c.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	return l
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
