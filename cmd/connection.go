// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/ch9325"
	"github.com/Thermoquad/dmmstat/pkg/config"
	"golang.org/x/term"
)

// OpenSource opens the measurement source selected by the configuration
func OpenSource(ctx context.Context) (capture.Source, string, error) {
	dev := cfg.Device

	switch dev.Source {
	case config.SourceUSB:
		ch9325.DefaultHost.SetTransferTimeout(dev.ReadTimeout)
		d, err := ch9325.Open(ctx, ch9325.Options{
			VendorID:         dev.VendorID,
			ProductID:        dev.ProductID,
			BaudRate:         uint32(dev.BaudRate),
			DiscoveryTimeout: dev.DiscoveryTimeout,
			Logger:           log,
		})
		if err != nil {
			return nil, "", err
		}
		return d, fmt.Sprintf("USB: CH9325 %04x:%04x on port %d @ %d baud",
			dev.VendorID, dev.ProductID, d.Port(), dev.BaudRate), nil

	case config.SourceSerial:
		if dev.Port == "" {
			return nil, "", fmt.Errorf("--port must be specified for the serial source")
		}
		s, err := capture.OpenSerial(dev.Port, dev.BaudRate, dev.ReadTimeout)
		if err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("Serial: %s @ %d baud", dev.Port, dev.BaudRate), nil

	case config.SourceSimulate:
		sc := capture.DefaultSimulatedConfig()
		if cfg.Capture.SimulateInterval > 0 {
			sc.Interval = cfg.Capture.SimulateInterval
		}
		return capture.NewSimulatedSource(sc), fmt.Sprintf("Simulated: one frame every %s", sc.Interval), nil
	}

	return nil, "", fmt.Errorf("unknown source %q", dev.Source)
}

// captureConfig builds the capture settings shared by every command
func captureConfig(observers ...capture.Observer) capture.Config {
	return capture.Config{
		Logger:                log,
		MaxConsecutiveResyncs: cfg.Capture.MaxConsecutiveResyncs,
		Observers:             observers,
	}
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("DMMSTAT_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}
