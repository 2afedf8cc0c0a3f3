// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the dmmstat YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/ch9325"
	"gopkg.in/yaml.v3"
)

// Source kinds
const (
	SourceUSB      = "usb"
	SourceSerial   = "serial"
	SourceSimulate = "simulate"
)

// ErrInvalid is returned by Validate
var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Capture CaptureConfig `yaml:"capture"`
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Serve   ServeConfig   `yaml:"serve"`
}

type DeviceConfig struct {
	Source           string        `yaml:"source"`
	VendorID         uint16        `yaml:"vendor_id"`
	ProductID        uint16        `yaml:"product_id"`
	Port             string        `yaml:"port"`
	BaudRate         int           `yaml:"baud_rate"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
}

type CaptureConfig struct {
	MaxConsecutiveResyncs int           `yaml:"max_consecutive_resyncs"`
	Frames                uint64        `yaml:"frames"`
	Duration              time.Duration `yaml:"duration"`
	LogFile               string        `yaml:"log_file"`
	SimulateInterval      time.Duration `yaml:"simulate_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type ServeConfig struct {
	Listen   string `yaml:"listen"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Metrics  bool   `yaml:"metrics"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Source:           SourceUSB,
			VendorID:         ch9325.VendorID,
			ProductID:        ch9325.ProductID,
			BaudRate:         ch9325.DefaultBaudRate,
			ReadTimeout:      ch9325.DefaultTimeout,
			DiscoveryTimeout: ch9325.DefaultDiscoveryTimeout,
		},
		Capture: CaptureConfig{
			MaxConsecutiveResyncs: capture.DefaultMaxConsecutiveResyncs,
			SimulateInterval:      500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Path: "dmmstat.db",
		},
		Serve: ServeConfig{
			Listen:  ":8080",
			Metrics: true,
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	switch c.Device.Source {
	case SourceUSB, SourceSerial, SourceSimulate:
	default:
		return fmt.Errorf("%w: unknown source %q (use usb, serial or simulate)", ErrInvalid, c.Device.Source)
	}
	if c.Device.BaudRate <= 0 {
		return fmt.Errorf("%w: baud_rate must be positive", ErrInvalid)
	}
	if c.Device.ReadTimeout <= 0 {
		return fmt.Errorf("%w: read_timeout must be positive", ErrInvalid)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
