// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/Thermoquad/dmmstat/pkg/fs9922"
	"github.com/spf13/cobra"
)

var (
	decodeBuild    bool
	buildValue     float64
	buildOverflow  bool
	buildUnit      string
	buildPrefix    string
	buildPower     string
	buildBargraph  int
	buildStatusSet []string
)

var decodeCmd = &cobra.Command{
	Use:   "decode [hex bytes]",
	Short: "Decode frames given as hex, or build a frame from fields",
	Long: `Decode FS9922 frames written as hex and report any anomalies.

A frame is 14 bytes. Bytes may be separated by spaces or colons. With no
arguments, frames are read from standard input, one per line. Decoding
works offline and does not open a source.

With --build a frame is assembled from the given fields instead, printed
as hex and decoded again.

Examples:
  dmmstat decode 2b 31 32 33 34 20 32 31 00 40 80 3c 0d 0a
  dmmstat decode --build --value 12.34 --unit V --prefix m --power dc --status auto`,
	Args: cobra.ArbitraryArgs,
	// Decoding works without configuration or a device
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeBuild, "build", false, "Build a frame from the field flags")
	decodeCmd.Flags().Float64Var(&buildValue, "value", 0, "Displayed value (build)")
	decodeCmd.Flags().BoolVar(&buildOverflow, "overflow", false, "Display OL (build)")
	decodeCmd.Flags().StringVar(&buildUnit, "unit", "", "Unit: V, A, ohm, F, Hz, hFE, %, degC, degF (build)")
	decodeCmd.Flags().StringVar(&buildPrefix, "prefix", "", "SI prefix: M, k, m, u, n (build)")
	decodeCmd.Flags().StringVar(&buildPower, "power", "", "Power mode: ac, dc (build)")
	decodeCmd.Flags().IntVar(&buildBargraph, "bargraph", 0, "Bargraph position, shown when non-zero (build)")
	decodeCmd.Flags().StringSliceVar(&buildStatusSet, "status", nil, "Indicators: hold, rel, auto, apo, bat, diode, beep, min, max (build)")
}

var unitNames = map[string]fs9922.Unit{
	"":     fs9922.UnitNone,
	"V":    fs9922.UnitVolt,
	"A":    fs9922.UnitAmpere,
	"ohm":  fs9922.UnitOhm,
	"Ω":    fs9922.UnitOhm,
	"F":    fs9922.UnitFarad,
	"Hz":   fs9922.UnitHertz,
	"hFE":  fs9922.UnitHFE,
	"%":    fs9922.UnitDuty,
	"degC": fs9922.UnitCelsius,
	"°C":   fs9922.UnitCelsius,
	"degF": fs9922.UnitFahrenheit,
	"°F":   fs9922.UnitFahrenheit,
}

var prefixNames = map[string]fs9922.Prefix{
	"":  fs9922.PrefixNone,
	"M": fs9922.PrefixMega,
	"k": fs9922.PrefixKilo,
	"m": fs9922.PrefixMilli,
	"u": fs9922.PrefixMicro,
	"µ": fs9922.PrefixMicro,
	"n": fs9922.PrefixNano,
}

var powerNames = map[string]fs9922.PowerMode{
	"":   fs9922.PowerNone,
	"ac": fs9922.PowerAC,
	"dc": fs9922.PowerDC,
}

// parseHexFrame accepts 14 bytes of hex with optional separators
func parseHexFrame(s string) (fs9922.Frame, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "\t", "", "0x", "").Replace(s)
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return fs9922.Frame{}, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return fs9922.NewFrame(raw)
}

// buildFrame assembles a frame from the build flags
func buildFrame() (fs9922.Frame, error) {
	unit, ok := unitNames[buildUnit]
	if !ok {
		return fs9922.Frame{}, fmt.Errorf("unknown unit %q", buildUnit)
	}
	prefix, ok := prefixNames[buildPrefix]
	if !ok {
		return fs9922.Frame{}, fmt.Errorf("unknown prefix %q", buildPrefix)
	}
	power, ok := powerNames[strings.ToLower(buildPower)]
	if !ok {
		return fs9922.Frame{}, fmt.Errorf("unknown power mode %q", buildPower)
	}

	b := fs9922.NewFrameBuilder()
	if buildOverflow {
		b.Overflow()
	} else {
		b.Value(buildValue)
	}
	b.Unit(unit).Prefix(prefix).Power(power)
	if buildBargraph != 0 {
		b.Bargraph(buildBargraph)
	}

	for _, s := range buildStatusSet {
		switch strings.ToLower(s) {
		case "hold":
			b.Hold(true)
		case "rel":
			b.Relative(true)
		case "auto":
			b.Autorange(true)
		case "apo":
			b.AutoPowerOff(true)
		case "bat":
			b.LowBattery(true)
		case "diode":
			b.Diode(true)
		case "beep":
			b.Beep(true)
		case "min":
			b.MinMax(fs9922.MinMaxMin)
		case "max":
			b.MinMax(fs9922.MinMaxMax)
		default:
			return fs9922.Frame{}, fmt.Errorf("unknown status %q", s)
		}
	}
	return b.Build()
}

func printDecoded(f fs9922.Frame) {
	fmt.Print(fs9922.FormatFrame(f))
	if errs := fs9922.Validate(f); len(errs) > 0 {
		fmt.Printf("  [ANOMALY] %s\n", fs9922.FormatAnomalies(errs))
	}
}

func runDecode(cmd *cobra.Command, args []string) error {
	if decodeBuild {
		f, err := buildFrame()
		if err != nil {
			return err
		}
		fmt.Println(fs9922.FormatHex(f.Bytes()))
		printDecoded(f)
		return nil
	}

	if len(args) > 0 {
		f, err := parseHexFrame(strings.Join(args, " "))
		if err != nil {
			return err
		}
		printDecoded(f)
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	line := 0
	failed := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		f, err := parseHexFrame(text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", line, err)
			failed++
			continue
		}
		printDecoded(f)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d lines could not be decoded", failed)
	}
	return nil
}
