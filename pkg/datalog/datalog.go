// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package datalog writes and reads the whitespace separated measurement log.
//
// Each line holds, in order: seconds since the first frame, the unscaled
// value, the displayed value, prefix, unit, power, min/max and the seven
// flags hold rel auto apo bat diode beep as 0 or 1. Empty text columns are
// written as "-" so every line has the same number of fields, and overflow
// values are written as "inf".
package datalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
)

// Header is the first line of every log
const Header = "# time[s] value_unscaled value prefix unit power min/max hold rel auto apo bat diode beep"

// Columns is the number of fields on a data line
const Columns = 14

// ErrMalformed is returned by Parse for a line with the wrong shape
var ErrMalformed = errors.New("datalog: malformed line")

// Writer appends samples to a log. A Writer created by Create only opens
// its file when the first sample arrives, so a capture that never sees a
// frame leaves no file behind.
type Writer struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	w      *bufio.Writer
	header bool
	lines  int
	first  time.Duration // Elapsed of the first sample
}

var _ capture.Consumer = (*Writer)(nil)

// Create returns a Writer for path. The file is truncated when it is opened.
func Create(path string) *Writer {
	return &Writer{path: path}
}

// NewWriter writes to an existing stream
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Consume implements capture.Consumer. Every line is flushed before
// returning.
func (lw *Writer) Consume(s capture.Sample) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.w == nil {
		f, err := os.Create(lw.path)
		if err != nil {
			return fmt.Errorf("failed to create data log: %w", err)
		}
		lw.file = f
		lw.w = bufio.NewWriter(f)
	}
	if !lw.header {
		if _, err := lw.w.WriteString(Header + "\n"); err != nil {
			return err
		}
		lw.header = true
		lw.first = s.Elapsed
	}
	if _, err := lw.w.WriteString(FormatLine((s.Elapsed-lw.first).Seconds(), s.Measurement) + "\n"); err != nil {
		return err
	}
	lw.lines++
	return lw.w.Flush()
}

// Lines returns the number of data lines written
func (lw *Writer) Lines() int {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.lines
}

// Opened reports whether the log file has been created
func (lw *Writer) Opened() bool {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.file != nil
}

// Close flushes and closes the file, if one was opened
func (lw *Writer) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.w == nil {
		return nil
	}
	err := lw.w.Flush()
	if lw.file != nil {
		err = errors.Join(err, lw.file.Close())
		lw.file = nil
	}
	return err
}

// FormatLine renders one data line without the trailing newline
func FormatLine(seconds float64, m fs9922.Measurement) string {
	fields := []string{
		strconv.FormatFloat(seconds, 'f', 3, 64),
		formatNumber(m.ValueUnscaled()),
		formatNumber(m.Value()),
		column(m.Prefix().String()),
		column(m.Unit().String()),
		column(m.Power().String()),
		column(m.MinMax().String()),
		flag(m.Hold()),
		flag(m.Relative()),
		flag(m.Autorange()),
		flag(m.AutoPowerOff()),
		flag(m.LowBattery()),
		flag(m.Diode()),
		flag(m.Beep()),
	}
	return strings.Join(fields, " ")
}

func formatNumber(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	if math.IsInf(v, -1) {
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func column(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Entry is one parsed log line
type Entry struct {
	Time          float64
	ValueUnscaled float64
	Value         float64
	Prefix        string
	Unit          string
	Power         string
	MinMax        string
	Hold          bool
	Relative      bool
	Autorange     bool
	AutoPowerOff  bool
	LowBattery    bool
	Diode         bool
	Beep          bool
}

// Overflow reports whether the entry recorded an overflow
func (e Entry) Overflow() bool {
	return math.IsInf(e.Value, 0)
}

// Parse reads a log. Comment and blank lines are skipped.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read data log: %w", err)
	}
	return entries, nil
}

// ParseLine parses one data line
func ParseLine(line string) (Entry, error) {
	f := strings.Fields(line)
	if len(f) != Columns {
		return Entry{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformed, len(f), Columns)
	}

	var e Entry
	var err error
	nums := []*float64{&e.Time, &e.ValueUnscaled, &e.Value}
	for i, dst := range nums {
		if *dst, err = strconv.ParseFloat(f[i], 64); err != nil {
			return Entry{}, fmt.Errorf("%w: column %d: %v", ErrMalformed, i+1, err)
		}
	}

	texts := []*string{&e.Prefix, &e.Unit, &e.Power, &e.MinMax}
	for i, dst := range texts {
		if v := f[3+i]; v != "-" {
			*dst = v
		}
	}

	flags := []*bool{&e.Hold, &e.Relative, &e.Autorange, &e.AutoPowerOff, &e.LowBattery, &e.Diode, &e.Beep}
	for i, dst := range flags {
		switch f[7+i] {
		case "0":
		case "1":
			*dst = true
		default:
			return Entry{}, fmt.Errorf("%w: column %d: flag %q", ErrMalformed, 8+i, f[7+i])
		}
	}
	return e, nil
}
