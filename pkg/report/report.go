// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package report summarizes and charts recorded measurements.
package report

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/datalog"
	"github.com/Thermoquad/dmmstat/pkg/store"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Point is one measurement in base units
type Point struct {
	Elapsed time.Duration
	Value   float64 // unscaled, +Inf on overflow
	Unit    string
	Anomaly bool
}

// Series is an ordered run of points
type Series struct {
	Title  string
	Points []Point
}

// FromRecords builds a series from stored samples
func FromRecords(title string, records []store.Record) Series {
	s := Series{Title: title, Points: make([]Point, len(records))}
	for i, r := range records {
		s.Points[i] = Point{
			Elapsed: r.Elapsed,
			Value:   r.ValueUnscaled,
			Unit:    r.Unit,
			Anomaly: len(r.Anomalies) > 0,
		}
	}
	return s
}

// FromEntries builds a series from a parsed data log
func FromEntries(title string, entries []datalog.Entry) Series {
	s := Series{Title: title, Points: make([]Point, len(entries))}
	for i, e := range entries {
		s.Points[i] = Point{
			Elapsed: time.Duration(e.Time * float64(time.Second)),
			Value:   e.ValueUnscaled,
			Unit:    e.Unit,
		}
	}
	return s
}

// Unit returns the most frequent unit among finite points
func (s Series) Unit() string {
	counts := map[string]int{}
	best, bestN := "", 0
	for _, p := range s.Points {
		if !finite(p.Value) {
			continue
		}
		counts[p.Unit]++
		if n := counts[p.Unit]; n > bestN {
			best, bestN = p.Unit, n
		}
	}
	return best
}

// Summary holds descriptive statistics over the finite values of the
// dominant unit
type Summary struct {
	Unit      string
	Points    int // all points
	Count     int // finite values of Unit
	Overflows int
	OtherUnit int // finite values in another unit
	Anomalies int
	Duration  time.Duration

	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Median float64
}

// Summarize computes the summary of s. Statistics are NaN when no finite
// value is present.
func Summarize(s Series) Summary {
	sum := Summary{
		Unit:   s.Unit(),
		Points: len(s.Points),
		Mean:   math.NaN(),
		StdDev: math.NaN(),
		Min:    math.NaN(),
		Max:    math.NaN(),
		Median: math.NaN(),
	}

	values := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		if p.Anomaly {
			sum.Anomalies++
		}
		switch {
		case !finite(p.Value):
			sum.Overflows++
		case p.Unit != sum.Unit:
			sum.OtherUnit++
		default:
			values = append(values, p.Value)
		}
	}
	if len(s.Points) > 0 {
		sum.Duration = s.Points[len(s.Points)-1].Elapsed - s.Points[0].Elapsed
	}

	sum.Count = len(values)
	if sum.Count == 0 {
		return sum
	}

	sum.Min = floats.Min(values)
	sum.Max = floats.Max(values)
	if sum.Count > 1 {
		sum.Mean, sum.StdDev = stat.MeanStdDev(values, nil)
	} else {
		sum.Mean, sum.StdDev = values[0], 0
	}
	slices.Sort(values)
	sum.Median = stat.Quantile(0.5, stat.Empirical, values, nil)
	return sum
}

// String renders the summary as a short table
func (s Summary) String() string {
	result := "=== Summary ===\n"
	result += fmt.Sprintf("Points:     %8d\n", s.Points)
	result += fmt.Sprintf("Values:     %8d %s\n", s.Count, s.Unit)
	if s.Overflows > 0 {
		result += fmt.Sprintf("Overflows:  %8d\n", s.Overflows)
	}
	if s.OtherUnit > 0 {
		result += fmt.Sprintf("Other Unit: %8d\n", s.OtherUnit)
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:  %8d\n", s.Anomalies)
	}
	result += fmt.Sprintf("Duration:   %8.1f s\n", s.Duration.Seconds())
	if s.Count > 0 {
		result += fmt.Sprintf("Mean:       %s\n", formatValue(s.Mean, s.Unit))
		result += fmt.Sprintf("Std Dev:    %s\n", formatValue(s.StdDev, s.Unit))
		result += fmt.Sprintf("Min:        %s\n", formatValue(s.Min, s.Unit))
		result += fmt.Sprintf("Median:     %s\n", formatValue(s.Median, s.Unit))
		result += fmt.Sprintf("Max:        %s\n", formatValue(s.Max, s.Unit))
	}
	result += "===============\n"
	return result
}

func formatValue(v float64, unit string) string {
	text := strconv.FormatFloat(v, 'g', 6, 64)
	if unit == "" {
		return text
	}
	return text + " " + unit
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
