// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/datalog"
	"github.com/Thermoquad/dmmstat/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(values ...float64) Series {
	s := Series{Title: "test"}
	for i, v := range values {
		s.Points = append(s.Points, Point{Elapsed: time.Duration(i) * time.Second, Value: v, Unit: "V"})
	}
	return s
}

func TestSummarize(t *testing.T) {
	s := series(1, 2, 3, 4, math.Inf(1), 10)
	s.Points = append(s.Points, Point{Elapsed: 6 * time.Second, Value: 0.5, Unit: "A", Anomaly: true})

	sum := Summarize(s)
	assert.Equal(t, "V", sum.Unit)
	assert.Equal(t, 7, sum.Points)
	assert.Equal(t, 5, sum.Count)
	assert.Equal(t, 1, sum.Overflows)
	assert.Equal(t, 1, sum.OtherUnit)
	assert.Equal(t, 1, sum.Anomalies)
	assert.Equal(t, 6*time.Second, sum.Duration)
	assert.Equal(t, 1.0, sum.Min)
	assert.Equal(t, 10.0, sum.Max)
	assert.InDelta(t, 4.0, sum.Mean, 1e-12)
	assert.Equal(t, 3.0, sum.Median)
	// sample standard deviation of 1 2 3 4 10
	assert.InDelta(t, math.Sqrt(12.5), sum.StdDev, 1e-12)
}

func TestSummarizeEdgeCases(t *testing.T) {
	empty := Summarize(Series{})
	assert.Zero(t, empty.Count)
	assert.True(t, math.IsNaN(empty.Mean))
	assert.Contains(t, empty.String(), "Values:")
	assert.NotContains(t, empty.String(), "Mean:")

	overflowOnly := Summarize(series(math.Inf(1), math.Inf(1)))
	assert.Zero(t, overflowOnly.Count)
	assert.Equal(t, 2, overflowOnly.Overflows)
	assert.Equal(t, "", overflowOnly.Unit)

	single := Summarize(series(2.5))
	assert.Equal(t, 2.5, single.Mean)
	assert.Zero(t, single.StdDev)
	assert.Equal(t, 2.5, single.Median)
	assert.Contains(t, single.String(), "Mean:       2.5 V")
}

func TestFromRecordsAndEntries(t *testing.T) {
	records := []store.Record{
		{Elapsed: 0, ValueUnscaled: 0.01234, Unit: "V"},
		{Elapsed: time.Second, ValueUnscaled: math.Inf(1), Overflow: true, Unit: "V", Anomalies: []string{"power_conflict"}},
	}
	s := FromRecords("session", records)
	require.Len(t, s.Points, 2)
	assert.Equal(t, 0.01234, s.Points[0].Value)
	assert.True(t, s.Points[1].Anomaly)

	entries := []datalog.Entry{{Time: 1.5, ValueUnscaled: 2000, Value: 2, Prefix: "k", Unit: "Ω"}}
	s = FromEntries("log", entries)
	require.Len(t, s.Points, 1)
	assert.Equal(t, 1500*time.Millisecond, s.Points[0].Elapsed)
	assert.Equal(t, 2000.0, s.Points[0].Value)
	assert.Equal(t, "Ω", s.Unit())
}

func TestRenderChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, series(1, math.Inf(1), 3)))

	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "not an HTML document")
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "overflows=1")
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plot.png")
	require.NoError(t, SavePNG(path, series(1, 2, math.Inf(1), 4, 5)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), data[:8])
}
