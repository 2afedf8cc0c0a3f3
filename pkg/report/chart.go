// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package report

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// RenderChart writes an interactive HTML line chart of the series. Overflow
// and other-unit points leave gaps.
func RenderChart(w io.Writer, s Series) error {
	unit := s.Unit()
	sum := Summarize(s)

	x := make([]string, len(s.Points))
	y := make([]opts.LineData, len(s.Points))
	for i, p := range s.Points {
		x[i] = strconv.FormatFloat(p.Elapsed.Seconds(), 'f', 2, 64)
		if finite(p.Value) && p.Unit == unit {
			y[i] = opts.LineData{Value: p.Value}
		} else {
			y[i] = opts.LineData{Value: "-"}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: s.Title, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    s.Title,
			Subtitle: fmt.Sprintf("points=%d overflows=%d unit=%s", sum.Points, sum.Overflows, unit),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: unit, Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(x).AddSeries("value", y,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), ConnectNulls: opts.Bool(false)}),
	)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

// SavePNG renders a static line plot of the series to path
func SavePNG(path string, s Series) error {
	unit := s.Unit()

	p := plot.New()
	p.Title.Text = s.Title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = unit

	// one line per contiguous run of plottable points
	var run plotter.XYs
	flush := func() error {
		if len(run) == 0 {
			return nil
		}
		l, err := plotter.NewLine(run)
		if err != nil {
			return fmt.Errorf("failed to build line: %w", err)
		}
		l.Width = vg.Points(1)
		l.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
		p.Add(l)
		run = nil
		return nil
	}
	for _, pt := range s.Points {
		if !finite(pt.Value) || pt.Unit != unit {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		run = append(run, plotter.XY{X: pt.Elapsed.Seconds(), Y: pt.Value})
	}
	if err := flush(); err != nil {
		return err
	}

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
