// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/capture"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// TUI model
type model struct {
	connInfo      string
	limits        captureLimits
	showAll       bool
	statsFn       func() capture.Statistics
	stats         capture.Statistics
	last          *capture.Sample
	eventLog      []eventLogEntry
	maxLogEntries int
	bar           progress.Model
	spinner       spinner.Model
	width         int
	height        int
	quitting      bool
	finished      bool
}

// Messages
type tickMsg time.Time
type sampleMsg capture.Sample
type eventMsg struct {
	message string
	isError bool
}
type captureDoneMsg struct {
	err error
}

func initialModel(connInfo string, limits captureLimits, showAll bool, statsFn func() capture.Statistics) model {
	return model{
		connInfo:      connInfo,
		limits:        limits,
		showAll:       showAll,
		statsFn:       statsFn,
		stats:         statsFn(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(fs9922.BargraphColumns),
			progress.WithoutPercentage(),
		),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:   80,
		height:  24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats = m.statsFn()
		return m, tickCmd()

	case spinner.TickMsg:
		if m.last != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sampleMsg:
		s := capture.Sample(msg)
		m.last = &s
		if len(s.Anomalies) > 0 {
			for _, a := range s.Anomalies {
				m.addLogEntry(fmt.Sprintf("Frame %d: %s", s.Seq, a.Error()), true)
			}
		} else if m.showAll {
			m.addLogEntry(fmt.Sprintf("Frame %d: %s", s.Seq, fs9922.FormatMeasurement(s.Measurement)), false)
		}

	case eventMsg:
		m.addLogEntry(msg.message, msg.isError)

	case captureDoneMsg:
		m.finished = true
		m.stats = m.statsFn()
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Capture failed: %v", msg.err), true)
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	if m.finished {
		return "Capture finished.\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	readingStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("DMMSTAT - LIVE CAPTURE"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	// Reading
	if m.last == nil {
		s.WriteString(warningStyle.Render(m.spinner.View() + " Waiting for the first frame..."))
		s.WriteString("\n\n")
	} else {
		last := m.last
		meas := last.Measurement

		reading := strings.Builder{}
		reading.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Time:"), valueStyle.Render(m.limits.timeLine(last.Elapsed)),
			labelStyle.Render("Frame:"), valueStyle.Render(m.limits.frameLine(last.Seq)),
		))
		reading.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render("Value:"), readingStyle.Render(fs9922.FormatValue(meas)),
		))
		status := fs9922.FormatStatus(meas)
		if status == "" {
			status = "-"
		}
		reading.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render("Status:"), valueStyle.Render(status),
		))
		if meas.BargraphVisible() {
			v := meas.Bargraph()
			sign := "+"
			if v < 0 {
				sign, v = "-", -v
			}
			reading.WriteString(fmt.Sprintf("%s %s %s\n",
				labelStyle.Render("Bar:"), sign,
				m.bar.ViewAs(min(float64(v)/fs9922.BargraphColumns, 1)),
			))
		}
		reading.WriteString(fmt.Sprintf("%s %s",
			labelStyle.Render("Raw:"), headerStyle.Render(fs9922.FormatHex(last.Frame.Bytes())),
		))

		s.WriteString(boxStyle.Render(reading.String()))
		s.WriteString("\n\n")
	}

	// Statistics
	st := m.stats
	var validPercent, anomalousPercent float64
	if st.Frames > 0 {
		validPercent = float64(st.ValidFrames) * 100.0 / float64(st.Frames)
		anomalousPercent = float64(st.AnomalousFrames) * 100.0 / float64(st.Frames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", st.Frames)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidFrames, validPercent)),
		labelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.AnomalousFrames, anomalousPercent)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Packets:"), valueStyle.Render(fmt.Sprintf("%d", st.Packets)),
		labelStyle.Render("Idle:"), valueStyle.Render(fmt.Sprintf("%d", st.IdlePackets)),
	))

	if st.Resyncs > 0 || st.Timeouts > 0 || st.TransportErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Resyncs:"), warningStyle.Render(fmt.Sprintf("%d", st.Resyncs)),
			labelStyle.Render("Timeouts:"), warningStyle.Render(fmt.Sprintf("%d", st.Timeouts)),
			labelStyle.Render("Transport Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.TransportErrors)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Frame Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		labelStyle.Render("Error Rate:"), func() string {
			if st.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
			}
			return valueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 20 // Reserve space for header, reading and stats
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

// tuiObserver forwards loop events that deserve a log line
type tuiObserver struct {
	capture.NopObserver
	send func(tea.Msg)
}

func (o tuiObserver) ResyncLimit(streak int) {
	o.send(eventMsg{message: fmt.Sprintf("%d consecutive resyncs without a frame", streak), isError: true})
}

func (o tuiObserver) TransportError(err error) {
	o.send(eventMsg{message: fmt.Sprintf("Transport error: %v", err), isError: true})
}

// tuiLogHook shows warnings and errors in the event log while the alt
// screen owns the terminal
type tuiLogHook struct {
	send func(tea.Msg)
}

func (h tuiLogHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

func (h tuiLogHook) Fire(entry *logrus.Entry) error {
	h.send(eventMsg{message: entry.Message, isError: entry.Level <= logrus.ErrorLevel})
	return nil
}
