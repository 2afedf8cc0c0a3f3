// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/ch9325"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
)

// Statistics tracks packet, frame and transport counters
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Packets           uint64
	IdlePackets       uint64
	DataBytes         uint64
	Frames            uint64
	ValidFrames       uint64
	AnomalousFrames   uint64
	Anomalies         map[fs9922.AnomalyType]uint64
	Resyncs           uint64
	ResyncLimitEvents uint64
	Timeouts          uint64
	TransportErrors   uint64
	BadLengthPackets  uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec

	clock func() time.Time
}

// NewStatistics creates a new statistics tracker on the wall clock
func NewStatistics() *Statistics {
	return NewStatisticsWithClock(time.Now)
}

// NewStatisticsWithClock creates a statistics tracker that reads the time
// from clock
func NewStatisticsWithClock(clock func() time.Time) *Statistics {
	if clock == nil {
		clock = time.Now
	}
	now := clock()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		Anomalies:      map[fs9922.AnomalyType]uint64{},
		clock:          clock,
	}
}

func (s *Statistics) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock()
}

// RecordPacket counts one adapter packet
func (s *Statistics) RecordPacket(p ch9325.Packet) {
	s.Packets++
	if p.HasData() {
		s.DataBytes++
	} else {
		s.IdlePackets++
	}
}

// RecordFrame counts one frame and its anomalies
func (s *Statistics) RecordFrame(anomalies []fs9922.ValidationError) {
	s.recordFrameAt(s.now(), anomalies)
}

func (s *Statistics) recordFrameAt(now time.Time, anomalies []fs9922.ValidationError) {
	s.Frames++
	if len(anomalies) == 0 {
		s.ValidFrames++
	} else {
		s.AnomalousFrames++
		if s.Anomalies == nil {
			s.Anomalies = map[fs9922.AnomalyType]uint64{}
		}
		for _, a := range anomalies {
			s.Anomalies[a.Type]++
		}
	}
	s.LastUpdateTime = now
}

// RecordTransportError counts a transient read failure
func (s *Statistics) RecordTransportError(err error) {
	s.TransportErrors++
	if errors.Is(err, ch9325.ErrPacketLength) {
		s.BadLengthPackets++
	}
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := s.now().Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.Frames) / elapsed
		s.ErrorRate = float64(s.TransportErrors+s.AnomalousFrames+s.Resyncs) / elapsed
	}
}

// Clone returns a deep copy
func (s *Statistics) Clone() Statistics {
	c := *s
	c.Anomalies = maps.Clone(s.Anomalies)
	return c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, anomalousPercent float64
	if s.Frames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.Frames)
		anomalousPercent = float64(s.AnomalousFrames) * 100.0 / float64(s.Frames)
	}

	elapsed := s.now().Sub(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Packets:         %8d (%d idle)\n", s.Packets, s.IdlePackets)
	result += fmt.Sprintf("Data Bytes:      %8d\n", s.DataBytes)
	result += fmt.Sprintf("Frames:          %8d\n", s.Frames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.AnomalousFrames > 0 {
		result += fmt.Sprintf("Anomalous:       %8d (%.1f%%)\n", s.AnomalousFrames, anomalousPercent)
		for _, a := range fs9922.AnomalyTypes {
			if n := s.Anomalies[a]; n > 0 {
				result += fmt.Sprintf("  %-16s %5d\n", a.String()+":", n)
			}
		}
	}
	if s.Resyncs > 0 {
		result += fmt.Sprintf("Resyncs:         %8d\n", s.Resyncs)
		if s.ResyncLimitEvents > 0 {
			result += fmt.Sprintf("  Limit Reached:    %5d\n", s.ResyncLimitEvents)
		}
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Read Timeouts:   %8d\n", s.Timeouts)
	}
	if s.TransportErrors > 0 {
		result += fmt.Sprintf("Transport Errors:%8d\n", s.TransportErrors)
		if s.BadLengthPackets > 0 {
			result += fmt.Sprintf("  Bad Length:       %5d\n", s.BadLengthPackets)
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatisticsWithClock(s.clock)
}
