// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/ch9325"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
)

// SimulatedConfig describes the synthetic signal produced by SimulatedSource
type SimulatedConfig struct {
	Interval  time.Duration // time between frames, zero means no pacing
	Offset    float64       // displayed value at phase zero
	Amplitude float64
	Period    int // frames per sine cycle
	Unit      fs9922.Unit
	Prefix    fs9922.Prefix
	Power     fs9922.PowerMode

	// NoiseEvery inserts one garbage byte ahead of every n-th frame,
	// forcing the reassembler to resync. Zero disables noise.
	NoiseEvery int

	Seed int64
}

// DefaultSimulatedConfig returns a 5 V DC sine sampled at the meter's usual rate
func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{
		Interval:  500 * time.Millisecond,
		Offset:    5,
		Amplitude: 1,
		Period:    40,
		Unit:      fs9922.UnitVolt,
		Power:     fs9922.PowerDC,
	}
}

// SimulatedSource produces adapter packets for a synthetic meter. Data bytes
// are interleaved with idle packets the way the adapter reports them.
type SimulatedSource struct {
	cfg SimulatedConfig
	rng *rand.Rand

	mu     sync.Mutex
	queue  []ch9325.Packet
	n      int
	next   time.Time
	closed bool
}

// NewSimulatedSource creates a simulated source
func NewSimulatedSource(cfg SimulatedConfig) *SimulatedSource {
	if cfg.Period <= 0 {
		cfg.Period = 1
	}
	return &SimulatedSource{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Frames returns the number of frames generated so far
func (s *SimulatedSource) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// ReadPacket returns the next packet, waiting for the next frame slot when
// the queue is empty
func (s *SimulatedSource) ReadPacket(ctx context.Context) (ch9325.Packet, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ch9325.Packet{}, ch9325.ErrClosed
	}
	if len(s.queue) == 0 {
		wait := time.Until(s.next)
		s.mu.Unlock()
		if s.cfg.Interval > 0 && wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ch9325.Packet{}, ctx.Err()
			case <-timer.C:
			}
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ch9325.Packet{}, ch9325.ErrClosed
		}
		if len(s.queue) == 0 {
			s.enqueueFrame()
		}
	}
	p := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()
	return p, nil
}

// Close ends the stream; later reads return ch9325.ErrClosed
func (s *SimulatedSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	return nil
}

// Frame returns the i-th generated frame (0-based) without consuming it
func (s *SimulatedSource) Frame(i int) fs9922.Frame {
	phase := 2 * math.Pi * float64(i%s.cfg.Period) / float64(s.cfg.Period)
	v := s.cfg.Offset + s.cfg.Amplitude*math.Sin(phase)

	b := fs9922.NewFrameBuilder().
		Value(v).
		Unit(s.cfg.Unit).
		Prefix(s.cfg.Prefix).
		Power(s.cfg.Power).
		Autorange(true)
	bar := int(math.Round(math.Abs(v)))
	if v < 0 {
		bar = -bar
	}
	return b.Bargraph(max(-fs9922.BargraphMax, min(fs9922.BargraphMax, bar))).MustBuild()
}

// enqueueFrame must be called with mu held
func (s *SimulatedSource) enqueueFrame() {
	if s.cfg.NoiseEvery > 0 && s.n > 0 && s.n%s.cfg.NoiseEvery == 0 {
		s.queue = append(s.queue, ch9325.DataPacket(byte(s.rng.Intn(256))))
	}
	for _, b := range s.Frame(s.n).Raw() {
		s.queue = append(s.queue, ch9325.DataPacket(b))
		if s.rng.Intn(4) == 0 {
			s.queue = append(s.queue, ch9325.IdlePacket())
		}
	}
	s.n++
	if s.cfg.Interval > 0 {
		now := time.Now()
		if s.next.Before(now) {
			s.next = now
		}
		s.next = s.next.Add(s.cfg.Interval)
	}
}
