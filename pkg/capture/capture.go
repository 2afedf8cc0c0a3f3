// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/ch9325"
	"github.com/Thermoquad/dmmstat/pkg/fs9922"
	"github.com/sirupsen/logrus"
)

// DefaultMaxConsecutiveResyncs is the resync streak that raises a limit event
const DefaultMaxConsecutiveResyncs = 1000

// Config configures a Capture
type Config struct {
	Logger logrus.FieldLogger

	// MaxConsecutiveResyncs is the resync streak after which ResyncLimit is
	// reported. Capture keeps running. Zero selects the default, a negative
	// value disables the event.
	MaxConsecutiveResyncs int

	// Observers receive loop events
	Observers Observers

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Capture drives the polling loop: read a packet, reassemble, decode and
// hand each frame to the consumer
type Capture struct {
	src      Source
	consumer Consumer
	cfg      Config
	log      logrus.FieldLogger
	re       *ch9325.Reassembler

	stopped atomic.Bool

	mu    sync.Mutex
	stats *Statistics
}

// New creates a capture reading from src. The source is not closed by Run.
func New(src Source, consumer Consumer, cfg Config) *Capture {
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	switch {
	case cfg.MaxConsecutiveResyncs == 0:
		cfg.MaxConsecutiveResyncs = DefaultMaxConsecutiveResyncs
	case cfg.MaxConsecutiveResyncs < 0:
		cfg.MaxConsecutiveResyncs = 0
	}
	if consumer == nil {
		consumer = Consumers(nil)
	}

	c := &Capture{
		src:      src,
		consumer: consumer,
		cfg:      cfg,
		log:      cfg.Logger.WithField("component", "capture"),
		stats:    &Statistics{Anomalies: map[fs9922.AnomalyType]uint64{}, clock: cfg.Clock},
	}
	c.re = ch9325.NewReassembler(cfg.MaxConsecutiveResyncs, c.onResyncLimit)
	return c
}

// Stop requests the loop to end after the current iteration. Safe to call
// from any goroutine, including a consumer.
func (c *Capture) Stop() {
	c.stopped.Store(true)
}

// Stopped reports whether Stop has been called
func (c *Capture) Stopped() bool {
	return c.stopped.Load()
}

// Statistics returns a snapshot of the capture counters
func (c *Capture) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats.Clone()
	s.CalculateRates()
	return s
}

// Run polls the source until Stop is called, a consumer returns ErrStop,
// ctx is done, the device is lost or a consumer fails. The first three
// return nil.
func (c *Capture) Run(ctx context.Context) error {
	start := c.cfg.Clock()
	c.mu.Lock()
	c.stats.StartTime = start
	c.mu.Unlock()

	c.log.Info("capture started")
	defer c.log.Info("capture stopped")

	for !c.stopped.Load() {
		if ctx.Err() != nil {
			return nil
		}

		p, err := c.src.ReadPacket(ctx)
		if err != nil {
			if done, err := c.handleReadError(ctx, err); done {
				return err
			}
			continue
		}

		c.mu.Lock()
		c.stats.RecordPacket(p)
		c.mu.Unlock()
		c.cfg.Observers.PacketReceived(p)

		before := c.re.Stats().Resyncs
		frame, ok := c.re.Feed(p)
		if n := c.re.Stats().Resyncs - before; n > 0 {
			c.mu.Lock()
			c.stats.Resyncs += n
			c.mu.Unlock()
			for range n {
				c.cfg.Observers.Resync()
			}
		}
		if !ok {
			continue
		}

		if err := c.deliver(start, frame); err != nil {
			return err
		}
	}
	return nil
}

func (c *Capture) deliver(start time.Time, frame fs9922.Frame) error {
	now := c.cfg.Clock()
	anomalies := fs9922.Validate(frame)

	c.mu.Lock()
	c.stats.recordFrameAt(now, anomalies)
	seq := c.stats.Frames
	c.mu.Unlock()

	s := Sample{
		Seq:         seq,
		Time:        now,
		Elapsed:     now.Sub(start),
		Frame:       frame,
		Measurement: fs9922.Decode(frame),
		Anomalies:   anomalies,
	}

	if len(anomalies) > 0 {
		c.log.WithFields(logrus.Fields{
			"seq":       seq,
			"frame":     fs9922.FormatHex(frame.Bytes()),
			"anomalies": fs9922.FormatAnomalies(anomalies),
		}).Debug("frame anomalies")
	}

	c.cfg.Observers.FrameDecoded(s)
	err := c.consumer.Consume(s)
	switch {
	case errors.Is(err, ErrStop):
		c.Stop()
	case err != nil:
		return fmt.Errorf("consumer failed at frame %d: %w", seq, err)
	}
	return nil
}

// handleReadError classifies a failed read. done reports whether the loop
// must end, with err as its result.
func (c *Capture) handleReadError(ctx context.Context, readErr error) (done bool, err error) {
	switch {
	case ctx.Err() != nil, errors.Is(readErr, context.Canceled), errors.Is(readErr, context.DeadlineExceeded):
		return true, nil
	case errors.Is(readErr, ch9325.ErrReadTimeout):
		c.mu.Lock()
		c.stats.Timeouts++
		c.mu.Unlock()
		c.cfg.Observers.Timeout()
		return false, nil
	case errors.Is(readErr, ch9325.ErrDeviceLost), errors.Is(readErr, ch9325.ErrClosed):
		c.log.WithError(readErr).Error("device lost")
		return true, readErr
	default:
		c.mu.Lock()
		c.stats.RecordTransportError(readErr)
		c.mu.Unlock()
		c.cfg.Observers.TransportError(readErr)
		c.log.WithError(readErr).Warn("read failed")
		return false, nil
	}
}

func (c *Capture) onResyncLimit(streak int) {
	c.mu.Lock()
	c.stats.ResyncLimitEvents++
	c.mu.Unlock()
	c.log.WithField("streak", streak).Warn("no valid frame after consecutive resyncs")
	c.cfg.Observers.ResyncLimit(streak)
}
