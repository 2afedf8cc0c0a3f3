// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"errors"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/fs9922"
)

// Sample is one decoded frame with its capture context
type Sample struct {
	Seq         uint64 // 1-based frame number
	Time        time.Time
	Elapsed     time.Duration // since the capture started
	Frame       fs9922.Frame
	Measurement fs9922.Measurement
	Anomalies   []fs9922.ValidationError
}

// ErrStop may be returned by a consumer to end the capture cleanly after
// the current sample
var ErrStop = errors.New("capture: stop requested")

// Consumer receives every sample synchronously, in arrival order. A slow
// consumer slows packet polling. Returning an error other than ErrStop
// ends the capture with that error.
type Consumer interface {
	Consume(s Sample) error
}

// ConsumerFunc adapts a function to Consumer
type ConsumerFunc func(s Sample) error

// Consume calls f(s)
func (f ConsumerFunc) Consume(s Sample) error {
	return f(s)
}

// Consumers fans a sample out to every element in order. ErrStop from one
// element still lets the rest see the sample; any other error returns
// immediately.
type Consumers []Consumer

// Consume implements Consumer
func (c Consumers) Consume(s Sample) error {
	stop := false
	for _, consumer := range c {
		err := consumer.Consume(s)
		switch {
		case errors.Is(err, ErrStop):
			stop = true
		case err != nil:
			return err
		}
	}
	if stop {
		return ErrStop
	}
	return nil
}

// StopAfterFrames ends the capture once n frames have been delivered.
// n of zero never stops.
func StopAfterFrames(n uint64) Consumer {
	return ConsumerFunc(func(s Sample) error {
		if n > 0 && s.Seq >= n {
			return ErrStop
		}
		return nil
	})
}

// StopAfterDuration ends the capture at the first frame received d or more
// after the start. d of zero never stops.
func StopAfterDuration(d time.Duration) Consumer {
	return ConsumerFunc(func(s Sample) error {
		if d > 0 && s.Elapsed >= d {
			return ErrStop
		}
		return nil
	})
}
