// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ch9325

import (
	"iter"

	"github.com/Thermoquad/dmmstat/pkg/fs9922"
)

// Reassembler accumulates payload bytes into frames. When a full buffer
// lacks the CR LF terminator it drops the oldest byte and keeps the other
// 13, so alignment recovers one byte at a time.
//
// The zero value is ready to use. A Reassembler is not safe for concurrent use.
type Reassembler struct {
	// MaxConsecutiveResyncs, when positive, fires OnResyncLimit once each
	// time that many resyncs happen in a row without a frame. Accumulation
	// carries on regardless.
	MaxConsecutiveResyncs int
	OnResyncLimit         func(streak int)

	buf    frameBuffer
	streak int
	stats  ReassemblerStats
}

// ReassemblerStats holds running counters
type ReassemblerStats struct {
	IdlePackets       uint64
	DataBytes         uint64
	Frames            uint64
	Resyncs           uint64
	ResyncLimitEvents uint64
}

// NewReassembler returns a Reassembler that reports a resync limit event
// after limit consecutive resyncs (0 disables the limit)
func NewReassembler(limit int, onLimit func(streak int)) *Reassembler {
	return &Reassembler{
		MaxConsecutiveResyncs: limit,
		OnResyncLimit:         onLimit,
	}
}

// Feed processes one adapter packet. Idle packets leave the buffer untouched.
// Returns the completed frame when this packet finished one.
func (r *Reassembler) Feed(p Packet) (fs9922.Frame, bool) {
	b, ok := p.Payload()
	if !ok {
		r.stats.IdlePackets++
		return fs9922.Frame{}, false
	}
	return r.FeedByte(b)
}

// FeedByte processes one payload byte
func (r *Reassembler) FeedByte(b byte) (fs9922.Frame, bool) {
	r.stats.DataBytes++
	r.buf.append(b)
	if !r.buf.full() {
		return fs9922.Frame{}, false
	}

	if fs9922.HasTerminator(r.buf.bytes()) {
		f, err := fs9922.NewFrame(r.buf.bytes())
		r.buf.reset()
		if err == nil {
			r.streak = 0
			r.stats.Frames++
			return f, true
		}
		return fs9922.Frame{}, false
	}

	r.buf.shift()
	r.stats.Resyncs++
	r.streak++
	if r.MaxConsecutiveResyncs > 0 && r.streak == r.MaxConsecutiveResyncs {
		r.stats.ResyncLimitEvents++
		if r.OnResyncLimit != nil {
			r.OnResyncLimit(r.streak)
		}
	}
	return fs9922.Frame{}, false
}

// Len returns the number of buffered bytes
func (r *Reassembler) Len() int {
	return r.buf.n
}

// Pending returns a copy of the buffered bytes
func (r *Reassembler) Pending() []byte {
	out := make([]byte, r.buf.n)
	copy(out, r.buf.bytes())
	return out
}

// Streak returns the number of resyncs since the last emitted frame
func (r *Reassembler) Streak() int {
	return r.streak
}

// Stats returns a snapshot of the counters
func (r *Reassembler) Stats() ReassemblerStats {
	return r.stats
}

// Reset clears the buffer, the streak and all counters
func (r *Reassembler) Reset() {
	r.buf.reset()
	r.streak = 0
	r.stats = ReassemblerStats{}
}

// Frames returns the frames reassembled from packets. Each iteration starts
// from an empty buffer, so the sequence can be ranged over more than once
// when packets can.
func Frames(packets iter.Seq[Packet]) iter.Seq[fs9922.Frame] {
	return func(yield func(fs9922.Frame) bool) {
		var r Reassembler
		for p := range packets {
			if f, ok := r.Feed(p); ok {
				if !yield(f) {
					return
				}
			}
		}
	}
}

// FramesFromBytes is Frames for transports that deliver bare data bytes
func FramesFromBytes(data iter.Seq[byte]) iter.Seq[fs9922.Frame] {
	return func(yield func(fs9922.Frame) bool) {
		var r Reassembler
		for b := range data {
			if f, ok := r.FeedByte(b); ok {
				if !yield(f) {
					return
				}
			}
		}
	}
}
