// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ch9325

import "github.com/Thermoquad/dmmstat/pkg/fs9922"

// frameBuffer is a fixed 14-byte accumulator. n is always in [0, FrameSize].
type frameBuffer struct {
	data [fs9922.FrameSize]byte
	n    int
}

// append stores v at the fill cursor. It returns false, leaving the buffer
// unchanged, when the buffer is already full.
func (b *frameBuffer) append(v byte) bool {
	if b.n >= len(b.data) {
		return false
	}
	b.data[b.n] = v
	b.n++
	return true
}

func (b *frameBuffer) full() bool {
	return b.n == len(b.data)
}

// shift drops the oldest byte
func (b *frameBuffer) shift() {
	if b.n == 0 {
		return
	}
	copy(b.data[:], b.data[1:b.n])
	b.n--
	b.data[b.n] = 0
}

func (b *frameBuffer) reset() {
	b.data = [fs9922.FrameSize]byte{}
	b.n = 0
}

func (b *frameBuffer) bytes() []byte {
	return b.data[:b.n]
}
