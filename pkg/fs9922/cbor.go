// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fs9922

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Reading is the wire form of a decoded frame, encoded as a CBOR map with
// small integer keys
type Reading struct {
	Seq           uint64   `cbor:"0,keyasint"`
	TimestampMs   int64    `cbor:"1,keyasint"`
	Value         float64  `cbor:"2,keyasint"`
	ValueUnscaled float64  `cbor:"3,keyasint"`
	Overflow      bool     `cbor:"4,keyasint,omitempty"`
	Unit          string   `cbor:"5,keyasint,omitempty"`
	Prefix        string   `cbor:"6,keyasint,omitempty"`
	Power         string   `cbor:"7,keyasint,omitempty"`
	MinMax        string   `cbor:"8,keyasint,omitempty"`
	Status        []string `cbor:"9,keyasint,omitempty"`
	Bargraph      *int     `cbor:"10,keyasint,omitempty"`
	Raw           []byte   `cbor:"11,keyasint"`
}

// NewReading builds the wire form of frame f received at t
func NewReading(seq uint64, t time.Time, f Frame) Reading {
	m := Decode(f)
	r := Reading{
		Seq:           seq,
		TimestampMs:   t.UnixMilli(),
		Value:         m.Value(),
		ValueUnscaled: m.ValueUnscaled(),
		Overflow:      m.Overflow(),
		Unit:          m.Unit().String(),
		Prefix:        m.Prefix().String(),
		Power:         m.Power().String(),
		MinMax:        m.MinMax().String(),
		Status:        m.StatusWords(),
		Raw:           f.Bytes(),
	}
	if m.BargraphVisible() {
		v := m.Bargraph()
		r.Bargraph = &v
	}
	return r
}

// Time returns the reading timestamp
func (r Reading) Time() time.Time {
	return time.UnixMilli(r.TimestampMs)
}

// Frame returns the protocol frame carried by the reading
func (r Reading) Frame() (Frame, error) {
	return NewFrame(r.Raw)
}

// MarshalReading encodes r as CBOR
func MarshalReading(r Reading) ([]byte, error) {
	data, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reading: %w", err)
	}
	return data, nil
}

// UnmarshalReading decodes a CBOR reading
func UnmarshalReading(data []byte) (Reading, error) {
	if len(data) == 0 {
		return Reading{}, fmt.Errorf("empty CBOR payload")
	}
	var r Reading
	if err := cbor.Unmarshal(data, &r); err != nil {
		return Reading{}, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	return r, nil
}
