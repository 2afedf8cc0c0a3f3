// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/ch9325"
	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

type MockSerialPort struct {
	err    error
	chunks [][]byte
	closed bool
}

// Read returns one queued chunk per call, then (0, nil) like a read timeout
func (m *MockSerialPort) Read(p []byte) (n int, err error) {
	if m.err != nil {
		return 0, m.err
	}
	if len(m.chunks) == 0 {
		return 0, nil
	}
	n = copy(p, m.chunks[0])
	m.chunks = m.chunks[1:]
	return n, nil
}

func (m *MockSerialPort) SetMode(mode *serial.Mode) error                      { return nil }
func (m *MockSerialPort) Write(p []byte) (n int, err error)                    { return 0, nil }
func (m *MockSerialPort) Drain() error                                         { return nil }
func (m *MockSerialPort) ResetInputBuffer() error                              { return nil }
func (m *MockSerialPort) ResetOutputBuffer() error                             { return nil }
func (m *MockSerialPort) SetDTR(dtr bool) error                                { return nil }
func (m *MockSerialPort) SetRTS(rts bool) error                                { return nil }
func (m *MockSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }
func (m *MockSerialPort) SetReadTimeout(t time.Duration) error                 { return nil }
func (m *MockSerialPort) Break(time.Duration) error                            { return nil }

func (m *MockSerialPort) Close() error {
	m.closed = true
	return nil
}

func TestSerialSourceSplitsReadsIntoPackets(t *testing.T) {
	port := &MockSerialPort{chunks: [][]byte{{0x01, 0x02, 0x03}, {0x04}}}
	src := NewSerialSource(port)
	ctx := context.Background()

	for _, want := range []byte{0x01, 0x02, 0x03, 0x04} {
		p, err := src.ReadPacket(ctx)
		require.NoError(t, err)
		b, ok := p.Payload()
		require.True(t, ok)
		assert.Equal(t, want, b)
	}

	_, err := src.ReadPacket(ctx)
	assert.ErrorIs(t, err, ch9325.ErrReadTimeout)

	require.NoError(t, src.Close())
	assert.True(t, port.closed)
}

func TestSerialSourceReadError(t *testing.T) {
	src := NewSerialSource(&MockSerialPort{err: errors.New("input/output error")})

	_, err := src.ReadPacket(context.Background())
	require.ErrorIs(t, err, ch9325.ErrDeviceLost)
	assert.Contains(t, err.Error(), "input/output error")
}

func TestSerialSourceHonorsContext(t *testing.T) {
	src := NewSerialSource(&MockSerialPort{chunks: [][]byte{{0x01}}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.ReadPacket(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSerialSourceCapture(t *testing.T) {
	a, b := volts(1.5).Bytes(), volts(-8.5).Bytes()
	stream := append([]byte{0xFF, 0x0A}, a...)
	stream = append(stream, b...)
	// deliver in uneven chunks
	port := &MockSerialPort{chunks: [][]byte{stream[:5], stream[5:17], stream[17:]}}

	col := &collector{}
	c := New(NewSerialSource(port), Consumers{col, StopAfterFrames(2)}, Config{})

	require.NoError(t, c.Run(context.Background()))
	require.Len(t, col.samples, 2)
	assert.Equal(t, 1.5, col.samples[0].Measurement.Value())
	assert.Equal(t, -8.5, col.samples[1].Measurement.Value())
	assert.Equal(t, uint64(2), c.Statistics().Resyncs)
}

func TestOpenSerialPTY(t *testing.T) {
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	t.Cleanup(func() { master.Close(); slave.Close() })

	src, err := OpenSerial(slave.Name(), ch9325.DefaultBaudRate, 50*time.Millisecond)
	if err != nil {
		t.Skipf("serial open on pty failed: %v", err)
	}
	t.Cleanup(func() { src.Close() })

	frame := volts(12.34)
	_, err = master.Write(frame.Bytes())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	col := &collector{}
	c := New(src, Consumers{col, StopAfterFrames(1)}, Config{})

	require.NoError(t, c.Run(ctx))
	require.Len(t, col.samples, 1)
	assert.Equal(t, frame, col.samples[0].Frame)
}

func TestOpenSerialMissingPort(t *testing.T) {
	_, err := OpenSerial("/dev/does-not-exist-dmm", 2400, 10*time.Millisecond)
	assert.ErrorIs(t, err, ch9325.ErrDeviceUnavailable)
}
