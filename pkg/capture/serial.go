// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/dmmstat/pkg/ch9325"
	"go.bug.st/serial"
)

// SerialSource reads the meter through a plain serial cable. Every received
// byte is presented as a data-present packet, so the same reassembler
// serves both transports.
type SerialSource struct {
	port    serial.Port
	buf     []byte
	pending []byte
}

// OpenSerial opens portName at baudRate 8N1 with the given read timeout
func OpenSerial(portName string, baudRate int, timeout time.Duration) (*SerialSource, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open serial port %s: %v", ch9325.ErrDeviceUnavailable, portName, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: failed to set read timeout on %s: %v", ch9325.ErrDeviceUnavailable, portName, err)
	}

	return NewSerialSource(port), nil
}

// NewSerialSource wraps an already open port
func NewSerialSource(port serial.Port) *SerialSource {
	return &SerialSource{
		port: port,
		buf:  make([]byte, 64),
	}
}

// ReadPacket returns the next received byte as a packet
func (s *SerialSource) ReadPacket(ctx context.Context) (ch9325.Packet, error) {
	if len(s.pending) > 0 {
		b := s.pending[0]
		s.pending = s.pending[1:]
		return ch9325.DataPacket(b), nil
	}
	if err := ctx.Err(); err != nil {
		return ch9325.Packet{}, err
	}

	n, err := s.port.Read(s.buf)
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
			return ch9325.Packet{}, ch9325.ErrClosed
		}
		return ch9325.Packet{}, fmt.Errorf("%w: %v", ch9325.ErrDeviceLost, err)
	}
	if n == 0 {
		return ch9325.Packet{}, ch9325.ErrReadTimeout
	}

	s.pending = s.buf[1:n]
	return ch9325.DataPacket(s.buf[0]), nil
}

// Close closes the port
func (s *SerialSource) Close() error {
	return s.port.Close()
}
