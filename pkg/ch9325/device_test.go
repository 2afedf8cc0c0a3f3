// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ch9325

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ardnew/softusb/host/hal"
	"github.com/ardnew/softusb/pkg"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHAL is an in-memory hal.HostHAL with one device per port
type fakeHAL struct {
	mu sync.Mutex

	descriptors map[int][18]byte
	connectCh   chan int

	inits, starts, stops, closes int
	initCtx                      context.Context
	claimed                      map[hal.DeviceAddress]bool
	controls                     []hal.SetupPacket
	controlData                  [][]byte
	configErr                    error
	claimErr                     error

	reads   []fakeRead
	readPos int
}

type fakeRead struct {
	data []byte
	err  error
}

func newFakeHAL(devices map[int][2]uint16) *fakeHAL {
	f := &fakeHAL{
		descriptors: map[int][18]byte{},
		connectCh:   make(chan int, len(devices)),
		claimed:     map[hal.DeviceAddress]bool{},
	}
	for port, id := range devices {
		var d [18]byte
		d[0], d[1] = 18, 0x01
		d[8], d[9] = byte(id[0]), byte(id[0]>>8)
		d[10], d[11] = byte(id[1]), byte(id[1]>>8)
		f.descriptors[port] = d
	}
	for port := 1; port <= 8; port++ {
		if _, ok := devices[port]; ok {
			f.connectCh <- port
		}
	}
	return f
}

func (f *fakeHAL) Init(ctx context.Context) error {
	f.inits++
	f.initCtx = ctx
	return nil
}

func (f *fakeHAL) Start() error                   { f.starts++; return nil }
func (f *fakeHAL) Stop() error                    { f.stops++; return nil }
func (f *fakeHAL) Close() error                   { f.closes++; return nil }
func (f *fakeHAL) NumPorts() int                  { return len(f.descriptors) }
func (f *fakeHAL) PortSpeed(port int) hal.Speed   { return hal.SpeedFull }
func (f *fakeHAL) ResetPort(port int) error       { return nil }

func (f *fakeHAL) GetPortStatus(port int) (hal.PortStatus, error) {
	_, ok := f.descriptors[port]
	return hal.PortStatus{Connected: ok, Enabled: ok, Speed: hal.SpeedFull}, nil
}

func (f *fakeHAL) EnablePort(port int, enable bool) error { return nil }

func (f *fakeHAL) ControlTransfer(ctx context.Context, addr hal.DeviceAddress, setup *hal.SetupPacket, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	desc, ok := f.descriptors[int(addr)]
	if !ok {
		return 0, pkg.ErrNoDevice
	}
	if setup.Request == 0x06 {
		return copy(data, desc[:]), nil
	}
	f.controls = append(f.controls, *setup)
	f.controlData = append(f.controlData, append([]byte(nil), data...))
	if f.configErr != nil {
		return 0, f.configErr
	}
	return len(data), nil
}

func (f *fakeHAL) BulkTransfer(ctx context.Context, addr hal.DeviceAddress, endpoint uint8, data []byte) (int, error) {
	return 0, pkg.ErrNotSupported
}

func (f *fakeHAL) InterruptTransfer(ctx context.Context, addr hal.DeviceAddress, endpoint uint8, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if endpoint != EndpointIn {
		return 0, pkg.ErrInvalidEndpoint
	}
	if f.readPos >= len(f.reads) {
		return 0, pkg.ErrTimeout
	}
	r := f.reads[f.readPos]
	f.readPos++
	return copy(data, r.data), r.err
}

func (f *fakeHAL) IsochronousTransfer(ctx context.Context, addr hal.DeviceAddress, endpoint uint8, data []byte) (int, error) {
	return 0, pkg.ErrNotSupported
}

func (f *fakeHAL) SetDeviceAddress(ctx context.Context, newAddr hal.DeviceAddress) error { return nil }

func (f *fakeHAL) ClaimInterface(addr hal.DeviceAddress, iface uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	f.claimed[addr] = true
	return nil
}

func (f *fakeHAL) ReleaseInterface(addr hal.DeviceAddress, iface uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.claimed, addr)
	return nil
}

func (f *fakeHAL) WaitForConnection(ctx context.Context) (int, error) {
	select {
	case port := <-f.connectCh:
		return port, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f *fakeHAL) WaitForDisconnection(ctx context.Context) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

var _ hal.HostHAL = (*fakeHAL)(nil)

func testHost(f *fakeHAL) *Host {
	return NewHost(func(time.Duration) (hal.HostHAL, error) { return f, nil })
}

func testOptions() Options {
	logger, _ := test.NewNullLogger()
	opts := DefaultOptions()
	opts.DiscoveryTimeout = 50 * time.Millisecond
	opts.Logger = logger
	return opts
}

func TestOpen_DiscoversAndConfigures(t *testing.T) {
	fake := newFakeHAL(map[int][2]uint16{
		1: {0x046D, 0xC52B},
		3: {VendorID, ProductID},
	})
	host := testHost(fake)

	dev, err := host.Open(context.Background(), testOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, dev.Port())
	assert.True(t, fake.claimed[hal.DeviceAddress(3)])
	require.Len(t, fake.controls, 1)
	assert.Equal(t, hal.SetupPacket{RequestType: 0x21, Request: 0x09, Value: 0x0300, Index: 0, Length: 5}, fake.controls[0])
	assert.Equal(t, []byte{0x60, 0x09, 0x00, 0x00, 0x03}, fake.controlData[0])
	assert.Equal(t, 1, host.Refs())

	require.NoError(t, dev.Close())
	assert.Equal(t, 0, host.Refs())
	assert.Equal(t, 1, fake.stops)
	assert.Equal(t, 1, fake.closes)
	assert.False(t, fake.claimed[hal.DeviceAddress(3)])

	// Close is idempotent
	require.NoError(t, dev.Close())
	assert.Equal(t, 1, fake.closes)
}

func TestOpen_NoDevice(t *testing.T) {
	fake := newFakeHAL(map[int][2]uint16{2: {0x1234, 0x5678}})
	host := testHost(fake)

	_, err := host.Open(context.Background(), testOptions())
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Equal(t, 0, host.Refs())
	assert.Equal(t, 1, fake.closes)
}

func TestOpen_ClaimAndConfigureFailures(t *testing.T) {
	t.Run("claim", func(t *testing.T) {
		fake := newFakeHAL(map[int][2]uint16{1: {VendorID, ProductID}})
		fake.claimErr = pkg.ErrBusy
		host := testHost(fake)

		_, err := host.Open(context.Background(), testOptions())
		require.ErrorIs(t, err, ErrDeviceUnavailable)
		assert.Equal(t, 0, host.Refs())
	})

	t.Run("configure", func(t *testing.T) {
		fake := newFakeHAL(map[int][2]uint16{1: {VendorID, ProductID}})
		fake.configErr = pkg.ErrStall
		host := testHost(fake)

		_, err := host.Open(context.Background(), testOptions())
		require.ErrorIs(t, err, ErrDeviceUnavailable)
		assert.Contains(t, err.Error(), "SET_REPORT")
		assert.Equal(t, 0, host.Refs())
		assert.Empty(t, fake.claimed)
	})

	t.Run("factory", func(t *testing.T) {
		host := NewHost(func(time.Duration) (hal.HostHAL, error) { return nil, pkg.ErrNotSupported })
		_, err := host.Open(context.Background(), testOptions())
		require.ErrorIs(t, err, ErrDeviceUnavailable)
	})
}

func TestHost_SharedContext(t *testing.T) {
	fake := newFakeHAL(map[int][2]uint16{1: {VendorID, ProductID}})
	host := testHost(fake)
	ctx := context.Background()

	first, err := host.Open(ctx, testOptions())
	require.NoError(t, err)
	// The second open finds the port from the cache, not a new announcement
	second, err := host.Open(ctx, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, host.Refs())
	assert.Equal(t, 1, fake.inits, "HAL initialized once")

	require.NoError(t, first.Close())
	assert.Equal(t, 0, fake.closes, "HAL kept while a device is open")
	require.NoError(t, second.Close())
	assert.Equal(t, 1, fake.closes)
}

func TestHost_OutlivesOpenerContext(t *testing.T) {
	fake := newFakeHAL(map[int][2]uint16{1: {VendorID, ProductID}})
	host := testHost(fake)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	first, err := host.Open(ctx, testOptions())
	require.NoError(t, err)
	cancel()

	require.NotNil(t, fake.initCtx)
	assert.NoError(t, fake.initCtx.Err(), "HAL context outlives the opener")

	second, err := host.Open(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, host.Refs())

	require.NoError(t, first.Close())
	assert.NoError(t, fake.initCtx.Err(), "HAL context kept while a device is open")
	require.NoError(t, second.Close())
	assert.ErrorIs(t, fake.initCtx.Err(), context.Canceled)
}

func TestDevice_ReadPacket(t *testing.T) {
	fake := newFakeHAL(map[int][2]uint16{1: {VendorID, ProductID}})
	fake.reads = []fakeRead{
		{data: []byte{0xF1, '+', 0, 0, 0, 0, 0, 0}},
		{data: []byte{0xF0, 0, 0, 0, 0, 0, 0, 0}},
		{data: []byte{0xF1, '1', 0}},
		{err: errors.New("EPROTO")},
		{err: pkg.ErrNoDevice},
	}
	host := testHost(fake)
	dev, err := host.Open(context.Background(), testOptions())
	require.NoError(t, err)
	defer dev.Close()

	ctx := context.Background()

	p, err := dev.ReadPacket(ctx)
	require.NoError(t, err)
	b, ok := p.Payload()
	assert.True(t, ok)
	assert.Equal(t, byte('+'), b)

	p, err = dev.ReadPacket(ctx)
	require.NoError(t, err)
	assert.False(t, p.HasData())

	_, err = dev.ReadPacket(ctx)
	assert.ErrorIs(t, err, ErrPacketLength)

	_, err = dev.ReadPacket(ctx)
	assert.ErrorIs(t, err, ErrTransfer)

	_, err = dev.ReadPacket(ctx)
	assert.ErrorIs(t, err, ErrDeviceLost)

	_, err = dev.ReadPacket(ctx)
	assert.ErrorIs(t, err, ErrReadTimeout)
}

func TestDevice_ReadAfterClose(t *testing.T) {
	fake := newFakeHAL(map[int][2]uint16{1: {VendorID, ProductID}})
	dev, err := testHost(fake).Open(context.Background(), testOptions())
	require.NoError(t, err)
	require.NoError(t, dev.Close())

	_, err = dev.ReadPacket(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConfigReport(t *testing.T) {
	assert.Equal(t, []byte{0x60, 0x09, 0x00, 0x00, 0x03}, ConfigReport(2400))
	assert.Equal(t, []byte{0x80, 0x25, 0x00, 0x00, 0x03}, ConfigReport(9600))
}

func TestParsePacket(t *testing.T) {
	_, err := ParsePacket(make([]byte, 7))
	assert.ErrorIs(t, err, ErrPacketLength)

	p, err := ParsePacket([]byte{0xF1, 0x0D, 1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, byte(MarkerData), p.Marker())
	b, ok := p.Payload()
	assert.True(t, ok)
	assert.Equal(t, byte(0x0D), b)
}

func TestSetUSBLogLevel(t *testing.T) {
	defer SetUSBLogLevel(logrus.WarnLevel)

	SetUSBLogLevel(logrus.DebugLevel)
	assert.Equal(t, "DEBUG", pkg.GetLogLevel().String())
	SetUSBLogLevel(logrus.ErrorLevel)
	assert.Equal(t, "ERROR", pkg.GetLogLevel().String())
}
