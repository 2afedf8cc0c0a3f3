// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ch9325

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ardnew/softusb/host/hal"
	"github.com/ardnew/softusb/pkg"
	"github.com/sirupsen/logrus"
)

// Transport errors
var (
	// ErrDeviceUnavailable means the adapter could not be found, opened,
	// claimed or configured. Capture never starts.
	ErrDeviceUnavailable = errors.New("ch9325: device unavailable")

	// ErrReadTimeout means no packet arrived within the transfer timeout
	ErrReadTimeout = errors.New("ch9325: read timeout")

	// ErrDeviceLost means the adapter disappeared while open
	ErrDeviceLost = errors.New("ch9325: device lost")

	// ErrTransfer wraps any other interrupt transfer failure
	ErrTransfer = errors.New("ch9325: transfer failed")

	// ErrClosed is returned by reads on a closed device
	ErrClosed = errors.New("ch9325: device closed")
)

// HALFactory creates the USB host controller abstraction
type HALFactory func(timeout time.Duration) (hal.HostHAL, error)

// Host is a reference-counted USB host context. The underlying HAL is
// created by the first Open and torn down when the last Device closes.
// The HAL runs on the host's own context, never on a caller's.
type Host struct {
	mu      sync.Mutex
	factory HALFactory
	timeout time.Duration
	hal     hal.HostHAL
	cancel  context.CancelFunc
	refs    int
	ports   []int
}

// NewHost returns a host context using factory to create the HAL
func NewHost(factory HALFactory) *Host {
	return &Host{factory: factory, timeout: DefaultTimeout}
}

// DefaultHost is the process-wide host context used by Open
var DefaultHost = NewHost(newPlatformHAL)

// SetTransferTimeout sets the timeout for HALs created after this call
func (h *Host) SetTransferTimeout(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timeout = d
}

// Refs returns the number of open devices sharing the context
func (h *Host) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

func (h *Host) acquire() (hal.HostHAL, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refs == 0 {
		impl, err := h.factory(h.timeout)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithCancel(context.Background())
		if err := impl.Init(ctx); err != nil {
			cancel()
			impl.Close()
			return nil, fmt.Errorf("failed to initialize USB host: %w", err)
		}
		if err := impl.Start(); err != nil {
			cancel()
			impl.Close()
			return nil, fmt.Errorf("failed to start USB host: %w", err)
		}
		h.hal = impl
		h.cancel = cancel
		h.ports = nil
	}
	h.refs++
	return h.hal, nil
}

func (h *Host) release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refs == 0 {
		return nil
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}

	impl, cancel := h.hal, h.cancel
	h.hal, h.cancel = nil, nil
	h.ports = nil
	stopErr := impl.Stop()
	closeErr := impl.Close()
	cancel()
	return errors.Join(stopErr, closeErr)
}

// knownPorts returns the ports announced so far
func (h *Host) knownPorts() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.ports)
}

func (h *Host) addPort(port int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !slices.Contains(h.ports, port) {
		h.ports = append(h.ports, port)
	}
}

// Options configures Open
type Options struct {
	VendorID         uint16
	ProductID        uint16
	BaudRate         uint32
	DiscoveryTimeout time.Duration
	Logger           logrus.FieldLogger
}

// DefaultOptions returns options for a CH9325 at 2400 baud
func DefaultOptions() Options {
	return Options{
		VendorID:         VendorID,
		ProductID:        ProductID,
		BaudRate:         DefaultBaudRate,
		DiscoveryTimeout: DefaultDiscoveryTimeout,
		Logger:           logrus.StandardLogger(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.VendorID == 0 {
		o.VendorID = d.VendorID
	}
	if o.ProductID == 0 {
		o.ProductID = d.ProductID
	}
	if o.BaudRate == 0 {
		o.BaudRate = d.BaudRate
	}
	if o.DiscoveryTimeout <= 0 {
		o.DiscoveryTimeout = d.DiscoveryTimeout
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

// Device is an open, configured CH9325 adapter
type Device struct {
	host *Host
	hal  hal.HostHAL
	addr hal.DeviceAddress
	port int
	log  logrus.FieldLogger

	mu     sync.Mutex
	closed bool
}

// Open finds, claims and configures a CH9325 using DefaultHost
func Open(ctx context.Context, opts Options) (*Device, error) {
	return DefaultHost.Open(ctx, opts)
}

// Open finds, claims and configures a CH9325. All failures wrap
// ErrDeviceUnavailable. ctx bounds discovery and configuration only.
func (h *Host) Open(ctx context.Context, opts Options) (*Device, error) {
	opts = opts.withDefaults()

	impl, err := h.acquire()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	port, err := h.discover(ctx, impl, opts)
	if err != nil {
		h.release()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	d := &Device{
		host: h,
		hal:  impl,
		addr: hal.DeviceAddress(port),
		port: port,
		log:  opts.Logger.WithField("port", port),
	}

	if err := impl.ClaimInterface(d.addr, Interface); err != nil {
		h.release()
		return nil, fmt.Errorf("%w: claiming interface %d failed: %v", ErrDeviceUnavailable, Interface, err)
	}

	if err := d.configure(ctx, opts.BaudRate); err != nil {
		impl.ReleaseInterface(d.addr, Interface)
		h.release()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	d.log.WithFields(logrus.Fields{
		"vid":  fmt.Sprintf("%04x", opts.VendorID),
		"pid":  fmt.Sprintf("%04x", opts.ProductID),
		"baud": opts.BaudRate,
	}).Info("CH9325 adapter opened")
	return d, nil
}

// discover returns the port of the first device matching opts. Ports seen
// by earlier calls are checked before waiting for new announcements.
func (h *Host) discover(ctx context.Context, impl hal.HostHAL, opts Options) (int, error) {
	for _, port := range h.knownPorts() {
		if matchDevice(ctx, impl, port, opts) {
			return port, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.DiscoveryTimeout)
	defer cancel()

	for {
		port, err := impl.WaitForConnection(ctx)
		if err != nil {
			return 0, fmt.Errorf("no device %04x:%04x found", opts.VendorID, opts.ProductID)
		}
		h.addPort(port)
		if matchDevice(ctx, impl, port, opts) {
			return port, nil
		}
	}
}

// matchDevice reads the device descriptor on port and compares VID/PID
func matchDevice(ctx context.Context, impl hal.HostHAL, port int, opts Options) bool {
	setup := &hal.SetupPacket{
		RequestType: 0x80,   // device to host, standard, device
		Request:     0x06,   // GET_DESCRIPTOR
		Value:       0x0100, // device descriptor
		Index:       0,
		Length:      18,
	}

	var desc [18]byte
	n, err := impl.ControlTransfer(ctx, hal.DeviceAddress(port), setup, desc[:])
	if err != nil || n < 12 {
		opts.Logger.WithField("port", port).WithError(err).Debug("skipping port, descriptor unreadable")
		return false
	}

	vid := uint16(desc[8]) | uint16(desc[9])<<8
	pid := uint16(desc[10]) | uint16(desc[11])<<8
	return vid == opts.VendorID && pid == opts.ProductID
}

// configure sends the SET_REPORT that sets the UART baud rate
func (d *Device) configure(ctx context.Context, baud uint32) error {
	report := ConfigReport(baud)
	setup := &hal.SetupPacket{
		RequestType: reportRequestType,
		Request:     reportRequest,
		Value:       reportValue,
		Index:       reportIndex,
		Length:      uint16(len(report)),
	}
	n, err := d.hal.ControlTransfer(ctx, d.addr, setup, report)
	if err != nil {
		return fmt.Errorf("sending SET_REPORT request failed: %w", err)
	}
	if n != len(report) {
		return fmt.Errorf("SET_REPORT sent %d of %d bytes", n, len(report))
	}
	return nil
}

// Port returns the root hub port of the adapter
func (d *Device) Port() int {
	return d.port
}

// ReadPacket performs one interrupt transfer. Errors are ErrReadTimeout,
// ErrDeviceLost, ErrPacketLength or ErrTransfer.
func (d *Device) ReadPacket(ctx context.Context) (Packet, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return Packet{}, ErrClosed
	}

	var buf [PacketSize]byte
	n, err := d.hal.InterruptTransfer(ctx, d.addr, EndpointIn, buf[:])
	if err != nil {
		switch {
		case isTimeout(err):
			return Packet{}, ErrReadTimeout
		case errors.Is(err, pkg.ErrNoDevice):
			return Packet{}, fmt.Errorf("%w: %v", ErrDeviceLost, err)
		case ctx.Err() != nil:
			return Packet{}, ctx.Err()
		default:
			return Packet{}, fmt.Errorf("%w: %v", ErrTransfer, err)
		}
	}
	return ParsePacket(buf[:n])
}

// Close releases the interface and drops the host reference.
// Close is idempotent.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	relErr := d.hal.ReleaseInterface(d.addr, Interface)
	if errors.Is(relErr, pkg.ErrNoDevice) {
		relErr = nil
	}
	d.log.Debug("CH9325 adapter closed")
	return errors.Join(relErr, d.host.release())
}

// SetUSBLogLevel maps a logrus level onto the USB stack's slog level
func SetUSBLogLevel(level logrus.Level) {
	switch {
	case level >= logrus.DebugLevel:
		pkg.SetLogLevel(slog.LevelDebug)
	case level >= logrus.InfoLevel:
		pkg.SetLogLevel(slog.LevelInfo)
	case level >= logrus.WarnLevel:
		pkg.SetLogLevel(slog.LevelWarn)
	default:
		pkg.SetLogLevel(slog.LevelError)
	}
}
