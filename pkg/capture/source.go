// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture runs the acquisition loop: it polls a packet source,
// reassembles frames, decodes them and hands each sample to a consumer.
package capture

import (
	"context"

	"github.com/Thermoquad/dmmstat/pkg/ch9325"
)

// Source delivers adapter packets one at a time. ReadPacket blocks for at
// most the source's read timeout and reports it as ch9325.ErrReadTimeout.
// ch9325.ErrDeviceLost ends a capture.
type Source interface {
	ReadPacket(ctx context.Context) (ch9325.Packet, error)
	Close() error
}

var _ Source = (*ch9325.Device)(nil)
