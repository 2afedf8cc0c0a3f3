// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package ch9325

import (
	"errors"
	"syscall"
	"time"

	"github.com/ardnew/softusb/host/hal"
	"github.com/ardnew/softusb/host/hal/linux"
	"github.com/ardnew/softusb/pkg"
)

// newPlatformHAL creates the usbfs host controller
func newPlatformHAL(timeout time.Duration) (hal.HostHAL, error) {
	h := linux.NewHostHAL()
	h.SetTransferTimeout(uint32(timeout.Milliseconds()))
	return h, nil
}

// isTimeout reports whether err is a usbfs transfer timeout
func isTimeout(err error) bool {
	return errors.Is(err, syscall.ETIMEDOUT) || errors.Is(err, pkg.ErrTimeout)
}
