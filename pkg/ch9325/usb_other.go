// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package ch9325

import (
	"errors"
	"fmt"
	"time"

	"github.com/ardnew/softusb/host/hal"
	"github.com/ardnew/softusb/pkg"
)

func newPlatformHAL(time.Duration) (hal.HostHAL, error) {
	return nil, fmt.Errorf("USB host access requires Linux usbfs: %w", pkg.ErrNotSupported)
}

func isTimeout(err error) bool {
	return errors.Is(err, pkg.ErrTimeout)
}
