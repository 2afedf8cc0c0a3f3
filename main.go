// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// dmmstat - FS9922-DMM3 multimeter capture tool
//
// A CLI tool for capturing, logging and analyzing measurements from
// multimeters read through a CH9325 USB HID adapter.

package main

import (
	"os"

	"github.com/Thermoquad/dmmstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
