// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Velarium - Dooya RS485 Curtain Motor Control
//
// A CLI tool for controlling, monitoring and addressing Dooya RS485 curtain
// motors through a TCP gateway, serial adapter or WebSocket bridge.

package main

import (
	"os"

	"github.com/Thermoquad/velarium/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
