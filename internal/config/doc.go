// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the velarium YAML configuration.
//
// The file describes how to reach the bus (TCP gateway, serial adapter or
// WebSocket bridge), the transaction policy, the polling cadence and the
// motors on the bus:
//
//	gateway:
//	  transport: tcp
//	  host: 192.168.1.50
//	  port: 502
//	engine:
//	  attempts: 3
//	  timeout: 5s
//	poll:
//	  interval: 10s
//	devices:
//	  - name: living room
//	    address_low: 0x02
//	    address_high: 0xFE
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/velarium/config.yaml or $HOME/.config/velarium/config.yaml
//   - macOS: $HOME/.config/velarium/config.yaml
//   - Windows: %LOCALAPPDATA%\velarium\config.yaml
//
// Passwords are never stored; the CLI reads them from VELARIUM_PASSWORD or
// prompts for them.
package config
