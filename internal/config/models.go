// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"time"

	"github.com/Thermoquad/velarium/pkg/dooya"
	"gopkg.in/yaml.v3"
)

// Transports
const (
	TransportTCP       = "tcp"
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
)

// Config is the root of the configuration file
type Config struct {
	Gateway  Gateway  `yaml:"gateway"`
	Engine   Engine   `yaml:"engine"`
	Poll     Poll     `yaml:"poll"`
	Devices  []Device `yaml:"devices,omitempty"`
	LogLevel string   `yaml:"log_level,omitempty"`
}

// Gateway describes how to reach the RS485 bus
type Gateway struct {
	Transport   string        `yaml:"transport"`
	Host        string        `yaml:"host,omitempty"`
	Port        int           `yaml:"port,omitempty"`
	SerialPort  string        `yaml:"serial_port,omitempty"`
	Baud        int           `yaml:"baud,omitempty"`
	URL         string        `yaml:"url,omitempty"`
	Username    string        `yaml:"username,omitempty"`
	NoSSLVerify bool          `yaml:"no_ssl_verify,omitempty"`
	DialTimeout time.Duration `yaml:"dial_timeout,omitempty"`
}

// Engine holds the transaction policy
type Engine struct {
	Attempts   int           `yaml:"attempts"`
	Timeout    time.Duration `yaml:"timeout"`
	BusyPolicy string        `yaml:"busy_policy,omitempty"`
}

// Poll holds the caller-side polling cadence
type Poll struct {
	Interval         time.Duration `yaml:"interval"`
	BackoffInitial   time.Duration `yaml:"backoff_initial"`
	BackoffMax       time.Duration `yaml:"backoff_max"`
	UnavailableAfter int           `yaml:"unavailable_after"`
}

// Device is one motor on the bus
type Device struct {
	Name        string `yaml:"name"`
	AddressLow  Byte   `yaml:"address_low"`
	AddressHigh Byte   `yaml:"address_high"`
}

// Address returns the device's bus address
func (d Device) Address() dooya.Address {
	return dooya.NewAddress(uint8(d.AddressLow), uint8(d.AddressHigh))
}

// Byte is an address byte written as decimal (254) or hex (0xFE)
type Byte uint8

// UnmarshalYAML accepts decimal or 0x-prefixed hex scalars
func (b *Byte) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: address byte must be a scalar", value.Line)
	}
	v, err := dooya.ParseByte(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*b = Byte(v)
	return nil
}

// MarshalYAML writes the byte as a plain 0xNN integer
func (b Byte) MarshalYAML() (interface{}, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!int",
		Value: fmt.Sprintf("0x%02X", uint8(b)),
	}, nil
}
