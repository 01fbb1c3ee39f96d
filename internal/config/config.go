// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/velarium/pkg/engine"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "velarium"
	configFile = "config.yaml"
)

// Defaults
const (
	DefaultPort             = 502
	DefaultBaud             = 9600
	DefaultDialTimeout      = 10 * time.Second
	DefaultPollInterval     = 10 * time.Second
	DefaultBackoffInitial   = 30 * time.Second
	DefaultBackoffMax       = 10 * time.Minute
	DefaultUnavailableAfter = 3
)

// ErrNotFound is returned when a named device is not configured
var ErrNotFound = errors.New("device not found")

var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			return filepath.Join(userProfile, "AppData", "Local", appName), nil
		}
		return filepath.Join(localAppData, appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the default configuration file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	return &Config{
		Gateway: Gateway{
			Transport:   TransportTCP,
			Port:        DefaultPort,
			Baud:        DefaultBaud,
			DialTimeout: DefaultDialTimeout,
		},
		Engine: Engine{
			Attempts:   engine.DefaultAttempts,
			Timeout:    engine.DefaultTimeout,
			BusyPolicy: engine.BusyQueue.String(),
		},
		Poll: Poll{
			Interval:         DefaultPollInterval,
			BackoffInitial:   DefaultBackoffInitial,
			BackoffMax:       DefaultBackoffMax,
			UnavailableAfter: DefaultUnavailableAfter,
		},
	}
}

// Load reads path, or the default location when path is empty. A missing
// default file yields the defaults; a missing explicit file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero values left by explicit empty sections
func (c *Config) applyDefaults() {
	d := Default()
	if c.Gateway.Transport == "" {
		c.Gateway.Transport = d.Gateway.Transport
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = d.Gateway.Port
	}
	if c.Gateway.Baud == 0 {
		c.Gateway.Baud = d.Gateway.Baud
	}
	if c.Gateway.DialTimeout == 0 {
		c.Gateway.DialTimeout = d.Gateway.DialTimeout
	}
	if c.Engine.Attempts == 0 {
		c.Engine.Attempts = d.Engine.Attempts
	}
	if c.Engine.Timeout == 0 {
		c.Engine.Timeout = d.Engine.Timeout
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = d.Poll.Interval
	}
	if c.Poll.BackoffInitial == 0 {
		c.Poll.BackoffInitial = d.Poll.BackoffInitial
	}
	if c.Poll.BackoffMax == 0 {
		c.Poll.BackoffMax = d.Poll.BackoffMax
	}
	if c.Poll.UnavailableAfter == 0 {
		c.Poll.UnavailableAfter = d.Poll.UnavailableAfter
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch c.Gateway.Transport {
	case TransportTCP:
		if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
			return fmt.Errorf("gateway.port %d out of range", c.Gateway.Port)
		}
	case TransportSerial:
		if c.Gateway.Baud <= 0 {
			return fmt.Errorf("gateway.baud must be positive")
		}
	case TransportWebSocket:
		if c.Gateway.URL != "" && !strings.HasPrefix(c.Gateway.URL, "ws://") && !strings.HasPrefix(c.Gateway.URL, "wss://") {
			return fmt.Errorf("gateway.url must use ws:// or wss://")
		}
	default:
		return fmt.Errorf("gateway.transport %q unknown (use tcp, serial or websocket)", c.Gateway.Transport)
	}

	if c.Engine.Attempts < 1 {
		return fmt.Errorf("engine.attempts must be at least 1")
	}
	if c.Engine.Timeout < 0 {
		return fmt.Errorf("engine.timeout must be positive")
	}
	if _, ok := engine.ParseBusyPolicy(c.Engine.BusyPolicy); !ok {
		return fmt.Errorf("engine.busy_policy %q unknown (use queue or reject)", c.Engine.BusyPolicy)
	}

	if c.Poll.Interval < 0 || c.Poll.BackoffInitial < 0 {
		return fmt.Errorf("poll durations must be positive")
	}
	if c.Poll.BackoffMax < c.Poll.BackoffInitial {
		return fmt.Errorf("poll.backoff_max must not be below poll.backoff_initial")
	}
	if c.Poll.UnavailableAfter < 1 {
		return fmt.Errorf("poll.unavailable_after must be at least 1")
	}

	seen := make(map[string]bool)
	for i, d := range c.Devices {
		if d.Name == "" {
			return fmt.Errorf("devices[%d]: name is required", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("devices[%d]: duplicate name %q", i, d.Name)
		}
		seen[d.Name] = true
	}

	return nil
}

// BusyPolicy returns the parsed busy policy
func (c *Config) BusyPolicy() engine.BusyPolicy {
	p, _ := engine.ParseBusyPolicy(c.Engine.BusyPolicy)
	return p
}

// FindDevice returns the device with the given name
func (c *Config) FindDevice(name string) (Device, error) {
	for _, d := range c.Devices {
		if d.Name == name {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// WithDeviceAddress returns a copy of c with the named device re-addressed,
// adding the device if it is not configured yet
func (c *Config) WithDeviceAddress(name string, low, high uint8) *Config {
	out := *c
	out.Devices = make([]Device, 0, len(c.Devices)+1)
	found := false
	for _, d := range c.Devices {
		if d.Name == name {
			d.AddressLow, d.AddressHigh = Byte(low), Byte(high)
			found = true
		}
		out.Devices = append(out.Devices, d)
	}
	if !found {
		out.Devices = append(out.Devices, Device{Name: name, AddressLow: Byte(low), AddressHigh: Byte(high)})
	}
	return &out
}

// Marshal encodes c as YAML
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// Save writes c to path, or the default location when path is empty
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	// Write atomically via a temp file in the same directory
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}
