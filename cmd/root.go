// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/Thermoquad/velarium/internal/config"
	"github.com/Thermoquad/velarium/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// TCP gateway flags
	gatewayHost string
	gatewayPort int

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Device selection
	deviceName string
	deviceAddr string

	// Transaction policy
	timeoutFlag  time.Duration
	attemptsFlag int

	// Misc
	traceFile  string
	configPath string
	logLevel   string

	// settings is the loaded configuration with flag overrides applied
	settings *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "velarium",
	Short: "Dooya RS485 curtain motor control",
	Long: `Velarium - A CLI tool for controlling Dooya RS485 curtain motors.

Motors are reached through a TCP-to-RS485 gateway, a local RS485 adapter or a
WebSocket-to-serial bridge. Devices are addressed by name from the
configuration file or directly with --addr.

Connection modes:
  TCP gateway: --host 192.168.1.50 [--gateway-port 502]
  Serial:      --port /dev/ttyUSB0 [--baud 9600]
  WebSocket:   --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the VELARIUM_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Configuration is read from $XDG_CONFIG_HOME/velarium/config.yaml unless
--config is given. Flags override file values.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	// TCP gateway flags
	rootCmd.PersistentFlags().StringVar(&gatewayHost, "host", "", "TCP gateway host")
	rootCmd.PersistentFlags().IntVar(&gatewayPort, "gateway-port", config.DefaultPort, "TCP gateway port")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.DefaultBaud, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Device selection
	rootCmd.PersistentFlags().StringVarP(&deviceName, "device", "d", "", "Configured device name")
	rootCmd.PersistentFlags().StringVarP(&deviceAddr, "addr", "a", "", "Device address (0xHHLL or low,high)")

	// Transaction policy
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 0, "Per-attempt response timeout (default from config, 5s)")
	rootCmd.PersistentFlags().IntVar(&attemptsFlag, "attempts", 0, "Attempts per operation (default from config, 3)")

	// Misc
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "Record every frame to a CBOR trace file")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default silent)")
}

// loadSettings initialises logging and merges the config file with flags
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	if err := logging.Initialize(level); err != nil {
		return err
	}

	flags := cmd.Flags()
	switch {
	case flags.Changed("url"):
		cfg.Gateway.Transport = config.TransportWebSocket
		cfg.Gateway.URL = wsURL
	case flags.Changed("port"):
		cfg.Gateway.Transport = config.TransportSerial
		cfg.Gateway.SerialPort = portName
	case flags.Changed("host"):
		cfg.Gateway.Transport = config.TransportTCP
		cfg.Gateway.Host = gatewayHost
	}
	if flags.Changed("gateway-port") {
		cfg.Gateway.Port = gatewayPort
	}
	if flags.Changed("baud") {
		cfg.Gateway.Baud = baudRate
	}
	if flags.Changed("username") {
		cfg.Gateway.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Gateway.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("timeout") {
		cfg.Engine.Timeout = timeoutFlag
	}
	if flags.Changed("attempts") {
		cfg.Engine.Attempts = attemptsFlag
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	settings = cfg
	logging.Debug("settings loaded",
		zap.String("transport", cfg.Gateway.Transport),
		zap.Int("attempts", cfg.Engine.Attempts),
		zap.Duration("timeout", cfg.Engine.Timeout),
		zap.Int("devices", len(cfg.Devices)))
	return nil
}

// Execute runs the root command
func Execute() error {
	defer logging.Sync()
	return rootCmd.Execute()
}
