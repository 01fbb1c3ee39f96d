// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/Thermoquad/velarium/pkg/engine"
	"github.com/spf13/cobra"
)

// Probe exit codes
const (
	probeOK           = 0
	probeNoResponse   = 1
	probeConnectError = 2
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connectivity with a single status read",
	Long: `Send one status read to the selected motor and report the result.

The read uses the configured attempts and timeout. Any response with a valid
checksum from the right address counts as success, even if the motor
reports an error state.

Exit codes:
  0 - Motor answered
  1 - No valid response (timeout, checksum or protocol errors)
  2 - Connection error

Useful for scripting gateway and wiring checks.`,
	Args: cobra.NoArgs,
	Run:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) {
	os.Exit(probe(cmd.Context()))
}

func probe(ctx context.Context) int {
	conn, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		return probeConnectError
	}
	defer conn.Close()

	device, err := conn.Device()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return probeConnectError
	}

	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Printf("Velarium - Probe\n")
	fmt.Printf("Connection: %s\n", conn.Name)
	fmt.Printf("Device: %s (%s)\n", device.Name(), device.Address())
	fmt.Printf("Attempts: %d x %s\n\n", settings.Engine.Attempts, settings.Engine.Timeout)

	start := time.Now()
	state, err := device.Status(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		if engine.Classify(err) == engine.KindConnectionLost {
			return probeConnectError
		}
		return probeNoResponse
	}

	fmt.Printf("SUCCESS: Response in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Print(dooya.FormatState(state))
	return probeOK
}
