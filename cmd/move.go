// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Thermoquad/velarium/pkg/engine"
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the curtain fully",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMove(cmd, func(ctx context.Context, d *engine.Device) error { return d.Open(ctx) }, "open")
	},
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the curtain fully",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMove(cmd, func(ctx context.Context, d *engine.Device) error { return d.Close(ctx) }, "close")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the motor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMove(cmd, func(ctx context.Context, d *engine.Device) error { return d.Stop(ctx) }, "stop")
	},
}

var positionCmd = &cobra.Command{
	Use:   "position <percent>",
	Short: "Move the curtain to a position (0-100)",
	Long: `Move the curtain to a target position in percent.

0 is fully open and 100 is fully closed. The motor must have a calibrated
stroke; an uncalibrated motor acknowledges the command but does not move.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		percent, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid position %q: %w", args[0], engine.ErrInvalidPosition)
		}
		return runMove(cmd, func(ctx context.Context, d *engine.Device) error {
			return d.SetPosition(ctx, percent)
		}, fmt.Sprintf("position %d%%", percent))
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(positionCmd)
}

// runMove sends one motion command to the selected device
func runMove(cmd *cobra.Command, action func(context.Context, *engine.Device) error, what string) error {
	conn, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	device, err := conn.Device()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := action(ctx, device); err != nil {
		return fmt.Errorf("%s: %s: %w", device.Name(), what, err)
	}

	fmt.Printf("%s: %s acknowledged\n", device.Name(), what)
	return nil
}
