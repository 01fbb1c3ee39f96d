// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/spf13/cobra"
)

var statusFull bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read the state of a motor",
	Long: `Read the position, motor status, switches, handle and firmware of a motor.

By default a single packed status read is issued. With --full every state
register is read in its own transaction, which also reports the direction.

Implausible values (uncalibrated stroke, motor error, unknown status codes)
are listed as warnings after the state.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFull, "full", false, "Read every state register individually")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	var state dooya.DeviceState
	if statusFull {
		state, err = device.FullStatus(ctx)
	} else {
		state, err = device.Status(ctx)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", device.Name(), err)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf(" %s (%s) ", device.Name(), device.Address())))
	fmt.Print(dooya.FormatState(state))
	if statusFull {
		fmt.Printf("  Direction:      %d\n", state.Direction)
	}

	for _, v := range dooya.ValidateState(state) {
		fmt.Println(warningStyle.Render("  ⚠ " + v.Message))
	}
	return nil
}
