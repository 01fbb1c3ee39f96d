// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/Thermoquad/velarium/pkg/engine"
	"github.com/spf13/cobra"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Destructive motor maintenance commands",
	Long: `Destructive motor maintenance commands.

Both commands ask for confirmation unless --yes is given.`,
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the motor's stored configuration",
	Long: `Delete the motor's stored configuration (stroke limits and pairing).

The motor reports an uncalibrated position (0xFF) afterwards and must be run
through a full open and close cycle before position commands work again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMaintenance(cmd, "Delete configuration of", func(ctx context.Context, e *engine.Engine, d *engine.Device) error {
			return e.DeleteDevice(ctx, d.Address())
		})
	},
}

var factoryResetCmd = &cobra.Command{
	Use:   "factory-reset",
	Short: "Restore factory settings",
	Long: `Restore factory settings.

The motor returns to the factory address 0xFEFE and forgets its stroke
limits. Update the configuration before addressing it again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMaintenance(cmd, "Factory reset", func(ctx context.Context, e *engine.Engine, d *engine.Device) error {
			return e.FactoryReset(ctx, d.Address())
		})
	},
}

func init() {
	maintenanceCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	maintenanceCmd.AddCommand(deleteCmd)
	maintenanceCmd.AddCommand(factoryResetCmd)
	rootCmd.AddCommand(maintenanceCmd)
}

func runMaintenance(cmd *cobra.Command, what string, action func(context.Context, *engine.Engine, *engine.Device) error) error {
	conn, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	device, err := conn.Device()
	if err != nil {
		return err
	}

	ok, err := confirm(fmt.Sprintf("%s %s (%s)?", what, device.Name(), device.Address()))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := action(ctx, conn.Engine, device); err != nil {
		return fmt.Errorf("%s: %w", device.Name(), err)
	}

	fmt.Printf("%s: done\n", device.Name())
	return nil
}
