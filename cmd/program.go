// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/velarium/internal/config"
	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/Thermoquad/velarium/pkg/engine"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	programWaitRequest bool
	programWindow      time.Duration
	programSave        bool
	programName        string
)

var programCmd = &cobra.Command{
	Use:   "program <low> <high>",
	Short: "Assign a new bus address to a motor",
	Long: `Assign a new bus address to a motor.

The motor only accepts a new address while it is in programming mode:

  1. Hold the motor's setting button for about 5 seconds.
  2. Release it when the LED flashes twice.
  3. Confirm within 10 seconds.

The programming frame is sent to the selected device (--device or --addr),
or to the factory address 0xFEFE when none is selected. Address bytes are
decimal (18) or hex (0x12); 0x00 and 0xFF are reserved.

With --wait-request the command listens for the motor's own programming
request instead of asking for confirmation.

Examples:
  velarium program 0x12 0x34 --host 192.168.1.50
  velarium program 18 52 --device bedroom --save`,
	Args: cobra.ExactArgs(2),
	RunE: runProgram,
}

func init() {
	programCmd.Flags().BoolVar(&programWaitRequest, "wait-request", false, "Listen for the motor's programming request instead of confirming")
	programCmd.Flags().DurationVar(&programWindow, "window", 10*time.Second, "How long to listen with --wait-request")
	programCmd.Flags().BoolVar(&programSave, "save", false, "Write the new address to the configuration file")
	programCmd.Flags().StringVar(&programName, "name", "", "Device name for the saved configuration entry")
	programCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(programCmd)
}

func runProgram(cmd *cobra.Command, args []string) error {
	low, err := dooya.ParseByte(args[0])
	if err != nil {
		return fmt.Errorf("invalid low byte: %w", err)
	}
	high, err := dooya.ParseByte(args[1])
	if err != nil {
		return fmt.Errorf("invalid high byte: %w", err)
	}
	newAddr := dooya.NewAddress(low, high)
	if !newAddr.ValidProgrammingTarget() {
		return fmt.Errorf("%w: %s (bytes 0x00 and 0xFF are reserved)", engine.ErrInvalidAddress, newAddr)
	}

	conn, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	var device *engine.Device
	if deviceAddr == "" && deviceName == "" {
		device = engine.NewDevice(conn.Engine, "new", dooya.FactoryAddress)
	} else {
		device, err = conn.Device()
		if err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Printf("Programming %s: %s -> %s\n\n", device.Name(), device.Address(), newAddr)

	var seq *engine.Sequencer
	if programWaitRequest {
		fmt.Println("Hold the setting button for about 5 seconds until the LED flashes twice.")
		fmt.Printf("Listening for the programming request (%s)...\n", programWindow)
		seq = device.Sequencer()
		if err := seq.AwaitRequest(ctx, programWindow); err != nil {
			if errors.Is(err, engine.ErrReceiveUnsupported) {
				return err
			}
			return fmt.Errorf("no programming request received: %w", err)
		}
		fmt.Println("Programming request received.")
		err = seq.Program(ctx, low, high)
	} else {
		fmt.Println("  1. Hold the setting button for about 5 seconds.")
		fmt.Println("  2. Release it when the LED flashes twice.")
		fmt.Println("  3. Confirm below within 10 seconds.")
		fmt.Println()
		ok, cerr := confirm("Motor is in programming mode?")
		if cerr != nil {
			return cerr
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
		seq, err = device.Program(ctx, low, high)
	}
	if err != nil {
		return fmt.Errorf("programming failed (%s): %w", seq.State(), err)
	}

	fmt.Println(statsValueStyle.Render(fmt.Sprintf("Address %s confirmed.", device.Address())))

	name := programName
	if name == "" {
		name = device.Name()
	}
	entry := config.Device{Name: name, AddressLow: config.Byte(low), AddressHigh: config.Byte(high)}

	if programSave {
		updated := settings.WithDeviceAddress(entry.Name, low, high)
		if err := updated.Save(configPath); err != nil {
			return err
		}
		fmt.Printf("Saved %s to configuration.\n", entry.Name)
		return nil
	}

	snippet, err := yaml.Marshal(map[string][]config.Device{"devices": {entry}})
	if err != nil {
		return fmt.Errorf("failed to render config snippet: %w", err)
	}
	fmt.Printf("\nConfiguration entry:\n\n%s", snippet)
	return nil
}
