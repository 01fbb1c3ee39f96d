// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/Thermoquad/velarium/internal/logging"
	"github.com/Thermoquad/velarium/internal/poller"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive monitor and control TUI",
	Long: `Interactive terminal UI for monitoring and controlling motors.

Every configured device (or the one selected with --device/--addr) is polled
on the configured interval. A motor that stops answering is retried with
exponential backoff and marked unavailable after repeated failures.

Keys:
  up/down, j/k  select device
  o             open
  c             close
  s             stop
  tab           focus the position input
  enter         move to the entered position
  r             refresh now
  q             quit`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	devices, err := conn.Devices()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := poller.Config{
		Interval:         settings.Poll.Interval,
		BackoffInitial:   settings.Poll.BackoffInitial,
		BackoffMax:       settings.Poll.BackoffMax,
		UnavailableAfter: settings.Poll.UnavailableAfter,
	}

	m := initialMonitorModel(ctx, conn, devices)
	p := tea.NewProgram(m, tea.WithAltScreen())

	updates := make(chan poller.Update, len(devices))
	for _, d := range devices {
		pl := poller.New(d, cfg,
			poller.WithLogger(logging.Named("poller")),
			poller.WithReset(conn.Engine.Reset))
		go pl.Run(ctx, updates)
	}

	// Forward poll results into the TUI
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-updates:
				p.Send(pollMsg(u))
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
