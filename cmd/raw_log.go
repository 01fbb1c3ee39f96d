// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/Thermoquad/velarium/pkg/session"
	"github.com/spf13/cobra"
)

var (
	errorsOnly    bool
	statsInterval int
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display bus traffic in human-readable format",
	Long: `Passively decode and display every frame seen on the bus.

Nothing is transmitted. Each frame is shown with timestamp, function,
address and arguments. Frames with a bad checksum or an unknown function
code are highlighted, and a programming request from a motor in
programming mode is called out.

With --stats-interval a summary of frame counts and error rates is printed
periodically and once more on exit.

Supports TCP gateway, serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "Only show frames that failed to decode or validate")
	rawLogCmd.Flags().IntVar(&statsInterval, "stats-interval", 0, "Statistics interval in seconds (0 disables)")
}

type sniffed struct {
	raw []byte
	at  time.Time
	err error
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, err := OpenConnection()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := conn.Session.Open(ctx); err != nil {
		conn.Close()
		return err
	}

	fmt.Printf("Velarium - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", conn.Name)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	frames := make(chan sniffed, 16)
	go func() {
		for {
			raw, err := conn.Session.Receive(0)
			frames <- sniffed{raw: raw, at: time.Now(), err: err}
			if err != nil {
				return
			}
		}
	}()

	stats := dooya.NewStatistics()
	var tick <-chan time.Time
	if statsInterval > 0 {
		ticker := time.NewTicker(time.Duration(statsInterval) * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			// The reader still holds the session in Receive; process exit
			// closes the stream.
			if statsInterval > 0 {
				fmt.Print("\n" + stats.String())
			}
			return nil

		case s := <-frames:
			if s.err != nil {
				conn.Close()
				if errors.Is(s.err, session.ErrConnectionLost) {
					fmt.Printf("Connection closed\n")
					return nil
				}
				return s.err
			}
			logFrame(stats, s)

		case <-tick:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// logFrame decodes, validates and prints one sniffed frame
func logFrame(stats *dooya.Statistics, s sniffed) {
	timestamp := s.at.Format("15:04:05.000")

	frame, err := dooya.Decode(s.raw)
	if err != nil {
		outcome := dooya.OutcomeMalformed
		if errors.Is(err, dooya.ErrChecksumMismatch) {
			outcome = dooya.OutcomeChecksum
		}
		stats.RecordAttempt(outcome)
		stats.RecordTransaction(false)
		fmt.Printf("[%s] %s %v\n", timestamp, errorStyle.Render("DECODE ERROR:"), err)
		fmt.Printf("  Bytes: %s\n\n", dooya.FormatHex(s.raw))
		return
	}

	stats.RecordAttempt(dooya.OutcomeOK)
	issues := dooya.ValidateFrame(frame)
	stats.RecordTransaction(len(issues) == 0)

	if len(issues) > 0 {
		fmt.Printf("[%s] %s %s\n", timestamp, warningStyle.Render("VALIDATION ERROR:"), dooya.FormatHex(s.raw))
		for i, v := range issues {
			fmt.Printf("  Issue %d: %s\n", i+1, v.Message)
		}
		fmt.Println()
		return
	}

	if dooya.IsProgrammingRequest(frame) {
		fmt.Printf("[%s] %s motor is in programming mode\n", timestamp, statsLabelStyle.Render("PROGRAMMING REQUEST:"))
		return
	}

	if !errorsOnly {
		fmt.Print(dooya.FormatFrame(frame, s.at))
	}
}
