// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/spf13/cobra"
)

var traceHex bool

var traceCmd = &cobra.Command{
	Use:   "trace <file>",
	Short: "Dump a frame trace recorded with --trace",
	Long: `Print every record of a CBOR frame trace.

Any command run with --trace <file> records each transmitted and received
frame with a timestamp and the connection it travelled over. This command
reads such a file back. With --hex the raw bytes of each frame are shown too.`,
	Args: cobra.ExactArgs(1),
	// No connection or configuration needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runTrace,
}

func init() {
	traceCmd.Flags().BoolVar(&traceHex, "hex", false, "Show raw frame bytes")
	rootCmd.AddCommand(traceCmd)
}

func runTrace(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()

	reader := dooya.NewTraceReader(f)
	count := 0
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", count+1, err)
		}
		count++

		fmt.Print(dooya.FormatTraceRecord(rec))
		if traceHex {
			fmt.Printf("    %s\n", dooya.FormatHex(rec.Bytes))
		}
	}

	fmt.Printf("\n%d records\n", count)
	return nil
}
