package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haverlund/elmdiag/engine"
)

var scanCmd = &cobra.Command{
	Use:   "scan <ecu-code>",
	Short: "probe DID groups 0xD0..0xDF on an ECU and report which respond",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := args[0]
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			results, err := e.ScanDidGroups(ctx, code)
			if err != nil {
				return err
			}
			for _, r := range results {
				state := "inactive"
				if r.Active {
					state = "active"
				}
				fmt.Printf("0x%02X00  %s\n", r.GroupPrefix, state)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
