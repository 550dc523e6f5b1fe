package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haverlund/elmdiag/engine"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "connect and print the ECUs the bus probe found",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			detected := e.DetectedEcus()
			if len(detected) == 0 {
				fmt.Println("no ECUs responded to the 0100 probe")
				return nil
			}
			fmt.Printf("found %d ECU(s), selected %s:\n", len(detected), e.SelectedEcu().Code)
			printDetected(e)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
