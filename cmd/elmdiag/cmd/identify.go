package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haverlund/elmdiag/engine"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <ecu-code>",
	Short: "read an ECU's part number, calibration and hardware number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := args[0]
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			id, err := e.IdentifyEcu(ctx, code)
			if err != nil {
				return err
			}
			fmt.Printf("part number:  %s\n", id.PartNumber)
			fmt.Printf("calibration:  %s\n", id.Calibration)
			fmt.Printf("hardware num: %s\n", id.HardwareNum)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(identifyCmd)
}
