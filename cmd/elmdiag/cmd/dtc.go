package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/haverlund/elmdiag/engine"
)

var dtcCmd = &cobra.Command{
	Use:   "dtc <ecu-code>",
	Short: "read stored diagnostic trouble codes from an ECU",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := args[0]
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			dtcs, err := e.ReadDtcs(ctx, code)
			if err != nil {
				return err
			}
			if len(dtcs) == 0 {
				fmt.Println("no stored DTCs")
				return nil
			}
			for _, d := range dtcs {
				flags := dtcFlags(d)
				fmt.Printf("%s  %-55s %s\n", color.YellowString(d.Code), d.Description, flags)
			}
			return nil
		})
	},
}

var dtcClearCmd = &cobra.Command{
	Use:   "clear <ecu-code>",
	Short: "clear all stored diagnostic trouble codes on an ECU",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := args[0]
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			ok, err := e.ClearDtcs(ctx, code)
			if err != nil {
				return err
			}
			if ok {
				fmt.Println(color.GreenString("cleared"))
			}
			return nil
		})
	},
}

func dtcFlags(d interface {
	Confirmed() bool
	TestFailed() bool
	Pending() bool
}) string {
	var flags string
	if d.Confirmed() {
		flags += "confirmed "
	}
	if d.Pending() {
		flags += "pending "
	}
	if d.TestFailed() {
		flags += "test-failed "
	}
	return flags
}

func init() {
	dtcCmd.AddCommand(dtcClearCmd)
	rootCmd.AddCommand(dtcCmd)
}
