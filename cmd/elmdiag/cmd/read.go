package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haverlund/elmdiag/catalog"
	"github.com/haverlund/elmdiag/engine"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "read decoded snapshots from the currently selected ECU",
}

var readEngineCmd = &cobra.Command{
	Use:   "engine",
	Short: "read RPM, coolant temperature and battery voltage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			data, err := e.ReadEngineSnapshot(ctx)
			if err != nil {
				return err
			}
			fmt.Println(catalog.Format("rpm", data.RPM))
			fmt.Println(catalog.Format("°C", data.CoolantTempC))
			fmt.Println(catalog.Format("V", data.BatteryVoltageV))
			return nil
		})
	},
}

var readDpfCmd = &cobra.Command{
	Use:   "dpf",
	Short: "read diesel particulate filter soot loading and regen status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			data, err := e.ReadDpfSnapshot(ctx)
			if err != nil {
				return err
			}
			fmt.Println(catalog.Format("g/l", data.SootLoadingGPerL))
			fmt.Println(data.RegenStatus)
			return nil
		})
	},
}

var readInjectorsCmd = &cobra.Command{
	Use:   "injectors",
	Short: "read the four per-cylinder injector flow corrections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			corrections, err := e.ReadInjectorCorrections(ctx)
			if err != nil {
				return err
			}
			for i, c := range corrections {
				fmt.Printf("cyl %d: %s\n", i+1, catalog.Format("mm³", c))
			}
			return nil
		})
	},
}

var readVoltageCmd = &cobra.Command{
	Use:   "voltage",
	Short: "read the adapter's reported supply voltage (ATRV)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			v, err := e.ReadAdapterVoltage(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%.1fV\n", v)
			return nil
		})
	},
}

func init() {
	readCmd.AddCommand(readEngineCmd, readDpfCmd, readInjectorsCmd, readVoltageCmd)
	rootCmd.AddCommand(readCmd)
}
