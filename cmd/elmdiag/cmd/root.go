// Package cmd is the cobra CLI exercising the core API surface of
// engine.Engine over a real serial port — the terminal client standing
// in for the GUI presentation layer spec.md excludes.
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/haverlund/elmdiag/adapter"
	"github.com/haverlund/elmdiag/engine"
	"github.com/haverlund/elmdiag/transport"
)

var rootCmd = &cobra.Command{
	Use:          "elmdiag",
	Short:        "ELM327 UDS/KWP2000 diagnostic client",
	Long:         `Talks to an ELM327-family adapter over a serial/SPP port and runs UDS diagnostics against a vehicle bus.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main().
func Execute(ctx context.Context) {
	rootCmd.ExecuteContext(ctx)
}

const (
	flagPort    = "port"
	flagBaud    = "baud"
	flagDebug   = "debug"
	flagTimeout = "timeout"
)

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	pf := rootCmd.PersistentFlags()
	pf.StringP(flagPort, "p", "/dev/ttyUSB0", "serial port the adapter is attached to")
	pf.IntP(flagBaud, "b", 38400, "serial baud rate")
	pf.BoolP(flagDebug, "d", false, "print every AT command and adapter reply")
	pf.DurationP(flagTimeout, "t", 20*time.Second, "overall connect+command timeout")

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// withEngine connects to the adapter named by --port/--baud, runs fn against
// the connected Engine, and disconnects afterward regardless of fn's error.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *engine.Engine) error) error {
	port, _ := cmd.Flags().GetString(flagPort)
	baud, _ := cmd.Flags().GetInt(flagBaud)
	debug, _ := cmd.Flags().GetBool(flagDebug)
	timeout, _ := cmd.Flags().GetDuration(flagTimeout)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	opener := func(ctx context.Context, deviceHandle string) (transport.Transport, error) {
		return transport.OpenSerial(transport.SerialConfig{Port: deviceHandle, BaudRate: baud})
	}

	opts := []engine.Option{
		engine.WithOnStateChanged(func(p adapter.Phase) {
			fmt.Fprintln(os.Stderr, color.HiBlackString("[%s]", p))
		}),
	}
	if debug {
		opts = append(opts, engine.WithOnLog(func(line string) {
			fmt.Fprintln(os.Stderr, color.HiBlackString(line))
		}))
	}

	e := engine.New(opener, nil, opts...)
	if err := e.Connect(ctx, engine.DeviceRef{Handle: port}); err != nil {
		return fmt.Errorf("connect %s: %w", port, err)
	}
	defer e.Disconnect(context.Background())

	return fn(ctx, e)
}

func printDetected(e *engine.Engine) {
	for _, ecu := range e.DetectedEcus() {
		fmt.Printf("  %-4s %-30s tx=%s rx=%s\n", ecu.Code, ecu.Name, ecu.Tx, ecu.Rx)
	}
}
