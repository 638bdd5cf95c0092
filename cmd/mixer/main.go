// mixer drives a mixing extruder engine from the command line.
//
// Usage:
//
//	mixer [--config printer.cfg] [--presets presets.yaml] <command>
//
// Commands:
//
//	console [file]   run G-code from a file or stdin
//	report           print every virtual tool's mix
//	simulate         step the distributor and compare against the mix
//	serve            run the websocket console and metrics servers
//
// Flags may also come from the environment (MIXER_CONFIG, MIXER_PRESETS),
// optionally loaded from a .env file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mixing-extruder/pkg/errors"
)

var version = "0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for configuration problems and 1 for everything else.
func exitCode(err error) int {
	if errors.IsConfig(err) {
		return 2
	}
	return 1
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "mixer",
		Short: "Mixing extruder engine",
		Long: `mixer blends several extruder steppers into one nozzle.

Mixes are set with M163/M164/M165, kept per virtual tool, and every
extrusion step is handed to the stepper that keeps the delivered
shares closest to the mix.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.teardown()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "printer.cfg with a [mixing_extruder] section (env MIXER_CONFIG)")
	flags.StringVar(&opts.presetsPath, "presets", "", "YAML file the tool table is loaded from and saved to (env MIXER_PRESETS)")
	flags.StringVar(&opts.logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR (env MIXER_LOG_LEVEL)")
	flags.StringVar(&opts.logFile, "logfile", "", "write logs to a rotating file instead of stderr")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file read before anything else")

	rootCmd.AddCommand(
		newConsoleCmd(opts),
		newReportCmd(opts),
		newSimulateCmd(opts),
		newServeCmd(opts),
	)
	return rootCmd
}
