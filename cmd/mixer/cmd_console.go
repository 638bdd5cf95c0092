package main

import (
	"bufio"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mixing-extruder/pkg/gcode"
)

func newConsoleCmd(opts *rootOptions) *cobra.Command {
	var keepGoing bool
	cmd := &cobra.Command{
		Use:   "console [file]",
		Short: "Run G-code from a file or stdin",
		Long: `Run G-code line by line, printing every response.

Without a file the commands are read from stdin, so the console can be
used interactively or fed from a pipe. The tool table is written back to
--presets when the input ends.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(opts)
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			if err := runConsole(h, in, cmd.OutOrStdout(), keepGoing); err != nil {
				return err
			}
			return h.savePresets()
		},
	}
	cmd.Flags().BoolVar(&keepGoing, "keep-going", true, "report a failing line and continue with the next one")
	return cmd
}

// runConsole feeds in to the dispatcher one line at a time. Errors are
// reported to out with the "!! " prefix; with keepGoing unset the first
// one also ends the run.
func runConsole(h *host, in io.Reader, out io.Writer, keepGoing bool) error {
	r := gcode.NewWriterResponder(out)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if err := h.dispatcher.Run(sc.Text(), r); err != nil {
			gcode.RespondError(r, err)
			if !keepGoing {
				return err
			}
		}
	}
	return sc.Err()
}
