package main

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mixing-extruder/pkg/mixing"
	"mixing-extruder/pkg/motion"
)

type simulateOptions struct {
	tool  int
	steps int
	mm    float64
}

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	so := &simulateOptions{tool: -1}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Step the distributor and compare delivered steps with the mix",
		Long: `Drive the step distributor for a number of steps and print how many
each stepper received next to the count its ratio asks for.

With --mm the step count is derived from the filament length and the
drive geometry in [mixing_extruder] instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(opts)
			if err != nil {
				return err
			}
			return runSimulate(h, so, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&so.tool, "tool", -1, "virtual tool to select first (default: the active tool)")
	cmd.Flags().IntVar(&so.steps, "steps", 10000, "logical steps to distribute")
	cmd.Flags().Float64Var(&so.mm, "mm", 0, "filament length to extrude instead of --steps")
	return cmd
}

func runSimulate(h *host, so *simulateOptions, out io.Writer) error {
	m := h.mixer
	if so.tool >= 0 {
		if so.tool >= m.Tools() {
			return fmt.Errorf("tool %d out of range (have %d)", so.tool, m.Tools())
		}
		m.Select(so.tool)
	}
	if so.steps < 0 {
		return fmt.Errorf("steps must not be negative")
	}

	sink := &motion.CountingSink{}
	ext := &motion.Extruder{Mixer: m, Sink: sink, StepsPerMM: h.stepsPerMM}
	var total int
	if so.mm != 0 {
		total = ext.Move(so.mm)
	} else {
		for i := 0; i < so.steps; i++ {
			sink.Step(m.NextStepper(), true)
		}
		total = so.steps
	}

	tool := m.ActiveTool()
	ratios, _ := m.Row(tool)
	fmt.Fprintf(out, "tool %d, %d steps\n", tool, total)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "stepper\tratio\texpected\tdelivered\terror\t")
	for i, r := range ratios {
		expected := math.Round(r * float64(total))
		got := sink.Net(i)
		fmt.Fprintf(tw, "%c\t%.4f\t%.0f\t%d\t%+.0f\t\n",
			mixing.Letter(i), r, expected, got, float64(got)-expected)
	}
	return tw.Flush()
}
