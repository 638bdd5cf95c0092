package main

import (
	"github.com/spf13/cobra"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the mix of every virtual tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost(opts)
			if err != nil {
				return err
			}
			return h.mixer.WriteReport(cmd.OutOrStdout())
		},
	}
}
