package main

import (
	"github.com/spf13/cobra"
)

func newWatchCmd(opts *options) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch [dump|dir]",
		Short: "Regenerate descriptors whenever a watched dump changes",
		Long: `Watch one dump and rewrite -o on every change, or watch a directory of
dumps and write one output per dump below the -o directory, mirroring the
relative path. [watch] include/exclude in the config filter directory dumps.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if metricsAddr != "" {
				opts.cfg.Observability.MetricsAddr = metricsAddr
			}
			input, output, err := opts.target(args)
			if err != nil {
				return err
			}

			a, err := opts.newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Watch(cmd.Context(), input, output)
		},
	}
	addGenerateFlags(cmd, opts)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address")
	return cmd
}
