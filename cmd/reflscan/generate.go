package main

import (
	"github.com/spf13/cobra"
)

func newGenerateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [dump]",
		Short: "Generate the descriptor stream for one declaration dump",
		Example: `  reflscan generate -o point.refl build/point.yaml
  reflscan generate -o - --format tsv build/point.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: opts.runGenerate,
	}
	addGenerateFlags(cmd, opts)
	return cmd
}

func (o *options) runGenerate(cmd *cobra.Command, args []string) error {
	input, output, err := o.target(args)
	if err != nil {
		return err
	}

	a, err := o.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.Generate(cmd.Context(), input, output)
	return err
}
