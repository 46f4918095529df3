package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflscan/internal/app"
	"reflscan/internal/config"
	"reflscan/internal/shared/observability"
	"strings"

	"github.com/spf13/cobra"
)

type options struct {
	stdout io.Writer
	stderr io.Writer

	configPath    string
	verbose       bool
	output        string
	format        string
	includeHeader string
	exclude       []string
	noCache       bool
	sarif         string

	cfg      *config.Config
	shutdown func(context.Context) error
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "reflscan [dump]",
		Short: "Extract the reflectable public surface of a resolved declaration dump",
		Long: `reflscan walks a declaration dump produced by a C++ front end and emits the
BEGIN_CLASS/ATTRIBUTE/METHOD/... descriptor stream consumed by the
registration-code generator. Without a subcommand it behaves like "generate".`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.teardown(cmd.Context())
		},
		RunE: opts.runGenerate,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.DefaultFile, "Path to config file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	addGenerateFlags(root, opts)

	root.AddCommand(
		newGenerateCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

func addGenerateFlags(cmd *cobra.Command, opts *options) {
	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", `Output file, "-" for stdout`)
	flags.StringVarP(&opts.format, "format", "f", "", "Output format: descriptor, tsv, dot, mermaid")
	flags.StringVar(&opts.includeHeader, "include-header", "", "Header included first by the descriptor")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "Glob on qualified names to skip (repeatable)")
	flags.BoolVar(&opts.noCache, "no-cache", false, "Bypass the descriptor cache")
	flags.StringVar(&opts.sarif, "sarif", "", "Also write diagnostics as a SARIF log to this file")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{config.FormatDescriptor, config.FormatTSV, config.FormatDOT, config.FormatMermaid}, cobra.ShellCompDirectiveNoFileComp
	})
}

// setup configures logging, loads the config and starts tracing.
func (o *options) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	// Logs always go to stderr: stdout may carry the descriptor.
	slog.SetDefault(slog.New(slog.NewTextHandler(o.stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.LoadOptional(o.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := o.applyFlags(cmd, cfg); err != nil {
		return err
	}
	o.cfg = cfg

	shutdown, err := observability.InitTracing(cmd.Context(), cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		shutdown = nil
	}
	o.shutdown = shutdown
	return nil
}

func (o *options) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Lookup("output") == nil {
		return nil
	}
	if o.output != "" {
		cfg.Output = o.output
	}
	if o.format != "" {
		cfg.Format = o.format
	}
	if o.includeHeader != "" {
		cfg.IncludeHeader = o.includeHeader
	}
	if len(o.exclude) > 0 {
		cfg.Exclude.Symbols = append(cfg.Exclude.Symbols, o.exclude...)
	}
	if o.sarif != "" {
		cfg.SARIF = o.sarif
	}
	if o.noCache {
		cfg.Cache.Enabled = false
	}
	return config.Validate(cfg)
}

func (o *options) teardown(ctx context.Context) error {
	if o.shutdown == nil {
		return nil
	}
	return o.shutdown(ctx)
}

// target resolves the input dump and output path from args and config.
func (o *options) target(args []string) (string, string, error) {
	input := o.cfg.Input
	if len(args) > 0 {
		input = args[0]
	}
	if strings.TrimSpace(input) == "" {
		return "", "", fmt.Errorf("no input dump given")
	}
	if strings.TrimSpace(o.cfg.Output) == "" {
		return "", "", fmt.Errorf(`no output given (use -o <file> or -o - for stdout)`)
	}
	return input, o.cfg.Output, nil
}

func (o *options) newApp() (*app.App, error) {
	a, err := app.New(o.cfg, o.stdout, o.stderr)
	if err != nil {
		return nil, err
	}
	a.Version = version
	return a, nil
}
