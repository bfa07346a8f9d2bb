// Command hepplot draws exclusion-limit, post-fit and pulls plots from fit
// tables and finds where sampled curves cross.
//
// Usage:
//
//	hepplot limit   JOB.yaml...
//	hepplot postfit JOB.yaml...
//	hepplot pulls   JOB.yaml...
//	hepplot batch   JOB.yaml|DIR... [--workers=N] [--fail-fast]
//	hepplot intersect A.csv B.csv [--x=mass --y=central]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/hepplot/internal/config"
	"github.com/okian/hepplot/pkg/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// cli holds the flags shared by every command and the loaded config.
type cli struct {
	configPath string
	outputDir  string
	format     string

	cfg *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "hepplot",
		Short: "Plots and mass limits from HEP fit results",
		Long: "hepplot draws exclusion limits, post-fit distributions and nuisance pulls\n" +
			"from CSV or XLSX fit tables, and solves where two sampled curves cross.",
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&c.configPath, "config", "c", "", "process config file (default $"+config.EnvConfig+")")
	f.StringVarP(&c.outputDir, "output-dir", "o", "", "directory for plots (default next to each input)")
	f.StringVarP(&c.format, "format", "f", "", "plot format: pdf, png, svg, eps, jpg, tif")

	root.AddCommand(
		c.jobCmd(config.KindLimit, "Draw an exclusion limit and print the mass limits"),
		c.jobCmd(config.KindPostfit, "Draw a post-fit distribution with its ratio pad"),
		c.jobCmd(config.KindPulls, "Draw nuisance-parameter pulls"),
		c.batchCmd(),
		c.intersectCmd(),
	)
	return root
}

// setup loads the process config, applies flag overrides and starts logging.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Context(), c.configPath)
	if err != nil {
		return err
	}
	if c.outputDir != "" {
		cfg.OutputDir = c.outputDir
	}
	if c.format != "" {
		cfg.OutputFormat = c.format
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	err = logger.Init(
		logger.WithWriter(cmd.ErrOrStderr()),
		logger.WithFormat(cfg.LogFormat),
		logger.WithLevel(cfg.LogLevel),
	)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	c.cfg = cfg
	return nil
}
