package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	service "github.com/okian/hepplot/internal/app"
	"github.com/okian/hepplot/internal/adapters/tabular"
	"github.com/okian/hepplot/internal/config"
	"github.com/okian/hepplot/pkg/logger"
)

func (c *cli) service(cmd *cobra.Command) *service.Service {
	return service.New(c.cfg,
		service.WithStdout(cmd.OutOrStdout()),
		service.WithLogger(logger.Named("hepplot")),
	)
}

// jobCmd runs job files of one kind, one after another.
func (c *cli) jobCmd(kind, short string) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " JOB.yaml...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			jobs, err := loadJobs(ctx, args)
			if err != nil {
				return err
			}
			for _, j := range jobs {
				if j.Kind != kind {
					return fmt.Errorf("%s: %w: %s job given to %s", j.Source, config.ErrInvalidConfig, j.Kind, kind)
				}
			}

			svc := c.service(cmd)
			var errs []error
			for _, j := range jobs {
				if err := svc.RunJob(ctx, j); err != nil {
					errs = append(errs, err)
				}
			}
			errs = append(errs, svc.Flush(ctx))
			return errors.Join(errs...)
		},
	}
}

func (c *cli) batchCmd() *cobra.Command {
	var flags struct {
		workers  int
		failFast bool
	}
	cmd := &cobra.Command{
		Use:   "batch JOB.yaml|DIR...",
		Short: "Run job files of any kind in parallel",
		Long: "batch runs every job file given, and every *.yaml or *.yml file in the\n" +
			"directories given, on a pool of workers.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			paths, err := expandJobPaths(args)
			if err != nil {
				return err
			}
			jobs, err := loadJobs(ctx, paths)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				c.cfg.Workers = flags.workers
			}
			if cmd.Flags().Changed("fail-fast") {
				c.cfg.FailFast = flags.failFast
			}
			if err := c.cfg.Validate(); err != nil {
				return err
			}

			svc := c.service(cmd)
			err = svc.RunBatch(ctx, jobs)
			return errors.Join(err, svc.Flush(ctx))
		},
	}
	f := cmd.Flags()
	f.IntVarP(&flags.workers, "workers", "w", 0, "jobs run at once (default from config)")
	f.BoolVar(&flags.failFast, "fail-fast", false, "stop at the first failed job")
	return cmd
}

func (c *cli) intersectCmd() *cobra.Command {
	var flags struct {
		x, y           string
		bx, by         string
		precision      float64
		maxIterations  int
		noBracketCheck bool
	}
	cmd := &cobra.Command{
		Use:   "intersect A B",
		Short: "Find where two tabulated curves cross",
		Long: "intersect reads one curve from each table and prints the x where they\n" +
			"cross, found by bisection over the shared x range.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("precision") {
				c.cfg.Solver.Precision = flags.precision
			}
			if cmd.Flags().Changed("max-iterations") {
				c.cfg.Solver.MaxIterations = flags.maxIterations
			}
			if flags.noBracketCheck {
				c.cfg.Solver.BracketCheck = false
			}
			if err := c.cfg.Validate(); err != nil {
				return err
			}

			a, err := tabular.ReadCurve(args[0], flags.x, flags.y)
			if err != nil {
				return err
			}
			bx, by := flags.bx, flags.by
			if bx == "" {
				bx = flags.x
			}
			if by == "" {
				by = flags.y
			}
			b, err := tabular.ReadCurve(args[1], bx, by)
			if err != nil {
				return err
			}

			svc := c.service(cmd)
			res, err := svc.Intersect(ctx, a, b)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "x: %s\niterations: %d\nconverged: %t\n",
				strconv.FormatFloat(res.X, 'f', -1, 64), res.Iterations, res.Converged)
			if err != nil {
				return err
			}
			return svc.Flush(ctx)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.x, "x", tabular.ColMass, "x column")
	f.StringVar(&flags.y, "y", tabular.ColCentral, "y column")
	f.StringVar(&flags.bx, "b-x", "", "x column of B (default --x)")
	f.StringVar(&flags.by, "b-y", "", "y column of B (default --y)")
	f.Float64Var(&flags.precision, "precision", 0, "stop when the bracket is narrower than this (default from config)")
	f.IntVar(&flags.maxIterations, "max-iterations", 0, "iteration cap (default from config)")
	f.BoolVar(&flags.noBracketCheck, "no-bracket-check", false, "search even without a sign change over the range")
	return cmd
}

func loadJobs(ctx context.Context, paths []string) ([]*config.Job, error) {
	jobs := make([]*config.Job, 0, len(paths))
	for _, p := range paths {
		j, err := config.LoadJob(ctx, p)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// expandJobPaths replaces each directory with the YAML files directly in it.
func expandJobPaths(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		st, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			out = append(out, a)
			continue
		}
		entries, err := os.ReadDir(a)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
				out = append(out, filepath.Join(a, e.Name()))
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no job files in %s", config.ErrInvalidConfig, strings.Join(args, ", "))
	}
	return out, nil
}
