// Package service runs plot jobs: it reads a job's tables, derives the plot
// content, draws it and records the outcome in the run report and metrics.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/hepplot/internal/adapters/mq/queue"
	"github.com/okian/hepplot/internal/adapters/mq/worker"
	"github.com/okian/hepplot/internal/adapters/render"
	"github.com/okian/hepplot/internal/adapters/report"
	"github.com/okian/hepplot/internal/adapters/tabular"
	"github.com/okian/hepplot/internal/config"
	"github.com/okian/hepplot/internal/domain/curve"
	"github.com/okian/hepplot/internal/domain/dedupe"
	"github.com/okian/hepplot/internal/domain/histo"
	"github.com/okian/hepplot/internal/domain/limit"
	"github.com/okian/hepplot/internal/domain/postfit"
	"github.com/okian/hepplot/internal/domain/pulls"
	"github.com/okian/hepplot/pkg/logger"
	"github.com/okian/hepplot/pkg/metrics"
)

// Domain error reasons used as metric labels.
const (
	reasonBinMismatch           = "bin_mismatch"
	reasonNonPositiveBackground = "non_positive_background"
)

// Service runs plot jobs for one process run.
type Service struct {
	cfg    *config.Config
	logger logger.Logger
	runID  string
	report *report.Report

	// Limit lines from parallel jobs must not interleave.
	outMu  sync.Mutex
	stdout io.Writer
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStdout sets where the mass-limit lines are printed.
func WithStdout(w io.Writer) Option {
	return func(s *Service) {
		if w != nil {
			s.stdout = w
		}
	}
}

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.runID = id
		}
	}
}

// New constructs a Service. A nil cfg means config.New defaults. The global
// metrics are reset for the new run.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg, stdout: os.Stdout}
	for _, opt := range opts {
		opt(s)
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger = s.logger.With(logger.String("run", s.runID))
	s.report = report.New(s.runID)
	metrics.Configure(
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithSubsystem(cfg.Metrics.Subsystem),
		metrics.WithDurationBuckets(cfg.Metrics.DurationBuckets),
		metrics.WithConstLabels(cfg.Metrics.Labels),
		metrics.WithConstLabels(map[string]string{"run_id": s.runID}),
	)
	return s
}

// RunID identifies this run in logs and the report.
func (s *Service) RunID() string { return s.runID }

// Report returns the outcomes recorded so far.
func (s *Service) Report() *report.Report { return s.report }

// RunJob runs one job and records its outcome.
func (s *Service) RunJob(ctx context.Context, j *config.Job) error {
	return s.run(ctx, uuid.NewString(), j)
}

// RunBatch runs jobs on the worker pool, cfg.Workers at a time. A job whose
// plot path was already claimed by an earlier job is skipped. Every job is
// recorded; the returned error joins the failures and skips.
func (s *Service) RunBatch(ctx context.Context, jobs []*config.Job) error {
	tasks, skipped := s.plan(ctx, jobs)

	q := queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
	pool := worker.NewPool(s.cfg.Workers, q,
		worker.HandlerFunc(func(ctx context.Context, t queue.Task) error {
			return s.run(ctx, t.ID, t.Job)
		}),
		worker.WithName("batch"),
		worker.WithLogger(s.logger.Named("batch")),
		worker.WithFailFast(s.cfg.FailFast),
	)

	s.logger.Info(ctx, "batch started",
		logger.Int("jobs", len(tasks)),
		logger.Int("skipped", len(skipped)),
		logger.Int("workers", s.cfg.Workers),
		logger.Bool("fail_fast", s.cfg.FailFast),
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer func() { _ = q.Close() }()
		for _, t := range tasks {
			if err := q.Put(gctx, t); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error { return pool.Run(gctx) })
	err := g.Wait()
	return errors.Join(append(skipped, err)...)
}

// plan assigns task IDs and drops jobs that would overwrite an earlier
// job's plot.
func (s *Service) plan(ctx context.Context, jobs []*config.Job) ([]queue.Task, []error) {
	claims := dedupe.NewInMemoryDeduper()
	tasks := make([]queue.Task, 0, len(jobs))
	var skipped []error
	for _, j := range jobs {
		id := uuid.NewString()
		out := filepath.Clean(j.OutputPath(s.cfg.OutputDir, s.cfg.OutputFormat))
		prev, ok := claims.Claim(ctx, out, id)
		if ok {
			tasks = append(tasks, queue.Task{ID: id, Job: j})
			continue
		}
		err := fmt.Errorf("%w: %s from %s, already written by job %s", ErrDuplicateOutput, out, j.Source, prev)
		s.logger.Warn(ctx, "job skipped", logger.String("job", id), logger.Error(err))
		metrics.RecordJob(j.Kind, metrics.StatusSkipped, 0)
		s.report.Add(report.Job{ID: id, Source: j.Source, Kind: j.Kind, Error: err.Error()})
		skipped = append(skipped, err)
	}
	return tasks, skipped
}

// Intersect finds where two curves cross with the configured solver.
func (s *Service) Intersect(ctx context.Context, a, b curve.SampledCurve) (curve.Result, error) {
	res, err := curve.FindIntersection(a, b, s.cfg.SolverOptions()...)
	if err != nil {
		return res, err
	}
	metrics.RecordSolverIterations(res.Iterations)
	if w := res.Warning(); w != nil {
		metrics.RecordConvergenceWarning("intersect")
		s.logger.Warn(ctx, "intersection not converged", logger.Error(w))
	}
	return res, nil
}

// Flush writes the metrics textfile and the report when they are configured.
func (s *Service) Flush(ctx context.Context) error {
	var errs []error
	if s.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(s.cfg.MetricsFile, nil); err != nil {
			errs = append(errs, err)
		} else {
			s.logger.Debug(ctx, "metrics written", logger.String("path", s.cfg.MetricsFile))
		}
	}
	if s.cfg.ReportFile != "" {
		if err := s.report.WriteFile(s.cfg.ReportFile); err != nil {
			errs = append(errs, err)
		} else {
			s.logger.Info(ctx, "report written", logger.String("path", s.cfg.ReportFile))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) run(ctx context.Context, id string, j *config.Job) error {
	start := time.Now()
	log := s.logger.With(logger.String("job", id), logger.String("kind", j.Kind))
	out := j.OutputPath(s.cfg.OutputDir, s.cfg.OutputFormat)
	rec := report.Job{ID: id, Source: j.Source, Kind: j.Kind, Output: out}
	log.Debug(ctx, "job started", logger.String("input", j.Input()), logger.String("output", out))

	var err error
	switch j.Kind {
	case config.KindLimit:
		rec.Limit, err = s.runLimit(ctx, log, j, out)
	case config.KindPostfit:
		rec.Postfit, err = s.runPostfit(ctx, log, j, out)
	case config.KindPulls:
		rec.Pulls, err = s.runPulls(ctx, log, j, out)
	default:
		err = fmt.Errorf("%w: %q", config.ErrUnknownKind, j.Kind)
	}

	rec.Duration = time.Since(start)
	status := metrics.StatusOK
	if err != nil {
		err = fmt.Errorf("%s %s: %w", j.Kind, cmp.Or(j.Source, j.Input()), err)
		status = metrics.StatusFailed
		rec.Output = ""
		rec.Error = err.Error()
		log.Error(ctx, "job failed", logger.Error(err))
	} else {
		metrics.RecordPlotWritten(strings.TrimPrefix(filepath.Ext(out), "."))
		log.Info(ctx, "plot written", logger.String("output", out), logger.Duration("took", rec.Duration))
	}
	metrics.RecordJob(j.Kind, status, rec.Duration.Seconds())
	s.report.Add(rec)
	return err
}

func (s *Service) runLimit(ctx context.Context, log logger.Logger, j *config.Job, out string) (*report.Limit, error) {
	rows, err := tabular.ReadLimits(j.LimitFile)
	if err != nil {
		return nil, err
	}
	bands, err := limit.BuildBands(rows)
	if err != nil {
		return nil, err
	}

	lp := render.LimitPlot{
		Bands:         bands,
		TheoryErr:     j.TheoryErr,
		ExpectedTitle: j.ExpectedTitle,
		TheoryTitle:   j.TheoryTitle,
		XTitle:        j.XAxisTitle,
		YTitle:        j.YAxisTitle,
		LogY:          j.LogY,
	}
	pal := render.Palette(len(j.Compare))
	for i, g := range j.Compare {
		c, err := tabular.ReadCurve(g.File, tabular.ColMass, tabular.ColCentral)
		if err != nil {
			return nil, fmt.Errorf("compare_graphs[%d]: %w", i, err)
		}
		lp.Compare = append(lp.Compare, render.Series{
			Title: g.Title,
			Color: render.ParseColor(g.Color, pal[i]),
			Curve: c,
		})
	}

	var res *report.Limit
	if j.TheoryFile != "" {
		th, err := tabular.ReadTheory(j.TheoryFile, j.TheoryErr)
		if err != nil {
			return nil, err
		}
		lp.Theory = th
		m, err := s.massLimits(ctx, log, bands, th)
		if err != nil {
			return nil, err
		}
		res = report.NewLimit(m)
	}

	if err := render.Limit(out, lp, style(j)); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) massLimits(ctx context.Context, log logger.Logger, b limit.Bands, th limit.Theory) (limit.MassLimit, error) {
	m, err := limit.MassLimits(ctx, b, th, s.cfg.SolverOptions()...)
	if err != nil {
		return m, err
	}
	metrics.RecordSolverIterations(m.Expected.Iterations)
	metrics.RecordSolverIterations(m.Observed.Iterations)
	for name, w := range m.Warnings() {
		metrics.RecordConvergenceWarning(name)
		log.Warn(ctx, "mass limit not converged", logger.String("curve", name), logger.Error(w))
	}
	log.Info(ctx, "mass limits",
		logger.Float64("expected", m.Expected.X),
		logger.Float64("observed", m.Observed.X),
	)

	s.outMu.Lock()
	defer s.outMu.Unlock()
	if err := report.WriteLimits(s.stdout, m); err != nil {
		return m, fmt.Errorf("print limits: %w", err)
	}
	return m, nil
}

func (s *Service) runPostfit(ctx context.Context, log logger.Logger, j *config.Job, out string) (*report.Postfit, error) {
	specs := make([]tabular.SampleSpec, len(j.Backgrounds))
	colors := make([]color.Color, len(j.Backgrounds))
	pal := render.Palette(len(j.Backgrounds))
	for i, b := range j.Backgrounds {
		specs[i] = tabular.SampleSpec{Name: b.Name, Title: cmp.Or(b.Title, b.Name)}
		colors[i] = render.ParseColor(b.Color, pal[i])
	}

	in, err := tabular.ReadPostfit(j.FileName, j.Channel, specs, j.Signal.Name)
	if err != nil {
		return nil, err
	}
	d, err := postfit.Build(in)
	if err != nil {
		recordDomainError(err)
		return nil, err
	}
	metrics.RecordBinsProcessed(in.Data.Len())
	log.Debug(ctx, "post-fit distribution built",
		logger.String("channel", j.Channel),
		logger.Int("bins", in.Data.Len()),
		logger.Int("samples", len(d.Stack)),
	)

	err = render.Postfit(out, render.PostfitPlot{
		Dist:        d,
		Colors:      colors,
		SignalTitle: cmp.Or(j.Signal.Title, j.Signal.Name),
		XTitle:      j.XAxisTitle,
		YTitle:      j.YAxisTitle,
		LogY:        j.LogY,
	}, style(j))
	if err != nil {
		return nil, err
	}
	return report.NewPostfit(d.Ratios), nil
}

func (s *Service) runPulls(ctx context.Context, log logger.Logger, j *config.Job, out string) (*pulls.Summary, error) {
	rows, err := tabular.ReadPulls(j.FileName)
	if err != nil {
		return nil, err
	}
	l, err := pulls.Build(rows)
	if err != nil {
		return nil, err
	}
	sum, err := pulls.Summarize(rows)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "pulls summary",
		logger.Int("parameters", sum.Parameters),
		logger.Int("b_outside_1sigma", sum.BackgroundOnly.Outside1Sig),
		logger.Int("sb_outside_1sigma", sum.SignalBackground.Outside1Sig),
		logger.String("largest", sum.BackgroundOnly.LargestLabel),
	)

	if err := render.Pulls(out, render.PullsPlot{Layout: l, XTitle: j.XAxisTitle}, style(j)); err != nil {
		return nil, err
	}
	return &sum, nil
}

func recordDomainError(err error) {
	switch {
	case errors.Is(err, histo.ErrBinMismatch):
		metrics.RecordDomainError(reasonBinMismatch)
	case errors.Is(err, histo.ErrNonPositiveBackground):
		metrics.RecordDomainError(reasonNonPositiveBackground)
	}
}

func style(j *config.Job) render.Style {
	return render.Style{
		Upper:         j.Texts.Upper,
		Lower:         j.Texts.Lower,
		RunParameters: j.Texts.RunParameters,
		Align:         j.Texts.Align,
	}
}
