package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/hepplot/internal/app"
	"github.com/okian/hepplot/internal/adapters/mq/worker"
	"github.com/okian/hepplot/internal/adapters/report"
	"github.com/okian/hepplot/internal/config"
	"github.com/okian/hepplot/internal/domain/curve"
	"github.com/okian/hepplot/internal/domain/histo"
	"github.com/okian/hepplot/pkg/logger"
	"github.com/okian/hepplot/pkg/metrics"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

const (
	limitsCSV = `mass,central,observed,low_68,high_68,low_95,high_95
1,0.5,0.6,0.1,0.2,0.2,0.4
2,0.2,0.25,0.05,0.08,0.1,0.15
3,0.1,0.09,0.02,0.04,0.05,0.08
`
	theoryCSV = `mass,central,err
1,2,0.2
2,0.3,0.03
3,0.01,0.001
`
	postfitCSV = `xlow,xhigh,data,data_err,total_background,total_background_err,ttbar,wjets,zprime,zprime_prefit
1.0,1.5,10,3,8,1,5,3,1,2
1.5,2.5,4,2,5,1,3,2,1,2
`
	pullsCSV = `label,postfit_b,postfit_b_up,postfit_b_down,postfit_s,postfit_s_up,postfit_s_down
lumi,0.1,0.9,0.8,0.2,0.95,0.9
jes,-1.5,0.5,0.6,-1.1,0.4,0.5
`
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newJob(t *testing.T, kind string) *config.Job {
	t.Helper()
	j, err := config.NewJob(kind)
	if err != nil {
		t.Fatal(err)
	}
	return j
}

type fixture struct {
	dir     string
	cfg     *config.Config
	stdout  *bytes.Buffer
	limit   *config.Job
	postfit *config.Job
	pulls   *config.Job
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	f := &fixture{dir: dir, cfg: config.New(), stdout: &bytes.Buffer{}}
	f.cfg.OutputDir = filepath.Join(dir, "plots")
	f.cfg.OutputFormat = "png"
	f.cfg.Workers = 2

	f.limit = newJob(t, config.KindLimit)
	f.limit.LimitFile = writeFile(t, dir, "limits.csv", limitsCSV)
	f.limit.TheoryFile = writeFile(t, dir, "theory.csv", theoryCSV)
	f.limit.TheoryErr = true
	f.limit.Compare = []config.CompareGraph{{File: f.limit.LimitFile, Title: "2016", Color: "#1f77b4"}}

	f.postfit = newJob(t, config.KindPostfit)
	f.postfit.FileName = writeFile(t, dir, "fitdiag.csv", postfitCSV)
	f.postfit.Channel = "muon"
	f.postfit.Backgrounds = []config.Sample{
		{Name: "ttbar", Title: "t#bar{t}"},
		{Name: "wjets", Color: "#ff0000"},
	}
	f.postfit.Signal = config.Sample{Name: "zprime", Title: "Z' 2 TeV"}

	f.pulls = newJob(t, config.KindPulls)
	f.pulls.FileName = writeFile(t, dir, "pulls.csv", pullsCSV)
	return f
}

func (f *fixture) service() *service.Service {
	return service.New(f.cfg, service.WithStdout(f.stdout), service.WithRunID("run-1"))
}

func TestService_New(t *testing.T) {
	Convey("Given a service with no options", t, func() {
		svc := service.New(nil)

		Convey("Then it gets a run ID and an empty report", func() {
			So(svc.RunID(), ShouldNotBeEmpty)
			So(svc.Report().RunID, ShouldEqual, svc.RunID())
			So(svc.Report().Jobs, ShouldBeEmpty)
		})
	})
}

func TestService_RunJob(t *testing.T) {
	Convey("Given tables for every job kind", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		svc := f.service()

		Convey("When the limit job runs", func() {
			err := svc.RunJob(ctx, f.limit)
			So(err, ShouldBeNil)

			Convey("Then the mass limits are printed and recorded", func() {
				So(f.stdout.String(), ShouldStartWith, "expected: 2.5")
				So(f.stdout.String(), ShouldContainSubstring, "\nobserved: 2.")

				jobs := svc.Report().Jobs
				So(jobs, ShouldHaveLength, 1)
				So(jobs[0].Kind, ShouldEqual, config.KindLimit)
				So(jobs[0].Limit, ShouldNotBeNil)
				So(jobs[0].Limit.Expected.Mass, ShouldAlmostEqual, 2.526, 0.01)
				So(jobs[0].Limit.Observed.Mass, ShouldAlmostEqual, 2.385, 0.01)
				So(jobs[0].Limit.Expected.Converged, ShouldBeTrue)
			})

			Convey("Then the plot is named after the limit table", func() {
				_, err := os.Stat(filepath.Join(f.cfg.OutputDir, "limits.png"))
				So(err, ShouldBeNil)
			})
		})

		Convey("When the jobs write the default output format", func() {
			f.cfg.OutputFormat = config.New().OutputFormat
			svc := f.service()
			So(svc.RunJob(ctx, f.limit), ShouldBeNil)
			So(svc.RunJob(ctx, f.postfit), ShouldBeNil)

			Convey("Then PDFs carrying the experiment label are written", func() {
				So(f.limit.Texts.Upper, ShouldEqual, "CMS")
				for _, name := range []string{"limits.pdf", "muon.pdf"} {
					st, err := os.Stat(filepath.Join(f.cfg.OutputDir, name))
					So(err, ShouldBeNil)
					So(st.Size(), ShouldBeGreaterThan, 0)
				}
			})
		})

		Convey("When the limit job has no theory", func() {
			f.limit.TheoryFile = ""
			So(svc.RunJob(ctx, f.limit), ShouldBeNil)

			Convey("Then only the plot is produced", func() {
				So(f.stdout.Len(), ShouldEqual, 0)
				So(svc.Report().Jobs[0].Limit, ShouldBeNil)
			})
		})

		Convey("When the post-fit job runs", func() {
			So(svc.RunJob(ctx, f.postfit), ShouldBeNil)

			Convey("Then the ratio bins are recorded and the plot is named after the channel", func() {
				pf := svc.Report().Jobs[0].Postfit
				So(pf, ShouldNotBeNil)
				So(pf.Bins, ShouldHaveLength, 2)
				So(pf.Bins[0].Ratio, ShouldAlmostEqual, 1.25, 1e-12)
				So(pf.Bins[1].Ratio, ShouldAlmostEqual, 0.8, 1e-12)

				_, err := os.Stat(filepath.Join(f.cfg.OutputDir, "muon.png"))
				So(err, ShouldBeNil)
			})
		})

		Convey("When the post-fit background has an empty bin", func() {
			f.postfit.FileName = writeFile(t, f.dir, "empty.csv",
				"xlow,xhigh,data,data_err,total_background,total_background_err,ttbar\n"+
					"0,1,3,1,0,0,0\n")
			f.postfit.Backgrounds = []config.Sample{{Name: "ttbar"}}
			f.postfit.Signal = config.Sample{}
			err := svc.RunJob(ctx, f.postfit)

			Convey("Then the job fails with a domain error", func() {
				So(errors.Is(err, histo.ErrDomain), ShouldBeTrue)
				So(errors.Is(err, histo.ErrNonPositiveBackground), ShouldBeTrue)
				jobs := svc.Report().Jobs
				So(jobs[0].Error, ShouldNotBeEmpty)
				So(jobs[0].Output, ShouldBeEmpty)
			})

			Convey("Then the rejection is counted by reason", func() {
				const want = `
# HELP hepplot_domain_errors_total Inputs rejected by the ratio pipeline, by reason
# TYPE hepplot_domain_errors_total counter
hepplot_domain_errors_total{reason="non_positive_background",run_id="run-1"} 1
`
				err := testutil.GatherAndCompare(metrics.GetRegistry(), strings.NewReader(want), "hepplot_domain_errors_total")
				So(err, ShouldBeNil)
			})
		})

		Convey("When the pulls job runs", func() {
			So(svc.RunJob(ctx, f.pulls), ShouldBeNil)

			Convey("Then the summary is recorded", func() {
				sum := svc.Report().Jobs[0].Pulls
				So(sum, ShouldNotBeNil)
				So(sum.Parameters, ShouldEqual, 2)
				So(sum.BackgroundOnly.LargestLabel, ShouldEqual, "jes")
			})
		})

		Convey("When an input is missing", func() {
			f.pulls.FileName = filepath.Join(f.dir, "nope.csv")
			err := svc.RunJob(ctx, f.pulls)

			Convey("Then the error names the input", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "nope.csv")
			})
		})

		Convey("When the kind is unknown", func() {
			err := svc.RunJob(ctx, &config.Job{Kind: "spectrum"})
			So(errors.Is(err, config.ErrUnknownKind), ShouldBeTrue)
		})
	})
}

func TestService_RunBatch(t *testing.T) {
	Convey("Given three good jobs and a broken one", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		broken := newJob(t, config.KindPulls)
		broken.FileName = filepath.Join(f.dir, "missing.csv")
		jobs := []*config.Job{f.limit, f.postfit, broken, f.pulls}

		Convey("When they run as a batch", func() {
			svc := f.service()
			err := svc.RunBatch(ctx, jobs)

			Convey("Then every job is recorded and only the broken one fails", func() {
				So(err, ShouldNotBeNil)
				var te *worker.TaskError
				So(errors.As(err, &te), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "missing.csv")

				rec := svc.Report().Jobs
				So(rec, ShouldHaveLength, 4)
				failed := 0
				for _, j := range rec {
					if j.Error != "" {
						failed++
					}
				}
				So(failed, ShouldEqual, 1)
				So(f.stdout.String(), ShouldStartWith, "expected: ")
			})
		})

		Convey("When two jobs would write the same plot", func() {
			svc := f.service()
			err := svc.RunBatch(ctx, []*config.Job{f.pulls, f.pulls})

			Convey("Then the second is skipped", func() {
				So(errors.Is(err, service.ErrDuplicateOutput), ShouldBeTrue)
				rec := svc.Report().Jobs
				So(rec, ShouldHaveLength, 2)
				So(rec[0].Error, ShouldContainSubstring, "duplicate plot output")
				So(rec[1].Error, ShouldBeEmpty)
			})
		})

		Convey("When fail-fast is on with one worker", func() {
			f.cfg.Workers = 1
			f.cfg.FailFast = true
			svc := f.service()
			err := svc.RunBatch(ctx, []*config.Job{broken, f.pulls})

			Convey("Then the batch stops at the failure", func() {
				So(err, ShouldNotBeNil)
				So(svc.Report().Jobs, ShouldHaveLength, 1)
			})
		})
	})
}

func TestService_Intersect(t *testing.T) {
	Convey("Given y=x and y=5 on [0,10]", t, func() {
		a, err := curve.FromXY([]float64{0, 10}, []float64{0, 10})
		So(err, ShouldBeNil)
		b, err := curve.FromXY([]float64{0, 10}, []float64{5, 5})
		So(err, ShouldBeNil)

		res, err := service.New(nil).Intersect(context.Background(), a, b)
		So(err, ShouldBeNil)
		So(res.X, ShouldAlmostEqual, 5, 0.01)
		So(res.Warning(), ShouldBeNil)
	})
}

func TestService_Flush(t *testing.T) {
	Convey("Given a run with metrics and report files configured", t, func() {
		ctx := context.Background()
		f := newFixture(t)
		f.cfg.MetricsFile = filepath.Join(f.dir, "hepplot.prom")
		f.cfg.ReportFile = filepath.Join(f.dir, "report.yaml")
		svc := f.service()
		So(svc.RunJob(ctx, f.pulls), ShouldBeNil)

		Convey("When flushed", func() {
			So(svc.Flush(ctx), ShouldBeNil)

			Convey("Then both files are written", func() {
				prom, err := os.ReadFile(f.cfg.MetricsFile)
				So(err, ShouldBeNil)
				So(string(prom), ShouldContainSubstring, "hepplot_jobs_total")

				r, err := report.Read(f.cfg.ReportFile)
				So(err, ShouldBeNil)
				So(r.RunID, ShouldEqual, "run-1")
				So(r.Jobs, ShouldHaveLength, 1)
			})
		})
	})
}
