package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a manager on its own registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(
			WithNamespace("test"),
			WithSubsystem("plots"),
			WithDurationBuckets([]float64{0.1, 1, 10}),
			WithConstLabels(map[string]string{"env": "test"}),
			WithPrometheusRegistry(registry),
		)
		So(m, ShouldNotBeNil)

		Convey("When recording job outcomes", func() {
			m.RecordJob("limit", StatusOK, 0.2)
			m.RecordJob("limit", StatusOK, 0.3)
			m.RecordJob("pulls", StatusFailed, 0.1)

			Convey("Then counters carry kind and status", func() {
				So(testutil.ToFloat64(m.jobs.WithLabelValues("limit", StatusOK)), ShouldEqual, 2)
				So(testutil.ToFloat64(m.jobs.WithLabelValues("pulls", StatusFailed)), ShouldEqual, 1)
			})

			Convey("Then names use the namespace and subsystem", func() {
				n, err := testutil.GatherAndCount(registry, "test_plots_jobs_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})
		})

		Convey("When recording solver and pipeline metrics", func() {
			m.RecordSolverIterations(12)
			m.RecordConvergenceWarning("observed")
			m.RecordBinsProcessed(40)
			m.RecordDomainError("bin_mismatch")
			m.RecordPlotWritten("pdf")
			m.UpdateQueueSize(3)
			m.UpdateWorkersActive(2)

			So(testutil.ToFloat64(m.convergenceWarnings.WithLabelValues("observed")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.binsProcessed), ShouldEqual, 40)
			So(testutil.ToFloat64(m.domainErrors.WithLabelValues("bin_mismatch")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.plots.WithLabelValues("pdf")), ShouldEqual, 1)
			So(testutil.ToFloat64(m.queueSize), ShouldEqual, 3)
			So(testutil.ToFloat64(m.workersActive), ShouldEqual, 2)
		})
	})
}

func TestGlobalRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		So(func() {
			RecordJob("postfit", StatusOK, 1)
			RecordPlotWritten("png")
			RecordSolverIterations(7)
			RecordConvergenceWarning("expected")
			RecordBinsProcessed(2)
			RecordDomainError("non_positive_background")
			UpdateQueueSize(0)
			UpdateWorkersActive(0)
		}, ShouldNotPanic)
		So(GetRegistry(), ShouldNotBeNil)
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given a recorded job on the global manager", t, func() {
		RecordJob("limit", StatusOK, 0.5)

		Convey("When the global manager is configured for a run", func() {
			Configure(
				WithSubsystem("plots"),
				WithDurationBuckets([]float64{1, 60}),
				WithConstLabels(map[string]string{"campaign": "run2"}),
				WithConstLabels(map[string]string{"run_id": "r1"}),
			)
			RecordJob("pulls", StatusOK, 2)
			path := filepath.Join(t.TempDir(), "run.prom")
			So(WriteTextfile(path, nil), ShouldBeNil)

			Convey("Then only the new run's series are written, with its labels", func() {
				b, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				out := string(b)
				So(out, ShouldContainSubstring,
					`hepplot_plots_jobs_total{campaign="run2",kind="pulls",run_id="r1",status="ok"} 1`)
				So(out, ShouldContainSubstring, `hepplot_plots_job_duration_seconds_bucket{campaign="run2",kind="pulls",run_id="r1",le="60"} 1`)
				So(out, ShouldNotContainSubstring, `kind="limit"`)
			})
		})
	})
}

func TestWriteTextfile(t *testing.T) {
	Convey("Given a registry with a recorded job", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(registry))
		m.RecordJob("limit", StatusOK, 0.5)

		Convey("When writing it to a textfile", func() {
			path := filepath.Join(t.TempDir(), "hepplot.prom")
			So(WriteTextfile(path, registry), ShouldBeNil)

			Convey("Then the exposition format is on disk", func() {
				b, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `hepplot_jobs_total{kind="limit",status="ok"} 1`)
			})
		})

		Convey("When the path is empty", func() {
			So(errors.Is(WriteTextfile("", registry), ErrNoTextfile), ShouldBeTrue)
		})

		Convey("When the directory does not exist", func() {
			err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"), registry)
			So(errors.Is(err, ErrWriteTextfile), ShouldBeTrue)
		})
	})
}
