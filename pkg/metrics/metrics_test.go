package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithLatencyBuckets([]float64{1, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.fits.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_fits_total")
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording a non-converged fit", func() {
			before := testutil.ToFloat64(globalManager.fitsNotConverged)
			RecordFit(200, false, 1.5)

			Convey("Then the non-converged counter moves", func() {
				So(testutil.ToFloat64(globalManager.fitsNotConverged), ShouldEqual, before+1)
			})
		})

		Convey("When recording a rejected report", func() {
			RecordReportRejected("illegal_score")
			So(testutil.ToFloat64(globalManager.reportsRejected.WithLabelValues("illegal_score")), ShouldBeGreaterThanOrEqualTo, 1)
		})

		Convey("When recording bouts by source", func() {
			before := testutil.ToFloat64(globalManager.boutsIngested.WithLabelValues("pool"))
			RecordBoutsIngested("pool", 10)
			So(testutil.ToFloat64(globalManager.boutsIngested.WithLabelValues("pool")), ShouldEqual, before+10)
		})

		Convey("Then the registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
