package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created and registered", func() {
				So(manager, ShouldNotBeNil)
				manager.assignments.WithLabelValues("High").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithLatencyBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metric names should carry the namespace", func() {
				manager.reassignments.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_reassignments_total")
				So(manager.latencyBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
			})
		})

		Convey("When latency buckets are unsorted", func() {
			manager := NewManager(
				WithLatencyBuckets([]float64{5, 1}),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then the millisecond defaults are kept", func() {
				So(manager.latencyBuckets, ShouldResemble, defaultLatencyBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording assignments", func() {
			before := testutil.ToFloat64(globalManager.assignments.WithLabelValues("Low"))
			RecordAssignment("Low")
			RecordAssignment("Low")

			Convey("Then the priority counter should advance", func() {
				So(testutil.ToFloat64(globalManager.assignments.WithLabelValues("Low")), ShouldEqual, before+2)
			})
		})

		Convey("When recording completions", func() {
			onTime := testutil.ToFloat64(globalManager.completions.WithLabelValues("on_time"))
			late := testutil.ToFloat64(globalManager.completions.WithLabelValues("late"))
			RecordCompletion(true)
			RecordCompletion(false)
			RecordCompletion(false)

			Convey("Then on-time and late are counted separately", func() {
				So(testutil.ToFloat64(globalManager.completions.WithLabelValues("on_time")), ShouldEqual, onTime+1)
				So(testutil.ToFloat64(globalManager.completions.WithLabelValues("late")), ShouldEqual, late+2)
			})
		})

		Convey("When recording learning passes", func() {
			RecordLearningPass(true, 7)

			Convey("Then the affinity gauge reflects the last rebuild", func() {
				So(testutil.ToFloat64(globalManager.learnedAffinities), ShouldEqual, 7)
			})

			Convey("And a skipped pass leaves the gauge alone", func() {
				RecordLearningPass(false, 0)
				So(testutil.ToFloat64(globalManager.learnedAffinities), ShouldEqual, 7)
			})
		})

		Convey("When recording persistence writes", func() {
			before := testutil.ToFloat64(globalManager.persistWrites.WithLabelValues("roster", "error"))
			RecordPersist("roster", errors.New("disk full"), 1.5)

			Convey("Then failures are labelled as errors", func() {
				So(testutil.ToFloat64(globalManager.persistWrites.WithLabelValues("roster", "error")), ShouldEqual, before+1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateOpenTasks(4)
			UpdateEmployeesByAvailability("Free", 12)
			UpdateQueueSize(3)
			UpdateLeaderboardEntries(9)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.openTasks), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.employeesByAvailability.WithLabelValues("Free")), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.leaderboardEntries), ShouldEqual, 9)
			})
		})

		Convey("When recording the remaining helpers", func() {
			So(func() {
				RecordMatch("matched", 1.2)
				RecordMatchScore(1.1)
				RecordRejection("assign", "unavailable")
				RecordProgressUpdate()
				RecordReassignment()
				UpdateTotalEmployees(20)
				RecordIdempotentReplay()
				UpdateQueueCapacity(100)
				RecordQueueDropped()
				UpdateWorkerCount(2)
				RecordLeaderboardUpdate()
				RecordWorkerProcessingLatency(0.3)
				RecordHTTPRequest("/tasks", "POST", "201")
				RecordHTTPRequestDuration("/tasks", "POST", "201", 2.0)
				RecordErrorByComponent("api", "bad_request")
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})

		Convey("When updating system gauges", func() {
			UpdateSystemMemoryUsage(4096)
			UpdateSystemGoroutineCount(17)

			Convey("Then they reflect the process", func() {
				So(testutil.ToFloat64(globalManager.systemMemoryUsage), ShouldEqual, 4096)
				So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldEqual, 17)
			})
		})

		Convey("Then the registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
