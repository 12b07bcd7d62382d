package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			metricPrefixOpt := WithMetricPrefix("test")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			customLabelsOpt := WithCustomLabels(map[string]string{"env": "test"})

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(metricPrefixOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(customLabelsOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then the metrics are registered under the crowdwatch namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.snapshotsReceived.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "crowdwatch_core_snapshots_received_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("ns"),
				WithSubsystem("sub"),
				WithMetricPrefix("p"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names carry the prefix and constant labels", func() {
				manager.ripplePulses.Inc()
				n, err := testutil.GatherAndCount(registry, "ns_sub_p_ripple_pulses_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording a snapshot with malformed records", func() {
			before := testutil.ToFloat64(globalManager.malformedRecords)
			RecordSnapshot(12, 2)

			Convey("Then the malformed counter and node gauge move", func() {
				So(testutil.ToFloat64(globalManager.malformedRecords), ShouldEqual, before+2)
				So(testutil.ToFloat64(globalManager.lastSnapshotNodes), ShouldEqual, 12)
			})
		})

		Convey("When recording reconcile operations", func() {
			before := testutil.ToFloat64(globalManager.reconcileOps.WithLabelValues("update"))
			RecordReconcile(1, 3, 0, 0.4)

			Convey("Then each kind is counted separately", func() {
				So(testutil.ToFloat64(globalManager.reconcileOps.WithLabelValues("update")), ShouldEqual, before+3)
			})
		})

		Convey("When recording stale results", func() {
			before := testutil.ToFloat64(globalManager.staleResults)
			RecordStaleResult()
			So(testutil.ToFloat64(globalManager.staleResults), ShouldEqual, before+1)
		})

		Convey("When recording the remaining families", func() {
			So(func() {
				RecordIngestError()
				UpdateAnnotationsActive(4)
				RecordSessionTransition("sos", "displayed")
				RecordSessionOutcome("sos", "cancelled")
				RecordAuxFetchFailure()
				RecordSearchIssued()
				RecordGeocodeLatency("forward", 12)
				RecordGeocodeFailure("reverse", "not_found")
				RecordPositionFailure("unavailable")
				RecordRipplePulse()
				RecordRippleCanceled()
				UpdateWSClients(2)
				RecordWSMessage()
				RecordWSDropped()
				RecordHTTPRequest("/sos", "POST", "202")
				RecordHTTPRequestDuration("/sos", "POST", "202", 3)
				UpdateQueueSize(1)
				UpdateQueueCapacity(16)
				UpdateQueueUtilization(0.0625)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(1)
				RecordWorkerProcessingLatency(1)
				RecordWorkerError()
				RecordErrorByComponent("ingest", "data_unavailable")
				RecordErrorByType("data_unavailable", "medium")
				RecordErrorByEndpoint("/search", "GET", "client_error")
				RecordErrorLatency("http", "client_error", 2)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
				RecordSystemGCPauseTime(0.5)
			}, ShouldNotPanic)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordSnapshot(1, 0)
		families, err := GetRegistry().Gather()

		Convey("Then it exposes only crowdwatch metrics", func() {
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "crowdwatch_"), ShouldBeTrue)
			}
		})
	})
}
