package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videorag_jobs_processed_total",
		Help: "Total number of indexing jobs processed, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "videorag_stage_duration_seconds",
		Help:    "Duration of indexing pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	ShotsDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videorag_shots_detected_total",
		Help: "Total raw shot boundaries reported by the detector",
	})

	SegmentsEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videorag_segments_emitted_total",
		Help: "Total segments emitted by the duration policy",
	})

	// Policy drops are designed outcomes, not failures; counting them per
	// reason keeps the raw-vs-emitted gap observable.
	SegmentsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videorag_segments_dropped_total",
		Help: "Total shots or sub-segments dropped by the duration policy, by reason",
	}, []string{"reason"})

	SegmentsMaterializedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videorag_segments_materialized_total",
		Help: "Total segment clips successfully written",
	})

	SegmentExtractFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videorag_segment_extract_failures_total",
		Help: "Total per-segment clip extractions that failed and were skipped",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "videorag_active_workers",
		Help: "Number of workers currently running the indexing pipeline",
	})
)

const (
	DropReasonShortShot         = "short_shot"
	DropReasonTrailingRemainder = "trailing_remainder"
)
