package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline run metrics
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "profiler_runs_started_total",
			Help: "Total number of profile pipeline runs accepted",
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profiler_runs_completed_total",
			Help: "Total number of profile pipeline runs finished, by outcome",
		},
		[]string{"outcome"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "profiler_run_duration_seconds",
			Help:    "End-to-end pipeline run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)

	// Stage metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "profiler_stage_duration_seconds",
			Help:    "External call stage duration in seconds, retries included",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"stage", "status"},
	)

	StageRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profiler_stage_retries_total",
			Help: "Total number of retry waits per stage and error kind",
		},
		[]string{"stage", "kind"},
	)

	ResearchDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "profiler_research_degraded_total",
			Help: "Runs that continued without research text",
		},
	)
)
