package metrics

import (
	"database/sql"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tga-backend/internal/shared/telemetry"
)

var (
	registry = prometheus.NewRegistry()

	jobsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tga",
		Name:      "jobs_submitted_total",
		Help:      "Total jobs accepted for processing.",
	})
	jobsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tga",
		Name:      "jobs_finished_total",
		Help:      "Total jobs that reached a terminal state, by outcome.",
	}, []string{"outcome"})
	jobsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tga",
		Name:      "jobs_running",
		Help:      "Jobs currently executing in this process.",
	})
	violationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tga",
		Name:      "compliance_violations_total",
		Help:      "Total compliance violations reported.",
	})
	jobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tga",
		Name:      "job_duration_seconds",
		Help:      "Wall time of a job from start to terminal state.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})
	stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tga",
		Name:      "stage_duration_seconds",
		Help:      "Wall time of a single stage, by stage key and outcome.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2.5, 10),
	}, []string{"stage", "outcome"})
	remotePolls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tga",
		Name:      "remote_polls_total",
		Help:      "Status polls issued against the design-automation service, by reported state.",
	}, []string{"state"})
	queueMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tga",
		Name:      "queue_messages_total",
		Help:      "Queue messages handled by workers, by result.",
	}, []string{"result"})
)

// Queue message results.
const (
	MessageReceived      = "received"
	MessageCompleted     = "completed"
	MessageSkipped       = "skipped"
	MessageFailed        = "failed"
	MessageUnrecoverable = "unrecoverable"
)

// Outcome labels for finished jobs and stages.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

func init() {
	registry.MustRegister(
		jobsSubmitted,
		jobsFinished,
		jobsRunning,
		violationsTotal,
		jobDuration,
		stageDuration,
		remotePolls,
		queueMessages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry exposes the collector registry, mainly for tests.
func Registry() *prometheus.Registry {
	return registry
}

// IncJobSubmitted increments the submitted counter.
func IncJobSubmitted() {
	jobsSubmitted.Inc()
}

// JobStarted marks a job as running and returns a func that records its
// outcome and duration.
func JobStarted() func(outcome string) {
	start := time.Now()
	jobsRunning.Inc()
	return func(outcome string) {
		jobsRunning.Dec()
		jobsFinished.WithLabelValues(outcome).Inc()
		jobDuration.Observe(time.Since(start).Seconds())
	}
}

// ObserveStage records one stage execution.
func ObserveStage(stage, outcome string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	stageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

// AddViolations adds n reported compliance violations.
func AddViolations(n int) {
	if n > 0 {
		violationsTotal.Add(float64(n))
	}
}

// IncRemotePoll counts a status poll and the state it returned.
func IncRemotePoll(state string) {
	remotePolls.WithLabelValues(state).Inc()
}

// IncQueueMessage counts a worker queue message by result.
func IncQueueMessage(result string) {
	queueMessages.WithLabelValues(result).Inc()
}

// WatchDB exports pool statistics of db under the given name. Registering
// the same name twice keeps the first pool.
func WatchDB(db *sql.DB, name string) {
	err := registry.Register(collectors.NewDBStatsCollector(db, name))
	var dup prometheus.AlreadyRegisteredError
	if err != nil && !errors.As(err, &dup) {
		telemetry.Warn("metrics.db_register_failed", map[string]any{"db": name, "err": err})
	}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
