package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	cycleRan     = "ran"
	cycleSkipped = "skipped"
)

// CronJobMetrics records sweep runs. A job run is one Job.Run call; a cycle
// is one attempt to run every registered job under the cron lock.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	cycles      *prometheus.CounterVec
}

// NewCronJobMetrics registers the sweep metrics. A nil registerer yields a
// no-op collector.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_runs_total",
			Help: "Sweep job runs, by job and outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cron_job_duration_seconds",
			Help:    "Duration of sweep job runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run of each sweep job.",
		}, []string{"job"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_cycles_total",
			Help: "Sweep cycles, by whether this worker held the lock.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess, m.cycles)
	return m
}

// ObserveRun records one job run. A nil err counts as success.
func (m *CronJobMetrics) ObserveRun(job string, d time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(d.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, "failure").Inc()
		return
	}
	m.runs.WithLabelValues(job, "success").Inc()
	m.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

// ObserveCycle counts a cycle; skipped means another worker held the lock.
func (m *CronJobMetrics) ObserveCycle(skipped bool) {
	if m == nil || m.cycles == nil {
		return
	}
	result := cycleRan
	if skipped {
		result = cycleSkipped
	}
	m.cycles.WithLabelValues(result).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
