package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumi_messages_total",
			Help: "Total number of handled user messages labeled by verdict and plan",
		},
		[]string{"verdict", "plan"},
	)
	completionDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lumi_completion_duration_seconds",
			Help:    "Duration of chat completion calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	completionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumi_completion_errors_total",
			Help: "Total number of failed model calls labeled by kind",
		},
		[]string{"kind"},
	)
	trialRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lumi_trial_rejections_total",
			Help: "Total number of messages rejected because the trial quota was exhausted",
		},
	)
	grantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumi_grants_total",
			Help: "Total number of plan grants labeled by plan and source",
		},
		[]string{"plan", "source"},
	)
	supportMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumi_support_messages_total",
			Help: "Total number of scheduled support messages labeled by status",
		},
		[]string{"status"},
	)
	knownUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lumi_known_users",
			Help: "Current number of user records in the state table",
		},
	)
	usersByPlan = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lumi_users_by_plan",
			Help: "Number of users per effective plan",
		},
		[]string{"plan"},
	)
)

// RecordMessage increments the per-verdict message counter.
func RecordMessage(verdict, plan string) {
	if verdict == "" {
		verdict = "unknown"
	}
	if plan == "" {
		plan = "unknown"
	}

	messagesTotal.WithLabelValues(verdict, plan).Inc()
}

// RecordCompletion records a model call duration.
func RecordCompletion(duration time.Duration) {
	completionDurationSeconds.Observe(duration.Seconds())
}

// RecordCompletionError increments the failed model call counter.
func RecordCompletionError(kind string) {
	if kind == "" {
		kind = "unknown"
	}

	completionErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordTrialRejection counts a message rejected at the trial ceiling.
func RecordTrialRejection() {
	trialRejectionsTotal.Inc()
}

// RecordGrant counts a plan grant.
func RecordGrant(plan, source string) {
	if plan == "" {
		plan = "unknown"
	}
	if source == "" {
		source = "unknown"
	}

	grantsTotal.WithLabelValues(plan, source).Inc()
}

// RecordSupportMessage counts a scheduled support delivery attempt.
func RecordSupportMessage(status string) {
	if status == "" {
		status = "unknown"
	}

	supportMessagesTotal.WithLabelValues(status).Inc()
}

// PlanCounter reports how many users currently resolve to each plan.
type PlanCounter interface {
	CountByPlan() map[string]int
}

// PlanCollector periodically gathers per-plan user counts and emits gauge metrics.
type PlanCollector struct {
	source   PlanCounter
	interval time.Duration
}

// NewPlanCollector builds a collector polling the source at the given interval.
func NewPlanCollector(source PlanCounter, interval time.Duration) *PlanCollector {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &PlanCollector{source: source, interval: interval}
}

// Run polls the source until the context is cancelled.
func (c *PlanCollector) Run(ctx context.Context) {
	if c == nil || c.source == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counts := c.source.CountByPlan()
			total := 0
			for plan, n := range counts {
				usersByPlan.WithLabelValues(plan).Set(float64(n))
				total += n
			}
			knownUsers.Set(float64(total))
		}
	}
}
