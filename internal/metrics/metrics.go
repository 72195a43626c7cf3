// Package metrics exposes Prometheus instrumentation for the trigger
// scheduler, the reply handler and the booking executor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Trigger execution outcomes.
const (
	OutcomeSent           = "sent"
	OutcomeRetry          = "retry"
	OutcomeFailed         = "failed"
	OutcomeSkippedReplied = "skipped_replied"
	OutcomeLostRace       = "lost_race"
)

var (
	TriggerExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salespipe_trigger_executions_total",
		Help: "Due triggers processed by the scheduler, by outcome.",
	}, []string{"outcome"})

	TriggerPollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "salespipe_trigger_poll_duration_seconds",
		Help:    "Duration of one scheduler poll.",
		Buckets: prometheus.DefBuckets,
	})

	Replies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salespipe_replies_total",
		Help: "Inbound messages answered by the reply handler, by channel.",
	}, []string{"channel"})

	GeneratorFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salespipe_generator_fallbacks_total",
		Help: "Replies that used the fixed fallback because generation failed.",
	})

	BookingActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salespipe_booking_actions_total",
		Help: "Booking actions executed from assistant replies, by action.",
	}, []string{"action"})

	TriggersCompletedOnReply = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salespipe_triggers_completed_on_reply_total",
		Help: "Triggers completed because the recipient replied.",
	})
)

// RecordTriggerOutcome counts one scheduler outcome.
func RecordTriggerOutcome(outcome string) {
	TriggerExecutions.WithLabelValues(outcome).Inc()
}

// StartPollTimer times one scheduler poll; call ObserveDuration when done.
func StartPollTimer() *prometheus.Timer {
	return prometheus.NewTimer(TriggerPollDuration)
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
