package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChangeLogEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vfx_changelog_entries_total",
		Help: "Change log entries written, by entity type and action",
	}, []string{"entity_type", "action"})

	ChangeLogWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vfx_changelog_write_failures_total",
		Help: "Change log writes that failed and were dropped",
	}, []string{"entity_type"})

	UndoTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vfx_undo_total",
		Help: "Undo requests by entity type, action and outcome",
	}, []string{"entity_type", "action", "outcome"})

	UndoDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vfx_undo_duration_seconds",
		Help:    "Time to reverse one change log entry",
		Buckets: prometheus.DefBuckets,
	})

	ChangeFeedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vfx_change_feed_messages_total",
		Help: "Change feed messages consumed, by outcome",
	}, []string{"outcome"})
)

func label(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}

func IncChangeLogEntry(entityType, action string) {
	ChangeLogEntries.WithLabelValues(label(entityType), label(action)).Inc()
}

func IncChangeLogWriteFailure(entityType string) {
	ChangeLogWriteFailures.WithLabelValues(label(entityType)).Inc()
}

func ObserveUndo(entityType, action, outcome string, duration time.Duration) {
	UndoTotal.WithLabelValues(label(entityType), label(action), label(outcome)).Inc()
	UndoDuration.Observe(duration.Seconds())
}

func IncChangeFeedMessage(outcome string) {
	ChangeFeedMessages.WithLabelValues(label(outcome)).Inc()
}
