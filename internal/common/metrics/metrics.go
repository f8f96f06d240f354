// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_total",
			Help: "Total number of notification dispatch attempts by outcome",
		},
		[]string{"event_type", "status"},
	)

	NotificationDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notification_dispatch_duration_seconds",
			Help: "Duration of notification dispatch in seconds",
		},
		[]string{"event_type"},
	)

	DigestPagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "digest_pages_total",
			Help: "Total number of digest batch pages processed",
		},
	)

	DigestMembersNotified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "digest_members_notified_total",
			Help: "Total number of members sent a board activity digest",
		},
	)

	DigestMembersSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_members_skipped_total",
			Help: "Total number of members skipped during digest runs",
		},
		[]string{"reason"},
	)
)
