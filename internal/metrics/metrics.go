// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BroadcastsTotal counts signed-transaction submissions by outcome
	// (accepted, rejected).
	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_broadcasts_total",
		Help: "Signed transaction submissions by outcome.",
	}, []string{"outcome"})

	// RecordWriteFailures counts ledger inserts that failed after a
	// successful on-chain submission. These are reconciled by the webhook.
	RecordWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_record_write_failures_total",
		Help: "Ledger inserts that failed after a successful broadcast.",
	})

	// WebhooksTotal counts inbound chain-activity deliveries by outcome
	// (processed, bad_signature, malformed, duplicate, error_absorbed).
	WebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_webhooks_total",
		Help: "Inbound chain-activity webhook deliveries by outcome.",
	}, []string{"outcome"})

	// TransfersReconciled counts pending transactions confirmed via webhook.
	TransfersReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_transfers_reconciled_total",
		Help: "Pending transactions confirmed through reconciliation.",
	})

	// NotificationsTotal counts push-notification dispatch attempts by
	// outcome (published, dropped, failed).
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_notifications_total",
		Help: "Push notification dispatch attempts by outcome.",
	}, []string{"outcome"})
)
