// Package jobs holds the background jobs run by the cron scheduler.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"solarcycle.GO/core/app"
	"solarcycle.GO/core/logger"
	"solarcycle.GO/cron"
)

// staleOrderAge is how long a material order may stay PROCESSING before it
// is considered abandoned.
const staleOrderAge = 30 * time.Minute

func init() {
	cron.Register("ledger_outbox", "@every 30s", DrainOutbox)
	cron.Register("ledger_reconcile", "@hourly", ReconcileLedger)
	cron.Register("stale_orders", "@every 10m", CloseStaleOrders)
}

// DrainOutbox delivers pending ledger mirrors.
func DrainOutbox(ctx context.Context, a *app.App, _ ...string) error {
	report, err := a.Sync.DrainOnce(ctx)
	if err != nil {
		return err
	}
	if report.Sent+report.Retried+report.Failed > 0 {
		logger.Info("ledger outbox drained",
			zap.Int("sent", report.Sent), zap.Int("retried", report.Retried),
			zap.Int("failed", report.Failed), zap.Int("pending", report.Pending))
	}
	return nil
}

// ReconcileLedger re-enqueues mirrors for assets whose ledger status drifted.
func ReconcileLedger(ctx context.Context, a *app.App, _ ...string) error {
	report, err := a.Sync.Reconcile(ctx)
	if err != nil {
		return err
	}
	logger.Info("ledger reconciled",
		zap.Int("checked", report.Checked), zap.Int("in_sync", report.InSync),
		zap.Int("enqueued", report.Enqueued), zap.Int("errors", report.Errors),
		zap.Bool("disabled", report.Disabled))
	return nil
}

// CloseStaleOrders settles panel, art and material orders stuck in PROCESSING.
// An optional first argument overrides the age, e.g. "5m".
func CloseStaleOrders(ctx context.Context, a *app.App, args ...string) error {
	age := staleOrderAge
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return err
		}
		age = d
	}
	report, err := a.Settlement.ReconcileStaleOrders(ctx, age)
	if report.Closed() > 0 || report.Pending > 0 {
		logger.Warn("stale orders reconciled",
			zap.Int("completed", report.Completed),
			zap.Int("failed", report.Failed),
			zap.Int("pending", report.Pending))
	}
	return err
}
