package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"solarcycle.GO/config"
	"solarcycle.GO/core/app"
	"solarcycle.GO/core/logger"
)

// jobTimeout bounds a single scheduled run.
const jobTimeout = 10 * time.Minute

// schedules maps job names to their configured schedule, overriding the
// default passed to Register.
func schedules(c config.Cron) map[string]string {
	return map[string]string{
		"ledger_outbox":    c.Outbox,
		"ledger_reconcile": c.Reconcile,
		"stale_orders":     c.Orders,
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// StartCron schedules every registered job against a. Overlapping runs of
// the same job are skipped.
func StartCron(a *app.App) (*cron.Cron, error) {
	cl := cronLogger{log: logger.Named("cron").Sugar()}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl)))
	overrides := schedules(a.Config.Cron)

	for name, j := range Jobs() {
		sched := j.Schedule
		if s := overrides[name]; s != "" {
			sched = s
		}
		job := cron.NewChain(cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := j.Run(ctx, a); err != nil {
				cl.log.Errorw("job failed", "job", name, "error", err)
			}
		}))
		if _, err := c.AddJob(sched, job); err != nil {
			return nil, fmt.Errorf("register job %s (%s): %w", name, sched, err)
		}
		cl.log.Infow("job scheduled", "job", name, "schedule", sched)
	}
	c.Start()
	return c, nil
}

// RunJob runs one registered job by name.
func RunJob(ctx context.Context, a *app.App, name string, args ...string) error {
	j, ok := Jobs()[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown job: %s", name)
	}
	return j.Run(ctx, a, args...)
}
