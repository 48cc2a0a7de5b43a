package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarcycle.GO/config"
	"solarcycle.GO/core/app"
	"solarcycle.GO/core/registry"
)

func TestSchedules_FromConfig(t *testing.T) {
	s := schedules(config.Cron{Outbox: "@every 5s", Reconcile: "", Orders: "*/5 * * * *"})
	assert.Equal(t, "@every 5s", s["ledger_outbox"])
	assert.Equal(t, "", s["ledger_reconcile"])
	assert.Equal(t, "*/5 * * * *", s["stale_orders"])
}

func TestStartCron_RejectsBadSchedule(t *testing.T) {
	registry.GlobalRegistry.UnlockForTesting(registry.KeyRegistryCron)
	Register("badschedule", "not a schedule", func(context.Context, *app.App, ...string) error { return nil })
	defer Unregister("badschedule")

	_, err := StartCron(&app.App{Config: &config.Config{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "badschedule")
}

func TestRunJob(t *testing.T) {
	registry.GlobalRegistry.UnlockForTesting(registry.KeyRegistryCron)
	var got []string
	Register("echojob", "@daily", func(_ context.Context, _ *app.App, args ...string) error {
		got = args
		return errors.New("boom")
	})
	defer Unregister("echojob")

	err := RunJob(context.Background(), nil, "EchoJob", "a", "b")
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"a", "b"}, got)

	assert.Error(t, RunJob(context.Background(), nil, "missing"))
}
