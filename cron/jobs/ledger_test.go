package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarcycle.GO/config"
	"solarcycle.GO/core/app"
	"solarcycle.GO/cron"
	"solarcycle.GO/model/entity"
	"solarcycle.GO/model/modeltest"
	materialRepo "solarcycle.GO/model/repository/material"
	"solarcycle.GO/service/asset"
	"solarcycle.GO/service/ledger"
)

func newApp(t *testing.T) (*app.App, *ledger.MemoryClient) {
	t.Helper()
	db := modeltest.NewDB(t)
	require.NoError(t, app.Migrate(db))
	mem := ledger.NewMemoryClient()
	cfg := &config.Config{
		Ledger: config.Ledger{Driver: "memory", MaxAttempts: 3, TokensPerKg: 10},
		Triage: config.Triage{Strategy: "threshold", ReuseMinWatts: 150},
	}
	a := app.Build(cfg, db, mem, nil, nil)
	t.Cleanup(a.Ledger.Close)
	return a, mem
}

func TestJobsRegistered(t *testing.T) {
	jobs := cron.Jobs()
	for _, name := range []string{"ledger_outbox", "ledger_reconcile", "stale_orders"} {
		_, ok := jobs[name]
		assert.True(t, ok, name)
	}
}

func TestDrainOutboxAndReconcile(t *testing.T) {
	a, mem := newApp(t)
	ctx := context.Background()
	_, _, err := a.Assets.ScanOrCreate(ctx, asset.ScanInput{NfcTagID: "JOB-1"})
	require.NoError(t, err)

	require.NoError(t, cron.RunJob(ctx, a, "ledger_outbox"))
	assert.True(t, mem.Registered("JOB-1"))

	require.NoError(t, ReconcileLedger(ctx, a))
	report, err := a.Sync.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Pending)
}

func TestCloseStaleOrders(t *testing.T) {
	a, _ := newApp(t)
	ctx := context.Background()
	assert.Error(t, CloseStaleOrders(ctx, a, "soon"))

	stock := materialRepo.NewStockRepository(a.DB)
	require.NoError(t, stock.Increment(entity.MaterialGlass, decimal.NewFromInt(5)))
	reserved, err := stock.Reserve(entity.MaterialGlass, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.True(t, reserved)

	order := &entity.MaterialOrder{
		OrderBase: entity.OrderBase{
			Reference:   "stale-1",
			BuyerWallet: "0x4444444444444444444444444444444444444444",
			Status:      entity.OrderProcessing,
		},
		Material:    entity.MaterialGlass,
		QuantityKg:  decimal.NewFromInt(1),
		TokenAmount: "10",
	}
	require.NoError(t, a.DB.Create(order).Error)
	require.NoError(t, a.DB.Model(order).UpdateColumn("created_at", time.Now().Add(-time.Hour)).Error)

	art := &entity.ArtOrder{
		OrderBase: entity.OrderBase{
			Reference:   "stale-2",
			BuyerWallet: "0x4444444444444444444444444444444444444444",
			Status:      entity.OrderProcessing,
		},
		ArtPieceID: 99,
	}
	require.NoError(t, a.DB.Create(art).Error)
	require.NoError(t, a.DB.Model(art).UpdateColumn("created_at", time.Now().Add(-time.Hour)).Error)

	require.NoError(t, CloseStaleOrders(ctx, a, "1m"))
	var got entity.MaterialOrder
	require.NoError(t, a.DB.First(&got, order.ID).Error)
	assert.Equal(t, entity.OrderFailed, got.Status)
	var gotArt entity.ArtOrder
	require.NoError(t, a.DB.First(&gotArt, art.ID).Error)
	assert.Equal(t, entity.OrderFailed, gotArt.Status)

	s, err := stock.Get(entity.MaterialGlass)
	require.NoError(t, err)
	assert.True(t, s.ReservedKg.IsZero())
	assert.True(t, s.AvailableKg.Equal(decimal.NewFromInt(5)))
}
