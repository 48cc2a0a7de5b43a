package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarcycle.GO/config"
	"solarcycle.GO/model/entity"
	"solarcycle.GO/model/modeltest"
	"solarcycle.GO/service/asset"
	"solarcycle.GO/service/ledger"
	"solarcycle.GO/service/material"
)

func testConfig() *config.Config {
	return &config.Config{
		Ledger: config.Ledger{Driver: "memory", MaxAttempts: 3, TokensPerKg: 10},
		Triage: config.Triage{Strategy: "threshold", ReuseMinWatts: 150},
	}
}

func TestBuild_WiresServices(t *testing.T) {
	db := modeltest.NewDB(t)
	require.NoError(t, Migrate(db))
	mem := ledger.NewMemoryClient()
	a := Build(testConfig(), db, mem, nil, nil)
	defer a.Ledger.Close()

	assert.True(t, a.Ledger.Enabled())
	assert.Equal(t, ledger.MemorySigner, a.Ledger.Signer())
	assert.Equal(t, "threshold", a.Triage.StrategyName())

	stock, err := a.Recovery.Stock(context.Background())
	require.NoError(t, err)
	assert.Len(t, stock, len(entity.AllMaterials))

	ctx := context.Background()
	created, _, err := a.Assets.ScanOrCreate(ctx, asset.ScanInput{NfcTagID: "APP-1"})
	require.NoError(t, err)
	_, created, err = a.Assets.CompleteInspection(ctx, asset.CompleteInspectionInput{
		AssetID: created.ID, Voltage: 1, Amperage: 1, PhysicalCondition: "BROKEN",
	})
	require.NoError(t, err)
	weight := decimal.NewFromInt(20)
	_, err = a.Recovery.Recycle(ctx, material.RecycleInput{AssetID: created.ID, WeightKg: &weight})
	require.NoError(t, err)

	report, err := a.Sync.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Failed)
	assert.Zero(t, report.Pending)
	assert.True(t, mem.Registered("APP-1"))
	assert.Equal(t, "70", mem.BalanceOf(ledger.MemorySigner, entity.MaterialAluminum).String())
}

func TestMigrate_SeedIsIdempotent(t *testing.T) {
	db := modeltest.NewDB(t)
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var n int64
	require.NoError(t, db.Model(&entity.MaterialStock{}).Count(&n).Error)
	assert.Equal(t, int64(len(entity.AllMaterials)), n)
}
