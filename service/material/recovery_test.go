package material

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"solarcycle.GO/core/errno"
	"solarcycle.GO/model/entity"
	"solarcycle.GO/model/modeltest"
	"solarcycle.GO/service/asset"
	"solarcycle.GO/service/ledger"
	"solarcycle.GO/service/triage"
)

const treasury = "0x2222222222222222222222222222222222222222"

type fixture struct {
	db       *gorm.DB
	mem      *ledger.MemoryClient
	registry *asset.Registry
	recovery *Recovery
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := modeltest.NewDB(t)
	mem := ledger.NewMemoryClient()
	reg := asset.NewRegistry(db, triage.NewEngine(nil), ledger.NewSynchronizer(db, mem, ledger.Options{}), nil)
	return &fixture{
		db:       db,
		mem:      mem,
		registry: reg,
		recovery: NewRecovery(db, reg, Options{Treasury: treasury, TokensPerKg: 10}),
	}
}

// inspectedAsset returns an asset triaged with the given condition.
func (f *fixture) inspectedAsset(t *testing.T, tag, condition string) *entity.Asset {
	t.Helper()
	ctx := context.Background()
	a, _, err := f.registry.ScanOrCreate(ctx, asset.ScanInput{NfcTagID: tag})
	require.NoError(t, err)
	_, a, err = f.registry.CompleteInspection(ctx, asset.CompleteInspectionInput{
		AssetID: a.ID, Voltage: 12, Amperage: 2, PhysicalCondition: condition,
	})
	require.NoError(t, err)
	return a
}

func kg(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecycle_TwentyKilogramPanel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.inspectedAsset(t, "NFC-20", "BROKEN")
	require.Equal(t, entity.StatusInspected, a.Status)

	weight := kg("20")
	rec, err := f.recovery.Recycle(ctx, RecycleInput{AssetID: a.ID, WeightKg: &weight})
	require.NoError(t, err)

	assert.True(t, rec.AluminumKg.Equal(kg("7.0")))
	assert.True(t, rec.GlassKg.Equal(kg("8.0")))
	assert.True(t, rec.SiliconKg.Equal(kg("3.0")))
	assert.True(t, rec.CopperKg.Equal(kg("2.0")))
	assert.False(t, rec.ChainConfirmed())

	got, err := f.registry.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRecycled, got.Status)
	assert.NoError(t, asset.CheckConsistency(got))

	stock, err := f.recovery.Stock(ctx)
	require.NoError(t, err)
	want := map[entity.MaterialType]string{
		entity.MaterialAluminum: "7", entity.MaterialGlass: "8", entity.MaterialSilicon: "3", entity.MaterialCopper: "2",
	}
	for _, s := range stock {
		assert.True(t, s.AvailableKg.Equal(kg(want[s.Material])), "%s available %s", s.Material, s.AvailableKg)
		assert.True(t, s.TotalKg.Equal(kg(want[s.Material])), "%s total %s", s.Material, s.TotalKg)
	}
}

func TestRecycle_DefaultsAndConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.recovery.Recycle(ctx, RecycleInput{AssetID: f.inspectedAsset(t, "NFC-D", "SHATTERED").ID})
	require.NoError(t, err)
	assert.True(t, rec.PanelWeightKg.Equal(DefaultPanelWeightKg))

	odd := kg("17.3")
	rec, err = f.recovery.Recycle(ctx, RecycleInput{AssetID: f.inspectedAsset(t, "NFC-O", "BURNT").ID, WeightKg: &odd})
	require.NoError(t, err)
	sum := rec.AluminumKg.Add(rec.GlassKg).Add(rec.SiliconKg).Add(rec.CopperKg)
	assert.True(t, sum.Equal(odd), "sum %s != %s", sum, odd)
	for m, part := range rec.Materials() {
		assert.True(t, part.Equal(odd.Mul(Fractions[m])), m)
	}
}

func TestRecycle_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reuse := f.inspectedAsset(t, "NFC-RU", "SCRATCHED")
	_, err := f.recovery.Recycle(ctx, RecycleInput{AssetID: reuse.ID})
	assert.ErrorIs(t, err, errno.ErrDuplicateProcessing)

	_, err = f.recovery.Recycle(ctx, RecycleInput{AssetID: 999})
	assert.ErrorIs(t, err, errno.ErrAssetNotFound)

	negative := kg("-1")
	_, err = f.recovery.Recycle(ctx, RecycleInput{AssetID: reuse.ID, WeightKg: &negative})
	assert.ErrorIs(t, err, errno.ErrValidation)

	a := f.inspectedAsset(t, "NFC-TWICE", "BROKEN")
	_, err = f.recovery.Recycle(ctx, RecycleInput{AssetID: a.ID})
	require.NoError(t, err)
	_, err = f.recovery.Recycle(ctx, RecycleInput{AssetID: a.ID})
	assert.ErrorIs(t, err, errno.ErrDuplicateProcessing)

	stock, err := f.recovery.Stock(ctx)
	require.NoError(t, err)
	assert.True(t, stock[0].TotalKg.Equal(kg("7")), "second recycle must not add stock")
}

func TestRecycle_ConcurrentDoubleProcessing(t *testing.T) {
	f := newFixture(t)
	a := f.inspectedAsset(t, "NFC-RACE", "DELAMINATED")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.recovery.Recycle(context.Background(), RecycleInput{AssetID: a.ID})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.Equal(t, errno.KindInvalidState, errno.KindOf(err))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	var n int64
	require.NoError(t, f.db.Model(&entity.RecycleRecord{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	stock, err := f.recovery.Stock(context.Background())
	require.NoError(t, err)
	for _, s := range stock {
		assert.False(t, s.AvailableKg.IsNegative())
		assert.True(t, s.TotalKg.Equal(DefaultPanelWeightKg.Mul(Fractions[s.Material])))
	}
}

func TestRecycle_ChainConfirmationAfterDrain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec, err := f.recovery.Recycle(ctx, RecycleInput{AssetID: f.inspectedAsset(t, "NFC-C", "BROKEN").ID})
	require.NoError(t, err)

	views, err := f.recovery.Records(ctx, 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].ChainConfirmed)

	_, err = f.registry.Synchronizer().DrainOnce(ctx)
	require.NoError(t, err)

	views, err = f.recovery.Records(ctx, 10)
	require.NoError(t, err)
	assert.True(t, views[0].ChainConfirmed)
	assert.Equal(t, rec.ID, views[0].ID)

	// 7 kg aluminum at 10 tokens/kg
	assert.Equal(t, int64(70), f.mem.BalanceOf(treasury, entity.MaterialAluminum).Int64())

	history, err := f.mem.ReadHistory(ctx, "NFC-C")
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, ledger.Recycled, last.Status)
	assert.Equal(t, rec.Fingerprint, last.Note)
}

func TestFingerprint(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	parts := Decompose(kg("20"))
	op := uint(4)

	a := Fingerprint(1, &op, kg("20"), parts, at)
	b := Fingerprint(1, &op, kg("20"), parts, at)
	assert.Equal(t, a, b)
	assert.Len(t, a, 66)
	assert.NotEqual(t, a, Fingerprint(2, &op, kg("20"), parts, at))
	assert.NotEqual(t, a, Fingerprint(1, &op, kg("20"), parts, at.Add(time.Second)))
}

func TestTokenAmounts(t *testing.T) {
	amounts := TokenAmounts(Decompose(kg("20")), 10)
	assert.Equal(t, int64(70), amounts[entity.MaterialAluminum].Int64())
	assert.Equal(t, int64(80), amounts[entity.MaterialGlass].Int64())
	assert.Equal(t, int64(30), amounts[entity.MaterialSilicon].Int64())
	assert.Equal(t, int64(20), amounts[entity.MaterialCopper].Int64())

	small := TokenAmounts(map[entity.MaterialType]decimal.Decimal{entity.MaterialCopper: kg("0.05")}, 10)
	assert.Empty(t, small)
}
