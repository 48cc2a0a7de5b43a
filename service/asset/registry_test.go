package asset

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"solarcycle.GO/core/errno"
	"solarcycle.GO/model/entity"
	"solarcycle.GO/model/modeltest"
	"solarcycle.GO/service/ledger"
	"solarcycle.GO/service/triage"
)

type fixture struct {
	reg *Registry
	mem *ledger.MemoryClient
	db  *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := modeltest.NewDB(t)
	mem := ledger.NewMemoryClient()
	sync := ledger.NewSynchronizer(db, mem, ledger.Options{})
	return &fixture{reg: NewRegistry(db, triage.NewEngine(nil), sync, nil), mem: mem, db: db}
}

func (f *fixture) scan(t *testing.T, tag string) *entity.Asset {
	t.Helper()
	a, _, err := f.reg.ScanOrCreate(context.Background(), ScanInput{NfcTagID: tag, Brand: "Acme", Location: "Lyon"})
	require.NoError(t, err)
	return a
}

func (f *fixture) inspect(t *testing.T, id uint, voltage, amperage float64, condition string) *entity.Asset {
	t.Helper()
	_, a, err := f.reg.CompleteInspection(context.Background(), CompleteInspectionInput{
		AssetID: id, Voltage: voltage, Amperage: amperage, PhysicalCondition: condition,
	})
	require.NoError(t, err)
	return a
}

func TestTransitions_Closed(t *testing.T) {
	for from, tos := range Transitions {
		assert.True(t, from.Valid(), from)
		for _, to := range tos {
			assert.True(t, to.Valid(), to)
		}
	}
	for _, s := range []entity.AssetStatus{entity.StatusReused, entity.StatusRecycled, entity.StatusArtListedForSale} {
		assert.Empty(t, Transitions[s], "%s must be terminal", s)
		assert.True(t, DestinyFixed(s))
	}
	assert.True(t, CanTransition(entity.StatusInspected, entity.StatusRecycled))
	assert.False(t, CanTransition(entity.StatusRecycled, entity.StatusInspecting))
}

func TestScanOrCreate_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, created, err := f.reg.ScanOrCreate(ctx, ScanInput{NfcTagID: "NFC-1", Brand: "Acme"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, entity.StatusInTransit, first.Status)

	second, created, err := f.reg.ScanOrCreate(ctx, ScanInput{NfcTagID: "NFC-1", QRCode: "QR-1", Model: "X200"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Acme", second.Brand)
	assert.Equal(t, "X200", second.Model)
	require.NotNil(t, second.QRCode)
	assert.Equal(t, "QR-1", *second.QRCode)

	var n int64
	require.NoError(t, f.db.Model(&entity.Asset{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	var mirrors int64
	require.NoError(t, f.db.Model(&entity.LedgerOutbox{}).Count(&mirrors).Error)
	assert.Equal(t, int64(2), mirrors, "register and status only on creation")
}

func TestScanOrCreate_Concurrent(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.reg.ScanOrCreate(context.Background(), ScanInput{QRCode: "QR-RACE"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var n int64
	require.NoError(t, f.db.Model(&entity.Asset{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestScanOrCreate_RequiresIdentifier(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.reg.ScanOrCreate(context.Background(), ScanInput{Brand: "Acme"})
	assert.ErrorIs(t, err, errno.ErrMissingID)
	assert.Equal(t, errno.KindValidation, errno.KindOf(err))
}

func TestScanOrCreate_PendingCollection(t *testing.T) {
	f := newFixture(t)
	a, _, err := f.reg.ScanOrCreate(context.Background(), ScanInput{NfcTagID: "NFC-P", PendingCollection: true})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingCollection, a.Status)

	_, err = f.reg.BeginInspection(context.Background(), a.ID, nil)
	assert.ErrorIs(t, err, errno.ErrNotReady)

	a, err = f.reg.ReceiveAtWarehouse(context.Background(), a.ID, "Dock 2")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusWarehouseReceived, a.Status)
	assert.Equal(t, "Dock 2", a.Location)

	again, err := f.reg.ReceiveAtWarehouse(context.Background(), a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusWarehouseReceived, again.Status)
}

func TestBeginInspection_AlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	a := &entity.Asset{NfcTagID: modeltest.Ptr("NFC-R"), Status: entity.StatusRecycled}
	require.NoError(t, f.db.Create(a).Error)

	_, err := f.reg.BeginInspection(context.Background(), a.ID, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrAlreadyProcessed)
	assert.Contains(t, err.Error(), "already processed")

	got, err := f.reg.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRecycled, got.Status)
}

func TestBeginInspection_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.BeginInspection(context.Background(), 404, nil)
	assert.ErrorIs(t, err, errno.ErrAssetNotFound)
}

func TestCompleteInspection_ClassifiesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.scan(t, "NFC-I")

	inspector := uint(7)
	a, err := f.reg.BeginInspection(ctx, a.ID, &inspector)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInspecting, a.Status)

	ins, a, err := f.reg.CompleteInspection(ctx, CompleteInspectionInput{
		AssetID: a.ID, Voltage: 36, Amperage: 8, PhysicalCondition: "EXCELLENT",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TriageReuse, ins.TriageResult)
	assert.Equal(t, entity.StatusReadyForReuse, a.Status)
	assert.NotNil(t, a.InspectedAt)
	require.NotNil(t, a.InspectorID)
	assert.Equal(t, inspector, *a.InspectorID)
	assert.Equal(t, uint64(1), f.reg.Triage().Evaluations())

	_, _, err = f.reg.CompleteInspection(ctx, CompleteInspectionInput{
		AssetID: a.ID, Voltage: 36, Amperage: 8, PhysicalCondition: "EXCELLENT",
	})
	assert.ErrorIs(t, err, errno.ErrAlreadyProcessed)
	assert.Equal(t, uint64(1), f.reg.Triage().Evaluations())
}

func TestBeginInspection_ReentryUpdatesInspector(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.scan(t, "NFC-RE")

	first, second := uint(7), uint(9)
	_, err := f.reg.BeginInspection(ctx, a.ID, &first)
	require.NoError(t, err)
	var rows int64
	require.NoError(t, f.db.Model(&entity.LedgerOutbox{}).Count(&rows).Error)

	a, err = f.reg.BeginInspection(ctx, a.ID, &second)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInspecting, a.Status)
	require.NotNil(t, a.InspectorID)
	assert.Equal(t, second, *a.InspectorID)

	var after int64
	require.NoError(t, f.db.Model(&entity.LedgerOutbox{}).Count(&after).Error)
	assert.Equal(t, rows, after, "re-entry must not mirror a second transition")

	a, err = f.reg.BeginInspection(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, second, *a.InspectorID)
}

func TestCompleteInspection_RollbackIsNotCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.scan(t, "NFC-RB")

	const hook = "test:fail_inspection_insert"
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register(hook, func(tx *gorm.DB) {
		if tx.Statement.Table == "inspections" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))
	_, _, err := f.reg.CompleteInspection(ctx, CompleteInspectionInput{
		AssetID: a.ID, Voltage: 36, Amperage: 8, PhysicalCondition: "EXCELLENT",
	})
	assert.ErrorIs(t, err, errno.ErrDatabase)
	assert.Zero(t, f.reg.Triage().Evaluations())

	require.NoError(t, f.db.Callback().Create().Remove(hook))
	f.inspect(t, a.ID, 36, 8, "EXCELLENT")
	assert.Equal(t, uint64(1), f.reg.Triage().Evaluations())
}

func TestCompleteInspection_Destinies(t *testing.T) {
	f := newFixture(t)
	recycle := f.inspect(t, f.scan(t, "NFC-A").ID, 10, 1, "BROKEN")
	art := f.inspect(t, f.scan(t, "NFC-B").ID, 10, 1, "SCRATCHED")
	assert.Equal(t, entity.StatusInspected, recycle.Status)
	assert.Equal(t, entity.StatusArtCandidate, art.Status)
}

func TestRefurbishment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.inspect(t, f.scan(t, "NFC-F").ID, 36, 8, "GOOD")

	_, err := f.reg.CompleteRefurbishment(ctx, RefurbishInput{AssetID: f.scan(t, "NFC-G").ID})
	assert.ErrorIs(t, err, errno.ErrNotReady)

	tech := uint(3)
	a, err = f.reg.StartRefurbishment(ctx, a.ID, &tech)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRefurbishing, a.Status)

	power, health := 280.0, 91.5
	weight := decimal.RequireFromString("18.5")
	a, err = f.reg.CompleteRefurbishment(ctx, RefurbishInput{
		AssetID: a.ID, MeasuredPowerWatts: &power, HealthPercentage: &health, WeightKg: &weight,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusListedForSale, a.Status)
	require.NotNil(t, a.MeasuredPowerWatts)
	assert.Equal(t, power, *a.MeasuredPowerWatts)
	assert.True(t, a.WeightKg.Valid)
	assert.True(t, a.WeightKg.Decimal.Equal(weight))
	require.NotNil(t, a.RefurbishedByID)
	assert.Equal(t, tech, *a.RefurbishedByID)

	_, err = f.reg.CompleteRefurbishment(ctx, RefurbishInput{AssetID: a.ID})
	assert.ErrorIs(t, err, errno.ErrInvalidTransition)
}

func TestPublishArt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.inspect(t, f.scan(t, "NFC-ART").ID, 5, 1, "FADED")

	piece, err := f.reg.PublishArt(ctx, PublishArtInput{AssetID: a.ID, Title: "Sunset", Price: decimal.NewFromInt(450)})
	require.NoError(t, err)
	require.NotNil(t, piece.TokenID)
	assert.True(t, piece.Available)

	got, err := f.reg.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusArtListedForSale, got.Status)
	require.NotNil(t, got.TokenID)
	assert.Equal(t, *piece.TokenID, *got.TokenID)
	assert.NoError(t, CheckConsistency(got))

	_, err = f.reg.Synchronizer().DrainOnce(ctx)
	require.NoError(t, err)
	history, err := f.mem.ReadHistory(ctx, "NFC-ART")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(history), 2)
	assert.Equal(t, ledger.ArtMinted, history[len(history)-2].Status)
	assert.Equal(t, ledger.ArtListed, history[len(history)-1].Status)

	_, err = f.reg.PublishArt(ctx, PublishArtInput{AssetID: a.ID, Title: "Again"})
	assert.ErrorIs(t, err, errno.ErrDuplicateProcessing)
}

func TestPublishArt_LedgerFailureLeavesAssetUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.inspect(t, f.scan(t, "NFC-ART2").ID, 5, 1, "FAIR")

	f.mem.Fail(ledger.OpMintCollectible, errors.New("gas too low"))
	_, err := f.reg.PublishArt(ctx, PublishArtInput{AssetID: a.ID, Title: "Noon"})
	assert.ErrorIs(t, err, errno.ErrLedgerUnavailable)

	f.mem.Fail(ledger.OpMintCollectible, nil)
	f.mem.OmitTokenIDs(true)
	_, err = f.reg.PublishArt(ctx, PublishArtInput{AssetID: a.ID, Title: "Noon"})
	assert.ErrorIs(t, err, errno.ErrLedgerUnavailable)

	got, err := f.reg.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusArtCandidate, got.Status)
	assert.Nil(t, got.ArtPiece)
	assert.Nil(t, got.TokenID)
}

func TestPublishArt_ConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	a := f.inspect(t, f.scan(t, "NFC-ART3").ID, 5, 1, "DISCOLORED")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reg.PublishArt(context.Background(), PublishArtInput{AssetID: a.ID, Title: "Race"})
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
	require.NoError(t, f.db.Model(&entity.ArtPiece{}).Where("asset_id = ?", a.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.scan(t, "NFC-H")

	report, err := f.reg.History(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, report.InSync)
	assert.Len(t, report.Mirrors, 2)

	_, err = f.reg.Synchronizer().DrainOnce(ctx)
	require.NoError(t, err)

	report, err = f.reg.History(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, report.InSync)
	require.Len(t, report.Ledger, 1)
	assert.Equal(t, ledger.Collected, report.Ledger[0].Status)
}

func TestHistory_LedgerDisabled(t *testing.T) {
	db := modeltest.NewDB(t)
	reg := NewRegistry(db, triage.NewEngine(nil), ledger.NewSynchronizer(db, ledger.NoopClient{}, ledger.Options{}), nil)
	a, _, err := reg.ScanOrCreate(context.Background(), ScanInput{QRCode: "QR-N"})
	require.NoError(t, err)

	report, err := reg.History(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.ErrLedgerDisabled.Error(), report.LedgerError)
}
