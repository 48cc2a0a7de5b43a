package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"solarcycle.GO/model/entity"
	"solarcycle.GO/model/modeltest"
)

func newAsset(t *testing.T, db *gorm.DB, tag string, status entity.AssetStatus) *entity.Asset {
	t.Helper()
	a := &entity.Asset{NfcTagID: modeltest.Ptr(tag), Status: status, Brand: "Acme", Location: "Lyon"}
	require.NoError(t, db.Create(a).Error)
	return a
}

func TestSynchronizer_DeliversInOrder(t *testing.T) {
	db := modeltest.NewDB(t)
	mem := NewMemoryClient()
	s := NewSynchronizer(db, mem, Options{})
	a := newAsset(t, db, "NFC-1", entity.StatusInTransit)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := s.EnqueueRegister(tx, a); err != nil {
			return err
		}
		return s.EnqueueStatus(tx, a, Collected, "", nil)
	}))

	report, err := s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 0, report.Pending)

	assert.True(t, mem.Registered("NFC-1"))
	history, err := mem.ReadHistory(context.Background(), "NFC-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, Collected, history[0].Status)
	assert.Equal(t, "Lyon", history[0].Location)

	var rows []entity.LedgerOutbox
	require.NoError(t, db.Order("id").Find(&rows).Error)
	for _, row := range rows {
		assert.Equal(t, entity.OutboxSent, row.Status)
		assert.NotNil(t, row.TxHash)
	}
}

func TestSynchronizer_RetriesThenFails(t *testing.T) {
	db := modeltest.NewDB(t)
	mem := NewMemoryClient()
	s := NewSynchronizer(db, mem, Options{MaxAttempts: 2})
	a := newAsset(t, db, "NFC-2", entity.StatusInTransit)
	require.NoError(t, s.EnqueueRegister(db, a))
	require.NoError(t, s.EnqueueStatus(db, a, Collected, "", nil))

	mem.Fail(OpRegister, errors.New("rpc timeout"))

	report, err := s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Retried)
	assert.Equal(t, 1, report.Deferred, "status row must wait for register")
	assert.Equal(t, 0, mem.Calls(OpRecordStatus))

	var row entity.LedgerOutbox
	require.NoError(t, db.Where("kind = ?", entity.OutboxRegister).First(&row).Error)
	assert.Equal(t, entity.OutboxPending, row.Status)
	assert.Equal(t, 1, row.Attempts)
	assert.Equal(t, "rpc timeout", row.LastError)
	require.NotNil(t, row.NextAttemptAt)

	s.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	report, err = s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	require.NoError(t, db.First(&row, row.ID).Error)
	assert.Equal(t, entity.OutboxFailed, row.Status)

	// the status row is next in line once the register row gave up
	mem.Fail(OpRegister, nil)
	_, err = s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mem.Calls(OpRecordStatus))
}

func TestSynchronizer_DisabledLeavesRowsPending(t *testing.T) {
	db := modeltest.NewDB(t)
	s := NewSynchronizer(db, NoopClient{}, Options{})
	a := newAsset(t, db, "NFC-3", entity.StatusInTransit)
	require.NoError(t, s.EnqueueRegister(db, a))

	report, err := s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Disabled)
	assert.Equal(t, 1, report.Pending)

	var row entity.LedgerOutbox
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, entity.OutboxPending, row.Status)
	assert.Zero(t, row.Attempts)
}

func TestSynchronizer_WritesBackRecycleHashes(t *testing.T) {
	db := modeltest.NewDB(t)
	mem := NewMemoryClient()
	s := NewSynchronizer(db, mem, Options{})
	a := newAsset(t, db, "NFC-4", entity.StatusRecycled)
	rec := &entity.RecycleRecord{
		AssetID:       a.ID,
		PanelWeightKg: decimal.NewFromInt(20),
		AluminumKg:    decimal.NewFromInt(7),
		GlassKg:       decimal.NewFromInt(8),
		SiliconKg:     decimal.NewFromInt(3),
		CopperKg:      decimal.NewFromInt(2),
		Fingerprint:   "0xabc",
		RecordedAt:    time.Now(),
	}
	require.NoError(t, db.Create(rec).Error)

	require.NoError(t, s.EnqueueRegister(db, a))
	require.NoError(t, s.EnqueueStatus(db, a, Recycled, "fp", &rec.ID))
	require.NoError(t, s.EnqueueMintMaterials(db, a, rec.ID, rec.Fingerprint, "0x1111111111111111111111111111111111111111",
		map[entity.MaterialType]*big.Int{entity.MaterialGlass: big.NewInt(80), entity.MaterialCopper: big.NewInt(20)}))

	_, err := s.DrainOnce(context.Background())
	require.NoError(t, err)

	require.NoError(t, db.First(rec, rec.ID).Error)
	assert.True(t, rec.ChainConfirmed())
	assert.NotEqual(t, *rec.StatusTxHash, *rec.MintTxHash)
	assert.Equal(t, int64(80), mem.BalanceOf("0x1111111111111111111111111111111111111111", entity.MaterialGlass).Int64())
}

func TestSynchronizer_ReconcileEnqueuesDrift(t *testing.T) {
	db := modeltest.NewDB(t)
	mem := NewMemoryClient()
	s := NewSynchronizer(db, mem, Options{})
	newAsset(t, db, "NFC-5", entity.StatusWarehouseReceived)

	report, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Enqueued)

	// a second pass leaves pending rows alone
	report, err = s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pending)

	_, err = s.DrainOnce(context.Background())
	require.NoError(t, err)

	report, err = s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.InSync)
	assert.Zero(t, report.Enqueued)
}

func TestSynchronizer_KickNeverBlocks(t *testing.T) {
	s := NewSynchronizer(modeltest.NewDB(t), NoopClient{}, Options{})
	for i := 0; i < 5; i++ {
		s.Kick()
	}
}

func recycledWithRecord(t *testing.T, db *gorm.DB, tag string) (*entity.Asset, *entity.RecycleRecord) {
	t.Helper()
	a := newAsset(t, db, tag, entity.StatusRecycled)
	rec := &entity.RecycleRecord{
		AssetID:       a.ID,
		PanelWeightKg: decimal.NewFromInt(20),
		GlassKg:       decimal.NewFromInt(8),
		Fingerprint:   "fp-" + tag,
		RecordedAt:    time.Now(),
	}
	require.NoError(t, db.Create(rec).Error)
	return a, rec
}

const treasury = "0x1111111111111111111111111111111111111111"

func glass(n int64) map[entity.MaterialType]*big.Int {
	return map[entity.MaterialType]*big.Int{entity.MaterialGlass: big.NewInt(n)}
}

func TestSynchronizer_ConcurrentDrainsDeliverOnce(t *testing.T) {
	db := modeltest.NewDB(t)
	mem := NewMemoryClient()
	mem.SetDelay(200 * time.Millisecond)
	s1 := NewSynchronizer(db, mem, Options{})
	s2 := NewSynchronizer(db, mem, Options{})
	a, rec := recycledWithRecord(t, db, "NFC-6")
	require.NoError(t, s1.EnqueueMintMaterials(db, a, rec.ID, rec.Fingerprint, treasury, glass(80)))

	var wg sync.WaitGroup
	for _, s := range []*Synchronizer{s1, s2} {
		wg.Add(1)
		go func(s *Synchronizer) {
			defer wg.Done()
			_, err := s.DrainOnce(context.Background())
			assert.NoError(t, err)
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 1, mem.Calls(OpMintMaterials))
	assert.Equal(t, int64(80), mem.BalanceOf(treasury, entity.MaterialGlass).Int64())
	var row entity.LedgerOutbox
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, entity.OutboxSent, row.Status)
}

func TestSynchronizer_MintBatchLandsOnce(t *testing.T) {
	db := modeltest.NewDB(t)
	mem := NewMemoryClient()
	s := NewSynchronizer(db, mem, Options{})
	a, rec := recycledWithRecord(t, db, "NFC-7")
	require.NoError(t, s.EnqueueMintMaterials(db, a, rec.ID, rec.Fingerprint, treasury, glass(80)))
	require.NoError(t, s.EnqueueMintMaterials(db, a, rec.ID, rec.Fingerprint, treasury, glass(80)))

	report, err := s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, int64(80), mem.BalanceOf(treasury, entity.MaterialGlass).Int64())
}

func TestSynchronizer_BacksOffBetweenAttempts(t *testing.T) {
	db := modeltest.NewDB(t)
	mem := NewMemoryClient()
	s := NewSynchronizer(db, mem, Options{RetryBase: time.Minute, RetryMax: 4 * time.Minute})
	start := time.Now().UTC()
	s.now = func() time.Time { return start }
	a := newAsset(t, db, "NFC-8", entity.StatusInTransit)
	require.NoError(t, s.EnqueueRegister(db, a))
	require.NoError(t, s.EnqueueStatus(db, a, Collected, "", nil))
	mem.Fail(OpRegister, errors.New("rpc timeout"))

	_, err := s.DrainOnce(context.Background())
	require.NoError(t, err)
	report, err := s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mem.Calls(OpRegister), "retry must wait for its backoff")
	assert.Equal(t, 1, report.Deferred, "status row stays behind the waiting register row")
	assert.Equal(t, 0, mem.Calls(OpRecordStatus))

	mem.Fail(OpRegister, nil)
	s.now = func() time.Time { return start.Add(61 * time.Second) }
	report, err = s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sent)

	assert.Equal(t, time.Minute, s.backoff(1))
	assert.Equal(t, 2*time.Minute, s.backoff(2))
	assert.Equal(t, 4*time.Minute, s.backoff(5))
}

func TestSynchronizer_UnconfirmedWriteIsNotResent(t *testing.T) {
	db := modeltest.NewDB(t)
	mem := NewMemoryClient()
	s := NewSynchronizer(db, mem, Options{})
	a, rec := recycledWithRecord(t, db, "NFC-9")
	require.NoError(t, s.EnqueueMintMaterials(db, a, rec.ID, rec.Fingerprint, treasury, glass(80)))

	mem.Unconfirmed(OpMintMaterials, true)
	report, err := s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Retried)

	var row entity.LedgerOutbox
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, entity.OutboxPending, row.Status)
	require.NotNil(t, row.TxHash, "submitted hash is kept for the retry")

	mem.Unconfirmed(OpMintMaterials, false)
	s.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	report, err = s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, mem.Calls(OpMintMaterials))
	assert.Equal(t, 1, mem.Calls(OpTxStatus))
	assert.Equal(t, int64(80), mem.BalanceOf(treasury, entity.MaterialGlass).Int64())

	require.NoError(t, db.First(rec, rec.ID).Error)
	require.NotNil(t, rec.MintTxHash)
	assert.Equal(t, *row.TxHash, *rec.MintTxHash)
}

func TestSynchronizer_PendingTxDefers(t *testing.T) {
	db := modeltest.NewDB(t)
	mem := NewMemoryClient()
	s := NewSynchronizer(db, mem, Options{})
	a := newAsset(t, db, "NFC-10", entity.StatusInTransit)
	require.NoError(t, s.EnqueueRegister(db, a))

	hash := "0x00000000000000000000000000000000000000000000000000000000000000ff"
	require.NoError(t, db.Model(&entity.LedgerOutbox{}).Where("asset_id = ?", a.ID).Update("tx_hash", hash).Error)
	mem.SetTxState(hash, TxPending)

	report, err := s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deferred)
	assert.Zero(t, mem.Calls(OpRegister))

	var row entity.LedgerOutbox
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, entity.OutboxPending, row.Status)
	assert.Zero(t, row.Attempts)
	assert.Nil(t, row.ClaimedAt)
}

func TestSynchronizer_ReleasesExpiredClaims(t *testing.T) {
	db := modeltest.NewDB(t)
	mem := NewMemoryClient()
	s := NewSynchronizer(db, mem, Options{ClaimTTL: time.Minute})
	a := newAsset(t, db, "NFC-11", entity.StatusInTransit)
	require.NoError(t, s.EnqueueRegister(db, a))

	var row entity.LedgerOutbox
	require.NoError(t, db.First(&row).Error)
	claimed, err := s.outbox.Claim(&row, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)

	report, err := s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.True(t, mem.Registered("NFC-11"))
}
