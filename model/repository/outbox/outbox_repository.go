package outbox

import (
	"time"

	"gorm.io/gorm"

	"solarcycle.GO/model/entity"
)

var inFlight = []entity.OutboxStatus{entity.OutboxPending, entity.OutboxSending}

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) WithTx(tx *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: tx}
}

// Create stores a PENDING row. Call it on the transaction that carries the
// local change the row mirrors.
func (r *OutboxRepository) Create(row *entity.LedgerOutbox) error {
	row.Status = entity.OutboxPending
	return r.db.Create(row).Error
}

// Pending returns undelivered rows that are due at now, oldest first.
func (r *OutboxRepository) Pending(limit int, now time.Time) ([]entity.LedgerOutbox, error) {
	var rows []entity.LedgerOutbox
	err := r.db.
		Where("status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)", entity.OutboxPending, now).
		Order("id").Limit(limit).Find(&rows).Error
	return rows, err
}

// Claim moves row from PENDING to SENDING. It reports false when another
// dispatcher got there first or when an older row of the same asset is still
// undelivered.
func (r *OutboxRepository) Claim(row *entity.LedgerOutbox, now time.Time) (bool, error) {
	var older int64
	err := r.db.Model(&entity.LedgerOutbox{}).
		Where("asset_id = ? AND id < ? AND status IN ?", row.AssetID, row.ID, inFlight).
		Count(&older).Error
	if err != nil || older > 0 {
		return false, err
	}
	res := r.db.Model(&entity.LedgerOutbox{}).
		Where("id = ? AND status = ?", row.ID, entity.OutboxPending).
		Updates(map[string]interface{}{"status": entity.OutboxSending, "claimed_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	row.Status = entity.OutboxSending
	row.ClaimedAt = &now
	return true, nil
}

// Unclaim hands a claimed row back without counting an attempt.
func (r *OutboxRepository) Unclaim(id uint) error {
	return r.db.Model(&entity.LedgerOutbox{}).
		Where("id = ? AND status = ?", id, entity.OutboxSending).
		Updates(map[string]interface{}{"status": entity.OutboxPending, "claimed_at": nil}).Error
}

// ReleaseExpired returns rows claimed before cutoff to PENDING. Their owner
// is assumed dead.
func (r *OutboxRepository) ReleaseExpired(cutoff time.Time) (int64, error) {
	res := r.db.Model(&entity.LedgerOutbox{}).
		Where("status = ? AND claimed_at < ?", entity.OutboxSending, cutoff).
		Updates(map[string]interface{}{"status": entity.OutboxPending, "claimed_at": nil})
	return res.RowsAffected, res.Error
}

// MarkSubmitted stores the hash of a transaction that was sent but may not
// be mined yet.
func (r *OutboxRepository) MarkSubmitted(id uint, txHash string) error {
	return r.db.Model(&entity.LedgerOutbox{}).Where("id = ?", id).Update("tx_hash", txHash).Error
}

// CountPending counts rows not yet delivered, claimed ones included.
func (r *OutboxRepository) CountPending() (int64, error) {
	var n int64
	err := r.db.Model(&entity.LedgerOutbox{}).Where("status IN ?", inFlight).Count(&n).Error
	return n, err
}

func (r *OutboxRepository) Count(status entity.OutboxStatus) (int64, error) {
	var n int64
	err := r.db.Model(&entity.LedgerOutbox{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

// HasPending reports whether the asset still has undelivered rows.
func (r *OutboxRepository) HasPending(assetID uint) (bool, error) {
	var n int64
	err := r.db.Model(&entity.LedgerOutbox{}).
		Where("asset_id = ? AND status IN ?", assetID, inFlight).
		Count(&n).Error
	return n > 0, err
}

func (r *OutboxRepository) MarkSent(id uint, txHash string) error {
	fields := map[string]interface{}{
		"status":          entity.OutboxSent,
		"last_error":      "",
		"claimed_at":      nil,
		"next_attempt_at": nil,
	}
	if txHash != "" {
		fields["tx_hash"] = txHash
	}
	return r.db.Model(&entity.LedgerOutbox{}).Where("id = ?", id).Updates(fields).Error
}

// MarkAttempt records a failed delivery. status is PENDING to retry at next
// or FAILED to give up.
func (r *OutboxRepository) MarkAttempt(id uint, attempts int, lastErr string, status entity.OutboxStatus, next *time.Time) error {
	return r.db.Model(&entity.LedgerOutbox{}).Where("id = ?", id).Updates(map[string]interface{}{
		"attempts":        attempts,
		"last_error":      lastErr,
		"status":          status,
		"claimed_at":      nil,
		"next_attempt_at": next,
	}).Error
}

// ForAsset lists every row of an asset, oldest first.
func (r *OutboxRepository) ForAsset(assetID uint) ([]entity.LedgerOutbox, error) {
	var rows []entity.LedgerOutbox
	err := r.db.Where("asset_id = ?", assetID).Order("id").Find(&rows).Error
	return rows, err
}
