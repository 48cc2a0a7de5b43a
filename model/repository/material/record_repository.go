package material

import (
	"fmt"

	"gorm.io/gorm"

	"solarcycle.GO/model/entity"
)

type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) WithTx(tx *gorm.DB) *RecordRepository {
	return &RecordRepository{db: tx}
}

func (r *RecordRepository) Create(rec *entity.RecycleRecord) error {
	return r.db.Create(rec).Error
}

func (r *RecordRepository) FindByAssetID(assetID uint) (*entity.RecycleRecord, error) {
	var rec entity.RecycleRecord
	if err := r.db.Where("asset_id = ?", assetID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent returns the newest records first.
func (r *RecordRepository) Recent(limit int) ([]entity.RecycleRecord, error) {
	var recs []entity.RecycleRecord
	err := r.db.Order("id DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

const (
	ColumnStatusTx = "status_tx_hash"
	ColumnMintTx   = "mint_tx_hash"
)

// SetTxHash fills one of the two ledger references. An existing value is kept.
func (r *RecordRepository) SetTxHash(id uint, column, hash string) error {
	if column != ColumnStatusTx && column != ColumnMintTx {
		return fmt.Errorf("unknown tx column %q", column)
	}
	return r.db.Model(&entity.RecycleRecord{}).
		Where("id = ? AND "+column+" IS NULL", id).
		Update(column, hash).Error
}
