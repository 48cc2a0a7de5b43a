package asset

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"solarcycle.GO/model/entity"
)

type AssetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *AssetRepository) WithTx(tx *gorm.DB) *AssetRepository {
	return &AssetRepository{db: tx}
}

func (r *AssetRepository) DB() *gorm.DB {
	return r.db
}

func (r *AssetRepository) FindByID(id uint) (*entity.Asset, error) {
	var a entity.Asset
	if err := r.db.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByIDForUpdate row-locks the asset on drivers that support it.
func (r *AssetRepository) FindByIDForUpdate(id uint) (*entity.Asset, error) {
	var a entity.Asset
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindWithRecords loads the asset with its inspection and destiny records.
func (r *AssetRepository) FindWithRecords(id uint) (*entity.Asset, error) {
	var a entity.Asset
	err := r.db.Preload("Inspection").Preload("RecycleRecord").Preload("ArtPiece").First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByIdentifier matches either identifier. Empty values are ignored.
func (r *AssetRepository) FindByIdentifier(nfcTagID, qrCode string) (*entity.Asset, error) {
	q := r.db.Model(&entity.Asset{})
	switch {
	case nfcTagID != "" && qrCode != "":
		q = q.Where("nfc_tag_id = ? OR qr_code = ?", nfcTagID, qrCode)
	case nfcTagID != "":
		q = q.Where("nfc_tag_id = ?", nfcTagID)
	case qrCode != "":
		q = q.Where("qr_code = ?", qrCode)
	default:
		return nil, gorm.ErrRecordNotFound
	}
	var a entity.Asset
	if err := q.Order("id").First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssetRepository) Create(a *entity.Asset) error {
	return r.db.Create(a).Error
}

// Update writes the given columns of asset id.
func (r *AssetRepository) Update(id uint, fields map[string]interface{}) error {
	return r.db.Model(&entity.Asset{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateStatus moves the asset from one status to another. It reports false
// if the asset was no longer in from.
func (r *AssetRepository) UpdateStatus(id uint, from, to entity.AssetStatus, fields map[string]interface{}) (bool, error) {
	values := map[string]interface{}{"status": to}
	for k, v := range fields {
		values[k] = v
	}
	res := r.db.Model(&entity.Asset{}).Where("id = ? AND status = ?", id, from).Updates(values)
	return res.RowsAffected == 1, res.Error
}

// InBatches walks every asset in id order.
func (r *AssetRepository) InBatches(size int, fn func([]entity.Asset) error) error {
	var batch []entity.Asset
	return r.db.Order("id").FindInBatches(&batch, size, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
}

func (r *AssetRepository) FindInspection(assetID uint) (*entity.Inspection, error) {
	var in entity.Inspection
	if err := r.db.Where("asset_id = ?", assetID).First(&in).Error; err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *AssetRepository) CreateInspection(in *entity.Inspection) error {
	return r.db.Create(in).Error
}

func (r *AssetRepository) FindArtPieceByAsset(assetID uint) (*entity.ArtPiece, error) {
	var p entity.ArtPiece
	if err := r.db.Where("asset_id = ?", assetID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *AssetRepository) FindArtPiece(id uint) (*entity.ArtPiece, error) {
	var p entity.ArtPiece
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *AssetRepository) FindArtPieceForUpdate(id uint) (*entity.ArtPiece, error) {
	var p entity.ArtPiece
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *AssetRepository) CreateArtPiece(p *entity.ArtPiece) error {
	return r.db.Create(p).Error
}

// MarkArtSold flips an available piece to sold. It reports false if the piece
// was already sold.
func (r *AssetRepository) MarkArtSold(id uint, fields map[string]interface{}) (bool, error) {
	values := map[string]interface{}{"available": false}
	for k, v := range fields {
		values[k] = v
	}
	res := r.db.Model(&entity.ArtPiece{}).Where("id = ? AND available = ?", id, true).Updates(values)
	return res.RowsAffected == 1, res.Error
}

// HasRecycleRecord reports whether the asset was already dismantled.
func (r *AssetRepository) HasRecycleRecord(assetID uint) (bool, error) {
	var n int64
	err := r.db.Model(&entity.RecycleRecord{}).Where("asset_id = ?", assetID).Count(&n).Error
	return n > 0, err
}

func (r *AssetRepository) HasArtPiece(assetID uint) (bool, error) {
	var n int64
	err := r.db.Model(&entity.ArtPiece{}).Where("asset_id = ?", assetID).Count(&n).Error
	return n > 0, err
}

// SetTokenID assigns the ledger token once. It reports false if one was already set.
func (r *AssetRepository) SetTokenID(id uint, tokenID string) (bool, error) {
	res := r.db.Model(&entity.Asset{}).Where("id = ? AND token_id IS NULL", id).Update("token_id", tokenID)
	return res.RowsAffected == 1, res.Error
}

// GroupCount is one row of a GROUP BY count.
type GroupCount struct {
	Key   string `gorm:"column:group_key" json:"key"`
	Count int64  `gorm:"column:total" json:"count"`
}

// CountByStatus counts assets per lifecycle status.
func (r *AssetRepository) CountByStatus() ([]GroupCount, error) {
	return r.countBy(&entity.Asset{}, "status")
}

// CountByTriage counts inspections per triage outcome.
func (r *AssetRepository) CountByTriage() ([]GroupCount, error) {
	return r.countBy(&entity.Inspection{}, "triage_result")
}

func (r *AssetRepository) countBy(model interface{}, column string) ([]GroupCount, error) {
	var out []GroupCount
	err := r.db.Model(model).
		Select(column + " AS group_key, COUNT(*) AS total").
		Group(column).Order(column).
		Scan(&out).Error
	return out, err
}
