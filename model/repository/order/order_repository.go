package order

import (
	"time"

	"gorm.io/gorm"

	"solarcycle.GO/model/entity"
)

// OrderRepository stores panel, art and material orders. Status updates only
// apply to orders still PROCESSING, so a terminal order is never re-opened.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Create inserts any of the order models.
func (r *OrderRepository) Create(order interface{}) error {
	return r.db.Create(order).Error
}

// HasProcessing reports whether an order of model's table for the same item is in flight.
func (r *OrderRepository) HasProcessing(model interface{}, column string, value interface{}) (bool, error) {
	var n int64
	err := r.db.Model(model).
		Where(column+" = ? AND status = ?", value, entity.OrderProcessing).
		Count(&n).Error
	return n > 0, err
}

// Complete marks a processing order COMPLETED. An empty txHash keeps the
// hash already stored.
func (r *OrderRepository) Complete(model interface{}, id uint, txHash string) (bool, error) {
	now := time.Now()
	fields := map[string]interface{}{
		"status":       entity.OrderCompleted,
		"completed_at": &now,
	}
	if txHash != "" {
		fields["tx_hash"] = txHash
	}
	res := r.db.Model(model).
		Where("id = ? AND status = ?", id, entity.OrderProcessing).
		Updates(fields)
	return res.RowsAffected == 1, res.Error
}

// SetSubmitted stores the hash of a transfer that was sent but not yet
// confirmed.
func (r *OrderRepository) SetSubmitted(model interface{}, id uint, txHash string) error {
	return r.db.Model(model).
		Where("id = ? AND status = ?", id, entity.OrderProcessing).
		Update("tx_hash", txHash).Error
}

// Fail marks a processing order FAILED with a reason.
func (r *OrderRepository) Fail(model interface{}, id uint, reason string) (bool, error) {
	now := time.Now()
	res := r.db.Model(model).
		Where("id = ? AND status = ?", id, entity.OrderProcessing).
		Updates(map[string]interface{}{
			"status":         entity.OrderFailed,
			"failure_reason": reason,
			"completed_at":   &now,
		})
	return res.RowsAffected == 1, res.Error
}

// Stale loads into dest, a slice of one order model, the orders stuck in
// PROCESSING since before cutoff.
func (r *OrderRepository) Stale(dest interface{}, cutoff time.Time) error {
	return r.db.Where("status = ? AND created_at < ?", entity.OrderProcessing, cutoff).
		Order("id").Find(dest).Error
}

func (r *OrderRepository) FindPanelOrder(id uint) (*entity.PanelOrder, error) {
	var o entity.PanelOrder
	if err := r.db.First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) FindArtOrder(id uint) (*entity.ArtOrder, error) {
	var o entity.ArtOrder
	if err := r.db.First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) FindMaterialOrder(id uint) (*entity.MaterialOrder, error) {
	var o entity.MaterialOrder
	if err := r.db.First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}
