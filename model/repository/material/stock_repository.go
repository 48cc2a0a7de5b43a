package material

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"solarcycle.GO/model/entity"
)

type StockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

func (r *StockRepository) WithTx(tx *gorm.DB) *StockRepository {
	return &StockRepository{db: tx}
}

// Seed creates a zero row for every material that has none.
func (r *StockRepository) Seed() error {
	rows := make([]entity.MaterialStock, 0, len(entity.AllMaterials))
	for _, m := range entity.AllMaterials {
		rows = append(rows, entity.MaterialStock{Material: m})
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "material"}},
		DoNothing: true,
	}).Create(&rows).Error
}

// Increment adds kg to both total and available, creating the row on first use.
func (r *StockRepository) Increment(m entity.MaterialType, kg decimal.Decimal) error {
	row := entity.MaterialStock{Material: m, TotalKg: kg, AvailableKg: kg}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "material"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_kg":     gorm.Expr("material_stocks.total_kg + ?", kg),
			"available_kg": gorm.Expr("material_stocks.available_kg + ?", kg),
			"updated_at":   time.Now(),
		}),
	}).Create(&row).Error
}

// Get returns a zero row for a material that was never stocked.
func (r *StockRepository) Get(m entity.MaterialType) (*entity.MaterialStock, error) {
	var s entity.MaterialStock
	err := r.db.Where("material = ?", m).Limit(1).Find(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == 0 {
		s.Material = m
	}
	return &s, nil
}

// All returns one row per material in token-id order.
func (r *StockRepository) All() ([]entity.MaterialStock, error) {
	var rows []entity.MaterialStock
	if err := r.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	byMaterial := make(map[entity.MaterialType]entity.MaterialStock, len(rows))
	for _, row := range rows {
		byMaterial[row.Material] = row
	}
	out := make([]entity.MaterialStock, 0, len(entity.AllMaterials))
	for _, m := range entity.AllMaterials {
		row, ok := byMaterial[m]
		if !ok {
			row = entity.MaterialStock{Material: m}
		}
		out = append(out, row)
	}
	return out, nil
}

// Reserve moves qty from available to reserved if enough is available.
func (r *StockRepository) Reserve(m entity.MaterialType, qty decimal.Decimal) (bool, error) {
	res := r.db.Model(&entity.MaterialStock{}).
		Where("material = ? AND available_kg >= ?", m, qty).
		Updates(map[string]interface{}{
			"available_kg": gorm.Expr("available_kg - ?", qty),
			"reserved_kg":  gorm.Expr("reserved_kg + ?", qty),
			"updated_at":   time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

// Release returns a reservation to available stock. It reports false when
// less than qty is reserved.
func (r *StockRepository) Release(m entity.MaterialType, qty decimal.Decimal) (bool, error) {
	res := r.db.Model(&entity.MaterialStock{}).
		Where("material = ? AND reserved_kg >= ?", m, qty).
		Updates(map[string]interface{}{
			"available_kg": gorm.Expr("available_kg + ?", qty),
			"reserved_kg":  gorm.Expr("reserved_kg - ?", qty),
			"updated_at":   time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

// Consume drops a delivered reservation. total_kg keeps counting everything
// ever recovered. It reports false when less than qty is reserved.
func (r *StockRepository) Consume(m entity.MaterialType, qty decimal.Decimal) (bool, error) {
	res := r.db.Model(&entity.MaterialStock{}).
		Where("material = ? AND reserved_kg >= ?", m, qty).
		Updates(map[string]interface{}{
			"reserved_kg": gorm.Expr("reserved_kg - ?", qty),
			"updated_at":  time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}
