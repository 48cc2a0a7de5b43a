package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaterialStock is the running inventory of one material.
// available_kg >= 0 and total_kg >= available_kg + reserved_kg.
type MaterialStock struct {
	ID          uint            `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	Material    MaterialType    `gorm:"column:material;type:varchar(16);not null;uniqueIndex" json:"material"`
	TotalKg     decimal.Decimal `gorm:"column:total_kg;type:decimal(14,4);not null;default:0" json:"totalKg"`
	AvailableKg decimal.Decimal `gorm:"column:available_kg;type:decimal(14,4);not null;default:0" json:"availableKg"`
	ReservedKg  decimal.Decimal `gorm:"column:reserved_kg;type:decimal(14,4);not null;default:0" json:"reservedKg"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (MaterialStock) TableName() string {
	return "material_stocks"
}
