package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderBase holds the fields shared by every sale record.
type OrderBase struct {
	ID            uint        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Reference     string      `gorm:"column:reference;type:varchar(36);not null;uniqueIndex" json:"reference"`
	BuyerWallet   string      `gorm:"column:buyer_wallet;type:varchar(42);not null" json:"buyerWallet"`
	Status        OrderStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	TxHash        *string     `gorm:"column:tx_hash;type:varchar(66)" json:"txHash,omitempty"`
	FailureReason string      `gorm:"column:failure_reason;type:text" json:"failureReason,omitempty"`
	CreatedAt     time.Time   `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt     time.Time   `gorm:"column:updated_at" json:"updatedAt"`
	CompletedAt   *time.Time  `gorm:"column:completed_at" json:"completedAt,omitempty"`
}

type PanelOrder struct {
	OrderBase
	AssetID uint `gorm:"column:asset_id;not null;index" json:"assetId"`
}

func (PanelOrder) TableName() string {
	return "panel_orders"
}

type ArtOrder struct {
	OrderBase
	ArtPieceID uint `gorm:"column:art_piece_id;not null;index" json:"artPieceId"`
}

func (ArtOrder) TableName() string {
	return "art_orders"
}

type MaterialOrder struct {
	OrderBase
	Material    MaterialType    `gorm:"column:material;type:varchar(16);not null;index" json:"material"`
	QuantityKg  decimal.Decimal `gorm:"column:quantity_kg;type:decimal(14,4);not null" json:"quantityKg"`
	TokenAmount string          `gorm:"column:token_amount;type:varchar(78);not null" json:"tokenAmount"`
}

func (MaterialOrder) TableName() string {
	return "material_orders"
}
