package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset is a tracked physical panel. Rows are never deleted.
type Asset struct {
	ID                 uint                `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	NfcTagID           *string             `gorm:"column:nfc_tag_id;type:varchar(128);uniqueIndex" json:"nfcTagId,omitempty"`
	QRCode             *string             `gorm:"column:qr_code;type:varchar(128);uniqueIndex" json:"qrCode,omitempty"`
	Status             AssetStatus         `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	Brand              string              `gorm:"column:brand;type:varchar(128)" json:"brand,omitempty"`
	Model              string              `gorm:"column:model;type:varchar(128)" json:"model,omitempty"`
	Location           string              `gorm:"column:location;type:varchar(255)" json:"location,omitempty"`
	MeasuredPowerWatts *float64            `gorm:"column:measured_power_watts" json:"measuredPowerWatts,omitempty"`
	MeasuredVoltage    *float64            `gorm:"column:measured_voltage" json:"measuredVoltage,omitempty"`
	HealthPercentage   *float64            `gorm:"column:health_percentage" json:"healthPercentage,omitempty"`
	WidthMm            *float64            `gorm:"column:width_mm" json:"widthMm,omitempty"`
	HeightMm           *float64            `gorm:"column:height_mm" json:"heightMm,omitempty"`
	DepthMm            *float64            `gorm:"column:depth_mm" json:"depthMm,omitempty"`
	WeightKg           decimal.NullDecimal `gorm:"column:weight_kg;type:decimal(14,4)" json:"weightKg"`
	InspectorID        *uint               `gorm:"column:inspector_id" json:"inspectorId,omitempty"`
	RefurbishedByID    *uint               `gorm:"column:refurbished_by_id" json:"refurbishedById,omitempty"`
	TokenID            *string             `gorm:"column:token_id;type:varchar(78)" json:"tokenId,omitempty"`
	BuyerWallet        *string             `gorm:"column:buyer_wallet;type:varchar(42)" json:"buyerWallet,omitempty"`
	SoldAt             *time.Time          `gorm:"column:sold_at" json:"soldAt,omitempty"`
	InspectedAt        *time.Time          `gorm:"column:inspected_at" json:"inspectedAt,omitempty"`
	CreatedAt          time.Time           `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt          time.Time           `gorm:"column:updated_at" json:"updatedAt"`

	Inspection    *Inspection    `gorm:"foreignKey:AssetID" json:"inspection,omitempty"`
	RecycleRecord *RecycleRecord `gorm:"foreignKey:AssetID" json:"recycleRecord,omitempty"`
	ArtPiece      *ArtPiece      `gorm:"foreignKey:AssetID" json:"artPiece,omitempty"`
}

func (Asset) TableName() string {
	return "assets"
}

// ExternalID is the identifier the asset is addressed by on the ledger.
func (a *Asset) ExternalID() string {
	if a.NfcTagID != nil && *a.NfcTagID != "" {
		return *a.NfcTagID
	}
	if a.QRCode != nil {
		return *a.QRCode
	}
	return ""
}
