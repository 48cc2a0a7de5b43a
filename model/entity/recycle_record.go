package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecycleRecord is the immutable result of dismantling one asset. Only the two
// ledger tx references are filled in after creation.
type RecycleRecord struct {
	ID            uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AssetID       uint            `gorm:"column:asset_id;not null;uniqueIndex" json:"assetId"`
	OperatorID    *uint           `gorm:"column:operator_id" json:"operatorId,omitempty"`
	PanelWeightKg decimal.Decimal `gorm:"column:panel_weight_kg;type:decimal(14,4);not null" json:"panelWeightKg"`
	AluminumKg    decimal.Decimal `gorm:"column:aluminum_kg;type:decimal(14,4);not null" json:"aluminumKg"`
	GlassKg       decimal.Decimal `gorm:"column:glass_kg;type:decimal(14,4);not null" json:"glassKg"`
	SiliconKg     decimal.Decimal `gorm:"column:silicon_kg;type:decimal(14,4);not null" json:"siliconKg"`
	CopperKg      decimal.Decimal `gorm:"column:copper_kg;type:decimal(14,4);not null" json:"copperKg"`
	Fingerprint   string          `gorm:"column:fingerprint;type:varchar(66);not null" json:"fingerprint"`
	StatusTxHash  *string         `gorm:"column:status_tx_hash;type:varchar(66)" json:"statusTxHash,omitempty"`
	MintTxHash    *string         `gorm:"column:mint_tx_hash;type:varchar(66)" json:"mintTxHash,omitempty"`
	RecordedAt    time.Time       `gorm:"column:recorded_at;not null" json:"recordedAt"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"createdAt"`
}

func (RecycleRecord) TableName() string {
	return "recycle_records"
}

// ChainConfirmed reports whether both ledger writes have a tx reference.
func (r *RecycleRecord) ChainConfirmed() bool {
	return r.StatusTxHash != nil && r.MintTxHash != nil
}

// Materials returns the recovered quantities keyed by material.
func (r *RecycleRecord) Materials() map[MaterialType]decimal.Decimal {
	return map[MaterialType]decimal.Decimal{
		MaterialAluminum: r.AluminumKg,
		MaterialGlass:    r.GlassKg,
		MaterialSilicon:  r.SiliconKg,
		MaterialCopper:   r.CopperKg,
	}
}
