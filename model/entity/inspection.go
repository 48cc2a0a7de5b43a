package entity

import "time"

// Inspection is the immutable triage record of an asset.
type Inspection struct {
	ID                uint         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AssetID           uint         `gorm:"column:asset_id;not null;uniqueIndex" json:"assetId"`
	InspectorID       *uint        `gorm:"column:inspector_id" json:"inspectorId,omitempty"`
	Voltage           float64      `gorm:"column:voltage;not null" json:"voltage"`
	Amperage          float64      `gorm:"column:amperage;not null" json:"amperage"`
	PhysicalCondition string       `gorm:"column:physical_condition;type:varchar(32);not null" json:"physicalCondition"`
	TriageResult      TriageResult `gorm:"column:triage_result;type:varchar(16);not null" json:"triageResult"`
	Notes             string       `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt         time.Time    `gorm:"column:created_at" json:"createdAt"`
}

func (Inspection) TableName() string {
	return "inspections"
}
