package entity

import (
	"time"

	"gorm.io/datatypes"
)

type OutboxKind string

const (
	OutboxRegister      OutboxKind = "register"
	OutboxStatusUpdate  OutboxKind = "status"
	OutboxMintMaterials OutboxKind = "mint_materials"
)

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	// OutboxSending marks a row claimed by one dispatcher.
	OutboxSending OutboxStatus = "SENDING"
	OutboxSent    OutboxStatus = "SENT"
	OutboxFailed  OutboxStatus = "FAILED"
)

// LedgerOutbox is a ledger write recorded in the same transaction as the local
// change it mirrors, delivered later by the dispatcher. TxHash is set as soon
// as a transaction is submitted, so a retry can look it up before resending.
type LedgerOutbox struct {
	ID              uint              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AssetID         uint              `gorm:"column:asset_id;not null;index" json:"assetId"`
	ExternalID      string            `gorm:"column:external_id;type:varchar(128);not null" json:"externalId"`
	Kind            OutboxKind        `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	Payload         datatypes.JSONMap `gorm:"column:payload" json:"payload"`
	RecycleRecordID *uint             `gorm:"column:recycle_record_id" json:"recycleRecordId,omitempty"`
	Status          OutboxStatus      `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Attempts        int               `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError       string            `gorm:"column:last_error;type:text" json:"lastError,omitempty"`
	TxHash          *string           `gorm:"column:tx_hash;type:varchar(66)" json:"txHash,omitempty"`
	ClaimedAt       *time.Time        `gorm:"column:claimed_at" json:"claimedAt,omitempty"`
	NextAttemptAt   *time.Time        `gorm:"column:next_attempt_at;index" json:"nextAttemptAt,omitempty"`
	CreatedAt       time.Time         `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt       time.Time         `gorm:"column:updated_at" json:"updatedAt"`
}

func (LedgerOutbox) TableName() string {
	return "ledger_outbox"
}
