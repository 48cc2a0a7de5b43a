package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArtPiece is a panel repurposed as art and listed as a collectible.
type ArtPiece struct {
	ID          uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AssetID     uint            `gorm:"column:asset_id;not null;uniqueIndex" json:"assetId"`
	Title       string          `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Description string          `gorm:"column:description;type:text" json:"description,omitempty"`
	ArtistID    *uint           `gorm:"column:artist_id" json:"artistId,omitempty"`
	Price       decimal.Decimal `gorm:"column:price;type:decimal(14,2);not null;default:0" json:"price"`
	MetadataURI string          `gorm:"column:metadata_uri;type:varchar(512)" json:"metadataUri"`
	TokenID     *string         `gorm:"column:token_id;type:varchar(78)" json:"tokenId,omitempty"`
	MintTxHash  *string         `gorm:"column:mint_tx_hash;type:varchar(66)" json:"mintTxHash,omitempty"`
	Available   bool            `gorm:"column:available;not null;default:true" json:"available"`
	BuyerWallet *string         `gorm:"column:buyer_wallet;type:varchar(42)" json:"buyerWallet,omitempty"`
	SoldAt      *time.Time      `gorm:"column:sold_at" json:"soldAt,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (ArtPiece) TableName() string {
	return "art_pieces"
}
