package entity

import "strings"

// AssetStatus is the closed set of lifecycle states of a tracked panel.
type AssetStatus string

const (
	StatusPendingCollection AssetStatus = "PENDING_COLLECTION"
	StatusInTransit         AssetStatus = "IN_TRANSIT"
	StatusWarehouseReceived AssetStatus = "WAREHOUSE_RECEIVED"
	StatusInspecting        AssetStatus = "INSPECTING"
	StatusInspected         AssetStatus = "INSPECTED"
	StatusReadyForReuse     AssetStatus = "READY_FOR_REUSE"
	StatusRefurbishing      AssetStatus = "REFURBISHING"
	StatusListedForSale     AssetStatus = "LISTED_FOR_SALE"
	StatusReused            AssetStatus = "REUSED"
	StatusRecycled          AssetStatus = "RECYCLED"
	StatusArtCandidate      AssetStatus = "ART_CANDIDATE"
	StatusArtListedForSale  AssetStatus = "ART_LISTED_FOR_SALE"
)

// AllAssetStatuses lists every status in lifecycle order.
var AllAssetStatuses = []AssetStatus{
	StatusPendingCollection,
	StatusInTransit,
	StatusWarehouseReceived,
	StatusInspecting,
	StatusInspected,
	StatusReadyForReuse,
	StatusRefurbishing,
	StatusListedForSale,
	StatusReused,
	StatusRecycled,
	StatusArtCandidate,
	StatusArtListedForSale,
}

func (s AssetStatus) Valid() bool {
	for _, v := range AllAssetStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// PreInspection reports whether the asset has not been through triage yet.
func (s AssetStatus) PreInspection() bool {
	switch s {
	case StatusPendingCollection, StatusInTransit, StatusWarehouseReceived, StatusInspecting:
		return true
	}
	return false
}

// TriageResult is the destiny chosen at inspection.
type TriageResult string

const (
	TriageReuse   TriageResult = "REUSE"
	TriageRecycle TriageResult = "RECYCLE"
	TriageArt     TriageResult = "ART"
)

func (r TriageResult) Valid() bool {
	return r == TriageReuse || r == TriageRecycle || r == TriageArt
}

// MaterialType identifies a recovered material stock line.
type MaterialType string

const (
	MaterialAluminum MaterialType = "ALUMINUM"
	MaterialGlass    MaterialType = "GLASS"
	MaterialSilicon  MaterialType = "SILICON"
	MaterialCopper   MaterialType = "COPPER"
)

// AllMaterials is in token-id order: the index is the material's id on the ledger.
var AllMaterials = []MaterialType{MaterialAluminum, MaterialGlass, MaterialSilicon, MaterialCopper}

// ParseMaterial accepts any letter case.
func ParseMaterial(s string) (MaterialType, bool) {
	m := MaterialType(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range AllMaterials {
		if m == v {
			return m, true
		}
	}
	return "", false
}

// TokenID returns the ledger token id of the material.
func (m MaterialType) TokenID() int64 {
	for i, v := range AllMaterials {
		if m == v {
			return int64(i)
		}
	}
	return -1
}

type OrderStatus string

const (
	OrderProcessing OrderStatus = "PROCESSING"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderFailed     OrderStatus = "FAILED"
)

func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderFailed
}
