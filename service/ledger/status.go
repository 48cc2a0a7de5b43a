package ledger

import (
	"fmt"
	"time"

	"solarcycle.GO/model/entity"
)

// Status is the coarser status vocabulary of the external trace contract.
type Status uint8

const (
	Collected Status = iota
	WarehouseReceived
	Inspected
	ReuseApproved
	RecycleApproved
	ArtApproved
	Sold
	Recycled
	ArtMinted
	ArtListed
)

var statusNames = [...]string{
	"COLLECTED",
	"WAREHOUSE_RECEIVED",
	"INSPECTED",
	"REUSE_APPROVED",
	"RECYCLE_APPROVED",
	"ART_APPROVED",
	"SOLD",
	"RECYCLED",
	"ART_MINTED",
	"ART_LISTED",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "UNKNOWN"
}

func ParseStatus(name string) (Status, bool) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), true
		}
	}
	return 0, false
}

// statusMap is total over entity.AllAssetStatuses. ArtMinted has no asset
// status; it is recorded explicitly when a collectible is minted.
var statusMap = map[entity.AssetStatus]Status{
	entity.StatusPendingCollection: Collected,
	entity.StatusInTransit:         Collected,
	entity.StatusWarehouseReceived: WarehouseReceived,
	entity.StatusInspecting:        Inspected,
	entity.StatusReadyForReuse:     ReuseApproved,
	entity.StatusRefurbishing:      ReuseApproved,
	entity.StatusListedForSale:     ReuseApproved,
	entity.StatusInspected:         RecycleApproved,
	entity.StatusArtCandidate:      ArtApproved,
	entity.StatusReused:            Sold,
	entity.StatusRecycled:          Recycled,
	entity.StatusArtListedForSale:  ArtListed,
}

// MapStatus returns the ledger status mirroring s, COLLECTED for anything unknown.
func MapStatus(s entity.AssetStatus) Status {
	if v, ok := statusMap[s]; ok {
		return v
	}
	return Collected
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, ok := ParseStatus(string(b))
	if !ok {
		return fmt.Errorf("unknown ledger status %q", b)
	}
	*s = v
	return nil
}

// HistoryEntry is one status record read back from the ledger.
type HistoryEntry struct {
	Status    Status    `json:"status"`
	Location  string    `json:"location"`
	Note      string    `json:"note"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}
