package asset

import (
	"errors"
	"testing"

	"solarcycle.GO/model/entity"
)

func TestCheckConsistency(t *testing.T) {
	tests := []struct {
		name  string
		asset entity.Asset
		ok    bool
	}{
		{"fresh scan", entity.Asset{Status: entity.StatusInTransit}, true},
		{"listed without inspection", entity.Asset{Status: entity.StatusListedForSale}, false},
		{"inspected", entity.Asset{Status: entity.StatusInspected, Inspection: &entity.Inspection{}}, true},
		{"inspection but still in transit", entity.Asset{Status: entity.StatusInTransit, Inspection: &entity.Inspection{}}, false},
		{"recycled", entity.Asset{Status: entity.StatusRecycled, Inspection: &entity.Inspection{}, RecycleRecord: &entity.RecycleRecord{}}, true},
		{"record but not recycled", entity.Asset{Status: entity.StatusInspected, RecycleRecord: &entity.RecycleRecord{}}, false},
		{"art listed", entity.Asset{Status: entity.StatusArtListedForSale, ArtPiece: &entity.ArtPiece{}}, true},
		{"both records", entity.Asset{Status: entity.StatusRecycled, RecycleRecord: &entity.RecycleRecord{}, ArtPiece: &entity.ArtPiece{}}, false},
		{"unknown status", entity.Asset{Status: "LOST"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckConsistency(&tt.asset)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInconsistent) {
				t.Fatalf("err = %v, want ErrInconsistent", err)
			}
		})
	}
}
