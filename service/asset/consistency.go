package asset

import (
	"errors"
	"fmt"

	"solarcycle.GO/model/entity"
)

var ErrInconsistent = errors.New("asset records inconsistent with status")

// CheckConsistency verifies the destiny record invariant on an asset loaded
// with its Inspection, RecycleRecord and ArtPiece.
func CheckConsistency(a *entity.Asset) error {
	if !a.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInconsistent, a.Status)
	}
	switch {
	case a.RecycleRecord != nil && a.ArtPiece != nil:
		return fmt.Errorf("%w: asset %d has both a recycle record and an art piece", ErrInconsistent, a.ID)
	case a.RecycleRecord != nil:
		if a.Status != entity.StatusRecycled {
			return fmt.Errorf("%w: recycled asset %d is %s", ErrInconsistent, a.ID, a.Status)
		}
	case a.ArtPiece != nil:
		if a.Status != entity.StatusArtListedForSale {
			return fmt.Errorf("%w: published asset %d is %s", ErrInconsistent, a.ID, a.Status)
		}
	case a.Inspection != nil:
		if a.Status.PreInspection() {
			return fmt.Errorf("%w: inspected asset %d is %s", ErrInconsistent, a.ID, a.Status)
		}
	default:
		if !a.Status.PreInspection() {
			return fmt.Errorf("%w: asset %d is %s without an inspection", ErrInconsistent, a.ID, a.Status)
		}
	}
	return nil
}
