package asset

import (
	"fmt"

	"solarcycle.GO/core/errno"
	"solarcycle.GO/model/entity"
)

// Transitions lists every allowed status edge. Statuses with no entry are terminal.
var Transitions = map[entity.AssetStatus][]entity.AssetStatus{
	entity.StatusPendingCollection: {entity.StatusInTransit, entity.StatusWarehouseReceived},
	entity.StatusInTransit: {
		entity.StatusWarehouseReceived, entity.StatusInspecting,
		entity.StatusReadyForReuse, entity.StatusInspected, entity.StatusArtCandidate,
	},
	entity.StatusWarehouseReceived: {
		entity.StatusInspecting,
		entity.StatusReadyForReuse, entity.StatusInspected, entity.StatusArtCandidate,
	},
	entity.StatusInspecting:    {entity.StatusReadyForReuse, entity.StatusInspected, entity.StatusArtCandidate},
	entity.StatusInspected:     {entity.StatusRecycled},
	entity.StatusReadyForReuse: {entity.StatusRefurbishing, entity.StatusListedForSale},
	entity.StatusRefurbishing:  {entity.StatusListedForSale},
	entity.StatusListedForSale: {entity.StatusReused},
	entity.StatusArtCandidate:  {entity.StatusArtListedForSale},
}

// InitialStatuses are the statuses an asset may be created in.
var InitialStatuses = []entity.AssetStatus{entity.StatusPendingCollection, entity.StatusInTransit}

func CanTransition(from, to entity.AssetStatus) bool {
	for _, s := range Transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// DestinyFixed reports whether the physical destiny of the asset is decided.
func DestinyFixed(s entity.AssetStatus) bool {
	return s == entity.StatusRecycled || s == entity.StatusReused || s == entity.StatusArtListedForSale
}

// inspectable is the guard shared by both inspection operations.
func inspectable(s entity.AssetStatus) error {
	switch s {
	case entity.StatusInTransit, entity.StatusWarehouseReceived, entity.StatusInspecting:
		return nil
	case entity.StatusPendingCollection:
		return errno.ErrNotReady.With("asset is %s and has not been collected", s)
	}
	return errno.ErrAlreadyProcessed.With("asset is %s", s)
}

// requireStatus accepts any of allowed. Pre-inspection assets are reported as
// not ready, anything else as an invalid transition.
func requireStatus(s entity.AssetStatus, op string, allowed ...entity.AssetStatus) error {
	for _, a := range allowed {
		if s == a {
			return nil
		}
	}
	if s.PreInspection() {
		return errno.ErrNotReady.With("cannot %s while asset is %s", op, s)
	}
	return errno.ErrInvalidTransition.With("cannot %s while asset is %s", op, s)
}

// RecycleGuard allows dismantling only an asset without a RecycleRecord that
// is RECYCLED, or INSPECTED with a RECYCLE triage outcome.
func RecycleGuard(a *entity.Asset, hasRecord bool, inspection *entity.Inspection) error {
	if hasRecord {
		return errno.ErrDuplicateProcessing.With("asset %d already has a recycle record", a.ID)
	}
	switch a.Status {
	case entity.StatusRecycled:
		return nil
	case entity.StatusInspected:
		if inspection != nil && inspection.TriageResult == entity.TriageRecycle {
			return nil
		}
		return errno.ErrDuplicateProcessing.With("asset %d was not triaged for recycling", a.ID)
	}
	return errno.ErrDuplicateProcessing.With("asset %d is %s", a.ID, a.Status)
}

func triageTarget(r entity.TriageResult) (entity.AssetStatus, error) {
	switch r {
	case entity.TriageReuse:
		return entity.StatusReadyForReuse, nil
	case entity.TriageRecycle:
		return entity.StatusInspected, nil
	case entity.TriageArt:
		return entity.StatusArtCandidate, nil
	}
	return "", fmt.Errorf("unknown triage result %q", r)
}
