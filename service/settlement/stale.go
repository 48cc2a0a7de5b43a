package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"solarcycle.GO/core/errno"
	"solarcycle.GO/core/monitor"
	"solarcycle.GO/model/entity"
	"solarcycle.GO/model/repository"
	assetRepo "solarcycle.GO/model/repository/asset"
	orderRepo "solarcycle.GO/model/repository/order"
	"solarcycle.GO/service/ledger"
)

const abandonedReason = "abandoned while processing"

// StaleReport counts how ReconcileStaleOrders settled stuck orders. Pending
// orders still wait on the ledger and are looked at again next run.
type StaleReport struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

func (r StaleReport) Closed() int { return r.Completed + r.Failed }

// ReconcileStaleOrders settles panel, art and material orders left PROCESSING
// for longer than olderThan, e.g. after a crash or an unconfirmed transfer.
// A recorded transfer hash is settled by its ledger status. Without one, a
// collectible sale completes when the buyer holds the token and fails
// otherwise; a material sale fails and returns its reservation.
func (s *Service) ReconcileStaleOrders(ctx context.Context, olderThan time.Duration) (StaleReport, error) {
	var report StaleReport
	cutoff := time.Now().Add(-olderThan)
	db := s.db.WithContext(ctx)
	orders := orderRepo.NewOrderRepository(db)
	assets := assetRepo.NewAssetRepository(db)
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	var panels []entity.PanelOrder
	if err := orders.Stale(&panels, cutoff); err != nil {
		return report, errno.ErrDatabase.Wrap(err)
	}
	for i := range panels {
		o := &panels[i]
		var tokenID string
		a, err := assets.FindByID(o.AssetID)
		if err != nil && !repository.IsNotFound(err) {
			return report, errno.ErrDatabase.Wrap(err)
		}
		if a != nil && a.TokenID != nil {
			tokenID = *a.TokenID
		}
		var sold *entity.Asset
		err = s.settleStale(ctx, "panel", &entity.PanelOrder{}, &o.OrderBase, tokenID, &report,
			func(tx *gorm.DB) (err error) {
				sold, err = s.settlePanel(tx, o.AssetID, o.BuyerWallet)
				return err
			}, nil)
		if err == nil && sold != nil {
			s.registry.Committed(sold, entity.StatusListedForSale)
		}
		keep(err)
	}

	var art []entity.ArtOrder
	if err := orders.Stale(&art, cutoff); err != nil {
		return report, errno.ErrDatabase.Wrap(err)
	}
	for i := range art {
		o := &art[i]
		var tokenID string
		p, err := assets.FindArtPiece(o.ArtPieceID)
		if err != nil && !repository.IsNotFound(err) {
			return report, errno.ErrDatabase.Wrap(err)
		}
		if p != nil && p.TokenID != nil {
			tokenID = *p.TokenID
		}
		keep(s.settleStale(ctx, "art", &entity.ArtOrder{}, &o.OrderBase, tokenID, &report,
			func(tx *gorm.DB) error {
				ok, err := markArtSold(tx, o.ArtPieceID, o.BuyerWallet)
				if err == nil && !ok {
					s.log.Warn("sold art piece was already marked sold", zap.Uint("art_piece_id", o.ArtPieceID))
				}
				return err
			}, nil))
	}

	var materials []entity.MaterialOrder
	if err := orders.Stale(&materials, cutoff); err != nil {
		return report, errno.ErrDatabase.Wrap(err)
	}
	for i := range materials {
		o := &materials[i]
		keep(s.settleStale(ctx, "material", &entity.MaterialOrder{}, &o.OrderBase, "", &report,
			func(tx *gorm.DB) error { return consumeStock(tx, o.Material, o.QuantityKg) },
			func(tx *gorm.DB) error { return releaseStock(tx, o.Material, o.QuantityKg) }))
	}
	return report, firstErr
}

// verdict decides what became of a stale order's transfer. It answers
// PROCESSING while the transfer may still land.
func (s *Service) verdict(ctx context.Context, o *entity.OrderBase, tokenID string) (entity.OrderStatus, string, error) {
	if o.TxHash != nil && *o.TxHash != "" {
		state, err := s.client().TxStatus(ctx, *o.TxHash)
		if err != nil {
			return entity.OrderProcessing, "", err
		}
		switch state {
		case ledger.TxSucceeded:
			return entity.OrderCompleted, "", nil
		case ledger.TxPending:
			return entity.OrderProcessing, "", nil
		}
		return entity.OrderFailed, fmt.Sprintf("transfer %s %s", *o.TxHash, state), nil
	}
	if tokenID == "" {
		return entity.OrderFailed, abandonedReason, nil
	}
	owner, err := s.client().OwnerOf(ctx, tokenID)
	if err != nil {
		return entity.OrderProcessing, "", err
	}
	if strings.EqualFold(owner, o.BuyerWallet) {
		return entity.OrderCompleted, "", nil
	}
	return entity.OrderFailed, abandonedReason, nil
}

// settleStale closes one order with complete or fail run in the same
// transaction. The report only counts orders whose transaction committed.
func (s *Service) settleStale(ctx context.Context, kind string, model interface{}, o *entity.OrderBase, tokenID string,
	report *StaleReport, complete, fail func(tx *gorm.DB) error) error {
	status, reason, err := s.verdict(ctx, o, tokenID)
	if err != nil {
		s.log.Warn("stale order left processing, ledger unreachable",
			zap.String("kind", kind), zap.Uint("order_id", o.ID), zap.Error(err))
		report.Pending++
		return nil
	}
	if status == entity.OrderProcessing {
		report.Pending++
		return nil
	}

	var closed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := orderRepo.NewOrderRepository(tx)
		effect := fail
		var ok bool
		var err error
		if status == entity.OrderCompleted {
			effect = complete
			ok, err = orders.Complete(model, o.ID, "")
		} else {
			ok, err = orders.Fail(model, o.ID, reason)
		}
		if err != nil {
			return errno.ErrDatabase.Wrap(err)
		}
		if !ok {
			return nil
		}
		if effect != nil {
			if err := effect(tx); err != nil {
				return err
			}
		}
		closed = true
		return nil
	})
	if err != nil {
		s.log.Error("could not settle stale order",
			zap.String("kind", kind), zap.Uint("order_id", o.ID), zap.String("status", string(status)), zap.Error(err))
		return err
	}
	if !closed {
		return nil
	}
	if status == entity.OrderCompleted {
		report.Completed++
	} else {
		report.Failed++
	}
	monitor.Purchases.WithLabelValues(kind, string(status)).Inc()
	s.log.Warn("stale order settled",
		zap.String("kind", kind), zap.Uint("order_id", o.ID), zap.String("reference", o.Reference),
		zap.String("status", string(status)))
	return nil
}
