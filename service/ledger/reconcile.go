package ledger

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"solarcycle.GO/model/entity"
)

type ReconcileReport struct {
	Checked  int  `json:"checked"`
	InSync   int  `json:"inSync"`
	Pending  int  `json:"pending"`
	Enqueued int  `json:"enqueued"`
	Errors   int  `json:"errors"`
	Disabled bool `json:"disabled"`
}

// Reconcile compares every asset's mapped status with the last ledger entry
// and enqueues the missing mirror for assets that drifted. Assets with rows
// still pending are left to the dispatcher.
func (s *Synchronizer) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	if !s.client.Enabled() {
		report.Disabled = true
		return report, nil
	}

	err := s.assets.InBatches(100, func(batch []entity.Asset) error {
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			a := &batch[i]
			if a.ExternalID() == "" {
				continue
			}
			report.Checked++
			if err := s.reconcileAsset(ctx, a, &report); err != nil {
				return err
			}
		}
		return nil
	})
	if report.Enqueued > 0 {
		s.Kick()
	}
	return report, err
}

func (s *Synchronizer) reconcileAsset(ctx context.Context, a *entity.Asset, report *ReconcileReport) error {
	pending, err := s.outbox.HasPending(a.ID)
	if err != nil {
		return err
	}
	if pending {
		report.Pending++
		return nil
	}

	history, err := s.client.ReadHistory(ctx, a.ExternalID())
	if err != nil {
		report.Errors++
		s.log.Warn("reconcile: read history", zap.String("external_id", a.ExternalID()), zap.Error(err))
		return nil
	}
	want := MapStatus(a.Status)
	if n := len(history); n > 0 && history[n-1].Status == want {
		report.InSync++
		return nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.EnqueueRegister(tx, a); err != nil {
			return err
		}
		return s.EnqueueStatus(tx, a, want, "reconcile", nil)
	})
	if err != nil {
		return err
	}
	report.Enqueued++
	s.log.Info("reconcile: status mirror re-enqueued",
		zap.String("external_id", a.ExternalID()), zap.String("status", want.String()))
	return nil
}
