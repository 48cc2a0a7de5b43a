package asset

import (
	"context"

	"golang.org/x/sync/errgroup"

	"solarcycle.GO/core/errno"
	"solarcycle.GO/model/entity"
	"solarcycle.GO/service/ledger"
)

// HistoryReport puts the local record next to what the ledger has seen.
type HistoryReport struct {
	Asset       *entity.Asset         `json:"asset"`
	Ledger      []ledger.HistoryEntry `json:"ledger"`
	LedgerError string                `json:"ledgerError,omitempty"`
	Mirrors     []entity.LedgerOutbox `json:"mirrors"`
	// InSync is true when the last ledger entry matches the mapped local status.
	InSync bool `json:"inSync"`
}

// History reads the ledger and the outbox in parallel. A ledger failure is
// reported in the result, not returned, since the ledger is only a mirror.
func (r *Registry) History(ctx context.Context, id uint) (*HistoryReport, error) {
	a, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	report := &HistoryReport{Asset: a}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entries, err := r.sync.Client().ReadHistory(gctx, a.ExternalID())
		if err != nil {
			report.LedgerError = err.Error()
			return nil
		}
		report.Ledger = entries
		return nil
	})
	g.Go(func() error {
		rows, err := r.outbox.WithTx(r.db.WithContext(gctx)).ForAsset(a.ID)
		if err != nil {
			return errno.ErrDatabase.Wrap(err)
		}
		report.Mirrors = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if n := len(report.Ledger); n > 0 {
		report.InSync = report.Ledger[n-1].Status == ledger.MapStatus(a.Status)
	}
	return report, nil
}
