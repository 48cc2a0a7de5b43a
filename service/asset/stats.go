package asset

import (
	"context"

	"solarcycle.GO/core/errno"
	assetRepo "solarcycle.GO/model/repository/asset"
)

type TriageStats struct {
	Strategy    string                 `json:"strategy"`
	Evaluations uint64                 `json:"evaluations"`
	ByResult    []assetRepo.GroupCount `json:"byResult"`
	ByStatus    []assetRepo.GroupCount `json:"byStatus"`
}

// TriageStats reports persisted triage outcomes and the current status
// distribution. Evaluations counts classifier runs since process start.
func (r *Registry) TriageStats(ctx context.Context) (*TriageStats, error) {
	repo := r.assets.WithTx(r.db.WithContext(ctx))
	byResult, err := repo.CountByTriage()
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	byStatus, err := repo.CountByStatus()
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	return &TriageStats{
		Strategy:    r.triage.StrategyName(),
		Evaluations: r.triage.Evaluations(),
		ByResult:    byResult,
		ByStatus:    byStatus,
	}, nil
}
