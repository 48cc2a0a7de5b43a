// Package material records recycling events and the recovered material stock.
package material

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"solarcycle.GO/core/errno"
	"solarcycle.GO/core/logger"
	"solarcycle.GO/core/monitor"
	"solarcycle.GO/model/entity"
	"solarcycle.GO/model/repository"
	assetRepo "solarcycle.GO/model/repository/asset"
	materialRepo "solarcycle.GO/model/repository/material"
	"solarcycle.GO/service/asset"
	"solarcycle.GO/service/ledger"
)

type Options struct {
	// Treasury receives minted material tokens. Empty means the ledger signer.
	Treasury    string
	TokensPerKg int64
}

type Recovery struct {
	db       *gorm.DB
	registry *asset.Registry
	stock    *materialRepo.StockRepository
	records  *materialRepo.RecordRepository
	opts     Options
	log      *zap.Logger
}

func NewRecovery(db *gorm.DB, registry *asset.Registry, opts Options) *Recovery {
	if opts.TokensPerKg <= 0 {
		opts.TokensPerKg = 10
	}
	return &Recovery{
		db:       db,
		registry: registry,
		stock:    materialRepo.NewStockRepository(db),
		records:  materialRepo.NewRecordRepository(db),
		opts:     opts,
		log:      logger.Named("material"),
	}
}

type RecycleInput struct {
	AssetID    uint             `json:"-"`
	OperatorID *uint            `json:"operatorId"`
	WeightKg   *decimal.Decimal `json:"weightKg"`
}

// Recycle dismantles an asset: record, status flip and stock increments
// commit together, then the RECYCLED mirror and the material mint are left
// to the dispatcher.
func (r *Recovery) Recycle(ctx context.Context, in RecycleInput) (*entity.RecycleRecord, error) {
	if in.WeightKg != nil && !in.WeightKg.IsPositive() {
		return nil, errno.ErrValidation.With("weightKg must be positive")
	}

	var rec *entity.RecycleRecord
	var a *entity.Asset
	var from entity.AssetStatus
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assets := assetRepo.NewAssetRepository(tx)
		var err error
		a, err = assets.FindByIDForUpdate(in.AssetID)
		if repository.IsNotFound(err) {
			return errno.ErrAssetNotFound.With("id %d", in.AssetID)
		}
		if err != nil {
			return errno.ErrDatabase.Wrap(err)
		}

		hasRecord, err := assets.HasRecycleRecord(a.ID)
		if err != nil {
			return errno.ErrDatabase.Wrap(err)
		}
		inspection, err := assets.FindInspection(a.ID)
		if err != nil && !repository.IsNotFound(err) {
			return errno.ErrDatabase.Wrap(err)
		}
		if err := asset.RecycleGuard(a, hasRecord, inspection); err != nil {
			return err
		}

		weight := r.weightFor(in, a)
		parts := Decompose(weight)
		now := time.Now().UTC()
		rec = &entity.RecycleRecord{
			AssetID:       a.ID,
			OperatorID:    in.OperatorID,
			PanelWeightKg: weight,
			AluminumKg:    parts[entity.MaterialAluminum],
			GlassKg:       parts[entity.MaterialGlass],
			SiliconKg:     parts[entity.MaterialSilicon],
			CopperKg:      parts[entity.MaterialCopper],
			Fingerprint:   Fingerprint(a.ID, in.OperatorID, weight, parts, now),
			RecordedAt:    now,
		}
		if err := r.records.WithTx(tx).Create(rec); err != nil {
			if repository.IsDuplicate(err) {
				return errno.ErrDuplicateProcessing.With("asset %d already has a recycle record", a.ID)
			}
			return errno.ErrDatabase.Wrap(err)
		}

		stock := r.stock.WithTx(tx)
		for _, m := range entity.AllMaterials {
			if err := stock.Increment(m, parts[m]); err != nil {
				return errno.ErrDatabase.Wrap(err)
			}
		}

		from = a.Status
		sync := r.registry.Synchronizer()
		if a.Status == entity.StatusRecycled {
			if err := sync.EnqueueStatus(tx, a, ledger.Recycled, rec.Fingerprint, &rec.ID); err != nil {
				return err
			}
		} else {
			fields := map[string]interface{}{}
			if !a.WeightKg.Valid {
				fields["weight_kg"] = decimal.NewNullDecimal(weight)
			}
			if err := r.registry.Move(tx, a, entity.StatusRecycled, fields, rec.Fingerprint, &rec.ID); err != nil {
				return err
			}
		}
		return sync.EnqueueMintMaterials(tx, a, rec.ID, rec.Fingerprint, r.treasury(), TokenAmounts(parts, r.opts.TokensPerKg))
	})
	if err != nil {
		return nil, err
	}

	for m, kg := range rec.Materials() {
		f, _ := kg.Float64()
		monitor.RecoveredKg.WithLabelValues(string(m)).Add(f)
	}
	r.registry.Committed(a, from)
	r.log.Info("asset recycled",
		zap.Uint("asset_id", a.ID), zap.String("weight_kg", rec.PanelWeightKg.String()),
		zap.String("fingerprint", rec.Fingerprint))
	return rec, nil
}

func (r *Recovery) weightFor(in RecycleInput, a *entity.Asset) decimal.Decimal {
	if in.WeightKg != nil {
		return *in.WeightKg
	}
	if a.WeightKg.Valid && a.WeightKg.Decimal.IsPositive() {
		return a.WeightKg.Decimal
	}
	return DefaultPanelWeightKg
}

func (r *Recovery) treasury() string {
	if r.opts.Treasury != "" {
		return r.opts.Treasury
	}
	return r.registry.Synchronizer().Client().Signer()
}

// Stock returns every material in token-id order. Missing rows read as zero.
func (r *Recovery) Stock(ctx context.Context) ([]entity.MaterialStock, error) {
	rows, err := r.stock.WithTx(r.db.WithContext(ctx)).All()
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	return rows, nil
}

// RecordView is a RecycleRecord with its confirmation state spelled out.
type RecordView struct {
	entity.RecycleRecord
	ChainConfirmed bool `json:"chainConfirmed"`
}

func (r *Recovery) Records(ctx context.Context, limit int) ([]RecordView, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	recs, err := r.records.WithTx(r.db.WithContext(ctx)).Recent(limit)
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	out := make([]RecordView, 0, len(recs))
	for i := range recs {
		out = append(out, RecordView{RecycleRecord: recs[i], ChainConfirmed: recs[i].ChainConfirmed()})
	}
	return out, nil
}
