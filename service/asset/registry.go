// Package asset owns the canonical state of each panel and its transitions.
package asset

import (
	"context"
	"errors"
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
	outboxRepo "solarcycle.GO/model/repository/outbox"
	"solarcycle.GO/service/events"
	"solarcycle.GO/service/ledger"
	"solarcycle.GO/service/triage"
)

// Registry runs every status transition as one local transaction that also
// writes the ledger mirror to the outbox.
type Registry struct {
	db     *gorm.DB
	assets *assetRepo.AssetRepository
	outbox *outboxRepo.OutboxRepository
	triage *triage.Engine
	sync   *ledger.Synchronizer
	events events.Publisher
	log    *zap.Logger
}

func NewRegistry(db *gorm.DB, engine *triage.Engine, sync *ledger.Synchronizer, publisher events.Publisher) *Registry {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Registry{
		db:     db,
		assets: assetRepo.NewAssetRepository(db),
		outbox: outboxRepo.NewOutboxRepository(db),
		triage: engine,
		sync:   sync,
		events: publisher,
		log:    logger.Named("asset"),
	}
}

func (r *Registry) Synchronizer() *ledger.Synchronizer {
	return r.sync
}

func (r *Registry) Triage() *triage.Engine {
	return r.triage
}

// Committed runs the post-commit side effects of a transition.
func (r *Registry) Committed(a *entity.Asset, from entity.AssetStatus) {
	monitor.AssetTransitions.WithLabelValues(string(a.Status)).Inc()
	r.sync.Kick()
	events.Emit(r.events, events.LifecycleEvent{
		AssetID:    a.ID,
		ExternalID: a.ExternalID(),
		From:       from,
		To:         a.Status,
		At:         time.Now().UTC(),
	})
	r.log.Info("asset transition",
		zap.Uint("asset_id", a.ID), zap.String("from", string(from)), zap.String("to", string(a.Status)))
}

// lockAsset loads the asset for update inside tx.
func lockAsset(tx *gorm.DB, id uint) (*entity.Asset, error) {
	a, err := assetRepo.NewAssetRepository(tx).FindByIDForUpdate(id)
	if repository.IsNotFound(err) {
		return nil, errno.ErrAssetNotFound.With("id %d", id)
	}
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	return a, nil
}

// move flips the status of a locked asset, writes fields with it, and
// enqueues the mirror, linked to recordID when set. a is reloaded in place.
func (r *Registry) move(tx *gorm.DB, a *entity.Asset, to entity.AssetStatus, fields map[string]interface{}, note string, recordID *uint) error {
	if !CanTransition(a.Status, to) {
		return errno.ErrInvalidTransition.With("%s -> %s", a.Status, to)
	}
	repo := assetRepo.NewAssetRepository(tx)
	ok, err := repo.UpdateStatus(a.ID, a.Status, to, fields)
	if err != nil {
		return errno.ErrDatabase.Wrap(err)
	}
	if !ok {
		return errno.ErrDuplicateProcessing.With("asset %d changed concurrently", a.ID)
	}
	fresh, err := repo.FindByID(a.ID)
	if err != nil {
		return errno.ErrDatabase.Wrap(err)
	}
	*a = *fresh
	return r.sync.EnqueueStatus(tx, a, ledger.MapStatus(to), note, recordID)
}

// Move is the transition primitive for other services: it runs inside their
// transaction and leaves Committed to the caller.
func (r *Registry) Move(tx *gorm.DB, a *entity.Asset, to entity.AssetStatus, fields map[string]interface{}, note string, recordID *uint) error {
	return r.move(tx, a, to, fields, note, recordID)
}

// transition locks the asset, checks guard, moves it to `to` and runs the
// post-commit effects.
func (r *Registry) transition(ctx context.Context, id uint, to entity.AssetStatus, guard func(*entity.Asset) error, fields map[string]interface{}, note string) (*entity.Asset, error) {
	var a *entity.Asset
	var from entity.AssetStatus
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if a, err = lockAsset(tx, id); err != nil {
			return err
		}
		if err := guard(a); err != nil {
			return err
		}
		from = a.Status
		return r.move(tx, a, to, fields, note, nil)
	})
	if err != nil {
		return nil, err
	}
	r.Committed(a, from)
	return a, nil
}

type ScanInput struct {
	NfcTagID string `json:"nfcTagId"`
	QRCode   string `json:"qrCode"`
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	Location string `json:"location"`
	// PendingCollection creates the asset before pickup instead of in transit.
	PendingCollection bool `json:"pendingCollection"`
}

// ScanOrCreate updates the asset matching either identifier or creates it.
// created reports whether a new row was inserted.
func (r *Registry) ScanOrCreate(ctx context.Context, in ScanInput) (a *entity.Asset, created bool, err error) {
	if in.NfcTagID == "" && in.QRCode == "" {
		return nil, false, errno.ErrMissingID
	}
	for attempt := 0; ; attempt++ {
		a, created, err = r.scanOnce(ctx, in)
		// a concurrent first scan won the insert; the retry finds its row
		if attempt == 0 && repository.IsDuplicate(err) {
			continue
		}
		break
	}
	if err != nil {
		if repository.IsDuplicate(err) {
			return nil, false, errno.ErrValidation.With("identifier already belongs to another asset")
		}
		return nil, false, err
	}
	if created {
		r.Committed(a, "")
	}
	return a, created, nil
}

func (r *Registry) scanOnce(ctx context.Context, in ScanInput) (*entity.Asset, bool, error) {
	var a *entity.Asset
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := r.assets.WithTx(tx)
		existing, err := repo.FindByIdentifier(in.NfcTagID, in.QRCode)
		if err != nil && !repository.IsNotFound(err) {
			return errno.ErrDatabase.Wrap(err)
		}
		if existing != nil {
			fields := scanUpdates(existing, in)
			if len(fields) > 0 {
				if err := repo.Update(existing.ID, fields); err != nil {
					return errno.ErrDatabase.Wrap(err)
				}
				if existing, err = repo.FindByID(existing.ID); err != nil {
					return errno.ErrDatabase.Wrap(err)
				}
			}
			a = existing
			return nil
		}

		status := entity.StatusInTransit
		if in.PendingCollection {
			status = entity.StatusPendingCollection
		}
		a = &entity.Asset{
			NfcTagID: nonEmpty(in.NfcTagID),
			QRCode:   nonEmpty(in.QRCode),
			Status:   status,
			Brand:    in.Brand,
			Model:    in.Model,
			Location: in.Location,
		}
		if err := repo.Create(a); err != nil {
			return errno.ErrDatabase.Wrap(err)
		}
		created = true
		if err := r.sync.EnqueueRegister(tx, a); err != nil {
			return err
		}
		return r.sync.EnqueueStatus(tx, a, ledger.MapStatus(status), "scanned", nil)
	})
	return a, created, err
}

func scanUpdates(a *entity.Asset, in ScanInput) map[string]interface{} {
	fields := map[string]interface{}{}
	if in.Brand != "" && in.Brand != a.Brand {
		fields["brand"] = in.Brand
	}
	if in.Model != "" && in.Model != a.Model {
		fields["model"] = in.Model
	}
	if in.Location != "" && in.Location != a.Location {
		fields["location"] = in.Location
	}
	if in.NfcTagID != "" && a.NfcTagID == nil {
		fields["nfc_tag_id"] = in.NfcTagID
	}
	if in.QRCode != "" && a.QRCode == nil {
		fields["qr_code"] = in.QRCode
	}
	return fields
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ReceiveAtWarehouse records arrival. Receiving twice is a no-op.
func (r *Registry) ReceiveAtWarehouse(ctx context.Context, id uint, location string) (*entity.Asset, error) {
	fields := map[string]interface{}{}
	if location != "" {
		fields["location"] = location
	}
	a, err := r.transition(ctx, id, entity.StatusWarehouseReceived, func(a *entity.Asset) error {
		if a.Status == entity.StatusWarehouseReceived {
			return errAlreadyThere
		}
		if a.Status != entity.StatusPendingCollection && a.Status != entity.StatusInTransit {
			return errno.ErrInvalidTransition.With("cannot receive an asset that is %s", a.Status)
		}
		return nil
	}, fields, "received at warehouse")
	if errors.Is(err, errAlreadyThere) {
		return r.Get(ctx, id)
	}
	return a, err
}

var errAlreadyThere = errors.New("asset already in target status")

// BeginInspection moves an inspectable asset to INSPECTING. Calling it again
// while inspecting only updates the inspector, under the same row lock.
func (r *Registry) BeginInspection(ctx context.Context, id uint, inspectorID *uint) (*entity.Asset, error) {
	fields := map[string]interface{}{}
	if inspectorID != nil {
		fields["inspector_id"] = *inspectorID
	}
	var a *entity.Asset
	var from entity.AssetStatus
	moved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if a, err = lockAsset(tx, id); err != nil {
			return err
		}
		if err := inspectable(a.Status); err != nil {
			return err
		}
		if a.Status != entity.StatusInspecting {
			from, moved = a.Status, true
			return r.move(tx, a, entity.StatusInspecting, fields, "inspection started", nil)
		}
		if len(fields) == 0 {
			return nil
		}
		repo := r.assets.WithTx(tx)
		if err := repo.Update(id, fields); err != nil {
			return errno.ErrDatabase.Wrap(err)
		}
		if a, err = repo.FindByID(id); err != nil {
			return errno.ErrDatabase.Wrap(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if moved {
		r.Committed(a, from)
	}
	return a, nil
}

type CompleteInspectionInput struct {
	AssetID           uint    `json:"-"`
	InspectorID       *uint   `json:"inspectorId"`
	Voltage           float64 `json:"voltage"`
	Amperage          float64 `json:"amperage"`
	PhysicalCondition string  `json:"physicalCondition" validate:"required"`
	Notes             string  `json:"notes"`
}

// CompleteInspection classifies the asset once and records the outcome.
func (r *Registry) CompleteInspection(ctx context.Context, in CompleteInspectionInput) (*entity.Inspection, *entity.Asset, error) {
	if in.PhysicalCondition == "" {
		return nil, nil, errno.ErrValidation.With("physicalCondition is required")
	}
	var a *entity.Asset
	var ins *entity.Inspection
	var from entity.AssetStatus
	var decision triage.Decision
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if a, err = lockAsset(tx, in.AssetID); err != nil {
			return err
		}
		if err := inspectable(a.Status); err != nil {
			return err
		}
		repo := r.assets.WithTx(tx)
		if _, err := repo.FindInspection(a.ID); err == nil {
			return errno.ErrAlreadyProcessed.With("asset %d already inspected", a.ID)
		} else if !repository.IsNotFound(err) {
			return errno.ErrDatabase.Wrap(err)
		}

		decision = r.triage.Propose(in.Voltage, in.Amperage, in.PhysicalCondition)
		result := decision.Result
		to, err := triageTarget(result)
		if err != nil {
			return errno.InternalServerError.Wrap(err)
		}

		inspector := in.InspectorID
		if inspector == nil {
			inspector = a.InspectorID
		}
		ins = &entity.Inspection{
			AssetID:           a.ID,
			InspectorID:       inspector,
			Voltage:           in.Voltage,
			Amperage:          in.Amperage,
			PhysicalCondition: in.PhysicalCondition,
			TriageResult:      result,
			Notes:             in.Notes,
		}
		if err := repo.CreateInspection(ins); err != nil {
			if repository.IsDuplicate(err) {
				return errno.ErrDuplicateProcessing.With("asset %d already inspected", a.ID)
			}
			return errno.ErrDatabase.Wrap(err)
		}

		from = a.Status
		fields := map[string]interface{}{
			"inspected_at":     time.Now(),
			"measured_voltage": in.Voltage,
		}
		if inspector != nil {
			fields["inspector_id"] = *inspector
		}
		return r.move(tx, a, to, fields, "triage "+string(result), nil)
	})
	if err != nil {
		return nil, nil, err
	}
	decision.Commit()
	r.Committed(a, from)
	return ins, a, nil
}

// StartRefurbishment assigns a technician to a panel approved for reuse.
func (r *Registry) StartRefurbishment(ctx context.Context, id uint, technicianID *uint) (*entity.Asset, error) {
	fields := map[string]interface{}{}
	if technicianID != nil {
		fields["refurbished_by_id"] = *technicianID
	}
	return r.transition(ctx, id, entity.StatusRefurbishing, func(a *entity.Asset) error {
		return requireStatus(a.Status, "start refurbishment", entity.StatusReadyForReuse)
	}, fields, "refurbishment started")
}

type RefurbishInput struct {
	AssetID            uint             `json:"-"`
	TechnicianID       *uint            `json:"technicianId"`
	MeasuredPowerWatts *float64         `json:"measuredPowerWatts" validate:"omitempty,gte=0"`
	MeasuredVoltage    *float64         `json:"measuredVoltage" validate:"omitempty,gte=0"`
	HealthPercentage   *float64         `json:"healthPercentage" validate:"omitempty,gte=0,lte=100"`
	WidthMm            *float64         `json:"widthMm" validate:"omitempty,gt=0"`
	HeightMm           *float64         `json:"heightMm" validate:"omitempty,gt=0"`
	DepthMm            *float64         `json:"depthMm" validate:"omitempty,gt=0"`
	WeightKg           *decimal.Decimal `json:"weightKg"`
}

// CompleteRefurbishment stores the measurements and lists the panel for sale.
func (r *Registry) CompleteRefurbishment(ctx context.Context, in RefurbishInput) (*entity.Asset, error) {
	fields := map[string]interface{}{}
	setFloat := func(col string, v *float64) {
		if v != nil {
			fields[col] = *v
		}
	}
	setFloat("measured_power_watts", in.MeasuredPowerWatts)
	setFloat("measured_voltage", in.MeasuredVoltage)
	setFloat("health_percentage", in.HealthPercentage)
	setFloat("width_mm", in.WidthMm)
	setFloat("height_mm", in.HeightMm)
	setFloat("depth_mm", in.DepthMm)
	if in.WeightKg != nil {
		if !in.WeightKg.IsPositive() {
			return nil, errno.ErrValidation.With("weightKg must be positive")
		}
		fields["weight_kg"] = decimal.NewNullDecimal(*in.WeightKg)
	}
	if in.TechnicianID != nil {
		fields["refurbished_by_id"] = *in.TechnicianID
	}
	return r.transition(ctx, in.AssetID, entity.StatusListedForSale, func(a *entity.Asset) error {
		return requireStatus(a.Status, "complete refurbishment", entity.StatusReadyForReuse, entity.StatusRefurbishing)
	}, fields, "listed for sale")
}

func (r *Registry) Get(ctx context.Context, id uint) (*entity.Asset, error) {
	a, err := r.assets.WithTx(r.db.WithContext(ctx)).FindWithRecords(id)
	if repository.IsNotFound(err) {
		return nil, errno.ErrAssetNotFound.With("id %d", id)
	}
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	return a, nil
}

// FindByIdentifier looks an asset up by NFC tag or QR code.
func (r *Registry) FindByIdentifier(ctx context.Context, identifier string) (*entity.Asset, error) {
	a, err := r.assets.WithTx(r.db.WithContext(ctx)).FindByIdentifier(identifier, identifier)
	if repository.IsNotFound(err) {
		return nil, errno.ErrAssetNotFound.With("identifier %s", identifier)
	}
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	return r.Get(ctx, a.ID)
}
