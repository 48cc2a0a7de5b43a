package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"solarcycle.GO/core/logger"
	"solarcycle.GO/core/monitor"
	"solarcycle.GO/model/entity"
	assetRepo "solarcycle.GO/model/repository/asset"
	materialRepo "solarcycle.GO/model/repository/material"
	outboxRepo "solarcycle.GO/model/repository/outbox"
)

type Options struct {
	// MaxAttempts is how many failed deliveries turn a row FAILED.
	MaxAttempts int
	// Interval is the idle polling period of Run.
	Interval  time.Duration
	BatchSize int
	// ClaimTTL is how long a claimed row may stay SENDING before another
	// dispatcher takes it over. Keep it above the ledger tx timeout.
	ClaimTTL time.Duration
	// RetryBase is the delay after the first failed attempt. It doubles per
	// attempt up to RetryMax.
	RetryBase time.Duration
	RetryMax  time.Duration
}

// Synchronizer delivers ledger_outbox rows to the ledger after the local
// transaction that wrote them has committed.
type Synchronizer struct {
	db          *gorm.DB
	client      Client
	outbox      *outboxRepo.OutboxRepository
	records     *materialRepo.RecordRepository
	assets      *assetRepo.AssetRepository
	maxAttempts int
	interval    time.Duration
	batchSize   int
	claimTTL    time.Duration
	retryBase   time.Duration
	retryMax    time.Duration
	now         func() time.Time
	kick        chan struct{}
	mu          sync.Mutex
	log         *zap.Logger
}

func NewSynchronizer(db *gorm.DB, client Client, opts Options) *Synchronizer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 8
	}
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = 10 * time.Minute
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 5 * time.Second
	}
	if opts.RetryMax < opts.RetryBase {
		opts.RetryMax = 10 * time.Minute
	}
	return &Synchronizer{
		db:          db,
		client:      client,
		outbox:      outboxRepo.NewOutboxRepository(db),
		records:     materialRepo.NewRecordRepository(db),
		assets:      assetRepo.NewAssetRepository(db),
		maxAttempts: opts.MaxAttempts,
		interval:    opts.Interval,
		batchSize:   opts.BatchSize,
		claimTTL:    opts.ClaimTTL,
		retryBase:   opts.RetryBase,
		retryMax:    opts.RetryMax,
		now:         func() time.Time { return time.Now().UTC() },
		kick:        make(chan struct{}, 1),
		log:         logger.Named("ledger"),
	}
}

func (s *Synchronizer) Client() Client {
	return s.client
}

type registerPayload struct {
	Brand    string `mapstructure:"brand"`
	Model    string `mapstructure:"model"`
	Location string `mapstructure:"location"`
}

type statusPayload struct {
	Status   string `mapstructure:"status"`
	Location string `mapstructure:"location"`
	Note     string `mapstructure:"note"`
}

type mintPayload struct {
	Batch   string            `mapstructure:"batch"`
	To      string            `mapstructure:"to"`
	Amounts map[string]string `mapstructure:"amounts"`
}

// EnqueueRegister records a register call on tx.
func (s *Synchronizer) EnqueueRegister(tx *gorm.DB, a *entity.Asset) error {
	return s.enqueue(tx, a, entity.OutboxRegister, nil, datatypes.JSONMap{
		"brand":    a.Brand,
		"model":    a.Model,
		"location": a.Location,
	})
}

// EnqueueStatus records a status mirror on tx. recordID links the row to a
// RecycleRecord whose status_tx_hash receives the tx hash.
func (s *Synchronizer) EnqueueStatus(tx *gorm.DB, a *entity.Asset, status Status, note string, recordID *uint) error {
	return s.enqueue(tx, a, entity.OutboxStatusUpdate, recordID, datatypes.JSONMap{
		"status":   status.String(),
		"location": a.Location,
		"note":     note,
	})
}

// EnqueueMintMaterials records a fungible batch mint for a RecycleRecord.
// batch keys the mint on the ledger so it lands at most once.
func (s *Synchronizer) EnqueueMintMaterials(tx *gorm.DB, a *entity.Asset, recordID uint, batch, to string, amounts map[entity.MaterialType]*big.Int) error {
	encoded := make(map[string]interface{}, len(amounts))
	for m, v := range amounts {
		encoded[string(m)] = v.String()
	}
	return s.enqueue(tx, a, entity.OutboxMintMaterials, &recordID, datatypes.JSONMap{
		"batch":   batch,
		"to":      to,
		"amounts": encoded,
	})
}

func (s *Synchronizer) enqueue(tx *gorm.DB, a *entity.Asset, kind entity.OutboxKind, recordID *uint, payload datatypes.JSONMap) error {
	return s.outbox.WithTx(tx).Create(&entity.LedgerOutbox{
		AssetID:         a.ID,
		ExternalID:      a.ExternalID(),
		Kind:            kind,
		Payload:         payload,
		RecycleRecordID: recordID,
	})
}

// Kick wakes Run without blocking.
func (s *Synchronizer) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run drains the outbox on every Kick and every interval until ctx ends.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		case <-ticker.C:
		}
		if _, err := s.DrainOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("drain outbox", zap.Error(err))
		}
	}
}

type DrainReport struct {
	Sent     int  `json:"sent"`
	Retried  int  `json:"retried"`
	Failed   int  `json:"failed"`
	Deferred int  `json:"deferred"`
	Pending  int  `json:"pending"`
	Disabled bool `json:"disabled"`
}

// permanentError fails a row without further attempts.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// errInFlight means the row's last transaction is still waiting to be mined.
var errInFlight = errors.New("ledger: transaction still pending")

// DrainOnce delivers one batch of due rows, oldest first. Each row is claimed
// before delivery so concurrent dispatchers never send the same row. A row
// whose asset already had a failure or an unclaimable row in this batch is
// deferred so an asset's calls stay in order.
func (s *Synchronizer) DrainOnce(ctx context.Context) (DrainReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report DrainReport
	if !s.client.Enabled() {
		report.Disabled = true
		return report, s.countPending(&report)
	}

	now := s.now()
	released, err := s.outbox.ReleaseExpired(now.Add(-s.claimTTL))
	if err != nil {
		return report, err
	}
	if released > 0 {
		s.log.Warn("released expired outbox claims", zap.Int64("rows", released))
	}

	rows, err := s.outbox.Pending(s.batchSize, now)
	if err != nil {
		return report, err
	}
	blocked := make(map[uint]bool)
	for i := range rows {
		row := &rows[i]
		if ctx.Err() != nil {
			break
		}
		if blocked[row.AssetID] {
			report.Deferred++
			continue
		}
		claimed, err := s.outbox.Claim(row, now)
		if err != nil {
			return report, err
		}
		if !claimed {
			blocked[row.AssetID] = true
			report.Deferred++
			continue
		}

		hash, err := s.send(ctx, row)
		if errors.Is(err, ErrLedgerDisabled) || errors.Is(err, errInFlight) || (err != nil && ctx.Err() != nil) {
			blocked[row.AssetID] = true
			report.Deferred++
			if uerr := s.outbox.Unclaim(row.ID); uerr != nil {
				return report, uerr
			}
			continue
		}
		if err != nil {
			blocked[row.AssetID] = true
			if ferr := s.recordFailure(row, err, now, &report); ferr != nil {
				return report, ferr
			}
			continue
		}
		if err := s.markSent(row, hash); err != nil {
			return report, err
		}
		report.Sent++
	}
	return report, s.countPending(&report)
}

// send delivers row unless a transaction it submitted earlier already landed.
func (s *Synchronizer) send(ctx context.Context, row *entity.LedgerOutbox) (string, error) {
	if row.TxHash != nil && *row.TxHash != "" {
		state, err := s.client.TxStatus(ctx, *row.TxHash)
		if err != nil {
			return "", err
		}
		switch state {
		case TxSucceeded:
			return *row.TxHash, nil
		case TxPending:
			return "", errInFlight
		}
		s.log.Warn("resending ledger write",
			zap.Uint("outbox_id", row.ID), zap.String("tx_hash", *row.TxHash), zap.Stringer("state", state))
	}
	ctx = WithSubmitted(ctx, func(hash string) {
		if err := s.outbox.MarkSubmitted(row.ID, hash); err != nil {
			s.log.Error("store submitted tx hash", zap.Uint("outbox_id", row.ID), zap.String("tx_hash", hash), zap.Error(err))
		}
	})
	return s.deliver(ctx, row)
}

func (s *Synchronizer) countPending(report *DrainReport) error {
	n, err := s.outbox.CountPending()
	if err != nil {
		return err
	}
	report.Pending = int(n)
	monitor.OutboxPending.Set(float64(n))
	return nil
}

// backoff is the wait before attempt number attempts+1.
func (s *Synchronizer) backoff(attempts int) time.Duration {
	d := s.retryBase
	for i := 1; i < attempts && d < s.retryMax; i++ {
		d *= 2
	}
	if d > s.retryMax {
		d = s.retryMax
	}
	return d
}

func (s *Synchronizer) recordFailure(row *entity.LedgerOutbox, cause error, now time.Time, report *DrainReport) error {
	attempts := row.Attempts + 1
	status := entity.OutboxPending
	var next *time.Time
	var perm permanentError
	if attempts >= s.maxAttempts || errors.As(cause, &perm) {
		status = entity.OutboxFailed
		report.Failed++
		s.log.Error("ledger write abandoned",
			zap.Uint("outbox_id", row.ID), zap.String("kind", string(row.Kind)),
			zap.String("external_id", row.ExternalID), zap.Int("attempts", attempts), zap.Error(cause))
	} else {
		at := now.Add(s.backoff(attempts))
		next = &at
		report.Retried++
		s.log.Warn("ledger write failed, will retry",
			zap.Uint("outbox_id", row.ID), zap.String("kind", string(row.Kind)),
			zap.String("external_id", row.ExternalID), zap.Int("attempts", attempts),
			zap.Time("next_attempt_at", at), zap.Error(cause))
	}
	return s.outbox.MarkAttempt(row.ID, attempts, cause.Error(), status, next)
}

// markSent stores the tx hash on the row and, for recycling writes, on the record.
func (s *Synchronizer) markSent(row *entity.LedgerOutbox, hash string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.outbox.WithTx(tx).MarkSent(row.ID, hash); err != nil {
			return err
		}
		if row.RecycleRecordID == nil || hash == "" {
			return nil
		}
		column := materialRepo.ColumnStatusTx
		if row.Kind == entity.OutboxMintMaterials {
			column = materialRepo.ColumnMintTx
		}
		return s.records.WithTx(tx).SetTxHash(*row.RecycleRecordID, column, hash)
	})
}

func (s *Synchronizer) deliver(ctx context.Context, row *entity.LedgerOutbox) (string, error) {
	switch row.Kind {
	case entity.OutboxRegister:
		var p registerPayload
		if err := mapstructure.Decode(map[string]interface{}(row.Payload), &p); err != nil {
			return "", permanentError{err}
		}
		return s.client.RegisterIfAbsent(ctx, row.ExternalID, p.Brand, p.Model, p.Location)

	case entity.OutboxStatusUpdate:
		var p statusPayload
		if err := mapstructure.Decode(map[string]interface{}(row.Payload), &p); err != nil {
			return "", permanentError{err}
		}
		status, ok := ParseStatus(p.Status)
		if !ok {
			return "", permanentError{fmt.Errorf("unknown ledger status %q", p.Status)}
		}
		return s.client.RecordStatus(ctx, row.ExternalID, status, p.Location, p.Note)

	case entity.OutboxMintMaterials:
		var p mintPayload
		if err := mapstructure.Decode(map[string]interface{}(row.Payload), &p); err != nil {
			return "", permanentError{err}
		}
		amounts := make(map[entity.MaterialType]*big.Int, len(p.Amounts))
		for name, v := range p.Amounts {
			m, ok := entity.ParseMaterial(name)
			if !ok {
				return "", permanentError{fmt.Errorf("unknown material %q", name)}
			}
			n, ok := new(big.Int).SetString(v, 10)
			if !ok {
				return "", permanentError{fmt.Errorf("invalid amount %q for %s", v, name)}
			}
			amounts[m] = n
		}
		if p.Batch == "" {
			return "", permanentError{fmt.Errorf("mint row %d has no batch key", row.ID)}
		}
		return s.client.MintMaterials(ctx, p.Batch, p.To, amounts)
	}
	return "", permanentError{fmt.Errorf("unknown outbox kind %q", row.Kind)}
}
