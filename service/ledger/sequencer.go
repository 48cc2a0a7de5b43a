package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"solarcycle.GO/core/lock"
	"solarcycle.GO/core/logger"
	"solarcycle.GO/core/monitor"
	"solarcycle.GO/model/entity"
)

var ErrSequencerClosed = errors.New("ledger: signer sequencer closed")

// Sequencer runs ledger writes of one signing identity one at a time, so the
// signer never has two transactions outstanding. With a distributed lock the
// guarantee also holds across processes.
type Sequencer struct {
	signer  string
	lock    lock.DistributedLock
	lockTTL time.Duration
	jobs    chan job
	done    chan struct{}
	once    sync.Once
}

type job struct {
	ctx    context.Context
	fn     func(context.Context) error
	result chan error
}

// NewSequencer starts the worker goroutine. l may be nil.
func NewSequencer(signer string, l lock.DistributedLock, lockTTL time.Duration) *Sequencer {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	s := &Sequencer{
		signer:  signer,
		lock:    l,
		lockTTL: lockTTL,
		jobs:    make(chan job),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Sequencer) loop() {
	for {
		select {
		case j := <-s.jobs:
			j.result <- s.run(j)
		case <-s.done:
			return
		}
	}
}

func (s *Sequencer) run(j job) error {
	if err := j.ctx.Err(); err != nil {
		return err
	}
	if s.lock != nil {
		key := "ledger:signer:" + s.signer
		if err := lock.AcquireWait(j.ctx, s.lock, key, s.lockTTL, 100*time.Millisecond); err != nil {
			return err
		}
		defer func() {
			if err := s.lock.Release(context.Background(), key); err != nil {
				logger.Warn("ledger: release signer lock", zap.String("signer", s.signer), zap.Error(err))
			}
		}()
	}
	return j.fn(j.ctx)
}

// Do queues fn and waits for it to finish.
func (s *Sequencer) Do(ctx context.Context, fn func(context.Context) error) error {
	j := job{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case s.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSequencerClosed
	}
	return <-j.result
}

// Close stops the worker. Jobs already running finish.
func (s *Sequencer) Close() {
	s.once.Do(func() { close(s.done) })
}

// SerializedClient routes every write of the wrapped client through a
// Sequencer. Reads bypass the queue.
type SerializedClient struct {
	inner Client
	seq   *Sequencer
}

func NewSerializedClient(inner Client, l lock.DistributedLock) *SerializedClient {
	return &SerializedClient{inner: inner, seq: NewSequencer(inner.Signer(), l, 0)}
}

func (c *SerializedClient) Close() {
	c.seq.Close()
}

// Unwrap returns the underlying client.
func (c *SerializedClient) Unwrap() Client {
	return c.inner
}

func (c *SerializedClient) write(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	if !c.inner.Enabled() {
		err = fn(ctx)
	} else {
		err = c.seq.Do(ctx, fn)
	}
	observe(op, err)
	return err
}

func observe(op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrLedgerDisabled):
		result = "disabled"
	case err != nil:
		result = "error"
	}
	monitor.LedgerCalls.WithLabelValues(op, result).Inc()
}

func (c *SerializedClient) RegisterIfAbsent(ctx context.Context, id, brand, model, location string) (string, error) {
	var hash string
	err := c.write(ctx, OpRegister, func(ctx context.Context) (err error) {
		hash, err = c.inner.RegisterIfAbsent(ctx, id, brand, model, location)
		return err
	})
	return hash, err
}

func (c *SerializedClient) RecordStatus(ctx context.Context, id string, status Status, location, note string) (string, error) {
	var hash string
	err := c.write(ctx, OpRecordStatus, func(ctx context.Context) (err error) {
		hash, err = c.inner.RecordStatus(ctx, id, status, location, note)
		return err
	})
	return hash, err
}

func (c *SerializedClient) MintCollectible(ctx context.Context, id, metadataURI, owner string) (string, string, error) {
	var tokenID, hash string
	err := c.write(ctx, OpMintCollectible, func(ctx context.Context) (err error) {
		tokenID, hash, err = c.inner.MintCollectible(ctx, id, metadataURI, owner)
		return err
	})
	return tokenID, hash, err
}

func (c *SerializedClient) TransferOwnership(ctx context.Context, tokenID, to string) (string, error) {
	var hash string
	err := c.write(ctx, OpTransferOwnership, func(ctx context.Context) (err error) {
		hash, err = c.inner.TransferOwnership(ctx, tokenID, to)
		return err
	})
	return hash, err
}

func (c *SerializedClient) MintMaterials(ctx context.Context, batch, to string, amounts map[entity.MaterialType]*big.Int) (string, error) {
	var hash string
	err := c.write(ctx, OpMintMaterials, func(ctx context.Context) (err error) {
		hash, err = c.inner.MintMaterials(ctx, batch, to, amounts)
		return err
	})
	return hash, err
}

func (c *SerializedClient) TransferMaterial(ctx context.Context, material entity.MaterialType, to string, amount *big.Int) (string, error) {
	var hash string
	err := c.write(ctx, OpTransferMaterial, func(ctx context.Context) (err error) {
		hash, err = c.inner.TransferMaterial(ctx, material, to, amount)
		return err
	})
	return hash, err
}

func (c *SerializedClient) ReadHistory(ctx context.Context, id string) ([]HistoryEntry, error) {
	entries, err := c.inner.ReadHistory(ctx, id)
	observe(OpReadHistory, err)
	return entries, err
}

func (c *SerializedClient) OwnerOf(ctx context.Context, tokenID string) (string, error) {
	owner, err := c.inner.OwnerOf(ctx, tokenID)
	observe(OpOwnerOf, err)
	return owner, err
}

func (c *SerializedClient) TxStatus(ctx context.Context, hash string) (TxState, error) {
	state, err := c.inner.TxStatus(ctx, hash)
	observe(OpTxStatus, err)
	return state, err
}

func (c *SerializedClient) Enabled() bool  { return c.inner.Enabled() }
func (c *SerializedClient) Signer() string { return c.inner.Signer() }
