package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"solarcycle.GO/model/entity"
)

// MemorySigner is the address the in-process ledger signs with.
const MemorySigner = "0x00000000000000000000000000000000000050C1"

// MemoryClient is an append-only in-process ledger for development and tests.
// Fail makes an operation return an error until cleared.
type MemoryClient struct {
	mu          sync.Mutex
	txCount     int64
	assets      map[string]*memoryAsset
	owners      map[string]string
	balances    map[string]map[entity.MaterialType]*big.Int
	batches     map[string]bool
	txs         map[string]TxState
	failures    map[string]error
	unconfirmed map[string]bool
	calls       map[string]int
	delay       time.Duration
	noTokenID   bool
}

type memoryAsset struct {
	brand, model string
	history      []HistoryEntry
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		assets:      make(map[string]*memoryAsset),
		owners:      make(map[string]string),
		balances:    make(map[string]map[entity.MaterialType]*big.Int),
		batches:     make(map[string]bool),
		txs:         make(map[string]TxState),
		failures:    make(map[string]error),
		unconfirmed: make(map[string]bool),
		calls:       make(map[string]int),
	}
}

// Fail makes op return err on every call. A nil err clears it.
func (m *MemoryClient) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Unconfirmed makes op apply its write but report ErrTxUnconfirmed, as when
// the receipt wait times out after the transaction was sent.
func (m *MemoryClient) Unconfirmed(op string, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !v {
		delete(m.unconfirmed, op)
		return
	}
	m.unconfirmed[op] = true
}

// SetTxState overrides what TxStatus reports for hash.
func (m *MemoryClient) SetTxState(hash string, state TxState) {
	m.mu.Lock()
	m.txs[hash] = state
	m.mu.Unlock()
}

// SetDelay slows every write down, to widen race windows in tests.
func (m *MemoryClient) SetDelay(d time.Duration) {
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
}

// OmitTokenIDs makes MintCollectible succeed without reporting a token id.
func (m *MemoryClient) OmitTokenIDs(v bool) {
	m.mu.Lock()
	m.noTokenID = v
	m.mu.Unlock()
}

// Calls returns how many times op was invoked, failed calls included.
func (m *MemoryClient) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MemoryClient) Registered(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.assets[id]
	return ok
}

// Owner returns the recorded holder of tokenID without counting a call.
func (m *MemoryClient) Owner(tokenID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owners[tokenID]
}

// BalanceOf returns a copy of the material balance of addr.
func (m *MemoryClient) BalanceOf(addr string, material entity.MaterialType) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[addr][material]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// begin counts the call and returns the injected failure, if any. The caller
// holds m.mu on success.
func (m *MemoryClient) begin(ctx context.Context, op string) error {
	m.mu.Lock()
	m.calls[op]++
	err := m.failures[op]
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	return nil
}

func (m *MemoryClient) nextHash() string {
	m.txCount++
	return common.BigToHash(big.NewInt(m.txCount)).Hex()
}

// commit issues the hash of an applied write and reports it as submitted.
// The caller holds m.mu.
func (m *MemoryClient) commit(ctx context.Context, op string) (string, error) {
	hash := m.nextHash()
	m.txs[hash] = TxSucceeded
	notifySubmitted(ctx, hash)
	if m.unconfirmed[op] {
		return "", fmt.Errorf("%s: wait %s: %w", op, hash, ErrTxUnconfirmed)
	}
	return hash, nil
}

func (m *MemoryClient) RegisterIfAbsent(ctx context.Context, id, brand, model, location string) (string, error) {
	if err := m.begin(ctx, OpRegister); err != nil {
		return "", err
	}
	defer m.mu.Unlock()
	if _, ok := m.assets[id]; ok {
		return "", nil
	}
	m.assets[id] = &memoryAsset{brand: brand, model: model}
	return m.commit(ctx, OpRegister)
}

func (m *MemoryClient) RecordStatus(ctx context.Context, id string, status Status, location, note string) (string, error) {
	if err := m.begin(ctx, OpRecordStatus); err != nil {
		return "", err
	}
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return "", fmt.Errorf("panel %s not registered", id)
	}
	a.history = append(a.history, HistoryEntry{
		Status:    status,
		Location:  location,
		Note:      note,
		Actor:     MemorySigner,
		Timestamp: time.Now().UTC(),
	})
	return m.commit(ctx, OpRecordStatus)
}

func (m *MemoryClient) MintCollectible(ctx context.Context, id, metadataURI, owner string) (string, string, error) {
	if err := m.begin(ctx, OpMintCollectible); err != nil {
		return "", "", err
	}
	defer m.mu.Unlock()
	if owner == "" {
		owner = MemorySigner
	}
	tokenID := strconv.Itoa(len(m.owners) + 1)
	m.owners[tokenID] = owner
	hash, err := m.commit(ctx, OpMintCollectible)
	if err != nil {
		return "", "", err
	}
	if m.noTokenID {
		return "", hash, nil
	}
	return tokenID, hash, nil
}

func (m *MemoryClient) TransferOwnership(ctx context.Context, tokenID, to string) (string, error) {
	if err := m.begin(ctx, OpTransferOwnership); err != nil {
		return "", err
	}
	defer m.mu.Unlock()
	if _, ok := m.owners[tokenID]; !ok {
		return "", fmt.Errorf("token %s does not exist", tokenID)
	}
	m.owners[tokenID] = to
	return m.commit(ctx, OpTransferOwnership)
}

func (m *MemoryClient) MintMaterials(ctx context.Context, batch, to string, amounts map[entity.MaterialType]*big.Int) (string, error) {
	if err := m.begin(ctx, OpMintMaterials); err != nil {
		return "", err
	}
	defer m.mu.Unlock()
	if m.batches[batch] {
		return "", nil
	}
	m.batches[batch] = true
	for material, amount := range amounts {
		m.credit(to, material, amount)
	}
	return m.commit(ctx, OpMintMaterials)
}

// TransferMaterial credits the recipient. The signer's own balance is not
// checked; stock is enforced locally before any transfer.
func (m *MemoryClient) TransferMaterial(ctx context.Context, material entity.MaterialType, to string, amount *big.Int) (string, error) {
	if err := m.begin(ctx, OpTransferMaterial); err != nil {
		return "", err
	}
	defer m.mu.Unlock()
	m.credit(to, material, amount)
	return m.commit(ctx, OpTransferMaterial)
}

func (m *MemoryClient) credit(addr string, material entity.MaterialType, amount *big.Int) {
	if m.balances[addr] == nil {
		m.balances[addr] = make(map[entity.MaterialType]*big.Int)
	}
	b, ok := m.balances[addr][material]
	if !ok {
		b = new(big.Int)
		m.balances[addr][material] = b
	}
	b.Add(b, amount)
}

func (m *MemoryClient) ReadHistory(ctx context.Context, id string) ([]HistoryEntry, error) {
	if err := m.begin(ctx, OpReadHistory); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, nil
	}
	out := make([]HistoryEntry, len(a.history))
	copy(out, a.history)
	return out, nil
}

func (m *MemoryClient) OwnerOf(ctx context.Context, tokenID string) (string, error) {
	if err := m.begin(ctx, OpOwnerOf); err != nil {
		return "", err
	}
	defer m.mu.Unlock()
	owner, ok := m.owners[tokenID]
	if !ok {
		return "", fmt.Errorf("token %s does not exist", tokenID)
	}
	return owner, nil
}

func (m *MemoryClient) TxStatus(ctx context.Context, hash string) (TxState, error) {
	if err := m.begin(ctx, OpTxStatus); err != nil {
		return TxUnknown, err
	}
	defer m.mu.Unlock()
	return m.txs[hash], nil
}

func (m *MemoryClient) Enabled() bool  { return true }
func (m *MemoryClient) Signer() string { return MemorySigner }
