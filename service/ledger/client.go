// Package ledger mirrors asset state onto the external ledger.
package ledger

import (
	"context"
	"errors"
	"math/big"

	"solarcycle.GO/model/entity"
)

// ErrLedgerDisabled is returned by every write of a client without credentials.
var ErrLedgerDisabled = errors.New("ledger disabled")

// ErrTxUnconfirmed wraps failures that happen after a transaction was
// submitted, e.g. a receipt wait that timed out. The write may still land, so
// callers must not treat it as a definite failure.
var ErrTxUnconfirmed = errors.New("ledger: transaction submitted but not confirmed")

// Client is the contract expected from the external ledger. Every write may
// fail or be slow; RegisterIfAbsent and MintMaterials are idempotent.
type Client interface {
	// RegisterIfAbsent returns an empty hash when id is already registered.
	RegisterIfAbsent(ctx context.Context, id, brand, model, location string) (string, error)
	RecordStatus(ctx context.Context, id string, status Status, location, note string) (string, error)
	MintCollectible(ctx context.Context, id, metadataURI, owner string) (tokenID, txHash string, err error)
	TransferOwnership(ctx context.Context, tokenID, to string) (string, error)
	// MintMaterials mints one batch keyed by batch. It returns an empty hash
	// when the batch was already minted.
	MintMaterials(ctx context.Context, batch, to string, amounts map[entity.MaterialType]*big.Int) (string, error)
	TransferMaterial(ctx context.Context, material entity.MaterialType, to string, amount *big.Int) (string, error)
	// ReadHistory returns entries oldest first.
	ReadHistory(ctx context.Context, id string) ([]HistoryEntry, error)
	// OwnerOf returns the current holder of a collectible.
	OwnerOf(ctx context.Context, tokenID string) (string, error)
	// TxStatus reports what became of a submitted transaction.
	TxStatus(ctx context.Context, hash string) (TxState, error)
	Enabled() bool
	// Signer is the address transactions are sent from.
	Signer() string
}

type TxState int

const (
	// TxUnknown means the ledger has never seen the hash.
	TxUnknown TxState = iota
	TxPending
	TxSucceeded
	TxReverted
)

func (s TxState) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxSucceeded:
		return "succeeded"
	case TxReverted:
		return "reverted"
	}
	return "unknown"
}

type submittedKey struct{}

// WithSubmitted returns a context whose writes report their tx hash to fn as
// soon as the transaction is sent, before the receipt is awaited.
func WithSubmitted(ctx context.Context, fn func(hash string)) context.Context {
	return context.WithValue(ctx, submittedKey{}, fn)
}

func notifySubmitted(ctx context.Context, hash string) {
	if fn, ok := ctx.Value(submittedKey{}).(func(string)); ok && fn != nil {
		fn(hash)
	}
}

// Operation names, used as metric labels and for failure injection.
const (
	OpRegister          = "register"
	OpRecordStatus      = "record_status"
	OpMintCollectible   = "mint_collectible"
	OpTransferOwnership = "transfer_ownership"
	OpMintMaterials     = "mint_materials"
	OpTransferMaterial  = "transfer_material"
	OpReadHistory       = "read_history"
	OpOwnerOf           = "owner_of"
	OpTxStatus          = "tx_status"
)
