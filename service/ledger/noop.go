package ledger

import (
	"context"
	"math/big"

	"solarcycle.GO/model/entity"
)

// NoopClient stands in when no ledger credentials are configured.
type NoopClient struct{}

func (NoopClient) RegisterIfAbsent(context.Context, string, string, string, string) (string, error) {
	return "", ErrLedgerDisabled
}

func (NoopClient) RecordStatus(context.Context, string, Status, string, string) (string, error) {
	return "", ErrLedgerDisabled
}

func (NoopClient) MintCollectible(context.Context, string, string, string) (string, string, error) {
	return "", "", ErrLedgerDisabled
}

func (NoopClient) TransferOwnership(context.Context, string, string) (string, error) {
	return "", ErrLedgerDisabled
}

func (NoopClient) MintMaterials(context.Context, string, string, map[entity.MaterialType]*big.Int) (string, error) {
	return "", ErrLedgerDisabled
}

func (NoopClient) TransferMaterial(context.Context, entity.MaterialType, string, *big.Int) (string, error) {
	return "", ErrLedgerDisabled
}

func (NoopClient) ReadHistory(context.Context, string) ([]HistoryEntry, error) {
	return nil, ErrLedgerDisabled
}

func (NoopClient) OwnerOf(context.Context, string) (string, error) {
	return "", ErrLedgerDisabled
}

func (NoopClient) TxStatus(context.Context, string) (TxState, error) {
	return TxUnknown, ErrLedgerDisabled
}

func (NoopClient) Enabled() bool  { return false }
func (NoopClient) Signer() string { return "" }
