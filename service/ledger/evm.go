package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"solarcycle.GO/model/entity"
)

type EVMConfig struct {
	RPCURL              string
	PrivateKey          string
	TraceContract       string
	CollectibleContract string
	MaterialContract    string
	TxTimeout           time.Duration
}

// EVMClient talks to the trace, collectible (ERC-721) and material (ERC-1155)
// contracts with one signing key.
type EVMClient struct {
	client      *ethclient.Client
	key         *ecdsa.PrivateKey
	from        common.Address
	chainID     *big.Int
	txTimeout   time.Duration
	trace       *bind.BoundContract
	collectible *bind.BoundContract
	collectAddr common.Address
	material    *bind.BoundContract
	transferID  common.Hash
}

func DialEVM(ctx context.Context, cfg EVMConfig) (*EVMClient, error) {
	if cfg.RPCURL == "" || cfg.PrivateKey == "" {
		return nil, errors.New("ledger: rpc url and private key are required")
	}
	for name, addr := range map[string]string{
		"trace":       cfg.TraceContract,
		"collectible": cfg.CollectibleContract,
		"material":    cfg.MaterialContract,
	} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("ledger: invalid %s contract address %q", name, addr)
		}
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("ledger: private key: %w", err)
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", cfg.RPCURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ledger: chain id: %w", err)
	}

	traceABIParsed, err := abi.JSON(strings.NewReader(traceABI))
	if err != nil {
		return nil, err
	}
	collectibleABIParsed, err := abi.JSON(strings.NewReader(collectibleABI))
	if err != nil {
		return nil, err
	}
	materialABIParsed, err := abi.JSON(strings.NewReader(materialABI))
	if err != nil {
		return nil, err
	}

	timeout := cfg.TxTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	collectAddr := common.HexToAddress(cfg.CollectibleContract)
	return &EVMClient{
		client:      client,
		key:         key,
		from:        crypto.PubkeyToAddress(key.PublicKey),
		chainID:     chainID,
		txTimeout:   timeout,
		trace:       bind.NewBoundContract(common.HexToAddress(cfg.TraceContract), traceABIParsed, client, client, client),
		collectible: bind.NewBoundContract(collectAddr, collectibleABIParsed, client, client, client),
		collectAddr: collectAddr,
		material:    bind.NewBoundContract(common.HexToAddress(cfg.MaterialContract), materialABIParsed, client, client, client),
		transferID:  collectibleABIParsed.Events["Transfer"].ID,
	}, nil
}

func (c *EVMClient) Close() {
	c.client.Close()
}

func (c *EVMClient) Enabled() bool  { return true }
func (c *EVMClient) Signer() string { return c.from.Hex() }

// transact sends one transaction and waits for its receipt, bounded by
// txTimeout. A failed wait is reported as ErrTxUnconfirmed; a revert is final.
func (c *EVMClient) transact(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) (*types.Receipt, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx

	tx, err := contract.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	notifySubmitted(ctx, tx.Hash().Hex())

	waitCtx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.client, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: wait %s: %w: %w", method, tx.Hash().Hex(), ErrTxUnconfirmed, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s: transaction %s reverted", method, tx.Hash().Hex())
	}
	return receipt, nil
}

func (c *EVMClient) RegisterIfAbsent(ctx context.Context, id, brand, model, location string) (string, error) {
	var out []interface{}
	if err := c.trace.Call(&bind.CallOpts{Context: ctx}, &out, "isRegistered", id); err != nil {
		return "", fmt.Errorf("isRegistered: %w", err)
	}
	if len(out) == 1 {
		if registered, ok := out[0].(bool); ok && registered {
			return "", nil
		}
	}
	receipt, err := c.transact(ctx, c.trace, "registerPanel", id, brand, model, location)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

func (c *EVMClient) RecordStatus(ctx context.Context, id string, status Status, location, note string) (string, error) {
	receipt, err := c.transact(ctx, c.trace, "updateStatus", id, uint8(status), location, note)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// MintCollectible reads the token id from the Transfer event of the receipt.
func (c *EVMClient) MintCollectible(ctx context.Context, id, metadataURI, owner string) (string, string, error) {
	to := c.from
	if owner != "" {
		to = common.HexToAddress(owner)
	}
	receipt, err := c.transact(ctx, c.collectible, "mint", to, id, metadataURI)
	if err != nil {
		return "", "", err
	}
	for _, l := range receipt.Logs {
		if l.Address == c.collectAddr && len(l.Topics) == 4 && l.Topics[0] == c.transferID {
			return new(big.Int).SetBytes(l.Topics[3].Bytes()).String(), receipt.TxHash.Hex(), nil
		}
	}
	return "", receipt.TxHash.Hex(), nil
}

func (c *EVMClient) TransferOwnership(ctx context.Context, tokenID, to string) (string, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return "", fmt.Errorf("invalid token id %q", tokenID)
	}
	receipt, err := c.transact(ctx, c.collectible, "safeTransferFrom", c.from, common.HexToAddress(to), id)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// MintMaterials checks the batch key first so a retried batch is not minted
// twice; the contract rejects a reused key as well.
func (c *EVMClient) MintMaterials(ctx context.Context, batch, to string, amounts map[entity.MaterialType]*big.Int) (string, error) {
	ids := make([]*big.Int, 0, len(amounts))
	values := make([]*big.Int, 0, len(amounts))
	for _, m := range entity.AllMaterials {
		amount, ok := amounts[m]
		if !ok || amount.Sign() <= 0 {
			continue
		}
		ids = append(ids, big.NewInt(m.TokenID()))
		values = append(values, amount)
	}
	if len(ids) == 0 {
		return "", nil
	}
	key := crypto.Keccak256Hash([]byte(batch))
	var out []interface{}
	if err := c.material.Call(&bind.CallOpts{Context: ctx}, &out, "batchMinted", key); err != nil {
		return "", fmt.Errorf("batchMinted: %w", err)
	}
	if len(out) == 1 {
		if minted, ok := out[0].(bool); ok && minted {
			return "", nil
		}
	}
	receipt, err := c.transact(ctx, c.material, "mintBatch", common.HexToAddress(to), ids, values, key.Bytes())
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

func (c *EVMClient) TransferMaterial(ctx context.Context, material entity.MaterialType, to string, amount *big.Int) (string, error) {
	id := material.TokenID()
	if id < 0 {
		return "", fmt.Errorf("unknown material %q", material)
	}
	receipt, err := c.transact(ctx, c.material, "safeTransferFrom", c.from, common.HexToAddress(to), big.NewInt(id), amount, []byte{})
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

func (c *EVMClient) OwnerOf(ctx context.Context, tokenID string) (string, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return "", fmt.Errorf("invalid token id %q", tokenID)
	}
	var out []interface{}
	if err := c.collectible.Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", id); err != nil {
		return "", fmt.Errorf("ownerOf: %w", err)
	}
	if len(out) != 1 {
		return "", fmt.Errorf("ownerOf: unexpected result %v", out)
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("ownerOf: unexpected type %T", out[0])
	}
	return owner.Hex(), nil
}

func (c *EVMClient) TxStatus(ctx context.Context, hash string) (TxState, error) {
	h := common.HexToHash(hash)
	receipt, err := c.client.TransactionReceipt(ctx, h)
	switch {
	case err == nil:
		if receipt.Status == types.ReceiptStatusSuccessful {
			return TxSucceeded, nil
		}
		return TxReverted, nil
	case !errors.Is(err, ethereum.NotFound):
		return TxUnknown, err
	}
	_, pending, err := c.client.TransactionByHash(ctx, h)
	if errors.Is(err, ethereum.NotFound) {
		return TxUnknown, nil
	}
	if err != nil {
		return TxUnknown, err
	}
	if pending {
		return TxPending, nil
	}
	// mined between the two calls
	return c.TxStatus(ctx, hash)
}

type historyTuple struct {
	Status    uint8
	Location  string
	Note      string
	Actor     common.Address
	Timestamp *big.Int
}

func (c *EVMClient) ReadHistory(ctx context.Context, id string) ([]HistoryEntry, error) {
	var out []interface{}
	if err := c.trace.Call(&bind.CallOpts{Context: ctx}, &out, "getHistory", id); err != nil {
		return nil, fmt.Errorf("getHistory: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	rows := *abi.ConvertType(out[0], new([]historyTuple)).(*[]historyTuple)
	entries := make([]HistoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, HistoryEntry{
			Status:    Status(r.Status),
			Location:  r.Location,
			Note:      r.Note,
			Actor:     r.Actor.Hex(),
			Timestamp: time.Unix(r.Timestamp.Int64(), 0).UTC(),
		})
	}
	return entries, nil
}
