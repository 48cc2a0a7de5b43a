// Package settlement completes sales that need both a local commit and a
// ledger transfer.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
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
	orderRepo "solarcycle.GO/model/repository/order"
	"solarcycle.GO/service/asset"
	"solarcycle.GO/service/ledger"
)

// Service runs every purchase as: validate, reserve under a PROCESSING order,
// transfer on the ledger with no transaction open, then complete or fail the
// order in a second transaction.
type Service struct {
	db          *gorm.DB
	registry    *asset.Registry
	tokensPerKg int64
	log         *zap.Logger
}

func NewService(db *gorm.DB, registry *asset.Registry, tokensPerKg int64) *Service {
	if tokensPerKg <= 0 {
		tokensPerKg = 10
	}
	return &Service{db: db, registry: registry, tokensPerKg: tokensPerKg, log: logger.Named("settlement")}
}

func (s *Service) client() ledger.Client {
	return s.registry.Synchronizer().Client()
}

func newBase(wallet string) entity.OrderBase {
	return entity.OrderBase{
		Reference:   uuid.NewString(),
		BuyerWallet: wallet,
		Status:      entity.OrderProcessing,
	}
}

// detached returns a db handle for the writes that follow a ledger transfer.
// Once the transfer went out, the caller going away must not leave the order
// PROCESSING.
func (s *Service) detached(ctx context.Context) *gorm.DB {
	return s.db.WithContext(context.WithoutCancel(ctx))
}

// transferCtx makes the ledger client store the transfer hash on the order
// as soon as it is submitted, so reconciliation can look it up.
func (s *Service) transferCtx(ctx context.Context, kind string, model interface{}, id uint) context.Context {
	db := s.detached(ctx)
	return ledger.WithSubmitted(ctx, func(hash string) {
		if err := orderRepo.NewOrderRepository(db).SetSubmitted(model, id, hash); err != nil {
			s.log.Error("store submitted transfer", zap.String("kind", kind), zap.Uint("order_id", id),
				zap.String("tx", hash), zap.Error(err))
		}
	})
}

// transferFailed marks the order FAILED. release runs in the same transaction
// when the order was still PROCESSING. A transfer that was sent but not
// confirmed leaves the order PROCESSING for ReconcileStaleOrders.
func (s *Service) transferFailed(ctx context.Context, kind string, model interface{}, id uint, cause error, release func(tx *gorm.DB) error) error {
	if errors.Is(cause, ledger.ErrTxUnconfirmed) {
		s.log.Warn("transfer unconfirmed, order left processing",
			zap.String("kind", kind), zap.Uint("order_id", id), zap.Error(cause))
		return errno.ErrLedgerUnavailable.Wrap(cause)
	}
	err := s.detached(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := orderRepo.NewOrderRepository(tx).Fail(model, id, cause.Error())
		if err != nil {
			return err
		}
		if ok && release != nil {
			return release(tx)
		}
		return nil
	})
	if err != nil {
		s.log.Error("could not mark order failed", zap.String("kind", kind), zap.Uint("order_id", id), zap.Error(err))
	}
	monitor.Purchases.WithLabelValues(kind, string(entity.OrderFailed)).Inc()
	s.log.Warn("transfer failed", zap.String("kind", kind), zap.Uint("order_id", id), zap.Error(cause))
	return errno.ErrLedgerUnavailable.Wrap(cause)
}

type PanelPurchase struct {
	AssetID     uint   `json:"assetId" validate:"required"`
	BuyerWallet string `json:"buyerWallet"`
}

// PurchasePanel sells a refurbished panel: LISTED_FOR_SALE -> REUSED.
func (s *Service) PurchasePanel(ctx context.Context, in PanelPurchase) (*entity.PanelOrder, error) {
	if err := checkWallet(in.BuyerWallet); err != nil {
		return nil, err
	}

	order := &entity.PanelOrder{OrderBase: newBase(in.BuyerWallet), AssetID: in.AssetID}
	var tokenID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := lockAsset(tx, in.AssetID)
		if err != nil {
			return err
		}
		if a.Status != entity.StatusListedForSale || a.BuyerWallet != nil {
			return errno.ErrNotForSale.With("asset %d is %s", a.ID, a.Status)
		}
		if a.TokenID == nil || *a.TokenID == "" {
			return errno.ErrNoToken.With("asset %d", a.ID)
		}
		tokenID = *a.TokenID
		return createOrder(tx, order, "asset_id", a.ID)
	})
	if err != nil {
		return nil, err
	}

	tctx := s.transferCtx(ctx, "panel", &entity.PanelOrder{}, order.ID)
	txHash, err := s.client().TransferOwnership(tctx, tokenID, in.BuyerWallet)
	if err != nil {
		return nil, s.transferFailed(ctx, "panel", &entity.PanelOrder{}, order.ID, err, nil)
	}

	var a *entity.Asset
	err = s.detached(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if a, err = s.settlePanel(tx, in.AssetID, in.BuyerWallet); err != nil {
			return err
		}
		return completeOrder(tx, &entity.PanelOrder{}, order.ID, txHash)
	})
	if err != nil {
		s.log.Error("panel transferred but sale not recorded",
			zap.Uint("order_id", order.ID), zap.String("tx", txHash), zap.Error(err))
		return nil, err
	}
	if a != nil {
		s.registry.Committed(a, entity.StatusListedForSale)
	}
	monitor.Purchases.WithLabelValues("panel", string(entity.OrderCompleted)).Inc()
	return s.reloadPanelOrder(context.WithoutCancel(ctx), order.ID)
}

// settlePanel moves a transferred panel to REUSED. It returns nil when the
// panel is no longer listed, in which case only the order is closed.
func (s *Service) settlePanel(tx *gorm.DB, assetID uint, buyerWallet string) (*entity.Asset, error) {
	a, err := lockAsset(tx, assetID)
	if err != nil {
		return nil, err
	}
	if a.Status != entity.StatusListedForSale {
		s.log.Warn("sold panel is no longer listed", zap.Uint("asset_id", a.ID), zap.String("status", string(a.Status)))
		return nil, nil
	}
	err = s.registry.Move(tx, a, entity.StatusReused, map[string]interface{}{
		"buyer_wallet": buyerWallet,
		"sold_at":      time.Now(),
	}, "sold", nil)
	if err != nil {
		return nil, err
	}
	return a, nil
}

type ArtPurchase struct {
	ArtPieceID  uint   `json:"artPieceId" validate:"required"`
	BuyerWallet string `json:"buyerWallet"`
}

// PurchaseArt transfers the collectible and marks the piece sold.
func (s *Service) PurchaseArt(ctx context.Context, in ArtPurchase) (*entity.ArtOrder, error) {
	if err := checkWallet(in.BuyerWallet); err != nil {
		return nil, err
	}

	order := &entity.ArtOrder{OrderBase: newBase(in.BuyerWallet), ArtPieceID: in.ArtPieceID}
	var tokenID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := assetRepo.NewAssetRepository(tx).FindArtPieceForUpdate(in.ArtPieceID)
		if repository.IsNotFound(err) {
			return errno.ErrArtPieceNotFound.With("id %d", in.ArtPieceID)
		}
		if err != nil {
			return errno.ErrDatabase.Wrap(err)
		}
		if !p.Available {
			return errno.ErrNotForSale.With("art piece %d is sold", p.ID)
		}
		if p.TokenID == nil || *p.TokenID == "" {
			return errno.ErrNoToken.With("art piece %d", p.ID)
		}
		tokenID = *p.TokenID
		return createOrder(tx, order, "art_piece_id", p.ID)
	})
	if err != nil {
		return nil, err
	}

	tctx := s.transferCtx(ctx, "art", &entity.ArtOrder{}, order.ID)
	txHash, err := s.client().TransferOwnership(tctx, tokenID, in.BuyerWallet)
	if err != nil {
		return nil, s.transferFailed(ctx, "art", &entity.ArtOrder{}, order.ID, err, nil)
	}

	db := s.detached(ctx)
	err = db.Transaction(func(tx *gorm.DB) error {
		ok, err := markArtSold(tx, in.ArtPieceID, in.BuyerWallet)
		if err != nil {
			return err
		}
		if !ok {
			return errno.ErrNotForSale.With("art piece %d sold concurrently", in.ArtPieceID)
		}
		return completeOrder(tx, &entity.ArtOrder{}, order.ID, txHash)
	})
	if err != nil {
		s.log.Error("art transferred but sale not recorded",
			zap.Uint("order_id", order.ID), zap.String("tx", txHash), zap.Error(err))
		return nil, err
	}
	monitor.Purchases.WithLabelValues("art", string(entity.OrderCompleted)).Inc()

	var out entity.ArtOrder
	if err := db.First(&out, order.ID).Error; err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	return &out, nil
}

func markArtSold(tx *gorm.DB, pieceID uint, buyerWallet string) (bool, error) {
	ok, err := assetRepo.NewAssetRepository(tx).MarkArtSold(pieceID, map[string]interface{}{
		"buyer_wallet": buyerWallet,
		"sold_at":      time.Now(),
	})
	if err != nil {
		return false, errno.ErrDatabase.Wrap(err)
	}
	return ok, nil
}

type MaterialPurchase struct {
	Material    string          `json:"material" validate:"required"`
	QuantityKg  decimal.Decimal `json:"quantityKg"`
	BuyerWallet string          `json:"buyerWallet"`
}

// PurchaseMaterial reserves stock, transfers the fungible tokens and settles
// the reservation. A failed transfer releases the reservation in the same
// transaction that fails the order.
func (s *Service) PurchaseMaterial(ctx context.Context, in MaterialPurchase) (*entity.MaterialOrder, error) {
	if err := checkWallet(in.BuyerWallet); err != nil {
		return nil, err
	}
	m, ok := entity.ParseMaterial(in.Material)
	if !ok {
		return nil, errno.ErrUnknownMaterial.With("%q", in.Material)
	}
	if !in.QuantityKg.IsPositive() {
		return nil, errno.ErrValidation.With("quantityKg must be positive")
	}
	amount := in.QuantityKg.Mul(decimal.NewFromInt(s.tokensPerKg)).Floor().BigInt()
	if amount.Sign() <= 0 {
		return nil, errno.ErrValidation.With("quantity is below one token")
	}
	if m.TokenID() < 0 {
		return nil, errno.ErrNoToken.With("material %s", m)
	}

	order := &entity.MaterialOrder{
		OrderBase:   newBase(in.BuyerWallet),
		Material:    m,
		QuantityKg:  in.QuantityKg,
		TokenAmount: amount.String(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createOrder(tx, order, "material", m); err != nil {
			return err
		}
		reserved, err := materialRepo.NewStockRepository(tx).Reserve(m, in.QuantityKg)
		if err != nil {
			return errno.ErrDatabase.Wrap(err)
		}
		if !reserved {
			return errno.ErrInsufficientStock.With("%s kg of %s", in.QuantityKg, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tctx := s.transferCtx(ctx, "material", &entity.MaterialOrder{}, order.ID)
	txHash, err := s.client().TransferMaterial(tctx, m, in.BuyerWallet, amount)
	if err != nil {
		return nil, s.transferFailed(ctx, "material", &entity.MaterialOrder{}, order.ID, err, func(tx *gorm.DB) error {
			return releaseStock(tx, m, in.QuantityKg)
		})
	}

	db := s.detached(ctx)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := completeOrder(tx, &entity.MaterialOrder{}, order.ID, txHash); err != nil {
			return err
		}
		return consumeStock(tx, m, in.QuantityKg)
	})
	if err != nil {
		s.log.Error("material transferred but sale not recorded",
			zap.Uint("order_id", order.ID), zap.String("tx", txHash), zap.Error(err))
		return nil, err
	}
	monitor.Purchases.WithLabelValues("material", string(entity.OrderCompleted)).Inc()

	out, err := orderRepo.NewOrderRepository(db).FindMaterialOrder(order.ID)
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	return out, nil
}

func releaseStock(tx *gorm.DB, m entity.MaterialType, qty decimal.Decimal) error {
	ok, err := materialRepo.NewStockRepository(tx).Release(m, qty)
	if err != nil {
		return errno.ErrDatabase.Wrap(err)
	}
	if !ok {
		return errno.ErrStockMismatch.With("release %s kg of %s", qty, m)
	}
	return nil
}

func consumeStock(tx *gorm.DB, m entity.MaterialType, qty decimal.Decimal) error {
	ok, err := materialRepo.NewStockRepository(tx).Consume(m, qty)
	if err != nil {
		return errno.ErrDatabase.Wrap(err)
	}
	if !ok {
		return errno.ErrStockMismatch.With("consume %s kg of %s", qty, m)
	}
	return nil
}

func (s *Service) reloadPanelOrder(ctx context.Context, id uint) (*entity.PanelOrder, error) {
	o, err := orderRepo.NewOrderRepository(s.db.WithContext(ctx)).FindPanelOrder(id)
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	return o, nil
}

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

// createOrder inserts order unless another order for the same item is in flight.
func createOrder(tx *gorm.DB, order interface{}, column string, value interface{}) error {
	orders := orderRepo.NewOrderRepository(tx)
	busy, err := orders.HasProcessing(order, column, value)
	if err != nil {
		return errno.ErrDatabase.Wrap(err)
	}
	if busy {
		return errno.ErrOrderInProgress.With("%s %v", column, value)
	}
	if err := orders.Create(order); err != nil {
		return errno.ErrDatabase.Wrap(err)
	}
	return nil
}

func completeOrder(tx *gorm.DB, model interface{}, id uint, txHash string) error {
	ok, err := orderRepo.NewOrderRepository(tx).Complete(model, id, txHash)
	if err != nil {
		return errno.ErrDatabase.Wrap(err)
	}
	if !ok {
		return errno.ErrInvalidTransition.With("order %d is no longer processing", id)
	}
	return nil
}

// TokenizePanel mints a collectible for a panel on the reuse path so it can
// be sold. token_id is only written when the ledger returns one.
func (s *Service) TokenizePanel(ctx context.Context, assetID uint, metadataURI string) (*entity.Asset, error) {
	a, err := s.registry.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case entity.StatusReadyForReuse, entity.StatusRefurbishing, entity.StatusListedForSale:
	default:
		return nil, errno.ErrInvalidTransition.With("cannot tokenize an asset that is %s", a.Status)
	}
	if a.TokenID != nil {
		return nil, errno.ErrAlreadyTokenized.With("asset %d has token %s", a.ID, *a.TokenID)
	}

	tokenID, txHash, err := s.client().MintCollectible(ctx, a.ExternalID(), metadataURI, "")
	if err != nil {
		return nil, errno.ErrLedgerUnavailable.Wrap(err)
	}
	if tokenID == "" {
		return nil, errno.ErrLedgerUnavailable.With("mint %s returned no token id", txHash)
	}

	ok, err := assetRepo.NewAssetRepository(s.db.WithContext(ctx)).SetTokenID(a.ID, tokenID)
	if err != nil {
		return nil, errno.ErrDatabase.Wrap(err)
	}
	if !ok {
		s.log.Warn("panel tokenized twice", zap.Uint("asset_id", a.ID), zap.String("token_id", tokenID))
		return nil, errno.ErrAlreadyTokenized.With("asset %d", a.ID)
	}
	return s.registry.Get(ctx, a.ID)
}

// IsLedgerFailure reports whether err came from the ledger rather than local state.
func IsLedgerFailure(err error) bool {
	return errors.Is(err, errno.ErrLedgerUnavailable)
}
