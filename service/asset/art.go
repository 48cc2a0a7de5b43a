package asset

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"solarcycle.GO/core/errno"
	"solarcycle.GO/model/entity"
	"solarcycle.GO/model/repository"
	"solarcycle.GO/service/ledger"
)

type PublishArtInput struct {
	AssetID     uint            `json:"-"`
	Title       string          `json:"title" validate:"required,max=255"`
	Description string          `json:"description"`
	ArtistID    *uint           `json:"artistId"`
	Price       decimal.Decimal `json:"price"`
	MetadataURI string          `json:"metadataUri" validate:"omitempty,max=512"`
}

// PublishArt mints the collectible first and only then creates the ArtPiece.
// The mint happens outside any transaction; the asset is re-checked under
// lock afterwards, so a concurrent publish that lost the race gets a
// duplicate-processing error.
func (r *Registry) PublishArt(ctx context.Context, in PublishArtInput) (*entity.ArtPiece, error) {
	if in.Title == "" {
		return nil, errno.ErrValidation.With("title is required")
	}
	if in.Price.IsNegative() {
		return nil, errno.ErrValidation.With("price must not be negative")
	}

	a, err := r.Get(ctx, in.AssetID)
	if err != nil {
		return nil, err
	}
	if err := publishable(a, a.ArtPiece != nil); err != nil {
		return nil, err
	}
	uri := in.MetadataURI
	if uri == "" {
		uri = fmt.Sprintf("urn:solarcycle:panel:%s", a.ExternalID())
	}

	tokenID, mintTx, err := r.sync.Client().MintCollectible(ctx, a.ExternalID(), uri, "")
	if err != nil {
		return nil, errno.ErrLedgerUnavailable.Wrap(err)
	}
	if tokenID == "" {
		return nil, errno.ErrLedgerUnavailable.With("mint %s returned no token id", mintTx)
	}

	var piece *entity.ArtPiece
	var from entity.AssetStatus
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockAsset(tx, in.AssetID)
		if err != nil {
			return err
		}
		has, err := r.assets.WithTx(tx).HasArtPiece(locked.ID)
		if err != nil {
			return errno.ErrDatabase.Wrap(err)
		}
		if err := publishable(locked, has); err != nil {
			return err
		}

		piece = &entity.ArtPiece{
			AssetID:     locked.ID,
			Title:       in.Title,
			Description: in.Description,
			ArtistID:    in.ArtistID,
			Price:       in.Price,
			MetadataURI: uri,
			TokenID:     &tokenID,
			MintTxHash:  &mintTx,
			Available:   true,
		}
		if err := r.assets.WithTx(tx).CreateArtPiece(piece); err != nil {
			if repository.IsDuplicate(err) {
				return errno.ErrDuplicateProcessing.With("asset %d already published", locked.ID)
			}
			return errno.ErrDatabase.Wrap(err)
		}

		fields := map[string]interface{}{}
		if locked.TokenID == nil {
			fields["token_id"] = tokenID
		}
		if err := r.sync.EnqueueStatus(tx, locked, ledger.ArtMinted, "token "+tokenID, nil); err != nil {
			return err
		}
		from = locked.Status
		a = locked
		return r.move(tx, a, entity.StatusArtListedForSale, fields, "listed as art", nil)
	})
	if err != nil {
		if errno.KindOf(err) == errno.KindInvalidState {
			r.log.Warn("collectible minted for an asset that was not published",
				zap.Uint("asset_id", in.AssetID), zap.String("token_id", tokenID), zap.String("tx", mintTx))
		}
		return nil, err
	}
	r.Committed(a, from)
	return piece, nil
}

func publishable(a *entity.Asset, hasArtPiece bool) error {
	if hasArtPiece || a.Status == entity.StatusArtListedForSale {
		return errno.ErrDuplicateProcessing.With("asset %d already published", a.ID)
	}
	return requireStatus(a.Status, "publish as art", entity.StatusArtCandidate)
}
