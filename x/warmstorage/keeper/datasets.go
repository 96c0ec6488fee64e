package keeper

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"cosmossdk.io/collections"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/ethereum/go-ethereum/common"
	gethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ipfs/go-cid"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

// DataSetCreated binds a data set the verifier just created to its payer,
// the creator as payee, and freshly opened payment rails.
func (k Keeper) DataSetCreated(goCtx context.Context, caller common.Address, dataSetId uint64, creator common.Address, extraData []byte) error {
	return k.atomically(goCtx, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		if err := requireVerifier(params, caller); err != nil {
			return err
		}
		if has, err := k.DataSets.Has(ctx, dataSetId); err != nil {
			return err
		} else if has {
			return types.ErrDataSetExists.Wrapf("data set %d", dataSetId)
		}

		extra, err := types.DecodeDataSetCreatedExtra(extraData)
		if err != nil {
			return err
		}
		if extra.Payer == (common.Address{}) {
			return types.ErrZeroAddress.Wrap("payer")
		}
		if creator == (common.Address{}) {
			return types.ErrZeroAddress.Wrap("creator")
		}
		entries, err := types.NewMetadataEntries(extra.MetadataKeys, extra.MetadataValues)
		if err != nil {
			return err
		}
		withCDN := types.HasMetadataKey(entries, types.WithCDNMetadataKey)
		if withCDN && params.CdnBeneficiary == (common.Address{}) {
			return types.ErrZeroAddress.Wrap("cdn beneficiary not configured")
		}

		clientDataSetId, err := k.clientDataSetCount(ctx, extra.Payer)
		if err != nil {
			return err
		}
		intent := types.CreateDataSetIntent{
			ClientDataSetId: clientDataSetId,
			Payee:           creator,
			Metadata:        entries,
		}
		if err := types.DomainFromParams(params).VerifyCreateDataSet(extra.Payer, intent, extra.Signature); err != nil {
			return err
		}
		if err := k.setDataSetMetadata(ctx, dataSetId, entries); err != nil {
			return err
		}
		if err := k.requireApprovedOperator(ctx, params, creator); err != nil {
			return err
		}

		info := types.DataSetInfo{
			Id:              dataSetId,
			Payer:           extra.Payer,
			Payee:           creator,
			ClientDataSetId: clientDataSetId,
			CreatedEpoch:    currentEpoch(ctx),
		}
		if info.PdpRailId, err = k.openRail(ctx, params, dataSetId, extra.Payer, creator); err != nil {
			return err
		}
		if withCDN {
			if info.CacheMissRailId, err = k.openRail(ctx, params, dataSetId, extra.Payer, creator); err != nil {
				return err
			}
			if info.CdnRailId, err = k.openRail(ctx, params, dataSetId, extra.Payer, params.CdnBeneficiary); err != nil {
				return err
			}
		}
		if err := info.Validate(); err != nil {
			return err
		}

		if err := k.DataSets.Set(ctx, dataSetId, info); err != nil {
			return err
		}
		if err := k.ClientDataSets.Set(ctx, collections.Join(extra.Payer.Bytes(), clientDataSetId), dataSetId); err != nil {
			return err
		}
		if err := k.ClientDataSetCount.Set(ctx, extra.Payer.Bytes(), clientDataSetId+1); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.TypeEvtDataSetCreated,
				sdk.NewAttribute(types.AttributeKeyDataSetID, fmt.Sprintf("%d", dataSetId)),
				sdk.NewAttribute(types.AttributeKeyClientDataSetID, fmt.Sprintf("%d", clientDataSetId)),
				sdk.NewAttribute(types.AttributeKeyPdpRailID, fmt.Sprintf("%d", info.PdpRailId)),
				sdk.NewAttribute(types.AttributeKeyCacheMissRailID, fmt.Sprintf("%d", info.CacheMissRailId)),
				sdk.NewAttribute(types.AttributeKeyCdnRailID, fmt.Sprintf("%d", info.CdnRailId)),
				sdk.NewAttribute(types.AttributeKeyPayer, info.Payer.Hex()),
				sdk.NewAttribute(types.AttributeKeyPayee, info.Payee.Hex()),
				sdk.NewAttribute(types.AttributeKeyWithCDN, fmt.Sprintf("%t", info.WithCDN())),
			),
		)
		k.Logger(ctx).Info("data set created",
			"data_set_id", dataSetId,
			"payer", info.Payer.Hex(),
			"payee", info.Payee.Hex(),
			"client_data_set_id", clientDataSetId,
			"with_cdn", info.WithCDN(),
		)
		return nil
	})
}

// openRail creates a rail validated by this service and locks up the
// termination notice window on it.
func (k Keeper) openRail(ctx sdk.Context, params types.Params, dataSetId uint64, from, to common.Address) (uint64, error) {
	railId, err := k.ledger.CreateRail(ctx, types.RailParams{
		Token:         params.PaymentToken,
		From:          from,
		To:            to,
		Validator:     params.ServiceAddress,
		CommissionBps: params.CommissionBps,
		FeeRecipient:  params.ServiceAddress,
	})
	if err != nil {
		return 0, fmt.Errorf("create rail for data set %d: %w", dataSetId, err)
	}
	if railId == 0 {
		return 0, types.ErrRailNotFound.Wrapf("ledger returned rail 0 for data set %d", dataSetId)
	}
	window, err := params.NoticeWindow()
	if err != nil {
		return 0, err
	}
	if err := k.ledger.ModifyRailLockup(ctx, railId, window, math.ZeroInt()); err != nil {
		return 0, fmt.Errorf("lockup rail %d: %w", railId, err)
	}
	if err := k.RailToDataSet.Set(ctx, railId, dataSetId); err != nil {
		return 0, err
	}
	return railId, nil
}

func (k Keeper) clientDataSetCount(ctx context.Context, payer common.Address) (uint64, error) {
	n, err := k.ClientDataSetCount.Get(ctx, payer.Bytes())
	if err != nil && !errors.Is(err, collections.ErrNotFound) {
		return 0, err
	}
	return n, nil
}

// PiecesAdded authorises pieces the payer signed for and stores their
// metadata at firstAdded, firstAdded+1, ...
func (k Keeper) PiecesAdded(goCtx context.Context, caller common.Address, dataSetId, firstAdded uint64, pieces [][]byte, extraData []byte) error {
	return k.atomically(goCtx, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		if err := requireVerifier(params, caller); err != nil {
			return err
		}
		info, err := k.GetDataSet(ctx, dataSetId)
		if err != nil {
			return err
		}
		if err := requireActive(info, currentEpoch(ctx)); err != nil {
			return err
		}
		if err := requireNotTerminated(info); err != nil {
			return err
		}

		extra, err := types.DecodePiecesAddedExtra(extraData)
		if err != nil {
			return err
		}
		if len(extra.MetadataKeys) != len(pieces) || len(extra.MetadataValues) != len(pieces) {
			return &types.PieceMetadataCountMismatchError{
				Pieces: len(pieces),
				Keys:   len(extra.MetadataKeys),
				Values: len(extra.MetadataValues),
			}
		}
		if _, err := types.AddEpochs(firstAdded, uint64(len(pieces))); err != nil {
			return err
		}
		for i, piece := range pieces {
			if _, err := cid.Cast(piece); err != nil {
				return types.ErrInvalidPieceCid.Wrapf("piece %d: %s", i, err)
			}
		}
		perPiece := make([][]types.MetadataEntry, len(pieces))
		for i := range pieces {
			if perPiece[i], err = types.NewMetadataEntries(extra.MetadataKeys[i], extra.MetadataValues[i]); err != nil {
				return err
			}
		}

		nonce := extra.Nonce
		nonceKey := collections.Join(info.Payer.Bytes(), gethmath.PaddedBigBytes(nonce, 32))
		if used, err := k.UsedNonces.Has(ctx, nonceKey); err != nil {
			return err
		} else if used {
			return types.ErrNonceAlreadyUsed.Wrapf("payer %s nonce %s", info.Payer.Hex(), nonceString(nonce))
		}

		intent := types.AddPiecesIntent{
			ClientDataSetId: info.ClientDataSetId,
			Nonce:           nonce,
			FirstAdded:      firstAdded,
			Pieces:          pieces,
			PieceMetadata:   perPiece,
		}
		if err := types.DomainFromParams(params).VerifyAddPieces(info.Payer, intent, extra.Signature); err != nil {
			return err
		}

		for i, entries := range perPiece {
			if err := k.validatePieceMetadata(ctx, dataSetId, firstAdded+uint64(i), entries); err != nil {
				return err
			}
		}
		for i, entries := range perPiece {
			if err := k.writePieceMetadata(ctx, dataSetId, firstAdded+uint64(i), entries); err != nil {
				return err
			}
		}
		if err := k.UsedNonces.Set(ctx, nonceKey); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.TypeEvtPiecesAdded,
				sdk.NewAttribute(types.AttributeKeyDataSetID, fmt.Sprintf("%d", dataSetId)),
				sdk.NewAttribute(types.AttributeKeyFirstAdded, fmt.Sprintf("%d", firstAdded)),
				sdk.NewAttribute(types.AttributeKeyPieceCount, fmt.Sprintf("%d", len(pieces))),
				sdk.NewAttribute(types.AttributeKeyNonce, nonceString(nonce)),
			),
		)
		k.Logger(ctx).Debug("pieces added", "data_set_id", dataSetId, "first_added", firstAdded, "count", len(pieces))
		return nil
	})
}

// PiecesScheduledRemove authorises a payer-signed removal request.
func (k Keeper) PiecesScheduledRemove(goCtx context.Context, caller common.Address, dataSetId uint64, pieceIds []uint64, extraData []byte) error {
	return k.atomically(goCtx, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		if err := requireVerifier(params, caller); err != nil {
			return err
		}
		info, err := k.GetDataSet(ctx, dataSetId)
		if err != nil {
			return err
		}
		if err := requireActive(info, currentEpoch(ctx)); err != nil {
			return err
		}
		sig, err := types.DecodeSignatureExtra(extraData)
		if err != nil {
			return err
		}
		intent := types.SchedulePieceRemovalsIntent{ClientDataSetId: info.ClientDataSetId, PieceIds: pieceIds}
		if err := types.DomainFromParams(params).VerifySchedulePieceRemovals(info.Payer, intent, sig); err != nil {
			return err
		}

		ids := make([]string, len(pieceIds))
		for i, id := range pieceIds {
			ids[i] = fmt.Sprintf("%d", id)
		}
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.TypeEvtPiecesScheduledRemove,
				sdk.NewAttribute(types.AttributeKeyDataSetID, fmt.Sprintf("%d", dataSetId)),
				sdk.NewAttribute(types.AttributeKeyPieceIDs, strings.Join(ids, ",")),
			),
		)
		k.Logger(ctx).Debug("piece removals scheduled", "data_set_id", dataSetId, "count", len(pieceIds))
		return nil
	})
}

// DataSetDeleted stops proving for a deleted data set and ends its
// agreement if that has not happened yet. It is not gated on the end epoch
// so that ended data sets can still be cleaned up.
func (k Keeper) DataSetDeleted(goCtx context.Context, caller common.Address, dataSetId uint64, deletedLeafCount uint64, extraData []byte) error {
	return k.atomically(goCtx, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		if err := requireVerifier(params, caller); err != nil {
			return err
		}
		info, err := k.GetDataSet(ctx, dataSetId)
		if err != nil {
			return err
		}
		sig, err := types.DecodeSignatureExtra(extraData)
		if err != nil {
			return err
		}
		intent := types.DeleteDataSetIntent{ClientDataSetId: info.ClientDataSetId}
		if err := types.DomainFromParams(params).VerifyDeleteDataSet(info.Payer, intent, sig); err != nil {
			return err
		}

		state, found, err := k.provingState(ctx, dataSetId)
		if err != nil {
			return err
		}
		if found && state.Active() {
			state.Deadline = 0
			state.NextChallengeEpoch = 0
			if err := k.ProvingStates.Set(ctx, dataSetId, state); err != nil {
				return err
			}
		}
		if !info.Terminated() {
			if err := k.terminate(ctx, params, info, info.Payee); err != nil {
				return err
			}
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.TypeEvtDataSetDeleted,
				sdk.NewAttribute(types.AttributeKeyDataSetID, fmt.Sprintf("%d", dataSetId)),
				sdk.NewAttribute(types.AttributeKeyLeafCount, fmt.Sprintf("%d", deletedLeafCount)),
			),
		)
		k.Logger(ctx).Info("data set deleted", "data_set_id", dataSetId, "deleted_leaf_count", deletedLeafCount)
		return nil
	})
}

// StorageProviderChanged moves a data set to a new payee. Rails, payer and
// metadata are left untouched.
func (k Keeper) StorageProviderChanged(goCtx context.Context, caller common.Address, dataSetId uint64, oldPayee, newPayee common.Address, extraData []byte) error {
	return k.atomically(goCtx, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		if err := requireVerifier(params, caller); err != nil {
			return err
		}
		info, err := k.GetDataSet(ctx, dataSetId)
		if err != nil {
			return err
		}
		if err := requireActive(info, currentEpoch(ctx)); err != nil {
			return err
		}
		if info.Payee != oldPayee {
			return &types.OldPayeeMismatchError{DataSetId: dataSetId, Expected: info.Payee, Provided: oldPayee}
		}
		if newPayee == (common.Address{}) {
			return types.ErrZeroAddress.Wrap("new payee")
		}
		if err := k.requireApprovedOperator(ctx, params, newPayee); err != nil {
			return err
		}

		info.Payee = newPayee
		if err := k.DataSets.Set(ctx, dataSetId, info); err != nil {
			return err
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.TypeEvtPayeeChanged,
				sdk.NewAttribute(types.AttributeKeyDataSetID, fmt.Sprintf("%d", dataSetId)),
				sdk.NewAttribute(types.AttributeKeyOldPayee, oldPayee.Hex()),
				sdk.NewAttribute(types.AttributeKeyNewPayee, newPayee.Hex()),
			),
		)
		k.Logger(ctx).Info("data set payee changed", "data_set_id", dataSetId, "old_payee", oldPayee.Hex(), "new_payee", newPayee.Hex())
		return nil
	})
}

// nonceString renders a nonce for logs and events.
func nonceString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
