package keeper

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/collections"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/ethereum/go-ethereum/common"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

// requireActive passes while the agreement has not ended at now.
func requireActive(info types.DataSetInfo, now uint64) error {
	if info.PaymentEndEpoch != 0 && now > info.PaymentEndEpoch {
		return &types.BeyondEndEpochError{
			DataSetId:    info.Id,
			EndEpoch:     info.PaymentEndEpoch,
			CurrentEpoch: now,
		}
	}
	return nil
}

// requireNotTerminated fails as soon as an end epoch is recorded.
func requireNotTerminated(info types.DataSetInfo) error {
	if info.Terminated() {
		return &types.AlreadyTerminatedError{DataSetId: info.Id}
	}
	return nil
}

// TerminateService starts the notice window of a data set. The agreement
// keeps paying for proofs until the recorded end epoch.
func (k Keeper) TerminateService(goCtx context.Context, caller common.Address, dataSetId uint64) error {
	return k.atomically(goCtx, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		info, err := k.GetDataSet(ctx, dataSetId)
		if err != nil {
			return err
		}
		if err := requirePayerOrPayee(info, caller); err != nil {
			return err
		}
		if err := requireNotTerminated(info); err != nil {
			return err
		}
		return k.terminate(ctx, params, info, caller)
	})
}

func (k Keeper) terminate(ctx sdk.Context, params types.Params, info types.DataSetInfo, terminator common.Address) error {
	window, err := params.NoticeWindow()
	if err != nil {
		return err
	}
	endEpoch, err := types.AddEpochs(currentEpoch(ctx), window)
	if err != nil {
		return err
	}
	// The end epoch is recorded first so the ledger's rail-terminated
	// callback finds the data set already terminated.
	info.PaymentEndEpoch = endEpoch
	if err := k.DataSets.Set(ctx, info.Id, info); err != nil {
		return err
	}
	for _, railId := range info.RailIds() {
		if err := k.ledger.TerminateRail(ctx, railId); err != nil {
			return fmt.Errorf("terminate rail %d: %w", railId, err)
		}
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.TypeEvtServiceTerminated,
			sdk.NewAttribute(types.AttributeKeyDataSetID, fmt.Sprintf("%d", info.Id)),
			sdk.NewAttribute(types.AttributeKeyTerminator, terminator.Hex()),
			sdk.NewAttribute(types.AttributeKeyEndEpoch, fmt.Sprintf("%d", endEpoch)),
			sdk.NewAttribute(types.AttributeKeyPdpRailID, fmt.Sprintf("%d", info.PdpRailId)),
			sdk.NewAttribute(types.AttributeKeyCacheMissRailID, fmt.Sprintf("%d", info.CacheMissRailId)),
			sdk.NewAttribute(types.AttributeKeyCdnRailID, fmt.Sprintf("%d", info.CdnRailId)),
		),
	)
	k.Logger(ctx).Info("service terminated", "data_set_id", info.Id, "terminator", terminator.Hex(), "end_epoch", endEpoch)
	return nil
}

// RailTerminated is called by the ledger when a rail of a data set was
// terminated there. The first recorded end epoch wins.
func (k Keeper) RailTerminated(goCtx context.Context, caller common.Address, railId uint64, terminator common.Address, endEpoch uint64) error {
	return k.atomically(goCtx, func(ctx sdk.Context) error {
		params, err := k.GetParams(ctx)
		if err != nil {
			return err
		}
		if err := requirePayments(params, caller); err != nil {
			return err
		}
		if endEpoch == 0 {
			return types.ErrInvalidEpochRange.Wrapf("rail %d: end epoch must be positive", railId)
		}
		dataSetId, err := k.RailToDataSet.Get(ctx, railId)
		if err != nil {
			if errors.Is(err, collections.ErrNotFound) {
				return types.ErrRailNotFound.Wrapf("rail %d", railId)
			}
			return err
		}
		info, err := k.GetDataSet(ctx, dataSetId)
		if err != nil {
			return err
		}
		if !info.Terminated() {
			info.PaymentEndEpoch = endEpoch
			if err := k.DataSets.Set(ctx, info.Id, info); err != nil {
				return err
			}
			k.Logger(ctx).Info("rail terminated by ledger", "data_set_id", info.Id, "rail_id", railId, "end_epoch", endEpoch)
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.TypeEvtRailTerminated,
				sdk.NewAttribute(types.AttributeKeyDataSetID, fmt.Sprintf("%d", info.Id)),
				sdk.NewAttribute(types.AttributeKeyRailID, fmt.Sprintf("%d", railId)),
				sdk.NewAttribute(types.AttributeKeyTerminator, terminator.Hex()),
				sdk.NewAttribute(types.AttributeKeyEndEpoch, fmt.Sprintf("%d", info.PaymentEndEpoch)),
			),
		)
		return nil
	})
}
