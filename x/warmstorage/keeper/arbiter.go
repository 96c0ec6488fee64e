package keeper

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/collections"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

// ValidatePayment answers the ledger's settlement request for the epochs
// (fromEpoch, toEpoch] of a rail. PDP rails are paid pro rata for epochs in
// proven periods and settle no further than the start of the first
// unproven period whose deadline has not passed. CDN rails pass through.
func (k Keeper) ValidatePayment(goCtx context.Context, caller common.Address, railId uint64, proposedAmount math.Int, fromEpoch, toEpoch uint64, rate math.Int) (types.ValidationResult, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)
	params, err := k.GetParams(ctx)
	if err != nil {
		return types.ValidationResult{}, err
	}
	if err := requirePayments(params, caller); err != nil {
		return types.ValidationResult{}, err
	}
	if toEpoch <= fromEpoch {
		return types.ValidationResult{}, types.ErrInvalidEpochRange.Wrapf("(%d, %d]", fromEpoch, toEpoch)
	}
	if proposedAmount.IsNil() || proposedAmount.IsNegative() {
		return types.ValidationResult{}, sdkerrors.ErrInvalidRequest.Wrap("proposed amount must be non-negative")
	}

	dataSetId, err := k.RailToDataSet.Get(ctx, railId)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return types.ValidationResult{}, types.ErrRailNotFound.Wrapf("rail %d", railId)
		}
		return types.ValidationResult{}, err
	}
	info, err := k.GetDataSet(ctx, dataSetId)
	if err != nil {
		return types.ValidationResult{}, err
	}
	if railId != info.PdpRailId {
		return types.ValidationResult{ModifiedAmount: proposedAmount, SettleUpto: toEpoch, Note: "cdn rail"}, nil
	}

	state, found, err := k.provingState(ctx, dataSetId)
	if err != nil {
		return types.ValidationResult{}, err
	}
	if !found {
		return types.ValidationResult{ModifiedAmount: math.ZeroInt(), SettleUpto: fromEpoch, Note: "proving not activated"}, nil
	}

	provenEpochs, settleUpto, err := k.provenEpochs(ctx, params, state, dataSetId, fromEpoch, toEpoch, currentEpoch(ctx))
	if err != nil {
		return types.ValidationResult{}, err
	}

	modified, err := proposedAmount.SafeMul(math.NewIntFromUint64(provenEpochs))
	if err != nil {
		return types.ValidationResult{}, types.ErrArithmeticOverflow.Wrapf("settlement: %s", err)
	}
	if modified, err = modified.SafeQuo(math.NewIntFromUint64(toEpoch - fromEpoch)); err != nil {
		return types.ValidationResult{}, types.ErrArithmeticOverflow.Wrapf("settlement: %s", err)
	}

	note := fmt.Sprintf("proven %d of %d epochs", provenEpochs, toEpoch-fromEpoch)
	k.Logger(ctx).Debug("payment validated",
		"rail_id", railId,
		"data_set_id", dataSetId,
		"proposed", proposedAmount.String(),
		"modified", modified.String(),
		"settle_upto", settleUpto,
		"rate", rate.String(),
	)
	return types.ValidationResult{ModifiedAmount: modified, SettleUpto: settleUpto, Note: note}, nil
}

// provenEpochs walks the proving periods overlapping (fromEpoch, toEpoch]
// and counts the epochs that fall in proven periods.
func (k Keeper) provenEpochs(ctx context.Context, params types.Params, state types.ProvingState, dataSetId, fromEpoch, toEpoch, now uint64) (uint64, uint64, error) {
	period := params.MaxProvingPeriod
	epoch := fromEpoch + 1
	if epoch < state.ActivationEpoch {
		epoch = state.ActivationEpoch
	}
	var proven uint64
	for epoch <= toEpoch {
		index, err := types.PeriodIndex(state.ActivationEpoch, epoch, period)
		if err != nil {
			return 0, 0, err
		}
		deadline, err := types.PeriodDeadline(state.ActivationEpoch, index, period)
		if err != nil {
			return 0, 0, err
		}
		segmentEnd := deadline - 1
		if segmentEnd > toEpoch {
			segmentEnd = toEpoch
		}

		ok, err := k.ProvenPeriods.Has(ctx, collections.Join(dataSetId, index))
		if err != nil {
			return 0, 0, err
		}
		switch {
		case ok:
			proven += segmentEnd - epoch + 1
		case state.Active() && now <= deadline:
			// The period can still be proven.
			return proven, epoch - 1, nil
		}
		if segmentEnd == toEpoch {
			break
		}
		epoch = segmentEnd + 1
	}
	return proven, toEpoch, nil
}
