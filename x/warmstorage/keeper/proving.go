package keeper

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"cosmossdk.io/collections"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/ethereum/go-ethereum/common"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

func (k Keeper) provingState(ctx context.Context, dataSetId uint64) (types.ProvingState, bool, error) {
	state, err := k.ProvingStates.Get(ctx, dataSetId)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return types.ProvingState{}, false, nil
		}
		return types.ProvingState{}, false, err
	}
	return state, true, nil
}

// NextProvingPeriod schedules the next proof deadline of a data set. The
// first call activates proving; a zero challengeEpoch deactivates it until
// the next call, which resumes on the original period grid.
func (k Keeper) NextProvingPeriod(goCtx context.Context, caller common.Address, dataSetId, challengeEpoch, leafCount uint64, extraData []byte) error {
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
		now := currentEpoch(ctx)
		if err := requireActive(info, now); err != nil {
			return err
		}
		state, found, err := k.provingState(ctx, dataSetId)
		if err != nil {
			return err
		}

		period := params.MaxProvingPeriod
		var deadline uint64
		switch {
		case !found:
			if challengeEpoch == 0 {
				// Nothing to prove yet; stay unstarted.
				return nil
			}
			state.ActivationEpoch = now
			if deadline, err = types.AddEpochs(now, period); err != nil {
				return err
			}

		case !state.Active():
			if challengeEpoch == 0 {
				break
			}
			index, err := types.PeriodIndex(state.ActivationEpoch, now, period)
			if err != nil {
				return err
			}
			if deadline, err = types.PeriodDeadline(state.ActivationEpoch, index, period); err != nil {
				return err
			}

		default:
			periodStart := state.Deadline - period
			if now <= periodStart {
				return &types.NextProvingPeriodAlreadyCalledError{DataSetId: dataSetId, PeriodStart: periodStart, CurrentEpoch: now}
			}
			skipped := types.SkippedPeriods(state.Deadline, now, period)
			faults := skipped
			if !state.ProvenThisPeriod {
				faults++
			}
			if faults > 0 {
				if err := k.recordFaults(ctx, state, dataSetId, period, faults); err != nil {
					return err
				}
			}
			if challengeEpoch != 0 {
				if deadline, err = types.NextDeadline(state.Deadline, now, period); err != nil {
					return err
				}
			}
		}

		if deadline != 0 {
			if err := types.ValidateChallengeEpoch(dataSetId, deadline, params.ChallengeWindowSize, challengeEpoch); err != nil {
				return err
			}
		}
		state.Deadline = deadline
		state.NextChallengeEpoch = challengeEpoch
		state.ProvenThisPeriod = false
		state.LeafCount = leafCount
		if err := k.ProvingStates.Set(ctx, dataSetId, state); err != nil {
			return err
		}

		// Terminated rails keep the rate they had when notice was given.
		if state.Active() && !info.Terminated() {
			if err := k.repriceStorage(ctx, params, info, leafCount); err != nil {
				return err
			}
		}

		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.TypeEvtProvingPeriodStarted,
				sdk.NewAttribute(types.AttributeKeyDataSetID, fmt.Sprintf("%d", dataSetId)),
				sdk.NewAttribute(types.AttributeKeyDeadline, fmt.Sprintf("%d", deadline)),
				sdk.NewAttribute(types.AttributeKeyChallengeEpoch, fmt.Sprintf("%d", challengeEpoch)),
				sdk.NewAttribute(types.AttributeKeyLeafCount, fmt.Sprintf("%d", leafCount)),
			),
		)
		k.Logger(ctx).Debug("proving period scheduled", "data_set_id", dataSetId, "deadline", deadline, "challenge_epoch", challengeEpoch)
		return nil
	})
}

func (k Keeper) recordFaults(ctx sdk.Context, state types.ProvingState, dataSetId, period, faults uint64) error {
	index, err := types.DeadlinePeriod(state.ActivationEpoch, state.Deadline, period)
	if err != nil {
		return err
	}
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.TypeEvtFaultRecord,
			sdk.NewAttribute(types.AttributeKeyDataSetID, fmt.Sprintf("%d", dataSetId)),
			sdk.NewAttribute(types.AttributeKeyPeriod, fmt.Sprintf("%d", index)),
			sdk.NewAttribute(types.AttributeKeyFaultPeriods, fmt.Sprintf("%d", faults)),
			sdk.NewAttribute(types.AttributeKeyDeadline, fmt.Sprintf("%d", state.Deadline)),
		),
	)
	k.Logger(ctx).Info("fault record", "data_set_id", dataSetId, "period", index, "fault_periods", faults)
	return nil
}

// repriceStorage sets the PDP rail rate for the data set's current size.
func (k Keeper) repriceStorage(ctx sdk.Context, params types.Params, info types.DataSetInfo, leafCount uint64) error {
	rate, err := types.RateForLeafCount(params, leafCount)
	if err != nil {
		return err
	}
	if err := k.ledger.ModifyRailPayment(ctx, info.PdpRailId, rate, math.ZeroInt()); err != nil {
		return fmt.Errorf("reprice rail %d: %w", info.PdpRailId, err)
	}
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.TypeEvtRailRateUpdated,
			sdk.NewAttribute(types.AttributeKeyDataSetID, fmt.Sprintf("%d", info.Id)),
			sdk.NewAttribute(types.AttributeKeyRailID, fmt.Sprintf("%d", info.PdpRailId)),
			sdk.NewAttribute(types.AttributeKeyRate, rate.String()),
		),
	)
	return nil
}

// PossessionProven records a proof for the period whose deadline is
// current. The verifier has already checked the proof itself.
func (k Keeper) PossessionProven(goCtx context.Context, caller common.Address, dataSetId, leafCount uint64, seed *big.Int, challengeCount uint64) error {
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
		now := currentEpoch(ctx)
		if err := requireActive(info, now); err != nil {
			return err
		}
		state, found, err := k.provingState(ctx, dataSetId)
		if err != nil {
			return err
		}
		if !found || !state.Active() {
			return types.ErrProvingNotStarted.Wrapf("data set %d", dataSetId)
		}
		if challengeCount != params.ChallengesPerProof {
			return &types.InvalidChallengeCountError{DataSetId: dataSetId, Expected: params.ChallengesPerProof, Actual: challengeCount}
		}
		if now > state.Deadline {
			return &types.ProvingPeriodPassedError{DataSetId: dataSetId, Deadline: state.Deadline, CurrentEpoch: now}
		}
		windowStart := types.ChallengeWindowStart(state.Deadline, params.ChallengeWindowSize)
		if now < windowStart {
			return &types.ChallengeWindowTooEarlyError{DataSetId: dataSetId, WindowStart: windowStart, CurrentEpoch: now}
		}
		if state.ProvenThisPeriod {
			return types.ErrProofAlreadySubmitted.Wrapf("data set %d deadline %d", dataSetId, state.Deadline)
		}

		index, err := types.DeadlinePeriod(state.ActivationEpoch, state.Deadline, params.MaxProvingPeriod)
		if err != nil {
			return err
		}
		if err := k.ProvenPeriods.Set(ctx, collections.Join(dataSetId, index)); err != nil {
			return err
		}
		state.ProvenThisPeriod = true
		state.LeafCount = leafCount
		if err := k.ProvingStates.Set(ctx, dataSetId, state); err != nil {
			return err
		}

		seedStr := "0"
		if seed != nil {
			seedStr = seed.String()
		}
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.TypeEvtPossessionProven,
				sdk.NewAttribute(types.AttributeKeyDataSetID, fmt.Sprintf("%d", dataSetId)),
				sdk.NewAttribute(types.AttributeKeyPeriod, fmt.Sprintf("%d", index)),
				sdk.NewAttribute(types.AttributeKeyLeafCount, fmt.Sprintf("%d", leafCount)),
				sdk.NewAttribute("seed", seedStr),
			),
		)
		k.Logger(ctx).Debug("possession proven", "data_set_id", dataSetId, "period", index)
		return nil
	})
}

// IsPeriodProven reports whether a proof was recorded for period.
func (k Keeper) IsPeriodProven(ctx context.Context, dataSetId, period uint64) (bool, error) {
	return k.ProvenPeriods.Has(ctx, collections.Join(dataSetId, period))
}

// PeriodIndexForEpoch maps an epoch to a proving period of the data set.
func (k Keeper) PeriodIndexForEpoch(ctx context.Context, dataSetId, epoch uint64) (uint64, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return 0, err
	}
	state, found, err := k.provingState(ctx, dataSetId)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, types.ErrProvingNotStarted.Wrapf("data set %d", dataSetId)
	}
	return types.PeriodIndex(state.ActivationEpoch, epoch, params.MaxProvingPeriod)
}

// PeriodDeadline is the last epoch a proof for period is accepted.
func (k Keeper) PeriodDeadline(ctx context.Context, dataSetId, period uint64) (uint64, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return 0, err
	}
	state, found, err := k.provingState(ctx, dataSetId)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, types.ErrProvingNotStarted.Wrapf("data set %d", dataSetId)
	}
	return types.PeriodDeadline(state.ActivationEpoch, period, params.MaxProvingPeriod)
}

// NextChallengeWindowStart is the start of the window the next call to
// NextProvingPeriod must pick its challenge epoch from.
func (k Keeper) NextChallengeWindowStart(goCtx context.Context, dataSetId uint64) (uint64, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)
	params, err := k.GetParams(ctx)
	if err != nil {
		return 0, err
	}
	state, found, err := k.provingState(ctx, dataSetId)
	if err != nil {
		return 0, err
	}
	if !found || !state.Active() {
		return 0, types.ErrProvingNotStarted.Wrapf("data set %d", dataSetId)
	}
	deadline, err := types.NextDeadline(state.Deadline, currentEpoch(ctx), params.MaxProvingPeriod)
	if err != nil {
		return 0, err
	}
	return types.ChallengeWindowStart(deadline, params.ChallengeWindowSize), nil
}

// GetPDPConfig returns the proving schedule for a data set activated now.
func (k Keeper) GetPDPConfig(goCtx context.Context) (types.PDPConfig, error) {
	ctx := sdk.UnwrapSDKContext(goCtx)
	params, err := k.GetParams(ctx)
	if err != nil {
		return types.PDPConfig{}, err
	}
	return types.ProvingConfig(params, currentEpoch(ctx))
}
