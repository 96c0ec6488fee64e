package keeper_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

func TestProvingLifecycle(t *testing.T) {
	f := initFixture(t)
	require.NoError(t, f.createDataSet(t, 1, operatorA, nil, nil))
	info, err := f.keeper.GetDataSet(f.ctx, 1)
	require.NoError(t, err)

	f.setEpoch(10)
	err = f.keeper.NextProvingPeriod(f.ctx, verifierAddr, 1, 99, 64, nil)
	var badEpoch *types.InvalidChallengeEpochError
	require.ErrorAs(t, err, &badEpoch)
	require.Equal(t, uint64(100), badEpoch.MinAllowed)
	require.Equal(t, uint64(110), badEpoch.MaxAllowed)

	require.ErrorIs(t, f.keeper.NextProvingPeriod(f.ctx, operatorA, 1, 105, 64, nil), types.ErrOnlyVerifier)

	require.NoError(t, f.keeper.NextProvingPeriod(f.ctx, verifierAddr, 1, 105, 64, nil))
	state, err := f.querier.ProvingState(f.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, types.ProvingState{ActivationEpoch: 10, Deadline: 110, NextChallengeEpoch: 105, LeafCount: 64}, state)
	require.Equal(t, "694444444444", f.ledger.Rates[info.PdpRailId].String())
	ev, ok := findEvent(f.ctx, types.TypeEvtProvingPeriodStarted)
	require.True(t, ok)
	require.Equal(t, "110", ev[types.AttributeKeyDeadline])

	err = f.keeper.NextProvingPeriod(f.ctx, verifierAddr, 1, 205, 64, nil)
	var already *types.NextProvingPeriodAlreadyCalledError
	require.ErrorAs(t, err, &already)
	require.Equal(t, uint64(10), already.PeriodStart)

	err = f.keeper.PossessionProven(f.ctx, verifierAddr, 1, 64, big.NewInt(1), 5)
	var early *types.ChallengeWindowTooEarlyError
	require.ErrorAs(t, err, &early)
	require.Equal(t, uint64(100), early.WindowStart)

	f.setEpoch(100)
	err = f.keeper.PossessionProven(f.ctx, verifierAddr, 1, 64, big.NewInt(1), 4)
	var count *types.InvalidChallengeCountError
	require.ErrorAs(t, err, &count)
	require.Equal(t, uint64(5), count.Expected)

	require.NoError(t, f.keeper.PossessionProven(f.ctx, verifierAddr, 1, 64, big.NewInt(1), 5))
	proven, err := f.querier.IsPeriodProven(f.ctx, 1, 0)
	require.NoError(t, err)
	require.True(t, proven)
	require.ErrorIs(t, f.keeper.PossessionProven(f.ctx, verifierAddr, 1, 64, big.NewInt(1), 5), types.ErrProofAlreadySubmitted)

	f.setEpoch(111)
	err = f.keeper.PossessionProven(f.ctx, verifierAddr, 1, 64, big.NewInt(1), 5)
	var passed *types.ProvingPeriodPassedError
	require.ErrorAs(t, err, &passed)
	require.Equal(t, uint64(110), passed.Deadline)

	require.NoError(t, f.keeper.NextProvingPeriod(f.ctx, verifierAddr, 1, 205, 128, nil))
	_, faulted := findEvent(f.ctx, types.TypeEvtFaultRecord)
	require.False(t, faulted)

	// Two whole periods pass without an advance and period 1 is unproven.
	f.setEpoch(420)
	require.NoError(t, f.keeper.NextProvingPeriod(f.ctx, verifierAddr, 1, 505, 128, nil))
	ev, ok = findEvent(f.ctx, types.TypeEvtFaultRecord)
	require.True(t, ok)
	require.Equal(t, "1", ev[types.AttributeKeyPeriod])
	require.Equal(t, "3", ev[types.AttributeKeyFaultPeriods])

	state, err = f.querier.ProvingState(f.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(510), state.Deadline)
	require.False(t, state.ProvenThisPeriod)

	for _, p := range []uint64{1, 2, 3} {
		proven, err := f.querier.IsPeriodProven(f.ctx, 1, p)
		require.NoError(t, err)
		require.False(t, proven)
	}

	start, err := f.querier.NextChallengeWindowStart(f.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(600), start)
}

func TestPeriodQueries(t *testing.T) {
	f := initFixture(t)
	require.NoError(t, f.createDataSet(t, 1, operatorA, nil, nil))

	_, err := f.querier.PeriodIndexForEpoch(f.ctx, 1, 10)
	require.Error(t, err)

	f.setEpoch(10)
	require.NoError(t, f.keeper.NextProvingPeriod(f.ctx, verifierAddr, 1, 105, 64, nil))

	index, err := f.keeper.PeriodIndexForEpoch(f.ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(0), index)
	index, err = f.keeper.PeriodIndexForEpoch(f.ctx, 1, 510)
	require.NoError(t, err)
	require.Equal(t, uint64(5), index)
	_, err = f.keeper.PeriodIndexForEpoch(f.ctx, 1, 9)
	require.ErrorIs(t, err, types.ErrEpochBeforeActivation)

	deadline, err := f.querier.PeriodDeadline(f.ctx, 1, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(510), deadline)

	cfg, err := f.querier.PDPConfig(f.ctx)
	require.NoError(t, err)
	require.Equal(t, types.PDPConfig{
		MaxProvingPeriod:         testPeriod,
		ChallengeWindow:          testWindow,
		ChallengesPerProof:       5,
		InitChallengeWindowStart: 10 + testPeriod - testWindow,
	}, cfg)
}

func TestProvingDeactivateAndResume(t *testing.T) {
	f := initFixture(t)
	require.NoError(t, f.createDataSet(t, 1, operatorA, nil, nil))

	// An empty data set does not start proving.
	f.setEpoch(5)
	require.NoError(t, f.keeper.NextProvingPeriod(f.ctx, verifierAddr, 1, 0, 0, nil))
	state, err := f.querier.ProvingState(f.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, types.ProvingState{}, state)

	f.setEpoch(10)
	require.NoError(t, f.keeper.NextProvingPeriod(f.ctx, verifierAddr, 1, 105, 64, nil))

	f.setEpoch(50)
	require.NoError(t, f.keeper.NextProvingPeriod(f.ctx, verifierAddr, 1, 0, 0, nil))
	ev, ok := findEvent(f.ctx, types.TypeEvtFaultRecord)
	require.True(t, ok)
	require.Equal(t, "1", ev[types.AttributeKeyFaultPeriods])

	state, err = f.querier.ProvingState(f.ctx, 1)
	require.NoError(t, err)
	require.False(t, state.Active())
	require.ErrorIs(t, f.keeper.PossessionProven(f.ctx, verifierAddr, 1, 0, nil, 5), types.ErrProvingNotStarted)
	_, err = f.querier.NextChallengeWindowStart(f.ctx, 1)
	require.Error(t, err)

	// Resuming keeps the original period grid.
	f.setEpoch(275)
	err = f.keeper.NextProvingPeriod(f.ctx, verifierAddr, 1, 385, 64, nil)
	require.ErrorIs(t, err, types.ErrInvalidChallengeEpoch)
	require.NoError(t, f.keeper.NextProvingPeriod(f.ctx, verifierAddr, 1, 305, 64, nil))

	state, err = f.querier.ProvingState(f.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(10), state.ActivationEpoch)
	require.Equal(t, uint64(310), state.Deadline)

	f.setEpoch(305)
	require.NoError(t, f.keeper.PossessionProven(f.ctx, verifierAddr, 1, 64, nil, 5))
	proven, err := f.keeper.IsPeriodProven(f.ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, proven)
}
