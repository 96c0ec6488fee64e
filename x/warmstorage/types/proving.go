package types

// Period p of a data set covers epochs
// [activation + p*MaxProvingPeriod, activation + (p+1)*MaxProvingPeriod - 1]
// and its proof is due by activation + (p+1)*MaxProvingPeriod.

// PeriodIndex returns the period epoch falls in.
func PeriodIndex(activation, epoch, period uint64) (uint64, error) {
	if epoch < activation {
		return 0, ErrEpochBeforeActivation.Wrapf("epoch %d, activation %d", epoch, activation)
	}
	if period == 0 {
		return 0, ErrInvalidParams.Wrap("max proving period must be positive")
	}
	return (epoch - activation) / period, nil
}

// PeriodStart returns the first epoch of period index.
func PeriodStart(activation, index, period uint64) (uint64, error) {
	offset, err := MulEpochs(index, period)
	if err != nil {
		return 0, err
	}
	return AddEpochs(activation, offset)
}

// PeriodDeadline returns the last epoch a proof for period index is accepted.
func PeriodDeadline(activation, index, period uint64) (uint64, error) {
	return PeriodStart(activation, index+1, period)
}

// DeadlinePeriod is the inverse of PeriodDeadline.
func DeadlinePeriod(activation, deadline, period uint64) (uint64, error) {
	if period == 0 {
		return 0, ErrInvalidParams.Wrap("max proving period must be positive")
	}
	first, err := AddEpochs(activation, period)
	if err != nil {
		return 0, err
	}
	if deadline < first {
		return 0, ErrProvingNotStarted.Wrapf("deadline %d precedes the first period end", deadline)
	}
	return (deadline-activation)/period - 1, nil
}

// SkippedPeriods counts the whole periods after the one ending at deadline
// that also ended by now without a call to advance the schedule.
func SkippedPeriods(deadline, now, period uint64) uint64 {
	if now <= deadline {
		return 0
	}
	return (now - (deadline + 1)) / period
}

// NextDeadline is the deadline an advance at now schedules after deadline.
func NextDeadline(deadline, now, period uint64) (uint64, error) {
	step, err := MulEpochs(period, SkippedPeriods(deadline, now, period)+1)
	if err != nil {
		return 0, err
	}
	return AddEpochs(deadline, step)
}

// ChallengeWindowStart is the first epoch a proof is accepted for a deadline.
func ChallengeWindowStart(deadline, window uint64) uint64 {
	if deadline < window {
		return 0
	}
	return deadline - window
}

// ValidateChallengeEpoch checks that challengeEpoch lies in the challenge
// window of deadline.
func ValidateChallengeEpoch(dataSetId, deadline, window, challengeEpoch uint64) error {
	start := ChallengeWindowStart(deadline, window)
	if challengeEpoch < start || challengeEpoch > deadline {
		return &InvalidChallengeEpochError{
			DataSetId:  dataSetId,
			MinAllowed: start,
			MaxAllowed: deadline,
			Actual:     challengeEpoch,
		}
	}
	return nil
}

// ProvingConfig returns the schedule a provider plans a new data set
// against when it is activated at now.
func ProvingConfig(p Params, now uint64) (PDPConfig, error) {
	lead, err := SubEpochs(p.MaxProvingPeriod, p.ChallengeWindowSize)
	if err != nil {
		return PDPConfig{}, err
	}
	start, err := AddEpochs(now, lead)
	if err != nil {
		return PDPConfig{}, err
	}
	return PDPConfig{
		MaxProvingPeriod:         p.MaxProvingPeriod,
		ChallengeWindow:          p.ChallengeWindowSize,
		ChallengesPerProof:       p.ChallengesPerProof,
		InitChallengeWindowStart: start,
	}, nil
}
