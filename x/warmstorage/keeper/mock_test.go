package keeper_test

import (
	"context"
	"errors"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

var errInsufficientAllowance = errors.New("insufficient operator allowance")

type MockLedger struct {
	nextRail   uint64
	Rails      map[uint64]types.RailParams
	Lockups    map[uint64]uint64
	Rates      map[uint64]math.Int
	Terminated map[uint64]bool
	// FailCreateAfter makes CreateRail fail once this many rails exist.
	FailCreateAfter int
}

func NewMockLedger() *MockLedger {
	return &MockLedger{
		Rails:           map[uint64]types.RailParams{},
		Lockups:         map[uint64]uint64{},
		Rates:           map[uint64]math.Int{},
		Terminated:      map[uint64]bool{},
		FailCreateAfter: -1,
	}
}

func (m *MockLedger) CreateRail(ctx context.Context, rail types.RailParams) (uint64, error) {
	if m.FailCreateAfter >= 0 && len(m.Rails) >= m.FailCreateAfter {
		return 0, errInsufficientAllowance
	}
	m.nextRail++
	m.Rails[m.nextRail] = rail
	return m.nextRail, nil
}

func (m *MockLedger) ModifyRailLockup(ctx context.Context, railId uint64, lockupPeriod uint64, lockupFixed math.Int) error {
	m.Lockups[railId] = lockupPeriod
	return nil
}

func (m *MockLedger) ModifyRailPayment(ctx context.Context, railId uint64, rate math.Int, oneTimePayment math.Int) error {
	m.Rates[railId] = rate
	return nil
}

func (m *MockLedger) TerminateRail(ctx context.Context, railId uint64) error {
	m.Terminated[railId] = true
	return nil
}

type MockOperatorDirectory struct {
	Approved map[common.Address]bool
}

func (m MockOperatorDirectory) IsApprovedOperator(ctx context.Context, operator common.Address) (bool, error) {
	return m.Approved[operator], nil
}
