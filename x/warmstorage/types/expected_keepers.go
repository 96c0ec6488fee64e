package types

import (
	"context"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// LedgerKeeper is the payment ledger's rail interface. The controller opens
// rails at creation time and adjusts them as the agreement evolves; it never
// moves funds itself.
type LedgerKeeper interface {
	CreateRail(ctx context.Context, rail RailParams) (uint64, error)
	ModifyRailLockup(ctx context.Context, railId uint64, lockupPeriod uint64, lockupFixed math.Int) error
	ModifyRailPayment(ctx context.Context, railId uint64, rate math.Int, oneTimePayment math.Int) error
	TerminateRail(ctx context.Context, railId uint64) error
}

// OperatorDirectory answers whether a storage provider may receive payments.
type OperatorDirectory interface {
	IsApprovedOperator(ctx context.Context, operator common.Address) (bool, error)
}
