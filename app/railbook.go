package app

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	corestore "cosmossdk.io/core/store"
	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/ethereum/go-ethereum/common"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

const railBookCodespace = "railbook"

var (
	ErrRailUnknown    = errorsmod.Register(railBookCodespace, 2, "rail does not exist")
	ErrRailTerminated = errorsmod.Register(railBookCodespace, 3, "rail is terminated")
	ErrInvalidRail    = errorsmod.Register(railBookCodespace, 4, "invalid rail")
)

var (
	railsKey      = collections.NewPrefix("Rails/value/")
	railSeqKey    = collections.NewPrefix("RailSeq/value/")
	operatorsKey  = collections.NewPrefix("Operators/value/")
	blockClockKey = collections.NewPrefix("BlockHeight/value/")
)

// Rail is the book entry for one payment rail opened by the controller.
type Rail struct {
	Id            uint64         `json:"id"`
	Token         common.Address `json:"token"`
	From          common.Address `json:"from"`
	To            common.Address `json:"to"`
	Validator     common.Address `json:"validator"`
	CommissionBps uint64         `json:"commission_bps"`
	FeeRecipient  common.Address `json:"fee_recipient"`

	LockupPeriod uint64   `json:"lockup_period"`
	LockupFixed  math.Int `json:"lockup_fixed"`
	Rate         math.Int `json:"rate"`
	// OneTimePaid accumulates one-time payments requested with rate changes.
	OneTimePaid math.Int `json:"one_time_paid"`

	CreatedEpoch uint64 `json:"created_epoch"`
	// EndEpoch is zero until the rail is terminated.
	EndEpoch uint64 `json:"end_epoch"`
}

func (r Rail) Terminated() bool {
	return r.EndEpoch != 0
}

// RailBook is a local payments ledger. It records the rails the controller
// opens and every lockup, rate and termination change applied to them.
type RailBook struct {
	Schema collections.Schema
	Rails  collections.Map[uint64, Rail]
	seq    collections.Sequence
}

func NewRailBook(storeService corestore.KVStoreService) *RailBook {
	sb := collections.NewSchemaBuilder(storeService)
	b := &RailBook{
		Rails: collections.NewMap(sb, railsKey, "rails", collections.Uint64Key, types.JSONValue[Rail]("rail")),
		seq:   collections.NewSequence(sb, railSeqKey, "rail_seq"),
	}
	schema, err := sb.Build()
	if err != nil {
		panic(err)
	}
	b.Schema = schema
	return b
}

var _ types.LedgerKeeper = (*RailBook)(nil)

func (b *RailBook) CreateRail(goCtx context.Context, params types.RailParams) (uint64, error) {
	if params.From == (common.Address{}) || params.To == (common.Address{}) {
		return 0, ErrInvalidRail.Wrap("rail endpoints must be non-zero")
	}
	if params.CommissionBps > types.BasisPoints {
		return 0, ErrInvalidRail.Wrapf("commission %d bps", params.CommissionBps)
	}
	n, err := b.seq.Next(goCtx)
	if err != nil {
		return 0, err
	}
	// Rail ids start at 1; zero means "no rail".
	id := n + 1
	rail := Rail{
		Id:            id,
		Token:         params.Token,
		From:          params.From,
		To:            params.To,
		Validator:     params.Validator,
		CommissionBps: params.CommissionBps,
		FeeRecipient:  params.FeeRecipient,
		LockupFixed:   math.ZeroInt(),
		Rate:          math.ZeroInt(),
		OneTimePaid:   math.ZeroInt(),
		CreatedEpoch:  blockEpoch(goCtx),
	}
	if err := b.Rails.Set(goCtx, id, rail); err != nil {
		return 0, err
	}
	return id, nil
}

func (b *RailBook) ModifyRailLockup(goCtx context.Context, railId uint64, lockupPeriod uint64, lockupFixed math.Int) error {
	rail, err := b.openRail(goCtx, railId)
	if err != nil {
		return err
	}
	if lockupFixed.IsNil() || lockupFixed.IsNegative() {
		return ErrInvalidRail.Wrap("lockup must be non-negative")
	}
	rail.LockupPeriod = lockupPeriod
	rail.LockupFixed = lockupFixed
	return b.Rails.Set(goCtx, railId, rail)
}

func (b *RailBook) ModifyRailPayment(goCtx context.Context, railId uint64, rate math.Int, oneTimePayment math.Int) error {
	rail, err := b.openRail(goCtx, railId)
	if err != nil {
		return err
	}
	if rate.IsNil() || rate.IsNegative() || oneTimePayment.IsNil() || oneTimePayment.IsNegative() {
		return ErrInvalidRail.Wrap("rate and one-time payment must be non-negative")
	}
	paid, err := rail.OneTimePaid.SafeAdd(oneTimePayment)
	if err != nil {
		return types.ErrArithmeticOverflow.Wrapf("rail %d one-time payment: %s", railId, err)
	}
	rail.Rate = rate
	rail.OneTimePaid = paid
	return b.Rails.Set(goCtx, railId, rail)
}

// TerminateRail ends a rail at the current block. Terminating a rail twice
// is an error.
func (b *RailBook) TerminateRail(goCtx context.Context, railId uint64) error {
	rail, err := b.openRail(goCtx, railId)
	if err != nil {
		return err
	}
	rail.EndEpoch = blockEpoch(goCtx)
	if rail.EndEpoch == 0 {
		rail.EndEpoch = 1
	}
	return b.Rails.Set(goCtx, railId, rail)
}

func (b *RailBook) GetRail(ctx context.Context, railId uint64) (Rail, error) {
	rail, err := b.Rails.Get(ctx, railId)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return Rail{}, ErrRailUnknown.Wrapf("rail %d", railId)
		}
		return Rail{}, err
	}
	return rail, nil
}

func (b *RailBook) openRail(ctx context.Context, railId uint64) (Rail, error) {
	rail, err := b.GetRail(ctx, railId)
	if err != nil {
		return Rail{}, err
	}
	if rail.Terminated() {
		return Rail{}, ErrRailTerminated.Wrapf("rail %d ended at %d", railId, rail.EndEpoch)
	}
	return rail, nil
}

// OperatorSet is the operator directory consulted when
// Params.RequireApprovedOperator is set.
type OperatorSet struct {
	Approved collections.KeySet[[]byte]
}

func NewOperatorSet(storeService corestore.KVStoreService) *OperatorSet {
	sb := collections.NewSchemaBuilder(storeService)
	s := &OperatorSet{
		Approved: collections.NewKeySet(sb, operatorsKey, "operators", collections.BytesKey),
	}
	if _, err := sb.Build(); err != nil {
		panic(err)
	}
	return s
}

var _ types.OperatorDirectory = (*OperatorSet)(nil)

func (s *OperatorSet) IsApprovedOperator(ctx context.Context, operator common.Address) (bool, error) {
	return s.Approved.Has(ctx, operator.Bytes())
}

func (s *OperatorSet) Approve(ctx context.Context, operator common.Address) error {
	if operator == (common.Address{}) {
		return types.ErrZeroAddress.Wrap("operator")
	}
	return s.Approved.Set(ctx, operator.Bytes())
}

func (s *OperatorSet) Revoke(ctx context.Context, operator common.Address) error {
	return s.Approved.Remove(ctx, operator.Bytes())
}

func blockEpoch(goCtx context.Context) uint64 {
	height := sdk.UnwrapSDKContext(goCtx).BlockHeight()
	if height < 0 {
		return 0
	}
	return uint64(height)
}
