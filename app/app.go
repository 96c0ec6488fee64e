package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/collections"
	"cosmossdk.io/depinject"
	"cosmossdk.io/log"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/runtime"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/ethereum/go-ethereum/common"

	"github.com/storacha/filecoin-services-sub000/precompiles/warmstorage"
	wskeeper "github.com/storacha/filecoin-services-sub000/x/warmstorage/keeper"
	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

const (
	// Name is the name of the application.
	Name = "warmstorage"

	// LedgerStoreKey holds the rail book, the operator directory and the
	// block clock.
	LedgerStoreKey = "ledger"
)

// Config is what the daemon hands the app at start.
type Config struct {
	ChainID           string
	Params            types.Params
	ApprovedOperators []common.Address
}

// App hosts the controller over a committed multistore and a simulated
// block clock. Deliveries are serialised and each successful one commits.
type App struct {
	mu     sync.Mutex
	logger log.Logger
	cfg    Config

	db  dbm.DB
	cms storetypes.CommitMultiStore

	height collections.Item[int64]

	Keeper    wskeeper.Keeper
	Querier   wskeeper.Querier
	Router    *warmstorage.Router
	RailBook  *RailBook
	Operators *OperatorSet
}

// KeeperInputs are the dependencies the controller keeper is built from.
type KeeperInputs struct {
	depinject.In

	StoreKey  *storetypes.KVStoreKey
	RailBook  *RailBook
	Operators *OperatorSet
}

func ProvideKeeper(in KeeperInputs) wskeeper.Keeper {
	return wskeeper.NewKeeper(runtime.NewKVStoreService(in.StoreKey), in.RailBook, in.Operators)
}

func ProvideRouter(k wskeeper.Keeper) (*warmstorage.Router, error) {
	return warmstorage.New(k)
}

// New mounts the stores on db, wires the keeper and runs pending
// migrations against cfg.Params.
func New(logger log.Logger, db dbm.DB, cfg Config) (*App, error) {
	if cfg.ChainID == "" {
		return nil, errors.New("chain id is required")
	}
	if err := cfg.Params.ValidateAddresses(); err != nil {
		return nil, err
	}
	wsKey := storetypes.NewKVStoreKey(types.StoreKey)
	ledgerKey := storetypes.NewKVStoreKey(LedgerStoreKey)

	cms := store.NewCommitMultiStore(db, logger, metrics.NewNoOpMetrics())
	cms.MountStoreWithDB(wsKey, storetypes.StoreTypeIAVL, nil)
	cms.MountStoreWithDB(ledgerKey, storetypes.StoreTypeIAVL, nil)
	if err := cms.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("load stores: %w", err)
	}

	ledgerService := runtime.NewKVStoreService(ledgerKey)
	a := &App{
		logger:    logger,
		cfg:       cfg,
		db:        db,
		cms:       cms,
		RailBook:  NewRailBook(ledgerService),
		Operators: NewOperatorSet(ledgerService),
	}
	sb := collections.NewSchemaBuilder(ledgerService)
	a.height = collections.NewItem(sb, blockClockKey, "block_height", collections.Int64Value)
	if _, err := sb.Build(); err != nil {
		return nil, err
	}

	if err := depinject.Inject(
		depinject.Configs(
			depinject.Supply(wsKey, a.RailBook, a.Operators),
			depinject.Provide(ProvideKeeper, ProvideRouter),
		),
		&a.Keeper,
		&a.Router,
	); err != nil {
		return nil, fmt.Errorf("wire keeper: %w", err)
	}
	a.Querier = wskeeper.NewQuerier(a.Keeper)

	if err := a.bootstrap(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) bootstrap() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	height, err := a.height.Get(a.newContext(0))
	if err != nil && !errors.Is(err, collections.ErrNotFound) {
		return err
	}
	ctx := a.newContext(height)
	if err := a.Keeper.RunMigrations(ctx, a.cfg.Params); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	for _, op := range a.cfg.ApprovedOperators {
		if err := a.Operators.Approve(ctx, op); err != nil {
			return fmt.Errorf("approve operator %s: %w", op.Hex(), err)
		}
	}
	if err := a.height.Set(ctx, height); err != nil {
		return err
	}
	a.commit()
	a.logger.Info("warm storage app ready", "height", height, "chain_id", a.cfg.ChainID)
	return nil
}

func (a *App) newContext(height int64) sdk.Context {
	header := cmtproto.Header{
		ChainID: a.cfg.ChainID,
		Height:  height,
		Time:    time.Now().UTC(),
	}
	return sdk.NewContext(a.cms, header, false, a.logger)
}

func (a *App) commit() storetypes.CommitID {
	return a.cms.Commit()
}

// Height returns the current block height.
func (a *App) Height() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentHeight()
}

func (a *App) currentHeight() (int64, error) {
	height, err := a.height.Get(a.newContext(0))
	if errors.Is(err, collections.ErrNotFound) {
		return 0, nil
	}
	return height, err
}

// Event is an emitted event flattened for JSON.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Receipt describes the outcome of a delivered call.
type Receipt struct {
	Height int64   `json:"height"`
	Method string  `json:"method"`
	Output string  `json:"output"`
	Events []Event `json:"events"`
}

// Deliver runs calldata from caller at the current height. A failed call
// leaves no state behind.
func (a *App) Deliver(caller common.Address, calldata []byte) (Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	method, err := a.Router.Method(calldata)
	if err != nil {
		return Receipt{}, err
	}
	height, err := a.currentHeight()
	if err != nil {
		return Receipt{}, err
	}
	ctx := a.newContext(height)
	out, err := a.Router.Call(ctx, caller, calldata)
	if err != nil {
		a.logger.Debug("call rejected", "method", method.Name, "caller", caller.Hex(), "err", err)
		return Receipt{}, err
	}
	a.commit()

	return Receipt{
		Height: height,
		Method: method.Name,
		Output: "0x" + hex.EncodeToString(out),
		Events: flattenEvents(ctx.EventManager().Events()),
	}, nil
}

// AdvanceBlocks moves the block clock forward by n and returns the new
// height.
func (a *App) AdvanceBlocks(n uint64) (int64, error) {
	if n == 0 {
		return 0, errors.New("block count must be positive")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	height, err := a.currentHeight()
	if err != nil {
		return 0, err
	}
	next, err := types.AddEpochs(uint64(height), n)
	if err != nil || next > uint64(1<<63-1) {
		return 0, types.ErrArithmeticOverflow.Wrapf("height %d + %d", height, n)
	}
	ctx := a.newContext(int64(next))
	if err := a.height.Set(ctx, int64(next)); err != nil {
		return 0, err
	}
	a.commit()
	return int64(next), nil
}

// Query runs fn against a read-only view at the current height.
func (a *App) Query(fn func(ctx context.Context, q wskeeper.Querier) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	height, err := a.currentHeight()
	if err != nil {
		return err
	}
	ctx, _ := a.newContext(height).CacheContext()
	return fn(ctx, a.Querier)
}

// Rail returns a rail from the local rail book.
func (a *App) Rail(railId uint64) (Rail, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.RailBook.GetRail(a.newContext(0), railId)
}

// Run advances one block every blockTime until ctx is done.
func (a *App) Run(ctx context.Context, blockTime time.Duration) error {
	if blockTime <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(blockTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			height, err := a.AdvanceBlocks(1)
			if err != nil {
				return err
			}
			a.logger.Debug("block", "height", height)
		}
	}
}

// Close releases the database.
func (a *App) Close() error {
	return a.db.Close()
}

func flattenEvents(events sdk.Events) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		attrs := make(map[string]string, len(ev.Attributes))
		for _, attr := range ev.Attributes {
			attrs[attr.Key] = attr.Value
		}
		out = append(out, Event{Type: ev.Type, Attributes: attrs})
	}
	return out
}
