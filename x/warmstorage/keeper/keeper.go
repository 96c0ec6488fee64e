package keeper

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	corestore "cosmossdk.io/core/store"
	"cosmossdk.io/log"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

type Keeper struct {
	storeService corestore.KVStoreService

	ledger    types.LedgerKeeper
	operators types.OperatorDirectory

	Schema         collections.Schema
	Params         collections.Item[types.Params]
	Version        collections.Item[uint64]
	ServiceVersion collections.Item[string]

	DataSets collections.Map[uint64, types.DataSetInfo]
	// ClientDataSetCount is the number of data sets created for a payer. It
	// is the next clientDataSetId that payer signs for.
	ClientDataSetCount collections.Map[[]byte, uint64]
	// ClientDataSets maps (payer, clientDataSetId) to the data set id.
	ClientDataSets collections.Map[collections.Pair[[]byte, uint64], uint64]
	RailToDataSet  collections.Map[uint64, uint64]
	// UsedNonces holds (payer, nonce) pairs consumed by add-pieces intents.
	UsedNonces collections.KeySet[collections.Pair[[]byte, []byte]]

	DataSetMetadata     collections.Map[collections.Pair[uint64, string], string]
	DataSetMetadataKeys collections.Map[uint64, []string]
	PieceMetadata       collections.Map[collections.Triple[uint64, uint64, string], string]
	PieceMetadataKeys   collections.Map[collections.Pair[uint64, uint64], []string]

	ProvingStates collections.Map[uint64, types.ProvingState]
	ProvenPeriods collections.KeySet[collections.Pair[uint64, uint64]]
}

// NewKeeper builds the keeper over storeService. operators may be nil when
// Params.RequireApprovedOperator is never enabled.
func NewKeeper(
	storeService corestore.KVStoreService,
	ledger types.LedgerKeeper,
	operators types.OperatorDirectory,
) Keeper {
	if ledger == nil {
		panic("warmstorage keeper requires a ledger")
	}

	sb := collections.NewSchemaBuilder(storeService)

	k := Keeper{
		storeService: storeService,
		ledger:       ledger,
		operators:    operators,

		Params:         collections.NewItem(sb, types.ParamsKey, "params", types.JSONValue[types.Params]("params")),
		Version:        collections.NewItem(sb, types.VersionKey, "version", collections.Uint64Value),
		ServiceVersion: collections.NewItem(sb, types.ServiceVersionKey, "service_version", collections.StringValue),

		DataSets:           collections.NewMap(sb, types.DataSetsKey, "data_sets", collections.Uint64Key, types.JSONValue[types.DataSetInfo]("data_set_info")),
		ClientDataSetCount: collections.NewMap(sb, types.ClientDataSetCountKey, "client_data_set_count", collections.BytesKey, collections.Uint64Value),
		ClientDataSets: collections.NewMap(sb, types.ClientDataSetsKey, "client_data_sets",
			collections.PairKeyCodec(collections.BytesKey, collections.Uint64Key), collections.Uint64Value),
		RailToDataSet: collections.NewMap(sb, types.RailToDataSetKey, "rail_to_data_set", collections.Uint64Key, collections.Uint64Value),
		UsedNonces: collections.NewKeySet(sb, types.UsedNoncesKey, "used_nonces",
			collections.PairKeyCodec(collections.BytesKey, collections.BytesKey)),

		DataSetMetadata: collections.NewMap(sb, types.DataSetMetadataKey, "data_set_metadata",
			collections.PairKeyCodec(collections.Uint64Key, collections.StringKey), collections.StringValue),
		DataSetMetadataKeys: collections.NewMap(sb, types.DataSetMetadataKeysKey, "data_set_metadata_keys",
			collections.Uint64Key, types.JSONValue[[]string]("metadata_keys")),
		PieceMetadata: collections.NewMap(sb, types.PieceMetadataKey, "piece_metadata",
			collections.TripleKeyCodec(collections.Uint64Key, collections.Uint64Key, collections.StringKey), collections.StringValue),
		PieceMetadataKeys: collections.NewMap(sb, types.PieceMetadataKeysKey, "piece_metadata_keys",
			collections.PairKeyCodec(collections.Uint64Key, collections.Uint64Key), types.JSONValue[[]string]("metadata_keys")),

		ProvingStates: collections.NewMap(sb, types.ProvingStatesKey, "proving_states", collections.Uint64Key, types.JSONValue[types.ProvingState]("proving_state")),
		ProvenPeriods: collections.NewKeySet(sb, types.ProvenPeriodsKey, "proven_periods",
			collections.PairKeyCodec(collections.Uint64Key, collections.Uint64Key)),
	}

	schema, err := sb.Build()
	if err != nil {
		panic(err)
	}
	k.Schema = schema

	return k
}

// Logger returns a module-specific logger.
func (k Keeper) Logger(ctx sdk.Context) log.Logger {
	return ctx.Logger().With("module", "x/"+types.ModuleName)
}

// GetDataSet returns the data set or ErrDataSetNotFound.
func (k Keeper) GetDataSet(ctx context.Context, dataSetId uint64) (types.DataSetInfo, error) {
	info, err := k.DataSets.Get(ctx, dataSetId)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return types.DataSetInfo{}, types.ErrDataSetNotFound.Wrapf("data set %d", dataSetId)
		}
		return types.DataSetInfo{}, err
	}
	return info, nil
}

// atomically runs fn against a cached branch of the store and commits it
// only when fn succeeds. Events are forwarded on commit.
func (k Keeper) atomically(goCtx context.Context, fn func(ctx sdk.Context) error) error {
	ctx := sdk.UnwrapSDKContext(goCtx)
	cacheCtx, write := ctx.CacheContext()
	if err := fn(cacheCtx); err != nil {
		return err
	}
	write()
	return nil
}

func currentEpoch(ctx sdk.Context) uint64 {
	if h := ctx.BlockHeight(); h > 0 {
		return uint64(h)
	}
	return 0
}
