package keeper

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

// Querier serves the read-only views of the controller. Errors carry gRPC
// status codes.
type Querier struct {
	k Keeper
}

func NewQuerier(k Keeper) Querier {
	return Querier{k: k}
}

// DataSet returns the full record of a data set.
func (q Querier) DataSet(ctx context.Context, dataSetId uint64) (types.DataSetInfo, error) {
	info, err := q.k.GetDataSet(ctx, dataSetId)
	if err != nil {
		return types.DataSetInfo{}, toStatus(err)
	}
	return info, nil
}

// DataSetParties returns the payer and current payee of a data set.
func (q Querier) DataSetParties(ctx context.Context, dataSetId uint64) (types.DataSetParties, error) {
	info, err := q.DataSet(ctx, dataSetId)
	if err != nil {
		return types.DataSetParties{}, err
	}
	return types.DataSetParties{Payer: info.Payer, Payee: info.Payee}, nil
}

// ClientDataSets lists a payer's data sets in creation order.
func (q Querier) ClientDataSets(ctx context.Context, payer common.Address) ([]types.DataSetInfo, error) {
	rng := collections.NewPrefixedPairRange[[]byte, uint64](payer.Bytes())
	iter, err := q.k.ClientDataSets.Iterate(ctx, rng)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	defer iter.Close()

	var out []types.DataSetInfo
	for ; iter.Valid(); iter.Next() {
		dataSetId, err := iter.Value()
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		info, err := q.k.GetDataSet(ctx, dataSetId)
		if err != nil {
			return nil, toStatus(err)
		}
		out = append(out, info)
	}
	return out, nil
}

func (q Querier) DataSetMetadata(ctx context.Context, dataSetId uint64, key string) (types.MetadataLookup, error) {
	if _, err := q.DataSet(ctx, dataSetId); err != nil {
		return types.MetadataLookup{}, err
	}
	res, err := q.k.GetDataSetMetadata(ctx, dataSetId, key)
	if err != nil {
		return types.MetadataLookup{}, toStatus(err)
	}
	return res, nil
}

func (q Querier) AllDataSetMetadata(ctx context.Context, dataSetId uint64) ([]types.MetadataEntry, error) {
	if _, err := q.DataSet(ctx, dataSetId); err != nil {
		return nil, err
	}
	entries, err := q.k.GetAllDataSetMetadata(ctx, dataSetId)
	if err != nil {
		return nil, toStatus(err)
	}
	return entries, nil
}

func (q Querier) PieceMetadata(ctx context.Context, dataSetId, pieceIndex uint64, key string) (types.MetadataLookup, error) {
	if _, err := q.DataSet(ctx, dataSetId); err != nil {
		return types.MetadataLookup{}, err
	}
	res, err := q.k.GetPieceMetadata(ctx, dataSetId, pieceIndex, key)
	if err != nil {
		return types.MetadataLookup{}, toStatus(err)
	}
	return res, nil
}

func (q Querier) AllPieceMetadata(ctx context.Context, dataSetId, pieceIndex uint64) ([]types.MetadataEntry, error) {
	if _, err := q.DataSet(ctx, dataSetId); err != nil {
		return nil, err
	}
	entries, err := q.k.GetAllPieceMetadata(ctx, dataSetId, pieceIndex)
	if err != nil {
		return nil, toStatus(err)
	}
	return entries, nil
}

// ProvingState returns the proving schedule of a data set. A data set that
// never started proving has a zero state.
func (q Querier) ProvingState(ctx context.Context, dataSetId uint64) (types.ProvingState, error) {
	if _, err := q.DataSet(ctx, dataSetId); err != nil {
		return types.ProvingState{}, err
	}
	state, _, err := q.k.provingState(ctx, dataSetId)
	if err != nil {
		return types.ProvingState{}, toStatus(err)
	}
	return state, nil
}

func (q Querier) IsPeriodProven(ctx context.Context, dataSetId, period uint64) (bool, error) {
	if _, err := q.DataSet(ctx, dataSetId); err != nil {
		return false, err
	}
	ok, err := q.k.IsPeriodProven(ctx, dataSetId, period)
	if err != nil {
		return false, toStatus(err)
	}
	return ok, nil
}

func (q Querier) PeriodIndexForEpoch(ctx context.Context, dataSetId, epoch uint64) (uint64, error) {
	if _, err := q.DataSet(ctx, dataSetId); err != nil {
		return 0, err
	}
	index, err := q.k.PeriodIndexForEpoch(ctx, dataSetId, epoch)
	if err != nil {
		return 0, toStatus(err)
	}
	return index, nil
}

func (q Querier) PeriodDeadline(ctx context.Context, dataSetId, period uint64) (uint64, error) {
	if _, err := q.DataSet(ctx, dataSetId); err != nil {
		return 0, err
	}
	deadline, err := q.k.PeriodDeadline(ctx, dataSetId, period)
	if err != nil {
		return 0, toStatus(err)
	}
	return deadline, nil
}

func (q Querier) NextChallengeWindowStart(ctx context.Context, dataSetId uint64) (uint64, error) {
	if _, err := q.DataSet(ctx, dataSetId); err != nil {
		return 0, err
	}
	start, err := q.k.NextChallengeWindowStart(ctx, dataSetId)
	if err != nil {
		return 0, toStatus(err)
	}
	return start, nil
}

func (q Querier) PDPConfig(ctx context.Context) (types.PDPConfig, error) {
	cfg, err := q.k.GetPDPConfig(ctx)
	if err != nil {
		return types.PDPConfig{}, toStatus(err)
	}
	return cfg, nil
}

// ServicePrice quotes the current per TiB prices.
func (q Querier) ServicePrice(ctx context.Context) (types.ServicePrice, error) {
	params, err := q.k.GetParams(ctx)
	if err != nil {
		return types.ServicePrice{}, toStatus(err)
	}
	return types.QuoteServicePrice(params), nil
}

// RateForSize returns the PDP rail rate per epoch for sizeBytes.
func (q Querier) RateForSize(ctx context.Context, sizeBytes uint64) (math.Int, error) {
	params, err := q.k.GetParams(ctx)
	if err != nil {
		return math.Int{}, toStatus(err)
	}
	rate, err := types.StorageRatePerEpoch(params, sizeBytes)
	if err != nil {
		return math.Int{}, toStatus(err)
	}
	return rate, nil
}

func (q Querier) Params(ctx context.Context) (types.Params, error) {
	params, err := q.k.GetParams(ctx)
	if err != nil {
		return types.Params{}, toStatus(err)
	}
	return params, nil
}

// Version returns the applied migration version and service version string.
func (q Querier) Version(ctx context.Context) (uint64, string, error) {
	version, err := q.k.Version.Get(ctx)
	if err != nil && !errors.Is(err, collections.ErrNotFound) {
		return 0, "", status.Error(codes.Internal, err.Error())
	}
	service, err := q.k.ServiceVersion.Get(ctx)
	if err != nil && !errors.Is(err, collections.ErrNotFound) {
		return 0, "", status.Error(codes.Internal, err.Error())
	}
	return version, service, nil
}

// toStatus maps module errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, types.ErrDataSetNotFound), errors.Is(err, types.ErrRailNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrProvingNotStarted):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errorsmod.IsOf(err, types.ErrEpochBeforeActivation, types.ErrArithmeticOverflow, types.ErrInvalidEpochRange):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, types.ErrInvalidParams):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
