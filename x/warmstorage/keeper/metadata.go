package keeper

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

// SetDataSetMetadata writes a batch of data set metadata. The whole batch is
// rejected if any entry is invalid or any key already exists.
func (k Keeper) SetDataSetMetadata(goCtx context.Context, dataSetId uint64, keys, values []string) error {
	return k.atomically(goCtx, func(ctx sdk.Context) error {
		if _, err := k.GetDataSet(ctx, dataSetId); err != nil {
			return err
		}
		entries, err := types.NewMetadataEntries(keys, values)
		if err != nil {
			return err
		}
		return k.setDataSetMetadata(ctx, dataSetId, entries)
	})
}

// SetPieceMetadata writes a batch of metadata for one piece.
func (k Keeper) SetPieceMetadata(goCtx context.Context, dataSetId, pieceIndex uint64, keys, values []string) error {
	return k.atomically(goCtx, func(ctx sdk.Context) error {
		if _, err := k.GetDataSet(ctx, dataSetId); err != nil {
			return err
		}
		entries, err := types.NewMetadataEntries(keys, values)
		if err != nil {
			return err
		}
		if err := k.validatePieceMetadata(ctx, dataSetId, pieceIndex, entries); err != nil {
			return err
		}
		return k.writePieceMetadata(ctx, dataSetId, pieceIndex, entries)
	})
}

func (k Keeper) setDataSetMetadata(ctx context.Context, dataSetId uint64, entries []types.MetadataEntry) error {
	if err := types.ValidateMetadata(entries, types.MaxKeysPerDataSet); err != nil {
		return err
	}
	existing, err := k.dataSetMetadataKeys(ctx, dataSetId)
	if err != nil {
		return err
	}
	if total := len(existing) + len(entries); total > types.MaxKeysPerDataSet {
		return &types.TooManyMetadataKeysError{Max: types.MaxKeysPerDataSet, Actual: total}
	}
	if key, dup := types.DuplicateKey(entries); dup {
		return &types.DuplicateMetadataKeyError{DataSetId: dataSetId, Key: key}
	}
	for _, e := range entries {
		has, err := k.DataSetMetadata.Has(ctx, collections.Join(dataSetId, e.Key))
		if err != nil {
			return err
		}
		if has {
			return &types.DuplicateMetadataKeyError{DataSetId: dataSetId, Key: e.Key}
		}
	}

	for _, e := range entries {
		if err := k.DataSetMetadata.Set(ctx, collections.Join(dataSetId, e.Key), e.Value); err != nil {
			return err
		}
		existing = append(existing, e.Key)
	}
	return k.DataSetMetadataKeys.Set(ctx, dataSetId, existing)
}

func (k Keeper) validatePieceMetadata(ctx context.Context, dataSetId, pieceIndex uint64, entries []types.MetadataEntry) error {
	if err := types.ValidateMetadata(entries, types.MaxKeysPerPiece); err != nil {
		return err
	}
	existing, err := k.pieceMetadataKeys(ctx, dataSetId, pieceIndex)
	if err != nil {
		return err
	}
	if total := len(existing) + len(entries); total > types.MaxKeysPerPiece {
		return &types.TooManyMetadataKeysError{Max: types.MaxKeysPerPiece, Actual: total}
	}
	if key, dup := types.DuplicateKey(entries); dup {
		return &types.DuplicateMetadataKeyError{DataSetId: dataSetId, Piece: true, PieceIndex: pieceIndex, Key: key}
	}
	for _, e := range entries {
		has, err := k.PieceMetadata.Has(ctx, collections.Join3(dataSetId, pieceIndex, e.Key))
		if err != nil {
			return err
		}
		if has {
			return &types.DuplicateMetadataKeyError{DataSetId: dataSetId, Piece: true, PieceIndex: pieceIndex, Key: e.Key}
		}
	}
	return nil
}

// writePieceMetadata assumes entries passed validatePieceMetadata.
func (k Keeper) writePieceMetadata(ctx context.Context, dataSetId, pieceIndex uint64, entries []types.MetadataEntry) error {
	if len(entries) == 0 {
		return nil
	}
	existing, err := k.pieceMetadataKeys(ctx, dataSetId, pieceIndex)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := k.PieceMetadata.Set(ctx, collections.Join3(dataSetId, pieceIndex, e.Key), e.Value); err != nil {
			return err
		}
		existing = append(existing, e.Key)
	}
	return k.PieceMetadataKeys.Set(ctx, collections.Join(dataSetId, pieceIndex), existing)
}

// GetDataSetMetadata looks up one data set metadata key.
func (k Keeper) GetDataSetMetadata(ctx context.Context, dataSetId uint64, key string) (types.MetadataLookup, error) {
	value, err := k.DataSetMetadata.Get(ctx, collections.Join(dataSetId, key))
	return lookup(value, err)
}

// GetPieceMetadata looks up one piece metadata key.
func (k Keeper) GetPieceMetadata(ctx context.Context, dataSetId, pieceIndex uint64, key string) (types.MetadataLookup, error) {
	value, err := k.PieceMetadata.Get(ctx, collections.Join3(dataSetId, pieceIndex, key))
	return lookup(value, err)
}

// GetAllDataSetMetadata returns every data set metadata entry in write order.
func (k Keeper) GetAllDataSetMetadata(ctx context.Context, dataSetId uint64) ([]types.MetadataEntry, error) {
	keys, err := k.dataSetMetadataKeys(ctx, dataSetId)
	if err != nil {
		return nil, err
	}
	entries := make([]types.MetadataEntry, 0, len(keys))
	for _, key := range keys {
		value, err := k.DataSetMetadata.Get(ctx, collections.Join(dataSetId, key))
		if err != nil {
			return nil, err
		}
		entries = append(entries, types.MetadataEntry{Key: key, Value: value})
	}
	return entries, nil
}

// GetAllPieceMetadata returns every metadata entry of a piece in write order.
func (k Keeper) GetAllPieceMetadata(ctx context.Context, dataSetId, pieceIndex uint64) ([]types.MetadataEntry, error) {
	keys, err := k.pieceMetadataKeys(ctx, dataSetId, pieceIndex)
	if err != nil {
		return nil, err
	}
	entries := make([]types.MetadataEntry, 0, len(keys))
	for _, key := range keys {
		value, err := k.PieceMetadata.Get(ctx, collections.Join3(dataSetId, pieceIndex, key))
		if err != nil {
			return nil, err
		}
		entries = append(entries, types.MetadataEntry{Key: key, Value: value})
	}
	return entries, nil
}

func (k Keeper) dataSetMetadataKeys(ctx context.Context, dataSetId uint64) ([]string, error) {
	keys, err := k.DataSetMetadataKeys.Get(ctx, dataSetId)
	if err != nil && !errors.Is(err, collections.ErrNotFound) {
		return nil, err
	}
	return keys, nil
}

func (k Keeper) pieceMetadataKeys(ctx context.Context, dataSetId, pieceIndex uint64) ([]string, error) {
	keys, err := k.PieceMetadataKeys.Get(ctx, collections.Join(dataSetId, pieceIndex))
	if err != nil && !errors.Is(err, collections.ErrNotFound) {
		return nil, err
	}
	return keys, nil
}

func lookup(value string, err error) (types.MetadataLookup, error) {
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return types.MetadataLookup{}, nil
		}
		return types.MetadataLookup{}, err
	}
	return types.MetadataLookup{Exists: true, Value: value}, nil
}
