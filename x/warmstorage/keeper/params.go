package keeper

import (
	"context"
	"errors"

	"cosmossdk.io/collections"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

// GetParams returns the current params. They exist once migration 1 ran.
func (k Keeper) GetParams(ctx context.Context) (types.Params, error) {
	params, err := k.Params.Get(ctx)
	if err != nil {
		if errors.Is(err, collections.ErrNotFound) {
			return types.Params{}, types.ErrInvalidParams.Wrap("params not initialised, run migrations first")
		}
		return types.Params{}, err
	}
	return params, nil
}

// SetParams set the params
func (k Keeper) SetParams(ctx context.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	return k.Params.Set(ctx, params)
}
