package keeper

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/collections"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

// Migration upgrades the store by one version.
type Migration func(ctx sdk.Context, k Keeper, params types.Params) error

// Migrations are applied in order; migration i moves the store to version i+1.
var Migrations = []Migration{
	migrateInitParams,
	migrateServiceVersion,
}

// LatestVersion is the version RunMigrations brings the store to.
func LatestVersion() uint64 {
	return uint64(len(Migrations))
}

// RunMigrations applies every migration above the stored version. params
// are only read by migration 1; later runs ignore them. Running it again
// at the latest version is a no-op.
func (k Keeper) RunMigrations(goCtx context.Context, params types.Params) error {
	return k.atomically(goCtx, func(ctx sdk.Context) error {
		version, err := k.Version.Get(ctx)
		if err != nil && !errors.Is(err, collections.ErrNotFound) {
			return err
		}
		for v := version; v < LatestVersion(); v++ {
			if err := Migrations[v](ctx, k, params); err != nil {
				return fmt.Errorf("migration %d: %w", v+1, err)
			}
			if err := k.Version.Set(ctx, v+1); err != nil {
				return err
			}
			k.Logger(ctx).Info("applied migration", "version", v+1)
		}
		return nil
	})
}

func migrateInitParams(ctx sdk.Context, k Keeper, params types.Params) error {
	return k.SetParams(ctx, params)
}

func migrateServiceVersion(ctx sdk.Context, k Keeper, _ types.Params) error {
	if err := k.ServiceVersion.Set(ctx, types.ServiceVersion); err != nil {
		return err
	}
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.TypeEvtServiceUpgraded,
			sdk.NewAttribute(types.AttributeKeyVersion, types.ServiceVersion),
		),
	)
	return nil
}
