package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/log"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/storacha/filecoin-services-sub000/app"
	"github.com/storacha/filecoin-services-sub000/server"
)

func ServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the controller, its block clock and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(v)
			if err != nil {
				return err
			}
			logger, err := NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Serve(ctx, logger, cfg)
		},
	}
}

// Serve runs the app and the HTTP API until ctx is done or either fails.
func Serve(ctx context.Context, logger log.Logger, cfg Config) error {
	db, err := OpenDB(cfg)
	if err != nil {
		return err
	}
	a, err := app.New(logger, db, cfg.AppConfig())
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close database", "err", err)
		}
	}()

	srv := server.New(a, logger, cfg.ChainID)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Run(ctx, cfg.BlockTime)
	})
	g.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.Listen)
	})
	logger.Info("started", "chain_id", cfg.ChainID, "listen", cfg.Listen, "block_time", cfg.BlockTime, "in_memory", cfg.InMemory)
	return g.Wait()
}

// OpenDB opens goleveldb under the home directory, or a memdb.
func OpenDB(cfg Config) (dbm.DB, error) {
	if cfg.InMemory {
		return dbm.NewMemDB(), nil
	}
	dir := cfg.DataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := dbm.NewDB(app.Name, dbm.GoLevelDBBackend, dir)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dir, err)
	}
	return db, nil
}

func NewLogger(w io.Writer, level string) (log.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewLogger(w, log.LevelOption(lvl)), nil
}
