package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/storacha/filecoin-services-sub000/app"
	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

// EnvPrefix prefixes every environment override, e.g. WARMSTORAGE_LISTEN.
const EnvPrefix = "WARMSTORAGE"

const (
	flagHome      = "home"
	flagConfig    = "config"
	flagListen    = "listen"
	flagLogLevel  = "log-level"
	flagBlockTime = "block-time"
	flagChainID   = "chain-id"
	flagInMemory  = "in-memory"

	flagEvmChainID         = "evm-chain-id"
	flagService            = "service"
	flagVerifier           = "verifier"
	flagPayments           = "payments"
	flagPaymentToken       = "payment-token"
	flagTokenDecimals      = "token-decimals"
	flagCdnBeneficiary     = "cdn-beneficiary"
	flagMaxProvingPeriod   = "max-proving-period"
	flagChallengeWindow    = "challenge-window"
	flagChallengesPerProof = "challenges-per-proof"
	flagNoticePeriods      = "termination-notice-periods"
	flagStoragePrice       = "storage-price"
	flagCdnPrice           = "cdn-price"
	flagMinimumPrice       = "minimum-price"
	flagEpochsPerMonth     = "epochs-per-month"
	flagCommissionBps      = "commission-bps"
	flagRequireOperator    = "require-approved-operator"
	flagApprovedOperators  = "approved-operators"
)

// Config is the resolved daemon configuration. Flags, WARMSTORAGE_* env
// vars and the config file are merged by viper, in that order of priority.
type Config struct {
	Home              string           `json:"home"`
	Listen            string           `json:"listen"`
	LogLevel          string           `json:"log_level"`
	BlockTime         time.Duration    `json:"block_time"`
	InMemory          bool             `json:"in_memory"`
	ChainID           string           `json:"chain_id"`
	Params            types.Params     `json:"params"`
	ApprovedOperators []common.Address `json:"approved_operators"`
}

func (c Config) AppConfig() app.Config {
	return app.Config{
		ChainID:           c.ChainID,
		Params:            c.Params,
		ApprovedOperators: c.ApprovedOperators,
	}
}

// DataDir is where goleveldb keeps state.
func (c Config) DataDir() string {
	return filepath.Join(c.Home, "data")
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + app.Name
	}
	return filepath.Join(home, "."+app.Name)
}

func addConfigFlags(fs *pflag.FlagSet) {
	d := types.DefaultParams()

	fs.String(flagHome, defaultHome(), "directory holding config.toml and the database")
	fs.String(flagConfig, "", "config file (toml, yaml or json); defaults to <home>/config.toml when present")
	fs.String(flagListen, "127.0.0.1:8645", "HTTP listen address")
	fs.String(flagLogLevel, "info", "log level (trace, debug, info, warn, error)")
	fs.Duration(flagBlockTime, 30*time.Second, "interval between simulated blocks, 0 disables the ticker")
	fs.String(flagChainID, app.Name+"-local", "chain id stamped on block headers")
	fs.Bool(flagInMemory, false, "keep state in memory instead of goleveldb")

	fs.Uint64(flagEvmChainID, d.EvmChainId, "chain id of the EIP-712 signing domain")
	fs.String(flagService, "", "controller address, the EIP-712 verifying contract (required by serve)")
	fs.String(flagVerifier, "", "address allowed to deliver verifier callbacks (required by serve)")
	fs.String(flagPayments, "", "address allowed to deliver ledger callbacks (required by serve)")
	fs.String(flagPaymentToken, "", "token the rails are denominated in")
	fs.Uint32(flagTokenDecimals, d.TokenDecimals, "decimals of the payment token")
	fs.String(flagCdnBeneficiary, "", "payee of CDN rails; data sets asking for CDN are refused while unset")
	fs.Uint64(flagMaxProvingPeriod, d.MaxProvingPeriod, "proving period length in epochs")
	fs.Uint64(flagChallengeWindow, d.ChallengeWindowSize, "challenge window length in epochs")
	fs.Uint64(flagChallengesPerProof, d.ChallengesPerProof, "challenges every proof must carry")
	fs.Uint64(flagNoticePeriods, d.TerminationNoticePeriods, "proving periods paid after termination")
	fs.String(flagStoragePrice, d.StoragePricePerTibPerMonth.String(), "storage price per TiB per month, whole tokens")
	fs.String(flagCdnPrice, d.CdnPricePerTibPerMonth.String(), "CDN price per TiB per month, whole tokens")
	fs.String(flagMinimumPrice, d.MinimumPricePerMonth.String(), "minimum monthly charge, whole tokens")
	fs.Uint64(flagEpochsPerMonth, d.EpochsPerMonth, "epochs in a billing month")
	fs.Uint64(flagCommissionBps, d.CommissionBps, "operator commission in basis points")
	fs.Bool(flagRequireOperator, d.RequireApprovedOperator, "only approved operators may be payees")
	fs.StringSlice(flagApprovedOperators, nil, "operators approved at first start (comma separated)")
}

// initViper binds cmd's flags and the environment to v and reads the config
// file if there is one.
func initViper(v *viper.Viper, cmd *cobra.Command) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if file := v.GetString(flagConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
		return nil
	}
	v.SetConfigName("config")
	v.AddConfigPath(v.GetString(flagHome))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	return nil
}

// LoadConfig resolves the daemon configuration from v. Params not set
// anywhere keep their defaults.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Home:     v.GetString(flagHome),
		Listen:   v.GetString(flagListen),
		LogLevel: v.GetString(flagLogLevel),
		ChainID:  v.GetString(flagChainID),
		Params:   types.DefaultParams(),
	}
	var err error
	if cfg.BlockTime, err = cast.ToDurationE(v.Get(flagBlockTime)); err != nil {
		return Config{}, fmt.Errorf("%s: %w", flagBlockTime, err)
	}
	if cfg.InMemory, err = cast.ToBoolE(v.Get(flagInMemory)); err != nil {
		return Config{}, fmt.Errorf("%s: %w", flagInMemory, err)
	}
	if cfg.ChainID == "" {
		return Config{}, fmt.Errorf("%s must not be empty", flagChainID)
	}

	p := &cfg.Params
	for _, s := range []struct {
		key string
		dst *uint64
	}{
		{flagEvmChainID, &p.EvmChainId},
		{flagMaxProvingPeriod, &p.MaxProvingPeriod},
		{flagChallengeWindow, &p.ChallengeWindowSize},
		{flagChallengesPerProof, &p.ChallengesPerProof},
		{flagNoticePeriods, &p.TerminationNoticePeriods},
		{flagEpochsPerMonth, &p.EpochsPerMonth},
		{flagCommissionBps, &p.CommissionBps},
	} {
		if err := uint64Setting(v, s.key, s.dst); err != nil {
			return Config{}, err
		}
	}
	if v.IsSet(flagTokenDecimals) {
		if p.TokenDecimals, err = cast.ToUint32E(v.Get(flagTokenDecimals)); err != nil {
			return Config{}, fmt.Errorf("%s: %w", flagTokenDecimals, err)
		}
	}
	for _, s := range []struct {
		key string
		dst *common.Address
	}{
		{flagService, &p.ServiceAddress},
		{flagVerifier, &p.VerifierAddress},
		{flagPayments, &p.PaymentsAddress},
		{flagPaymentToken, &p.PaymentToken},
		{flagCdnBeneficiary, &p.CdnBeneficiary},
	} {
		if err := addressSetting(v, s.key, s.dst); err != nil {
			return Config{}, err
		}
	}
	for _, s := range []struct {
		key string
		dst *math.LegacyDec
	}{
		{flagStoragePrice, &p.StoragePricePerTibPerMonth},
		{flagCdnPrice, &p.CdnPricePerTibPerMonth},
		{flagMinimumPrice, &p.MinimumPricePerMonth},
	} {
		if err := decSetting(v, s.key, s.dst); err != nil {
			return Config{}, err
		}
	}
	if v.IsSet(flagRequireOperator) {
		if p.RequireApprovedOperator, err = cast.ToBoolE(v.Get(flagRequireOperator)); err != nil {
			return Config{}, fmt.Errorf("%s: %w", flagRequireOperator, err)
		}
	}
	if err := p.Validate(); err != nil {
		return Config{}, err
	}

	if cfg.ApprovedOperators, err = addressList(v.Get(flagApprovedOperators)); err != nil {
		return Config{}, fmt.Errorf("%s: %w", flagApprovedOperators, err)
	}
	return cfg, nil
}

func uint64Setting(v *viper.Viper, key string, dst *uint64) error {
	if !v.IsSet(key) {
		return nil
	}
	raw := v.Get(key)
	if s, ok := raw.(string); ok && strings.HasPrefix(strings.TrimSpace(s), "-") {
		return fmt.Errorf("%s: must not be negative", key)
	}
	n, err := cast.ToUint64E(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func addressSetting(v *viper.Viper, key string, dst *common.Address) error {
	if !v.IsSet(key) {
		return nil
	}
	s, err := cast.ToStringE(v.Get(key))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if s == "" {
		return nil
	}
	if !common.IsHexAddress(s) {
		return fmt.Errorf("%s: %q is not a hex address", key, s)
	}
	*dst = common.HexToAddress(s)
	return nil
}

func decSetting(v *viper.Viper, key string, dst *math.LegacyDec) error {
	if !v.IsSet(key) {
		return nil
	}
	s, err := cast.ToStringE(v.Get(key))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	d, err := math.LegacyNewDecFromStr(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// addressList accepts a slice from flags or config files, or a comma
// separated string from the environment.
func addressList(raw any) ([]common.Address, error) {
	if raw == nil {
		return nil, nil
	}
	var items []string
	if s, ok := raw.(string); ok {
		items = strings.Split(s, ",")
	} else {
		var err error
		if items, err = cast.ToStringSliceE(raw); err != nil {
			return nil, err
		}
	}
	var out []common.Address
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if !common.IsHexAddress(item) {
			return nil, fmt.Errorf("%q is not a hex address", item)
		}
		out = append(out, common.HexToAddress(item))
	}
	return out, nil
}
