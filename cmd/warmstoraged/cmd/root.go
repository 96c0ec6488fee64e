package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storacha/filecoin-services-sub000/app"
)

// NewRootCmd creates the root command for warmstoraged. It is called once in
// the main function.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           app.Name + "d",
		Short:         "storage service agreement controller",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// set the default command outputs
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())

			return initViper(v, cmd)
		},
	}
	addConfigFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		ServeCmd(v),
		ConfigCmd(v),
		SignCmd(v),
	)
	return rootCmd
}

func ConfigCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write the daemon configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the resolved configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := LoadConfig(v)
				if err != nil {
					return err
				}
				return printJSON(cmd, cfg)
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write the current settings to <home>/config.toml",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := LoadConfig(v); err != nil {
					return err
				}
				home := v.GetString(flagHome)
				if err := os.MkdirAll(home, 0o755); err != nil {
					return err
				}
				path := filepath.Join(home, "config.toml")
				if err := v.SafeWriteConfigAs(path); err != nil {
					var exists viper.ConfigFileAlreadyExistsError
					if errors.As(err, &exists) {
						return fmt.Errorf("%s already exists", path)
					}
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
	)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
