package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/starpath-app/starpath/internal/daemon"
)

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create config.toml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config.toml if none exists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(daemon.Home(), "config.toml")
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := daemon.SaveConfig(daemon.DefaultConfig()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (secrets redacted)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := daemon.LoadConfig()
		if err != nil {
			return err
		}
		for _, s := range []*string{&cfg.Auth.JWTSecret, &cfg.Store.DSN, &cfg.Redis.Password, &cfg.AI.APIKey} {
			if *s != "" {
				*s = "********"
			}
		}
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
	},
}
