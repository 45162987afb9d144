package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/starpath-app/starpath/internal/daemon"
)

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default auth.token_ttl)")
	rootCmd.AddCommand(tokenCmd)
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token USER",
	Short: "Mint an API bearer token for a user",
	Long: `Mint an HS256 bearer token whose subject is USER, signed with the
server's JWT secret. Use it as "Authorization: Bearer <token>".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := daemon.LoadConfig()
		if err != nil {
			return err
		}
		cfg.ResolveSecrets()
		tm, err := daemon.NewTokenManager(cfg)
		if err != nil {
			return err
		}
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.TokenTTL()
		}
		tok, err := tm.Mint(args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}
