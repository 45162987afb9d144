package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/starpath-app/starpath/internal/infra/keyring"
)

func init() {
	secretCmd.AddCommand(secretSetCmd, secretRmCmd, secretListCmd)
	rootCmd.AddCommand(secretCmd)
}

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage secrets in the OS keyring",
	Long: fmt.Sprintf(`Store secrets in the OS keyring instead of config.toml.
Known secrets: %s.`, strings.Join(keyring.Names(), ", ")),
}

var secretSetCmd = &cobra.Command{
	Use:   "set NAME [VALUE]",
	Short: "Store a secret (reads VALUE from stdin when omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !keyring.Known(name) {
			return fmt.Errorf("unknown secret %q (known: %s)", name, strings.Join(keyring.Names(), ", "))
		}
		var value string
		if len(args) == 2 {
			value = args[1]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read secret: %w", err)
			}
			value = strings.TrimSpace(line)
		}
		if err := keyring.Set(name, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %s\n", name)
		return nil
	},
}

var secretRmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Remove a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := keyring.Delete(args[0]); err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return fmt.Errorf("%s is not set", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

var secretListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show which secrets are stored",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := newTable(cmd.OutOrStdout())
		fmt.Fprintln(w, "NAME\tSTATUS")
		for _, name := range keyring.Names() {
			status := "set"
			if _, err := keyring.Get(name); err != nil {
				status = "not set"
				if errors.Is(err, keyring.ErrUnavailable) {
					status = "keyring unavailable"
				}
			}
			fmt.Fprintf(w, "%s\t%s\n", name, status)
		}
		return w.Flush()
	},
}
