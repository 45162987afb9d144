// Package cli implements the StarPath command-line interface using Cobra.
// Each subcommand maps to one tracker operation run against the local
// store, plus serve for the HTTP API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/starpath-app/starpath/internal/daemon"
	"github.com/starpath-app/starpath/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "starpath",
	Short: "StarPath: habits, goals and XP",
	Long: `StarPath turns daily habits and long-term goals into a game.
Complete habits to build streaks, finish goal tasks to earn XP, level up
and unlock achievements.

Commands act on the local store as --user; "starpath serve" exposes the
same operations over HTTP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initLogging,
}

var userFlag string

func init() {
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "",
		`user to act as (default $STARPATH_USER, then "local")`)
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, _ []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	return logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		Dir:        daemon.Home(),
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxFiles,
		Debug:      cfg.Logging.Debug,
		Console:    cmd == serveCmd,
	})
}

// currentUser returns the user commands act as.
func currentUser() string {
	if userFlag != "" {
		return userFlag
	}
	if env := os.Getenv("STARPATH_USER"); env != "" {
		return env
	}
	return "local"
}
