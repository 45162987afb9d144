package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/starpath-app/starpath/internal/app"
)

func init() {
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Create habits, goals and tasks from a plan file",
	Long: `Create habits, goals and tasks from a plan file:

  HABIT "Read 20 pages"
  XP 15
  GOAL "Learn Go"
  DEADLINE 2026-06-30
  TASK "Tour of Go"
    TASK Basics

TASK nesting follows indentation (two spaces per level).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		plan, err := app.ParsePlan(f)
		if err != nil {
			return err
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		sum, err := app.Import(cmd.Context(), s.Tracker, currentUser(), plan)
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d habit(s), %d goal(s), %d task(s)\n", sum.Habits, sum.Goals, sum.Tasks)
		return err
	},
}
