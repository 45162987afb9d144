package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/starpath-app/starpath/internal/app/tracker"
	"github.com/starpath-app/starpath/internal/domain"
)

func init() {
	goalAddCmd.Flags().StringVar(&goalDesc, "desc", "", "Description")
	goalAddCmd.Flags().StringVar(&goalDeadline, "deadline", "", "Deadline (YYYY-MM-DD)")

	goalCmd.AddCommand(goalAddCmd, goalListCmd, goalShowCmd, goalArchiveCmd, goalRmCmd)
	rootCmd.AddCommand(goalCmd)
}

var (
	goalDesc     string
	goalDeadline string
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage goals",
}

var goalAddCmd = &cobra.Command{
	Use:   "add TITLE",
	Short: "Create a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deadline, err := optionalDay(goalDeadline)
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		g, err := s.Goals.CreateGoal(cmd.Context(), currentUser(), tracker.GoalInput{
			Title:       args[0],
			Description: goalDesc,
			Deadline:    deadline,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s goal %s: %s\n", g.GoalType, g.Title, g.ID)
		return nil
	},
}

var goalListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List goals with their progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		goals, err := s.Goals.ListGoals(cmd.Context(), currentUser())
		if err != nil {
			return err
		}
		if len(goals) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No goals yet. Run 'starpath goal add <title>' to set one.")
			return nil
		}
		w := newTable(cmd.OutOrStdout())
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPROGRESS\tTYPE\tDEADLINE")
		for _, g := range goals {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\t%s\n",
				g.ID, g.Title, g.Status, g.Progress, g.GoalType, formatDay(g.Deadline))
		}
		return w.Flush()
	},
}

var goalShowCmd = &cobra.Command{
	Use:   "show GOAL",
	Short: "Show a goal and its task tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		g, err := s.Goals.GetGoal(cmd.Context(), currentUser(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  [%s, %d%%]\n", g.Title, g.Status, g.Progress)
		if g.Description != "" {
			fmt.Fprintf(out, "%s\n", g.Description)
		}
		if g.Deadline != nil {
			fmt.Fprintf(out, "Deadline: %s (%s)\n", formatDay(g.Deadline), g.GoalType)
		}
		printTasks(out, g.Tasks, 0)
		return nil
	},
}

func printTasks(w io.Writer, nodes []*domain.TaskNode, depth int) {
	for _, n := range nodes {
		mark := "[ ]"
		if n.Completed {
			mark = "[x]"
		}
		due := ""
		if n.DueDate != nil {
			due = "  due " + formatDay(n.DueDate)
		}
		fmt.Fprintf(w, "%s%s %s  %s%s\n", strings.Repeat("  ", depth), mark, n.Title, n.ID, due)
		printTasks(w, n.Subtasks, depth+1)
	}
}

var goalArchiveCmd = &cobra.Command{
	Use:   "archive GOAL",
	Short: "Archive a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.Goals.ArchiveGoal(cmd.Context(), currentUser(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Archived %s\n", res.Goal.Title)
		return nil
	},
}

var goalRmCmd = &cobra.Command{
	Use:   "rm GOAL",
	Short: "Delete a goal and its tasks (earned XP is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Goals.DeleteGoal(cmd.Context(), currentUser(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed goal %s\n", args[0])
		return nil
	},
}
