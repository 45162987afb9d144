package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/starpath-app/starpath/internal/app/tracker"
)

func init() {
	taskAddCmd.Flags().StringVar(&taskParent, "parent", "", "Parent task ID")
	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "Due date (YYYY-MM-DD)")

	taskCmd.AddCommand(taskAddCmd, taskToggleCmd, taskMvCmd, taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}

var (
	taskParent string
	taskDue    string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the tasks of a goal",
}

var taskAddCmd = &cobra.Command{
	Use:   "add GOAL TITLE",
	Short: "Add a task to a goal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		due, err := optionalDay(taskDue)
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.Goals.AddTask(cmd.Context(), currentUser(), args[0], tracker.TaskInput{
			Title:        args[1],
			DueDate:      due,
			ParentTaskID: taskParent,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added task %s: %s\n", res.Task.Title, res.Task.ID)
		printGoalResult(cmd.OutOrStdout(), res)
		return nil
	},
}

var taskToggleCmd = &cobra.Command{
	Use:   "toggle GOAL TASK",
	Short: "Flip a task between open and done",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.Goals.ToggleTask(cmd.Context(), currentUser(), args[0], args[1])
		if err != nil {
			return err
		}
		state := "reopened"
		if res.Task.Completed {
			state = "done"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", res.Task.Title, state)
		printGoalResult(cmd.OutOrStdout(), res)
		return nil
	},
}

var taskMvCmd = &cobra.Command{
	Use:   "mv GOAL TASK [PARENT]",
	Short: "Move a task under PARENT, or to the top level",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent := ""
		if len(args) == 3 {
			parent = args[2]
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.Goals.MoveTask(cmd.Context(), currentUser(), args[0], args[1], parent)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved %s\n", res.Task.Title)
		return nil
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm GOAL TASK",
	Short: "Delete a task and its subtasks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.Goals.DeleteTask(cmd.Context(), currentUser(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed task %s\n", args[1])
		printGoalResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func printGoalResult(w io.Writer, res tracker.GoalResult) {
	fmt.Fprintf(w, "  %s: %d%% [%s]\n", res.Goal.Title, res.Goal.Progress, res.Goal.Status)
	printOutcome(w, res.Outcome)
}
