package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/starpath-app/starpath/internal/app/tracker"
	"github.com/starpath-app/starpath/internal/domain"
)

func init() {
	habitAddCmd.Flags().BoolVar(&habitWeekly, "weekly", false, "Weekly instead of daily")
	habitAddCmd.Flags().Int64Var(&habitXP, "xp", 0, fmt.Sprintf("XP per completion (default %d)", tracker.DefaultHabitXP))

	habitCmd.AddCommand(habitAddCmd, habitListCmd, habitDoneCmd, habitUndoCmd,
		habitToggleCmd, habitHistoryCmd, habitRmCmd)
	rootCmd.AddCommand(habitCmd)
}

var (
	habitWeekly bool
	habitXP     int64
)

var habitCmd = &cobra.Command{
	Use:   "habit",
	Short: "Manage habits and their completions",
}

var habitAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a habit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		in := tracker.HabitInput{Name: args[0], XPReward: habitXP}
		if habitWeekly {
			in.Frequency = domain.FrequencyWeekly
		}
		h, err := s.Habits.Create(cmd.Context(), currentUser(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created habit %s (%s, %d XP): %s\n", h.Name, h.Frequency, h.XPReward, h.ID)
		return nil
	},
}

var habitListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List habits with their streaks",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		habits, err := s.Habits.List(cmd.Context(), currentUser())
		if err != nil {
			return err
		}
		if len(habits) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No habits yet. Run 'starpath habit add <name>' to get started.")
			return nil
		}

		w := newTable(cmd.OutOrStdout())
		fmt.Fprintln(w, "ID\tNAME\tFREQUENCY\tXP\tSTREAK\tBEST\tTOTAL")
		for _, h := range habits {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
				h.ID, h.Name, h.Frequency, h.XPReward, h.Streak, h.BestStreak, h.TotalCompletions)
		}
		return w.Flush()
	},
}

type completionCall func(ctx context.Context, userID, habitID string, day time.Time) (tracker.ToggleResult, error)

// completionCmd builds done, undo and toggle, which differ only in the
// tracker call.
func completionCmd(use, short string, call func(*session) completionCall) *cobra.Command {
	return &cobra.Command{
		Use:   use + " HABIT [DAY]",
		Short: short,
		Long:  short + ". DAY is YYYY-MM-DD and defaults to today.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dayArg(args, 1)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := call(s)(cmd.Context(), currentUser(), args[0], day)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case !res.Changed && res.Completed:
				fmt.Fprintf(out, "%s already done on %s\n", res.Habit.Name, res.Day)
			case !res.Changed:
				fmt.Fprintf(out, "%s was not done on %s\n", res.Habit.Name, res.Day)
			case res.Completed:
				fmt.Fprintf(out, "✓ %s on %s (streak %d)\n", res.Habit.Name, res.Day, res.Habit.Streak)
			default:
				fmt.Fprintf(out, "✗ %s undone on %s (streak %d)\n", res.Habit.Name, res.Day, res.Habit.Streak)
			}
			printOutcome(out, res.Outcome)
			return nil
		},
	}
}

var (
	habitDoneCmd = completionCmd("done", "Mark a habit done for a day",
		func(s *session) completionCall { return s.Habits.Complete })
	habitUndoCmd = completionCmd("undo", "Remove a habit's completion for a day",
		func(s *session) completionCall { return s.Habits.Uncomplete })
	habitToggleCmd = completionCmd("toggle", "Flip a habit's completion for a day",
		func(s *session) completionCall { return s.Habits.Toggle })
)

var habitHistoryCmd = &cobra.Command{
	Use:   "history HABIT",
	Short: "Show a habit's completion ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.Habits.Completions(cmd.Context(), currentUser(), args[0])
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No completions recorded.")
			return nil
		}
		w := newTable(cmd.OutOrStdout())
		fmt.Fprintln(w, "DAY\tXP")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%d\n", e.DayString(), e.XPAwarded)
		}
		return w.Flush()
	},
}

var habitRmCmd = &cobra.Command{
	Use:   "rm HABIT",
	Short: "Delete a habit and its ledger (earned XP is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Habits.Delete(cmd.Context(), currentUser(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed habit %s\n", args[0])
		return nil
	},
}
