package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/starpath-app/starpath/internal/app/engagement"
)

func init() {
	verifyCmd.Flags().BoolVar(&verifyRepair, "repair", false, "Rewrite drifted counters from the ledger")

	profileCmd.AddCommand(profileShowCmd, profilePremiumCmd)
	rootCmd.AddCommand(profileCmd, achievementsCmd, verifyCmd)
}

var verifyRepair bool

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or change the user profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show level, XP and streaks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := s.Profiles.Get(cmd.Context(), currentUser())
		if err != nil {
			return err
		}
		tier := "free"
		if p.IsPremium {
			tier = "premium"
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "User:     %s (%s)\n", p.UserID, tier)
		fmt.Fprintf(out, "Level:    %d (%.0f%%, %d XP to next)\n", p.Level, engagement.LevelProgressPct(p), p.XPToNextLevel())
		fmt.Fprintf(out, "XP:       %d (lifetime %d)\n", p.XP, p.TotalXP)
		fmt.Fprintf(out, "Streak:   %d days (longest %d)\n", p.Streak, p.LongestStreak)
		return nil
	},
}

var profilePremiumCmd = &cobra.Command{
	Use:       "premium on|off",
	Short:     "Set the premium tier flag",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := s.Profiles.SetPremium(cmd.Context(), currentUser(), args[0] == "on")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Premium for %s: %v\n", p.UserID, p.IsPremium)
		return nil
	},
}

var achievementsCmd = &cobra.Command{
	Use:   "achievements",
	Short: "List achievements and which are unlocked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		list, err := s.Profiles.Achievements(cmd.Context(), currentUser())
		if err != nil {
			return err
		}
		w := newTable(cmd.OutOrStdout())
		fmt.Fprintln(w, "\tNAME\tREQUIREMENT\tXP\tUNLOCKED")
		for _, a := range list {
			unlocked := "-"
			if a.Unlocked {
				unlocked = a.UnlockedAt.Format("2006-01-02")
			}
			fmt.Fprintf(w, "%s\t%s\t%s >= %d\t%d\t%s\n",
				a.Icon, a.Name, a.RequirementType, a.RequirementValue, a.XPReward, unlocked)
		}
		return w.Flush()
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check habit counters against the completion ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		check := s.Profiles.Verify
		if verifyRepair {
			check = s.Profiles.Repair
		}
		drifts, err := check(cmd.Context(), currentUser())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(drifts) == 0 {
			fmt.Fprintln(out, "All habit counters match the ledger.")
			return nil
		}
		w := newTable(out)
		fmt.Fprintln(w, "HABIT\tSTORED (streak/best/total)\tLEDGER")
		for _, d := range drifts {
			fmt.Fprintf(w, "%s\t%d/%d/%d\t%d/%d/%d\n", d.Name,
				d.Stored.Streak, d.Stored.BestStreak, d.Stored.TotalCompletions,
				d.Ledger.Streak, d.Ledger.BestStreak, d.Ledger.TotalCompletions)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if verifyRepair {
			fmt.Fprintf(out, "Repaired %d habit(s).\n", len(drifts))
		} else {
			fmt.Fprintln(out, "Run 'starpath verify --repair' to fix.")
		}
		return nil
	},
}
