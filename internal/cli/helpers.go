package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/starpath-app/starpath/internal/app/tracker"
	"github.com/starpath-app/starpath/internal/daemon"
	"github.com/starpath-app/starpath/internal/domain"
)

// session is a tracker over the configured store for one command.
type session struct {
	store domain.Store
	*tracker.Tracker
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ResolveSecrets()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := daemon.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &session{
		store:   store,
		Tracker: tracker.New(store, tracker.Options{Rewards: cfg.Rewards}),
	}, nil
}

func (s *session) Close() { _ = s.store.Close() }

// dayArg returns args[i] as a calendar day, or today when absent.
func dayArg(args []string, i int) (time.Time, error) {
	if len(args) <= i || args[i] == "today" {
		return domain.Day(time.Now()), nil
	}
	return domain.ParseDay(args[i])
}

// optionalDay parses a flag value that may be empty.
func optionalDay(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	d, err := domain.ParseDay(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// printOutcome reports the profile side of a mutation.
func printOutcome(w io.Writer, out tracker.Outcome) {
	if out.XPDelta != 0 {
		fmt.Fprintf(w, "  %+d XP (level %d, %d/%d)\n",
			out.XPDelta, out.Profile.Level, out.Profile.XP, domain.XPPerLevel)
	}
	if out.LeveledUp {
		fmt.Fprintf(w, "  Level up! %d -> %d\n", out.OldLevel, out.NewLevel)
	}
	if out.LeveledDown {
		fmt.Fprintf(w, "  Level dropped to %d\n", out.NewLevel)
	}
	for _, a := range out.Achievements {
		fmt.Fprintf(w, "  %s Achievement unlocked: %s (+%d XP)\n", a.Icon, a.Name, a.XPReward)
	}
}

func formatDay(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return domain.FormatDay(*t)
}
