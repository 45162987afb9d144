package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/starpath-app/starpath/internal/app/engagement"
	"github.com/starpath-app/starpath/internal/domain"
	"github.com/starpath-app/starpath/internal/logger"
)

// ProfileService exposes the per-user gamification state.
type ProfileService struct {
	*core
}

// AchievementStatus is a catalog entry with the user's unlock state.
type AchievementStatus struct {
	domain.Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Drift is a habit whose cached counters disagree with its ledger.
type Drift struct {
	HabitID string                 `json:"habit_id"`
	Name    string                 `json:"name"`
	Stored  engagement.LedgerStats `json:"stored"`
	Ledger  engagement.LedgerStats `json:"ledger"`
}

// Get returns the profile, creating it on first access. The global streak
// is refreshed so a lapsed streak reads as broken.
func (s *ProfileService) Get(ctx context.Context, userID string) (domain.Profile, error) {
	if err := requireUser(userID); err != nil {
		return domain.Profile{}, err
	}
	var out Outcome
	err := s.withTx(ctx, func(tx domain.Tx) error {
		var err error
		out, err = s.settle(ctx, tx, userID, 0)
		return err
	})
	if err != nil {
		return domain.Profile{}, err
	}
	s.committed(userID, out)
	return out.Profile, nil
}

// SetPremium records the subscription state reported by the payment
// processor.
func (s *ProfileService) SetPremium(ctx context.Context, userID string, premium bool) (domain.Profile, error) {
	if err := requireUser(userID); err != nil {
		return domain.Profile{}, err
	}
	var p domain.Profile
	err := s.withTx(ctx, func(tx domain.Tx) error {
		var err error
		if p, _, err = s.loadProfile(ctx, tx, userID); err != nil {
			return err
		}
		p.IsPremium = premium
		p.UpdatedAt = s.now()
		return tx.SaveProfile(ctx, p)
	})
	if err != nil {
		return domain.Profile{}, err
	}
	logger.Info("premium updated", "user", userID, "premium", premium)
	return p, nil
}

// IsPremium reports the subscription flag without creating a profile.
func (s *ProfileService) IsPremium(ctx context.Context, userID string) (bool, error) {
	var premium bool
	err := s.withTx(ctx, func(tx domain.Tx) error {
		p, _, err := s.loadProfile(ctx, tx, userID)
		premium = p.IsPremium
		return err
	})
	return premium, err
}

// AwardXP applies an XP delta from an event outside the habit and goal
// flows (e.g. a finished AI generation), with the usual achievement check.
func (s *ProfileService) AwardXP(ctx context.Context, userID string, source domain.XPSource, delta int64) (Outcome, error) {
	if err := requireUser(userID); err != nil {
		return Outcome{}, err
	}
	var out Outcome
	err := s.withTx(ctx, func(tx domain.Tx) error {
		var err error
		out, err = s.settle(ctx, tx, userID, delta)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	s.committed(userID, out)
	logger.Debug("xp awarded", "user", userID, "source", source, "xp", delta)
	return out, nil
}

// Achievements lists the catalog with the user's unlock state.
func (s *ProfileService) Achievements(ctx context.Context, userID string) ([]AchievementStatus, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var records []domain.UserAchievement
	err := s.withTx(ctx, func(tx domain.Tx) error {
		var err error
		records, err = tx.ListUnlocked(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	at := make(map[string]time.Time, len(records))
	for _, r := range records {
		at[r.AchievementID] = r.UnlockedAt
	}
	out := make([]AchievementStatus, 0, len(s.catalog))
	for _, a := range s.catalog {
		st := AchievementStatus{Achievement: a}
		if t, ok := at[a.ID]; ok {
			st.Unlocked = true
			st.UnlockedAt = &t
		}
		out = append(out, st)
	}
	return out, nil
}

// Verify recomputes every habit's counters from its ledger and reports the
// habits whose stored counters drifted.
func (s *ProfileService) Verify(ctx context.Context, userID string) ([]Drift, error) {
	return s.verify(ctx, userID, false)
}

// Repair is Verify that also rewrites drifted counters.
func (s *ProfileService) Repair(ctx context.Context, userID string) ([]Drift, error) {
	return s.verify(ctx, userID, true)
}

func (s *ProfileService) verify(ctx context.Context, userID string, repair bool) ([]Drift, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	now := s.now()
	var drifts []Drift
	err := s.withTx(ctx, func(tx domain.Tx) error {
		habits, err := tx.ListHabits(ctx, userID)
		if err != nil {
			return err
		}
		for _, h := range habits {
			events, err := tx.ListCompletions(ctx, h.ID)
			if err != nil {
				return err
			}
			fixed := engagement.MergeStats(h, engagement.RecomputeFromLedger(events, now))
			if fixed.Streak == h.Streak && fixed.BestStreak == h.BestStreak &&
				fixed.TotalCompletions == h.TotalCompletions {
				continue
			}
			drifts = append(drifts, Drift{
				HabitID: h.ID,
				Name:    h.Name,
				Stored:  engagement.LedgerStats{Streak: h.Streak, BestStreak: h.BestStreak, TotalCompletions: h.TotalCompletions},
				Ledger:  engagement.LedgerStats{Streak: fixed.Streak, BestStreak: fixed.BestStreak, TotalCompletions: fixed.TotalCompletions},
			})
			if repair {
				fixed.UpdatedAt = now
				if err := tx.UpdateHabit(ctx, fixed); err != nil {
					return fmt.Errorf("repair %s: %w", h.ID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(drifts) > 0 {
		logger.Warn("habit counters drifted", "user", userID, "habits", len(drifts), "repaired", repair)
	}
	return drifts, nil
}
