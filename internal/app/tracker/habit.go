package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starpath-app/starpath/internal/app/engagement"
	"github.com/starpath-app/starpath/internal/domain"
	"github.com/starpath-app/starpath/internal/infra/metrics"
	"github.com/starpath-app/starpath/internal/logger"
)

// HabitService manages habits and their completion ledger.
type HabitService struct {
	*core
	cache *Cache
}

// HabitInput holds the fields of a new habit.
type HabitInput struct {
	Name      string           `json:"name"`
	Frequency domain.Frequency `json:"frequency"`
	XPReward  int64            `json:"xp_reward"`
}

// HabitPatch holds optional habit edits. A reward change applies to future
// completions only; past events keep their snapshot.
type HabitPatch struct {
	Name      *string           `json:"name,omitempty"`
	Frequency *domain.Frequency `json:"frequency,omitempty"`
	XPReward  *int64            `json:"xp_reward,omitempty"`
}

// ToggleResult is what a completion change did.
type ToggleResult struct {
	Habit     domain.Habit `json:"habit"`
	Day       string       `json:"day"`
	Completed bool         `json:"completed"` // state after the call
	Changed   bool         `json:"changed"`   // false for an idempotent no-op
	Outcome
}

type ledgerAction int

const (
	actionComplete ledgerAction = iota
	actionUncomplete
	actionToggle
)

func (a ledgerAction) next(current bool) bool {
	switch a {
	case actionComplete:
		return true
	case actionUncomplete:
		return false
	}
	return !current
}

// Create validates and stores a new habit.
func (s *HabitService) Create(ctx context.Context, userID string, in HabitInput) (domain.Habit, error) {
	if err := requireUser(userID); err != nil {
		return domain.Habit{}, err
	}
	now := s.now()
	h := domain.Habit{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Frequency: in.Frequency,
		XPReward:  in.XPReward,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if h.Frequency == "" {
		h.Frequency = domain.FrequencyDaily
	}
	if h.XPReward == 0 {
		h.XPReward = DefaultHabitXP
	}
	if err := h.Validate(); err != nil {
		return domain.Habit{}, err
	}

	if err := s.withTx(ctx, func(tx domain.Tx) error {
		return tx.InsertHabit(ctx, h)
	}); err != nil {
		return domain.Habit{}, fmt.Errorf("create habit: %w", err)
	}
	logger.Debug("habit created", "user", userID, "habit", h.ID)
	return h, nil
}

// Get returns a habit with its counters evaluated now, so a streak that
// lapsed since the last completion reads as broken.
func (s *HabitService) Get(ctx context.Context, userID, id string) (domain.Habit, error) {
	if err := requireUser(userID); err != nil {
		return domain.Habit{}, err
	}
	now := s.now()
	if s.cache != nil {
		if h, ok := s.cache.Get(userID, id, now); ok {
			return h, nil
		}
	}

	var gen uint64
	if s.cache != nil {
		gen = s.cache.Generation()
	}
	var h domain.Habit
	var days []time.Time
	err := s.withTx(ctx, func(tx domain.Tx) error {
		var err error
		if h, err = tx.GetHabit(ctx, userID, id); err != nil {
			return err
		}
		events, err := tx.ListCompletions(ctx, id)
		if err != nil {
			return err
		}
		for _, ev := range events {
			days = append(days, ev.Day)
		}
		return nil
	})
	if err != nil {
		return domain.Habit{}, err
	}
	if s.cache != nil {
		s.cache.Put(gen, h, days)
	}
	return liveHabit(h, daySet(days), now), nil
}

// List returns the user's habits with live counters.
func (s *HabitService) List(ctx context.Context, userID string) ([]domain.Habit, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	now := s.now()
	var habits []domain.Habit
	err := s.withTx(ctx, func(tx domain.Tx) error {
		stored, err := tx.ListHabits(ctx, userID)
		if err != nil {
			return err
		}
		for _, h := range stored {
			events, err := tx.ListCompletions(ctx, h.ID)
			if err != nil {
				return err
			}
			habits = append(habits, engagement.MergeStats(h, engagement.RecomputeFromLedger(events, now)))
		}
		return nil
	})
	return habits, err
}

// Update applies a patch. Validation happens before the store is touched.
func (s *HabitService) Update(ctx context.Context, userID, id string, patch HabitPatch) (domain.Habit, error) {
	if err := requireUser(userID); err != nil {
		return domain.Habit{}, err
	}
	var h domain.Habit
	err := s.withTx(ctx, func(tx domain.Tx) error {
		var err error
		if h, err = tx.GetHabit(ctx, userID, id); err != nil {
			return err
		}
		if patch.Name != nil {
			h.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Frequency != nil {
			h.Frequency = *patch.Frequency
		}
		if patch.XPReward != nil {
			h.XPReward = *patch.XPReward
		}
		if err := h.Validate(); err != nil {
			return err
		}
		h.UpdatedAt = s.now()
		return tx.UpdateHabit(ctx, h)
	})
	s.invalidate(userID, id)
	if err != nil {
		return domain.Habit{}, err
	}
	return h, nil
}

// Delete removes a habit and its ledger. XP already earned is kept; the
// profile streak is refreshed because activity days may have changed.
func (s *HabitService) Delete(ctx context.Context, userID, id string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	var out Outcome
	err := s.withTx(ctx, func(tx domain.Tx) error {
		if err := tx.DeleteHabit(ctx, userID, id); err != nil {
			return err
		}
		var err error
		out, err = s.settle(ctx, tx, userID, 0)
		return err
	})
	s.invalidate(userID, id)
	if err != nil {
		return err
	}
	s.committed(userID, out)
	logger.Debug("habit deleted", "user", userID, "habit", id)
	return nil
}

// Completions lists the habit's ledger, newest first.
func (s *HabitService) Completions(ctx context.Context, userID, id string) ([]domain.CompletionEvent, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var events []domain.CompletionEvent
	err := s.withTx(ctx, func(tx domain.Tx) error {
		if _, err := tx.GetHabit(ctx, userID, id); err != nil {
			return err
		}
		var err error
		events, err = tx.ListCompletions(ctx, id)
		return err
	})
	return events, err
}

// Complete marks the habit done on day. Completing an already completed
// day is a no-op that awards nothing.
func (s *HabitService) Complete(ctx context.Context, userID, habitID string, day time.Time) (ToggleResult, error) {
	return s.change(ctx, userID, habitID, day, actionComplete)
}

// Uncomplete removes the day's completion and reverses exactly the XP that
// completion awarded. Uncompleting a day with no completion is a no-op.
func (s *HabitService) Uncomplete(ctx context.Context, userID, habitID string, day time.Time) (ToggleResult, error) {
	return s.change(ctx, userID, habitID, day, actionUncomplete)
}

// Toggle flips the day's completion.
func (s *HabitService) Toggle(ctx context.Context, userID, habitID string, day time.Time) (ToggleResult, error) {
	return s.change(ctx, userID, habitID, day, actionToggle)
}

func (s *HabitService) change(ctx context.Context, userID, habitID string, day time.Time, action ledgerAction) (ToggleResult, error) {
	if err := requireUser(userID); err != nil {
		return ToggleResult{}, err
	}
	now := s.now()
	day = domain.Day(day)
	if domain.DaysBetween(now, day) > 0 {
		return ToggleResult{}, fmt.Errorf("%w: cannot complete a future day", domain.ErrInvalidInput)
	}

	var res ToggleResult
	commit := func(ctx context.Context) error {
		var err error
		res, err = s.apply(ctx, userID, habitID, day, now, action)
		return err
	}

	var err error
	if s.cache != nil {
		err = Run(ctx, s.cache.mutation(userID, habitID, day, now, action.next, commit))
		if err == nil {
			s.cache.Invalidate(userID, habitID)
		}
	} else {
		err = commit(ctx)
	}
	if err != nil {
		logger.Warn("habit toggle failed", "user", userID, "habit", habitID, "day", domain.FormatDay(day), "err", err)
		return ToggleResult{}, err
	}

	if !res.Changed {
		metrics.HabitCompletions.WithLabelValues("noop").Inc()
		return res, nil
	}
	evType := domain.EventHabitCompleted
	label := "complete"
	if !res.Completed {
		evType, label = domain.EventHabitUncompleted, "uncomplete"
	}
	metrics.HabitCompletions.WithLabelValues(label).Inc()
	s.publish(evType, userID, res.Habit)
	s.committed(userID, res.Outcome)
	logger.Info("habit "+label, "user", userID, "habit", habitID, "day", res.Day, "xp", res.XPDelta)
	return res, nil
}

// apply is the transactional part of a ledger change: ledger mutation,
// habit counters, then the profile settle, in one transaction.
func (s *HabitService) apply(ctx context.Context, userID, habitID string, day, now time.Time, action ledgerAction) (ToggleResult, error) {
	res := ToggleResult{Day: domain.FormatDay(day)}
	err := s.withTx(ctx, func(tx domain.Tx) error {
		h, err := tx.GetHabit(ctx, userID, habitID)
		if err != nil {
			return err
		}
		has, err := tx.HasCompletion(ctx, habitID, day)
		if err != nil {
			return err
		}
		want := action.next(has)
		res.Completed = want

		var delta int64
		changed := false
		switch {
		case want && !has:
			h, delta, changed, err = s.addCompletion(ctx, tx, h, day, now)
		case !want && has:
			h, delta, changed, err = s.removeCompletion(ctx, tx, h, day, now)
		}
		if err != nil {
			return err
		}
		if !changed {
			// Idempotent no-op: the ledger already holds the wanted state.
			res.Habit = h
			p, _, err := s.loadProfile(ctx, tx, userID)
			if err != nil {
				return err
			}
			res.Profile, res.OldLevel, res.NewLevel = p, p.Level, p.Level
			return nil
		}

		h.UpdatedAt = now
		if err := tx.UpdateHabit(ctx, h); err != nil {
			return err
		}
		out, err := s.settle(ctx, tx, userID, delta)
		if err != nil {
			return err
		}
		res.Habit = h
		res.Changed = true
		res.Outcome = out
		return nil
	})
	return res, err
}

// addCompletion inserts the day and refreshes the habit counters, via the
// O(1) path when it provably matches a full recomputation.
func (s *HabitService) addCompletion(ctx context.Context, tx domain.Tx, h domain.Habit, day, now time.Time) (domain.Habit, int64, bool, error) {
	prevLatest, err := tx.LatestCompletionDay(ctx, h.ID)
	if err != nil {
		return h, 0, false, err
	}
	added, err := tx.AddCompletion(ctx, domain.CompletionEvent{
		ID:        uuid.NewString(),
		HabitID:   h.ID,
		UserID:    h.UserID,
		Day:       day,
		XPAwarded: h.XPReward,
		CreatedAt: now,
	})
	if err != nil || !added {
		return h, 0, false, err
	}

	if streak, ok := engagement.IncrementalStreak(h.Streak, prevLatest, day, now); ok {
		h = engagement.MergeStats(h, engagement.LedgerStats{
			Streak:           streak,
			BestStreak:       streak,
			TotalCompletions: h.TotalCompletions + 1,
		})
		return h, h.XPReward, true, nil
	}
	h, err = s.recount(ctx, tx, h, now)
	return h, h.XPReward, true, err
}

// removeCompletion deletes the day and fully recomputes the counters; undo
// of a non-trailing day can split a streak, so no shortcut is taken.
func (s *HabitService) removeCompletion(ctx context.Context, tx domain.Tx, h domain.Habit, day, now time.Time) (domain.Habit, int64, bool, error) {
	ev, removed, err := tx.RemoveCompletion(ctx, h.ID, day)
	if err != nil || !removed {
		return h, 0, false, err
	}
	h, err = s.recount(ctx, tx, h, now)
	return h, -ev.XPAwarded, true, err
}

func (s *HabitService) recount(ctx context.Context, tx domain.Tx, h domain.Habit, now time.Time) (domain.Habit, error) {
	events, err := tx.ListCompletions(ctx, h.ID)
	if err != nil {
		return h, err
	}
	return engagement.MergeStats(h, engagement.RecomputeFromLedger(events, now)), nil
}

func (s *HabitService) invalidate(userID, habitID string) {
	if s.cache != nil {
		s.cache.Invalidate(userID, habitID)
	}
}

func daySet(days []time.Time) map[time.Time]bool {
	set := make(map[time.Time]bool, len(days))
	for _, d := range days {
		set[domain.Day(d)] = true
	}
	return set
}
