// Package tracker orchestrates user events: it runs the ledger mutation,
// the engagement engines and the profile update for one event inside a
// single store transaction, then publishes the outcome.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/starpath-app/starpath/internal/app/engagement"
	"github.com/starpath-app/starpath/internal/domain"
	"github.com/starpath-app/starpath/internal/infra/metrics"
	"github.com/starpath-app/starpath/internal/logger"
)

// DefaultHabitXP is the reward for a habit created without one.
const DefaultHabitXP int64 = 10

// Rewards are the XP amounts for events that are not habit completions.
type Rewards struct {
	TaskXP       int64 `toml:"task_xp"`
	GoalXP       int64 `toml:"goal_xp"`
	GenerationXP int64 `toml:"generation_xp"`
}

// DefaultRewards returns the stock reward table.
func DefaultRewards() Rewards {
	return Rewards{TaskXP: 10, GoalXP: 50, GenerationXP: 5}
}

// Options configures New. Zero values fall back to defaults.
type Options struct {
	Rewards Rewards
	Catalog []domain.Achievement
	Events  domain.EventPublisher
	Cache   *Cache
	Now     func() time.Time
}

// Tracker bundles the services that share one store.
type Tracker struct {
	Habits   *HabitService
	Goals    *GoalService
	Profiles *ProfileService
}

// New wires the services over store.
func New(store domain.Store, opts Options) *Tracker {
	if opts.Rewards == (Rewards{}) {
		opts.Rewards = DefaultRewards()
	}
	if opts.Catalog == nil {
		opts.Catalog = engagement.DefaultCatalog()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &core{
		store:   store,
		rewards: opts.Rewards,
		catalog: opts.Catalog,
		events:  opts.Events,
		now:     opts.Now,
	}
	return &Tracker{
		Habits:   &HabitService{core: c, cache: opts.Cache},
		Goals:    &GoalService{core: c},
		Profiles: &ProfileService{core: c},
	}
}

// Outcome is the profile side of one user event.
type Outcome struct {
	Profile      domain.Profile       `json:"profile"`
	XPDelta      int64                `json:"xp_delta"`
	LeveledUp    bool                 `json:"leveled_up"`
	LeveledDown  bool                 `json:"leveled_down,omitempty"`
	OldLevel     int                  `json:"old_level"`
	NewLevel     int                  `json:"new_level"`
	Achievements []domain.Achievement `json:"achievements,omitempty"`
}

// core holds what every service needs.
type core struct {
	store   domain.Store
	rewards Rewards
	catalog []domain.Achievement
	events  domain.EventPublisher
	now     func() time.Time
}

func requireUser(userID string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	return nil
}

// withTx runs fn in one store transaction and records its duration.
func (c *core) withTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	start := time.Now()
	err := c.store.WithTx(ctx, fn)
	metrics.StoreTxDuration.Observe(time.Since(start).Seconds())
	return err
}

// loadProfile returns the user's profile, creating it in memory on first
// access. The caller saves it.
func (c *core) loadProfile(ctx context.Context, tx domain.Tx, userID string) (domain.Profile, bool, error) {
	p, err := tx.GetProfile(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		p = domain.NewProfile(userID)
		p.UpdatedAt = c.now()
		return p, true, nil
	}
	if err != nil {
		return domain.Profile{}, false, fmt.Errorf("load profile: %w", err)
	}
	return p, false, nil
}

func (c *core) loadMetrics(ctx context.Context, tx domain.Tx, userID string) (domain.Metrics, error) {
	var m domain.Metrics
	var err error
	if m.HabitsCompleted, err = tx.CountCompletions(ctx, userID); err != nil {
		return m, err
	}
	if m.TasksCompleted, err = tx.CountCompletedTasks(ctx, userID); err != nil {
		return m, err
	}
	if m.GoalsCompleted, err = tx.CountGoalsByStatus(ctx, userID, domain.GoalCompleted); err != nil {
		return m, err
	}
	return m, nil
}

// settle is the single read-modify-write of the profile for one user event:
// apply delta, refresh the global streak from activity days, evaluate
// achievements (whose rewards go through the same XP engine), save once.
func (c *core) settle(ctx context.Context, tx domain.Tx, userID string, delta int64) (Outcome, error) {
	p, _, err := c.loadProfile(ctx, tx, userID)
	if err != nil {
		return Outcome{}, err
	}
	now := c.now()
	out := Outcome{XPDelta: delta, OldLevel: p.Level}

	if delta != 0 {
		p = engagement.ApplyXP(p, delta).Profile
	}

	days, err := tx.ListActivityDays(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("activity days: %w", err)
	}
	p.Streak = engagement.CurrentStreak(days, now)
	if run := engagement.LongestRun(days); run > p.LongestStreak {
		p.LongestStreak = run
	}
	if p.Streak > p.LongestStreak {
		p.LongestStreak = p.Streak
	}

	m, err := c.loadMetrics(ctx, tx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load metrics: %w", err)
	}
	records, err := tx.ListUnlocked(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("list achievements: %w", err)
	}
	unlocked := make(map[string]bool, len(records))
	for _, r := range records {
		unlocked[r.AchievementID] = true
	}

	eval := engagement.Evaluate(p, m, c.catalog, unlocked)
	for _, a := range eval.Unlocked {
		if _, err := tx.UnlockAchievement(ctx, domain.UserAchievement{
			UserID: userID, AchievementID: a.ID, UnlockedAt: now,
		}); err != nil {
			return Outcome{}, fmt.Errorf("unlock %s: %w", a.ID, err)
		}
	}
	p = eval.Profile
	p.UpdatedAt = now

	if err := tx.SaveProfile(ctx, p); err != nil {
		return Outcome{}, fmt.Errorf("save profile: %w", err)
	}

	out.Profile = p
	out.NewLevel = p.Level
	out.LeveledUp = p.Level > out.OldLevel
	out.LeveledDown = p.Level < out.OldLevel
	out.Achievements = eval.Unlocked
	return out, nil
}

// committed records metrics and publishes events for an outcome. Call only
// after the transaction that produced it has committed.
func (c *core) committed(userID string, out Outcome) {
	switch {
	case out.XPDelta > 0:
		metrics.XPAwarded.Add(float64(out.XPDelta))
	case out.XPDelta < 0:
		metrics.XPReversed.Add(float64(-out.XPDelta))
	}
	for _, a := range out.Achievements {
		metrics.AchievementsUnlocked.WithLabelValues(a.ID).Inc()
		if a.XPReward > 0 {
			metrics.XPAwarded.Add(float64(a.XPReward))
		}
		logger.Info("achievement unlocked", "user", userID, "achievement", a.ID)
		c.publish(domain.EventAchievementUnlocked, userID, a)
	}
	if out.LeveledUp {
		metrics.LevelUps.Inc()
		logger.Info("level up", "user", userID, "level", out.NewLevel)
		c.publish(domain.EventLevelUp, userID, map[string]int{
			"old_level": out.OldLevel,
			"new_level": out.NewLevel,
		})
	}
}

func (c *core) publish(t domain.EventType, userID string, payload any) {
	if c.events == nil {
		return
	}
	c.events.Publish(domain.Event{Type: t, UserID: userID, Payload: payload, At: c.now()})
}
