package domain

import (
	"context"
	"time"
)

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the application layer depends on them.

// Store is the persistent store. Every read-modify-write of one user event
// runs inside a single WithTx call so profile updates never race.
type Store interface {
	// WithTx runs fn in one transaction. A non-nil error from fn rolls back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of repositories reachable inside a transaction.
type Tx interface {
	HabitRepo
	Ledger
	GoalRepo
	TaskRepo
	ProfileRepo
	AchievementRepo
}

// HabitRepo persists habits. Lookups are scoped by user; a habit owned by
// someone else is reported as ErrNotFound.
type HabitRepo interface {
	InsertHabit(ctx context.Context, h Habit) error
	GetHabit(ctx context.Context, userID, id string) (Habit, error)
	ListHabits(ctx context.Context, userID string) ([]Habit, error)
	UpdateHabit(ctx context.Context, h Habit) error
	DeleteHabit(ctx context.Context, userID, id string) error // cascades to completions
}

// Ledger is the completion ledger, keyed by (habit, day).
type Ledger interface {
	HasCompletion(ctx context.Context, habitID string, day time.Time) (bool, error)
	// LatestCompletionDay returns the most recent completion day, or nil.
	LatestCompletionDay(ctx context.Context, habitID string) (*time.Time, error)
	// AddCompletion inserts ev; added is false when (HabitID, Day) already exists.
	AddCompletion(ctx context.Context, ev CompletionEvent) (added bool, err error)
	// RemoveCompletion deletes the event for the day; removed is false if none existed.
	RemoveCompletion(ctx context.Context, habitID string, day time.Time) (ev CompletionEvent, removed bool, err error)
	ListCompletions(ctx context.Context, habitID string) ([]CompletionEvent, error)
	// ListActivityDays returns the distinct days the user completed any habit.
	ListActivityDays(ctx context.Context, userID string) ([]time.Time, error)
	CountCompletions(ctx context.Context, userID string) (int64, error)
}

// GoalRepo persists goals.
type GoalRepo interface {
	InsertGoal(ctx context.Context, g Goal) error
	GetGoal(ctx context.Context, userID, id string) (Goal, error)
	ListGoals(ctx context.Context, userID string) ([]Goal, error)
	UpdateGoal(ctx context.Context, g Goal) error
	DeleteGoal(ctx context.Context, userID, id string) error // cascades to tasks
	CountGoalsByStatus(ctx context.Context, userID string, status GoalStatus) (int64, error)
}

// TaskRepo persists goal tasks.
type TaskRepo interface {
	InsertTask(ctx context.Context, t Task) error
	GetTask(ctx context.Context, userID, id string) (Task, error)
	ListTasks(ctx context.Context, goalID string) ([]Task, error)
	UpdateTask(ctx context.Context, t Task) error
	DeleteTasks(ctx context.Context, ids []string) error
	CountCompletedTasks(ctx context.Context, userID string) (int64, error)
}

// ProfileRepo persists the per-user profile.
type ProfileRepo interface {
	// GetProfile returns ErrNotFound when the user has no profile yet.
	GetProfile(ctx context.Context, userID string) (Profile, error)
	SaveProfile(ctx context.Context, p Profile) error
}

// AchievementRepo persists unlock records.
type AchievementRepo interface {
	ListUnlocked(ctx context.Context, userID string) ([]UserAchievement, error)
	// UnlockAchievement returns false if already unlocked (idempotent).
	UnlockAchievement(ctx context.Context, ua UserAchievement) (bool, error)
}

// EventPublisher fans out change notifications. Correctness never depends
// on delivery.
type EventPublisher interface {
	Publish(ev Event)
}
