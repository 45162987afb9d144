// Package domain holds the StarPath types shared by every layer.
// Domain types carry no infrastructure dependency.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ─── Habit Types ────────────────────────────────────────────────────────────

// Frequency is how often a habit is meant to be done.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

const (
	MaxHabitNameLen = 100
	MaxXPReward     = 1000
)

// Habit is a recurring user-defined task.
// Streak, BestStreak and TotalCompletions are caches derived from the
// completion ledger; they are rewritten after every ledger mutation.
type Habit struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Name             string    `json:"name"`
	Frequency        Frequency `json:"frequency"`
	XPReward         int64     `json:"xp_reward"`
	Streak           int       `json:"streak"`
	BestStreak       int       `json:"best_streak"`
	TotalCompletions int       `json:"total_completions"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Validate checks user-editable fields.
func (h Habit) Validate() error {
	name := strings.TrimSpace(h.Name)
	if name == "" {
		return fmt.Errorf("%w: habit name must not be empty", ErrInvalidInput)
	}
	if len([]rune(name)) > MaxHabitNameLen {
		return fmt.Errorf("%w: habit name longer than %d characters", ErrInvalidInput, MaxHabitNameLen)
	}
	if !h.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, h.Frequency)
	}
	if h.XPReward <= 0 || h.XPReward > MaxXPReward {
		return fmt.Errorf("%w: xp reward must be between 1 and %d", ErrInvalidInput, MaxXPReward)
	}
	return nil
}

// CompletionEvent records one habit being done on one calendar day.
// At most one event exists per (HabitID, Day).
type CompletionEvent struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	UserID    string    `json:"user_id"`
	Day       time.Time `json:"-"`
	XPAwarded int64     `json:"xp_awarded"` // snapshot of the habit's reward at completion time
	CreatedAt time.Time `json:"created_at"`
}

// DayString returns the event day as YYYY-MM-DD.
func (e CompletionEvent) DayString() string {
	return FormatDay(e.Day)
}
