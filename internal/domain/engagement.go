// Gamification types.
// Profiles carry XP, level and the global activity streak; achievements are
// one-time unlocks driven by profile metrics.

package domain

import "time"

// ─── Profile / XP Types ─────────────────────────────────────────────────────

// XPPerLevel is the size of one level. Profile.XP is always the remainder
// after dividing cumulative XP into blocks of this size.
const XPPerLevel int64 = 500

// Profile is the per-user aggregate gamification state.
type Profile struct {
	UserID        string    `json:"user_id"`
	XP            int64     `json:"xp"`       // 0 <= XP < XPPerLevel
	Level         int       `json:"level"`    // >= 1
	TotalXP       int64     `json:"total_xp"` // lifetime, never decremented
	Streak        int       `json:"streak"`   // consecutive activity days across all habits
	LongestStreak int       `json:"longest_streak"`
	IsPremium     bool      `json:"is_premium"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewProfile returns the state of a freshly created account.
func NewProfile(userID string) Profile {
	return Profile{UserID: userID, Level: 1}
}

// XPToNextLevel returns the XP still needed for the next level.
func (p Profile) XPToNextLevel() int64 {
	return XPPerLevel - p.XP
}

// XPSource categorizes how XP was earned or reversed.
type XPSource string

const (
	XPHabitCompleted XPSource = "habit_completed"
	XPHabitUndone    XPSource = "habit_undone"
	XPTaskCompleted  XPSource = "task_completed"
	XPTaskReopened   XPSource = "task_reopened"
	XPGoalCompleted  XPSource = "goal_completed"
	XPGoalReopened   XPSource = "goal_reopened"
	XPAchievement    XPSource = "achievement"
	XPGeneration     XPSource = "ai_generation"
)

// ─── Achievement Types ──────────────────────────────────────────────────────

// RequirementType selects the profile metric an achievement is tested on.
type RequirementType string

const (
	ReqHabitsCompleted RequirementType = "habits_completed"
	ReqStreakDays      RequirementType = "streak_days"
	ReqLongestStreak   RequirementType = "longest_streak"
	ReqLevelReached    RequirementType = "level_reached"
	ReqTotalXP         RequirementType = "total_xp"
	ReqGoalsCompleted  RequirementType = "goals_completed"
	ReqTasksCompleted  RequirementType = "tasks_completed"
)

// Achievement is a static catalog entry.
type Achievement struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Icon             string          `json:"icon"`
	RequirementType  RequirementType `json:"requirement_type"`
	RequirementValue int64           `json:"requirement_value"`
	XPReward         int64           `json:"xp_reward"`
}

// UserAchievement is the one-time unlock record for (user, achievement).
type UserAchievement struct {
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// Metrics are the counters achievements can test that do not live on the
// profile itself. They are read from the store before evaluation.
type Metrics struct {
	HabitsCompleted int64 `json:"habits_completed"`
	TasksCompleted  int64 `json:"tasks_completed"`
	GoalsCompleted  int64 `json:"goals_completed"`
}

// ─── Event Types ────────────────────────────────────────────────────────────

// EventType categorizes realtime events.
type EventType string

const (
	EventHabitCompleted      EventType = "habit_completed"
	EventHabitUncompleted    EventType = "habit_uncompleted"
	EventGoalUpdated         EventType = "goal_updated"
	EventLevelUp             EventType = "level_up"
	EventAchievementUnlocked EventType = "achievement_unlocked"
)

// Event is a user-scoped change notification fanned out to open sessions.
type Event struct {
	Type    EventType `json:"type"`
	UserID  string    `json:"user_id"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}
