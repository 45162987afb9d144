package postgres

import (
	"time"

	"github.com/starpath-app/starpath/internal/domain"
)

type HabitModel struct {
	ID               string `gorm:"primaryKey"`
	UserID           string `gorm:"not null;index"`
	Name             string `gorm:"not null"`
	Frequency        string `gorm:"not null"`
	XPReward         int64  `gorm:"column:xp_reward;not null"`
	Streak           int
	BestStreak       int
	TotalCompletions int
	CreatedAt        time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime:false"`
}

func (HabitModel) TableName() string { return "habits" }

type CompletionModel struct {
	ID        string    `gorm:"primaryKey"`
	HabitID   string    `gorm:"not null"`
	UserID    string    `gorm:"not null"`
	Day       time.Time `gorm:"type:date;not null"`
	XPAwarded int64     `gorm:"column:xp_awarded;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (CompletionModel) TableName() string { return "habit_completions" }

type GoalModel struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string
	Deadline    *time.Time
	Status      string `gorm:"not null"`
	Progress    int
	GoalType    string
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

func (GoalModel) TableName() string { return "goals" }

type TaskModel struct {
	ID           string `gorm:"primaryKey"`
	GoalID       string `gorm:"not null"`
	UserID       string `gorm:"not null"`
	Title        string `gorm:"not null"`
	Completed    bool
	DueDate      *time.Time
	ParentTaskID *string
	Position     int
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
}

func (TaskModel) TableName() string { return "tasks" }

type ProfileModel struct {
	UserID        string `gorm:"primaryKey"`
	XP            int64  `gorm:"column:xp"`
	Level         int
	TotalXP       int64 `gorm:"column:total_xp"`
	Streak        int
	LongestStreak int
	IsPremium     bool
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
}

func (ProfileModel) TableName() string { return "profiles" }

type UserAchievementModel struct {
	UserID        string `gorm:"primaryKey"`
	AchievementID string `gorm:"primaryKey"`
	UnlockedAt    time.Time
}

func (UserAchievementModel) TableName() string { return "user_achievements" }

// ─── Conversions ────────────────────────────────────────────────────────────

func habitModel(h domain.Habit) HabitModel {
	return HabitModel{
		ID: h.ID, UserID: h.UserID, Name: h.Name, Frequency: string(h.Frequency),
		XPReward: h.XPReward, Streak: h.Streak, BestStreak: h.BestStreak,
		TotalCompletions: h.TotalCompletions, CreatedAt: h.CreatedAt, UpdatedAt: h.UpdatedAt,
	}
}

func (m HabitModel) toDomain() domain.Habit {
	return domain.Habit{
		ID: m.ID, UserID: m.UserID, Name: m.Name, Frequency: domain.Frequency(m.Frequency),
		XPReward: m.XPReward, Streak: m.Streak, BestStreak: m.BestStreak,
		TotalCompletions: m.TotalCompletions, CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func (m CompletionModel) toDomain() domain.CompletionEvent {
	return domain.CompletionEvent{
		ID: m.ID, HabitID: m.HabitID, UserID: m.UserID, Day: domain.Day(m.Day),
		XPAwarded: m.XPAwarded, CreatedAt: m.CreatedAt.UTC(),
	}
}

func goalModel(g domain.Goal) GoalModel {
	return GoalModel{
		ID: g.ID, UserID: g.UserID, Title: g.Title, Description: g.Description,
		Deadline: g.Deadline, Status: string(g.Status), Progress: g.Progress,
		GoalType: string(g.GoalType), CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt,
	}
}

func (m GoalModel) toDomain() domain.Goal {
	return domain.Goal{
		ID: m.ID, UserID: m.UserID, Title: m.Title, Description: m.Description,
		Deadline: utcPtr(m.Deadline), Status: domain.GoalStatus(m.Status), Progress: m.Progress,
		GoalType: domain.GoalType(m.GoalType), CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func taskModel(t domain.Task) TaskModel {
	m := TaskModel{
		ID: t.ID, GoalID: t.GoalID, UserID: t.UserID, Title: t.Title, Completed: t.Completed,
		DueDate: t.DueDate, Position: t.Position, CreatedAt: t.CreatedAt,
	}
	if !t.IsRoot() {
		m.ParentTaskID = t.ParentTaskID
	}
	return m
}

func (m TaskModel) toDomain() domain.Task {
	return domain.Task{
		ID: m.ID, GoalID: m.GoalID, UserID: m.UserID, Title: m.Title, Completed: m.Completed,
		DueDate: utcPtr(m.DueDate), ParentTaskID: m.ParentTaskID, Position: m.Position,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func profileModel(p domain.Profile) ProfileModel {
	return ProfileModel{
		UserID: p.UserID, XP: p.XP, Level: p.Level, TotalXP: p.TotalXP, Streak: p.Streak,
		LongestStreak: p.LongestStreak, IsPremium: p.IsPremium, UpdatedAt: p.UpdatedAt,
	}
}

func (m ProfileModel) toDomain() domain.Profile {
	return domain.Profile{
		UserID: m.UserID, XP: m.XP, Level: m.Level, TotalXP: m.TotalXP, Streak: m.Streak,
		LongestStreak: m.LongestStreak, IsPremium: m.IsPremium, UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
