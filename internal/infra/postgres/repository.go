package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/starpath-app/starpath/internal/domain"
)

type tx struct {
	db *gorm.DB
}

// forUpdate locks the selected rows until commit, serializing concurrent
// events on the same habit or goal.
var forUpdate = clause.Locking{Strength: "UPDATE"}

func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
	}
	return err
}

func expectOne(res *gorm.DB, kind, id string) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
	}
	return nil
}

// ─── Habits ─────────────────────────────────────────────────────────────────

func (t *tx) InsertHabit(ctx context.Context, h domain.Habit) error {
	m := habitModel(h)
	return t.db.WithContext(ctx).Create(&m).Error
}

func (t *tx) GetHabit(ctx context.Context, userID, id string) (domain.Habit, error) {
	var m HabitModel
	err := t.db.WithContext(ctx).Clauses(forUpdate).
		Where("id = ? AND user_id = ?", id, userID).First(&m).Error
	if err != nil {
		return domain.Habit{}, notFound(err, "habit", id)
	}
	return m.toDomain(), nil
}

func (t *tx) ListHabits(ctx context.Context, userID string) ([]domain.Habit, error) {
	var rows []HabitModel
	if err := t.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Habit, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (t *tx) UpdateHabit(ctx context.Context, h domain.Habit) error {
	res := t.db.WithContext(ctx).Model(&HabitModel{}).
		Where("id = ? AND user_id = ?", h.ID, h.UserID).
		Updates(map[string]any{
			"name":              h.Name,
			"frequency":         string(h.Frequency),
			"xp_reward":         h.XPReward,
			"streak":            h.Streak,
			"best_streak":       h.BestStreak,
			"total_completions": h.TotalCompletions,
			"updated_at":        h.UpdatedAt,
		})
	return expectOne(res, "habit", h.ID)
}

func (t *tx) DeleteHabit(ctx context.Context, userID, id string) error {
	res := t.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&HabitModel{})
	return expectOne(res, "habit", id)
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

func (t *tx) HasCompletion(ctx context.Context, habitID string, day time.Time) (bool, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&CompletionModel{}).
		Where("habit_id = ? AND day = ?", habitID, domain.Day(day)).Count(&n).Error
	return n > 0, err
}

func (t *tx) LatestCompletionDay(ctx context.Context, habitID string) (*time.Time, error) {
	var day *time.Time
	err := t.db.WithContext(ctx).Model(&CompletionModel{}).
		Where("habit_id = ?", habitID).Select("MAX(day)").Scan(&day).Error
	if err != nil || day == nil {
		return nil, err
	}
	d := domain.Day(*day)
	return &d, nil
}

func (t *tx) AddCompletion(ctx context.Context, ev domain.CompletionEvent) (bool, error) {
	m := CompletionModel{
		ID: ev.ID, HabitID: ev.HabitID, UserID: ev.UserID, Day: domain.Day(ev.Day),
		XPAwarded: ev.XPAwarded, CreatedAt: ev.CreatedAt,
	}
	res := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_id"}, {Name: "day"}},
		DoNothing: true,
	}).Create(&m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (t *tx) RemoveCompletion(ctx context.Context, habitID string, day time.Time) (domain.CompletionEvent, bool, error) {
	var m CompletionModel
	err := t.db.WithContext(ctx).Where("habit_id = ? AND day = ?", habitID, domain.Day(day)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.CompletionEvent{}, false, nil
	}
	if err != nil {
		return domain.CompletionEvent{}, false, err
	}
	if err := t.db.WithContext(ctx).Where("id = ?", m.ID).Delete(&CompletionModel{}).Error; err != nil {
		return domain.CompletionEvent{}, false, err
	}
	return m.toDomain(), true, nil
}

func (t *tx) ListCompletions(ctx context.Context, habitID string) ([]domain.CompletionEvent, error) {
	var rows []CompletionModel
	if err := t.db.WithContext(ctx).Where("habit_id = ?", habitID).
		Order("day DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.CompletionEvent, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (t *tx) ListActivityDays(ctx context.Context, userID string) ([]time.Time, error) {
	var days []time.Time
	if err := t.db.WithContext(ctx).Model(&CompletionModel{}).
		Where("user_id = ?", userID).Distinct("day").Order("day DESC").
		Pluck("day", &days).Error; err != nil {
		return nil, err
	}
	for i := range days {
		days[i] = domain.Day(days[i])
	}
	return days, nil
}

func (t *tx) CountCompletions(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&CompletionModel{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// ─── Goals ──────────────────────────────────────────────────────────────────

func (t *tx) InsertGoal(ctx context.Context, g domain.Goal) error {
	m := goalModel(g)
	return t.db.WithContext(ctx).Create(&m).Error
}

func (t *tx) GetGoal(ctx context.Context, userID, id string) (domain.Goal, error) {
	var m GoalModel
	err := t.db.WithContext(ctx).Clauses(forUpdate).
		Where("id = ? AND user_id = ?", id, userID).First(&m).Error
	if err != nil {
		return domain.Goal{}, notFound(err, "goal", id)
	}
	return m.toDomain(), nil
}

func (t *tx) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	var rows []GoalModel
	if err := t.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Goal, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (t *tx) UpdateGoal(ctx context.Context, g domain.Goal) error {
	res := t.db.WithContext(ctx).Model(&GoalModel{}).
		Where("id = ? AND user_id = ?", g.ID, g.UserID).
		Updates(map[string]any{
			"title":       g.Title,
			"description": g.Description,
			"deadline":    g.Deadline,
			"status":      string(g.Status),
			"progress":    g.Progress,
			"goal_type":   string(g.GoalType),
			"updated_at":  g.UpdatedAt,
		})
	return expectOne(res, "goal", g.ID)
}

func (t *tx) DeleteGoal(ctx context.Context, userID, id string) error {
	res := t.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&GoalModel{})
	return expectOne(res, "goal", id)
}

func (t *tx) CountGoalsByStatus(ctx context.Context, userID string, status domain.GoalStatus) (int64, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&GoalModel{}).
		Where("user_id = ? AND status = ?", userID, string(status)).Count(&n).Error
	return n, err
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

func (t *tx) InsertTask(ctx context.Context, task domain.Task) error {
	m := taskModel(task)
	return t.db.WithContext(ctx).Create(&m).Error
}

func (t *tx) GetTask(ctx context.Context, userID, id string) (domain.Task, error) {
	var m TaskModel
	err := t.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&m).Error
	if err != nil {
		return domain.Task{}, notFound(err, "task", id)
	}
	return m.toDomain(), nil
}

func (t *tx) ListTasks(ctx context.Context, goalID string) ([]domain.Task, error) {
	var rows []TaskModel
	if err := t.db.WithContext(ctx).Where("goal_id = ?", goalID).
		Order("position, created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (t *tx) UpdateTask(ctx context.Context, task domain.Task) error {
	m := taskModel(task)
	res := t.db.WithContext(ctx).Model(&TaskModel{}).
		Where("id = ? AND user_id = ?", task.ID, task.UserID).
		Updates(map[string]any{
			"title":          m.Title,
			"completed":      m.Completed,
			"due_date":       m.DueDate,
			"parent_task_id": m.ParentTaskID,
			"position":       m.Position,
		})
	return expectOne(res, "task", task.ID)
}

func (t *tx) DeleteTasks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return t.db.WithContext(ctx).Where("id IN ?", ids).Delete(&TaskModel{}).Error
}

func (t *tx) CountCompletedTasks(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&TaskModel{}).
		Where("user_id = ? AND completed", userID).Count(&n).Error
	return n, err
}

// ─── Profiles / Achievements ────────────────────────────────────────────────

func (t *tx) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var m ProfileModel
	err := t.db.WithContext(ctx).Clauses(forUpdate).Where("user_id = ?", userID).First(&m).Error
	if err != nil {
		return domain.Profile{}, notFound(err, "profile", userID)
	}
	return m.toDomain(), nil
}

func (t *tx) SaveProfile(ctx context.Context, p domain.Profile) error {
	m := profileModel(p)
	return t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"xp", "level", "total_xp", "streak", "longest_streak", "is_premium", "updated_at"}),
	}).Create(&m).Error
}

func (t *tx) ListUnlocked(ctx context.Context, userID string) ([]domain.UserAchievement, error) {
	var rows []UserAchievementModel
	if err := t.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("unlocked_at, achievement_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.UserAchievement, 0, len(rows))
	for _, m := range rows {
		out = append(out, domain.UserAchievement{UserID: m.UserID, AchievementID: m.AchievementID, UnlockedAt: m.UnlockedAt.UTC()})
	}
	return out, nil
}

func (t *tx) UnlockAchievement(ctx context.Context, ua domain.UserAchievement) (bool, error) {
	m := UserAchievementModel{UserID: ua.UserID, AchievementID: ua.AchievementID, UnlockedAt: ua.UnlockedAt}
	res := t.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
