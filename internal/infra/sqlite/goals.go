package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starpath-app/starpath/internal/domain"
)

// ─── Goal Repository ────────────────────────────────────────────────────────

const goalColumns = `id, user_id, title, description, deadline, status, progress,
	goal_type, created_at, updated_at`

// InsertGoal creates a new goal record.
func (t *tx) InsertGoal(ctx context.Context, g domain.Goal) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Title, g.Description, nullableUnix(g.Deadline),
		string(g.Status), g.Progress, string(g.GoalType),
		g.CreatedAt.Unix(), g.UpdatedAt.Unix(),
	)
	return err
}

// GetGoal retrieves a goal owned by userID, without its tasks.
func (t *tx) GetGoal(ctx context.Context, userID, id string) (domain.Goal, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Goal{}, fmt.Errorf("%w: goal %s", domain.ErrNotFound, id)
	}
	return g, err
}

// ListGoals returns the user's goals, newest first.
func (t *tx) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// UpdateGoal rewrites a goal's editable and derived fields.
func (t *tx) UpdateGoal(ctx context.Context, g domain.Goal) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE goals SET title = ?, description = ?, deadline = ?, status = ?, progress = ?,
			goal_type = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		g.Title, g.Description, nullableUnix(g.Deadline), string(g.Status), g.Progress,
		string(g.GoalType), g.UpdatedAt.Unix(), g.ID, g.UserID,
	)
	if err != nil {
		return err
	}
	return expectOne(result, "goal", g.ID)
}

// DeleteGoal removes a goal and all of its tasks.
func (t *tx) DeleteGoal(ctx context.Context, userID, id string) error {
	if _, err := t.q.ExecContext(ctx,
		`DELETE FROM tasks WHERE goal_id = ? AND user_id = ?`, id, userID); err != nil {
		return err
	}
	result, err := t.q.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return expectOne(result, "goal", id)
}

// CountGoalsByStatus counts the user's goals in status.
func (t *tx) CountGoalsByStatus(ctx context.Context, userID string, status domain.GoalStatus) (int64, error) {
	return t.count(ctx,
		`SELECT COUNT(*) FROM goals WHERE user_id = ? AND status = ?`, userID, string(status))
}

func scanGoal(s scanner) (domain.Goal, error) {
	var g domain.Goal
	var deadline sql.NullInt64
	var status, goalType string
	var created, updated int64
	err := s.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &deadline,
		&status, &g.Progress, &goalType, &created, &updated)
	if err != nil {
		return domain.Goal{}, err
	}
	g.Deadline = timePtr(deadline)
	g.Status = domain.GoalStatus(status)
	g.GoalType = domain.GoalType(goalType)
	g.CreatedAt = time.Unix(created, 0).UTC()
	g.UpdatedAt = time.Unix(updated, 0).UTC()
	return g, nil
}

// ─── Task Repository ────────────────────────────────────────────────────────

const taskColumns = `id, goal_id, user_id, title, completed, due_date, parent_task_id,
	position, created_at`

// InsertTask creates a new task record.
func (t *tx) InsertTask(ctx context.Context, task domain.Task) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.GoalID, task.UserID, task.Title, task.Completed,
		nullableUnix(task.DueDate), nullStr(task.ParentTaskID), task.Position,
		task.CreatedAt.Unix(),
	)
	return err
}

// GetTask retrieves a task owned by userID.
func (t *tx) GetTask(ctx context.Context, userID, id string) (domain.Task, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, fmt.Errorf("%w: task %s", domain.ErrNotFound, id)
	}
	return task, err
}

// ListTasks returns every task of a goal as flat rows ordered by position.
func (t *tx) ListTasks(ctx context.Context, goalID string) ([]domain.Task, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE goal_id = ? ORDER BY position, created_at, id`, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTask rewrites a task's title, completion, due date, parent and position.
func (t *tx) UpdateTask(ctx context.Context, task domain.Task) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE tasks SET title = ?, completed = ?, due_date = ?, parent_task_id = ?, position = ?
		 WHERE id = ? AND user_id = ?`,
		task.Title, task.Completed, nullableUnix(task.DueDate), nullStr(task.ParentTaskID),
		task.Position, task.ID, task.UserID,
	)
	if err != nil {
		return err
	}
	return expectOne(result, "task", task.ID)
}

// DeleteTasks removes the given task rows.
func (t *tx) DeleteTasks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := t.q.ExecContext(ctx,
		`DELETE FROM tasks WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	return err
}

// CountCompletedTasks counts the user's completed tasks across all goals.
func (t *tx) CountCompletedTasks(ctx context.Context, userID string) (int64, error) {
	return t.count(ctx, `SELECT COUNT(*) FROM tasks WHERE user_id = ? AND completed = 1`, userID)
}

func scanTask(s scanner) (domain.Task, error) {
	var task domain.Task
	var due sql.NullInt64
	var parent sql.NullString
	var created int64
	err := s.Scan(&task.ID, &task.GoalID, &task.UserID, &task.Title, &task.Completed,
		&due, &parent, &task.Position, &created)
	if err != nil {
		return domain.Task{}, err
	}
	task.DueDate = timePtr(due)
	task.ParentTaskID = strPtr(parent)
	task.CreatedAt = time.Unix(created, 0).UTC()
	return task, nil
}
