package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starpath-app/starpath/internal/app/engagement"
	"github.com/starpath-app/starpath/internal/domain"
	"github.com/starpath-app/starpath/internal/infra/metrics"
	"github.com/starpath-app/starpath/internal/logger"
)

// GoalService manages goals and their task trees.
type GoalService struct {
	*core
}

// GoalInput holds the fields of a new goal.
type GoalInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// GoalPatch holds optional goal edits. Status may be set to active, at_risk
// or archived; completed is derived from progress and cannot be set.
type GoalPatch struct {
	Title         *string            `json:"title,omitempty"`
	Description   *string            `json:"description,omitempty"`
	Deadline      *time.Time         `json:"deadline,omitempty"`
	ClearDeadline bool               `json:"clear_deadline,omitempty"`
	Status        *domain.GoalStatus `json:"status,omitempty"`
}

// TaskInput holds the fields of a new task.
type TaskInput struct {
	Title        string     `json:"title"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ParentTaskID string     `json:"parent_task_id,omitempty"`
}

// TaskPatch holds optional task edits. Parent set to "" moves the task to
// the top level.
type TaskPatch struct {
	Title        *string    `json:"title,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ClearDueDate bool       `json:"clear_due_date,omitempty"`
	ParentTaskID *string    `json:"parent_task_id,omitempty"`
	Position     *int       `json:"position,omitempty"`
}

// GoalResult is a goal after a mutation, with the task it touched.
type GoalResult struct {
	Goal domain.Goal  `json:"goal"`
	Task *domain.Task `json:"task,omitempty"`
	Outcome
}

// CreateGoal validates and stores a new goal.
func (s *GoalService) CreateGoal(ctx context.Context, userID string, in GoalInput) (domain.Goal, error) {
	if err := requireUser(userID); err != nil {
		return domain.Goal{}, err
	}
	now := s.now()
	g := domain.Goal{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Deadline:    in.Deadline,
		Status:      domain.GoalActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := g.Validate(); err != nil {
		return domain.Goal{}, err
	}
	g = engagement.Recompute(g, nil, now)

	if err := s.withTx(ctx, func(tx domain.Tx) error {
		return tx.InsertGoal(ctx, g)
	}); err != nil {
		return domain.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	logger.Debug("goal created", "user", userID, "goal", g.ID)
	return g, nil
}

// GetGoal returns the goal with its task tree and current progress.
func (s *GoalService) GetGoal(ctx context.Context, userID, id string) (domain.Goal, error) {
	if err := requireUser(userID); err != nil {
		return domain.Goal{}, err
	}
	var g domain.Goal
	err := s.withTx(ctx, func(tx domain.Tx) error {
		var err error
		g, _, err = s.load(ctx, tx, userID, id)
		return err
	})
	return g, err
}

// ListGoals returns the user's goals without task trees. Goal type is
// evaluated against the current time.
func (s *GoalService) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var goals []domain.Goal
	err := s.withTx(ctx, func(tx domain.Tx) error {
		var err error
		goals, err = tx.ListGoals(ctx, userID)
		return err
	})
	now := s.now()
	for i := range goals {
		goals[i].GoalType = engagement.GoalTypeFor(goals[i].Deadline, now)
	}
	return goals, err
}

// UpdateGoal applies a patch and re-derives status from progress.
func (s *GoalService) UpdateGoal(ctx context.Context, userID, id string, patch GoalPatch) (GoalResult, error) {
	if err := requireUser(userID); err != nil {
		return GoalResult{}, err
	}
	if patch.Status != nil && (*patch.Status == domain.GoalCompleted || !patch.Status.Valid()) {
		return GoalResult{}, fmt.Errorf("%w: status %q cannot be set directly", domain.ErrInvalidInput, *patch.Status)
	}
	return s.mutateGoal(ctx, userID, id, false, func(ctx context.Context, tx domain.Tx, g *domain.Goal, tasks *[]domain.Task) (*domain.Task, int64, error) {
		if patch.Title != nil {
			g.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			g.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.ClearDeadline {
			g.Deadline = nil
		} else if patch.Deadline != nil {
			g.Deadline = patch.Deadline
		}
		if patch.Status != nil {
			g.Status = *patch.Status
		}
		return nil, 0, g.Validate()
	})
}

// ArchiveGoal archives a goal. Archived goals keep their progress and XP
// but accept no task changes.
func (s *GoalService) ArchiveGoal(ctx context.Context, userID, id string) (GoalResult, error) {
	archived := domain.GoalArchived
	return s.UpdateGoal(ctx, userID, id, GoalPatch{Status: &archived})
}

// DeleteGoal removes a goal and all of its tasks. XP already earned is kept.
func (s *GoalService) DeleteGoal(ctx context.Context, userID, id string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	err := s.withTx(ctx, func(tx domain.Tx) error {
		return tx.DeleteGoal(ctx, userID, id)
	})
	if err != nil {
		return err
	}
	s.publish(domain.EventGoalUpdated, userID, map[string]any{"id": id, "deleted": true})
	logger.Debug("goal deleted", "user", userID, "goal", id)
	return nil
}

// AddTask adds a task to the goal, optionally under a parent task of the
// same goal. Nesting deeper than domain.MaxTaskDepth is rejected.
func (s *GoalService) AddTask(ctx context.Context, userID, goalID string, in TaskInput) (GoalResult, error) {
	if err := requireUser(userID); err != nil {
		return GoalResult{}, err
	}
	task := domain.Task{
		ID:      uuid.NewString(),
		GoalID:  goalID,
		UserID:  userID,
		Title:   strings.TrimSpace(in.Title),
		DueDate: in.DueDate,
	}
	if err := task.Validate(); err != nil {
		return GoalResult{}, err
	}
	if in.ParentTaskID != "" {
		parent := in.ParentTaskID
		task.ParentTaskID = &parent
	}

	return s.mutateGoal(ctx, userID, goalID, true, func(ctx context.Context, tx domain.Tx, g *domain.Goal, tasks *[]domain.Task) (*domain.Task, int64, error) {
		parentID := ""
		if task.ParentTaskID != nil {
			parentID = *task.ParentTaskID
		}
		if err := s.checkParent(ctx, tx, userID, goalID, parentID); err != nil {
			return nil, 0, err
		}
		if err := engagement.ValidatePlacement(*tasks, "", parentID); err != nil {
			return nil, 0, err
		}
		task.Position = nextPosition(*tasks, parentID)
		task.CreatedAt = s.now()
		if err := tx.InsertTask(ctx, task); err != nil {
			return nil, 0, err
		}
		*tasks = append(*tasks, task)
		return &task, 0, nil
	})
}

// UpdateTask renames, re-dates or moves a task. Moves that would create a
// cycle fail with ErrTaskCycle; moves that would nest too deep fail with
// ErrTaskTooDeep.
func (s *GoalService) UpdateTask(ctx context.Context, userID, goalID, taskID string, patch TaskPatch) (GoalResult, error) {
	if err := requireUser(userID); err != nil {
		return GoalResult{}, err
	}
	if patch.Title != nil {
		if err := (domain.Task{Title: *patch.Title}).Validate(); err != nil {
			return GoalResult{}, err
		}
	}
	return s.mutateGoal(ctx, userID, goalID, true, func(ctx context.Context, tx domain.Tx, g *domain.Goal, tasks *[]domain.Task) (*domain.Task, int64, error) {
		idx := indexOf(*tasks, taskID)
		if idx < 0 {
			return nil, 0, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
		}
		task := (*tasks)[idx]

		if patch.Title != nil {
			task.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.ClearDueDate {
			task.DueDate = nil
		} else if patch.DueDate != nil {
			task.DueDate = patch.DueDate
		}
		if patch.ParentTaskID != nil {
			parentID := *patch.ParentTaskID
			if err := s.checkParent(ctx, tx, userID, goalID, parentID); err != nil {
				return nil, 0, err
			}
			if err := engagement.ValidatePlacement(*tasks, taskID, parentID); err != nil {
				return nil, 0, err
			}
			if parentID == "" {
				task.ParentTaskID = nil
			} else {
				task.ParentTaskID = &parentID
			}
			if patch.Position == nil {
				task.Position = nextPosition(*tasks, parentID)
			}
		}
		if patch.Position != nil {
			task.Position = *patch.Position
		}

		if err := tx.UpdateTask(ctx, task); err != nil {
			return nil, 0, err
		}
		(*tasks)[idx] = task
		return &task, 0, nil
	})
}

// MoveTask places a task under parentID ("" for top level).
func (s *GoalService) MoveTask(ctx context.Context, userID, goalID, taskID, parentID string) (GoalResult, error) {
	return s.UpdateTask(ctx, userID, goalID, taskID, TaskPatch{ParentTaskID: &parentID})
}

// DeleteTask removes a task and its whole subtree.
func (s *GoalService) DeleteTask(ctx context.Context, userID, goalID, taskID string) (GoalResult, error) {
	if err := requireUser(userID); err != nil {
		return GoalResult{}, err
	}
	return s.mutateGoal(ctx, userID, goalID, true, func(ctx context.Context, tx domain.Tx, g *domain.Goal, tasks *[]domain.Task) (*domain.Task, int64, error) {
		if indexOf(*tasks, taskID) < 0 {
			return nil, 0, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
		}
		ids := append(engagement.Descendants(*tasks, taskID), taskID)
		if err := tx.DeleteTasks(ctx, ids); err != nil {
			return nil, 0, err
		}
		gone := make(map[string]bool, len(ids))
		for _, id := range ids {
			gone[id] = true
		}
		kept := (*tasks)[:0]
		for _, t := range *tasks {
			if !gone[t.ID] {
				kept = append(kept, t)
			}
		}
		*tasks = kept
		return nil, 0, nil
	})
}

// ToggleTask flips a task's completion. Completing awards TaskXP and
// reopening reverses it; the goal's own award follows its progress.
func (s *GoalService) ToggleTask(ctx context.Context, userID, goalID, taskID string) (GoalResult, error) {
	if err := requireUser(userID); err != nil {
		return GoalResult{}, err
	}
	res, err := s.mutateGoal(ctx, userID, goalID, true, func(ctx context.Context, tx domain.Tx, g *domain.Goal, tasks *[]domain.Task) (*domain.Task, int64, error) {
		idx := indexOf(*tasks, taskID)
		if idx < 0 {
			return nil, 0, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
		}
		task := (*tasks)[idx]
		task.Completed = !task.Completed
		if err := tx.UpdateTask(ctx, task); err != nil {
			return nil, 0, err
		}
		(*tasks)[idx] = task

		delta := s.rewards.TaskXP
		if !task.Completed {
			delta = -delta
		}
		return &task, delta, nil
	})
	if err == nil && res.Task != nil {
		state := "completed"
		if !res.Task.Completed {
			state = "reopened"
		}
		metrics.TaskToggles.WithLabelValues(state).Inc()
	}
	return res, err
}

// ─── Internals ──────────────────────────────────────────────────────────────

type goalEdit func(ctx context.Context, tx domain.Tx, g *domain.Goal, tasks *[]domain.Task) (*domain.Task, int64, error)

// mutateGoal loads the goal and its tasks, runs edit, re-derives progress,
// status and type, and settles the XP delta, all in one transaction. A
// crossing into 100% progress awards GoalXP; dropping back reverses it.
func (s *GoalService) mutateGoal(ctx context.Context, userID, goalID string, touchesTasks bool, edit goalEdit) (GoalResult, error) {
	var res GoalResult
	err := s.withTx(ctx, func(tx domain.Tx) error {
		g, tasks, err := s.load(ctx, tx, userID, goalID)
		if err != nil {
			return err
		}
		if touchesTasks && g.Status == domain.GoalArchived {
			return domain.ErrGoalArchived
		}
		prevProgress := g.Progress

		task, delta, err := edit(ctx, tx, &g, &tasks)
		if err != nil {
			return err
		}

		now := s.now()
		g = engagement.Recompute(g, tasks, now)
		g.UpdatedAt = now
		if err := tx.UpdateGoal(ctx, g); err != nil {
			return err
		}

		if g.Status != domain.GoalArchived {
			switch {
			case prevProgress < 100 && g.Progress == 100:
				delta += s.rewards.GoalXP
			case prevProgress == 100 && g.Progress < 100:
				delta -= s.rewards.GoalXP
			}
		}

		out, err := s.settle(ctx, tx, userID, delta)
		if err != nil {
			return err
		}
		res = GoalResult{Goal: g, Task: task, Outcome: out}
		return nil
	})
	if err != nil {
		logger.Warn("goal update failed", "user", userID, "goal", goalID, "err", err)
		return GoalResult{}, err
	}
	s.publish(domain.EventGoalUpdated, userID, res.Goal)
	s.committed(userID, res.Outcome)
	return res, nil
}

// load reads a goal and its task rows, with derived fields refreshed.
func (s *GoalService) load(ctx context.Context, tx domain.Tx, userID, goalID string) (domain.Goal, []domain.Task, error) {
	g, err := tx.GetGoal(ctx, userID, goalID)
	if err != nil {
		return domain.Goal{}, nil, err
	}
	tasks, err := tx.ListTasks(ctx, goalID)
	if err != nil {
		return domain.Goal{}, nil, err
	}
	return engagement.Recompute(g, tasks, s.now()), tasks, nil
}

// checkParent verifies parentID is a task of the same goal and user.
func (s *GoalService) checkParent(ctx context.Context, tx domain.Tx, userID, goalID, parentID string) error {
	if parentID == "" {
		return nil
	}
	parent, err := tx.GetTask(ctx, userID, parentID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: parent task %s", domain.ErrNotFound, parentID)
	}
	if err != nil {
		return err
	}
	if parent.GoalID != goalID {
		return domain.ErrWrongGoal
	}
	return nil
}

func indexOf(tasks []domain.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func nextPosition(tasks []domain.Task, parentID string) int {
	pos := 0
	for _, t := range tasks {
		p := ""
		if t.ParentTaskID != nil {
			p = *t.ParentTaskID
		}
		if p == parentID && t.Position >= pos {
			pos = t.Position + 1
		}
	}
	return pos
}
