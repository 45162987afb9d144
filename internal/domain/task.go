// Goal and task types.
// A Goal owns a tree of Tasks; the goal's progress is derived from the
// whole tree, subtasks included.

package domain

import (
	"fmt"
	"strings"
	"time"
)

// GoalStatus tracks the goal lifecycle.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalAtRisk    GoalStatus = "at_risk"
	GoalArchived  GoalStatus = "archived"
)

// Valid reports whether s is a known status.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalAtRisk, GoalArchived:
		return true
	}
	return false
}

// GoalType is derived from the distance to the deadline.
type GoalType string

const (
	GoalShortTerm GoalType = "short_term"
	GoalLongTerm  GoalType = "long_term"
)

const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 2000
	// MaxTaskDepth is the deepest nesting allowed; top-level tasks are depth 1.
	MaxTaskDepth = 3
	// LongTermThresholdDays: goals due further out than this are long-term.
	LongTermThresholdDays = 30
)

// Goal is a user-defined objective composed of tasks.
type Goal struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
	Status      GoalStatus  `json:"status"`
	Progress    int         `json:"progress"`
	GoalType    GoalType    `json:"goal_type"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Tasks       []*TaskNode `json:"tasks,omitempty"`
}

// Validate checks user-editable fields.
func (g Goal) Validate() error {
	if err := validateTitle(g.Title); err != nil {
		return err
	}
	if len([]rune(g.Description)) > MaxDescriptionLen {
		return fmt.Errorf("%w: description longer than %d characters", ErrInvalidInput, MaxDescriptionLen)
	}
	if g.Status != "" && !g.Status.Valid() {
		return fmt.Errorf("%w: unknown goal status %q", ErrInvalidInput, g.Status)
	}
	return nil
}

// Task is a step of a goal, optionally nested under a parent task.
type Task struct {
	ID           string     `json:"id"`
	GoalID       string     `json:"goal_id"`
	UserID       string     `json:"user_id"`
	Title        string     `json:"title"`
	Completed    bool       `json:"completed"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ParentTaskID *string    `json:"parent_task_id,omitempty"`
	Position     int        `json:"position"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Validate checks user-editable fields.
func (t Task) Validate() error {
	return validateTitle(t.Title)
}

// IsRoot reports whether the task has no parent.
func (t Task) IsRoot() bool {
	return t.ParentTaskID == nil || *t.ParentTaskID == ""
}

// TaskNode is a task with its resolved subtasks.
type TaskNode struct {
	Task
	Subtasks []*TaskNode `json:"subtasks,omitempty"`
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
	}
	if len([]rune(title)) > MaxTitleLen {
		return fmt.Errorf("%w: title longer than %d characters", ErrInvalidInput, MaxTitleLen)
	}
	return nil
}
