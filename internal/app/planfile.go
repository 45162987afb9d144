// Package app provides application-layer orchestration services.
// It wires domain logic with infrastructure, never the reverse.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/starpath-app/starpath/internal/app/tracker"
	"github.com/starpath-app/starpath/internal/domain"
)

// Plan is a set of habits and goals read from a plan file.
type Plan struct {
	Habits []tracker.HabitInput
	Goals  []PlanGoal
}

// PlanGoal is a goal with its task tree.
type PlanGoal struct {
	tracker.GoalInput
	Tasks []*PlanTask
}

// PlanTask is a task with its subtasks.
type PlanTask struct {
	Title    string
	DueDate  *time.Time
	Subtasks []*PlanTask
}

// ParsePlan parses a plan file from a reader.
// Supports directives: HABIT, FREQUENCY, XP, GOAL, DESCRIPTION, DEADLINE,
// TASK, DUE. TASK nesting follows indentation, two spaces or one tab per
// level. Multi-line values use triple-quote delimiters (""").
func ParsePlan(r io.Reader) (*Plan, error) {
	p := &Plan{}

	var (
		habit     *tracker.HabitInput
		goal      *PlanGoal
		task      *PlanTask
		stack     []*PlanTask // stack[i] is the last task seen at depth i+1
		multiLine *string
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()

		// Handle multi-line blocks (""" delimiters)
		if multiLine != nil {
			if strings.TrimSpace(raw) == `"""` {
				*multiLine = strings.TrimSuffix(*multiLine, "\n")
				multiLine = nil
				continue
			}
			*multiLine += raw + "\n"
			continue
		}

		line := strings.TrimSpace(raw)

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, " ", 2)
		if len(parts) < 2 {
			return nil, planError(lineNo, "%s needs a value", parts[0])
		}
		directive := strings.ToUpper(parts[0])
		value := strings.TrimSpace(parts[1])

		switch directive {
		case "HABIT":
			p.Habits = append(p.Habits, tracker.HabitInput{Name: unquote(value)})
			habit, goal, task = &p.Habits[len(p.Habits)-1], nil, nil

		case "FREQUENCY":
			if habit == nil {
				return nil, planError(lineNo, "FREQUENCY outside a HABIT")
			}
			habit.Frequency = domain.Frequency(strings.ToLower(value))

		case "XP":
			if habit == nil {
				return nil, planError(lineNo, "XP outside a HABIT")
			}
			xp, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, planError(lineNo, "XP %q is not a number", value)
			}
			habit.XPReward = xp

		case "GOAL":
			p.Goals = append(p.Goals, PlanGoal{GoalInput: tracker.GoalInput{Title: unquote(value)}})
			goal, habit, task, stack = &p.Goals[len(p.Goals)-1], nil, nil, nil

		case "DESCRIPTION":
			if goal == nil {
				return nil, planError(lineNo, "DESCRIPTION outside a GOAL")
			}
			if strings.HasPrefix(value, `"""`) {
				goal.Description = ""
				multiLine = &goal.Description
			} else {
				goal.Description = unquote(value)
			}

		case "DEADLINE":
			if goal == nil {
				return nil, planError(lineNo, "DEADLINE outside a GOAL")
			}
			d, err := domain.ParseDay(value)
			if err != nil {
				return nil, planError(lineNo, "%v", err)
			}
			goal.Deadline = &d

		case "TASK":
			if goal == nil {
				return nil, planError(lineNo, "TASK outside a GOAL")
			}
			depth := indentLevel(raw) + 1
			if depth > domain.MaxTaskDepth {
				return nil, planError(lineNo, "tasks nest at most %d levels", domain.MaxTaskDepth)
			}
			if depth > len(stack)+1 {
				return nil, planError(lineNo, "TASK indented past its parent")
			}
			task = &PlanTask{Title: unquote(value)}
			stack = append(stack[:depth-1], task)
			if depth == 1 {
				goal.Tasks = append(goal.Tasks, task)
			} else {
				parent := stack[depth-2]
				parent.Subtasks = append(parent.Subtasks, task)
			}

		case "DUE":
			if task == nil {
				return nil, planError(lineNo, "DUE outside a TASK")
			}
			d, err := domain.ParseDay(value)
			if err != nil {
				return nil, planError(lineNo, "%v", err)
			}
			task.DueDate = &d

		default:
			// Unknown directives are silently ignored for forward compatibility
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	if multiLine != nil {
		return nil, planError(lineNo, `unterminated """ block`)
	}
	if len(p.Habits) == 0 && len(p.Goals) == 0 {
		return nil, fmt.Errorf("%w: plan defines no habits or goals", domain.ErrInvalidInput)
	}
	return p, nil
}

// ImportSummary counts what Import created.
type ImportSummary struct {
	Habits int
	Goals  int
	Tasks  int
}

// Import creates the plan's habits, goals and tasks for userID. Each item
// is its own transaction; on error the summary reports what was created
// before it.
func Import(ctx context.Context, tr *tracker.Tracker, userID string, p *Plan) (ImportSummary, error) {
	var sum ImportSummary
	for _, h := range p.Habits {
		if _, err := tr.Habits.Create(ctx, userID, h); err != nil {
			return sum, fmt.Errorf("habit %q: %w", h.Name, err)
		}
		sum.Habits++
	}
	for _, pg := range p.Goals {
		g, err := tr.Goals.CreateGoal(ctx, userID, pg.GoalInput)
		if err != nil {
			return sum, fmt.Errorf("goal %q: %w", pg.Title, err)
		}
		sum.Goals++
		if err := importTasks(ctx, tr, userID, g.ID, "", pg.Tasks, &sum); err != nil {
			return sum, fmt.Errorf("goal %q: %w", pg.Title, err)
		}
	}
	return sum, nil
}

func importTasks(ctx context.Context, tr *tracker.Tracker, userID, goalID, parentID string, tasks []*PlanTask, sum *ImportSummary) error {
	for _, t := range tasks {
		res, err := tr.Goals.AddTask(ctx, userID, goalID, tracker.TaskInput{
			Title:        t.Title,
			DueDate:      t.DueDate,
			ParentTaskID: parentID,
		})
		if err != nil {
			return fmt.Errorf("task %q: %w", t.Title, err)
		}
		sum.Tasks++
		if err := importTasks(ctx, tr, userID, goalID, res.Task.ID, t.Subtasks, sum); err != nil {
			return err
		}
	}
	return nil
}

func planError(line int, format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", domain.ErrInvalidInput, line, fmt.Sprintf(format, args...))
}

// indentLevel counts leading indentation: one level per tab or two spaces.
func indentLevel(s string) int {
	spaces := 0
	for _, r := range s {
		switch r {
		case '\t':
			spaces += 2
		case ' ':
			spaces++
		default:
			return spaces / 2
		}
	}
	return spaces / 2
}

// unquote removes surrounding double quotes if present.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
