package engagement

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/starpath-app/starpath/internal/domain"
)

// ComputeProgress returns round(100 * completed / total) over every task
// in the forest, subtasks included. A parent's completion is independent of
// its children; each node counts once. Empty input is 0.
func ComputeProgress(roots []*domain.TaskNode) int {
	total, completed := countTree(roots, 0)
	return percent(completed, total)
}

func countTree(nodes []*domain.TaskNode, depth int) (total, completed int) {
	if depth > domain.MaxTaskDepth*4 {
		return 0, 0 // malformed data; BuildTaskTree never produces this
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		total++
		if n.Completed {
			completed++
		}
		t, c := countTree(n.Subtasks, depth+1)
		total += t
		completed += c
	}
	return total, completed
}

// percent rounds half up: 2/3 -> 67, 1/2 -> 50.
func percent(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Floor(100*float64(completed)/float64(total) + 0.5))
}

// BuildTaskTree links flat task rows into a forest ordered by Position.
// Rows whose parent is missing are promoted to roots. Rows that sit on a
// parent cycle are unreachable from any root and are returned as roots too,
// so every row is counted exactly once.
func BuildTaskTree(flat []domain.Task) []*domain.TaskNode {
	nodes := make(map[string]*domain.TaskNode, len(flat))
	for _, t := range flat {
		nodes[t.ID] = &domain.TaskNode{Task: t}
	}

	var roots []*domain.TaskNode
	for _, t := range flat {
		n := nodes[t.ID]
		if t.IsRoot() {
			roots = append(roots, n)
			continue
		}
		parent, ok := nodes[*t.ParentTaskID]
		if !ok {
			roots = append(roots, n)
			continue
		}
		parent.Subtasks = append(parent.Subtasks, n)
	}

	// Anything not reachable from a root sits on a cycle: detach it.
	reached := make(map[string]bool, len(flat))
	var mark func(ns []*domain.TaskNode)
	mark = func(ns []*domain.TaskNode) {
		for _, n := range ns {
			if reached[n.ID] {
				continue
			}
			reached[n.ID] = true
			mark(n.Subtasks)
		}
	}
	mark(roots)
	for _, t := range flat {
		if !reached[t.ID] {
			n := nodes[t.ID]
			n.Subtasks = nil
			roots = append(roots, n)
			reached[t.ID] = true
		}
	}

	sortNodes(roots)
	return roots
}

func sortNodes(ns []*domain.TaskNode) {
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].Position < ns[j].Position })
	for _, n := range ns {
		sortNodes(n.Subtasks)
	}
}

// TaskDepth returns the 1-based depth of task id by walking parent links.
// It fails with ErrTaskCycle if the walk revisits a task.
func TaskDepth(byID map[string]domain.Task, id string) (int, error) {
	depth := 0
	seen := make(map[string]bool)
	for cur := id; cur != ""; {
		if seen[cur] {
			return 0, domain.ErrTaskCycle
		}
		seen[cur] = true
		depth++
		t, ok := byID[cur]
		if !ok || t.IsRoot() {
			break
		}
		cur = *t.ParentTaskID
	}
	return depth, nil
}

// SubtreeHeight returns how many levels the subtree rooted at id spans
// (1 for a leaf).
func SubtreeHeight(flat []domain.Task, id string) int {
	children := make(map[string][]string)
	for _, t := range flat {
		if !t.IsRoot() {
			children[*t.ParentTaskID] = append(children[*t.ParentTaskID], t.ID)
		}
	}
	var height func(string, map[string]bool) int
	height = func(cur string, seen map[string]bool) int {
		if seen[cur] {
			return 0
		}
		seen[cur] = true
		best := 0
		for _, c := range children[cur] {
			if h := height(c, seen); h > best {
				best = h
			}
		}
		return best + 1
	}
	return height(id, map[string]bool{})
}

// Descendants returns the ids of every task under id, id excluded.
func Descendants(flat []domain.Task, id string) []string {
	children := make(map[string][]string)
	for _, t := range flat {
		if !t.IsRoot() {
			children[*t.ParentTaskID] = append(children[*t.ParentTaskID], t.ID)
		}
	}
	var out []string
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range children[cur] {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// ValidatePlacement checks that placing task id under parentID keeps the
// tree acyclic and no deeper than domain.MaxTaskDepth. Pass id == "" for a
// task that does not exist yet.
func ValidatePlacement(flat []domain.Task, id, parentID string) error {
	if parentID == "" {
		if id == "" {
			return nil
		}
		if h := SubtreeHeight(flat, id); h > domain.MaxTaskDepth {
			return fmt.Errorf("%w: subtree spans %d levels", domain.ErrTaskTooDeep, h)
		}
		return nil
	}

	byID := make(map[string]domain.Task, len(flat))
	for _, t := range flat {
		byID[t.ID] = t
	}
	if _, ok := byID[parentID]; !ok {
		return fmt.Errorf("%w: parent task %s", domain.ErrNotFound, parentID)
	}

	if id != "" {
		if parentID == id {
			return domain.ErrTaskCycle
		}
		for _, d := range Descendants(flat, id) {
			if d == parentID {
				return domain.ErrTaskCycle
			}
		}
	}

	parentDepth, err := TaskDepth(byID, parentID)
	if err != nil {
		return err
	}
	height := 1
	if id != "" {
		height = SubtreeHeight(flat, id)
	}
	if parentDepth+height > domain.MaxTaskDepth {
		return fmt.Errorf("%w: max depth is %d", domain.ErrTaskTooDeep, domain.MaxTaskDepth)
	}
	return nil
}

// GoalStatusFor derives the goal status from progress. Status is a pure
// function of progress: 100 means completed (unless archived), and a
// completed goal whose progress falls below 100 is demoted to active.
// at_risk and archived are otherwise left alone.
func GoalStatusFor(current domain.GoalStatus, progress int) domain.GoalStatus {
	if current == domain.GoalArchived {
		return current
	}
	if progress >= 100 {
		return domain.GoalCompleted
	}
	if current == domain.GoalCompleted || current == "" {
		return domain.GoalActive
	}
	return current
}

// GoalTypeFor returns long_term iff the deadline is more than
// LongTermThresholdDays away, counting partial days up. No deadline is
// short_term.
func GoalTypeFor(deadline *time.Time, now time.Time) domain.GoalType {
	if deadline == nil {
		return domain.GoalShortTerm
	}
	days := math.Ceil(deadline.Sub(now).Hours() / 24)
	if days > domain.LongTermThresholdDays {
		return domain.GoalLongTerm
	}
	return domain.GoalShortTerm
}

// Recompute refreshes the derived fields of g from its task rows.
func Recompute(g domain.Goal, tasks []domain.Task, now time.Time) domain.Goal {
	g.Tasks = BuildTaskTree(tasks)
	g.Progress = ComputeProgress(g.Tasks)
	g.Status = GoalStatusFor(g.Status, g.Progress)
	g.GoalType = GoalTypeFor(g.Deadline, now)
	return g
}
