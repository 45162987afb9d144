package engagement

import "github.com/starpath-app/starpath/internal/domain"

// EvalResult is the outcome of one achievement evaluation.
type EvalResult struct {
	Profile   domain.Profile       `json:"profile"`
	Unlocked  []domain.Achievement `json:"unlocked"`
	XPResults []XPResult           `json:"-"`
	LeveledUp bool                 `json:"leveled_up"`
}

// Evaluate unlocks every catalog entry whose metric meets its threshold and
// is not in unlocked. Entries are processed strictly in catalog order and
// each reward goes through ApplyXP before the next entry is tested. Reward
// XP can raise the level and satisfy a later (or earlier) level_reached
// entry, so passes repeat until nothing new unlocks. Unsupported requirement
// types are skipped without error. unlocked is not modified.
func Evaluate(p domain.Profile, m domain.Metrics, catalog []domain.Achievement, unlocked map[string]bool) EvalResult {
	res := EvalResult{Profile: p}
	seen := make(map[string]bool, len(unlocked))
	for id, ok := range unlocked {
		if ok {
			seen[id] = true
		}
	}

	for {
		progressed := false
		for _, a := range catalog {
			if seen[a.ID] {
				continue
			}
			value, ok := MetricValue(a.RequirementType, res.Profile, m)
			if !ok || value < a.RequirementValue {
				continue
			}
			seen[a.ID] = true
			res.Unlocked = append(res.Unlocked, a)
			progressed = true
			if a.XPReward > 0 {
				xr := ApplyXP(res.Profile, a.XPReward)
				res.Profile = xr.Profile
				res.XPResults = append(res.XPResults, xr)
				if xr.LeveledUp {
					res.LeveledUp = true
				}
			}
		}
		if !progressed {
			return res
		}
	}
}

// MetricValue selects the metric an achievement tests. ok is false for
// requirement types with no metric wired in.
func MetricValue(rt domain.RequirementType, p domain.Profile, m domain.Metrics) (int64, bool) {
	switch rt {
	case domain.ReqHabitsCompleted:
		return m.HabitsCompleted, true
	case domain.ReqTasksCompleted:
		return m.TasksCompleted, true
	case domain.ReqGoalsCompleted:
		return m.GoalsCompleted, true
	case domain.ReqStreakDays:
		return int64(p.Streak), true
	case domain.ReqLongestStreak:
		return int64(p.LongestStreak), true
	case domain.ReqLevelReached:
		return int64(p.Level), true
	case domain.ReqTotalXP:
		return p.TotalXP, true
	}
	return 0, false
}

// ─── Achievement Catalog ────────────────────────────────────────────────────

// DefaultCatalog returns the built-in achievement catalog in evaluation order.
func DefaultCatalog() []domain.Achievement {
	return []domain.Achievement{
		// Habits
		{ID: "first_step", Name: "First Step", Icon: "🌱", Description: "Complete a habit for the first time",
			RequirementType: domain.ReqHabitsCompleted, RequirementValue: 1, XPReward: 25},
		{ID: "habit_50", Name: "Creature of Habit", Icon: "🔁", Description: "Complete habits 50 times",
			RequirementType: domain.ReqHabitsCompleted, RequirementValue: 50, XPReward: 150},
		{ID: "habit_500", Name: "Habit Machine", Icon: "⚙️", Description: "Complete habits 500 times",
			RequirementType: domain.ReqHabitsCompleted, RequirementValue: 500, XPReward: 1000},

		// Streaks
		{ID: "streak_3", Name: "Warming Up", Icon: "🔥", Description: "Stay active 3 days in a row",
			RequirementType: domain.ReqStreakDays, RequirementValue: 3, XPReward: 30},
		{ID: "streak_7", Name: "Week Warrior", Icon: "📅", Description: "Stay active 7 days in a row",
			RequirementType: domain.ReqStreakDays, RequirementValue: 7, XPReward: 100},
		{ID: "streak_30", Name: "Monthly Machine", Icon: "💪", Description: "Stay active 30 days in a row",
			RequirementType: domain.ReqStreakDays, RequirementValue: 30, XPReward: 500},
		{ID: "streak_100", Name: "Centurion", Icon: "🏛️", Description: "Stay active 100 days in a row",
			RequirementType: domain.ReqLongestStreak, RequirementValue: 100, XPReward: 2000},

		// Goals
		{ID: "first_task", Name: "Getting Things Done", Icon: "✅", Description: "Finish a goal task",
			RequirementType: domain.ReqTasksCompleted, RequirementValue: 1, XPReward: 20},
		{ID: "first_goal", Name: "Goal Getter", Icon: "🎯", Description: "Complete a goal",
			RequirementType: domain.ReqGoalsCompleted, RequirementValue: 1, XPReward: 100},
		{ID: "goals_10", Name: "Visionary", Icon: "🔭", Description: "Complete 10 goals",
			RequirementType: domain.ReqGoalsCompleted, RequirementValue: 10, XPReward: 750},

		// Levels
		{ID: "level_5", Name: "Rising Star", Icon: "⭐", Description: "Reach level 5",
			RequirementType: domain.ReqLevelReached, RequirementValue: 5, XPReward: 100},
		{ID: "level_10", Name: "Star Path", Icon: "🌟", Description: "Reach level 10",
			RequirementType: domain.ReqLevelReached, RequirementValue: 10, XPReward: 250},
		{ID: "xp_10000", Name: "Ten Thousand", Icon: "💎", Description: "Earn 10,000 XP in total",
			RequirementType: domain.ReqTotalXP, RequirementValue: 10000, XPReward: 500},
	}
}
