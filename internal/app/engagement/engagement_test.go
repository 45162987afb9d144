package engagement_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/starpath-app/starpath/internal/app/engagement"
	"github.com/starpath-app/starpath/internal/domain"
)

var base = time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)

func day(n int) time.Time { return domain.Day(base.AddDate(0, 0, n)) }

func days(ns ...int) []time.Time {
	out := make([]time.Time, len(ns))
	for i, n := range ns {
		out[i] = day(n)
	}
	return out
}

func events(ns ...int) []domain.CompletionEvent {
	out := make([]domain.CompletionEvent, len(ns))
	for i, n := range ns {
		out[i] = domain.CompletionEvent{HabitID: "h", Day: day(n), XPAwarded: 10}
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestCurrentStreak(t *testing.T) {
	tests := []struct {
		name string
		days []time.Time
		now  time.Time
		want int
	}{
		{"empty", nil, day(0), 0},
		{"today only", days(0), day(0), 1},
		{"yesterday only", days(0), day(1), 1},
		{"two days ago", days(0), day(2), 0},
		{"consecutive ending today", days(0, 1, 2, 3), day(3), 4},
		{"consecutive ending yesterday", days(0, 1, 2, 3), day(4), 4},
		{"gap stops the count", days(0, 1, 3, 4), day(4), 2},
		{"unsorted input", days(4, 2, 3), day(4), 3},
		{"duplicates ignored", append(days(1, 2), day(2).Add(5*time.Hour)), day(2), 2},
		{"future day is not live", days(5), day(4), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engagement.CurrentStreak(tt.days, tt.now); got != tt.want {
				t.Errorf("CurrentStreak = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStreak_BreakScenario(t *testing.T) {
	// Completed day 1 and day 2, nothing on day 3, evaluated on day 4.
	stats := engagement.RecomputeFromLedger(events(1, 2), day(4))
	if stats.Streak != 0 {
		t.Errorf("streak = %d, want 0", stats.Streak)
	}
	if stats.TotalCompletions != 2 {
		t.Errorf("total = %d, want 2", stats.TotalCompletions)
	}
	if stats.BestStreak != 2 {
		t.Errorf("best = %d, want 2", stats.BestStreak)
	}
}

func TestLongestRun(t *testing.T) {
	if got := engagement.LongestRun(days(0, 1, 2, 5, 6, 10)); got != 3 {
		t.Errorf("LongestRun = %d, want 3", got)
	}
	if got := engagement.LongestRun(nil); got != 0 {
		t.Errorf("LongestRun(nil) = %d, want 0", got)
	}
}

func TestMergeStats_BestNeverDecreases(t *testing.T) {
	h := domain.Habit{Streak: 2, BestStreak: 9, TotalCompletions: 12}
	h = engagement.MergeStats(h, engagement.LedgerStats{Streak: 1, BestStreak: 3, TotalCompletions: 11})
	if h.BestStreak != 9 {
		t.Errorf("best = %d, want 9", h.BestStreak)
	}
	if h.Streak != 1 || h.TotalCompletions != 11 {
		t.Errorf("streak/total = %d/%d, want 1/11", h.Streak, h.TotalCompletions)
	}
}

func TestStreak_NewHabitStartsAtOne(t *testing.T) {
	h := domain.Habit{}
	if h.Streak != 0 || h.BestStreak != 0 {
		t.Fatal("zero habit should have zero streaks")
	}
	h = engagement.MergeStats(h, engagement.RecomputeFromLedger(events(0), day(0)))
	if h.Streak != 1 || h.BestStreak != 1 {
		t.Errorf("after first completion streak/best = %d/%d, want 1/1", h.Streak, h.BestStreak)
	}
}

// TestIncrementalStreak_MatchesRecompute drives random toggle sequences and
// checks the fast path never diverges from full recomputation, and that
// streak <= best holds after every operation.
func TestIncrementalStreak_MatchesRecompute(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		ledger := map[int]bool{}
		habit := domain.Habit{}
		bestSoFar := 0

		for d := 0; d < 40; d++ {
			now := day(d)
			for op := 0; op < 2; op++ {
				switch rng.Intn(4) {
				case 0, 1: // complete today
					if ledger[d] {
						continue
					}
					prevLatest := latest(ledger)
					ledger[d] = true
					full := engagement.RecomputeFromLedger(toEvents(ledger), now)
					if fast, ok := engagement.IncrementalStreak(habit.Streak, prevLatest, now, now); ok && fast != full.Streak {
						t.Fatalf("run %d day %d: fast=%d full=%d", run, d, fast, full.Streak)
					}
					habit = engagement.MergeStats(habit, full)
				case 2: // undo a recent day
					back := d - rng.Intn(3)
					if back < 0 || !ledger[back] {
						continue
					}
					delete(ledger, back)
					habit = engagement.MergeStats(habit, engagement.RecomputeFromLedger(toEvents(ledger), now))
				}
				if habit.Streak > habit.BestStreak {
					t.Fatalf("run %d day %d: streak %d > best %d", run, d, habit.Streak, habit.BestStreak)
				}
				if habit.BestStreak < bestSoFar {
					t.Fatalf("run %d day %d: best decreased %d -> %d", run, d, bestSoFar, habit.BestStreak)
				}
				bestSoFar = habit.BestStreak
			}
		}
	}
}

func TestIncrementalStreak_RefusesBackfill(t *testing.T) {
	prev := day(5)
	if _, ok := engagement.IncrementalStreak(3, &prev, day(3), day(5)); ok {
		t.Error("backfill must not use the fast path")
	}
}

func latest(ledger map[int]bool) *time.Time {
	best := -1
	for d := range ledger {
		if d > best {
			best = d
		}
	}
	if best < 0 {
		return nil
	}
	t := day(best)
	return &t
}

func toEvents(ledger map[int]bool) []domain.CompletionEvent {
	var ns []int
	for d := range ledger {
		ns = append(ns, d)
	}
	return events(ns...)
}

// ═══════════════════════════════════════════════════════════════════════════
// XP / Level Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestApplyXP_LevelUpBoundary(t *testing.T) {
	p := domain.Profile{XP: 490, Level: 1}
	res := engagement.ApplyXP(p, 20)
	if res.Profile.XP != 10 || res.Profile.Level != 2 {
		t.Errorf("got xp=%d level=%d, want xp=10 level=2", res.Profile.XP, res.Profile.Level)
	}
	if !res.LeveledUp || res.NewLevel != 2 {
		t.Errorf("LeveledUp=%v NewLevel=%d, want true/2", res.LeveledUp, res.NewLevel)
	}
	if res.Profile.TotalXP != 20 {
		t.Errorf("TotalXP = %d, want 20", res.Profile.TotalXP)
	}
}

func TestApplyXP_MultipleLevels(t *testing.T) {
	res := engagement.ApplyXP(domain.NewProfile("u"), 1234)
	if res.Profile.Level != 3 || res.Profile.XP != 234 {
		t.Errorf("got level=%d xp=%d, want 3/234", res.Profile.Level, res.Profile.XP)
	}
}

func TestApplyXP_RoundTrip(t *testing.T) {
	deltas := []int64{1, 10, 499, 500, 501, 1700}
	starts := []domain.Profile{
		{XP: 0, Level: 1}, {XP: 250, Level: 1}, {XP: 499, Level: 4}, {XP: 5, Level: 7},
	}
	for _, start := range starts {
		for _, d := range deltas {
			up := engagement.ApplyXP(start, d)
			down := engagement.ApplyXP(up.Profile, -d)
			if down.Profile.XP != start.XP || down.Profile.Level != start.Level {
				t.Errorf("start %+v delta %d: got xp=%d level=%d", start, d, down.Profile.XP, down.Profile.Level)
			}
			if down.Profile.TotalXP != start.TotalXP+d {
				t.Errorf("TotalXP must not be decremented on undo: got %d", down.Profile.TotalXP)
			}
		}
	}
}

func TestApplyXP_FloorAtLevelOne(t *testing.T) {
	res := engagement.ApplyXP(domain.Profile{XP: 30, Level: 1, TotalXP: 30}, -100)
	if res.Profile.XP != 0 || res.Profile.Level != 1 {
		t.Errorf("got xp=%d level=%d, want 0/1", res.Profile.XP, res.Profile.Level)
	}
	if res.Profile.TotalXP != 30 {
		t.Errorf("TotalXP = %d, want 30", res.Profile.TotalXP)
	}
}

func TestApplyXP_LevelDown(t *testing.T) {
	res := engagement.ApplyXP(domain.Profile{XP: 10, Level: 2}, -20)
	if res.Profile.XP != 490 || res.Profile.Level != 1 || !res.LeveledDown {
		t.Errorf("got %+v leveledDown=%v, want xp=490 level=1", res.Profile, res.LeveledDown)
	}
}

func TestApplyXP_InvariantHolds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := domain.NewProfile("u")
	for i := 0; i < 5000; i++ {
		p = engagement.ApplyXP(p, int64(rng.Intn(1500)-700)).Profile
		if p.XP < 0 || p.XP >= domain.XPPerLevel || p.Level < 1 {
			t.Fatalf("invariant broken at step %d: %+v", i, p)
		}
	}
}

func TestCumulativeXP(t *testing.T) {
	if got := engagement.CumulativeXP(domain.Profile{XP: 40, Level: 3}); got != 1040 {
		t.Errorf("CumulativeXP = %d, want 1040", got)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Tests
// ═══════════════════════════════════════════════════════════════════════════

func task(id string, done bool, parent string, pos int) domain.Task {
	t := domain.Task{ID: id, Title: id, Completed: done, Position: pos}
	if parent != "" {
		p := parent
		t.ParentTaskID = &p
	}
	return t
}

func TestComputeProgress_Examples(t *testing.T) {
	tests := []struct {
		name  string
		tasks []domain.Task
		want  int
	}{
		{"empty", nil, 0},
		{"two of three", []domain.Task{task("a", true, "", 0), task("b", true, "", 1), task("c", false, "", 2)}, 67},
		{"one of two", []domain.Task{task("a", true, "", 0), task("b", false, "", 1)}, 50},
		{"single done", []domain.Task{task("a", true, "", 0)}, 100},
		{"one of three", []domain.Task{task("a", true, "", 0), task("b", false, "", 1), task("c", false, "", 2)}, 33},
		{"one of eight rounds half up", []domain.Task{
			task("a", true, "", 0), task("b", false, "", 1), task("c", false, "", 2), task("d", false, "", 3),
			task("e", false, "", 4), task("f", false, "", 5), task("g", false, "", 6), task("h", false, "", 7),
		}, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := engagement.BuildTaskTree(tt.tasks)
			if got := engagement.ComputeProgress(tree); got != tt.want {
				t.Errorf("ComputeProgress = %d, want %d", got, tt.want)
			}
			if again := engagement.ComputeProgress(tree); again != tt.want {
				t.Errorf("second call = %d, want %d", again, tt.want)
			}
		})
	}
}

func TestComputeProgress_Nested(t *testing.T) {
	// A done; B not done with subtask B1 done -> 2 of 3.
	tasks := []domain.Task{task("A", true, "", 0), task("B", false, "", 1), task("B1", true, "B", 0)}
	tree := engagement.BuildTaskTree(tasks)
	if len(tree) != 2 || len(tree[1].Subtasks) != 1 {
		t.Fatalf("unexpected tree shape: %d roots", len(tree))
	}
	if got := engagement.ComputeProgress(tree); got != 67 {
		t.Errorf("progress = %d, want 67", got)
	}
}

func TestBuildTaskTree_OrdersByPosition(t *testing.T) {
	tree := engagement.BuildTaskTree([]domain.Task{task("b", false, "", 2), task("a", false, "", 1)})
	if tree[0].ID != "a" || tree[1].ID != "b" {
		t.Errorf("order = %s,%s, want a,b", tree[0].ID, tree[1].ID)
	}
}

func TestBuildTaskTree_CycleCountsEachRowOnce(t *testing.T) {
	tasks := []domain.Task{task("x", true, "y", 0), task("y", false, "x", 0), task("r", true, "", 0)}
	tree := engagement.BuildTaskTree(tasks)
	if got := engagement.ComputeProgress(tree); got != 67 {
		t.Errorf("progress = %d, want 67 (every row once)", got)
	}
}

func TestValidatePlacement(t *testing.T) {
	flat := []domain.Task{
		task("a", false, "", 0),
		task("b", false, "a", 0),
		task("c", false, "b", 0),
		task("d", false, "", 1),
	}
	tests := []struct {
		name   string
		id     string
		parent string
		want   error
	}{
		{"new root", "", "", nil},
		{"new under depth 2", "", "b", nil},
		{"new under depth 3", "", "c", domain.ErrTaskTooDeep},
		{"self parent", "a", "a", domain.ErrTaskCycle},
		{"under own descendant", "a", "c", domain.ErrTaskCycle},
		{"move subtree too deep", "a", "d", domain.ErrTaskTooDeep},
		{"move leaf under root", "c", "d", nil},
		{"missing parent", "", "zz", domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engagement.ValidatePlacement(flat, tt.id, tt.parent)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGoalStatusFor(t *testing.T) {
	tests := []struct {
		cur      domain.GoalStatus
		progress int
		want     domain.GoalStatus
	}{
		{domain.GoalActive, 100, domain.GoalCompleted},
		{domain.GoalAtRisk, 100, domain.GoalCompleted},
		{domain.GoalArchived, 100, domain.GoalArchived},
		{domain.GoalCompleted, 67, domain.GoalActive},
		{domain.GoalAtRisk, 50, domain.GoalAtRisk},
		{domain.GoalActive, 0, domain.GoalActive},
	}
	for _, tt := range tests {
		if got := engagement.GoalStatusFor(tt.cur, tt.progress); got != tt.want {
			t.Errorf("GoalStatusFor(%s, %d) = %s, want %s", tt.cur, tt.progress, got, tt.want)
		}
	}
}

func TestGoalTypeFor_Boundary(t *testing.T) {
	now := base
	d30 := now.AddDate(0, 0, 30)
	d31 := now.AddDate(0, 0, 31)
	if got := engagement.GoalTypeFor(&d30, now); got != domain.GoalShortTerm {
		t.Errorf("30 days = %s, want short_term", got)
	}
	if got := engagement.GoalTypeFor(&d31, now); got != domain.GoalLongTerm {
		t.Errorf("31 days = %s, want long_term", got)
	}
	if got := engagement.GoalTypeFor(nil, now); got != domain.GoalShortTerm {
		t.Errorf("no deadline = %s, want short_term", got)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestEvaluate_UnlocksOnThreshold(t *testing.T) {
	catalog := []domain.Achievement{
		{ID: "one", RequirementType: domain.ReqHabitsCompleted, RequirementValue: 1, XPReward: 10},
		{ID: "ten", RequirementType: domain.ReqHabitsCompleted, RequirementValue: 10, XPReward: 10},
	}
	res := engagement.Evaluate(domain.NewProfile("u"), domain.Metrics{HabitsCompleted: 1}, catalog, nil)
	if len(res.Unlocked) != 1 || res.Unlocked[0].ID != "one" {
		t.Fatalf("unlocked = %+v, want [one]", res.Unlocked)
	}
	if res.Profile.XP != 10 || res.Profile.TotalXP != 10 {
		t.Errorf("reward not applied: %+v", res.Profile)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	catalog := engagement.DefaultCatalog()
	m := domain.Metrics{HabitsCompleted: 60}
	first := engagement.Evaluate(domain.NewProfile("u"), m, catalog, nil)
	if len(first.Unlocked) == 0 {
		t.Fatal("expected unlocks")
	}
	unlocked := map[string]bool{}
	for _, a := range first.Unlocked {
		unlocked[a.ID] = true
	}
	m.HabitsCompleted = 70 // higher-qualifying profile
	second := engagement.Evaluate(first.Profile, m, catalog, unlocked)
	for _, a := range second.Unlocked {
		if unlocked[a.ID] {
			t.Errorf("duplicate unlock %s", a.ID)
		}
	}
}

func TestEvaluate_RewardCascadesIntoLevelAchievement(t *testing.T) {
	// level_2 appears first in the catalog; the big reward only arrives later
	// in the same evaluation, so a second pass must pick it up.
	catalog := []domain.Achievement{
		{ID: "level_2", RequirementType: domain.ReqLevelReached, RequirementValue: 2, XPReward: 5},
		{ID: "big", RequirementType: domain.ReqStreakDays, RequirementValue: 1, XPReward: 600},
	}
	p := domain.NewProfile("u")
	p.Streak = 1
	res := engagement.Evaluate(p, domain.Metrics{}, catalog, nil)
	if len(res.Unlocked) != 2 || res.Unlocked[0].ID != "big" || res.Unlocked[1].ID != "level_2" {
		t.Fatalf("unlocked = %+v", res.Unlocked)
	}
	if !res.LeveledUp || res.Profile.Level != 2 || res.Profile.XP != 105 {
		t.Errorf("profile = %+v leveledUp=%v", res.Profile, res.LeveledUp)
	}
}

func TestEvaluate_SkipsUnsupportedRequirement(t *testing.T) {
	catalog := []domain.Achievement{
		{ID: "future", RequirementType: "friends_added", RequirementValue: 0, XPReward: 10},
	}
	res := engagement.Evaluate(domain.NewProfile("u"), domain.Metrics{}, catalog, nil)
	if len(res.Unlocked) != 0 {
		t.Errorf("unsupported requirement unlocked: %+v", res.Unlocked)
	}
}

func TestDefaultCatalog_UniqueIDs(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range engagement.DefaultCatalog() {
		if seen[a.ID] {
			t.Errorf("duplicate achievement id %s", a.ID)
		}
		seen[a.ID] = true
		if _, ok := engagement.MetricValue(a.RequirementType, domain.Profile{}, domain.Metrics{}); !ok {
			t.Errorf("%s uses unsupported requirement %s", a.ID, a.RequirementType)
		}
	}
}
