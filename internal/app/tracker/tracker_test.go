package tracker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/starpath-app/starpath/internal/app/engagement"
	"github.com/starpath-app/starpath/internal/app/tracker"
	"github.com/starpath-app/starpath/internal/domain"
	"github.com/starpath-app/starpath/internal/infra/sqlite"
)

// ─── Fixtures ───────────────────────────────────────────────────────────────

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(t domain.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	tr    *tracker.Tracker
	db    *sqlite.DB
	clock *clock
	rec   *recorder
}

const day = 24 * time.Hour

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:    db,
		clock: &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
		rec:   &recorder{},
	}
	f.tr = tracker.New(db, tracker.Options{
		Events: f.rec,
		Cache:  tracker.NewCache(16),
		Now:    f.clock.Now,
	})
	return f
}

func (f *fixture) habit(t *testing.T, user string, xp int64) domain.Habit {
	t.Helper()
	h, err := f.tr.Habits.Create(context.Background(), user, tracker.HabitInput{Name: "Read", XPReward: xp})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return h
}

// ─── Habits ─────────────────────────────────────────────────────────────────

func TestHabitCreate_Defaults(t *testing.T) {
	f := newFixture(t)
	h := f.habit(t, "u1", 0)
	if h.Frequency != domain.FrequencyDaily || h.XPReward != tracker.DefaultHabitXP {
		t.Errorf("defaults = %s/%d", h.Frequency, h.XPReward)
	}
	if h.Streak != 0 || h.BestStreak != 0 || h.TotalCompletions != 0 {
		t.Errorf("new habit counters = %d/%d/%d, want zeros", h.Streak, h.BestStreak, h.TotalCompletions)
	}
}

func TestHabitCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   tracker.HabitInput
	}{
		{"empty name", tracker.HabitInput{Name: "   "}},
		{"bad frequency", tracker.HabitInput{Name: "Run", Frequency: "hourly"}},
		{"negative reward", tracker.HabitInput{Name: "Run", XPReward: -5}},
		{"huge reward", tracker.HabitInput{Name: "Run", XPReward: domain.MaxXPReward + 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.tr.Habits.Create(ctx, "u1", tt.in); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("Create() = %v, want ErrInvalidInput", err)
			}
		})
	}

	habits, err := f.tr.Habits.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(habits) != 0 {
		t.Errorf("rejected input left %d habits behind", len(habits))
	}
}

func TestHabit_RequiresUser(t *testing.T) {
	f := newFixture(t)
	if _, err := f.tr.Habits.List(context.Background(), ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("List(\"\") = %v, want ErrUnauthorized", err)
	}
}

func TestComplete_AwardsXPAndFirstAchievement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.habit(t, "u1", 10)

	res, err := f.tr.Habits.Complete(ctx, "u1", h.ID, f.clock.Now())
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if !res.Changed || !res.Completed {
		t.Fatalf("Changed=%v Completed=%v, want true/true", res.Changed, res.Completed)
	}
	if res.Habit.Streak != 1 || res.Habit.BestStreak != 1 || res.Habit.TotalCompletions != 1 {
		t.Errorf("habit counters = %d/%d/%d, want 1/1/1",
			res.Habit.Streak, res.Habit.BestStreak, res.Habit.TotalCompletions)
	}
	if len(res.Achievements) != 1 || res.Achievements[0].ID != "first_step" {
		t.Fatalf("achievements = %+v, want [first_step]", res.Achievements)
	}
	// 10 for the habit, 25 for first_step.
	if res.Profile.XP != 35 || res.Profile.TotalXP != 35 || res.Profile.Streak != 1 {
		t.Errorf("profile = %+v", res.Profile)
	}
	if f.rec.count(domain.EventHabitCompleted) != 1 || f.rec.count(domain.EventAchievementUnlocked) != 1 {
		t.Errorf("events = %+v", f.rec.events)
	}
}

func TestComplete_TwiceIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.habit(t, "u1", 10)
	today := f.clock.Now()

	first, err := f.tr.Habits.Complete(ctx, "u1", h.ID, today)
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	second, err := f.tr.Habits.Complete(ctx, "u1", h.ID, today)
	if err != nil {
		t.Fatalf("second Complete() error: %v", err)
	}
	if second.Changed {
		t.Error("second Complete() should be a no-op")
	}
	if second.Profile.XP != first.Profile.XP || second.Profile.TotalXP != first.Profile.TotalXP {
		t.Errorf("no-op charged XP: %+v -> %+v", first.Profile, second.Profile)
	}

	events, err := f.tr.Habits.Completions(ctx, "u1", h.ID)
	if err != nil {
		t.Fatalf("Completions() error: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("ledger has %d events, want 1", len(events))
	}
}

func TestComplete_ConcurrentDoubleToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.habit(t, "u1", 10)
	today := f.clock.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	changed := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.tr.Habits.Complete(ctx, "u1", h.ID, today)
			if err != nil {
				t.Errorf("Complete() error: %v", err)
				return
			}
			if res.Changed {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if changed != 1 {
		t.Errorf("changed = %d, want exactly 1", changed)
	}
	p, err := f.tr.Profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if p.TotalXP != 35 {
		t.Errorf("TotalXP = %d, want 35 (charged once)", p.TotalXP)
	}
}

func TestToggle_RoundTripKeepsTotalXP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.habit(t, "u1", 10)
	today := f.clock.Now()

	on, err := f.tr.Habits.Toggle(ctx, "u1", h.ID, today)
	if err != nil {
		t.Fatalf("Toggle() error: %v", err)
	}
	off, err := f.tr.Habits.Toggle(ctx, "u1", h.ID, today)
	if err != nil {
		t.Fatalf("second Toggle() error: %v", err)
	}
	if off.Completed || !off.Changed || off.XPDelta != -10 {
		t.Fatalf("undo result = %+v", off)
	}
	if off.Profile.XP != on.Profile.XP-10 {
		t.Errorf("XP after undo = %d, want %d", off.Profile.XP, on.Profile.XP-10)
	}
	if off.Profile.TotalXP != on.Profile.TotalXP {
		t.Errorf("TotalXP changed on undo: %d -> %d", on.Profile.TotalXP, off.Profile.TotalXP)
	}
	if off.Habit.Streak != 0 || off.Habit.TotalCompletions != 0 || off.Habit.BestStreak != 1 {
		t.Errorf("habit after undo = %+v", off.Habit)
	}
}

func TestUndoUsesSnapshotXP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.habit(t, "u1", 10)
	today := f.clock.Now()

	if _, err := f.tr.Habits.Complete(ctx, "u1", h.ID, today); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	reward := int64(40)
	if _, err := f.tr.Habits.Update(ctx, "u1", h.ID, tracker.HabitPatch{XPReward: &reward}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	res, err := f.tr.Habits.Uncomplete(ctx, "u1", h.ID, today)
	if err != nil {
		t.Fatalf("Uncomplete() error: %v", err)
	}
	if res.XPDelta != -10 {
		t.Errorf("XPDelta = %d, want -10 (the awarded snapshot)", res.XPDelta)
	}
}

func TestStreak_AcrossDaysAndUndoMiddleDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.habit(t, "u1", 10)
	start := f.clock.Now()

	var res tracker.ToggleResult
	var err error
	for i := 0; i < 3; i++ {
		if i > 0 {
			f.clock.Advance(day)
		}
		if res, err = f.tr.Habits.Complete(ctx, "u1", h.ID, f.clock.Now()); err != nil {
			t.Fatalf("Complete(day %d) error: %v", i, err)
		}
	}
	if res.Habit.Streak != 3 || res.Profile.Streak != 3 {
		t.Fatalf("streak = %d (profile %d), want 3", res.Habit.Streak, res.Profile.Streak)
	}
	foundStreak3 := false
	for _, a := range res.Achievements {
		if a.ID == "streak_3" {
			foundStreak3 = true
		}
	}
	if !foundStreak3 {
		t.Errorf("streak_3 should unlock on day 3, got %+v", res.Achievements)
	}

	// Undo the middle day: the streak splits and must be fully recomputed.
	undo, err := f.tr.Habits.Uncomplete(ctx, "u1", h.ID, start.Add(day))
	if err != nil {
		t.Fatalf("Uncomplete() error: %v", err)
	}
	if undo.Habit.Streak != 1 || undo.Habit.BestStreak != 3 || undo.Habit.TotalCompletions != 2 {
		t.Errorf("after undo counters = %d/%d/%d, want 1/3/2",
			undo.Habit.Streak, undo.Habit.BestStreak, undo.Habit.TotalCompletions)
	}
	if undo.Profile.LongestStreak != 3 {
		t.Errorf("LongestStreak = %d, want 3", undo.Profile.LongestStreak)
	}
}

func TestStreak_BreaksAtReadTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.habit(t, "u1", 10)

	for i := 0; i < 2; i++ {
		if i > 0 {
			f.clock.Advance(day)
		}
		if _, err := f.tr.Habits.Complete(ctx, "u1", h.ID, f.clock.Now()); err != nil {
			t.Fatalf("Complete() error: %v", err)
		}
	}
	f.clock.Advance(2 * day) // day 3 missed, evaluated on day 4

	got, err := f.tr.Habits.Get(ctx, "u1", h.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Streak != 0 || got.TotalCompletions != 2 || got.BestStreak != 2 {
		t.Errorf("counters = %d/%d/%d, want 0/2/2", got.Streak, got.TotalCompletions, got.BestStreak)
	}
	p, err := f.tr.Profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Profiles.Get() error: %v", err)
	}
	if p.Streak != 0 || p.LongestStreak != 2 {
		t.Errorf("profile streak = %d/%d, want 0/2", p.Streak, p.LongestStreak)
	}
}

func TestComplete_RejectsFutureDay(t *testing.T) {
	f := newFixture(t)
	h := f.habit(t, "u1", 10)
	_, err := f.tr.Habits.Complete(context.Background(), "u1", h.ID, f.clock.Now().Add(day))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Complete(tomorrow) = %v, want ErrInvalidInput", err)
	}
}

func TestComplete_OtherUsersHabit(t *testing.T) {
	f := newFixture(t)
	h := f.habit(t, "u1", 10)
	_, err := f.tr.Habits.Complete(context.Background(), "intruder", h.ID, f.clock.Now())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Complete(other user) = %v, want ErrNotFound", err)
	}
}

func TestComplete_LevelUpEvent(t *testing.T) {
	f := newFixture(t)
	h := f.habit(t, "u1", domain.MaxXPReward)

	res, err := f.tr.Habits.Complete(context.Background(), "u1", h.ID, f.clock.Now())
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	// 1000 + 25 (first_step) = 1025 -> level 3, 25 xp.
	if !res.LeveledUp || res.NewLevel != 3 || res.Profile.XP != 25 {
		t.Errorf("outcome = %+v", res.Outcome)
	}
	if f.rec.count(domain.EventLevelUp) != 1 {
		t.Errorf("level_up events = %d, want 1", f.rec.count(domain.EventLevelUp))
	}
}

func TestDeleteHabit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.habit(t, "u1", 10)
	if _, err := f.tr.Habits.Complete(ctx, "u1", h.ID, f.clock.Now()); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if err := f.tr.Habits.Delete(ctx, "u1", h.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := f.tr.Habits.Get(ctx, "u1", h.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}
	p, err := f.tr.Profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Profiles.Get() error: %v", err)
	}
	if p.TotalXP != 35 || p.Streak != 0 {
		t.Errorf("profile after delete = %+v, want earned XP kept and streak 0", p)
	}
}

// ─── Goals ──────────────────────────────────────────────────────────────────

func TestGoal_ProgressStatusAndXP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, err := f.tr.Goals.CreateGoal(ctx, "u1", tracker.GoalInput{Title: "Learn Go"})
	if err != nil {
		t.Fatalf("CreateGoal() error: %v", err)
	}
	if g.Status != domain.GoalActive || g.Progress != 0 || g.GoalType != domain.GoalShortTerm {
		t.Fatalf("new goal = %+v", g)
	}

	a := addTask(t, f, g.ID, "A", "")
	b := addTask(t, f, g.ID, "B", "")
	b1 := addTask(t, f, g.ID, "B1", b)

	toggle(t, f, g.ID, a)
	res := toggle(t, f, g.ID, b1)
	if res.Goal.Progress != 67 || res.Goal.Status != domain.GoalActive {
		t.Fatalf("progress/status = %d/%s, want 67/active", res.Goal.Progress, res.Goal.Status)
	}

	done := toggle(t, f, g.ID, b)
	if done.Goal.Progress != 100 || done.Goal.Status != domain.GoalCompleted {
		t.Fatalf("progress/status = %d/%s, want 100/completed", done.Goal.Progress, done.Goal.Status)
	}
	if done.XPDelta != 60 {
		t.Errorf("XPDelta = %d, want 60 (task 10 + goal 50)", done.XPDelta)
	}

	reopened := toggle(t, f, g.ID, b)
	if reopened.Goal.Status != domain.GoalActive || reopened.Goal.Progress != 67 {
		t.Errorf("reopened = %d/%s, want 67/active", reopened.Goal.Progress, reopened.Goal.Status)
	}
	if reopened.XPDelta != -60 {
		t.Errorf("XPDelta = %d, want -60", reopened.XPDelta)
	}
	if got := engagement.CumulativeXP(reopened.Profile) - engagement.CumulativeXP(done.Profile); got != -60 {
		t.Errorf("cumulative XP moved by %d, want -60", got)
	}

	full, err := f.tr.Goals.GetGoal(ctx, "u1", g.ID)
	if err != nil {
		t.Fatalf("GetGoal() error: %v", err)
	}
	if len(full.Tasks) != 2 || len(full.Tasks[1].Subtasks) != 1 {
		t.Errorf("tree shape = %d roots", len(full.Tasks))
	}
}

func TestGoal_LongTermBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d30 := f.clock.Now().Add(30 * day)
	d31 := f.clock.Now().Add(31 * day)

	short, err := f.tr.Goals.CreateGoal(ctx, "u1", tracker.GoalInput{Title: "Sprint", Deadline: &d30})
	if err != nil {
		t.Fatalf("CreateGoal() error: %v", err)
	}
	long, err := f.tr.Goals.CreateGoal(ctx, "u1", tracker.GoalInput{Title: "Marathon", Deadline: &d31})
	if err != nil {
		t.Fatalf("CreateGoal() error: %v", err)
	}
	if short.GoalType != domain.GoalShortTerm || long.GoalType != domain.GoalLongTerm {
		t.Errorf("types = %s/%s, want short_term/long_term", short.GoalType, long.GoalType)
	}
}

func TestTask_DepthAndCycles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, err := f.tr.Goals.CreateGoal(ctx, "u1", tracker.GoalInput{Title: "Tree"})
	if err != nil {
		t.Fatalf("CreateGoal() error: %v", err)
	}
	a := addTask(t, f, g.ID, "A", "")
	a1 := addTask(t, f, g.ID, "A1", a)
	a2 := addTask(t, f, g.ID, "A2", a1)

	_, err = f.tr.Goals.AddTask(ctx, "u1", g.ID, tracker.TaskInput{Title: "too deep", ParentTaskID: a2})
	if !errors.Is(err, domain.ErrTaskTooDeep) {
		t.Errorf("AddTask(depth 4) = %v, want ErrTaskTooDeep", err)
	}
	if _, err := f.tr.Goals.MoveTask(ctx, "u1", g.ID, a, a2); !errors.Is(err, domain.ErrTaskCycle) {
		t.Errorf("MoveTask(under descendant) = %v, want ErrTaskCycle", err)
	}
	if _, err := f.tr.Goals.MoveTask(ctx, "u1", g.ID, a2, ""); err != nil {
		t.Errorf("MoveTask(to root) error: %v", err)
	}
}

func TestTask_ParentFromOtherGoal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g1, _ := f.tr.Goals.CreateGoal(ctx, "u1", tracker.GoalInput{Title: "One"})
	g2, _ := f.tr.Goals.CreateGoal(ctx, "u1", tracker.GoalInput{Title: "Two"})
	p := addTask(t, f, g1.ID, "P", "")

	_, err := f.tr.Goals.AddTask(ctx, "u1", g2.ID, tracker.TaskInput{Title: "child", ParentTaskID: p})
	if !errors.Is(err, domain.ErrWrongGoal) {
		t.Errorf("AddTask(foreign parent) = %v, want ErrWrongGoal", err)
	}
}

func TestDeleteTask_RemovesSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, _ := f.tr.Goals.CreateGoal(ctx, "u1", tracker.GoalInput{Title: "Prune"})
	a := addTask(t, f, g.ID, "A", "")
	addTask(t, f, g.ID, "A1", a)
	b := addTask(t, f, g.ID, "B", "")
	toggle(t, f, g.ID, b)

	res, err := f.tr.Goals.DeleteTask(ctx, "u1", g.ID, a)
	if err != nil {
		t.Fatalf("DeleteTask() error: %v", err)
	}
	if len(res.Goal.Tasks) != 1 || res.Goal.Progress != 100 || res.Goal.Status != domain.GoalCompleted {
		t.Errorf("after delete: %d roots, progress %d, status %s", len(res.Goal.Tasks), res.Goal.Progress, res.Goal.Status)
	}
	if res.XPDelta != 50 {
		t.Errorf("XPDelta = %d, want 50 (goal reached 100%%)", res.XPDelta)
	}
}

func TestArchivedGoal_RejectsTaskChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, _ := f.tr.Goals.CreateGoal(ctx, "u1", tracker.GoalInput{Title: "Shelved"})
	if _, err := f.tr.Goals.ArchiveGoal(ctx, "u1", g.ID); err != nil {
		t.Fatalf("ArchiveGoal() error: %v", err)
	}
	_, err := f.tr.Goals.AddTask(ctx, "u1", g.ID, tracker.TaskInput{Title: "late"})
	if !errors.Is(err, domain.ErrGoalArchived) {
		t.Errorf("AddTask(archived) = %v, want ErrGoalArchived", err)
	}
}

func TestUpdateGoal_CannotSetCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, _ := f.tr.Goals.CreateGoal(ctx, "u1", tracker.GoalInput{Title: "Cheat"})
	completed := domain.GoalCompleted
	_, err := f.tr.Goals.UpdateGoal(ctx, "u1", g.ID, tracker.GoalPatch{Status: &completed})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("UpdateGoal(completed) = %v, want ErrInvalidInput", err)
	}
}

func addTask(t *testing.T, f *fixture, goalID, title, parent string) string {
	t.Helper()
	res, err := f.tr.Goals.AddTask(context.Background(), "u1", goalID, tracker.TaskInput{Title: title, ParentTaskID: parent})
	if err != nil {
		t.Fatalf("AddTask(%s) error: %v", title, err)
	}
	return res.Task.ID
}

func toggle(t *testing.T, f *fixture, goalID, taskID string) tracker.GoalResult {
	t.Helper()
	res, err := f.tr.Goals.ToggleTask(context.Background(), "u1", goalID, taskID)
	if err != nil {
		t.Fatalf("ToggleTask() error: %v", err)
	}
	return res
}

// ─── Profile ────────────────────────────────────────────────────────────────

func TestProfile_LazyCreateAndPremium(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.tr.Profiles.Get(ctx, "fresh")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if p.Level != 1 || p.XP != 0 || p.IsPremium {
		t.Errorf("fresh profile = %+v", p)
	}
	if _, err := f.tr.Profiles.SetPremium(ctx, "fresh", true); err != nil {
		t.Fatalf("SetPremium() error: %v", err)
	}
	premium, err := f.tr.Profiles.IsPremium(ctx, "fresh")
	if err != nil || !premium {
		t.Errorf("IsPremium() = %v, %v; want true", premium, err)
	}
}

func TestProfile_AchievementsCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.habit(t, "u1", 10)
	if _, err := f.tr.Habits.Complete(ctx, "u1", h.ID, f.clock.Now()); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	list, err := f.tr.Profiles.Achievements(ctx, "u1")
	if err != nil {
		t.Fatalf("Achievements() error: %v", err)
	}
	if len(list) != len(engagement.DefaultCatalog()) {
		t.Fatalf("len = %d, want full catalog", len(list))
	}
	unlocked := 0
	for _, a := range list {
		if a.Unlocked {
			unlocked++
			if a.ID != "first_step" || a.UnlockedAt == nil {
				t.Errorf("unexpected unlock %+v", a)
			}
		}
	}
	if unlocked != 1 {
		t.Errorf("unlocked = %d, want 1", unlocked)
	}
}

func TestVerifyAndRepair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.habit(t, "u1", 10)
	if _, err := f.tr.Habits.Complete(ctx, "u1", h.ID, f.clock.Now()); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	// Corrupt the cached counters behind the tracker's back.
	if err := f.db.WithTx(ctx, func(tx domain.Tx) error {
		stored, err := tx.GetHabit(ctx, "u1", h.ID)
		if err != nil {
			return err
		}
		stored.TotalCompletions = 99
		return tx.UpdateHabit(ctx, stored)
	}); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	drifts, err := f.tr.Profiles.Verify(ctx, "u1")
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if len(drifts) != 1 || drifts[0].Stored.TotalCompletions != 99 || drifts[0].Ledger.TotalCompletions != 1 {
		t.Fatalf("drifts = %+v", drifts)
	}
	if _, err := f.tr.Profiles.Repair(ctx, "u1"); err != nil {
		t.Fatalf("Repair() error: %v", err)
	}
	drifts, err = f.tr.Profiles.Verify(ctx, "u1")
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if len(drifts) != 0 {
		t.Errorf("drifts after repair = %+v", drifts)
	}
}

func TestAwardXP(t *testing.T) {
	f := newFixture(t)
	out, err := f.tr.Profiles.AwardXP(context.Background(), "u1", domain.XPGeneration, 5)
	if err != nil {
		t.Fatalf("AwardXP() error: %v", err)
	}
	if out.Profile.XP != 5 || out.Profile.TotalXP != 5 {
		t.Errorf("profile = %+v", out.Profile)
	}
}
