package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starpath-app/starpath/internal/app/tracker"
	"github.com/starpath-app/starpath/internal/domain"
	"github.com/starpath-app/starpath/internal/infra/postgres"
)

func testStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("STARPATH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STARPATH_TEST_POSTGRES_DSN not set")
	}
	s, err := postgres.Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_LedgerIsIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	user := "pg-" + uuid.NewString()
	now := time.Now().UTC()
	h := domain.Habit{
		ID: uuid.NewString(), UserID: user, Name: "Read", Frequency: domain.FrequencyDaily,
		XPReward: 10, CreatedAt: now, UpdatedAt: now,
	}

	err := s.WithTx(ctx, func(tx domain.Tx) error {
		if err := tx.InsertHabit(ctx, h); err != nil {
			return err
		}
		ev := domain.CompletionEvent{ID: uuid.NewString(), HabitID: h.ID, UserID: user, Day: domain.Day(now), XPAwarded: 10, CreatedAt: now}
		added, err := tx.AddCompletion(ctx, ev)
		if err != nil || !added {
			t.Errorf("first AddCompletion = %v, %v", added, err)
		}
		ev.ID = uuid.NewString()
		added, err = tx.AddCompletion(ctx, ev)
		if err != nil || added {
			t.Errorf("duplicate AddCompletion = %v, %v; want false", added, err)
		}
		latest, err := tx.LatestCompletionDay(ctx, h.ID)
		if err != nil || latest == nil || !latest.Equal(domain.Day(now)) {
			t.Errorf("LatestCompletionDay = %v, %v", latest, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx() error: %v", err)
	}

	_ = s.WithTx(ctx, func(tx domain.Tx) error {
		if _, err := tx.GetHabit(ctx, "someone-else", h.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("GetHabit(other user) = %v, want ErrNotFound", err)
		}
		return tx.DeleteHabit(ctx, user, h.ID)
	})
}

func TestStore_TrackerFlow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	user := "pg-" + uuid.NewString()
	tr := tracker.New(s, tracker.Options{})

	h, err := tr.Habits.Create(ctx, user, tracker.HabitInput{Name: "Stretch"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	res, err := tr.Habits.Complete(ctx, user, h.ID, time.Now())
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if res.Profile.TotalXP != 35 || res.Habit.Streak != 1 {
		t.Errorf("after complete: xp %d streak %d", res.Profile.TotalXP, res.Habit.Streak)
	}

	g, err := tr.Goals.CreateGoal(ctx, user, tracker.GoalInput{Title: "Ship"})
	if err != nil {
		t.Fatalf("CreateGoal() error: %v", err)
	}
	added, err := tr.Goals.AddTask(ctx, user, g.ID, tracker.TaskInput{Title: "write"})
	if err != nil {
		t.Fatalf("AddTask() error: %v", err)
	}
	done, err := tr.Goals.ToggleTask(ctx, user, g.ID, added.Task.ID)
	if err != nil {
		t.Fatalf("ToggleTask() error: %v", err)
	}
	if done.Goal.Status != domain.GoalCompleted {
		t.Errorf("status = %s, want completed", done.Goal.Status)
	}

	if err := tr.Goals.DeleteGoal(ctx, user, g.ID); err != nil {
		t.Errorf("DeleteGoal() error: %v", err)
	}
	if err := tr.Habits.Delete(ctx, user, h.ID); err != nil {
		t.Errorf("Delete() error: %v", err)
	}
}
