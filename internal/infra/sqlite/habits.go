package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starpath-app/starpath/internal/domain"
)

// ─── Habit Repository ───────────────────────────────────────────────────────

const habitColumns = `id, user_id, name, frequency, xp_reward, streak, best_streak,
	total_completions, created_at, updated_at`

// InsertHabit creates a new habit record.
func (t *tx) InsertHabit(ctx context.Context, h domain.Habit) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO habits (`+habitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Name, string(h.Frequency), h.XPReward,
		h.Streak, h.BestStreak, h.TotalCompletions,
		h.CreatedAt.Unix(), h.UpdatedAt.Unix(),
	)
	return err
}

// GetHabit retrieves a habit owned by userID.
func (t *tx) GetHabit(ctx context.Context, userID, id string) (domain.Habit, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE id = ? AND user_id = ?`, id, userID)
	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Habit{}, fmt.Errorf("%w: habit %s", domain.ErrNotFound, id)
	}
	return h, err
}

// ListHabits returns the user's habits, oldest first.
func (t *tx) ListHabits(ctx context.Context, userID string) ([]domain.Habit, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []domain.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// UpdateHabit rewrites the editable fields and the ledger-derived counters.
func (t *tx) UpdateHabit(ctx context.Context, h domain.Habit) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE habits SET name = ?, frequency = ?, xp_reward = ?, streak = ?, best_streak = ?,
			total_completions = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		h.Name, string(h.Frequency), h.XPReward, h.Streak, h.BestStreak,
		h.TotalCompletions, h.UpdatedAt.Unix(), h.ID, h.UserID,
	)
	if err != nil {
		return err
	}
	return expectOne(result, "habit", h.ID)
}

// DeleteHabit removes a habit and its completion history.
func (t *tx) DeleteHabit(ctx context.Context, userID, id string) error {
	if _, err := t.q.ExecContext(ctx,
		`DELETE FROM habit_completions WHERE habit_id = ? AND user_id = ?`, id, userID); err != nil {
		return err
	}
	result, err := t.q.ExecContext(ctx, `DELETE FROM habits WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return expectOne(result, "habit", id)
}

func scanHabit(s scanner) (domain.Habit, error) {
	var h domain.Habit
	var freq string
	var created, updated int64
	err := s.Scan(&h.ID, &h.UserID, &h.Name, &freq, &h.XPReward,
		&h.Streak, &h.BestStreak, &h.TotalCompletions, &created, &updated)
	if err != nil {
		return domain.Habit{}, err
	}
	h.Frequency = domain.Frequency(freq)
	h.CreatedAt = time.Unix(created, 0).UTC()
	h.UpdatedAt = time.Unix(updated, 0).UTC()
	return h, nil
}

// ─── Completion Ledger ──────────────────────────────────────────────────────

// HasCompletion reports whether the habit was completed on day.
func (t *tx) HasCompletion(ctx context.Context, habitID string, day time.Time) (bool, error) {
	n, err := t.count(ctx,
		`SELECT COUNT(*) FROM habit_completions WHERE habit_id = ? AND day = ?`,
		habitID, domain.FormatDay(day))
	return n > 0, err
}

// LatestCompletionDay returns the habit's most recent completion day.
func (t *tx) LatestCompletionDay(ctx context.Context, habitID string) (*time.Time, error) {
	var day sql.NullString
	err := t.q.QueryRowContext(ctx,
		`SELECT MAX(day) FROM habit_completions WHERE habit_id = ?`, habitID).Scan(&day)
	if err != nil || !day.Valid {
		return nil, err
	}
	d, err := domain.ParseDay(day.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AddCompletion inserts the event unless one already exists for the day.
func (t *tx) AddCompletion(ctx context.Context, ev domain.CompletionEvent) (bool, error) {
	result, err := t.q.ExecContext(ctx,
		`INSERT INTO habit_completions (id, habit_id, user_id, day, xp_awarded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(habit_id, day) DO NOTHING`,
		ev.ID, ev.HabitID, ev.UserID, ev.DayString(), ev.XPAwarded, ev.CreatedAt.Unix(),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n == 1, nil
}

// RemoveCompletion deletes the event for the day and returns it.
func (t *tx) RemoveCompletion(ctx context.Context, habitID string, day time.Time) (domain.CompletionEvent, bool, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT id, habit_id, user_id, day, xp_awarded, created_at
		 FROM habit_completions WHERE habit_id = ? AND day = ?`,
		habitID, domain.FormatDay(day))
	ev, err := scanCompletion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CompletionEvent{}, false, nil
	}
	if err != nil {
		return domain.CompletionEvent{}, false, err
	}

	if _, err := t.q.ExecContext(ctx, `DELETE FROM habit_completions WHERE id = ?`, ev.ID); err != nil {
		return domain.CompletionEvent{}, false, err
	}
	return ev, true, nil
}

// ListCompletions returns every event for the habit, newest day first.
func (t *tx) ListCompletions(ctx context.Context, habitID string) ([]domain.CompletionEvent, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT id, habit_id, user_id, day, xp_awarded, created_at
		 FROM habit_completions WHERE habit_id = ? ORDER BY day DESC`, habitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.CompletionEvent
	for rows.Next() {
		ev, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListActivityDays returns the distinct days on which the user completed
// any habit, newest first.
func (t *tx) ListActivityDays(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT DISTINCT day FROM habit_completions WHERE user_id = ? ORDER BY day DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		d, err := domain.ParseDay(s)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// CountCompletions returns the number of ledger events for the user.
func (t *tx) CountCompletions(ctx context.Context, userID string) (int64, error) {
	return t.count(ctx, `SELECT COUNT(*) FROM habit_completions WHERE user_id = ?`, userID)
}

func scanCompletion(s scanner) (domain.CompletionEvent, error) {
	var ev domain.CompletionEvent
	var day string
	var created int64
	if err := s.Scan(&ev.ID, &ev.HabitID, &ev.UserID, &day, &ev.XPAwarded, &created); err != nil {
		return domain.CompletionEvent{}, err
	}
	d, err := domain.ParseDay(day)
	if err != nil {
		return domain.CompletionEvent{}, err
	}
	ev.Day = d
	ev.CreatedAt = time.Unix(created, 0).UTC()
	return ev, nil
}

func expectOne(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
	}
	return nil
}
