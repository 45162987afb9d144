package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starpath-app/starpath/internal/domain"
)

// ─── Profile Repository ─────────────────────────────────────────────────────

// GetProfile returns the user's profile or ErrNotFound.
func (t *tx) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var p domain.Profile
	var updated int64
	err := t.q.QueryRowContext(ctx,
		`SELECT user_id, xp, level, total_xp, streak, longest_streak, is_premium, updated_at
		 FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.XP, &p.Level, &p.TotalXP, &p.Streak, &p.LongestStreak, &p.IsPremium, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, fmt.Errorf("%w: profile %s", domain.ErrNotFound, userID)
	}
	if err != nil {
		return domain.Profile{}, err
	}
	p.UpdatedAt = time.Unix(updated, 0).UTC()
	return p, nil
}

// SaveProfile inserts or replaces the profile.
func (t *tx) SaveProfile(ctx context.Context, p domain.Profile) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO profiles (user_id, xp, level, total_xp, streak, longest_streak, is_premium, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			xp=excluded.xp,
			level=excluded.level,
			total_xp=excluded.total_xp,
			streak=excluded.streak,
			longest_streak=excluded.longest_streak,
			is_premium=excluded.is_premium,
			updated_at=excluded.updated_at`,
		p.UserID, p.XP, p.Level, p.TotalXP, p.Streak, p.LongestStreak, p.IsPremium, p.UpdatedAt.Unix(),
	)
	return err
}

// ─── Achievement Repository ─────────────────────────────────────────────────

// ListUnlocked returns the user's unlock records, oldest first.
func (t *tx) ListUnlocked(ctx context.Context, userID string) ([]domain.UserAchievement, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT user_id, achievement_id, unlocked_at FROM user_achievements
		 WHERE user_id = ? ORDER BY unlocked_at, achievement_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserAchievement
	for rows.Next() {
		var ua domain.UserAchievement
		var ts int64
		if err := rows.Scan(&ua.UserID, &ua.AchievementID, &ts); err != nil {
			return nil, err
		}
		ua.UnlockedAt = time.Unix(ts, 0).UTC()
		out = append(out, ua)
	}
	return out, rows.Err()
}

// UnlockAchievement records an unlock. Returns false if already unlocked.
func (t *tx) UnlockAchievement(ctx context.Context, ua domain.UserAchievement) (bool, error) {
	result, err := t.q.ExecContext(ctx,
		`INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id, achievement_id) DO NOTHING`,
		ua.UserID, ua.AchievementID, ua.UnlockedAt.Unix(),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n == 1, nil
}
