// Package engagement implements the StarPath gamification engine:
// streaks, XP and levels, goal progress, and achievements.
// Every function here is pure; persistence lives in the tracker services.
package engagement

import (
	"sort"
	"time"

	"github.com/starpath-app/starpath/internal/domain"
)

// LedgerStats are the habit counters derived from the completion ledger.
type LedgerStats struct {
	Streak           int `json:"streak"`
	BestStreak       int `json:"best_streak"`
	TotalCompletions int `json:"total_completions"`
}

// CurrentStreak counts consecutive calendar days ending at the most recent
// completion. A streak whose latest day is before yesterday is broken: it is
// evaluated at read time, so a missed day shows up the next time anyone looks.
func CurrentStreak(days []time.Time, now time.Time) int {
	sorted := distinctDaysDesc(days)
	if len(sorted) == 0 {
		return 0
	}

	today := domain.Day(now)
	if gap := domain.DaysBetween(sorted[0], today); gap > 1 || gap < 0 {
		// Latest completion is neither today nor yesterday. A day in the
		// future (gap < 0) cannot anchor a live streak either.
		return 0
	}

	streak := 1
	for i := 1; i < len(sorted); i++ {
		if domain.DaysBetween(sorted[i], sorted[i-1]) != 1 {
			break
		}
		streak++
	}
	return streak
}

// LongestRun returns the longest run of consecutive days anywhere in days.
func LongestRun(days []time.Time) int {
	sorted := distinctDaysDesc(days)
	if len(sorted) == 0 {
		return 0
	}
	best, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		if domain.DaysBetween(sorted[i], sorted[i-1]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

// RecomputeFromLedger derives the habit counters from its events.
// BestStreak here is the longest run present in the ledger; callers merge
// it with the stored value via MergeStats so it never decreases.
func RecomputeFromLedger(events []domain.CompletionEvent, now time.Time) LedgerStats {
	days := make([]time.Time, len(events))
	for i, ev := range events {
		days[i] = ev.Day
	}
	streak := CurrentStreak(days, now)
	best := LongestRun(days)
	if streak > best {
		best = streak
	}
	return LedgerStats{
		Streak:           streak,
		BestStreak:       best,
		TotalCompletions: len(distinctDaysDesc(days)),
	}
}

// MergeStats writes recomputed counters onto h. BestStreak is a high-water
// mark: max(stored, recomputed).
func MergeStats(h domain.Habit, s LedgerStats) domain.Habit {
	h.Streak = s.Streak
	h.TotalCompletions = s.TotalCompletions
	if s.BestStreak > h.BestStreak {
		h.BestStreak = s.BestStreak
	}
	if h.Streak > h.BestStreak {
		h.BestStreak = h.Streak
	}
	return h
}

// IncrementalStreak is the O(1) fast path for completing a habit today.
// prevStreak must be the stored streak and previousLatest the latest ledger
// day before the insert. ok is false whenever the shortcut cannot be proven
// equal to RecomputeFromLedger (backfills, stale stored streaks); callers
// then recompute. Undo never uses a shortcut.
func IncrementalStreak(prevStreak int, previousLatest *time.Time, day, now time.Time) (streak int, ok bool) {
	if domain.DaysBetween(day, now) != 0 {
		return 0, false
	}
	if previousLatest == nil {
		return 1, true
	}
	switch gap := domain.DaysBetween(*previousLatest, day); {
	case gap < 0:
		return 0, false
	case gap == 0:
		// A stored streak > 0 was computed while this day was live.
		return prevStreak, prevStreak > 0
	case gap == 1:
		if prevStreak > 0 {
			return prevStreak + 1, true
		}
		return 0, false
	default:
		return 1, true
	}
}

// distinctDaysDesc normalizes to calendar days, de-duplicates, and sorts
// newest first.
func distinctDaysDesc(days []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(days))
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		day := domain.Day(d)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out
}
