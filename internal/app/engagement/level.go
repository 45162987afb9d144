package engagement

import "github.com/starpath-app/starpath/internal/domain"

// XPResult is the outcome of applying an XP delta. LeveledUp is how the
// caller learns it should celebrate; the engine itself has no side effects.
type XPResult struct {
	Profile     domain.Profile `json:"profile"`
	Delta       int64          `json:"delta"`
	LeveledUp   bool           `json:"leveled_up"`
	LeveledDown bool           `json:"leveled_down"`
	OldLevel    int            `json:"old_level"`
	NewLevel    int            `json:"new_level"`
}

// ApplyXP adds delta (which may be negative, for undo) to the profile.
//
// Earning rolls XP over into levels of domain.XPPerLevel and adds to
// TotalXP. Reversing borrows from lower levels but never drops below level 1;
// a level-1 balance is floored at 0. TotalXP is lifetime earned and is never
// decremented. After every call 0 <= XP < XPPerLevel and Level >= 1.
func ApplyXP(p domain.Profile, delta int64) XPResult {
	p = normalize(p)
	old := p.Level

	p.XP += delta
	if delta > 0 {
		p.TotalXP += delta
	}

	for p.XP >= domain.XPPerLevel {
		p.XP -= domain.XPPerLevel
		p.Level++
	}
	for p.XP < 0 && p.Level > 1 {
		p.XP += domain.XPPerLevel
		p.Level--
	}
	if p.XP < 0 {
		p.XP = 0
	}

	return XPResult{
		Profile:     p,
		Delta:       delta,
		LeveledUp:   p.Level > old,
		LeveledDown: p.Level < old,
		OldLevel:    old,
		NewLevel:    p.Level,
	}
}

// CumulativeXP is the total XP a profile represents across all levels.
func CumulativeXP(p domain.Profile) int64 {
	p = normalize(p)
	return int64(p.Level-1)*domain.XPPerLevel + p.XP
}

// LevelProgressPct returns progress toward the next level (0–100).
func LevelProgressPct(p domain.Profile) float64 {
	p = normalize(p)
	return float64(p.XP) / float64(domain.XPPerLevel) * 100.0
}

// normalize repairs a profile that violates the level invariants, e.g. one
// loaded from a row written by an older client.
func normalize(p domain.Profile) domain.Profile {
	if p.Level < 1 {
		p.Level = 1
	}
	if p.XP < 0 {
		p.XP = 0
	}
	for p.XP >= domain.XPPerLevel {
		p.XP -= domain.XPPerLevel
		p.Level++
	}
	return p
}
