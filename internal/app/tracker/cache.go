package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/starpath-app/starpath/internal/app/engagement"
	"github.com/starpath-app/starpath/internal/domain"
)

// Cache is a read cache of habits and their ledger days. Toggles update it
// optimistically before the store commits; a failed commit restores the
// previous snapshot, a successful one drops the entry so the next read
// reloads from the store.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	max     int
	gen     uint64 // bumped by every invalidation
	seq     uint64
}

type cacheEntry struct {
	habit   domain.Habit
	days    map[time.Time]bool
	version uint64
}

// NewCache creates a cache holding at most max habits.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = 1024
	}
	return &Cache{entries: make(map[string]*cacheEntry), max: max}
}

func cacheKey(userID, habitID string) string { return userID + "/" + habitID }

// Get returns the cached habit with counters evaluated at now.
func (c *Cache) Get(userID, habitID string, now time.Time) (domain.Habit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey(userID, habitID)]
	if !ok {
		return domain.Habit{}, false
	}
	return liveHabit(e.habit, e.days, now), true
}

// Generation returns the invalidation counter. Pass it to Put so a load
// that raced with a mutation is not cached.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Put stores a habit loaded at generation gen. It is dropped if anything was
// invalidated since.
func (c *Cache) Put(gen uint64, h domain.Habit, days []time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if len(c.entries) >= c.max {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	set := make(map[time.Time]bool, len(days))
	for _, d := range days {
		set[domain.Day(d)] = true
	}
	c.seq++
	c.entries[cacheKey(h.UserID, h.ID)] = &cacheEntry{habit: h, days: set, version: c.seq}
}

// Invalidate drops one habit.
func (c *Cache) Invalidate(userID, habitID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	delete(c.entries, cacheKey(userID, habitID))
}

// Len returns the number of cached habits.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// mutation builds the optimistic Mutation for setting day to the state
// returned by next(current). commit runs the authoritative store change.
func (c *Cache) mutation(userID, habitID string, day, now time.Time, next func(bool) bool, commit func(ctx context.Context) error) Mutation {
	key := cacheKey(userID, habitID)
	var snapshot *cacheEntry
	var applied uint64

	return Mutation{
		Apply: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			e, ok := c.entries[key]
			if !ok {
				return
			}
			snapshot = e.clone()
			d := domain.Day(day)
			if next(e.days[d]) {
				e.days[d] = true
			} else {
				delete(e.days, d)
			}
			e.habit = liveHabit(e.habit, e.days, now)
			c.seq++
			e.version = c.seq
			applied = e.version
		},
		Commit: commit,
		Rollback: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if snapshot == nil {
				return
			}
			if e, ok := c.entries[key]; ok && e.version == applied {
				c.entries[key] = snapshot
				return
			}
			// Someone else touched the entry meanwhile; only the store is
			// authoritative now.
			c.gen++
			delete(c.entries, key)
		},
	}
}

func (e *cacheEntry) clone() *cacheEntry {
	days := make(map[time.Time]bool, len(e.days))
	for d := range e.days {
		days[d] = true
	}
	return &cacheEntry{habit: e.habit, days: days, version: e.version}
}

// liveHabit recomputes the ledger-derived counters of h from days.
func liveHabit(h domain.Habit, days map[time.Time]bool, now time.Time) domain.Habit {
	events := make([]domain.CompletionEvent, 0, len(days))
	for d := range days {
		events = append(events, domain.CompletionEvent{HabitID: h.ID, Day: d})
	}
	return engagement.MergeStats(h, engagement.RecomputeFromLedger(events, now))
}
