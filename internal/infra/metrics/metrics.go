// Package metrics provides Prometheus metrics for StarPath.
// Counters for habit activity, XP, achievements and AI generation, plus
// store latency and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Habits ─────────────────────────────────────────────────────────────────

// HabitCompletions tracks ledger changes by action (complete, uncomplete, noop).
var HabitCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "starpath",
	Name:      "habit_completions_total",
	Help:      "Habit ledger changes by action.",
}, []string{"action"})

// TaskToggles tracks goal task completion changes.
var TaskToggles = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "starpath",
	Name:      "task_toggles_total",
	Help:      "Goal task toggles by resulting state.",
}, []string{"state"})

// ─── XP / Levels ────────────────────────────────────────────────────────────

// XPAwarded tracks XP earned across all users.
var XPAwarded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "starpath",
	Name:      "xp_awarded_total",
	Help:      "Total XP awarded.",
})

// XPReversed tracks XP taken back by undo.
var XPReversed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "starpath",
	Name:      "xp_reversed_total",
	Help:      "Total XP reversed by undo operations.",
})

// LevelUps tracks level-up events.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "starpath",
	Name:      "level_ups_total",
	Help:      "Total level-up events.",
})

// AchievementsUnlocked tracks unlocks per achievement.
var AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "starpath",
	Name:      "achievements_unlocked_total",
	Help:      "Total achievement unlocks.",
}, []string{"id"})

// ─── AI Generation ──────────────────────────────────────────────────────────

// AIRequests tracks generation requests by type and outcome.
var AIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "starpath",
	Name:      "ai_requests_total",
	Help:      "AI generation requests by type and outcome.",
}, []string{"type", "outcome"})

// AILatency tracks upstream generation latency, retries included.
var AILatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "starpath",
	Name:      "ai_latency_seconds",
	Help:      "AI generation latency in seconds, retries included.",
	Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
})

// RateLimited tracks requests rejected by the rate limiter.
var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "starpath",
	Name:      "rate_limited_total",
	Help:      "Requests rejected by the rate limiter.",
})

// ─── Store ──────────────────────────────────────────────────────────────────

// StoreTxDuration tracks how long one user-event transaction takes.
var StoreTxDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "starpath",
	Name:      "store_tx_seconds",
	Help:      "Store transaction duration in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
})

// ─── Realtime ───────────────────────────────────────────────────────────────

// EventsPublished tracks hub events by type.
var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "starpath",
	Name:      "events_published_total",
	Help:      "Realtime events published by type.",
}, []string{"type"})

// EventsDropped tracks events dropped for slow subscribers.
var EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "starpath",
	Name:      "events_dropped_total",
	Help:      "Realtime events dropped because a subscriber was full.",
})

// Subscribers tracks open realtime subscriptions.
var Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "starpath",
	Name:      "event_subscribers",
	Help:      "Number of open realtime subscriptions.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "starpath",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
