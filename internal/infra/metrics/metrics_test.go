package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestHabitAndXPCounters(t *testing.T) {
	HabitCompletions.WithLabelValues("complete").Inc()
	XPAwarded.Add(20)
	XPReversed.Add(10)
	LevelUps.Inc()
	AchievementsUnlocked.WithLabelValues("first_step").Inc()

	names := gatheredNames(t)
	expected := []string{
		"starpath_habit_completions_total",
		"starpath_xp_awarded_total",
		"starpath_xp_reversed_total",
		"starpath_level_ups_total",
		"starpath_achievements_unlocked_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAIAndStoreMetrics(t *testing.T) {
	AIRequests.WithLabelValues("notes", "ok").Inc()
	AILatency.Observe(1.2)
	RateLimited.Inc()
	StoreTxDuration.Observe(0.004)
	HealthCheckStatus.WithLabelValues("store").Set(1)

	names := gatheredNames(t)
	for _, name := range []string{
		"starpath_ai_requests_total",
		"starpath_ai_latency_seconds",
		"starpath_rate_limited_total",
		"starpath_store_tx_seconds",
		"starpath_health_check_status",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}
