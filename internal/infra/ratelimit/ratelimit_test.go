package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestMemory_RollingWindow(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := m.Allow(ctx, "u1", 3, time.Hour)
		if err != nil || !d.Allowed {
			t.Fatalf("hit %d: %+v, %v", i, d, err)
		}
		if d.Remaining != 2-i {
			t.Errorf("hit %d: Remaining = %d, want %d", i, d.Remaining, 2-i)
		}
		now = now.Add(10 * time.Minute)
	}

	d, _ := m.Allow(ctx, "u1", 3, time.Hour)
	if d.Allowed {
		t.Fatal("4th hit inside the window should be denied")
	}
	// First hit was at 12:00, now is 12:30.
	if d.RetryAfter != 30*time.Minute {
		t.Errorf("RetryAfter = %v, want 30m", d.RetryAfter)
	}

	now = now.Add(31 * time.Minute)
	if d, _ := m.Allow(ctx, "u1", 3, time.Hour); !d.Allowed {
		t.Error("hit after the oldest one expired should be allowed")
	}
}

func TestMemory_KeysAreIndependent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if d, _ := m.Allow(ctx, "u1", 1, time.Hour); !d.Allowed {
		t.Fatal("first hit denied")
	}
	if d, _ := m.Allow(ctx, "u1", 1, time.Hour); d.Allowed {
		t.Error("u1 should be limited")
	}
	if d, _ := m.Allow(ctx, "u2", 1, time.Hour); !d.Allowed {
		t.Error("u2 should not share u1's window")
	}
}

func TestMemory_TierChange(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		m.Allow(ctx, "u1", 10, time.Hour)
	}
	if d, _ := m.Allow(ctx, "u1", 10, time.Hour); d.Allowed {
		t.Fatal("free tier should be exhausted")
	}
	if d, _ := m.Allow(ctx, "u1", 100, time.Hour); !d.Allowed {
		t.Error("premium limit should admit the same user")
	}
}

func TestMemory_PrunesIdleKeys(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Allow(ctx, "idle", 10, time.Hour)
	now = now.Add(2 * time.Hour)
	for i := 1; i < pruneEvery; i++ {
		m.Allow(ctx, "busy", pruneEvery*2, time.Hour)
	}
	if _, ok := m.hits["idle"]; ok {
		t.Error("idle key should be dropped after a sweep")
	}
	if len(m.hits["busy"]) == 0 {
		t.Error("active key should survive the sweep")
	}
}

func TestRedis_FailOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	d, err := NewRedis(client).Allow(context.Background(), "u1", 1, time.Hour)
	if err != nil || !d.Allowed {
		t.Errorf("Allow() = %+v, %v; want allowed when redis is down", d, err)
	}
}

func TestRedis_RollingWindow(t *testing.T) {
	addr := os.Getenv("STARPATH_TEST_REDIS")
	if addr == "" {
		t.Skip("STARPATH_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	r := NewRedis(client)
	ctx := context.Background()
	key := "test-" + uuid.NewString()
	defer client.Del(ctx, r.prefix+key)

	for i := 0; i < 2; i++ {
		if d, err := r.Allow(ctx, key, 2, time.Minute); err != nil || !d.Allowed {
			t.Fatalf("hit %d: %+v, %v", i, d, err)
		}
	}
	d, err := r.Allow(ctx, key, 2, time.Minute)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if d.Allowed || d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Errorf("3rd hit = %+v, want denied with retry inside the window", d)
	}
	if n := client.ZCard(ctx, r.prefix+key).Val(); n != 2 {
		t.Errorf("denied hit left in the window: %d members", n)
	}
}
