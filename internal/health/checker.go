// Package health provides periodic health checks with optional recovery.
// The store is always checked; Redis only when it is configured.
package health

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/starpath-app/starpath/internal/infra/metrics"
	"github.com/starpath-app/starpath/internal/logger"
)

// Pinger is anything with a context-aware connectivity probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	timeout  time.Duration
}

// NewChecker creates a checker for the store, the data directory (empty
// for hosted stores) and, when non-nil, Redis.
func NewChecker(store Pinger, dataDir string, redis Pinger) *Checker {
	c := &Checker{
		interval: 30 * time.Second,
		timeout:  5 * time.Second,
		checks: []Check{
			{
				Name:    "store",
				CheckFn: store.Ping,
			},
		},
	}
	if dataDir != "" {
		c.checks = append(c.checks, Check{
			Name: "data_dir",
			CheckFn: func(ctx context.Context) error {
				return checkDataDir(dataDir)
			},
			RecoverFn: func(ctx context.Context) error {
				return os.MkdirAll(dataDir, 0700)
			},
		})
	}
	if redis != nil {
		c.checks = append(c.checks, Check{
			Name:    "redis",
			CheckFn: redis.Ping,
		})
	}
	return c
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs every check once and records the results.
func (c *Checker) RunOnce(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := check.CheckFn(cctx)
		cancel()
		if err != nil {
			s.Error = err.Error()
			logger.Warn("health check failed", "check", check.Name, "err", err)
			if check.RecoverFn != nil {
				if rerr := check.RecoverFn(ctx); rerr != nil {
					logger.Error("health recovery failed", "check", check.Name, "err", rerr)
				}
			}
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

func checkDataDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data path %s is not a directory", dir)
	}
	return nil
}
