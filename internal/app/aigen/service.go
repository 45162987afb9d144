package aigen

import (
	"context"
	"fmt"
	"time"

	"github.com/starpath-app/starpath/internal/app/tracker"
	"github.com/starpath-app/starpath/internal/domain"
	"github.com/starpath-app/starpath/internal/infra/metrics"
	"github.com/starpath-app/starpath/internal/infra/ratelimit"
	"github.com/starpath-app/starpath/internal/logger"
)

// Limits is the rolling-window quota per subscription tier.
type Limits struct {
	Free    int
	Premium int
	Window  time.Duration
}

// DefaultLimits is 10 requests an hour for free users, 100 for premium.
func DefaultLimits() Limits {
	return Limits{Free: 10, Premium: 100, Window: time.Hour}
}

// Profiles is the part of the profile service generation needs.
type Profiles interface {
	IsPremium(ctx context.Context, userID string) (bool, error)
	AwardXP(ctx context.Context, userID string, source domain.XPSource, delta int64) (tracker.Outcome, error)
}

// RateLimitError is returned when the user's quota is spent.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v: retry in %s", domain.ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return domain.ErrRateLimited }

// Result is a generation and the XP it earned.
type Result struct {
	Response
	tracker.Outcome
}

// Service runs generations for users.
type Service struct {
	gen      Generator
	limiter  ratelimit.Limiter
	profiles Profiles
	limits   Limits
	retry    RetryPolicy
	xp       int64
}

// NewService wires a generation service. xp is the award per success.
func NewService(gen Generator, limiter ratelimit.Limiter, profiles Profiles, limits Limits, retry RetryPolicy, xp int64) *Service {
	return &Service{gen: gen, limiter: limiter, profiles: profiles, limits: limits, retry: retry, xp: xp}
}

// Generate checks the user's quota, calls the generator with retries and
// awards XP on success. Transient failures that outlast the retries are
// reported as ErrTransient.
func (s *Service) Generate(ctx context.Context, userID string, req Request) (Result, error) {
	if userID == "" {
		return Result{}, domain.ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		metrics.AIRequests.WithLabelValues(string(req.Type), "invalid").Inc()
		return Result{}, err
	}

	premium, err := s.profiles.IsPremium(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("load tier: %w", err)
	}
	limit := s.limits.Free
	if premium {
		limit = s.limits.Premium
	}
	d, err := s.limiter.Allow(ctx, userID, limit, s.limits.Window)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit: %w", err)
	}
	if !d.Allowed {
		metrics.RateLimited.Inc()
		metrics.AIRequests.WithLabelValues(string(req.Type), "rate_limited").Inc()
		logger.Info("generation rate limited", "user", userID, "limit", limit, "retry_after", d.RetryAfter)
		return Result{}, &RateLimitError{RetryAfter: d.RetryAfter}
	}

	start := time.Now()
	var resp Response
	attempt := 0
	err = Retry(ctx, s.retry, func(ctx context.Context) error {
		attempt++
		var err error
		resp, err = s.gen.Generate(ctx, req)
		if err != nil && IsTransient(err) {
			logger.Warn("generation attempt failed", "user", userID, "type", req.Type, "attempt", attempt, "err", err)
		}
		return err
	})
	metrics.AILatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AIRequests.WithLabelValues(string(req.Type), "failed").Inc()
		logger.Error("generation failed", "user", userID, "type", req.Type, "attempts", attempt, "err", err)
		if IsTransient(err) {
			return Result{}, fmt.Errorf("%w: %v", domain.ErrTransient, err)
		}
		return Result{}, err
	}
	metrics.AIRequests.WithLabelValues(string(req.Type), "ok").Inc()

	res := Result{Response: resp}
	if s.xp > 0 {
		out, err := s.profiles.AwardXP(ctx, userID, domain.XPGeneration, s.xp)
		if err != nil {
			return Result{}, fmt.Errorf("award xp: %w", err)
		}
		res.Outcome = out
	}
	return res, nil
}
