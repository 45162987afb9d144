package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Validation: rejected before any mutation is attempted.
	ErrInvalidInput = errors.New("invalid input")

	// Lookup / scoping
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("access denied")
	ErrUnauthorized = errors.New("missing or invalid credentials")

	// Task tree
	ErrTaskCycle    = errors.New("task move would create a cycle")
	ErrTaskTooDeep  = errors.New("task nesting too deep")
	ErrWrongGoal    = errors.New("parent task belongs to a different goal")
	ErrGoalArchived = errors.New("goal is archived")

	// AI generation
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrTransient   = errors.New("temporary upstream failure")
	ErrUpstream    = errors.New("generation request rejected")
)
