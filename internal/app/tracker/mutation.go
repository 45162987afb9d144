package tracker

import "context"

// Mutation is an optimistic change: Apply updates local state right away,
// Commit persists it, and Rollback undoes Apply if Commit fails.
type Mutation struct {
	Apply    func()
	Commit   func(ctx context.Context) error
	Rollback func()
}

// Run applies m, commits it, and rolls back on failure. The commit error is
// returned unchanged.
func Run(ctx context.Context, m Mutation) error {
	if m.Apply != nil {
		m.Apply()
	}
	if err := m.Commit(ctx); err != nil {
		if m.Rollback != nil {
			m.Rollback()
		}
		return err
	}
	return nil
}
