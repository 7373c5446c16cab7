// Package quota enforces the per-user advisory-call ceiling. The counter
// is derived from the ai_requests history on every check rather than
// maintained separately, so it can never drift from the visible history;
// the O(n) count is fine at this scale.
package quota

import (
	"context"
	"errors"

	"dietbot/internal/store"
)

// ErrExhausted marks an advisory attempt past the configured ceiling.
var ErrExhausted = errors.New("advisory request quota exhausted")

// Tracker derives remaining advisory capacity from stored history.
type Tracker struct {
	store   *store.Store
	ceiling int
}

// NewTracker creates a tracker with a fixed ceiling shared by all users.
func NewTracker(st *store.Store, ceiling int) *Tracker {
	return &Tracker{store: st, ceiling: ceiling}
}

// Ceiling returns the configured per-user maximum.
func (t *Tracker) Ceiling() int {
	return t.ceiling
}

// Used returns how many advisory rounds the user has spent.
func (t *Tracker) Used(ctx context.Context, userID int64) (int, error) {
	return t.store.AdvisoryRequestCount(ctx, userID)
}

// Remaining returns ceiling minus spent rounds, never below zero.
func (t *Tracker) Remaining(ctx context.Context, userID int64) (int, error) {
	used, err := t.store.AdvisoryRequestCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	remaining := t.ceiling - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// HasCapacity reports whether the user may spend another round.
func (t *Tracker) HasCapacity(ctx context.Context, userID int64) (bool, error) {
	remaining, err := t.Remaining(ctx, userID)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}
