// Package access decides whether an identity may use the bot at all. The
// gate answers admin and grant-flag questions; it does not authorize its
// own callers. Whoever invokes Grant or Revoke must have checked IsAdmin
// first (the bot layer does).
package access

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dietbot/internal/store"
	"dietbot/internal/types"
)

// ErrDenied marks an action attempted by an identity without access.
var ErrDenied = errors.New("access denied")

// Gate gates entry to the bot behind admin approval.
type Gate struct {
	store   *store.Store
	adminID int64
	logger  *zap.Logger
}

// NewGate creates an access gate. adminID always evaluates as having
// access without a stored grant.
func NewGate(st *store.Store, adminID int64, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{store: st, adminID: adminID, logger: logger}
}

// IsAdmin reports whether the identity is the configured administrator.
// Pure comparison, no I/O.
func (g *Gate) IsAdmin(userID int64) bool {
	return userID == g.adminID
}

// Check reports whether the identity may use the bot. The administrator
// passes without touching storage. Any other identity is registered on
// first contact with access denied, then its stored grant flag decides.
func (g *Gate) Check(ctx context.Context, userID int64, username string) (bool, error) {
	if g.IsAdmin(userID) {
		return true, nil
	}

	if err := g.store.EnsureUser(ctx, userID, username); err != nil {
		return false, fmt.Errorf("first-contact registration failed: %w", err)
	}
	return g.store.HasAccess(ctx, userID)
}

// Grant sets the access flag. Idempotent; either fully applied or not at
// all. Re-granting a previously revoked identity preserves its profile,
// workout and advisory history.
func (g *Gate) Grant(ctx context.Context, userID int64) error {
	if err := g.store.SetAccess(ctx, userID, true); err != nil {
		return fmt.Errorf("grant failed: %w", err)
	}
	g.logger.Info("access granted", zap.Int64("user_id", userID))
	return nil
}

// Revoke clears the access flag. Idempotent.
func (g *Gate) Revoke(ctx context.Context, userID int64) error {
	if err := g.store.SetAccess(ctx, userID, false); err != nil {
		return fmt.Errorf("revoke failed: %w", err)
	}
	g.logger.Info("access revoked", zap.Int64("user_id", userID))
	return nil
}

// Pending lists identities awaiting approval.
func (g *Gate) Pending(ctx context.Context) ([]types.User, error) {
	return g.store.PendingUsers(ctx)
}

// Approved lists identities with a standing grant.
func (g *Gate) Approved(ctx context.Context) ([]types.User, error) {
	return g.store.ApprovedUsers(ctx)
}

// UserInfo returns one user record, or nil when unknown.
func (g *Gate) UserInfo(ctx context.Context, userID int64) (*types.User, error) {
	return g.store.UserInfo(ctx, userID)
}

// Stats returns the admin-panel counters. Each count is read on its own;
// no cross-table transaction is taken, so brief skew under concurrent
// writes is acceptable.
func (g *Gate) Stats(ctx context.Context) (types.Stats, error) {
	var stats types.Stats
	var err error

	if stats.TotalUsers, err = g.store.CountUsers(ctx); err != nil {
		return stats, fmt.Errorf("stats failed: %w", err)
	}
	if stats.ApprovedUsers, err = g.store.CountApproved(ctx); err != nil {
		return stats, fmt.Errorf("stats failed: %w", err)
	}
	if stats.PendingUsers, err = g.store.CountPending(ctx); err != nil {
		return stats, fmt.Errorf("stats failed: %w", err)
	}
	if stats.TotalAIRequests, err = g.store.CountAdvisoryRequests(ctx); err != nil {
		return stats, fmt.Errorf("stats failed: %w", err)
	}
	return stats, nil
}
