package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"dietbot/internal/types"
)

// EnsureUser registers an identity on first contact with access denied.
// INSERT OR IGNORE keeps the operation atomic: concurrent first contact
// from the same identity cannot produce duplicate rows, and an existing
// grant flag is never disturbed.
func (s *Store) EnsureUser(ctx context.Context, userID int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO users (user_id, username, has_access) VALUES (?, ?, 0)",
		userID, nullString(username),
	)
	if err != nil {
		return fmt.Errorf("failed to ensure user %d: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("registered new user", zap.Int64("user_id", userID))
	}
	return nil
}

// HasAccess reads the stored grant flag. A missing row reads as denied.
func (s *Store) HasAccess(ctx context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hasAccess bool
	err := s.db.QueryRowContext(ctx,
		"SELECT has_access FROM users WHERE user_id = ?", userID,
	).Scan(&hasAccess)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read access flag for user %d: %w", userID, err)
	}
	return hasAccess, nil
}

// SetAccess writes the grant flag, creating the user row when absent.
// A single upsert statement keeps grant and revoke idempotent and never
// partially applied.
func (s *Store) SetAccess(ctx context.Context, userID int64, hasAccess bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, has_access) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET has_access = excluded.has_access`,
		userID, hasAccess,
	)
	if err != nil {
		return fmt.Errorf("failed to set access for user %d: %w", userID, err)
	}
	return nil
}

// UserInfo returns one user record, or nil when the identity is unknown.
func (s *Store) UserInfo(ctx context.Context, userID int64) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT user_id, username, has_access, created_at FROM users WHERE user_id = ?",
		userID,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user %d: %w", userID, err)
	}
	return user, nil
}

// PendingUsers lists identities that registered but were not granted access.
func (s *Store) PendingUsers(ctx context.Context) ([]types.User, error) {
	return s.listUsers(ctx, false)
}

// ApprovedUsers lists identities with a standing grant.
func (s *Store) ApprovedUsers(ctx context.Context) ([]types.User, error) {
	return s.listUsers(ctx, true)
}

func (s *Store) listUsers(ctx context.Context, hasAccess bool) ([]types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, username, has_access, created_at FROM users WHERE has_access = ?",
		hasAccess,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// CountUsers returns the number of registered identities.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM users")
}

// CountApproved returns the number of identities with access.
func (s *Store) CountApproved(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM users WHERE has_access = 1")
}

// CountPending returns the number of identities awaiting approval.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM users WHERE has_access = 0")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*types.User, error) {
	var user types.User
	var username sql.NullString
	if err := row.Scan(&user.ID, &username, &user.HasAccess, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.Username = username.String
	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
