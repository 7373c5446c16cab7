package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ConversationState returns the persisted conversation state for a user.
// A missing row reads as the empty string; the engine maps that to Idle.
func (s *Store) ConversationState(ctx context.Context, userID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var state string
	err := s.db.QueryRowContext(ctx,
		"SELECT state FROM sessions WHERE user_id = ?", userID,
	).Scan(&state)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read conversation state for user %d: %w", userID, err)
	}
	return state, nil
}

// SetConversationState persists the conversation state for a user. State
// lives in the database, not process memory, so a dialogue in progress
// survives a restart.
func (s *Store) SetConversationState(ctx context.Context, userID int64, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, state) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET state = excluded.state, updated_at = CURRENT_TIMESTAMP`,
		userID, state,
	)
	if err != nil {
		return fmt.Errorf("failed to persist conversation state for user %d: %w", userID, err)
	}
	return nil
}

// ClearConversationState removes the persisted state, returning the user
// to Idle.
func (s *Store) ClearConversationState(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE user_id = ?", userID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear conversation state for user %d: %w", userID, err)
	}
	return nil
}
