package store

import (
	"context"
	"fmt"

	"dietbot/internal/types"
)

// AddAdvisoryRequest appends one completed advisory round. Creating this
// row is the quota decrement; there is no separate counter to increment.
func (s *Store) AddAdvisoryRequest(ctx context.Context, userID int64, question, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO ai_requests (user_id, question, response) VALUES (?, ?, ?)",
		userID, question, response,
	)
	if err != nil {
		return fmt.Errorf("failed to record advisory request for user %d: %w", userID, err)
	}
	return nil
}

// AdvisoryRequestCount returns how many advisory rounds a user has spent.
// The count is derived from the history rows each call, so it cannot drift
// from what the user sees in their history.
func (s *Store) AdvisoryRequestCount(ctx context.Context, userID int64) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM ai_requests WHERE user_id = ?", userID)
}

// CountAdvisoryRequests returns the total advisory rounds across all users.
func (s *Store) CountAdvisoryRequests(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM ai_requests")
}

// AdvisoryHistory returns the most recent rounds for a user, newest first.
func (s *Store) AdvisoryHistory(ctx context.Context, userID int64, limit int) ([]types.AdvisoryRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, question, response, created_at
		 FROM ai_requests WHERE user_id = ?
		 ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list advisory history for user %d: %w", userID, err)
	}
	defer rows.Close()

	var history []types.AdvisoryRequest
	for rows.Next() {
		var req types.AdvisoryRequest
		if err := rows.Scan(&req.ID, &req.UserID, &req.Question, &req.Response, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan advisory row: %w", err)
		}
		history = append(history, req)
	}
	return history, rows.Err()
}
