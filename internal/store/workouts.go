package store

import (
	"context"
	"fmt"

	"dietbot/internal/types"
)

// AddWorkoutRecord appends one free-text workout entry. Records are never
// mutated after creation.
func (s *Store) AddWorkoutRecord(ctx context.Context, userID int64, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO workout_records (user_id, workout_data) VALUES (?, ?)",
		userID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to add workout record for user %d: %w", userID, err)
	}
	return nil
}

// WorkoutRecords returns the most recent entries for a user, newest first.
func (s *Store) WorkoutRecords(ctx context.Context, userID int64, limit int) ([]types.WorkoutRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, workout_data, created_at
		 FROM workout_records WHERE user_id = ?
		 ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list workout records for user %d: %w", userID, err)
	}
	defer rows.Close()

	var records []types.WorkoutRecord
	for rows.Next() {
		var rec types.WorkoutRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Data, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workout row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
