package store

import (
	"context"
	"database/sql"
	"fmt"

	"dietbot/internal/types"
)

// Profile returns the stored profile for a user, or nil when the user has
// never committed a field. Unset columns come back as nil pointers, never
// as zero values.
func (s *Store) Profile(ctx context.Context, userID int64) (*types.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		profile      types.Profile
		weight       sql.NullFloat64
		height       sql.NullInt64
		age          sql.NullInt64
		goal         sql.NullString
		targetWeight sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, weight, height, age, goal, target_weight, updated_at
		 FROM user_data WHERE user_id = ?`, userID,
	).Scan(&profile.UserID, &weight, &height, &age, &goal, &targetWeight, &profile.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile for user %d: %w", userID, err)
	}

	if weight.Valid {
		profile.Weight = types.Float64(weight.Float64)
	}
	if height.Valid {
		profile.Height = types.Int(int(height.Int64))
	}
	if age.Valid {
		profile.Age = types.Int(int(age.Int64))
	}
	if goal.Valid {
		profile.Goal = types.String(goal.String)
	}
	if targetWeight.Valid {
		profile.TargetWeight = types.Float64(targetWeight.Float64)
	}
	return &profile, nil
}

// UpdateProfile upserts the fields named by the update, leaving every other
// column untouched. One statement, so a commit either happens entirely or
// not at all.
func (s *Store) UpdateProfile(ctx context.Context, userID int64, update types.ProfileUpdate) error {
	if update.IsZero() {
		return fmt.Errorf("profile update for user %d carries no fields", userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_data (user_id, weight, height, age, goal, target_weight)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			weight        = COALESCE(excluded.weight, user_data.weight),
			height        = COALESCE(excluded.height, user_data.height),
			age           = COALESCE(excluded.age, user_data.age),
			goal          = COALESCE(excluded.goal, user_data.goal),
			target_weight = COALESCE(excluded.target_weight, user_data.target_weight),
			updated_at    = CURRENT_TIMESTAMP`,
		userID, update.Weight, update.Height, update.Age, update.Goal, update.TargetWeight,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile for user %d: %w", userID, err)
	}
	return nil
}
