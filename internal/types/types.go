// Package types holds the domain records shared between the store, the
// access gate, the conversation engine and the advisory broker.
package types

import (
	"fmt"
	"strings"
	"time"
)

// User is one Telegram principal. Created on first contact with access
// denied. The configured administrator is never stored with a grant flag;
// admin status is a pure comparison against config.
type User struct {
	ID        int64
	Username  string
	HasAccess bool
	CreatedAt time.Time
}

// Profile is the self-reported fitness data for one user. Nil pointer
// fields mean the user never supplied the value; they render as "not set",
// never as zero.
type Profile struct {
	UserID       int64
	Weight       *float64 // kg, (0, 300]
	Height       *int     // cm, (0, 250]
	Age          *int     // years, (0, 120]
	Goal         *string  // 3-200 chars
	TargetWeight *float64 // kg, (0, 300]
	UpdatedAt    time.Time
}

// ProfileUpdate names every updatable profile field explicitly. Exactly one
// field is set per conversation commit; the store never builds SQL from
// runtime keys.
type ProfileUpdate struct {
	Weight       *float64
	Height       *int
	Age          *int
	Goal         *string
	TargetWeight *float64
}

// IsZero reports whether the update carries no field at all.
func (u ProfileUpdate) IsZero() bool {
	return u.Weight == nil && u.Height == nil && u.Age == nil &&
		u.Goal == nil && u.TargetWeight == nil
}

// WorkoutRecord is one append-only free-text workout entry.
type WorkoutRecord struct {
	ID        int64
	UserID    int64
	Data      string
	CreatedAt time.Time
}

// AdvisoryRequest is one completed advisory round. The per-user row count
// is the quota counter; there is no separate cached counter to drift.
type AdvisoryRequest struct {
	ID        int64
	UserID    int64
	Question  string
	Response  string
	CreatedAt time.Time
}

// Stats are the admin-panel aggregate counters. Each count is read
// independently; skew between them under concurrent writes is acceptable.
type Stats struct {
	TotalUsers      int
	ApprovedUsers   int
	PendingUsers    int
	TotalAIRequests int
}

// Float64 returns a pointer to v. Convenience for building updates.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// FormatFloat renders a measurement with at most one decimal place and
// no trailing zero fraction: 82.5 stays "82.5", 90 becomes "90".
func FormatFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.1f", v), "0"), ".")
}

// DisplayName renders the user for admin listings: @username when known,
// otherwise the numeric id.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.Username); name != "" {
		return "@" + name
	}
	return fmt.Sprintf("ID: %d", u.ID)
}
