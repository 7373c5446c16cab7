package store

import (
	"context"
	"testing"

	"dietbot/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureUserFirstContact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnsureUser(ctx, 100, "alice"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	// Second contact must not duplicate or disturb the row.
	if err := s.EnsureUser(ctx, 100, "alice"); err != nil {
		t.Fatalf("EnsureUser failed on repeat: %v", err)
	}

	total, err := s.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if total != 1 {
		t.Errorf("Expected 1 user, got %d", total)
	}

	hasAccess, err := s.HasAccess(ctx, 100)
	if err != nil {
		t.Fatalf("HasAccess failed: %v", err)
	}
	if hasAccess {
		t.Error("First contact must register with access denied")
	}
}

func TestEnsureUserKeepsGrantFlag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnsureUser(ctx, 100, "alice"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if err := s.SetAccess(ctx, 100, true); err != nil {
		t.Fatalf("SetAccess failed: %v", err)
	}
	// A later contact must not reset the flag.
	if err := s.EnsureUser(ctx, 100, "alice"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	hasAccess, err := s.HasAccess(ctx, 100)
	if err != nil {
		t.Fatalf("HasAccess failed: %v", err)
	}
	if !hasAccess {
		t.Error("EnsureUser must not disturb an existing grant")
	}
}

func TestHasAccessUnknownUser(t *testing.T) {
	s := newTestStore(t)

	hasAccess, err := s.HasAccess(context.Background(), 999)
	if err != nil {
		t.Fatalf("HasAccess failed: %v", err)
	}
	if hasAccess {
		t.Error("Unknown user must read as denied")
	}
}

func TestSetAccessIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.SetAccess(ctx, 5, true); err != nil {
			t.Fatalf("SetAccess(true) failed: %v", err)
		}
	}
	hasAccess, _ := s.HasAccess(ctx, 5)
	if !hasAccess {
		t.Error("Expected access after grant")
	}

	for i := 0; i < 2; i++ {
		if err := s.SetAccess(ctx, 5, false); err != nil {
			t.Fatalf("SetAccess(false) failed: %v", err)
		}
	}
	hasAccess, _ = s.HasAccess(ctx, 5)
	if hasAccess {
		t.Error("Expected no access after revoke")
	}

	total, _ := s.CountUsers(ctx)
	if total != 1 {
		t.Errorf("Expected 1 user row, got %d", total)
	}
}

func TestUserListings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.EnsureUser(ctx, 1, "pending1")
	s.EnsureUser(ctx, 2, "pending2")
	s.EnsureUser(ctx, 3, "approved")
	s.SetAccess(ctx, 3, true)

	pending, err := s.PendingUsers(ctx)
	if err != nil {
		t.Fatalf("PendingUsers failed: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("Expected 2 pending users, got %d", len(pending))
	}

	approved, err := s.ApprovedUsers(ctx)
	if err != nil {
		t.Fatalf("ApprovedUsers failed: %v", err)
	}
	if len(approved) != 1 || approved[0].ID != 3 {
		t.Errorf("Unexpected approved users: %+v", approved)
	}

	nApproved, _ := s.CountApproved(ctx)
	nPending, _ := s.CountPending(ctx)
	if nApproved != 1 || nPending != 2 {
		t.Errorf("Unexpected counts: approved=%d pending=%d", nApproved, nPending)
	}
}

func TestUserInfo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	info, err := s.UserInfo(ctx, 404)
	if err != nil {
		t.Fatalf("UserInfo failed: %v", err)
	}
	if info != nil {
		t.Errorf("Expected nil for unknown user, got %+v", info)
	}

	s.EnsureUser(ctx, 7, "bob")
	info, err = s.UserInfo(ctx, 7)
	if err != nil {
		t.Fatalf("UserInfo failed: %v", err)
	}
	if info == nil || info.Username != "bob" || info.HasAccess {
		t.Errorf("Unexpected user info: %+v", info)
	}
	if info.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}
}

func TestProfileRoundTripPartial(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.EnsureUser(ctx, 1, "")

	// No profile yet.
	profile, err := s.Profile(ctx, 1)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if profile != nil {
		t.Errorf("Expected nil profile, got %+v", profile)
	}

	// Storing only the goal must leave every other field absent.
	err = s.UpdateProfile(ctx, 1, types.ProfileUpdate{Goal: types.String("похудеть")})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	profile, err = s.Profile(ctx, 1)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if profile == nil {
		t.Fatal("Expected profile after update")
	}
	if profile.Goal == nil || *profile.Goal != "похудеть" {
		t.Errorf("Unexpected goal: %v", profile.Goal)
	}
	if profile.Weight != nil || profile.Height != nil || profile.Age != nil || profile.TargetWeight != nil {
		t.Errorf("Unset fields must be absent, not zero: %+v", profile)
	}
}

func TestProfileFieldByFieldUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.EnsureUser(ctx, 1, "")

	steps := []types.ProfileUpdate{
		{Weight: types.Float64(82.5)},
		{Height: types.Int(180)},
		{Age: types.Int(30)},
		{TargetWeight: types.Float64(78)},
	}
	for _, update := range steps {
		if err := s.UpdateProfile(ctx, 1, update); err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}
	}

	profile, err := s.Profile(ctx, 1)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if profile.Weight == nil || *profile.Weight != 82.5 {
		t.Errorf("Unexpected weight: %v", profile.Weight)
	}
	if profile.Height == nil || *profile.Height != 180 {
		t.Errorf("Unexpected height: %v", profile.Height)
	}
	if profile.Age == nil || *profile.Age != 30 {
		t.Errorf("Unexpected age: %v", profile.Age)
	}
	if profile.TargetWeight == nil || *profile.TargetWeight != 78 {
		t.Errorf("Unexpected target weight: %v", profile.TargetWeight)
	}
	// Later commits must not erase earlier fields.
	if err := s.UpdateProfile(ctx, 1, types.ProfileUpdate{Weight: types.Float64(81)}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	profile, _ = s.Profile(ctx, 1)
	if profile.Height == nil || *profile.Height != 180 {
		t.Error("Height lost after unrelated weight update")
	}
}

func TestUpdateProfileRejectsEmptyUpdate(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpdateProfile(context.Background(), 1, types.ProfileUpdate{}); err == nil {
		t.Error("Expected error for update without fields")
	}
}

func TestWorkoutRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.EnsureUser(ctx, 1, "")

	for _, data := range []string{"Жим лежа - 80 кг - 8", "Приседания - 100 кг - 10", "Становая - 120 кг - 5"} {
		if err := s.AddWorkoutRecord(ctx, 1, data); err != nil {
			t.Fatalf("AddWorkoutRecord failed: %v", err)
		}
	}

	records, err := s.WorkoutRecords(ctx, 1, 2)
	if err != nil {
		t.Fatalf("WorkoutRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records with limit 2, got %d", len(records))
	}
	// Newest first.
	if records[0].Data != "Становая - 120 кг - 5" {
		t.Errorf("Expected newest record first, got %q", records[0].Data)
	}

	other, err := s.WorkoutRecords(ctx, 2, 10)
	if err != nil {
		t.Fatalf("WorkoutRecords failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no records for other user, got %d", len(other))
	}
}

func TestAdvisoryCountDerivedFromHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.EnsureUser(ctx, 1, "")

	n, err := s.AdvisoryRequestCount(ctx, 1)
	if err != nil {
		t.Fatalf("AdvisoryRequestCount failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 requests, got %d", n)
	}

	if err := s.AddAdvisoryRequest(ctx, 1, "Сколько калорий мне нужно?", "Около 2200 ккал."); err != nil {
		t.Fatalf("AddAdvisoryRequest failed: %v", err)
	}
	if err := s.AddAdvisoryRequest(ctx, 1, "Что есть перед тренировкой?", "Углеводы за час до."); err != nil {
		t.Fatalf("AddAdvisoryRequest failed: %v", err)
	}

	n, _ = s.AdvisoryRequestCount(ctx, 1)
	if n != 2 {
		t.Errorf("Expected 2 requests, got %d", n)
	}

	history, err := s.AdvisoryHistory(ctx, 1, 1)
	if err != nil {
		t.Fatalf("AdvisoryHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Question != "Что есть перед тренировкой?" {
		t.Errorf("Unexpected history: %+v", history)
	}

	total, _ := s.CountAdvisoryRequests(ctx)
	if total != 2 {
		t.Errorf("Expected 2 total requests, got %d", total)
	}
}

func TestConversationStatePersistence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.EnsureUser(ctx, 1, "")

	state, err := s.ConversationState(ctx, 1)
	if err != nil {
		t.Fatalf("ConversationState failed: %v", err)
	}
	if state != "" {
		t.Errorf("Expected empty state for fresh user, got %q", state)
	}

	if err := s.SetConversationState(ctx, 1, "awaiting_weight"); err != nil {
		t.Fatalf("SetConversationState failed: %v", err)
	}
	if err := s.SetConversationState(ctx, 1, "awaiting_height"); err != nil {
		t.Fatalf("SetConversationState failed on overwrite: %v", err)
	}

	state, _ = s.ConversationState(ctx, 1)
	if state != "awaiting_height" {
		t.Errorf("Expected awaiting_height, got %q", state)
	}

	if err := s.ClearConversationState(ctx, 1); err != nil {
		t.Fatalf("ClearConversationState failed: %v", err)
	}
	state, _ = s.ConversationState(ctx, 1)
	if state != "" {
		t.Errorf("Expected cleared state, got %q", state)
	}
}
