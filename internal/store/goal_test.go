package store

import (
	"testing"

	"github.com/nuturetable/nuturetable/internal/database"
	"github.com/nuturetable/nuturetable/internal/model"
)

func setupGoalTestDB(t *testing.T) (*GoalStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := NewUserStore(db).WithHashCost(4).Create("alice@example.com", "Alice", "secret1!")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	defaults := func(userID int64) model.DailyGoal {
		return model.DailyGoal{UserID: userID, Calories: 2000, Protein: 55}
	}
	return NewGoalStore(db, defaults), u.ID
}

func TestGoalDefaults(t *testing.T) {
	gs, userID := setupGoalTestDB(t)

	g, err := gs.Get(userID)
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	if g.UserID != userID {
		t.Errorf("user_id = %d, want %d", g.UserID, userID)
	}
	if g.Calories != 2000 {
		t.Errorf("calories = %d, want 2000", g.Calories)
	}
}

func TestGoalUpsert(t *testing.T) {
	gs, userID := setupGoalTestDB(t)

	if _, err := gs.Upsert(model.DailyGoal{UserID: userID, Calories: 1800, Protein: 90}); err != nil {
		t.Fatalf("upsert goal: %v", err)
	}
	g, err := gs.Upsert(model.DailyGoal{UserID: userID, Calories: 2200, Protein: 100, Sodium: 1500})
	if err != nil {
		t.Fatalf("upsert goal: %v", err)
	}
	if g.Calories != 2200 {
		t.Errorf("calories = %d, want 2200", g.Calories)
	}
	if g.Sodium != 1500 {
		t.Errorf("sodium = %v, want 1500", g.Sodium)
	}
	if g.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}
}
