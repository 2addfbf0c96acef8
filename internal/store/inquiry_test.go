package store

import (
	"testing"

	"github.com/nuturetable/nuturetable/internal/database"
	"github.com/nuturetable/nuturetable/internal/model"
)

func TestInquiryCreateAndList(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := NewUserStore(db).WithHashCost(4).Create("alice@example.com", "Alice", "secret1!")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	is := NewInquiryStore(db)

	q, err := is.Create(model.Inquiry{
		UserID: u.ID, Category: "error", Title: "Sync failed", Content: "Meals vanish", Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("create inquiry: %v", err)
	}
	if q.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if q.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	if _, err := is.Create(model.Inquiry{UserID: u.ID, Category: "other", Title: "Hi", Content: "Thanks", Email: "a@b.c"}); err != nil {
		t.Fatalf("create inquiry: %v", err)
	}

	list, err := is.ListByUser(u.ID)
	if err != nil {
		t.Fatalf("list inquiries: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Title != "Hi" {
		t.Errorf("first title = %q, want newest first", list[0].Title)
	}
}
