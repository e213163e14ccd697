package stubs

import (
	"context"
	"errors"
	"testing"

	"mediabot/internal/storage"
)

var _ storage.Storage = (*MockDB)(nil)

func TestMockDB_SaveUser(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	if err := db.Initialize(ctx); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	user, err := db.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if user != nil {
		t.Fatal("Expected unknown user to be nil")
	}

	if err := db.SaveUser(ctx, 1, "alice", "Alice"); err != nil {
		t.Fatalf("Failed to save user: %v", err)
	}
	first, _ := db.GetUser(ctx, 1)

	if err := db.SaveUser(ctx, 1, "alice2", "Alice"); err != nil {
		t.Fatalf("Failed to save user: %v", err)
	}
	second, _ := db.GetUser(ctx, 1)

	if second.Username != "alice2" {
		t.Errorf("Expected username 'alice2', got '%s'", second.Username)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("Expected creation time to be preserved on upsert")
	}
}

func TestMockDB_Messages(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	for _, text := range []string{"one", "two"} {
		if err := db.SaveMessage(ctx, 1, text); err != nil {
			t.Fatalf("Failed to save message: %v", err)
		}
	}
	if err := db.SaveMessage(ctx, 2, "three"); err != nil {
		t.Fatalf("Failed to save message: %v", err)
	}

	count, err := db.CountMessages(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to count messages: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 messages, got %d", count)
	}
	if got := len(db.Messages()); got != 3 {
		t.Errorf("Expected 3 stored messages, got %d", got)
	}
}

func TestMockDB_InjectedError(t *testing.T) {
	db := NewMockDB()
	db.Err = errors.New("connection refused")

	if err := db.SaveMessage(context.Background(), 1, "x"); err == nil {
		t.Error("Expected injected error")
	}
	if _, err := db.GetUser(context.Background(), 1); err == nil {
		t.Error("Expected injected error")
	}
}
