package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HandsomeSB/Askit/internal/model"
)

func TestSessionStore_CreateAndValidate(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(nil, "", 0)

	record, err := s.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Validate(ctx, record.SessionID)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID = %s, want user-1", got.UserID)
	}
}

func TestSessionStore_ExpiredSessionRejectedAndDeleted(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(nil, "", time.Hour)

	now := time.Now()
	s.now = func() time.Time { return now }
	record, err := s.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Advance past expiry. The session must be rejected with the expiry
	// error, not a generic not-found, and removed from the store.
	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := s.Validate(ctx, record.SessionID); !errors.Is(err, model.ErrSessionExpired) {
		t.Fatalf("Expected ErrSessionExpired, got %v", err)
	}

	// A second validation of the same ID now sees no session at all.
	if _, err := s.Validate(ctx, record.SessionID); errors.Is(err, model.ErrSessionExpired) {
		t.Fatalf("Expired session should have been deleted")
	}
}

func TestSessionStore_DeleteDestroysSession(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(nil, "", 0)

	record, err := s.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Delete(ctx, record.SessionID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Validate(ctx, record.SessionID); err == nil {
		t.Fatalf("Expected validation to fail after delete")
	}
}

func TestSessionStore_ValidateEmptyID(t *testing.T) {
	s := NewSessionStore(nil, "", 0)
	if _, err := s.Validate(context.Background(), ""); err == nil {
		t.Fatalf("Expected error for empty session id")
	}
}
