package users

import (
	"context"
	"errors"
	"testing"

	"github.com/imaginify/imaginify/backend/go-services/internal/apperror"
)

func TestService_GetByExternalID(t *testing.T) {
	repo := NewMemoryUserRepository(nil)
	svc := NewService(repo, nil)
	ctx := context.Background()

	if _, err := repo.Create(ctx, CreateParams{ClerkID: "user_1", Email: "x@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	u, err := svc.GetByExternalID(ctx, "user_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Email != "x@example.com" {
		t.Fatalf("unexpected email: %s", u.Email)
	}

	if _, err := svc.GetByExternalID(ctx, ""); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("expected validation error for empty id, got %v", err)
	}
	if _, err := svc.GetByExternalID(ctx, "user_2"); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_AdjustCredits(t *testing.T) {
	repo := NewMemoryUserRepository(nil)
	svc := NewService(repo, nil)
	ctx := context.Background()

	u, err := repo.Create(ctx, CreateParams{ClerkID: "user_1", Email: "x@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.AdjustCredits(ctx, u.ID.Hex(), -3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CreditBalance != 7 {
		t.Fatalf("creditBalance = %d, want 7", got.CreditBalance)
	}
	got, err = svc.AdjustCredits(ctx, u.ID.Hex(), 0)
	if err != nil {
		t.Fatalf("zero delta: unexpected error: %v", err)
	}
	if got.CreditBalance != 7 {
		t.Fatalf("creditBalance after zero delta = %d, want 7", got.CreditBalance)
	}
}

func TestService_AdjustCreditsInvalidatesUserPath(t *testing.T) {
	repo := NewMemoryUserRepository(nil)
	inv := &recordingInvalidator{}
	svc := NewService(repo, inv)
	ctx := context.Background()

	u, err := repo.Create(ctx, CreateParams{ClerkID: "user_1", Email: "x@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.AdjustCredits(ctx, u.ID.Hex(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inv.paths) != 1 || inv.paths[0] != "/api/v1/users/user_1" {
		t.Fatalf("invalidated paths = %v", inv.paths)
	}
}

func TestService_AdjustOwnCredits(t *testing.T) {
	repo := NewMemoryUserRepository(nil)
	svc := NewService(repo, nil)
	ctx := context.Background()

	mine, _ := repo.Create(ctx, CreateParams{ClerkID: "user_1", Email: "a@example.com"})
	theirs, _ := repo.Create(ctx, CreateParams{ClerkID: "user_2", Email: "b@example.com"})

	got, err := svc.AdjustOwnCredits(ctx, "user_1", mine.ID.Hex(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CreditBalance != 12 {
		t.Fatalf("creditBalance = %d, want 12", got.CreditBalance)
	}
	if _, err := svc.AdjustOwnCredits(ctx, "user_1", theirs.ID.Hex(), 2); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found for foreign record, got %v", err)
	}
	if _, err := svc.AdjustOwnCredits(ctx, "user_9", mine.ID.Hex(), 2); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found for unknown owner, got %v", err)
	}
	other, _ := repo.FindByExternalID(ctx, "user_2")
	if other.CreditBalance != 10 {
		t.Fatalf("foreign balance changed to %d", other.CreditBalance)
	}
}
