package repository_test

import (
	"context"
	"errors"
	"testing"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
	"github.com/mohammadpnp/collaborator-import/internal/infrastructure/repository"
)

func TestUserRepositoryGetByIDIntegration(t *testing.T) {
	gdb := openIntegrationDB(t)
	userID := seedUser(t, gdb)

	repo := repository.NewUserRepository(gdb)

	user, err := repo.GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if user.ID != userID || user.Email != userID+"@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	_, err = repo.GetByID(context.Background(), "00000000-0000-4000-8000-000000000000")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
