package auth

import (
	"context"
	"testing"

	"github.com/erazemk/podari/internal/apperr"
	"github.com/erazemk/podari/internal/db"
	"github.com/erazemk/podari/internal/model"
	"github.com/erazemk/podari/internal/store"
)

func TestResolver(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	r := &Resolver{DB: database}

	user, err := store.CreateUser(ctx, database, "Ana", "ana@example.com", "", "hash", model.RoleUser)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Resolve(ctx, user.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user %q, got %q", user.ID, got.ID)
	}

	if _, err := r.Resolve(ctx, ""); !apperr.HasCode(err, apperr.CodeUnauthenticated) {
		t.Errorf("expected unauthenticated for empty id, got %v", err)
	}
	if _, err := r.Resolve(ctx, model.NewID()); !apperr.HasCode(err, apperr.CodeUnauthenticated) {
		t.Errorf("expected unauthenticated for unknown id, got %v", err)
	}

	store.DeleteUser(ctx, database, user.ID)
	if _, err := r.Resolve(ctx, user.ID); !apperr.HasCode(err, apperr.CodeUnauthenticated) {
		t.Errorf("expected unauthenticated for deleted user, got %v", err)
	}
}
