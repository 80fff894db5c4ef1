package auth

import (
	"context"
	"database/sql"

	"github.com/erazemk/podari/internal/apperr"
	"github.com/erazemk/podari/internal/model"
	"github.com/erazemk/podari/internal/store"
)

// Resolver maps a caller ID taken from a validated token to a stored user.
type Resolver struct {
	DB *sql.DB
}

// Resolve returns the active user with the given ID. An empty ID, an unknown
// user or a deleted user is an authentication failure.
func (r *Resolver) Resolve(ctx context.Context, callerID string) (*model.User, error) {
	if callerID == "" {
		return nil, apperr.New(apperr.CodeUnauthenticated, "authentication required")
	}

	user, err := store.GetUser(ctx, r.DB, callerID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStorage, "resolving caller")
	}
	if user == nil || user.DeletedAt != nil {
		return nil, apperr.New(apperr.CodeUnauthenticated, "unknown user")
	}
	return user, nil
}
