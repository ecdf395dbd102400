// Package auth contains the authorization gate that sits in front of every
// movie mutation, and the credential store contract it depends on.
package auth

import (
	"context"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// CredentialStore persists users. Lookups return repository.ErrUserNotFound
// when nothing matches; Create returns repository.ErrEmailExists on a
// duplicate email and Delete returns repository.ErrUserNotFound when no user
// matched.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByToken(ctx context.Context, token string) (*model.User, error)
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	// Create assigns u.ID.
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, id uint64, patch model.UserPatch) error
	// Delete removes the user together with every movie they own.
	Delete(ctx context.Context, id uint64) error
	Count(ctx context.Context) (int64, error)
}

// TokenValidator checks a token's signature and expiry without touching
// storage.
type TokenValidator interface {
	ValidateToken(token string) bool
}
