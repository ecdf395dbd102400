package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/iliyamo/movie-catalog/internal/metrics"
	"github.com/iliyamo/movie-catalog/internal/repository"
)

// OwnerFunc resolves the owner id of the resource being accessed. Any error
// it returns is handed back to the caller of AuthorizeOwner unchanged.
type OwnerFunc func(ctx context.Context) (uint64, error)

// Gate decides whether the holder of a token may act on a resource.
//
// The checks run in a fixed order and stop at the first failure: token
// presence, user lookup by token, signature and expiry, ownership. The order
// decides which message a client sees and must not be rearranged.
type Gate struct {
	users  CredentialStore
	tokens TokenValidator
	logger *slog.Logger
}

// NewGate builds a Gate. A nil logger discards output.
func NewGate(users CredentialStore, tokens TokenValidator, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gate{users: users, tokens: tokens, logger: logger}
}

// Authorize checks token against an optional owner id. A nil ownerID skips
// the ownership step, which is what creation and identity checks use.
func (g *Gate) Authorize(ctx context.Context, token string, ownerID *uint64) (Decision, error) {
	var owner OwnerFunc
	if ownerID != nil {
		id := *ownerID
		owner = func(context.Context) (uint64, error) { return id, nil }
	}
	return g.AuthorizeOwner(ctx, token, owner)
}

// AuthorizeOwner is Authorize with the owner id looked up lazily, after the
// token has been accepted. Callers use it so that anonymous or invalid
// callers never learn whether a resource exists.
func (g *Gate) AuthorizeOwner(ctx context.Context, token string, owner OwnerFunc) (Decision, error) {
	d, err := g.decide(ctx, token, owner)
	if err != nil {
		return Decision{}, err
	}
	metrics.RecordDecision(d.Kind.String())
	if !d.Allowed() {
		g.logger.DebugContext(ctx, "authorization denied",
			slog.String("decision", d.Kind.String()),
			slog.Uint64("user_id", d.UserID),
		)
	}
	return d, nil
}

func (g *Gate) decide(ctx context.Context, token string, owner OwnerFunc) (Decision, error) {
	if token == "" {
		return Decision{Kind: DenyNoToken}, nil
	}

	u, err := g.users.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Decision{Kind: DenyUserNotFound}, nil
		}
		return Decision{}, fmt.Errorf("find user by token: %w", err)
	}

	if !g.tokens.ValidateToken(token) {
		return Decision{Kind: DenyInvalidToken, UserID: u.ID}, nil
	}

	if owner != nil {
		ownerID, err := owner(ctx)
		if err != nil {
			return Decision{}, err
		}
		if ownerID != u.ID {
			return Decision{Kind: DenyNotOwner, UserID: u.ID}, nil
		}
	}

	return Decision{Kind: Allow, UserID: u.ID}, nil
}
