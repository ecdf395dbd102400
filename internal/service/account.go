package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/iliyamo/movie-catalog/internal/auth"
	"github.com/iliyamo/movie-catalog/internal/metrics"
	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository"
	"github.com/iliyamo/movie-catalog/internal/session"
	"github.com/iliyamo/movie-catalog/internal/validation"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	Email     string
	Token     string
	ExpiresAt time.Time
}

// Account registers users, logs them in and resolves the caller of a
// token.
type Account struct {
	users    auth.CredentialStore
	sessions *session.Service
	gate     *auth.Gate
	policy   validation.Policy
	events   EventPublisher
	logger   *slog.Logger
}

// NewAccount wires an Account. events and logger may be nil.
func NewAccount(users auth.CredentialStore, sessions *session.Service, gate *auth.Gate, events EventPublisher, logger *slog.Logger) *Account {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Account{
		users:    users,
		sessions: sessions,
		gate:     gate,
		policy:   validation.NewPolicy(),
		events:   events,
		logger:   logger,
	}
}

// WithPolicy replaces the credential policy.
func (a *Account) WithPolicy(p validation.Policy) *Account {
	a.policy = p
	return a
}

// Register creates a user after checking the credential policy. The
// returned user has its password hash set; callers must not expose it.
func (a *Account) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if err := a.policy.Check(email, password); err != nil {
		return nil, invalid(err)
	}

	switch _, err := a.users.FindByEmail(ctx, email); {
	case err == nil:
		return nil, oops.Code(CodeConflict).Errorf("email already registered")
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, oops.Wrapf(err, "find user by email")
	}

	hash, err := a.sessions.HashPassword(ctx, password)
	if err != nil {
		if errors.Is(err, session.ErrPasswordTooLong) {
			return nil, invalid(&validation.ValidationError{Field: "password", Reason: "must be at most 72 bytes long"})
		}
		return nil, oops.Wrapf(err, "hash password")
	}

	u := &model.User{Email: email, PasswordHash: hash}
	if err := a.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, oops.Code(CodeConflict).Errorf("email already registered")
		}
		return nil, oops.Wrapf(err, "create user")
	}

	a.logger.InfoContext(ctx, "user registered", slog.Uint64("user_id", u.ID))
	publish(ctx, a.events, a.logger, queue.NewUserEvent(queue.UserRegistered, u.ID))
	return u, nil
}

// Login verifies the credentials, issues a fresh token and stores it on the
// user, replacing any earlier one.
func (a *Account) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = normalizeEmail(email)
	if err := a.policy.Check(email, password); err != nil {
		metrics.RecordLogin("invalid_input")
		return LoginResult{}, invalid(err)
	}

	u, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			metrics.RecordLogin("unknown_email")
			return LoginResult{}, notFound("email not registered")
		}
		return LoginResult{}, oops.Wrapf(err, "find user by email")
	}

	if !a.sessions.VerifyPassword(ctx, password, u.PasswordHash) {
		metrics.RecordLogin("bad_password")
		a.logger.InfoContext(ctx, "login rejected", slog.Uint64("user_id", u.ID))
		return LoginResult{}, oops.Code(CodeAuthentication).Errorf("password is invalid")
	}

	tok, err := a.sessions.IssueToken(*u)
	if err != nil {
		return LoginResult{}, oops.Wrapf(err, "issue token")
	}
	if err := a.users.Update(ctx, u.ID, model.UserPatch{Token: &tok.Value}); err != nil {
		return LoginResult{}, oops.Wrapf(err, "store token")
	}

	metrics.RecordLogin("ok")
	a.logger.InfoContext(ctx, "user logged in", slog.Uint64("user_id", u.ID))
	return LoginResult{Email: u.Email, Token: tok.Value, ExpiresAt: tok.ExpiresAt}, nil
}

// Me returns the user owning token.
func (a *Account) Me(ctx context.Context, token string) (*model.User, error) {
	d, err := a.gate.Authorize(ctx, token, nil)
	if err != nil {
		return nil, oops.Wrapf(err, "authorize")
	}
	if !d.Allowed() {
		return nil, denied(d)
	}
	u, err := a.users.FindByID(ctx, d.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, notFound("user not found")
		}
		return nil, oops.Wrapf(err, "find user")
	}
	return u, nil
}

// accountNotOwner replaces the movie wording of DenyNotOwner on account
// endpoints.
const accountNotOwner = "only the owner can access this account"

// GetUser returns the user with the given id. Only that user may read it.
func (a *Account) GetUser(ctx context.Context, token string, id uint64) (*model.User, error) {
	if _, err := a.authorizeSelf(ctx, token, id); err != nil {
		return nil, err
	}
	u, err := a.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, notFound("user not found")
		}
		return nil, oops.Wrapf(err, "find user")
	}
	return u, nil
}

// DeleteUser removes the user with the given id and every movie they own.
// Only that user may delete the account.
func (a *Account) DeleteUser(ctx context.Context, token string, id uint64) error {
	d, err := a.authorizeSelf(ctx, token, id)
	if err != nil {
		return err
	}
	if err := a.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return notFound("user not found")
		}
		return oops.Wrapf(err, "delete user")
	}
	a.logger.InfoContext(ctx, "user deleted", slog.Uint64("user_id", d.UserID))
	publish(ctx, a.events, a.logger, queue.NewUserEvent(queue.UserDeleted, d.UserID))
	return nil
}

func (a *Account) authorizeSelf(ctx context.Context, token string, id uint64) (auth.Decision, error) {
	d, err := a.gate.Authorize(ctx, token, &id)
	if err != nil {
		return auth.Decision{}, oops.Wrapf(err, "authorize")
	}
	if !d.Allowed() {
		msg := ""
		if d.Kind == auth.DenyNotOwner {
			msg = accountNotOwner
		}
		return d, deniedWith(d, msg)
	}
	return d, nil
}

// CountUsers returns the number of registered users.
func (a *Account) CountUsers(ctx context.Context) (int64, error) {
	n, err := a.users.Count(ctx)
	if err != nil {
		return 0, oops.Wrapf(err, "count users")
	}
	return n, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
