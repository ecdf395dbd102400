package handler

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-catalog/internal/middleware"
	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/service"
)

// AuthHandler serves registration, login and the user endpoints.
type AuthHandler struct {
	Account *service.Account
	Logger  *slog.Logger
}

func NewAuthHandler(a *service.Account, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AuthHandler{Account: a, Logger: logger}
}

// ----- DTOs -----

// userResp is the public view of a user. The password hash and the session
// token never leave the server through it.
type userResp struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type loginResp struct {
	Email   string    `json:"email"`
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

func toUserResp(u *model.User) userResp {
	return userResp{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

// Register creates an account. It does not log the user in.
func (h *AuthHandler) Register(c echo.Context) error {
	var creds model.Credentials
	if err := c.Bind(&creds); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Account.Register(ctx, creds.Email, creds.Password)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// Login verifies the credentials and returns a fresh bearer token.
func (h *AuthHandler) Login(c echo.Context) error {
	var creds model.Credentials
	if err := c.Bind(&creds); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Account.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, loginResp{Email: res.Email, Token: res.Token, Expires: res.ExpiresAt})
}

// Me returns the caller identified by the request token.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Account.Me(ctx, middleware.TokenFromRequest(c))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// GetUser returns the public view of a user. Callers may only read their
// own account.
func (h *AuthHandler) GetUser(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid user id")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Account.GetUser(ctx, middleware.TokenFromRequest(c), id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// DeleteUser removes the caller's own account and its movies.
func (h *AuthHandler) DeleteUser(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid user id")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Account.DeleteUser(ctx, middleware.TokenFromRequest(c), id); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Count returns the number of registered users.
func (h *AuthHandler) Count(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.Account.CountUsers(ctx)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}
