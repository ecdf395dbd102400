package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// FindByToken returns the user whose stored token equals token. Only the
// most recently issued token is stored per user, so an older token for the
// same account resolves to ErrUserNotFound.
func (r *UserRepo) FindByToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrUserNotFound
	}
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE token=? LIMIT 1", token))
}

// Update applies patch to the user with the given id. An empty token
// clears the column. It returns ErrUserNotFound when no row matched; the
// connection must be opened with clientFoundRows so that rewriting an
// unchanged token still counts as a match.
func (r *UserRepo) Update(ctx context.Context, id uint64, patch model.UserPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Truncate(time.Second)}

	if patch.Token != nil {
		sets = append(sets, "token = ?")
		args = append(args, sql.NullString{String: *patch.Token, Valid: *patch.Token != ""})
	}
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}
