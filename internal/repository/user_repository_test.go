package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-catalog/internal/model"
)

func newUserRepoWithMock(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewUserRepo(db), mock
}

var userCols = []string{"id", "email", "password_hash", "token", "created_at", "updated_at"}

func TestUserRepo_Create(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO users \(email, password_hash, created_at, updated_at\)`).
		WithArgs("a@b.com", "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))

	u := &model.User{Email: "  A@B.com ", PasswordHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, uint64(7), u.ID)
	assert.Equal(t, "a@b.com", u.Email)
	assert.False(t, u.CreatedAt.IsZero())
}

func TestUserRepo_Create_Duplicate(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.com' for key 'uq_users_email'"})

	err := repo.Create(context.Background(), &model.User{Email: "a@b.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_Create_OtherError(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &model.User{Email: "a@b.com", PasswordHash: "hash"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_FindByEmail(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\? LIMIT 1`).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "a@b.com", "hash", nil, now, now))

	u, err := repo.FindByEmail(context.Background(), "A@b.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), u.ID)
	assert.Empty(t, u.Token)
	assert.Equal(t, now, u.CreatedAt)
}

func TestUserRepo_FindByID_NotFound(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id=\?`).
		WithArgs(uint64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepo_FindByToken(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE token=\?`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(3, "c@d.com", "hash", "tok", now, now))

	u, err := repo.FindByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), u.ID)
	assert.Equal(t, "tok", u.Token)
}

func TestUserRepo_FindByToken_Empty(t *testing.T) {
	repo, _ := newUserRepoWithMock(t)

	_, err := repo.FindByToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepo_Update(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	tok := "new-token"

	mock.ExpectExec(`UPDATE users SET updated_at = \?, token = \? WHERE id = \?`).
		WithArgs(sqlmock.AnyArg(), "new-token", uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), 3, model.UserPatch{Token: &tok}))
}

func TestUserRepo_Update_ClearsToken(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	empty := ""

	mock.ExpectExec(`UPDATE users SET updated_at = \?, token = \? WHERE id = \?`).
		WithArgs(sqlmock.AnyArg(), nil, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), 3, model.UserPatch{Token: &empty}))
}

func TestUserRepo_Update_NotFound(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	tok := "t"

	mock.ExpectExec(`UPDATE users SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), 42, model.UserPatch{Token: &tok})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepo_Count(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestUserRepo_Delete(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM users WHERE id = \?`).
		WithArgs(uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM users WHERE id = \?`).
		WithArgs(uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 3))
	assert.ErrorIs(t, repo.Delete(context.Background(), 4), ErrUserNotFound)
}
