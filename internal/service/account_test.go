package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-catalog/internal/auth"
	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/session"
	"github.com/iliyamo/movie-catalog/internal/validation"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.account.Register(ctx, "  A@B.com ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)
	assert.NotEqual(t, testPassword, u.PasswordHash)
	assert.True(t, f.sessions.VerifyPassword(ctx, testPassword, u.PasswordHash))
	assert.Empty(t, u.Token)

	assert.Equal(t, []string{queue.UserRegistered}, f.events.waitFor(t, 1))
}

func TestRegister_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		code     string
		contains string
	}{
		{"bad email", "not-an-email", testPassword, CodeValidation, "invalid email"},
		{"empty email", "", testPassword, CodeValidation, "invalid email"},
		{"short password", "a@b.com", "Ab!", CodeValidation, "at least 10"},
		{"no symbol", "a@b.com", "Abcdefghij", CodeValidation, "must contain one of"},
		{"too long for bcrypt", "a@b.com", "Aa!" + strings.Repeat("x", 80), CodeValidation, "72 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.account.Register(context.Background(), tt.email, tt.password)
			require.Error(t, err)
			assert.Equal(t, tt.code, ErrorCode(err))
			assert.Contains(t, err.Error(), tt.contains)

			n, err := f.account.CountUsers(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n, "no record is created")
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.account.Register(ctx, "a@b.com", testPassword)
	require.NoError(t, err)
	_, err = f.account.Register(ctx, "A@b.com", otherPass)
	require.Error(t, err)
	assert.Equal(t, CodeConflict, ErrorCode(err))
}

func TestRegister_CustomPolicy(t *testing.T) {
	f := newFixture(t)
	f.account.WithPolicy(validation.Policy{Email: func(s string) bool { return strings.HasSuffix(s, "@corp") }})

	_, err := f.account.Register(context.Background(), "dev@corp", testPassword)
	require.NoError(t, err)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.account.Register(ctx, "a@b.com", testPassword)
	require.NoError(t, err)

	res, err := f.account.Login(ctx, "a@b.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", res.Email)
	assert.NotEmpty(t, res.Token)
	assert.WithinDuration(t, f.now.Add(session.DefaultTTL), res.ExpiresAt, time.Second)
	assert.True(t, f.sessions.ValidateToken(res.Token))

	stored, err := f.users.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, res.Token, stored.Token)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.account.Register(ctx, "a@b.com", testPassword)
	require.NoError(t, err)

	_, err = f.account.Login(ctx, "a@b.com", otherPass)
	assert.Equal(t, CodeAuthentication, ErrorCode(err))
	assert.Contains(t, err.Error(), "password is invalid")

	_, err = f.account.Login(ctx, "nobody@b.com", testPassword)
	assert.Equal(t, CodeNotFound, ErrorCode(err))
	assert.Contains(t, err.Error(), "email not registered")

	_, err = f.account.Login(ctx, "a@b.com", "weak")
	assert.Equal(t, CodeValidation, ErrorCode(err))

	stored, err := f.users.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Empty(t, stored.Token, "failed logins never store a token")
}

func TestLogin_LatestTokenWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.login(t, "a@b.com")

	second, err := f.account.Login(ctx, "a@b.com", testPassword)
	require.NoError(t, err)
	require.NotEqual(t, first, second.Token)

	_, err = f.account.Me(ctx, first)
	d, ok := Decision(err)
	require.True(t, ok)
	assert.Equal(t, auth.DenyUserNotFound, d.Kind)

	u, err := f.account.Me(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.login(t, "a@b.com")

	u, err := f.account.Me(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)

	_, err = f.account.Me(ctx, "")
	assert.Equal(t, CodeAuthorization, ErrorCode(err))
	assert.EqualError(t, err, "must provide a token")

	*f.now = f.now.Add(session.DefaultTTL + time.Second)
	_, err = f.account.Me(ctx, token)
	d, ok := Decision(err)
	require.True(t, ok)
	assert.Equal(t, auth.DenyInvalidToken, d.Kind)
	assert.Contains(t, err.Error(), "session expired invalid token")
}

func TestCountUsers(t *testing.T) {
	f := newFixture(t)
	f.login(t, "a@b.com")
	f.login(t, "c@d.com")

	n, err := f.account.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestGetUser_OnlySelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.login(t, "ann@b.com")
	bob := f.login(t, "bob@b.com")
	me, err := f.account.Me(ctx, ann)
	require.NoError(t, err)

	u, err := f.account.GetUser(ctx, ann, me.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann@b.com", u.Email)

	_, err = f.account.GetUser(ctx, bob, me.ID)
	d, ok := Decision(err)
	require.True(t, ok)
	assert.Equal(t, auth.DenyNotOwner, d.Kind)
	assert.EqualError(t, err, "only the owner can access this account")

	_, err = f.account.GetUser(ctx, "", me.ID)
	assert.EqualError(t, err, "must provide a token")
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.login(t, "ann@b.com")
	bob := f.login(t, "bob@b.com")
	me, err := f.account.Me(ctx, ann)
	require.NoError(t, err)
	_, err = f.catalog.Create(ctx, ann, sampleMovie("Dune", true))
	require.NoError(t, err)

	err = f.account.DeleteUser(ctx, bob, me.ID)
	d, ok := Decision(err)
	require.True(t, ok)
	assert.Equal(t, auth.DenyNotOwner, d.Kind)

	require.NoError(t, f.account.DeleteUser(ctx, ann, me.ID))

	n, err := f.account.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	page, err := f.catalog.List(ctx, bob, model.MovieQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total, "the user's movies go with the account")

	_, err = f.account.Me(ctx, ann)
	d, ok = Decision(err)
	require.True(t, ok)
	assert.Equal(t, auth.DenyUserNotFound, d.Kind, "the deleted user's token no longer resolves")

	assert.Contains(t, f.events.waitFor(t, 4), queue.UserDeleted)
}
