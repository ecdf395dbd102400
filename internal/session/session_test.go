package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// clock is a manually advanced time source.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T, c *clock) *Service {
	t.Helper()
	s, err := New(Options{
		Secret: "test-secret",
		Cost:   bcrypt.MinCost,
		Now:    c.Now,
	})
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	require.ErrorIs(t, err, ErrEmptySecret)

	_, err = New(Options{Secret: "s", Cost: bcrypt.MaxCost + 1})
	require.Error(t, err)

	s, err := New(Options{Secret: "s"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, s.TTL())
	assert.Equal(t, DefaultCost, s.cost)
}

func TestHashAndVerifyPassword(t *testing.T) {
	s := newTestService(t, &clock{t: time.Now()})
	ctx := context.Background()

	hash, err := s.HashPassword(ctx, "Abcdefghi!")
	require.NoError(t, err)
	assert.NotEqual(t, "Abcdefghi!", hash)
	assert.True(t, strings.HasPrefix(hash, "$2"), "bcrypt hashes are self-describing")

	assert.True(t, s.VerifyPassword(ctx, "Abcdefghi!", hash))
	assert.False(t, s.VerifyPassword(ctx, "Abcdefghi?", hash))
	assert.False(t, s.VerifyPassword(ctx, "", hash))
	assert.False(t, s.VerifyPassword(ctx, "Abcdefghi!", ""))
	assert.False(t, s.VerifyPassword(ctx, "Abcdefghi!", "not-a-hash"))
}

func TestHashPassword_Salted(t *testing.T) {
	s := newTestService(t, &clock{t: time.Now()})
	ctx := context.Background()

	h1, err := s.HashPassword(ctx, "Abcdefghi!")
	require.NoError(t, err)
	h2, err := s.HashPassword(ctx, "Abcdefghi!")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.True(t, s.VerifyPassword(ctx, "Abcdefghi!", h1))
	assert.True(t, s.VerifyPassword(ctx, "Abcdefghi!", h2))
}

func TestHashPassword_TooLong(t *testing.T) {
	s := newTestService(t, &clock{t: time.Now()})

	_, err := s.HashPassword(context.Background(), "Aa!"+strings.Repeat("x", 80))
	require.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestHashPassword_CancelledWhileWaiting(t *testing.T) {
	s, err := New(Options{Secret: "s", Cost: bcrypt.MinCost, MaxConcurrentHashes: 1})
	require.NoError(t, err)

	// Hold the only slot.
	require.NoError(t, s.hashes.Acquire(context.Background(), 1))
	defer s.hashes.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.HashPassword(ctx, "Abcdefghi!")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, s.VerifyPassword(ctx, "Abcdefghi!", "$2a$04$abc"))
}

func TestIssueToken_Claims(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	s := newTestService(t, c)

	tok, err := s.IssueToken(model.User{ID: 42, Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, c.t.Add(DefaultTTL), tok.ExpiresAt)

	claims, err := s.ParseToken(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "a@b.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, c.t.Add(DefaultTTL).Unix(), claims.ExpiresAt.Unix())
}

func TestIssueToken_UniquePerLogin(t *testing.T) {
	s := newTestService(t, &clock{t: time.Now()})
	u := model.User{ID: 1, Email: "a@b.com"}

	t1, err := s.IssueToken(u)
	require.NoError(t, err)
	t2, err := s.IssueToken(u)
	require.NoError(t, err)
	assert.NotEqual(t, t1.Value, t2.Value)
}

func TestValidateToken_Lifetime(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	s := newTestService(t, c)

	tok, err := s.IssueToken(model.User{ID: 7, Email: "a@b.com"})
	require.NoError(t, err)
	assert.True(t, s.ValidateToken(tok.Value))

	c.Advance(DefaultTTL - time.Second)
	assert.True(t, s.ValidateToken(tok.Value))

	c.Advance(2 * time.Second)
	assert.False(t, s.ValidateToken(tok.Value))
}

func TestValidateToken_Rejects(t *testing.T) {
	c := &clock{t: time.Now()}
	s := newTestService(t, c)
	tok, err := s.IssueToken(model.User{ID: 7, Email: "a@b.com"})
	require.NoError(t, err)

	other, err := New(Options{Secret: "other-secret", Cost: bcrypt.MinCost, Now: c.Now})
	require.NoError(t, err)
	foreign, err := other.IssueToken(model.User{ID: 7, Email: "a@b.com"})
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "7",
		"exp": c.t.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	parts := strings.Split(tok.Value, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not.a.token",
		"truncated":      tok.Value[:len(tok.Value)-5],
		"tampered":       tampered,
		"wrong secret":   foreign.Value,
		"alg none":       noneToken,
		"missing expiry": noExp,
		"whitespace":     " " + tok.Value,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, s.ValidateToken(raw))
		})
	}
}

func TestValidateToken_ZeroUserIDSubjectStillParses(t *testing.T) {
	s := newTestService(t, &clock{t: time.Now()})
	tok, err := s.IssueToken(model.User{})
	require.NoError(t, err)

	claims, err := s.ParseToken(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "0", claims.Subject)
}
