// Package session hashes and verifies passwords and issues and validates
// the bearer tokens handed out on login.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/iliyamo/movie-catalog/internal/metrics"
	"github.com/iliyamo/movie-catalog/internal/model"
)

const (
	// DefaultTTL is how long an issued token stays valid.
	DefaultTTL = 20 * time.Minute
	// DefaultCost is the bcrypt cost used when Options.Cost is zero.
	DefaultCost = 10
	// DefaultMaxConcurrentHashes bounds parallel bcrypt work.
	DefaultMaxConcurrentHashes = 4
)

var (
	// ErrEmptySecret is returned by New when no signing secret is configured.
	ErrEmptySecret = errors.New("session: signing secret is empty")
	// ErrPasswordTooLong mirrors bcrypt's 72 byte input limit.
	ErrPasswordTooLong = bcrypt.ErrPasswordTooLong
)

// Claims is the payload of an issued token. Subject holds the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Token is a signed token together with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Options configures a Service.
type Options struct {
	Secret              string
	TTL                 time.Duration
	Cost                int
	MaxConcurrentHashes int64
	Now                 func() time.Time
	Logger              *slog.Logger
}

// Service implements password hashing and token handling. The signing secret
// is fixed at construction and never changes afterwards.
type Service struct {
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
	hashes *semaphore.Weighted
	logger *slog.Logger
	parser *jwt.Parser
}

// New validates opts and builds a Service.
func New(opts Options) (*Service, error) {
	if opts.Secret == "" {
		return nil, ErrEmptySecret
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Cost == 0 {
		opts.Cost = DefaultCost
	}
	if opts.Cost < bcrypt.MinCost || opts.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("session: bcrypt cost %d out of range [%d, %d]", opts.Cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if opts.MaxConcurrentHashes <= 0 {
		opts.MaxConcurrentHashes = DefaultMaxConcurrentHashes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Service{
		secret: []byte(opts.Secret),
		ttl:    opts.TTL,
		cost:   opts.Cost,
		now:    opts.Now,
		hashes: semaphore.NewWeighted(opts.MaxConcurrentHashes),
		logger: opts.Logger,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return s, nil
}

// TTL returns the lifetime of issued tokens.
func (s *Service) TTL() time.Duration { return s.ttl }

// HashPassword returns a bcrypt hash of plain. At most MaxConcurrentHashes
// hashes run at once; waiting for a slot honours ctx.
func (s *Service) HashPassword(ctx context.Context, plain string) (string, error) {
	if err := s.hashes.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.hashes.Release(1)

	start := time.Now()
	b, err := bcrypt.GenerateFromPassword([]byte(plain), s.cost)
	metrics.ObservePasswordHash("hash", time.Since(start))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash. bcrypt compares in
// constant time; a malformed hash or a cancelled ctx yields false.
func (s *Service) VerifyPassword(ctx context.Context, plain, hash string) bool {
	if hash == "" {
		return false
	}
	if err := s.hashes.Acquire(ctx, 1); err != nil {
		return false
	}
	defer s.hashes.Release(1)

	start := time.Now()
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	metrics.ObservePasswordHash("verify", time.Since(start))
	return err == nil
}

// IssueToken signs a token for u that expires TTL from now.
func (s *Service) IssueToken(u model.User) (Token, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: u.Email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// ParseToken verifies the signature, algorithm and expiry of raw and returns
// its claims.
func (s *Service) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// ValidateToken reports whether raw is a well-formed, correctly signed,
// unexpired token. The failure reason is only logged.
func (s *Service) ValidateToken(raw string) bool {
	if raw == "" {
		return false
	}
	if _, err := s.ParseToken(raw); err != nil {
		s.logger.Debug("token rejected", slog.String("reason", reason(err)))
		return false
	}
	return true
}

func reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable"
	default:
		return "invalid"
	}
}
