package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/movie-catalog/internal/auth"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository/memstore"
	"github.com/iliyamo/movie-catalog/internal/session"
)

const (
	testPassword = "Abcdefghi!"
	otherPass    = "Zyxwvutsr?"
)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []queue.CatalogEvent
}

func (r *recorder) Publish(_ context.Context, ev queue.CatalogEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// waitFor blocks until n events were published.
func (r *recorder) waitFor(t *testing.T, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.types()) >= n }, time.Second, 5*time.Millisecond)
	return r.types()
}

type fixture struct {
	users    *memstore.Users
	movies   *memstore.Movies
	sessions *session.Service
	account  *Account
	catalog  *Catalog
	events   *recorder
	now      *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Now()
	f := &fixture{
		users:  memstore.NewUsers(),
		movies: memstore.NewMovies(),
		events: &recorder{},
		now:    &now,
	}
	f.users.CascadeTo(f.movies)
	var err error
	f.sessions, err = session.New(session.Options{
		Secret: "test-secret",
		Cost:   bcrypt.MinCost,
		Now:    func() time.Time { return *f.now },
	})
	require.NoError(t, err)

	gate := auth.NewGate(f.users, f.sessions, nil)
	f.account = NewAccount(f.users, f.sessions, gate, f.events, nil)
	f.catalog = NewCatalog(f.movies, gate, f.events, nil)
	return f
}

// login registers email and returns a fresh token for it.
func (f *fixture) login(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()
	_, err := f.account.Register(ctx, email, testPassword)
	require.NoError(t, err)
	res, err := f.account.Login(ctx, email, testPassword)
	require.NoError(t, err)
	return res.Token
}
