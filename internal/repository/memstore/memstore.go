// Package memstore keeps users and movies in process memory. It backs the
// server when DB_DRIVER=memory and gives service and handler tests a real
// store without a database. It returns the same sentinel errors as the
// MySQL repositories.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/repository"
)

// Users is a concurrency-safe in-memory user store.
type Users struct {
	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]*model.User
	now    func() time.Time
	movies *Movies
}

func NewUsers() *Users {
	return &Users{byID: map[uint64]*model.User{}, now: time.Now}
}

// CascadeTo makes Delete also remove the deleted user's movies from m, the
// way the movies foreign key does in MySQL.
func (s *Users) CascadeTo(m *Movies) *Users {
	s.movies = m
	return s
}

func (s *Users) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.byID {
		if existing.Email == email {
			return repository.ErrEmailExists
		}
	}
	s.nextID++
	now := s.now().UTC()
	u.ID = s.nextID
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	s.byID[u.ID] = &cp
	return nil
}

func (s *Users) FindByEmail(_ context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.find(func(u *model.User) bool { return u.Email == email })
}

func (s *Users) FindByToken(_ context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, repository.ErrUserNotFound
	}
	return s.find(func(u *model.User) bool { return u.Token == token })
}

func (s *Users) FindByID(_ context.Context, id uint64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Users) Update(_ context.Context, id uint64, patch model.UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if patch.Token != nil {
		u.Token = *patch.Token
	}
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Users) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	_, ok := s.byID[id]
	delete(s.byID, id)
	s.mu.Unlock()
	if !ok {
		return repository.ErrUserNotFound
	}
	if s.movies != nil {
		s.movies.deleteOwnedBy(id)
	}
	return nil
}

func (s *Users) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byID)), nil
}

func (s *Users) find(match func(*model.User) bool) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// Movies is a concurrency-safe in-memory movie store. Owner-scoped writes
// report a foreign movie as repository.ErrMovieNotFound.
type Movies struct {
	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]*model.Movie
	now    func() time.Time
}

func NewMovies() *Movies {
	return &Movies{byID: map[uint64]*model.Movie{}, now: time.Now}
}

func (s *Movies) Create(_ context.Context, m *model.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := s.now().UTC()
	m.ID = s.nextID
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Cast == nil {
		m.Cast = []string{}
	}
	s.byID[m.ID] = cloneMovie(m)
	return nil
}

func (s *Movies) GetByID(_ context.Context, id uint64) (*model.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrMovieNotFound
	}
	return cloneMovie(m), nil
}

func (s *Movies) Search(_ context.Context, q model.MovieQuery) ([]model.Movie, int64, error) {
	q = q.Normalize()
	s.mu.RLock()
	matched := make([]*model.Movie, 0, len(s.byID))
	for _, m := range s.byID {
		if matches(m, q) {
			matched = append(matched, m)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *model.Movie) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	total := int64(len(matched))
	out := make([]model.Movie, 0, q.PageSize)
	start := q.Offset()
	if start >= len(matched) {
		return out, total, nil
	}
	end := min(start+q.PageSize, len(matched))
	for _, m := range matched[start:end] {
		out = append(out, *cloneMovie(m))
	}
	return out, total, nil
}

func (s *Movies) UpdateByIDAndOwner(_ context.Context, id, ownerID uint64, patch model.MoviePatch) (*model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok || m.UserID != ownerID {
		return nil, repository.ErrMovieNotFound
	}
	patch.Apply(m)
	m.UpdatedAt = s.now().UTC()
	return cloneMovie(m), nil
}

func (s *Movies) ReplaceByIDAndOwner(_ context.Context, id, ownerID uint64, next model.Movie) (*model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok || m.UserID != ownerID {
		return nil, repository.ErrMovieNotFound
	}
	next.ID = m.ID
	next.UserID = m.UserID
	next.CreatedAt = m.CreatedAt
	next.UpdatedAt = s.now().UTC()
	if next.Cast == nil {
		next.Cast = []string{}
	}
	s.byID[id] = cloneMovie(&next)
	return cloneMovie(&next), nil
}

func (s *Movies) DeleteByIDAndOwner(_ context.Context, id, ownerID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok || m.UserID != ownerID {
		return repository.ErrMovieNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *Movies) deleteOwnedBy(ownerID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.byID {
		if m.UserID == ownerID {
			delete(s.byID, id)
		}
	}
}

func matches(m *model.Movie, q model.MovieQuery) bool {
	if q.PublicOnly && !m.IsPublic {
		return false
	}
	if q.Year != 0 && m.Year != q.Year {
		return false
	}
	return containsFold(m.Title, q.Title) &&
		containsFold(m.Director, q.Director) &&
		containsFold(m.Genre, q.Genre)
}

func containsFold(s, sub string) bool {
	return sub == "" || strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func cloneMovie(m *model.Movie) *model.Movie {
	cp := *m
	cp.Cast = slices.Clone(m.Cast)
	if cp.Cast == nil {
		cp.Cast = []string{}
	}
	return &cp
}
