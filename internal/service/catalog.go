package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/samber/oops"

	"github.com/iliyamo/movie-catalog/internal/auth"
	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository"
)

// MovieStore persists movies. Owner-scoped writes return
// repository.ErrMovieNotFound when the movie is missing or owned by someone
// else.
type MovieStore interface {
	Create(ctx context.Context, m *model.Movie) error
	GetByID(ctx context.Context, id uint64) (*model.Movie, error)
	Search(ctx context.Context, q model.MovieQuery) ([]model.Movie, int64, error)
	UpdateByIDAndOwner(ctx context.Context, id, ownerID uint64, patch model.MoviePatch) (*model.Movie, error)
	ReplaceByIDAndOwner(ctx context.Context, id, ownerID uint64, m model.Movie) (*model.Movie, error)
	DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error
}

// MoviePage is one page of a listing.
type MoviePage struct {
	Items    []model.Movie
	Total    int64
	Page     int
	PageSize int
}

// Catalog applies the access rules to movie reads and writes: every write
// goes through the gate, only the owner may change or remove a movie, and
// callers without a valid session only see public movies.
type Catalog struct {
	movies MovieStore
	gate   *auth.Gate
	events EventPublisher
	logger *slog.Logger
}

// NewCatalog wires a Catalog. events and logger may be nil.
func NewCatalog(movies MovieStore, gate *auth.Gate, events EventPublisher, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Catalog{movies: movies, gate: gate, events: events, logger: logger}
}

// Create stores m owned by the caller. Any id or owner in m is ignored.
func (c *Catalog) Create(ctx context.Context, token string, m model.Movie) (*model.Movie, error) {
	d, err := c.gate.Authorize(ctx, token, nil)
	if err != nil {
		return nil, oops.Wrapf(err, "authorize")
	}
	if !d.Allowed() {
		return nil, denied(d)
	}
	if err := validateMovie(&m); err != nil {
		return nil, err
	}

	m.ID = 0
	m.UserID = d.UserID
	if err := c.movies.Create(ctx, &m); err != nil {
		return nil, oops.Wrapf(err, "create movie")
	}

	c.logger.InfoContext(ctx, "movie created", slog.Uint64("movie_id", m.ID), slog.Uint64("user_id", m.UserID))
	publish(ctx, c.events, c.logger, queue.NewMovieEvent(queue.MovieCreated, d.UserID, m))
	return &m, nil
}

// List returns a page of movies. Callers holding a valid session see every
// movie; everybody else sees public movies only.
func (c *Catalog) List(ctx context.Context, token string, q model.MovieQuery) (MoviePage, error) {
	all, err := c.seesAll(ctx, token)
	if err != nil {
		return MoviePage{}, err
	}
	q = q.Normalize()
	q.PublicOnly = !all

	items, total, err := c.movies.Search(ctx, q)
	if err != nil {
		return MoviePage{}, oops.Wrapf(err, "search movies")
	}
	return MoviePage{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// Get returns one movie. A private movie is reported as missing to callers
// who may not see it.
func (c *Catalog) Get(ctx context.Context, token string, id uint64) (*model.Movie, error) {
	m, err := c.movies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return nil, notFound("movie not found")
		}
		return nil, oops.Wrapf(err, "get movie")
	}
	if m.IsPublic {
		return m, nil
	}
	all, err := c.seesAll(ctx, token)
	if err != nil {
		return nil, err
	}
	if !all {
		return nil, notFound("movie not found")
	}
	return m, nil
}

// Update applies the non-nil fields of patch. Only the owner may update.
func (c *Catalog) Update(ctx context.Context, token string, id uint64, patch model.MoviePatch) (*model.Movie, error) {
	d, _, err := c.authorizeOwner(ctx, token, id)
	if err != nil {
		return nil, err
	}
	if err := validatePatch(&patch); err != nil {
		return nil, err
	}

	m, err := c.movies.UpdateByIDAndOwner(ctx, id, d.UserID, patch)
	if err != nil {
		return nil, c.writeError(err, "update movie")
	}
	publish(ctx, c.events, c.logger, queue.NewMovieEvent(queue.MovieUpdated, d.UserID, *m))
	return m, nil
}

// Replace overwrites every editable field with next. The owner is kept.
func (c *Catalog) Replace(ctx context.Context, token string, id uint64, next model.Movie) (*model.Movie, error) {
	d, _, err := c.authorizeOwner(ctx, token, id)
	if err != nil {
		return nil, err
	}
	if err := validateMovie(&next); err != nil {
		return nil, err
	}

	m, err := c.movies.ReplaceByIDAndOwner(ctx, id, d.UserID, next)
	if err != nil {
		return nil, c.writeError(err, "replace movie")
	}
	publish(ctx, c.events, c.logger, queue.NewMovieEvent(queue.MovieUpdated, d.UserID, *m))
	return m, nil
}

// Delete removes the movie. Only the owner may delete.
func (c *Catalog) Delete(ctx context.Context, token string, id uint64) error {
	d, m, err := c.authorizeOwner(ctx, token, id)
	if err != nil {
		return err
	}
	if err := c.movies.DeleteByIDAndOwner(ctx, id, d.UserID); err != nil {
		return c.writeError(err, "delete movie")
	}
	c.logger.InfoContext(ctx, "movie deleted", slog.Uint64("movie_id", id), slog.Uint64("user_id", d.UserID))
	publish(ctx, c.events, c.logger, queue.NewMovieEvent(queue.MovieDeleted, d.UserID, *m))
	return nil
}

// authorizeOwner runs the gate with the movie's owner looked up only after
// the token has been accepted. It returns the movie as it was before the
// write.
func (c *Catalog) authorizeOwner(ctx context.Context, token string, id uint64) (auth.Decision, *model.Movie, error) {
	var current *model.Movie
	d, err := c.gate.AuthorizeOwner(ctx, token, func(ctx context.Context) (uint64, error) {
		m, err := c.movies.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		current = m
		return m.UserID, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return auth.Decision{}, nil, notFound("movie not found")
		}
		return auth.Decision{}, nil, oops.Wrapf(err, "authorize")
	}
	if !d.Allowed() {
		return d, nil, denied(d)
	}
	return d, current, nil
}

// seesAll reports whether token unlocks private movies.
func (c *Catalog) seesAll(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	d, err := c.gate.Authorize(ctx, token, nil)
	if err != nil {
		return false, oops.Wrapf(err, "authorize")
	}
	return d.Allowed(), nil
}

// writeError maps a store error from an owner-scoped write. A movie that
// vanished or changed hands between the gate and the write is reported as
// missing.
func (c *Catalog) writeError(err error, op string) error {
	if errors.Is(err, repository.ErrMovieNotFound) {
		return notFound("movie not found")
	}
	return oops.Wrapf(err, "%s", op)
}

// maxYear is the largest year the movies.year SMALLINT column holds.
const maxYear = 32767

func validateMovie(m *model.Movie) error {
	m.Title = strings.TrimSpace(m.Title)
	m.Director = strings.TrimSpace(m.Director)
	switch {
	case m.Title == "":
		return invalidf("invalid title: is required")
	case m.Director == "":
		return invalidf("invalid director: is required")
	case m.Duration <= 0:
		return invalidf("invalid duration: must be a positive number of minutes")
	case m.Year < 0:
		return invalidf("invalid year: must not be negative")
	case m.Year > maxYear:
		return invalidf("invalid year: must be at most %d", maxYear)
	}
	return nil
}

func validatePatch(p *model.MoviePatch) error {
	if p.Empty() {
		return invalidf("no fields to update")
	}
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return invalidf("invalid title: must not be empty")
		}
		p.Title = &t
	}
	if p.Director != nil {
		d := strings.TrimSpace(*p.Director)
		if d == "" {
			return invalidf("invalid director: must not be empty")
		}
		p.Director = &d
	}
	if p.Duration != nil && *p.Duration <= 0 {
		return invalidf("invalid duration: must be a positive number of minutes")
	}
	if p.Year != nil && *p.Year < 0 {
		return invalidf("invalid year: must not be negative")
	}
	if p.Year != nil && *p.Year > maxYear {
		return invalidf("invalid year: must be at most %d", maxYear)
	}
	return nil
}
