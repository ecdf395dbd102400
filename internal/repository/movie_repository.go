package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/movie-catalog/internal/model"
)

const movieColumns = "id, title, director, cast_members, synopsis, duration, year, genre, is_public, user_id, created_at, updated_at"

// MovieRepo manages persistence for movies. Writes are always scoped to
// an owner: a row that exists but belongs to someone else is reported as
// ErrMovieNotFound, exactly like a missing row.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo constructs a MovieRepo with the given DB handle.
func NewMovieRepo(db *sql.DB) *MovieRepo {
	return &MovieRepo{db: db}
}

// Create inserts m and assigns the generated ID and timestamps back to it.
// m.UserID must already hold the creator's id. A nil cast becomes empty.
func (r *MovieRepo) Create(ctx context.Context, m *model.Movie) error {
	if m.Cast == nil {
		m.Cast = []string{}
	}
	cast, err := encodeCast(m.Cast)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Truncate(time.Second)
	const q = `INSERT INTO movies
		(title, director, cast_members, synopsis, duration, year, genre, is_public, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		m.Title, m.Director, cast, m.Synopsis, m.Duration, m.Year, m.Genre, m.IsPublic, m.UserID, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// GetByID retrieves a movie by its ID. It returns ErrMovieNotFound if
// there is no matching row.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+movieColumns+" FROM movies WHERE id = ?", id)
	m, err := scanMovie(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}
	return m, nil
}

// Search returns one page of movies matching q together with the total
// number of matches. Text filters are case-insensitive substring matches;
// Year is an exact match. Results are ordered by id.
func (r *MovieRepo) Search(ctx context.Context, q model.MovieQuery) ([]model.Movie, int64, error) {
	q = q.Normalize()
	where := []string{}
	args := []any{}

	if q.PublicOnly {
		where = append(where, "is_public = TRUE")
	}
	if q.Title != "" {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Title)+"%")
	}
	if q.Director != "" {
		where = append(where, "LOWER(director) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Director)+"%")
	}
	if q.Genre != "" {
		where = append(where, "LOWER(genre) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Genre)+"%")
	}
	if q.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, q.Year)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM movies WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := "SELECT " + movieColumns + " FROM movies WHERE " + cond + " ORDER BY id ASC LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), q.PageSize, q.Offset())

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Movie, 0, q.PageSize)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdateByIDAndOwner applies the non-nil fields of patch to the movie if it
// belongs to ownerID and returns the stored result.
func (r *MovieRepo) UpdateByIDAndOwner(ctx context.Context, id, ownerID uint64, patch model.MoviePatch) (*model.Movie, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Truncate(time.Second)}

	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Director != nil {
		add("director", *patch.Director)
	}
	if patch.Cast != nil {
		cast, err := encodeCast(*patch.Cast)
		if err != nil {
			return nil, err
		}
		add("cast_members", cast)
	}
	if patch.Synopsis != nil {
		add("synopsis", *patch.Synopsis)
	}
	if patch.Duration != nil {
		add("duration", *patch.Duration)
	}
	if patch.Year != nil {
		add("year", *patch.Year)
	}
	if patch.Genre != nil {
		add("genre", *patch.Genre)
	}
	if patch.IsPublic != nil {
		add("is_public", *patch.IsPublic)
	}
	args = append(args, id, ownerID)

	q := "UPDATE movies SET " + strings.Join(sets, ", ") + " WHERE id = ? AND user_id = ?"
	if err := r.execOwned(ctx, q, args...); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// ReplaceByIDAndOwner overwrites every editable field of the movie with the
// values in m. The owner and the creation time are kept.
func (r *MovieRepo) ReplaceByIDAndOwner(ctx context.Context, id, ownerID uint64, m model.Movie) (*model.Movie, error) {
	cast, err := encodeCast(m.Cast)
	if err != nil {
		return nil, err
	}
	const q = `UPDATE movies
		SET title = ?, director = ?, cast_members = ?, synopsis = ?, duration = ?, year = ?,
		    genre = ?, is_public = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`
	err = r.execOwned(ctx, q,
		m.Title, m.Director, cast, m.Synopsis, m.Duration, m.Year, m.Genre, m.IsPublic,
		time.Now().UTC().Truncate(time.Second), id, ownerID)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// DeleteByIDAndOwner removes the movie if it belongs to ownerID.
func (r *MovieRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error {
	return r.execOwned(ctx, "DELETE FROM movies WHERE id = ? AND user_id = ?", id, ownerID)
}

func (r *MovieRepo) execOwned(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMovieNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(s rowScanner) (*model.Movie, error) {
	var (
		m        model.Movie
		cast     []byte
		synopsis sql.NullString
		genre    sql.NullString
		year     sql.NullInt64
	)
	err := s.Scan(&m.ID, &m.Title, &m.Director, &cast, &synopsis, &m.Duration, &year, &genre,
		&m.IsPublic, &m.UserID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Synopsis = synopsis.String
	m.Genre = genre.String
	m.Year = int(year.Int64)
	if m.Cast, err = decodeCast(cast); err != nil {
		return nil, fmt.Errorf("movie %d: %w", m.ID, err)
	}
	return &m, nil
}

func encodeCast(cast []string) (string, error) {
	if cast == nil {
		cast = []string{}
	}
	b, err := json.Marshal(cast)
	if err != nil {
		return "", fmt.Errorf("encode cast: %w", err)
	}
	return string(b), nil
}

func decodeCast(b []byte) ([]string, error) {
	cast := []string{}
	if len(b) == 0 {
		return cast, nil
	}
	if err := json.Unmarshal(b, &cast); err != nil {
		return nil, fmt.Errorf("decode cast: %w", err)
	}
	return cast, nil
}
