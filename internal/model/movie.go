package model

import "time"

// Movie represents a catalog entry owned by a user. This struct
// corresponds to a row in the `movies` table. UserID is stamped from the
// authenticated caller at creation and never changes afterwards.
type Movie struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Director  string    `json:"director"`
	Cast      []string  `json:"cast"`
	Synopsis  string    `json:"synopsis,omitempty"`
	Duration  int       `json:"duration"`
	Year      int       `json:"year,omitempty"`
	Genre     string    `json:"genre,omitempty"`
	IsPublic  bool      `json:"is_public"`
	UserID    uint64    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MoviePatch describes a partial update. Only non-nil fields are written.
// The owner is deliberately absent.
type MoviePatch struct {
	Title    *string   `json:"title"`
	Director *string   `json:"director"`
	Cast     *[]string `json:"cast"`
	Synopsis *string   `json:"synopsis"`
	Duration *int      `json:"duration"`
	Year     *int      `json:"year"`
	Genre    *string   `json:"genre"`
	IsPublic *bool     `json:"is_public"`
}

// Empty reports whether the patch would not change anything.
func (p MoviePatch) Empty() bool {
	return p.Title == nil && p.Director == nil && p.Cast == nil && p.Synopsis == nil &&
		p.Duration == nil && p.Year == nil && p.Genre == nil && p.IsPublic == nil
}

// Apply copies the non-nil fields of the patch onto m.
func (p MoviePatch) Apply(m *Movie) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Director != nil {
		m.Director = *p.Director
	}
	if p.Cast != nil {
		m.Cast = append([]string(nil), (*p.Cast)...)
	}
	if p.Synopsis != nil {
		m.Synopsis = *p.Synopsis
	}
	if p.Duration != nil {
		m.Duration = *p.Duration
	}
	if p.Year != nil {
		m.Year = *p.Year
	}
	if p.Genre != nil {
		m.Genre = *p.Genre
	}
	if p.IsPublic != nil {
		m.IsPublic = *p.IsPublic
	}
}

// MovieQuery defines filters and pagination for listing movies.
// PublicOnly restricts the result to movies with IsPublic set.
type MovieQuery struct {
	PublicOnly bool
	Title      string
	Director   string
	Genre      string
	Year       int
	Page       int
	PageSize   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps Page and PageSize into their valid ranges.
func (q MovieQuery) Normalize() MovieQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// Offset returns the number of rows to skip for the current page.
func (q MovieQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}
