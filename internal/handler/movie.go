package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-catalog/internal/middleware"
	"github.com/iliyamo/movie-catalog/internal/model"
	"github.com/iliyamo/movie-catalog/internal/service"
)

// MovieHandler serves the /v1/movies endpoints. Access rules live in
// service.Catalog; handlers only move the token and payloads in and out.
type MovieHandler struct {
	Catalog *service.Catalog
	Logger  *slog.Logger
}

func NewMovieHandler(cat *service.Catalog, logger *slog.Logger) *MovieHandler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MovieHandler{Catalog: cat, Logger: logger}
}

// movieReq is the body of create and full replace.
type movieReq struct {
	Title    string   `json:"title"`
	Director string   `json:"director"`
	Cast     []string `json:"cast"`
	Synopsis string   `json:"synopsis"`
	Duration int      `json:"duration"`
	Year     int      `json:"year"`
	Genre    string   `json:"genre"`
	IsPublic bool     `json:"is_public"`
}

func (r movieReq) toModel() model.Movie {
	return model.Movie{
		Title:    r.Title,
		Director: r.Director,
		Cast:     r.Cast,
		Synopsis: r.Synopsis,
		Duration: r.Duration,
		Year:     r.Year,
		Genre:    r.Genre,
		IsPublic: r.IsPublic,
	}
}

type pageResp struct {
	Items    []model.Movie `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// Create stores a new movie owned by the caller.
func (h *MovieHandler) Create(c echo.Context) error {
	var req movieReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Catalog.Create(ctx, middleware.TokenFromRequest(c), req.toModel())
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// List returns a filtered page of the movies visible to the caller.
//
// Query params: page, page_size, title, director, genre, year.
func (h *MovieHandler) List(c echo.Context) error {
	q, err := parseQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := h.Catalog.List(ctx, middleware.TokenFromRequest(c), q)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	items := page.Items
	if items == nil {
		items = []model.Movie{}
	}
	return c.JSON(http.StatusOK, pageResp{Items: items, Total: page.Total, Page: page.Page, PageSize: page.PageSize})
}

// Get returns one movie.
func (h *MovieHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid movie id")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Catalog.Get(ctx, middleware.TokenFromRequest(c), id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Patch updates the fields present in the body.
func (h *MovieHandler) Patch(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	var patch model.MoviePatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Catalog.Update(ctx, middleware.TokenFromRequest(c), id, patch)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Put replaces every editable field of the movie.
func (h *MovieHandler) Put(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	var req movieReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Catalog.Replace(ctx, middleware.TokenFromRequest(c), id, req.toModel())
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Delete removes the movie.
func (h *MovieHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid movie id")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Catalog.Delete(ctx, middleware.TokenFromRequest(c), id); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// parseQuery reads the listing filters. Missing numbers stay zero and are
// defaulted by model.MovieQuery.Normalize.
func parseQuery(c echo.Context) (model.MovieQuery, error) {
	q := model.MovieQuery{
		Title:    strings.TrimSpace(c.QueryParam("title")),
		Director: strings.TrimSpace(c.QueryParam("director")),
		Genre:    strings.TrimSpace(c.QueryParam("genre")),
	}
	for name, dst := range map[string]*int{"page": &q.Page, "page_size": &q.PageSize, "year": &q.Year} {
		raw := strings.TrimSpace(c.QueryParam(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return model.MovieQuery{}, fmt.Errorf("invalid %s", name)
		}
		*dst = n
	}
	return q, nil
}
