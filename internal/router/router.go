// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"io"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/handler"
	"github.com/iliyamo/movie-catalog/internal/metrics"
	"github.com/iliyamo/movie-catalog/internal/middleware"
)

// Deps holds what New needs to build the HTTP stack. Redis may be nil, in
// which case caching and rate limiting are disabled.
type Deps struct {
	Auth      *handler.AuthHandler
	Movies    *handler.MovieHandler
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Logger    *slog.Logger
}

// New returns an echo instance with every route registered.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(d.Logger))

	RegisterRoutes(e)
	invalidate := middleware.NewCacheInvalidator(d.Cache, d.Redis, d.Logger)
	RegisterAuth(e, d.Auth, middleware.NewRateLimiter(d.RateLimit, d.Redis, d.Logger), invalidate)
	RegisterMovies(e, d.Movies, middleware.NewResponseCache(d.Cache, d.Redis, d.Logger), invalidate)
	return e
}

// RegisterRoutes registers the operational endpoints.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers account endpoints. limit guards the credential
// endpoints against brute force. Deleting an account removes its movies, so
// it invalidates the listing cache too.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limit, invalidate echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	u := e.Group("/v1/users")
	u.GET("/me", a.Me)
	u.GET("/count", a.Count)
	u.GET("/:id", a.GetUser)
	u.DELETE("/:id", a.DeleteUser, invalidate)
}

// RegisterMovies registers the catalog endpoints. Only the listing is
// cached; every write invalidates the cache.
func RegisterMovies(e *echo.Echo, m *handler.MovieHandler, cache, invalidate echo.MiddlewareFunc) {
	g := e.Group("/v1/movies")
	g.GET("", m.List, cache)
	g.GET("/:id", m.Get)
	g.POST("", m.Create, invalidate)
	g.PATCH("/:id", m.Patch, invalidate)
	g.PUT("/:id", m.Put, invalidate)
	g.DELETE("/:id", m.Delete, invalidate)
}
