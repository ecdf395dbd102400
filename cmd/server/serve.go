package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/iliyamo/movie-catalog/internal/auth"
	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/database"
	"github.com/iliyamo/movie-catalog/internal/handler"
	"github.com/iliyamo/movie-catalog/internal/logger"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository"
	"github.com/iliyamo/movie-catalog/internal/repository/memstore"
	"github.com/iliyamo/movie-catalog/internal/router"
	"github.com/iliyamo/movie-catalog/internal/service"
	"github.com/iliyamo/movie-catalog/internal/session"
)

const shutdownTimeout = 10 * time.Second

var autoMigrate = true

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. When RabbitMQ is enabled the event consumer runs
alongside the server and appends every catalog event to LOG_DIR/catalog.log.`,
		RunE: runServe,
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", true, "apply pending migrations before serving (mysql only)")
	return cmd
}

// app is the assembled server and everything that must be released with it.
type app struct {
	echo     *echo.Echo
	consumer *queue.Consumer
	closers  []func() error
}

func (a *app) close(log *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn("close failed", slog.Any("error", err))
		}
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer a.close(log.Logger)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event consumer stopped", slog.Any("error", err))
			}
		}()
	}

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", addr), slog.String("env", cfg.Env), slog.String("db", cfg.DB.Driver))
		errCh <- a.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// buildApp wires stores, services, handlers and middleware from cfg.
func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{}

	users, movies, db, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if db != nil {
		a.closers = append(a.closers, db.Close)
	}

	sessions, err := session.New(session.Options{
		Secret:              cfg.JWTSecret,
		TTL:                 cfg.AccessTTL(),
		Cost:                cfg.BcryptCost,
		MaxConcurrentHashes: cfg.HashConcurrency,
		Logger:              log,
	})
	if err != nil {
		a.close(log)
		return nil, err
	}

	var events service.EventPublisher
	if cfg.Broker.Enabled {
		pub := queue.NewPublisher(cfg.Broker.URL, cfg.Broker.Queue, log)
		events = pub
		a.closers = append(a.closers, pub.Close)
		a.consumer = queue.NewConsumer(cfg.Broker.URL, cfg.Broker.Queue, cfg.LogDir, log)
	}

	var rdb *redis.Client
	if cfg.Cache.Enabled || cfg.RateLimit.Enabled {
		if rdb = config.NewRedisClient(cfg.Redis); rdb == nil {
			log.Warn("redis unavailable; caching and rate limiting disabled", slog.String("addr", cfg.Redis.Address()))
		} else {
			a.closers = append(a.closers, rdb.Close)
		}
	}

	gate := auth.NewGate(users, sessions, log)
	account := service.NewAccount(users, sessions, gate, events, log)
	catalog := service.NewCatalog(movies, gate, events, log)

	a.echo = router.New(router.Deps{
		Auth:      handler.NewAuthHandler(account, log),
		Movies:    handler.NewMovieHandler(catalog, log),
		Redis:     rdb,
		Cache:     cfg.Cache,
		RateLimit: cfg.RateLimit,
		Logger:    log,
	})
	return a, nil
}

// openStores returns the user and movie stores for cfg.DB.Driver. The
// returned *sql.DB is nil for the memory driver.
func openStores(ctx context.Context, cfg *config.Config) (auth.CredentialStore, service.MovieStore, *sql.DB, error) {
	if cfg.DB.Driver == "memory" {
		movies := memstore.NewMovies()
		return memstore.NewUsers().CascadeTo(movies), movies, nil, nil
	}

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return nil, nil, nil, err
	}
	if autoMigrate {
		if err := database.Migrate(ctx, db, database.MigrateUp); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
	}
	return repository.NewUserRepo(db), repository.NewMovieRepo(db), db, nil
}
