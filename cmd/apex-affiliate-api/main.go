package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shabbenantes/apex-affiliate-api/internal/config"
	"github.com/shabbenantes/apex-affiliate-api/internal/crm"
	"github.com/shabbenantes/apex-affiliate-api/internal/http-server/handler/health"
	"github.com/shabbenantes/apex-affiliate-api/internal/http-server/handler/magiclink/request"
	"github.com/shabbenantes/apex-affiliate-api/internal/http-server/handler/magiclink/verify"
	"github.com/shabbenantes/apex-affiliate-api/internal/http-server/handler/session/validate"
	"github.com/shabbenantes/apex-affiliate-api/internal/lib/logger/sl"
	authService "github.com/shabbenantes/apex-affiliate-api/internal/service/auth"
	"github.com/shabbenantes/apex-affiliate-api/internal/service/sweeper"
	tokenGen "github.com/shabbenantes/apex-affiliate-api/internal/service/token-gen"
	"github.com/shabbenantes/apex-affiliate-api/internal/storage"
	"github.com/shabbenantes/apex-affiliate-api/internal/storage/memory"
	"github.com/shabbenantes/apex-affiliate-api/internal/storage/mongo"
	"github.com/shabbenantes/apex-affiliate-api/internal/storage/postgres"
	"github.com/shabbenantes/apex-affiliate-api/internal/storage/redisstore"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg := config.MustLoad()

	log := slog.New(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer cancel()

	store, err := newStorage(ctx, cfg)
	if err != nil {
		panic(err)
	}

	log.Info("token store ready", slog.String("backend", cfg.Storage.Backend))

	crmClient := crm.New(cfg.CRM.APIBase, cfg.CRM.APIKey, cfg.CRM.LocationID)

	auth := authService.New(log, store, crmClient, crmClient, tokenGen.New(), cfg.SiteURL)

	go sweeper.New(log, store, cfg.SweepInterval).Run(ctx)

	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Route("/api", func(r chi.Router) {
		r.Post("/magic-link-request", request.New(ctx, log, auth))
		r.Post("/magic-link-verify", verify.New(ctx, log, auth))
		r.Post("/affiliate-validate", validate.New(ctx, log, auth))
	})
	router.Get("/health", health.New(ctx, log, store))

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("address", srv.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		log.Error("server error", sl.Err(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown server", sl.Err(err))
	}

	if err := store.Close(shutdownCtx); err != nil {
		log.Error("failed to close storage", sl.Err(err))
	}

	log.Warn("server stopped")
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.TokenStore, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		return postgres.New(dbURL(cfg))
	case "mongo":
		return mongo.New(ctx, cfg.Storage.MongoURI)
	case "redis":
		return redisstore.New(ctx, cfg.Storage.RedisAddr)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func dbURL(cfg *config.Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.Name,
	)
}
