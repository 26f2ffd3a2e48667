package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authd/core"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run owns every resource so that deferred closes execute before main exits.
func run() error {
	cfg, err := core.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	users, storeCloser, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	defer storeCloser.Close()

	tokens, err := core.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to init token service: %w", err)
	}
	authService := core.NewRepositoryAuthService(users, core.NewBcryptHasher(cfg.BcryptCost), tokens)
	router := core.NewRouter(cfg, authService, core.NewBearerGuard(tokens), users)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("starting api server on %s (store=%s)", srv.Addr, cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	log.Printf("api server stopped")
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openStore(ctx context.Context, cfg core.Config) (core.UserRepository, io.Closer, error) {
	switch cfg.StoreBackend {
	case core.BackendRedis:
		client, err := core.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return core.NewRedisUserRepository(client), client, nil
	default:
		if cfg.AutoMigrate {
			if err := migrateUp(cfg.DatabaseURL); err != nil {
				return nil, nil, err
			}
		}
		db, err := core.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return core.NewPgUserRepository(db), closerFunc(func() error { db.Close(); return nil }), nil
	}
}

func migrateUp(databaseURL string) error {
	m, err := core.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		return err
	}
	version, _, err := m.Version()
	if err != nil {
		return err
	}
	log.Printf("schema at version %d", version)
	return nil
}
