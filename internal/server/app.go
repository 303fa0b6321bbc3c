// Package server wires the reference server: config, storage backend,
// validation pool and the HTTP API, with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/panjf2000/ants/v2"

	"github.com/tallybook/tallybook/internal/logging"
	"github.com/tallybook/tallybook/internal/server/config"
	"github.com/tallybook/tallybook/internal/server/httpapi"
	"github.com/tallybook/tallybook/internal/server/storage"
)

type App struct {
	cfg   *config.Config
	log   logging.Logger
	store storage.Storage
	pool  *ants.Pool
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.New(cfg.LogLevel)

	var store storage.Storage
	if cfg.DatabaseDSN == "" {
		log.Info(ctx, "using in-memory storage")
		store = storage.NewMemory()
	} else {
		pg, err := storage.OpenPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("storage init: %w", err)
		}
		store = pg
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("worker pool init: %w", err)
	}

	return &App{cfg: cfg, log: log, store: store, pool: pool}, nil
}

// Run serves until ctx is cancelled, then drains with the configured
// shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	defer a.pool.Release()
	defer a.store.Close()

	api := httpapi.NewServer(a.store, a.log, []byte(a.cfg.JWTSecret), a.cfg.TokenTTL, a.pool)
	srv := &http.Server{
		Addr:    a.cfg.Address,
		Handler: api.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info(ctx, "server listening", "address", a.cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
