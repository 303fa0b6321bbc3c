// Package cli implements the tallybook client commands.
package cli

import (
	"context"
	"fmt"

	"github.com/tallybook/tallybook/internal/client/config"
	"github.com/tallybook/tallybook/internal/client/ledger"
	"github.com/tallybook/tallybook/internal/client/remote"
	"github.com/tallybook/tallybook/internal/client/store"
	clientsync "github.com/tallybook/tallybook/internal/client/sync"
	"github.com/tallybook/tallybook/internal/logging"
)

// App holds the wired client: config, local ledger, remote client and the
// sync orchestrator. Commands that only need config (login) skip the full
// wiring.
type App struct {
	Config *config.Config
	Log    logging.Logger
	Ledger *ledger.Ledger
	Sync   *clientsync.Orchestrator
	Auto   *clientsync.AutoSync

	store *store.SQLite
}

// openApp wires the full client stack for data-bearing commands.
func openApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel)

	var auto *clientsync.AutoSync
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	led, err := ledger.Open(ctx, db, ledger.Options{
		Logger: log,
		OnChange: func(ch ledger.Change) {
			if auto != nil {
				auto.Notify(ch.FromSync)
			}
		},
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	rm := remote.NewHTTPClient(cfg.ServerURL, cfg.Token())
	orch := clientsync.New(rm, led, log, clientsync.Options{
		MinInterval:   cfg.MinInterval,
		DebounceDelay: cfg.DebounceDelay,
		PostSyncQuiet: cfg.PostSyncQuiet,
		StaleAfter:    cfg.StaleAfter,
		AutoSync:      cfg.AutoSync,
		Profile:       clientsync.ProfileByName(cfg.NetworkProfile),
	}, nil)
	auto = clientsync.NewAutoSync(orch)

	return &App{
		Config: cfg,
		Log:    log,
		Ledger: led,
		Sync:   orch,
		Auto:   auto,
		store:  db,
	}, nil
}

func (a *App) Close() error {
	a.Auto.Stop()
	return a.store.Close()
}
