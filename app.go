package main

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/csflash/flashsync/internal/catalog"
	"github.com/csflash/flashsync/internal/config"
	"github.com/csflash/flashsync/internal/graph"
	"github.com/csflash/flashsync/internal/statestore"
	"github.com/csflash/flashsync/internal/sync"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// app bundles the wired collaborators the commands share. Built per
// invocation; Close releases the store and nothing else, the catalog
// connection pool closes with the process.
type app struct {
	cfg    *config.Config
	store  statestore.Store
	tokens *graph.TokenManager
	client *graph.Client
	db     *gorm.DB
	orch   *sync.Orchestrator
	logger *slog.Logger
}

// newApp wires the full stack from the loaded configuration. withCatalog
// skips the database connection for commands that never touch it.
func newApp(logger *slog.Logger, withCatalog bool) (*app, error) {
	cfg := loadedCfg

	store, err := openStateStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	tokens := graph.NewTokenManager(graph.AuthConfig{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		TenantID:     cfg.Auth.TenantID,
		RedirectURI:  cfg.Auth.RedirectURI,
		Scope:        cfg.Auth.Scope,
	}, store, metadataHTTPClient(), logger)

	client := graph.NewClient(graphBaseURL, metadataHTTPClient(), contentHTTPClient(), tokens, logger)

	a := &app{
		cfg:    cfg,
		store:  store,
		tokens: tokens,
		client: client,
		logger: logger,
	}

	if !withCatalog {
		return a, nil
	}

	db, err := catalog.Open(cfg.Catalog.Driver, cfg.Catalog.DSN)
	if err != nil {
		store.Close()
		return nil, err
	}

	a.db = db

	mat := catalog.NewMaterializer(db, cfg.Catalog.DefaultPrice, cfg.Sync.BatchSize, cfg.BatchDelay(), logger)

	transfer := sync.NewTransfer(cfg.Sync.BaseDir, cfg.Sync.TempDir, client, logger)
	rec := sync.NewReconciler(cfg.Sync.Extension, client, logger)

	a.orch = sync.NewOrchestrator(
		cfg.Sync.Folders,
		cfg.Sync.BaseDir,
		client,
		store,
		transfer,
		rec,
		mat,
		logger,
	)

	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// openStateStore builds the configured state store backend.
func openStateStore(cfg *config.Config, logger *slog.Logger) (statestore.Store, error) {
	switch cfg.State.Backend {
	case "redis":
		return statestore.NewRedis(statestore.RedisConfig{
			Addr:     cfg.State.RedisAddr,
			Password: cfg.State.RedisPassword,
			DB:       cfg.State.RedisDB,
		})
	case "sqlite":
		return statestore.NewSQLite(cfg.State.SQLitePath, logger)
	case "memory":
		logger.Warn("memory state backend keeps no cursors across runs")
		return statestore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}
