package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dbutrimov/trackersync/internal/config"
	"github.com/dbutrimov/trackersync/internal/database"
	"github.com/dbutrimov/trackersync/internal/logger"
	"github.com/dbutrimov/trackersync/internal/sites"
	"github.com/dbutrimov/trackersync/internal/tracker"
	"github.com/dbutrimov/trackersync/internal/tracker/flaresolverr"
	"github.com/dbutrimov/trackersync/internal/tracker/ratelimit"
)

// app bundles everything a command needs: config, logging, the open
// database and a resolution client per configured tracker.
type app struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.DB

	store       *tracker.Store
	credentials *tracker.CredentialStore
	sessions    *tracker.SessionManager
	registry    *sites.Registry
	clients     map[string]*tracker.Client
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		log.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	var transport http.RoundTripper
	if cfg.Solverr.Endpoint != "" {
		solverr := flaresolverr.NewClient(cfg.Solverr.Endpoint, cfg.Solverr.Timeout, log.Logger)
		transport = flaresolverr.NewTransport(nil, solverr, log.Logger)
		log.Info().Str("endpoint", cfg.Solverr.Endpoint).Msg("FlareSolverr challenge clearing enabled")
	}

	limiter := ratelimit.NewLimiter(cfg.Sync.RequestInterval, log.Logger)
	fetcher := tracker.NewFetcher(&http.Client{
		Transport: transport,
		Timeout:   cfg.Sync.FetchTimeout,
	}, limiter, log.Logger)

	store := tracker.NewStore(db.Conn())
	credentials := tracker.NewCredentialStore(db.Conn())
	sessions := tracker.NewSessionManager(credentials, limiter, transport, log.Logger)

	synchronizer := tracker.NewSynchronizer(store, fetcher,
		time.Duration(cfg.Sync.CatalogTTLDays)*24*time.Hour,
		time.Duration(cfg.Sync.ItemsTTLDays)*24*time.Hour,
		log.Logger)

	opts := sites.Options{}
	if tc, ok := cfg.Tracker("baibako"); ok {
		opts.BaibakoTab = tc.SerialTab
	}
	registry := sites.NewRegistry(sites.Builtin(opts)...)

	clients := make(map[string]*tracker.Client)
	for _, name := range registry.Names() {
		tc, configured := cfg.Tracker(name)
		if !configured {
			continue
		}
		adapter, _ := registry.Get(name)
		clients[name] = tracker.NewClient(adapter, store, fetcher, sessions, synchronizer,
			tc.Username, tc.Password, log.Logger)
		log.Info().Str("site", name).Msg("Tracker configured")
	}

	return &app{
		cfg:         cfg,
		log:         log,
		db:          db,
		store:       store,
		credentials: credentials,
		sessions:    sessions,
		registry:    registry,
		clients:     clients,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Error().Err(err).Msg("failed to close database")
	}
	a.log.Close()
}
