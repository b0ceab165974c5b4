package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/pocketcal/internal/application"
	"github.com/example/pocketcal/internal/config"
	"github.com/example/pocketcal/internal/connectivity"
	"github.com/example/pocketcal/internal/extraction"
	"github.com/example/pocketcal/internal/metrics"
	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/persistence/memory"
	"github.com/example/pocketcal/internal/persistence/sqlite"
	"github.com/example/pocketcal/internal/recurrence"
	"github.com/example/pocketcal/internal/remote/postgres"
	"github.com/example/pocketcal/internal/remote/rest"
	"github.com/example/pocketcal/internal/store"
	"github.com/example/pocketcal/internal/syncengine"
)

var errNoRemote = errors.New("no remote store configured (set remote.driver)")

const probeTimeout = 5 * time.Second

type remoteStore interface {
	syncengine.RemoteStore
	syncengine.Authenticator
}

// app holds the wired components shared by every command.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Recorder
	location *time.Location

	storage     persistence.Storage
	local       *store.Store
	calendars   *application.CalendarService
	events      *application.EventService
	gate        *connectivity.Gate
	engine      *syncengine.Engine
	extractions *extraction.Service

	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		location: cfg.Location(),
	}
	a.metrics = metrics.NewRecorder(a.registry)

	storage, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	a.storage = storage
	a.closers = append(a.closers, storage.Close)

	local, err := store.New(storage, store.Options{
		Generator: recurrence.NewGenerator(a.location, cfg.Instances.MaxPerEvent),
		CacheSize: cfg.Instances.CacheSize,
		Logger:    logger,
		Metrics:   a.metrics,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.local = local
	a.calendars = application.NewCalendarService(local, logger)
	a.events = application.NewEventService(local, logger)
	a.gate = connectivity.NewGate(connectivity.NewHostProber(cfg.Connectivity.ProbeURL, probeTimeout), logger)

	remote, closeRemote, err := openRemote(ctx, cfg.Remote, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if remote != nil {
		if closeRemote != nil {
			a.closers = append(a.closers, closeRemote)
		}
		a.engine, err = syncengine.New(local, remote, syncengine.Options{
			Auth:         remote,
			Connectivity: a.gate,
			SyncState:    storage,
			Logger:       logger,
			Metrics:      a.metrics,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	if cfg.Extraction.BaseURL != "" {
		client := extraction.NewClient(extraction.ClientConfig{
			BaseURL: cfg.Extraction.BaseURL,
			APIKey:  cfg.Extraction.APIKey,
			Model:   cfg.Extraction.Model,
		})
		a.extractions = extraction.NewService(client, storage, local, extraction.Options{
			Location: a.location,
			Logger:   logger,
			Metrics:  a.metrics,
		})
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openStorage(ctx context.Context, cfg config.Storage, logger *slog.Logger) (persistence.Storage, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.Open(), nil
	case config.StorageSQLite:
		storage, err := sqlite.Open(sqlite.Config{Path: cfg.Path}, logger)
		if err != nil {
			return nil, err
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// openRemote returns a nil store when no remote is configured.
func openRemote(ctx context.Context, cfg config.Remote, logger *slog.Logger) (remoteStore, func() error, error) {
	switch cfg.Driver {
	case config.RemoteNone:
		return nil, nil, nil
	case config.RemoteREST:
		return rest.New(rest.Config{
			BaseURL: cfg.BaseURL,
			Token:   cfg.APIKey,
			Timeout: cfg.Timeout,
		}, logger), nil, nil
	case config.RemotePostgres:
		db, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open remote postgres: %w", err)
		}
		remote := postgres.NewWithDB(db)
		if err := remote.EnsureSchema(ctx); err != nil {
			_ = remote.Close()
			return nil, nil, err
		}
		return remote, remote.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported remote driver %q", cfg.Driver)
	}
}
