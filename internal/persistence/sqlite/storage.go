package sqlite

import (
	"context"
	"embed"
	"log/slog"

	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage is the SQLite-backed persistence layer.
type Storage struct {
	*CalendarRepository
	*EventRepository
	*PendingEventRepository
	*SyncStateRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var _ persistence.Storage = (*Storage)(nil)

// Open connects to the database described by config. Call Migrate before use.
func Open(config Config, logger *slog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Storage{
		CalendarRepository:     NewCalendarRepository(pool),
		EventRepository:        NewEventRepository(pool),
		PendingEventRepository: NewPendingEventRepository(pool),
		SyncStateRepository:    NewSyncStateRepository(pool),
		pool:                   pool,
		logger:                 logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	return migration.NewManager(s.pool.DB(), migrationFiles, "migrations", s.logger).Run(ctx)
}

// SchemaVersion reports the latest applied migration version.
func (s *Storage) SchemaVersion(ctx context.Context) (string, error) {
	return migration.NewManager(s.pool.DB(), migrationFiles, "migrations", s.logger).CurrentVersion(ctx)
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
