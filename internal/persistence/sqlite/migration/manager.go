package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
)

// Manager applies pending migrations from a directory of an fs.FS.
type Manager struct {
	executor *Executor
	fsys     fs.FS
	dir      string
	logger   *slog.Logger
}

// NewManager constructs a Manager. A nil logger discards output.
func NewManager(db *sql.DB, fsys fs.FS, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		executor: NewExecutor(db),
		fsys:     fsys,
		dir:      dir,
		logger:   logger.With("component", "migration"),
	}
}

// Pending returns the migrations not yet recorded. An applied migration whose
// file content changed is reported as ErrChecksumMismatch.
func (m *Manager) Pending(ctx context.Context) ([]Migration, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, err
	}
	all, err := Scan(m.fsys, m.dir)
	if err != nil {
		return nil, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return nil, err
	}

	checksums := make(map[string]string, len(applied))
	for _, a := range applied {
		checksums[a.Version] = a.Checksum
	}

	var pending []Migration
	for _, mig := range all {
		sum, ok := checksums[mig.Version]
		if !ok {
			pending = append(pending, mig)
			continue
		}
		if sum != "" && sum != mig.Checksum {
			return nil, &Error{Version: mig.Version, Operation: "verify checksum", Err: fmt.Errorf("%w: %s", ErrChecksumMismatch, mig.FilePath)}
		}
	}
	return pending, nil
}

// Run executes all pending migrations in version order and stops at the first failure.
func (m *Manager) Run(ctx context.Context) error {
	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		m.logger.DebugContext(ctx, "schema up to date")
		return nil
	}

	for i, mig := range pending {
		m.logger.InfoContext(ctx, "applying migration",
			slog.String("version", mig.Version),
			slog.String("description", mig.Description),
			slog.Int("position", i+1),
			slog.Int("total", len(pending)),
		)
		if err := m.executor.Execute(ctx, mig); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", slog.String("version", mig.Version), slog.Any("error", err))
			return err
		}
	}
	return nil
}

// CurrentVersion returns the highest applied version, or "" when none is applied.
func (m *Manager) CurrentVersion(ctx context.Context) (string, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return "", err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return "", err
	}
	if len(applied) == 0 {
		return "", nil
	}
	return applied[len(applied)-1].Version, nil
}
