package sqlite

import (
	"context"
	"time"
)

// SyncStateRepository implements persistence.SyncStateRepository using SQLite.
type SyncStateRepository struct {
	pool *ConnectionPool
}

// NewSyncStateRepository creates a new SQLite sync state repository.
func NewSyncStateRepository(pool *ConnectionPool) *SyncStateRepository {
	return &SyncStateRepository{pool: pool}
}

// GetLastSyncTime returns the last successful sync time of a user.
func (r *SyncStateRepository) GetLastSyncTime(ctx context.Context, userID string) (time.Time, error) {
	var value string
	err := r.pool.DB().QueryRowContext(ctx, `SELECT last_sync_time FROM sync_state WHERE user_id = ?`, userID).Scan(&value)
	if err != nil {
		return time.Time{}, mapError(err)
	}
	return parseTime(value)
}

// SetLastSyncTime records the last successful sync time of a user.
func (r *SyncStateRepository) SetLastSyncTime(ctx context.Context, userID string, at time.Time) error {
	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO sync_state (user_id, last_sync_time) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET last_sync_time = excluded.last_sync_time`,
		userID, formatTime(at))
	return mapError(err)
}
