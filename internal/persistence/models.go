package persistence

import "time"

// SyncStatus tracks whether a local record still has to reach the remote store.
type SyncStatus string

const (
	// SyncStatusSynced marks records that match the remote copy.
	SyncStatusSynced SyncStatus = "SYNCED"
	// SyncStatusPending marks records with local changes that were not pushed yet.
	SyncStatusPending SyncStatus = "PENDING"
	// SyncStatusConflict marks records whose local and remote copies diverged.
	SyncStatusConflict SyncStatus = "CONFLICT"
	// SyncStatusDeleted marks soft-deleted records awaiting remote deletion.
	SyncStatusDeleted SyncStatus = "DELETED"
)

// Valid reports whether s is a known status.
func (s SyncStatus) Valid() bool {
	switch s {
	case SyncStatusSynced, SyncStatusPending, SyncStatusConflict, SyncStatusDeleted:
		return true
	}
	return false
}

// Calendar groups events owned by a single user.
type Calendar struct {
	ID         string
	UserID     string
	Name       string
	Color      string
	IsDefault  bool
	IsVisible  bool
	SyncStatus SyncStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Event is an iCalendar-style event definition. A non-nil RRule makes the
// event recurring; End then only defines the first occurrence's duration
// unless Duration is set.
type Event struct {
	UID          string
	UserID       string
	CalendarID   string
	Summary      string
	Description  *string
	Location     *string
	Start        time.Time
	End          time.Time
	Duration     *time.Duration
	AllDay       bool
	RRule        *string
	RDate        *string
	ExDate       *string
	ExRule       *string
	Color        *string
	LastModified time.Time
	SyncStatus   SyncStatus
	// OriginalID and OriginalStart identify the series and occurrence an
	// exception instance replaces.
	OriginalID    *string
	OriginalStart *time.Time
}

// PendingStatus tracks review progress of an extracted event.
type PendingStatus string

const (
	PendingStatusPending  PendingStatus = "PENDING"
	PendingStatusApproved PendingStatus = "APPROVED"
	PendingStatusRejected PendingStatus = "REJECTED"
	PendingStatusModified PendingStatus = "MODIFIED"
)

// OperationType is the change an extracted event proposes.
type OperationType string

const (
	OperationCreate OperationType = "CREATE"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
)

// PendingEvent is an extracted event staged for user review.
type PendingEvent struct {
	ID            string
	SessionID     string
	UserID        string
	Title         string
	Description   *string
	Location      *string
	Start         *time.Time
	End           *time.Time
	AllDay        bool
	RRule         *string
	Confidence    float64
	Status        PendingStatus
	Operation     OperationType
	TargetEventID *string
	Scope         *string
	InstanceDate  *time.Time
	CreatedAt     time.Time
}
