package syncengine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when the remote store has no credentials for the user.
	ErrNotAuthenticated = errors.New("sync: not authenticated")
	// ErrOffline is returned when the connectivity gate reports no usable network.
	ErrOffline = errors.New("sync: offline")
)

// ConcurrencyError reports a sync request rejected because another pass is running.
type ConcurrencyError struct {
	UserID string
}

func (e *ConcurrencyError) Error() string {
	return "sync already in progress"
}

// IsConcurrency reports whether err is a ConcurrencyError.
func IsConcurrency(err error) bool {
	var target *ConcurrencyError
	return errors.As(err, &target)
}

// RemoteError wraps a failure of a remote store call.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func remoteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *RemoteError
	if errors.As(err, &existing) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}
