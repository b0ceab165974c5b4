// Package scheduler runs the sync engine on a cron schedule and backs off
// after failed passes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"

	"github.com/example/pocketcal/internal/syncengine"
)

// DefaultSchedule triggers a pass every fifteen minutes.
const DefaultSchedule = "*/15 * * * *"

// Syncer is the part of the sync engine the runner drives.
type Syncer interface {
	Sync(ctx context.Context, userID string) (syncengine.Result, error)
}

// Options configures a Runner.
type Options struct {
	// Schedule is a standard five-field cron spec or descriptor such as "@every 5m".
	Schedule string
	UserID   string
	// Backoff computes the wait after each consecutive failure. Defaults to
	// an exponential policy capped at MaxBackoff.
	Backoff    backoff.BackOff
	MaxBackoff time.Duration
	Timeout    time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

// Outcome describes what a single tick did.
type Outcome string

const (
	OutcomeSynced      Outcome = "synced"
	OutcomeFailed      Outcome = "failed"
	OutcomeBackingOff  Outcome = "backing_off"
	OutcomeOffline     Outcome = "offline"
	OutcomeBusy        Outcome = "busy"
	OutcomeNotSignedIn Outcome = "not_authenticated"
)

// Runner triggers sync passes for one user.
type Runner struct {
	syncer  Syncer
	userID  string
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	cron     *cron.Cron
	schedule cron.Schedule

	mu          sync.Mutex
	backoff     backoff.BackOff
	retryAfter  time.Time
	consecutive int
}

// New validates the schedule and returns an idle runner.
func New(syncer Syncer, opts Options) (*Runner, error) {
	if syncer == nil {
		return nil, errors.New("scheduler: syncer is required")
	}
	if opts.UserID == "" {
		return nil, errors.New("scheduler: user id is required")
	}
	spec := opts.Schedule
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", spec, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "scheduler"), slog.String("user_id", opts.UserID))

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	policy := opts.Backoff
	if policy == nil {
		policy = newBackoff(opts.MaxBackoff)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	r := &Runner{
		syncer:   syncer,
		userID:   opts.UserID,
		timeout:  timeout,
		now:      now,
		logger:   logger,
		schedule: schedule,
		backoff:  policy,
	}
	r.cron = cron.New(
		cron.WithLogger(cronLogger{logger: logger}),
		cron.WithChain(cron.Recover(cronLogger{logger: logger}), cron.SkipIfStillRunning(cronLogger{logger: logger})),
	)
	r.cron.Schedule(schedule, cron.FuncJob(func() {
		r.Tick(context.Background())
	}))
	return r, nil
}

func newBackoff(max time.Duration) *backoff.ExponentialBackOff {
	if max <= 0 {
		max = time.Hour
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 30 * time.Second
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Next reports when the schedule fires after t.
func (r *Runner) Next(t time.Time) time.Time {
	return r.schedule.Next(t)
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits for
// a running pass to finish.
func (r *Runner) Run(ctx context.Context) error {
	r.cron.Start()
	r.logger.InfoContext(ctx, "scheduled sync started")
	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.logger.Info("scheduled sync stopped")
	return nil
}

// Tick runs one pass unless the runner is still backing off from an earlier
// failure. Offline and busy engines are not failures and do not extend the
// backoff.
func (r *Runner) Tick(ctx context.Context) Outcome {
	r.mu.Lock()
	if !r.retryAfter.IsZero() && r.now().Before(r.retryAfter) {
		retry := r.retryAfter
		r.mu.Unlock()
		r.logger.DebugContext(ctx, "sync skipped while backing off", slog.Time("retry_after", retry))
		return OutcomeBackingOff
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.syncer.Sync(ctx, r.userID)
	switch {
	case err == nil:
		r.mu.Lock()
		r.backoff.Reset()
		r.retryAfter = time.Time{}
		r.consecutive = 0
		r.mu.Unlock()
		r.logger.InfoContext(ctx, "scheduled sync finished",
			slog.Int("events_pushed", result.EventsPushed),
			slog.Int("events_pulled", result.EventsPulled),
			slog.Int("conflicts", result.Conflicts),
		)
		return OutcomeSynced
	case errors.Is(err, syncengine.ErrOffline):
		r.logger.InfoContext(ctx, "scheduled sync skipped, offline")
		return OutcomeOffline
	case syncengine.IsConcurrency(err):
		r.logger.DebugContext(ctx, "scheduled sync skipped, pass already running")
		return OutcomeBusy
	}

	r.mu.Lock()
	delay := r.backoff.NextBackOff()
	if delay == backoff.Stop {
		delay = 0
	}
	r.retryAfter = r.now().Add(delay)
	r.consecutive++
	failures := r.consecutive
	r.mu.Unlock()

	if errors.Is(err, syncengine.ErrNotAuthenticated) {
		r.logger.WarnContext(ctx, "scheduled sync skipped, not authenticated", slog.Duration("retry_in", delay))
		return OutcomeNotSignedIn
	}
	r.logger.ErrorContext(ctx, "scheduled sync failed",
		slog.Any("error", err),
		slog.Int("consecutive_failures", failures),
		slog.Duration("retry_in", delay),
	)
	return OutcomeFailed
}

// RetryAfter returns the earliest time the next failing pass may run. The
// zero time means no backoff is active.
func (r *Runner) RetryAfter() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryAfter
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
