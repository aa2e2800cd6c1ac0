// Package orchestrator drives the daily reminder cycle and exposes the
// operator actions: run now, cleanup, send one reminder, retry one log row.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kilianp07/fleetremind/core/dispatch"
	"github.com/kilianp07/fleetremind/core/events"
	"github.com/kilianp07/fleetremind/core/logger"
	"github.com/kilianp07/fleetremind/core/metrics"
	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/monitoring"
	"github.com/kilianp07/fleetremind/core/sanitize"
	"github.com/kilianp07/fleetremind/core/scanner"
	"github.com/kilianp07/fleetremind/core/schedule"
	"github.com/kilianp07/fleetremind/core/store"
)

var (
	// ErrCycleInProgress is returned when a cycle or cleanup is already running.
	ErrCycleInProgress = errors.New("reminder cycle already in progress")
	// ErrNotRetryable is returned when retrying a log row that did not fail.
	ErrNotRetryable = errors.New("delivery log is not retryable")
)

// DefaultSendInterval is the pause between two reminders of one cycle.
const DefaultSendInterval = 2 * time.Second

// Observer receives progress events. It is passed per call, never stored.
type Observer = events.Observer

// Stage names.
const (
	StageSanitize = "sanitize"
	StageScan     = "scan"
	StageResolve  = "resolve"
	StageDispatch = "dispatch"
	StageAdvance  = "advance"
)

// Config tunes the orchestrator.
type Config struct {
	SendInterval time.Duration
	// Location decides what "today" is. Nil means UTC.
	Location *time.Location
}

// Deps are the components the orchestrator drives.
type Deps struct {
	Sanitizer  *sanitize.Sanitizer
	Scanner    *scanner.Scanner
	Resolver   *schedule.Resolver
	Dispatcher *dispatch.Dispatcher
	Reminders  store.ReminderStore
	Logs       store.DeliveryLogStore
	Metrics    metrics.Sink
	Monitor    monitoring.Monitor
	Logger     logger.Logger
	Now        func() time.Time
}

// Orchestrator runs cycles one at a time.
type Orchestrator struct {
	cfg     Config
	deps    Deps
	log     logger.Logger
	monitor monitoring.Monitor
	metrics metrics.Sink
	now     func() time.Time
	mu      sync.Mutex
}

func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SendInterval < 0 {
		cfg.SendInterval = 0
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		log:     logger.OrNop(deps.Logger),
		monitor: monitoring.OrNop(deps.Monitor),
		metrics: metrics.OrNop(deps.Metrics),
		now:     now,
	}
}

// StageResult records the outcome of one stage.
type StageResult struct {
	Name     string        `json:"name"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report summarises one cycle.
type Report struct {
	CycleID    string            `json:"cycle_id"`
	AsOf       string            `json:"as_of"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Sanitize   sanitize.Report   `json:"sanitize"`
	Scan       scanner.Report    `json:"scan"`
	Due        int               `json:"due"`
	Results    []dispatch.Result `json:"results"`
	Delivered  int               `json:"delivered"`
	Failed     int               `json:"failed"`
	Advanced   int               `json:"advanced"`
	Stages     []StageResult     `json:"stages"`
}

// Err returns the first stage failure, if any.
func (r Report) Err() error {
	for _, s := range r.Stages {
		if s.Error != "" {
			return fmt.Errorf("%s: %s", s.Name, s.Error)
		}
	}
	return nil
}

// Today returns the current calendar date in the configured location.
func (o *Orchestrator) Today() time.Time { return o.now().In(o.cfg.Location) }

// RunDailyCheck runs sanitize, scan, resolve and dispatch in that order.
// A failed sanitize or scan stage is reported and the cycle continues; a
// failed resolve ends it. Every due reminder is dispatched even if ctx is
// cancelled mid-cycle.
func (o *Orchestrator) RunDailyCheck(ctx context.Context, obs Observer) (Report, error) {
	if !o.mu.TryLock() {
		return Report{}, ErrCycleInProgress
	}
	defer o.mu.Unlock()
	obs = events.OrNop(obs)

	asOf := o.Today()
	rep := Report{CycleID: uuid.NewString(), AsOf: asOf.Format(time.DateOnly), StartedAt: o.now()}
	obs.Notify(ctx, events.Event{Kind: events.CycleStarted, Time: rep.StartedAt, CycleID: rep.CycleID})
	o.log.Infof("cycle %s started for %s", rep.CycleID, rep.AsOf)

	o.stage(ctx, &rep, StageSanitize, obs, func() error {
		var err error
		rep.Sanitize, err = o.deps.Sanitizer.Cleanup(ctx)
		return err
	})
	o.stage(ctx, &rep, StageScan, obs, func() error {
		var err error
		rep.Scan, err = o.deps.Scanner.EnsureAutoReminders(ctx, asOf, obs)
		return err
	})
	var due []model.ReminderConfig
	if err := o.stage(ctx, &rep, StageResolve, obs, func() error {
		var err error
		due, err = o.deps.Resolver.DueReminders(ctx, asOf)
		return err
	}); err != nil {
		o.finish(ctx, &rep, obs)
		return rep, err
	}
	rep.Due = len(due)

	sendCtx := context.WithoutCancel(ctx)
	_ = o.stage(ctx, &rep, StageDispatch, obs, func() error {
		return o.dispatchAll(sendCtx, &rep, due, obs)
	})
	_ = o.stage(ctx, &rep, StageAdvance, obs, func() error {
		var err error
		rep.Advanced, err = o.deps.Resolver.Advance(sendCtx, asOf)
		return err
	})
	o.finish(ctx, &rep, obs)
	return rep, nil
}

func (o *Orchestrator) dispatchAll(ctx context.Context, rep *Report, due []model.ReminderConfig, obs Observer) error {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if o.cfg.SendInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(o.cfg.SendInterval), 1)
	}
	var errs []error
	for _, rem := range due {
		if err := limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
		var res dispatch.Result
		err := monitoring.Guard(o.monitor, map[string]string{"stage": StageDispatch, "reminder_id": rem.ID}, func() error {
			var err error
			res, err = o.deps.Dispatcher.SendReminder(ctx, rem, obs)
			return err
		})
		if err != nil {
			o.log.Errorf("dispatch reminder %s: %v", rem.ID, err)
			errs = append(errs, fmt.Errorf("reminder %s: %w", rem.ID, err))
		}
		rep.Results = append(rep.Results, res)
		rep.Delivered += res.Success
		rep.Failed += res.Failed()
	}
	return errors.Join(errs...)
}

// stage runs fn, recovering panics, and records the outcome.
func (o *Orchestrator) stage(ctx context.Context, rep *Report, name string, obs Observer, fn func() error) error {
	start := o.now()
	err := monitoring.Guard(o.monitor, map[string]string{"stage": name, "cycle_id": rep.CycleID}, fn)
	res := StageResult{Name: name, Duration: o.now().Sub(start)}
	ev := events.Event{Kind: events.StageCompleted, Time: o.now(), CycleID: rep.CycleID, Stage: name}
	if err != nil {
		res.Error = err.Error()
		ev.Kind, ev.Error = events.StageFailed, err.Error()
		var pe *monitoring.PanicError
		if !errors.As(err, &pe) {
			o.monitor.CaptureException(err, map[string]string{"stage": name})
		}
		o.log.Errorf("stage %s failed: %v", name, err)
	}
	rep.Stages = append(rep.Stages, res)
	obs.Notify(ctx, ev)
	return err
}

func (o *Orchestrator) finish(ctx context.Context, rep *Report, obs Observer) {
	rep.FinishedAt = o.now()
	counts := map[string]int{
		"repaired":    rep.Sanitize.Repaired,
		"deactivated": rep.Sanitize.Deactivated,
		"created":     rep.Scan.Created,
		"refreshed":   rep.Scan.Refreshed,
		"paused":      rep.Scan.Paused,
		"due":         rep.Due,
		"delivered":   rep.Delivered,
		"failed":      rep.Failed,
	}
	obs.Notify(ctx, events.Event{Kind: events.CycleCompleted, Time: rep.FinishedAt, CycleID: rep.CycleID, Counts: counts})
	if err := o.metrics.RecordCycle(metrics.CycleEvent{
		CycleID:     rep.CycleID,
		Repaired:    rep.Sanitize.Repaired,
		Deactivated: rep.Sanitize.Deactivated,
		Created:     rep.Scan.Created,
		Refreshed:   rep.Scan.Refreshed,
		Paused:      rep.Scan.Paused,
		Due:         rep.Due,
		Delivered:   rep.Delivered,
		Failed:      rep.Failed,
		Duration:    rep.FinishedAt.Sub(rep.StartedAt),
		Time:        rep.FinishedAt,
	}); err != nil {
		o.log.Warnf("record cycle metrics: %v", err)
	}
	o.log.Infow("cycle completed", map[string]any{
		"cycle_id":  rep.CycleID,
		"due":       rep.Due,
		"delivered": rep.Delivered,
		"failed":    rep.Failed,
	})
}

// ManualCleanup runs the sanitizer outside of a cycle.
func (o *Orchestrator) ManualCleanup(ctx context.Context, obs Observer) (sanitize.Report, error) {
	if !o.mu.TryLock() {
		return sanitize.Report{}, ErrCycleInProgress
	}
	defer o.mu.Unlock()
	obs = events.OrNop(obs)
	var rep sanitize.Report
	err := monitoring.Guard(o.monitor, map[string]string{"stage": StageSanitize}, func() error {
		var err error
		rep, err = o.deps.Sanitizer.Cleanup(ctx)
		return err
	})
	ev := events.Event{
		Kind: events.StageCompleted, Time: o.now(), Stage: StageSanitize,
		Counts: map[string]int{"repaired": rep.Repaired, "deactivated": rep.Deactivated},
	}
	if err != nil {
		ev.Kind, ev.Error = events.StageFailed, err.Error()
	}
	obs.Notify(ctx, ev)
	return rep, err
}

// SendReminder sends one reminder immediately regardless of its schedule.
func (o *Orchestrator) SendReminder(ctx context.Context, id string, obs Observer) (dispatch.Result, error) {
	rem, err := o.deps.Reminders.GetReminder(ctx, id)
	if err != nil {
		return dispatch.Result{}, err
	}
	return o.deps.Dispatcher.SendReminder(ctx, rem, obs)
}

// Retry re-sends the whole reminder referenced by a failed log row. New
// rows carry the previous attempt count plus one; the old row is untouched.
func (o *Orchestrator) Retry(ctx context.Context, logID string, obs Observer) (dispatch.Result, error) {
	entry, err := o.deps.Logs.Get(ctx, logID)
	if err != nil {
		return dispatch.Result{}, err
	}
	if entry.Status != model.DeliveryFailed {
		return dispatch.Result{}, fmt.Errorf("delivery log %s is %s: %w", logID, entry.Status, ErrNotRetryable)
	}
	rem, err := o.deps.Reminders.GetReminder(ctx, entry.ReminderID)
	if err != nil {
		return dispatch.Result{}, err
	}
	return o.deps.Dispatcher.SendReminderAttempt(ctx, rem, entry.Attempts+1, obs)
}

// DueReminders previews the due-set for a day without sending anything.
func (o *Orchestrator) DueReminders(ctx context.Context, asOf time.Time) ([]model.ReminderConfig, error) {
	return o.deps.Resolver.DueReminders(ctx, asOf)
}
