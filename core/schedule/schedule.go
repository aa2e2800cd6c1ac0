// Package schedule decides which reminders fire on a given day.
//
// Matching is exact: a reminder fires only when the number of days left until
// its trigger date is one of its alert offsets. A day missed by the caller is
// never replayed.
package schedule

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kilianp07/fleetremind/core/logger"
	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
)

// DaysUntil returns the number of calendar days from asOf to trigger.
// Both values are reduced to their calendar date first, so a time of day on
// asOf rounds up. The result is negative once the trigger date has passed.
func DaysUntil(trigger, asOf time.Time) int {
	ty, tm, td := trigger.Date()
	ay, am, ad := asOf.Date()
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	a := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(a).Hours() / 24)
}

// IsDue reports whether r fires on asOf.
func IsDue(r model.ReminderConfig, asOf time.Time) bool {
	if !r.CanFire() {
		return false
	}
	return slices.Contains(r.DaysBeforeAlert, DaysUntil(r.TriggerDate, asOf))
}

// RollForward advances the trigger date of a recurring reminder once its
// last alert day has passed: today for reminders whose offsets are all
// positive, or the most negative offset for overdue alerts. The trigger is
// moved until that day lies after asOf again. It reports whether the
// reminder changed.
func RollForward(r model.ReminderConfig, asOf time.Time) (model.ReminderConfig, bool) {
	if !r.IsRecurring || r.TriggerDate.IsZero() {
		return r, false
	}
	last := lastAlert(r.DaysBeforeAlert)
	if DaysUntil(r.TriggerDate, asOf) > last {
		return r, false
	}
	next := r.TriggerDate
	for DaysUntil(next, asOf) <= last {
		next = r.Recurrence.Next(next)
	}
	r.TriggerDate = next
	return r, true
}

// lastAlert is the smallest day offset a reminder can still fire on,
// never later than the trigger date itself.
func lastAlert(offsets []int) int {
	last := 0
	for _, o := range offsets {
		last = min(last, o)
	}
	return last
}

// Resolver computes the due-set from the reminder collection.
type Resolver struct {
	reminders store.ReminderStore
	log       logger.Logger
}

// NewResolver builds a Resolver reading from reminders.
func NewResolver(reminders store.ReminderStore, log logger.Logger) *Resolver {
	return &Resolver{reminders: reminders, log: logger.OrNop(log)}
}

// DueReminders returns the active reminders firing on asOf.
func (r *Resolver) DueReminders(ctx context.Context, asOf time.Time) ([]model.ReminderConfig, error) {
	all, err := r.reminders.ListReminders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	var due []model.ReminderConfig
	for _, rem := range all {
		if IsDue(rem, asOf) {
			due = append(due, rem)
		}
	}
	r.log.Debugw("due-set resolved", map[string]any{
		"as_of":      asOf.Format(time.DateOnly),
		"candidates": len(all),
		"due":        len(due),
	})
	return due, nil
}

// Advance rolls forward every active recurring reminder whose last alert
// day is asOf or earlier, whether or not it fired today. It returns how many
// reminders were updated.
func (r *Resolver) Advance(ctx context.Context, asOf time.Time) (int, error) {
	all, err := r.reminders.ListReminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list reminders: %w", err)
	}
	updated := 0
	for _, rem := range all {
		if rem.Status != model.StatusActive {
			continue
		}
		next, changed := RollForward(rem, asOf)
		if !changed {
			continue
		}
		next.UpdatedAt = time.Now()
		if err := r.reminders.UpdateReminder(ctx, next); err != nil {
			return updated, fmt.Errorf("update reminder %s: %w", rem.ID, err)
		}
		updated++
	}
	return updated, nil
}
