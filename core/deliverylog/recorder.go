package deliverylog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetremind/core/logger"
	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
)

// Recorder writes one immutable log row per delivery attempt, snapshotting
// the reminder title at write time.
type Recorder struct {
	logs      store.DeliveryLogStore
	reminders store.ReminderGetter
	log       logger.Logger
	now       func() time.Time
}

// NewRecorder builds a Recorder. reminders may be nil, in which case the
// caller-supplied title is kept as is.
func NewRecorder(logs store.DeliveryLogStore, reminders store.ReminderGetter, log logger.Logger) *Recorder {
	return &Recorder{logs: logs, reminders: reminders, log: logger.OrNop(log), now: time.Now}
}

// LogDelivery persists entry after assigning its ID, title snapshot and
// timestamps. It returns the stored row.
func (r *Recorder) LogDelivery(ctx context.Context, entry model.DeliveryLog) (model.DeliveryLog, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = r.now()
	}
	if entry.Attempts <= 0 {
		entry.Attempts = 1
	}
	if entry.Status == "" {
		entry.Status = model.DeliveryPending
	}
	if entry.Status == model.DeliveryDelivered && entry.DeliveredAt == nil {
		at := entry.SentAt
		entry.DeliveredAt = &at
	}
	entry.ReminderTitle = r.snapshotTitle(ctx, entry)
	if err := r.logs.Append(ctx, entry); err != nil {
		return entry, fmt.Errorf("append delivery log: %w", err)
	}
	return entry, nil
}

func (r *Recorder) snapshotTitle(ctx context.Context, entry model.DeliveryLog) string {
	if r.reminders == nil || entry.ReminderID == "" {
		if entry.ReminderTitle == "" {
			return model.DeletedReminderTitle
		}
		return entry.ReminderTitle
	}
	rem, err := r.reminders.GetReminder(ctx, entry.ReminderID)
	switch {
	case err == nil:
		return rem.Title
	case errors.Is(err, store.ErrNotFound):
		return model.DeletedReminderTitle
	default:
		r.log.Warnf("title lookup for reminder %s: %v", entry.ReminderID, err)
		if entry.ReminderTitle != "" {
			return entry.ReminderTitle
		}
		return model.DeletedReminderTitle
	}
}

// Store returns the underlying log store.
func (r *Recorder) Store() store.DeliveryLogStore { return r.logs }
