// Package store defines the keyed collections the reminder engine operates
// on. The engine treats them as opaque: memory, SQLite and Postgres backends
// all satisfy the same interfaces.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kilianp07/fleetremind/core/model"
)

// ErrNotFound is returned when a keyed lookup has no match.
var ErrNotFound = errors.New("not found")

// ReminderStore is the reminder collection.
type ReminderStore interface {
	GetReminder(ctx context.Context, id string) (model.ReminderConfig, error)
	ListReminders(ctx context.Context) ([]model.ReminderConfig, error)
	AddReminder(ctx context.Context, r model.ReminderConfig) error
	UpdateReminder(ctx context.Context, r model.ReminderConfig) error
	DeleteReminder(ctx context.Context, id string) error
}

// ReminderGetter is the read side of ReminderStore.
type ReminderGetter interface {
	GetReminder(ctx context.Context, id string) (model.ReminderConfig, error)
}

// DeliveryLogStore is the append-only delivery-log collection.
type DeliveryLogStore interface {
	Append(ctx context.Context, entry model.DeliveryLog) error
	Get(ctx context.Context, id string) (model.DeliveryLog, error)
	Query(ctx context.Context, q LogQuery) ([]model.DeliveryLog, error)
	Close() error
}

// ContactSource lists the external contact book.
type ContactSource interface {
	ListContacts(ctx context.Context) ([]model.Contact, error)
}

// DocumentSource reads externally managed documents.
type DocumentSource interface {
	ListDocuments(ctx context.Context) ([]model.Document, error)
	GetDocument(ctx context.Context, id string) (model.Document, error)
}

// VehicleSource reads externally managed vehicles.
type VehicleSource interface {
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)
	GetVehicle(ctx context.Context, id string) (model.Vehicle, error)
}

// SettingsStore keeps user-provided channel settings.
type SettingsStore interface {
	// GetChannelSettings returns the stored settings and whether any exist.
	GetChannelSettings(ctx context.Context, ch model.Channel) (model.ChannelSettings, bool, error)
	SaveChannelSettings(ctx context.Context, s model.ChannelSettings) error
}

// Store aggregates every collection a backend provides.
type Store interface {
	ReminderStore
	ContactSource
	DocumentSource
	VehicleSource
	SettingsStore
	Close() error
}

// LogQuery defines filters for retrieving delivery logs. Zero values match all.
type LogQuery struct {
	ReminderID string
	Channel    model.Channel
	Status     model.DeliveryStatus
	Recipient  string
	Start      time.Time
	End        time.Time
	// Limit caps the number of rows returned, newest first. Zero means no cap.
	Limit int
}

// Match reports whether entry satisfies the filters.
func (q LogQuery) Match(entry model.DeliveryLog) bool {
	if q.ReminderID != "" && entry.ReminderID != q.ReminderID {
		return false
	}
	if q.Channel != "" && entry.Channel != q.Channel {
		return false
	}
	if q.Status != "" && entry.Status != q.Status {
		return false
	}
	if q.Recipient != "" && !strings.EqualFold(entry.Recipient, q.Recipient) {
		return false
	}
	if !q.Start.IsZero() && entry.SentAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && entry.SentAt.After(q.End) {
		return false
	}
	return true
}
