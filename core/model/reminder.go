package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ReminderType classifies the fleet event a reminder tracks.
type ReminderType string

const (
	ReminderService   ReminderType = "service"
	ReminderDocument  ReminderType = "document"
	ReminderInsurance ReminderType = "insurance"
	ReminderCustom    ReminderType = "custom"
)

// ReminderStatus is the lifecycle state of a reminder.
type ReminderStatus string

const (
	StatusActive  ReminderStatus = "active"
	StatusPaused  ReminderStatus = "paused"
	StatusExpired ReminderStatus = "expired"
)

// Creator records who created a reminder.
type Creator string

const (
	CreatedByUser   Creator = "user"
	CreatedBySystem Creator = "system"
)

// IntervalUnit is the unit of a recurrence interval.
type IntervalUnit string

const (
	UnitDay   IntervalUnit = "day"
	UnitWeek  IntervalUnit = "week"
	UnitMonth IntervalUnit = "month"
	UnitYear  IntervalUnit = "year"
)

// Recurrence describes how a recurring reminder rolls its trigger date.
type Recurrence struct {
	Interval int          `json:"interval" yaml:"interval"`
	Unit     IntervalUnit `json:"unit" yaml:"unit"`
}

// Next returns d advanced by one interval. A non-positive interval is treated as 1.
func (r Recurrence) Next(d time.Time) time.Time {
	n := r.Interval
	if n <= 0 {
		n = 1
	}
	switch r.Unit {
	case UnitWeek:
		return d.AddDate(0, 0, 7*n)
	case UnitMonth:
		return d.AddDate(0, n, 0)
	case UnitYear:
		return d.AddDate(n, 0, 0)
	default:
		return d.AddDate(0, 0, n)
	}
}

// ReminderConfig is a persisted rule describing when, how and whom to notify
// about a fleet event. Recipients stay untyped strings until classified.
type ReminderConfig struct {
	ID              string         `json:"id" yaml:"id"`
	Title           string         `json:"title" yaml:"title"`
	Type            ReminderType   `json:"type" yaml:"type"`
	VehicleRef      string         `json:"vehicle_ref" yaml:"vehicle_ref"`
	DocumentRef     string         `json:"document_ref,omitempty" yaml:"document_ref"`
	TriggerDate     time.Time      `json:"trigger_date" yaml:"trigger_date"`
	DaysBeforeAlert []int          `json:"days_before_alert" yaml:"days_before_alert"`
	Channels        []Channel      `json:"channels" yaml:"channels"`
	Recipients      []string       `json:"recipients" yaml:"recipients"`
	MessageTemplate string         `json:"message_template" yaml:"message_template"`
	IsRecurring     bool           `json:"is_recurring" yaml:"is_recurring"`
	Recurrence      Recurrence     `json:"recurrence" yaml:"recurrence"`
	Status          ReminderStatus `json:"status" yaml:"status"`
	CreatedBy       Creator        `json:"created_by" yaml:"created_by"`
	CreatedAt       time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" yaml:"updated_at"`
}

// CanFire reports whether the reminder is eligible for due-set evaluation.
func (r ReminderConfig) CanFire() bool {
	return r.Status == StatusActive && len(r.DaysBeforeAlert) > 0
}

// HasChannel reports whether ch is declared on the reminder.
func (r ReminderConfig) HasChannel(ch Channel) bool {
	return slices.Contains(r.Channels, ch)
}

// IsAuto reports whether the reminder was synthesized for a document and
// carries the given title marker.
func (r ReminderConfig) IsAuto(marker string) bool {
	return r.Type == ReminderDocument && r.DocumentRef != "" && strings.HasPrefix(r.Title, marker)
}

// Clone returns a deep copy of the reminder.
func (r ReminderConfig) Clone() ReminderConfig {
	r.DaysBeforeAlert = slices.Clone(r.DaysBeforeAlert)
	r.Channels = slices.Clone(r.Channels)
	r.Recipients = slices.Clone(r.Recipients)
	return r
}

// Validate checks the fields required to store a reminder.
func (r ReminderConfig) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	switch r.Type {
	case ReminderService, ReminderDocument, ReminderInsurance, ReminderCustom:
	default:
		return fmt.Errorf("unknown reminder type %q", r.Type)
	}
	switch r.Status {
	case StatusActive, StatusPaused, StatusExpired:
	default:
		return fmt.Errorf("unknown reminder status %q", r.Status)
	}
	if r.TriggerDate.IsZero() {
		return fmt.Errorf("trigger date is required")
	}
	for _, ch := range r.Channels {
		if !ch.Valid() {
			return fmt.Errorf("unknown channel %q", ch)
		}
	}
	return nil
}

// DateOnly returns the calendar date of t, as seen in t's location, at UTC
// midnight. Trigger dates are stored in this form so they survive storage
// round-trips that drop the location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
