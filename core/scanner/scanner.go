// Package scanner keeps one auto-reminder per expired document in sync with
// the external document collection.
package scanner

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetremind/core/channel"
	"github.com/kilianp07/fleetremind/core/events"
	"github.com/kilianp07/fleetremind/core/logger"
	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
	"github.com/kilianp07/fleetremind/core/template"
)

// DefaultMarker prefixes the title of every auto-reminder.
const DefaultMarker = "[AUTO]"

// Config tunes the scanner.
type Config struct {
	Marker   string
	Defaults Defaults
}

// Sources groups the collections the scanner reads and writes.
type Sources struct {
	Reminders store.ReminderStore
	Documents store.DocumentSource
	Vehicles  store.VehicleSource
	Contacts  store.ContactSource
}

// Report counts what a scan changed.
type Report struct {
	Expired   int `json:"expired"`
	Created   int `json:"created"`
	Refreshed int `json:"refreshed"`
	Unchanged int `json:"unchanged"`
	Paused    int `json:"paused"`
	Skipped   int `json:"skipped"`
}

// Scanner implements ensureAutoRemindersForExpiredDocuments.
type Scanner struct {
	cfg      Config
	src      Sources
	settings *channel.Settings
	log      logger.Logger
}

func New(cfg Config, src Sources, settings *channel.Settings, log logger.Logger) *Scanner {
	cfg.Marker = strings.TrimSpace(cfg.Marker)
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarker
	}
	return &Scanner{cfg: cfg, src: src, settings: settings, log: logger.OrNop(log)}
}

// Marker returns the auto-reminder title prefix.
func (s *Scanner) Marker() string { return s.cfg.Marker }

// EnsureAutoReminders upserts an active auto-reminder for every document
// expired on asOf and pauses the ones whose document is no longer expired.
// Repeated calls with unchanged inputs write nothing.
func (s *Scanner) EnsureAutoReminders(ctx context.Context, asOf time.Time, obs events.Observer) (Report, error) {
	obs = events.OrNop(obs)
	var rep Report
	docs, err := s.src.Documents.ListDocuments(ctx)
	if err != nil {
		return rep, fmt.Errorf("list documents: %w", err)
	}
	reminders, err := s.src.Reminders.ListReminders(ctx)
	if err != nil {
		return rep, fmt.Errorf("list reminders: %w", err)
	}
	autos := map[string]model.ReminderConfig{}
	for _, r := range reminders {
		if !r.IsAuto(s.cfg.Marker) {
			continue
		}
		// Prefer an active row if duplicates exist from older data.
		if cur, ok := autos[r.DocumentRef]; !ok || (cur.Status != model.StatusActive && r.Status == model.StatusActive) {
			autos[r.DocumentRef] = r
		}
	}

	chans, err := s.settings.Enabled(ctx)
	if err != nil {
		return rep, fmt.Errorf("enabled channels: %w", err)
	}
	if len(chans) == 0 {
		chans = []model.Channel{model.ChannelEmail}
	}
	contacts, err := s.src.Contacts.ListContacts(ctx)
	if err != nil {
		return rep, fmt.Errorf("list contacts: %w", err)
	}
	recipients := ResolveRecipients(contacts, chans, s.cfg.Defaults)
	today := model.DateOnly(asOf)

	expired := map[string]bool{}
	for _, doc := range docs {
		if !doc.ExpiredOn(asOf) {
			continue
		}
		expired[doc.ID] = true
		rep.Expired++
		if len(recipients) == 0 {
			rep.Skipped++
			s.log.Warnf("no recipients for expired document %s", doc.ID)
			obs.Notify(ctx, events.Event{
				Kind:    events.Diagnostic,
				Time:    time.Now(),
				Stage:   "scan",
				Message: fmt.Sprintf("no valid recipients for expired document %s (%s %s)", doc.ID, doc.JenisDokumen, doc.PlatNomor),
			})
			continue
		}
		existing, ok := autos[doc.ID]
		if !ok {
			r := s.newAutoReminder(ctx, doc, chans, recipients, today)
			if err := s.src.Reminders.AddReminder(ctx, r); err != nil {
				return rep, fmt.Errorf("add auto reminder for %s: %w", doc.ID, err)
			}
			rep.Created++
			continue
		}
		next := refresh(existing, chans, recipients, today)
		if equalAuto(existing, next) {
			rep.Unchanged++
			continue
		}
		next.UpdatedAt = time.Now()
		if err := s.src.Reminders.UpdateReminder(ctx, next); err != nil {
			return rep, fmt.Errorf("refresh auto reminder %s: %w", existing.ID, err)
		}
		rep.Refreshed++
	}

	for docID, r := range autos {
		if expired[docID] || r.Status == model.StatusPaused {
			continue
		}
		r.Status = model.StatusPaused
		r.UpdatedAt = time.Now()
		if err := s.src.Reminders.UpdateReminder(ctx, r); err != nil {
			return rep, fmt.Errorf("pause auto reminder %s: %w", r.ID, err)
		}
		rep.Paused++
	}
	s.log.Infow("document scan completed", map[string]any{
		"expired":   rep.Expired,
		"created":   rep.Created,
		"refreshed": rep.Refreshed,
		"paused":    rep.Paused,
		"skipped":   rep.Skipped,
	})
	return rep, nil
}

func (s *Scanner) newAutoReminder(ctx context.Context, doc model.Document, chans []model.Channel, recipients []string, today time.Time) model.ReminderConfig {
	now := time.Now()
	r := model.ReminderConfig{
		ID:          uuid.NewString(),
		Title:       autoTitle(s.cfg.Marker, doc),
		Type:        model.ReminderDocument,
		VehicleRef:  s.vehicleRef(ctx, doc),
		DocumentRef: doc.ID,
		CreatedBy:   model.CreatedBySystem,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return refresh(r, chans, recipients, today)
}

// autoTitle joins the marker and the document description with single spaces.
func autoTitle(marker string, doc model.Document) string {
	return strings.Join(strings.Fields(fmt.Sprintf("%s %s %s expired", marker, doc.JenisDokumen, doc.PlatNomor)), " ")
}

// refresh applies the fields the scanner owns. The trigger date is pinned to
// today unless an active reminder was already rolled past today, so [0]
// fires at most once per day.
func refresh(r model.ReminderConfig, chans []model.Channel, recipients []string, today time.Time) model.ReminderConfig {
	keepTrigger := r.Status == model.StatusActive && model.DateOnly(r.TriggerDate).After(today)
	r = r.Clone()
	r.Channels = slices.Clone(chans)
	r.Recipients = slices.Clone(recipients)
	r.MessageTemplate = template.DefaultAutoBody
	r.Status = model.StatusActive
	if !keepTrigger {
		r.TriggerDate = today
	}
	r.DaysBeforeAlert = []int{0}
	r.IsRecurring = true
	r.Recurrence = model.Recurrence{Interval: 1, Unit: model.UnitDay}
	return r
}

func equalAuto(a, b model.ReminderConfig) bool {
	return a.Status == b.Status &&
		a.TriggerDate.Equal(b.TriggerDate) &&
		a.MessageTemplate == b.MessageTemplate &&
		a.IsRecurring == b.IsRecurring &&
		a.Recurrence == b.Recurrence &&
		slices.Equal(a.Channels, b.Channels) &&
		slices.Equal(a.Recipients, b.Recipients) &&
		slices.Equal(a.DaysBeforeAlert, b.DaysBeforeAlert)
}

func (s *Scanner) vehicleRef(ctx context.Context, doc model.Document) string {
	if s.src.Vehicles == nil {
		return doc.PlatNomor
	}
	vehicles, err := s.src.Vehicles.ListVehicles(ctx)
	if err != nil {
		s.log.Warnf("list vehicles: %v", err)
		return doc.PlatNomor
	}
	for _, v := range vehicles {
		if strings.EqualFold(strings.ReplaceAll(v.PlatNomor, " ", ""), strings.ReplaceAll(doc.PlatNomor, " ", "")) {
			return v.ID
		}
	}
	return doc.PlatNomor
}
