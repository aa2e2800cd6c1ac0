// Package sanitize repairs or deactivates reminders whose recipient data is
// corrupt. It never deletes a reminder.
package sanitize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/fleetremind/core/logger"
	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
)

// SenderSettings resolves the effective settings of a channel.
// *channel.Settings satisfies it.
type SenderSettings interface {
	Effective(ctx context.Context, ch model.Channel) (model.ChannelSettings, error)
}

// Config names the system identities the sanitizer checks against.
type Config struct {
	// SenderEmail is the system's own from-address. A reminder addressed only
	// to it is a known misconfiguration.
	SenderEmail  string
	DefaultEmail string
	// Settings, when set, adds the email channel's effective sender address
	// to the identities checked on each pass.
	Settings SenderSettings
}

// Report counts the reminders changed by one pass.
type Report struct {
	Scanned     int `json:"scanned"`
	Repaired    int `json:"repaired"`
	Deactivated int `json:"deactivated"`
}

// Changed returns the total number of rewritten reminders.
func (r Report) Changed() int { return r.Repaired + r.Deactivated }

// Sanitizer implements cleanupInvalidReminders.
type Sanitizer struct {
	cfg       Config
	reminders store.ReminderStore
	contacts  store.ContactSource
	log       logger.Logger
}

func New(cfg Config, reminders store.ReminderStore, contacts store.ContactSource, log logger.Logger) *Sanitizer {
	return &Sanitizer{cfg: cfg, reminders: reminders, contacts: contacts, log: logger.OrNop(log)}
}

type action int

const (
	keep action = iota
	repair
	deactivate
)

// Cleanup runs one idempotent pass over every reminder.
func (s *Sanitizer) Cleanup(ctx context.Context) (Report, error) {
	var rep Report
	all, err := s.reminders.ListReminders(ctx)
	if err != nil {
		return rep, fmt.Errorf("list reminders: %w", err)
	}
	senders := s.senders(ctx)
	var fallback []string
	fallbackLoaded := false
	for _, r := range all {
		rep.Scanned++
		if isSelfAddressed(r.Recipients, senders) {
			if !fallbackLoaded {
				fallback = s.contactEmails(ctx, senders)
				fallbackLoaded = true
			}
			if len(fallback) == 0 {
				s.log.Warnf("reminder %s addressed to sender and no fallback email available", r.ID)
				continue
			}
			r.Recipients = append([]string(nil), fallback...)
			if err := s.save(ctx, r, repair, &rep); err != nil {
				return rep, err
			}
			continue
		}
		next, act := classify(r)
		if act == keep {
			continue
		}
		if err := s.save(ctx, next, act, &rep); err != nil {
			return rep, err
		}
	}
	if rep.Changed() > 0 {
		s.log.Infow("reminders sanitized", map[string]any{
			"scanned":     rep.Scanned,
			"repaired":    rep.Repaired,
			"deactivated": rep.Deactivated,
		})
	}
	return rep, nil
}

func (s *Sanitizer) save(ctx context.Context, r model.ReminderConfig, act action, rep *Report) error {
	r.UpdatedAt = time.Now()
	if err := s.reminders.UpdateReminder(ctx, r); err != nil {
		return fmt.Errorf("update reminder %s: %w", r.ID, err)
	}
	switch act {
	case repair:
		rep.Repaired++
		s.log.Debugf("reminder %s repaired", r.ID)
	case deactivate:
		rep.Deactivated++
		s.log.Debugf("reminder %s deactivated", r.ID)
	}
	return nil
}

// classify decides what a reminder needs based on its recipients alone.
func classify(r model.ReminderConfig) (model.ReminderConfig, action) {
	nonEmpty := 0
	var valid []string
	seen := map[string]bool{}
	invalid := 0
	for _, raw := range r.Recipients {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		nonEmpty++
		rc := model.ClassifyRecipient(raw)
		if !rc.Valid() {
			invalid++
			continue
		}
		key := strings.ToLower(rc.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		valid = append(valid, rc.Value)
	}
	switch {
	case nonEmpty > 0 && len(valid) == 0:
		r.Status = model.StatusPaused
		r.Recipients = nil
		return r, deactivate
	case invalid > 0 || nonEmpty < len(r.Recipients):
		r.Recipients = valid
		if len(valid) == 0 {
			r.Status = model.StatusPaused
			return r, deactivate
		}
		return r, repair
	case nonEmpty == 0 && r.Status == model.StatusActive:
		r.Status = model.StatusPaused
		r.Recipients = nil
		return r, deactivate
	}
	return r, keep
}

// senders returns the lower-cased from-addresses the system sends with.
func (s *Sanitizer) senders(ctx context.Context) map[string]bool {
	out := map[string]bool{}
	add := func(e string) {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			out[e] = true
		}
	}
	add(s.cfg.SenderEmail)
	if s.cfg.Settings != nil {
		st, err := s.cfg.Settings.Effective(ctx, model.ChannelEmail)
		if err != nil {
			s.log.Warnf("resolve email sender: %v", err)
		} else {
			add(st.SenderEmail)
		}
	}
	return out
}

func isSelfAddressed(recipients []string, senders map[string]bool) bool {
	if len(recipients) != 1 {
		return false
	}
	return senders[strings.ToLower(strings.TrimSpace(recipients[0]))]
}

// contactEmails returns the valid contact emails other than the senders, or
// the default email.
func (s *Sanitizer) contactEmails(ctx context.Context, senders map[string]bool) []string {
	var out []string
	if s.contacts != nil {
		contacts, err := s.contacts.ListContacts(ctx)
		if err != nil {
			s.log.Warnf("list contacts: %v", err)
		}
		seen := map[string]bool{}
		for _, c := range contacts {
			e := strings.TrimSpace(c.Email)
			key := strings.ToLower(e)
			if !model.IsEmail(e) || seen[key] || senders[key] {
				continue
			}
			seen[key] = true
			out = append(out, e)
		}
	}
	def := strings.TrimSpace(s.cfg.DefaultEmail)
	if len(out) == 0 && model.IsEmail(def) && !senders[strings.ToLower(def)] {
		out = append(out, def)
	}
	return out
}
