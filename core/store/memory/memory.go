// Package memory provides an in-process Store used by tests and the default
// single-node deployment.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
)

// Store keeps every collection in maps guarded by a single RWMutex.
type Store struct {
	mu        sync.RWMutex
	reminders map[string]model.ReminderConfig
	logs      []model.DeliveryLog
	logIndex  map[string]int
	contacts  []model.Contact
	documents map[string]model.Document
	vehicles  map[string]model.Vehicle
	settings  map[model.Channel]model.ChannelSettings
}

var (
	_ store.Store            = (*Store)(nil)
	_ store.DeliveryLogStore = (*Store)(nil)
	_ store.Seeder           = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		reminders: map[string]model.ReminderConfig{},
		logIndex:  map[string]int{},
		documents: map[string]model.Document{},
		vehicles:  map[string]model.Vehicle{},
		settings:  map[model.Channel]model.ChannelSettings{},
	}
}

func (s *Store) GetReminder(_ context.Context, id string) (model.ReminderConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[id]
	if !ok {
		return model.ReminderConfig{}, fmt.Errorf("reminder %s: %w", id, store.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *Store) ListReminders(context.Context) ([]model.ReminderConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ReminderConfig, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) AddReminder(_ context.Context, r model.ReminderConfig) error {
	if r.ID == "" {
		return fmt.Errorf("reminder id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[r.ID]; ok {
		return fmt.Errorf("reminder %s already exists", r.ID)
	}
	s.reminders[r.ID] = r.Clone()
	return nil
}

func (s *Store) UpdateReminder(_ context.Context, r model.ReminderConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[r.ID]; !ok {
		return fmt.Errorf("reminder %s: %w", r.ID, store.ErrNotFound)
	}
	s.reminders[r.ID] = r.Clone()
	return nil
}

func (s *Store) DeleteReminder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[id]; !ok {
		return fmt.Errorf("reminder %s: %w", id, store.ErrNotFound)
	}
	delete(s.reminders, id)
	return nil
}

// Append stores a delivery log row. Rows are never rewritten.
func (s *Store) Append(_ context.Context, entry model.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logIndex[entry.ID]; ok {
		return fmt.Errorf("delivery log %s already exists", entry.ID)
	}
	s.logIndex[entry.ID] = len(s.logs)
	s.logs = append(s.logs, entry)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (model.DeliveryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.logIndex[id]; ok {
		return s.logs[i], nil
	}
	return model.DeliveryLog{}, fmt.Errorf("delivery log %s: %w", id, store.ErrNotFound)
}

func (s *Store) Query(_ context.Context, q store.LogQuery) ([]model.DeliveryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.DeliveryLog
	for _, l := range s.logs {
		if q.Match(l) {
			out = append(out, l)
		}
	}
	return store.NewestFirst(out, q.Limit), nil
}

func (s *Store) ListContacts(context.Context) ([]model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Contact(nil), s.contacts...), nil
}

func (s *Store) PutContact(_ context.Context, c model.Contact) error {
	s.mu.Lock()
	s.contacts = append(s.contacts, c)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListDocuments(context.Context) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Document, 0, len(s.documents))
	for _, d := range s.documents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetDocument(_ context.Context, id string) (model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[id]
	if !ok {
		return model.Document{}, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	return d, nil
}

func (s *Store) PutDocument(_ context.Context, d model.Document) error {
	s.mu.Lock()
	s.documents[d.ID] = d
	s.mu.Unlock()
	return nil
}

func (s *Store) ListVehicles(context.Context) ([]model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetVehicle(_ context.Context, id string) (model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return model.Vehicle{}, fmt.Errorf("vehicle %s: %w", id, store.ErrNotFound)
	}
	return v, nil
}

func (s *Store) PutVehicle(_ context.Context, v model.Vehicle) error {
	s.mu.Lock()
	s.vehicles[v.ID] = v
	s.mu.Unlock()
	return nil
}

func (s *Store) GetChannelSettings(_ context.Context, ch model.Channel) (model.ChannelSettings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[ch]
	return st, ok, nil
}

func (s *Store) SaveChannelSettings(_ context.Context, st model.ChannelSettings) error {
	if !st.Channel.Valid() {
		return fmt.Errorf("unknown channel %q", st.Channel)
	}
	s.mu.Lock()
	s.settings[st.Channel] = st
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error { return nil }
