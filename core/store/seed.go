package store

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fleetremind/core/model"
)

// Seed is a fixture of fleet data used to populate a store.
type Seed struct {
	Vehicles  []model.Vehicle         `yaml:"vehicles"`
	Documents []model.Document        `yaml:"documents"`
	Contacts  []model.Contact         `yaml:"contacts"`
	Reminders []model.ReminderConfig  `yaml:"reminders"`
	Settings  []model.ChannelSettings `yaml:"channel_settings"`
}

// Seeder is implemented by stores able to ingest external fleet data.
type Seeder interface {
	ReminderStore
	SettingsStore
	PutVehicle(ctx context.Context, v model.Vehicle) error
	PutDocument(ctx context.Context, d model.Document) error
	PutContact(ctx context.Context, c model.Contact) error
}

// LoadSeed reads a YAML fixture from path.
func LoadSeed(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, err
	}
	defer func() { _ = f.Close() }()
	return DecodeSeed(f)
}

// DecodeSeed decodes a YAML fixture from r.
func DecodeSeed(r io.Reader) (Seed, error) {
	var s Seed
	if err := yaml.NewDecoder(r).Decode(&s); err != nil && err != io.EOF {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return s, nil
}

// Apply writes the fixture into dst. Reminders already present are skipped.
func (s Seed) Apply(ctx context.Context, dst Seeder) error {
	for _, v := range s.Vehicles {
		if err := dst.PutVehicle(ctx, v); err != nil {
			return fmt.Errorf("vehicle %s: %w", v.ID, err)
		}
	}
	for _, d := range s.Documents {
		if err := dst.PutDocument(ctx, d); err != nil {
			return fmt.Errorf("document %s: %w", d.ID, err)
		}
	}
	for _, c := range s.Contacts {
		if err := dst.PutContact(ctx, c); err != nil {
			return fmt.Errorf("contact %s: %w", c.Name, err)
		}
	}
	for _, st := range s.Settings {
		if err := dst.SaveChannelSettings(ctx, st); err != nil {
			return fmt.Errorf("settings %s: %w", st.Channel, err)
		}
	}
	for _, r := range s.Reminders {
		if _, err := dst.GetReminder(ctx, r.ID); err == nil {
			continue
		}
		if r.Status == "" {
			r.Status = model.StatusActive
		}
		if r.CreatedBy == "" {
			r.CreatedBy = model.CreatedByUser
		}
		if err := dst.AddReminder(ctx, r); err != nil {
			return fmt.Errorf("reminder %s: %w", r.ID, err)
		}
	}
	return nil
}
