package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

// AppConfig carries the identity and fallbacks of the deployment.
type AppConfig struct {
	Company string `json:"company"`
	// Timezone decides which calendar day "today" is.
	Timezone string `json:"timezone"`
	// Locale selects month names in rendered dates: "id" or "en".
	Locale         string `json:"locale" validate:"omitempty,oneof=id en"`
	SubjectPattern string `json:"subject_pattern"`
	// SenderEmail is the system sender; reminders addressed only to it are repaired.
	SenderEmail     string `json:"sender_email" validate:"omitempty,email"`
	DefaultEmail    string `json:"default_email" validate:"omitempty,email"`
	DefaultWhatsApp string `json:"default_whatsapp"`
	AutoMarker      string `json:"auto_marker"`
}

func (c *AppConfig) SetDefaults() {
	if c.Company == "" {
		c.Company = "Fleet"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Jakarta"
	}
	if c.Locale == "" {
		c.Locale = "id"
	}
}

func (c AppConfig) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}
	return nil
}

// Location returns the configured time zone, UTC when it cannot be loaded.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ScheduleConfig controls when the daily cycle runs and how fast it sends.
type ScheduleConfig struct {
	// Cron is a standard five-field expression evaluated in app.timezone.
	Cron           string `json:"cron"`
	SendIntervalMS int    `json:"send_interval_ms" validate:"gte=0"`
	MaxConcurrent  int    `json:"max_concurrent" validate:"gte=0"`
	RunOnStart     bool   `json:"run_on_start"`
}

func (c *ScheduleConfig) SetDefaults() {
	if c.Cron == "" {
		c.Cron = "0 8 * * *"
	}
	if c.SendIntervalMS == 0 {
		c.SendIntervalMS = 2000
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 4
	}
}

func (c ScheduleConfig) Validate() error {
	if _, err := cron.ParseStandard(c.Cron); err != nil {
		return fmt.Errorf("schedule.cron: %w", err)
	}
	return nil
}

// SendInterval is the pause between two reminders of a cycle.
func (c ScheduleConfig) SendInterval() time.Duration {
	return time.Duration(c.SendIntervalMS) * time.Millisecond
}

// HTTPConfig configures the operator API.
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	// Token, when set, is required as a bearer token on every request.
	Token string `json:"token"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

func (c HTTPConfig) Validate() error { return nil }
