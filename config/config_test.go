package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetremind/core/model"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `app:
  company: "PT Armada"
  timezone: "Asia/Jakarta"
  sender_email: "noreply@fleet.id"
  default_email: "ops@fleet.id"
  default_whatsapp: "6281234567890"
schedule:
  cron: "30 7 * * *"
  send_interval_ms: 500
store:
  backend: "sqlite"
delivery_log:
  backend: "jsonl"
  path: "logs.jsonl"
channels:
  email:
    service_id: "svc"
    template_id: "tpl"
    public_key: "pk"
  whatsapp:
    api_key: "wa-key"
    sender: "6280000"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
metrics:
  sinks:
    - type: "nop"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"company", cfg.App.Company, "PT Armada"},
		{"sender_email", cfg.App.SenderEmail, "noreply@fleet.id"},
		{"cron", cfg.Schedule.Cron, "30 7 * * *"},
		{"send_interval", cfg.Schedule.SendInterval(), 500 * time.Millisecond},
		{"store.backend", cfg.Store.Backend, StoreSQLite},
		{"store.path", cfg.Store.Path, "fleetremind.db"},
		{"delivery_log.path", cfg.DeliveryLog.Path, "logs.jsonl"},
		{"email.service_id", cfg.Channels.Email.ServiceID, "svc"},
		{"whatsapp.provider", cfg.Channels.WhatsApp.Provider, "http"},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"logging.level", cfg.Logging.Level, "info"},
		{"http.addr", cfg.HTTP.Addr, ":8080"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"app":{"company":"Armada"},"store":{"backend":"memory"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Armada", cfg.App.Company)
	assert.Equal(t, "0 8 * * *", cfg.Schedule.Cron)
	assert.Equal(t, "Asia/Jakarta", cfg.App.Location().String())
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeFile(t, "config.yaml", "app:\n  company: \"file\"\n")
	t.Setenv("K_APP__COMPANY", "env")
	t.Setenv("K_SCHEDULE__CRON", "0 6 * * 1")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env", cfg.App.Company)
	assert.Equal(t, "0 6 * * 1", cfg.Schedule.Cron)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Empty(t, cfg.MQTT.TopicPrefix, "mqtt defaults stay off without a broker")
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "config.toml", "")
	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad timezone", func(c *Config) { c.App.Timezone = "Mars/Olympus" }, "app.timezone"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every day" }, "schedule.cron"},
		{"bad sender", func(c *Config) { c.App.SenderEmail = "not-an-email" }, "SenderEmail"},
		{"bad backend", func(c *Config) { c.Store.Backend = "mongo" }, "Backend"},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = StorePostgres }, "dsn"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"twilio without sid", func(c *Config) { c.Channels.WhatsApp.Provider = "twilio" }, "account_sid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			cfg.SetDefaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestChannelsSystem(t *testing.T) {
	off := false
	c := ChannelsConfig{
		Email:    EmailChannelConfig{ServiceID: "svc", SenderName: "Fleet"},
		Telegram: TelegramChannelConfig{Enabled: &off, BotToken: "tok"},
	}
	sys := c.System()
	require.Len(t, sys, 3)
	assert.Equal(t, "svc", sys[model.ChannelEmail].ServiceID)
	assert.Equal(t, "Fleet", sys[model.ChannelEmail].SenderName)
	assert.Equal(t, "tok", sys[model.ChannelTelegram].BotToken)
	require.NotNil(t, sys[model.ChannelTelegram].Enabled)
	assert.False(t, *sys[model.ChannelTelegram].Enabled)
}
