package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fleetremind/core/deliverylog"
	"github.com/kilianp07/fleetremind/core/metrics"
	"github.com/kilianp07/fleetremind/infra/amqp"
	"github.com/kilianp07/fleetremind/infra/mqtt"
)

type Config struct {
	App         AppConfig          `json:"app"`
	Schedule    ScheduleConfig     `json:"schedule"`
	Store       StoreConfig        `json:"store"`
	DeliveryLog deliverylog.Config `json:"delivery_log"`
	Channels    ChannelsConfig     `json:"channels"`
	HTTP        HTTPConfig         `json:"http"`
	Metrics     metrics.Config     `json:"metrics"`
	Logging     LoggingConfig      `json:"logging"`
	Sentry      SentryConfig       `json:"sentry"`
	// MQTT and AMQP event publishing are enabled by a non-empty broker / url.
	MQTT mqtt.Config `json:"mqtt"`
	AMQP amqp.Config `json:"amqp"`
}

// Load reads path (yaml or json), applies K_ environment overrides, fills
// defaults and validates the result. An empty path loads only the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.App.SetDefaults()
	c.Schedule.SetDefaults()
	c.Store.SetDefaults()
	c.DeliveryLog.SetDefaults()
	c.Channels.SetDefaults()
	c.HTTP.SetDefaults()
	c.Logging.SetDefaults()
	c.Sentry.SetDefaults()
	if c.MQTT.Broker != "" {
		c.MQTT.SetDefaults()
	}
	if c.AMQP.URL != "" {
		c.AMQP.SetDefaults()
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs the struct tag rules, then each section's own checks.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config: %s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	checks := []interface{ Validate() error }{
		c.App, c.Schedule, c.Store, c.DeliveryLog, c.Channels, c.HTTP, c.Logging, c.Sentry,
	}
	if c.MQTT.Broker != "" {
		checks = append(checks, c.MQTT)
	}
	if c.AMQP.URL != "" {
		checks = append(checks, c.AMQP)
	}
	for _, v := range checks {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
