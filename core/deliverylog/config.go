package deliverylog

import (
	"fmt"

	"github.com/kilianp07/fleetremind/core/store"
)

// Backend names accepted by Config.Backend.
const (
	BackendStore         = "store"
	BackendJSONL         = "jsonl"
	BackendJSONLRotating = "jsonl_rotating"
)

// Config defines settings for delivery log storage and rotation.
type Config struct {
	// Backend selects the log store: "store" keeps logs next to reminders,
	// "jsonl" or "jsonl_rotating" write to Path.
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendStore
	}
	if c.Path == "" && c.Backend != BackendStore {
		c.Path = "delivery.jsonl"
	}
	if c.Backend == BackendJSONLRotating && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendStore:
		return nil
	case BackendJSONL, BackendJSONLRotating:
		if c.Path == "" {
			return fmt.Errorf("delivery_log: path is required for %s backend", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("delivery_log: unknown backend %s", c.Backend)
	}
}

// Open returns the log store selected by cfg. primary serves the "store" backend.
func Open(cfg Config, primary store.DeliveryLogStore) (store.DeliveryLogStore, error) {
	switch cfg.Backend {
	case BackendStore, "":
		if primary == nil {
			return nil, fmt.Errorf("delivery_log: store backend requires a primary store")
		}
		return primary, nil
	case BackendJSONL:
		return NewJSONLStore(cfg.Path)
	case BackendJSONLRotating:
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	default:
		return nil, fmt.Errorf("delivery_log: unknown backend %s", cfg.Backend)
	}
}
