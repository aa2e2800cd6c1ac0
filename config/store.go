package config

import (
	"fmt"

	"github.com/kilianp07/fleetremind/infra/postgres"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// StoreConfig selects where reminders and their external collections live.
type StoreConfig struct {
	Backend  string          `json:"backend" validate:"omitempty,oneof=memory sqlite postgres"`
	Path     string          `json:"path"`
	Postgres postgres.Config `json:"postgres"`
	// SeedFile is a YAML fixture applied on start; existing reminders are kept.
	SeedFile string `json:"seed_file"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = StoreMemory
	}
	if c.Backend == StoreSQLite && c.Path == "" {
		c.Path = "fleetremind.db"
	}
	if c.Backend == StorePostgres {
		c.Postgres.SetDefaults()
	}
}

func (c StoreConfig) Validate() error {
	switch c.Backend {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("unknown store backend %s", c.Backend)
	}
	return nil
}
