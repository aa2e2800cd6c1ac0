//go:build !no_containers

package test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetremind/app"
	"github.com/kilianp07/fleetremind/config"
)

// newService builds a memory-backed service; mutate adjusts the config
// before defaults are applied.
func newService(t *testing.T, mutate func(*config.Config)) *app.Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Schedule.SendIntervalMS = 1
	if mutate != nil {
		mutate(cfg)
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	svc, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}
