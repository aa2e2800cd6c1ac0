package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetremind/config"
	coremon "github.com/kilianp07/fleetremind/core/monitoring"
)

func TestNewSentryMonitor_EmptyDSN(t *testing.T) {
	mon, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, mon)
}

func TestSentryMonitor_CapturesTagsAndPanics(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []*sentry.Event
	)
	mon, err := newSentryMonitor(config.SentryConfig{DSN: "https://public@example.com/1", Environment: "test"},
		func(e *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			sent = append(sent, e)
			mu.Unlock()
			return nil
		})
	require.NoError(t, err)

	mon.CaptureException(errors.New("stage exploded"), map[string]string{"stage": "scan"})
	panicErr := coremon.Guard(mon, map[string]string{"stage": "dispatch"}, func() error { panic("boom") })
	require.Error(t, panicErr)
	mon.CaptureException(nil, nil)
	mon.Flush(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 2)
	assert.Equal(t, "scan", sent[0].Tags["stage"])
	assert.Equal(t, "dispatch", sent[1].Tags["stage"])
	assert.Equal(t, "true", sent[1].Tags["panic"])
	assert.Equal(t, sentry.LevelFatal, sent[1].Level)
}
