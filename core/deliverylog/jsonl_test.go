package deliverylog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
)

func sampleLogs() []model.DeliveryLog {
	base := time.Date(2025, 6, 23, 8, 0, 0, 0, time.UTC)
	return []model.DeliveryLog{
		{ID: "a", ReminderID: "r1", Channel: model.ChannelEmail, Status: model.DeliveryDelivered, Recipient: "ops@fleet.id", SentAt: base, Attempts: 1},
		{ID: "b", ReminderID: "r1", Channel: model.ChannelWhatsApp, Status: model.DeliveryFailed, Recipient: "6281234567890", SentAt: base.Add(time.Minute), Attempts: 1},
		{ID: "c", ReminderID: "r2", Channel: model.ChannelTelegram, Status: model.DeliveryFailed, Recipient: "@ops", SentAt: base.Add(2 * time.Minute), Attempts: 2},
	}
}

func TestJSONLStore_AppendQuery(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "delivery.jsonl")
	s, err := NewJSONLStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	for _, l := range sampleLogs() {
		require.NoError(t, s.Append(ctx, l))
	}
	// garbage lines are skipped
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, _ = f.WriteString("not json\n")
	_ = f.Close()

	all, err := s.Query(ctx, store.LogQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	failed, err := s.Query(ctx, store.LogQuery{Status: model.DeliveryFailed, ReminderID: "r1"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].ID)

	got, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
	_, err = s.Get(ctx, "zzz")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "logs", "delivery.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	big := make([]byte, 64*1024)
	for i := range big {
		big[i] = 'x'
	}
	entry := model.DeliveryLog{ReminderID: "r1", Message: string(big), SentAt: time.Now()}
	for i := 0; i < 20; i++ {
		entry.ID = fmt.Sprintf("id-%d", i)
		require.NoError(t, s.Append(ctx, entry))
	}
	files, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*"))
	assert.Greater(t, len(files), 1)

	out, err := s.Query(ctx, store.LogQuery{ReminderID: "r1"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestRotatingJSONLStore_Get(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "delivery.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 1, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	for _, l := range sampleLogs() {
		require.NoError(t, s.Append(ctx, l))
	}
	got, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, model.ChannelWhatsApp, got.Channel)
	limited, err := s.Query(ctx, store.LogQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestConfig(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, BackendStore, c.Backend)
	assert.NoError(t, c.Validate())

	c = Config{Backend: BackendJSONLRotating}
	c.SetDefaults()
	assert.Equal(t, "delivery.jsonl", c.Path)
	assert.Equal(t, 10, c.MaxSizeMB)
	assert.NoError(t, c.Validate())

	assert.Error(t, Config{Backend: "kafka"}.Validate())
	_, err := Open(Config{Backend: BackendStore}, nil)
	assert.Error(t, err)
}
