package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store/storetest"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "fleet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend { return open(t) })
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fleet.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, model.DeliveryLog{
		ID: "l1", ReminderID: "r1", Channel: model.ChannelEmail, Status: model.DeliveryDelivered,
		Recipient: "a@b.com", SentAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), Attempts: 1,
	}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.Get(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got.Recipient)
}
