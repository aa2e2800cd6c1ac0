// Package storetest holds behaviour checks shared by every store backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
)

// Backend is what a store implementation must provide to run the suite.
type Backend interface {
	store.Store
	store.DeliveryLogStore
	store.Seeder
}

// Run exercises the backend returned by open. Each subtest gets a fresh one.
func Run(t *testing.T, open func(t *testing.T) Backend) {
	t.Run("reminders", func(t *testing.T) { testReminders(t, open(t)) })
	t.Run("calendar dates survive a round trip", func(t *testing.T) { testDates(t, open(t)) })
	t.Run("delivery logs", func(t *testing.T) { testLogs(t, open(t)) })
	t.Run("external collections", func(t *testing.T) { testExternal(t, open(t)) })
	t.Run("channel settings", func(t *testing.T) { testSettings(t, open(t)) })
}

func testReminders(t *testing.T, s Backend) {
	ctx := context.Background()
	created := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	r := model.ReminderConfig{
		ID:              "r1",
		Title:           "Oil change",
		Type:            model.ReminderService,
		TriggerDate:     time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		DaysBeforeAlert: []int{7, 3, 0},
		Channels:        []model.Channel{model.ChannelEmail},
		Recipients:      []string{"a@b.com"},
		Status:          model.StatusActive,
		CreatedBy:       model.CreatedByUser,
		CreatedAt:       created,
	}
	require.NoError(t, s.AddReminder(ctx, r))
	require.Error(t, s.AddReminder(ctx, r), "duplicate id")
	second := r
	second.ID, second.CreatedAt = "r0", created.Add(time.Hour)
	require.NoError(t, s.AddReminder(ctx, second))

	got, err := s.GetReminder(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, r.Title, got.Title)
	assert.Equal(t, r.DaysBeforeAlert, got.DaysBeforeAlert)
	assert.Equal(t, r.Recipients, got.Recipients)

	all, err := s.ListReminders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r1", all[0].ID, "ordered by creation time")

	r.Title = "Oil and filter"
	require.NoError(t, s.UpdateReminder(ctx, r))
	got, err = s.GetReminder(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Oil and filter", got.Title)

	require.NoError(t, s.DeleteReminder(ctx, "r1"))
	_, err = s.GetReminder(ctx, "r1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateReminder(ctx, r), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteReminder(ctx, "r1"), store.ErrNotFound)
}

func testDates(t *testing.T, s Backend) {
	ctx := context.Background()
	jakarta := time.FixedZone("WIB", 7*3600)
	trigger := model.DateOnly(time.Date(2025, 6, 30, 0, 30, 0, 0, jakarta))
	require.NoError(t, s.AddReminder(ctx, model.ReminderConfig{
		ID: "d", Title: "t", Type: model.ReminderCustom, TriggerDate: trigger,
		DaysBeforeAlert: []int{0}, Status: model.StatusActive,
	}))
	got, err := s.GetReminder(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, 30, got.TriggerDate.Day())
	assert.True(t, trigger.Equal(got.TriggerDate))
}

func testLogs(t *testing.T, s Backend) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	entries := []model.DeliveryLog{
		{ID: "1", ReminderID: "r1", ReminderTitle: "A", Channel: model.ChannelEmail, Status: model.DeliveryDelivered, Recipient: "a@b.com", SentAt: base, Attempts: 1},
		{ID: "2", ReminderID: "r1", ReminderTitle: "A", Channel: model.ChannelTelegram, Status: model.DeliveryFailed, Recipient: "@ops", SentAt: base.Add(time.Hour), Attempts: 1},
		{ID: "3", ReminderID: "r2", ReminderTitle: "B", Channel: model.ChannelEmail, Status: model.DeliveryFailed, Recipient: "A@B.com", SentAt: base.Add(2 * time.Hour), Attempts: 2},
	}
	for _, e := range entries {
		require.NoError(t, s.Append(ctx, e))
	}
	require.Error(t, s.Append(ctx, entries[0]), "log rows are append-only")

	got, err := s.Get(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "B", got.ReminderTitle)
	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	ids := func(q store.LogQuery) []string {
		logs, err := s.Query(ctx, q)
		require.NoError(t, err)
		var out []string
		for _, l := range logs {
			out = append(out, l.ID)
		}
		return out
	}
	assert.Equal(t, []string{"3", "2", "1"}, ids(store.LogQuery{}))
	assert.Equal(t, []string{"2", "1"}, ids(store.LogQuery{ReminderID: "r1"}))
	assert.Equal(t, []string{"3", "1"}, ids(store.LogQuery{Channel: model.ChannelEmail}))
	assert.Equal(t, []string{"3", "2"}, ids(store.LogQuery{Status: model.DeliveryFailed}))
	assert.Equal(t, []string{"3", "1"}, ids(store.LogQuery{Recipient: "a@b.COM"}))
	assert.Equal(t, []string{"2"}, ids(store.LogQuery{Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)}))
	assert.Equal(t, []string{"3"}, ids(store.LogQuery{Limit: 1}))
}

func testExternal(t *testing.T, s Backend) {
	ctx := context.Background()
	require.NoError(t, s.PutVehicle(ctx, model.Vehicle{ID: "v2", PlatNomor: "B 2"}))
	require.NoError(t, s.PutVehicle(ctx, model.Vehicle{ID: "v1", PlatNomor: "B 1"}))
	require.NoError(t, s.PutVehicle(ctx, model.Vehicle{ID: "v1", PlatNomor: "B 1 X"}))
	vs, err := s.ListVehicles(ctx)
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "v1", vs[0].ID)
	v, err := s.GetVehicle(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "B 1 X", v.PlatNomor)
	_, err = s.GetVehicle(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	exp := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutDocument(ctx, model.Document{ID: "d1", PlatNomor: "B 1", JenisDokumen: "STNK", TanggalKadaluarsa: &exp}))
	d, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, d.TanggalKadaluarsa)
	assert.True(t, exp.Equal(*d.TanggalKadaluarsa))
	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	_, err = s.GetDocument(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.PutContact(ctx, model.Contact{Name: "Ops", Email: "ops@fleet.id"}))
	require.NoError(t, s.PutContact(ctx, model.Contact{Name: "Driver", WhatsApp: "0812"}))
	cs, err := s.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "Ops", cs[0].Name)
}

func testSettings(t *testing.T, s Backend) {
	ctx := context.Background()
	_, ok, err := s.GetChannelSettings(ctx, model.ChannelEmail)
	require.NoError(t, err)
	assert.False(t, ok)

	off := false
	require.NoError(t, s.SaveChannelSettings(ctx, model.ChannelSettings{Channel: model.ChannelEmail, Enabled: &off, ServiceID: "svc"}))
	require.NoError(t, s.SaveChannelSettings(ctx, model.ChannelSettings{Channel: model.ChannelEmail, Enabled: &off, ServiceID: "svc2"}))
	st, ok, err := s.GetChannelSettings(ctx, model.ChannelEmail)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "svc2", st.ServiceID)
	require.NotNil(t, st.Enabled)
	assert.False(t, *st.Enabled)

	assert.Error(t, s.SaveChannelSettings(ctx, model.ChannelSettings{Channel: "fax"}))
}
