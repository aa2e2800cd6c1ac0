package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store/memory"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDaysUntil(t *testing.T) {
	trigger := day(2025, 6, 30)
	assert.Equal(t, 14, DaysUntil(trigger, day(2025, 6, 16)))
	assert.Equal(t, 14, DaysUntil(trigger, day(2025, 6, 16).Add(15*time.Hour)))
	assert.Equal(t, 0, DaysUntil(trigger, day(2025, 6, 30)))
	assert.Equal(t, -2, DaysUntil(trigger, day(2025, 7, 2)))
	// across a month boundary and a leap day
	assert.Equal(t, 2, DaysUntil(day(2024, 3, 1), day(2024, 2, 28)))
}

func TestIsDue_ExactDay(t *testing.T) {
	r := model.ReminderConfig{
		ID: "r1", Status: model.StatusActive,
		TriggerDate:     day(2025, 6, 30),
		DaysBeforeAlert: []int{30, 14, 7, 1},
	}
	assert.True(t, IsDue(r, day(2025, 6, 16)))
	assert.False(t, IsDue(r, day(2025, 6, 17)))
	assert.True(t, IsDue(r, day(2025, 5, 31)))
	assert.True(t, IsDue(r, day(2025, 6, 29)))
	assert.False(t, IsDue(r, day(2025, 6, 30)))

	paused := r
	paused.Status = model.StatusPaused
	assert.False(t, IsDue(paused, day(2025, 6, 16)))

	empty := r
	empty.DaysBeforeAlert = nil
	assert.False(t, IsDue(empty, day(2025, 6, 16)))

	overdue := r
	overdue.DaysBeforeAlert = []int{-3}
	assert.True(t, IsDue(overdue, day(2025, 7, 3)))
}

func TestRollForward(t *testing.T) {
	today := day(2025, 6, 30)
	r := model.ReminderConfig{
		IsRecurring: true, TriggerDate: day(2025, 6, 30),
		Recurrence: model.Recurrence{Interval: 1, Unit: model.UnitMonth},
	}
	next, changed := RollForward(r, today)
	require.True(t, changed)
	assert.Equal(t, day(2025, 7, 30), next.TriggerDate)

	// far in the past rolls until after today, in a single call
	r.TriggerDate = day(2025, 6, 1)
	r.Recurrence = model.Recurrence{Interval: 1, Unit: model.UnitWeek}
	next, _ = RollForward(r, today)
	assert.Equal(t, day(2025, 7, 6), next.TriggerDate)

	future := r
	future.TriggerDate = day(2025, 7, 1)
	_, changed = RollForward(future, today)
	assert.False(t, changed)

	once := r
	once.IsRecurring = false
	_, changed = RollForward(once, today)
	assert.False(t, changed)

	// an overdue offset holds the trigger until that alert has fired
	overdue := r
	overdue.TriggerDate = day(2025, 6, 28)
	overdue.DaysBeforeAlert = []int{-3}
	overdue.Recurrence = model.Recurrence{Interval: 1, Unit: model.UnitMonth}
	_, changed = RollForward(overdue, today)
	assert.False(t, changed)
	next, changed = RollForward(overdue, day(2025, 7, 1))
	require.True(t, changed)
	assert.Equal(t, day(2025, 7, 28), next.TriggerDate)
}

func TestResolver_EndToEndWindow(t *testing.T) {
	ctx := context.Background()
	day0 := day(2025, 6, 23)
	mem := memory.New()
	require.NoError(t, mem.AddReminder(ctx, model.ReminderConfig{
		ID: "r1", Title: "Service", Status: model.StatusActive,
		TriggerDate:     day0.AddDate(0, 0, 7),
		DaysBeforeAlert: []int{7},
		Channels:        []model.Channel{model.ChannelEmail},
		Recipients:      []string{"ops@x.com"},
	}))
	require.NoError(t, mem.AddReminder(ctx, model.ReminderConfig{
		ID: "r2", Title: "Paused", Status: model.StatusPaused,
		TriggerDate: day0.AddDate(0, 0, 7), DaysBeforeAlert: []int{7},
	}))

	res := NewResolver(mem, nil)
	due, err := res.DueReminders(ctx, day0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "r1", due[0].ID)

	due, err = res.DueReminders(ctx, day0.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestResolver_Advance(t *testing.T) {
	ctx := context.Background()
	today := day(2025, 6, 30)
	mem := memory.New()
	require.NoError(t, mem.AddReminder(ctx, model.ReminderConfig{
		ID: "auto", Status: model.StatusActive, IsRecurring: true,
		TriggerDate: today, DaysBeforeAlert: []int{0},
		Recurrence: model.Recurrence{Interval: 1, Unit: model.UnitDay},
	}))
	require.NoError(t, mem.AddReminder(ctx, model.ReminderConfig{
		ID: "once", Status: model.StatusActive, TriggerDate: today, DaysBeforeAlert: []int{0},
	}))

	n, err := NewResolver(mem, nil).Advance(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, _ := mem.GetReminder(ctx, "auto")
	assert.Equal(t, day(2025, 7, 1), got.TriggerDate)
	got, _ = mem.GetReminder(ctx, "once")
	assert.Equal(t, today, got.TriggerDate)
}

func TestResolver_AdvanceWithoutZeroOffset(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	require.NoError(t, mem.AddReminder(ctx, model.ReminderConfig{
		ID: "tax", Status: model.StatusActive, IsRecurring: true,
		TriggerDate:     day(2025, 6, 30),
		DaysBeforeAlert: []int{30, 14, 7, 1},
		Recurrence:      model.Recurrence{Interval: 1, Unit: model.UnitYear},
	}))
	require.NoError(t, mem.AddReminder(ctx, model.ReminderConfig{
		ID: "paused", Status: model.StatusPaused, IsRecurring: true,
		TriggerDate:     day(2025, 6, 30),
		DaysBeforeAlert: []int{1},
		Recurrence:      model.Recurrence{Interval: 1, Unit: model.UnitYear},
	}))
	res := NewResolver(mem, nil)

	fired := 0
	for d := day(2025, 6, 28); !d.After(day(2025, 7, 4)); d = d.AddDate(0, 0, 1) {
		due, err := res.DueReminders(ctx, d)
		require.NoError(t, err)
		fired += len(due)
		_, err = res.Advance(ctx, d)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fired, "only the 1-day alert falls in the window")

	got, err := mem.GetReminder(ctx, "tax")
	require.NoError(t, err)
	assert.Equal(t, day(2026, 6, 30), got.TriggerDate)
	got, err = mem.GetReminder(ctx, "paused")
	require.NoError(t, err)
	assert.Equal(t, day(2025, 6, 30), got.TriggerDate)

	due, err := res.DueReminders(ctx, day(2026, 6, 16))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "tax", due[0].ID)
}
