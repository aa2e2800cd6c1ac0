package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecurrenceNext(t *testing.T) {
	d := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, d.AddDate(0, 0, 1), Recurrence{}.Next(d))
	assert.Equal(t, d.AddDate(0, 0, 14), Recurrence{Interval: 2, Unit: UnitWeek}.Next(d))
	assert.Equal(t, d.AddDate(0, 3, 0), Recurrence{Interval: 3, Unit: UnitMonth}.Next(d))
	assert.Equal(t, d.AddDate(1, 0, 0), Recurrence{Interval: 1, Unit: UnitYear}.Next(d))
}

func TestReminderCanFire(t *testing.T) {
	r := ReminderConfig{Status: StatusActive, DaysBeforeAlert: []int{0}}
	assert.True(t, r.CanFire())
	r.DaysBeforeAlert = nil
	assert.False(t, r.CanFire())
	r.DaysBeforeAlert = []int{1}
	r.Status = StatusPaused
	assert.False(t, r.CanFire())
}

func TestReminderIsAuto(t *testing.T) {
	r := ReminderConfig{Type: ReminderDocument, DocumentRef: "d1", Title: "[AUTO] STNK expired"}
	assert.True(t, r.IsAuto("[AUTO]"))
	r.DocumentRef = ""
	assert.False(t, r.IsAuto("[AUTO]"))
	r.DocumentRef = "d1"
	r.Type = ReminderCustom
	assert.False(t, r.IsAuto("[AUTO]"))
}

func TestReminderValidate(t *testing.T) {
	r := ReminderConfig{
		Title:       "Service",
		Type:        ReminderService,
		Status:      StatusActive,
		TriggerDate: time.Now(),
		Channels:    []Channel{ChannelEmail},
	}
	assert.NoError(t, r.Validate())
	r.Channels = append(r.Channels, "fax")
	assert.Error(t, r.Validate())
	r.Channels = nil
	r.Type = "boat"
	assert.Error(t, r.Validate())
}

func TestReminderCloneIsDeep(t *testing.T) {
	r := ReminderConfig{Recipients: []string{"a@b.com"}}
	c := r.Clone()
	c.Recipients[0] = "x@y.com"
	assert.Equal(t, "a@b.com", r.Recipients[0])
}

func TestDocumentExpiredOn(t *testing.T) {
	asOf := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)
	yesterday := asOf.AddDate(0, 0, -1)
	today := asOf
	assert.True(t, Document{Status: "Expired"}.ExpiredOn(asOf))
	assert.True(t, Document{Status: "active", TanggalKadaluarsa: &yesterday}.ExpiredOn(asOf))
	assert.False(t, Document{Status: "active", TanggalKadaluarsa: &today}.ExpiredOn(asOf))
	assert.False(t, Document{Status: "active"}.ExpiredOn(asOf))
}
