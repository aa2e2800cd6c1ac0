package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetremind/core/channel"
	"github.com/kilianp07/fleetremind/core/deliverylog"
	"github.com/kilianp07/fleetremind/core/dispatch"
	"github.com/kilianp07/fleetremind/core/events"
	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/sanitize"
	"github.com/kilianp07/fleetremind/core/scanner"
	"github.com/kilianp07/fleetremind/core/schedule"
	"github.com/kilianp07/fleetremind/core/store"
	"github.com/kilianp07/fleetremind/core/store/memory"
	"github.com/kilianp07/fleetremind/core/template"
)

var now = time.Date(2025, 6, 23, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type fakeSender struct {
	ch  model.Channel
	err error
	// block, when set, holds every Send until it is closed.
	block   chan struct{}
	started chan struct{}
	once    sync.Once
	mu      sync.Mutex
	sent    []string
}

func (s *fakeSender) Channel() model.Channel { return s.ch }

func (s *fakeSender) Send(_ context.Context, _ model.ChannelSettings, msg channel.Message) error {
	if s.started != nil {
		s.once.Do(func() { close(s.started) })
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.sent = append(s.sent, msg.Recipient)
	s.mu.Unlock()
	return s.err
}

type panickingContacts struct{}

func (panickingContacts) ListContacts(context.Context) ([]model.Contact, error) {
	panic("contacts backend exploded")
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Notify(_ context.Context, e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		switch e.Kind {
		case events.CycleStarted, events.CycleCompleted:
			out = append(out, string(e.Kind))
		case events.StageCompleted, events.StageFailed:
			out = append(out, string(e.Kind)+":"+e.Stage)
		}
	}
	return out
}

type harness struct {
	mem      *memory.Store
	email    *fakeSender
	whatsapp *fakeSender
	orch     *Orchestrator
}

func newHarness(t *testing.T, contacts store.ContactSource) *harness {
	t.Helper()
	mem := memory.New()
	if contacts == nil {
		contacts = mem
	}
	settings := channel.NewSettings(mem, map[model.Channel]model.ChannelSettings{
		model.ChannelEmail:    {Enabled: ptr(true), ServiceID: "s", TemplateID: "t", PublicKey: "p", SenderEmail: "noreply@fleet.id"},
		model.ChannelWhatsApp: {Enabled: ptr(true), APIKey: "k", Sender: "6281100000000"},
	})
	h := &harness{
		mem:      mem,
		email:    &fakeSender{ch: model.ChannelEmail},
		whatsapp: &fakeSender{ch: model.ChannelWhatsApp, err: &channel.ProviderError{Channel: model.ChannelWhatsApp, StatusCode: 500, Body: "gateway down"}},
	}
	clock := func() time.Time { return now }
	rec := deliverylog.NewRecorder(mem, mem, nil)
	disp := dispatch.New([]channel.Sender{h.email, h.whatsapp}, settings, template.NewRenderer(template.Config{Company: "PT Armada"}), rec,
		dispatch.Options{Vehicles: mem, Documents: mem, Now: clock})
	h.orch = New(Config{}, Deps{
		Sanitizer:  sanitize.New(sanitize.Config{SenderEmail: "noreply@fleet.id"}, mem, mem, nil),
		Scanner:    scanner.New(scanner.Config{Defaults: scanner.Defaults{Email: "fleet@company.id"}}, scanner.Sources{Reminders: mem, Documents: mem, Vehicles: mem, Contacts: contacts}, settings, nil),
		Resolver:   schedule.NewResolver(mem, nil),
		Dispatcher: disp,
		Reminders:  mem,
		Logs:       mem,
		Now:        clock,
	})
	return h
}

func (h *harness) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.mem.PutVehicle(ctx, model.Vehicle{ID: "v1", PlatNomor: "B 1234 AB"}))
	require.NoError(t, h.mem.PutDocument(ctx, model.Document{ID: "d1", PlatNomor: "B 1234 AB", JenisDokumen: "STNK", Status: "Expired"}))
	require.NoError(t, h.mem.PutContact(ctx, model.Contact{Name: "Ops", Email: "ops@fleet.id"}))
	require.NoError(t, h.mem.AddReminder(ctx, model.ReminderConfig{
		ID:              "r1",
		Title:           "Oil change",
		Type:            model.ReminderService,
		VehicleRef:      "v1",
		TriggerDate:     model.DateOnly(now),
		DaysBeforeAlert: []int{0},
		Channels:        []model.Channel{model.ChannelEmail, model.ChannelWhatsApp},
		Recipients:      []string{"driver@fleet.id", "0812 3456 7890", "garbage"},
		IsRecurring:     true,
		Recurrence:      model.Recurrence{Interval: 1, Unit: model.UnitMonth},
		Status:          model.StatusActive,
		CreatedBy:       model.CreatedByUser,
	}))
	require.NoError(t, h.mem.AddReminder(ctx, model.ReminderConfig{
		ID:              "r2",
		Title:           "Later",
		Type:            model.ReminderCustom,
		TriggerDate:     model.DateOnly(now).AddDate(0, 0, 10),
		DaysBeforeAlert: []int{3},
		Channels:        []model.Channel{model.ChannelEmail},
		Recipients:      []string{"driver@fleet.id"},
		Status:          model.StatusActive,
		CreatedBy:       model.CreatedByUser,
	}))
}

func TestRunDailyCheck_EndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.seed(t)
	obs := &recorder{}

	rep, err := h.orch.RunDailyCheck(ctx, obs)
	require.NoError(t, err)
	require.NoError(t, rep.Err())

	assert.Equal(t, "2025-06-23", rep.AsOf)
	assert.Equal(t, 1, rep.Sanitize.Repaired, "garbage recipient is stripped from r1")
	assert.Equal(t, 1, rep.Scan.Created)
	assert.Equal(t, 2, rep.Due)
	require.Len(t, rep.Results, 2)
	// r1: email ok, whatsapp fails. auto: ops@fleet.id by email.
	assert.Equal(t, 2, rep.Delivered)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 2, rep.Advanced)

	assert.Equal(t, []string{
		"cycle_started",
		"stage_completed:sanitize",
		"stage_completed:scan",
		"stage_completed:resolve",
		"stage_completed:dispatch",
		"stage_completed:advance",
		"cycle_completed",
	}, obs.stages())

	logs, err := h.mem.Query(ctx, store.LogQuery{})
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	r1, err := h.mem.GetReminder(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.DateOnly(now).AddDate(0, 1, 0), r1.TriggerDate)

	// A second run on the same day sends nothing.
	rep, err = h.orch.RunDailyCheck(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Due)
	assert.Equal(t, 1, rep.Scan.Unchanged)
	logs, err = h.mem.Query(ctx, store.LogQuery{})
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

func TestRunDailyCheck_RejectsOverlappingCycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.seed(t)
	h.email.block = make(chan struct{})
	h.email.started = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.RunDailyCheck(ctx, nil)
		done <- err
	}()
	<-h.email.started

	_, err := h.orch.RunDailyCheck(ctx, nil)
	assert.ErrorIs(t, err, ErrCycleInProgress)
	_, err = h.orch.ManualCleanup(ctx, nil)
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(h.email.block)
	require.NoError(t, <-done)

	_, err = h.orch.ManualCleanup(ctx, nil)
	assert.NoError(t, err)
}

func TestRunDailyCheck_ScanFailureDoesNotStopCycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, panickingContacts{})
	h.seed(t)
	obs := &recorder{}

	rep, err := h.orch.RunDailyCheck(ctx, obs)
	require.NoError(t, err)
	require.Error(t, rep.Err())
	assert.Contains(t, rep.Err().Error(), "scan")
	assert.Contains(t, obs.stages(), "stage_failed:scan")
	assert.Equal(t, 1, rep.Due, "user reminder is still dispatched")
	assert.Equal(t, 1, rep.Delivered)
}

func TestRunDailyCheck_CancelledContextStillDispatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, nil)
	h.seed(t)
	h.orch.cfg.SendInterval = time.Millisecond
	cancel()

	rep, err := h.orch.RunDailyCheck(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Due)
	assert.Len(t, rep.Results, 2)
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.seed(t)
	_, err := h.orch.RunDailyCheck(ctx, nil)
	require.NoError(t, err)

	failed, err := h.mem.Query(ctx, store.LogQuery{Status: model.DeliveryFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)

	h.whatsapp.err = nil
	res, err := h.orch.Retry(ctx, failed[0].ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "r1", res.ReminderID)
	assert.Equal(t, res.Total, res.Success)

	retried, err := h.mem.Query(ctx, store.LogQuery{ReminderID: "r1", Channel: model.ChannelWhatsApp})
	require.NoError(t, err)
	require.Len(t, retried, 2)
	byAttempt := map[int]model.DeliveryLog{}
	for _, l := range retried {
		byAttempt[l.Attempts] = l
	}
	assert.Equal(t, model.DeliveryDelivered, byAttempt[2].Status)
	assert.Equal(t, model.DeliveryFailed, byAttempt[1].Status, "original row is immutable")

	delivered, err := h.mem.Query(ctx, store.LogQuery{Status: model.DeliveryDelivered, Limit: 1})
	require.NoError(t, err)
	_, err = h.orch.Retry(ctx, delivered[0].ID, nil)
	assert.ErrorIs(t, err, ErrNotRetryable)

	require.NoError(t, h.mem.DeleteReminder(ctx, "r1"))
	_, err = h.orch.Retry(ctx, failed[0].ID, nil)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = h.orch.Retry(ctx, "missing", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSendReminderAndPreview(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.seed(t)

	res, err := h.orch.SendReminder(ctx, "r2", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)

	_, err = h.orch.SendReminder(ctx, "nope", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	due, err := h.orch.DueReminders(ctx, now.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "r2", due[0].ID)
}
