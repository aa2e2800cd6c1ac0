// Package dispatch fans a reminder out to every declared channel and
// recipient. Each send is an independent failure domain and leaves exactly
// one delivery log row.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/fleetremind/core/channel"
	"github.com/kilianp07/fleetremind/core/deliverylog"
	"github.com/kilianp07/fleetremind/core/events"
	"github.com/kilianp07/fleetremind/core/logger"
	"github.com/kilianp07/fleetremind/core/metrics"
	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
	"github.com/kilianp07/fleetremind/core/template"
)

// DefaultMaxConcurrent bounds parallel sends for a single reminder.
const DefaultMaxConcurrent = 4

// Options carries the optional collaborators of a Dispatcher.
type Options struct {
	Vehicles      store.VehicleSource
	Documents     store.DocumentSource
	Metrics       metrics.Sink
	Logger        logger.Logger
	MaxConcurrent int
	Now           func() time.Time
}

// Dispatcher implements sendReminder.
type Dispatcher struct {
	senders   map[model.Channel]channel.Sender
	settings  *channel.Settings
	renderer  *template.Renderer
	recorder  *deliverylog.Recorder
	vehicles  store.VehicleSource
	documents store.DocumentSource
	metrics   metrics.Sink
	log       logger.Logger
	limit     int
	now       func() time.Time
}

// New builds a Dispatcher. A channel without a registered sender fails every
// attempt on it with ErrConfigurationIncomplete.
func New(senders []channel.Sender, settings *channel.Settings, renderer *template.Renderer, recorder *deliverylog.Recorder, opts Options) *Dispatcher {
	m := make(map[model.Channel]channel.Sender, len(senders))
	for _, s := range senders {
		m[s.Channel()] = s
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		senders:   m,
		settings:  settings,
		renderer:  renderer,
		recorder:  recorder,
		vehicles:  opts.Vehicles,
		documents: opts.Documents,
		metrics:   metrics.OrNop(opts.Metrics),
		log:       logger.OrNop(opts.Logger),
		limit:     opts.MaxConcurrent,
		now:       opts.Now,
	}
}

// Attempt is the outcome of one send.
type Attempt struct {
	Channel   model.Channel        `json:"channel"`
	Recipient string               `json:"recipient"`
	Status    model.DeliveryStatus `json:"status"`
	Error     string               `json:"error,omitempty"`
	LogID     string               `json:"log_id,omitempty"`
}

// Result aggregates the attempts for one reminder.
type Result struct {
	ReminderID string    `json:"reminder_id"`
	Success    int       `json:"success"`
	Total      int       `json:"total"`
	Dropped    int       `json:"dropped"`
	Attempts   []Attempt `json:"attempts"`
}

// Failed returns the number of failed attempts.
func (r Result) Failed() int { return r.Total - r.Success }

func (r Result) String() string { return fmt.Sprintf("%d/%d", r.Success, r.Total) }

type job struct {
	ch        model.Channel
	recipient string
}

// SendReminder sends rem on every declared channel that has recipients in
// its bucket. Unclassified recipients are dropped without a log row. The
// returned error only reports delivery-log persistence failures; send
// failures are part of the Result.
func (d *Dispatcher) SendReminder(ctx context.Context, rem model.ReminderConfig, obs events.Observer) (Result, error) {
	return d.SendReminderAttempt(ctx, rem, 1, obs)
}

// SendReminderAttempt is SendReminder with an explicit attempt number, used by retries.
func (d *Dispatcher) SendReminderAttempt(ctx context.Context, rem model.ReminderConfig, attempt int, obs events.Observer) (Result, error) {
	obs = events.OrNop(obs)
	buckets := model.PartitionRecipients(rem.Recipients)
	res := Result{ReminderID: rem.ID, Dropped: len(buckets.Unclassified)}
	if res.Dropped > 0 {
		d.log.Debugw("unclassified recipients dropped", map[string]any{"reminder_id": rem.ID, "count": res.Dropped})
	}

	var jobs []job
	seen := map[model.Channel]bool{}
	for _, ch := range rem.Channels {
		if !ch.Valid() || seen[ch] {
			continue
		}
		seen[ch] = true
		for _, r := range buckets.For(ch) {
			jobs = append(jobs, job{ch: ch, recipient: r.Value})
		}
	}
	if len(jobs) == 0 {
		return res, nil
	}

	asOf := d.now()
	rendered := d.renderer.Render(rem, asOf, d.lookup(ctx, rem))
	settings := d.resolveSettings(ctx, seen)

	res.Total = len(jobs)
	res.Attempts = make([]Attempt, len(jobs))
	logErrs := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(d.limit)
	for i, j := range jobs {
		g.Go(func() error {
			res.Attempts[i], logErrs[i] = d.attempt(ctx, rem, j, settings[j.ch], rendered, attempt, obs)
			return nil
		})
	}
	_ = g.Wait()

	for _, a := range res.Attempts {
		if a.Status == model.DeliveryDelivered {
			res.Success++
		}
	}
	d.log.Infow("reminder dispatched", map[string]any{
		"reminder_id": rem.ID,
		"success":     res.Success,
		"total":       res.Total,
		"dropped":     res.Dropped,
	})
	return res, errors.Join(logErrs...)
}

type resolved struct {
	settings model.ChannelSettings
	err      error
}

func (d *Dispatcher) resolveSettings(ctx context.Context, chans map[model.Channel]bool) map[model.Channel]resolved {
	out := make(map[model.Channel]resolved, len(chans))
	for ch := range chans {
		st, err := d.settings.Effective(ctx, ch)
		if err == nil && st.Enabled != nil && !*st.Enabled {
			err = fmt.Errorf("%s: %w: channel disabled", ch, channel.ErrConfigurationIncomplete)
		}
		out[ch] = resolved{settings: st, err: err}
	}
	return out
}

func (d *Dispatcher) attempt(ctx context.Context, rem model.ReminderConfig, j job, st resolved, msg template.Rendered, attempt int, obs events.Observer) (Attempt, error) {
	start := d.now()
	err := st.err
	if err == nil {
		err = d.send(ctx, j, st.settings, channel.Message{
			ReminderID: rem.ID,
			Recipient:  j.recipient,
			Subject:    msg.Subject,
			HTML:       msg.HTML,
			Text:       msg.Text,
		})
	}
	out := Attempt{Channel: j.ch, Recipient: j.recipient, Status: model.DeliveryDelivered}
	entry := model.DeliveryLog{
		ReminderID:    rem.ID,
		ReminderTitle: rem.Title,
		Recipient:     j.recipient,
		Channel:       j.ch,
		Status:        model.DeliveryDelivered,
		Subject:       msg.Subject,
		Message:       msg.Text,
		SentAt:        start,
		Attempts:      attempt,
	}
	if err != nil {
		out.Status, out.Error = model.DeliveryFailed, err.Error()
		entry.Status, entry.ErrorMessage = model.DeliveryFailed, err.Error()
		d.log.Warnf("send %s to %s for reminder %s: %v", j.ch, j.recipient, rem.ID, err)
	}
	stored, logErr := d.recorder.LogDelivery(ctx, entry)
	if logErr != nil {
		d.log.Errorf("delivery log for reminder %s: %v", rem.ID, logErr)
	} else {
		out.LogID = stored.ID
	}
	if merr := d.metrics.RecordDelivery(metrics.DeliveryEvent{
		ReminderID: rem.ID,
		Channel:    string(j.ch),
		Status:     string(out.Status),
		Latency:    d.now().Sub(start),
		Time:       start,
	}); merr != nil {
		d.log.Debugf("metrics: %v", merr)
	}
	obs.Notify(ctx, events.Event{
		Kind:       events.DeliveryAttempted,
		Time:       start,
		ReminderID: rem.ID,
		Channel:    string(j.ch),
		Recipient:  j.recipient,
		Status:     string(out.Status),
		Error:      out.Error,
	})
	return out, logErr
}

// send isolates a sender: a panic becomes a failed attempt.
func (d *Dispatcher) send(ctx context.Context, j job, st model.ChannelSettings, msg channel.Message) (err error) {
	sender, ok := d.senders[j.ch]
	if !ok {
		return channel.Incomplete(j.ch, "sender")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s sender panic: %v", j.ch, r)
		}
	}()
	return sender.Send(ctx, st, msg)
}

func (d *Dispatcher) lookup(ctx context.Context, rem model.ReminderConfig) template.Data {
	var data template.Data
	if d.vehicles != nil && rem.VehicleRef != "" {
		if v, err := d.vehicles.GetVehicle(ctx, rem.VehicleRef); err == nil {
			data.Vehicle = v.PlatNomor
		}
	}
	if d.documents != nil && rem.DocumentRef != "" {
		if doc, err := d.documents.GetDocument(ctx, rem.DocumentRef); err == nil {
			data.Document = doc.JenisDokumen
			if data.Vehicle == "" {
				data.Vehicle = doc.PlatNomor
			}
		}
	}
	return data
}
