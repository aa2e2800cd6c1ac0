// Package events defines what the reminder engine reports while it runs and
// the observers that receive it.
package events

import (
	"context"
	"time"

	"github.com/kilianp07/fleetremind/core/logger"
	"github.com/kilianp07/fleetremind/internal/eventbus"
)

// Kind identifies an event.
type Kind string

const (
	CycleStarted      Kind = "cycle_started"
	CycleCompleted    Kind = "cycle_completed"
	StageCompleted    Kind = "stage_completed"
	StageFailed       Kind = "stage_failed"
	DeliveryAttempted Kind = "delivery_attempted"
	Diagnostic        Kind = "diagnostic"
)

// Event is a flat, serialisable notification.
type Event struct {
	Kind       Kind           `json:"kind"`
	Time       time.Time      `json:"time"`
	CycleID    string         `json:"cycle_id,omitempty"`
	Stage      string         `json:"stage,omitempty"`
	ReminderID string         `json:"reminder_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Recipient  string         `json:"recipient,omitempty"`
	Status     string         `json:"status,omitempty"`
	Error      string         `json:"error,omitempty"`
	Message    string         `json:"message,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
}

// Observer receives events. Implementations must not block for long.
type Observer interface {
	Notify(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Notify(ctx context.Context, e Event) { f(ctx, e) }

// Nop discards events.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// OrNop returns o, or Nop when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop{}
	}
	return o
}

// Multi forwards every event to each observer in order.
type Multi []Observer

func (m Multi) Notify(ctx context.Context, e Event) {
	for _, o := range m {
		if o != nil {
			o.Notify(ctx, e)
		}
	}
}

// LogObserver writes events to a logger.
type LogObserver struct {
	Log logger.Logger
}

func (o LogObserver) Notify(_ context.Context, e Event) {
	fields := map[string]any{"kind": string(e.Kind)}
	add := func(k, v string) {
		if v != "" {
			fields[k] = v
		}
	}
	add("cycle_id", e.CycleID)
	add("stage", e.Stage)
	add("reminder_id", e.ReminderID)
	add("channel", e.Channel)
	add("recipient", e.Recipient)
	add("status", e.Status)
	add("error", e.Error)
	for k, v := range e.Counts {
		fields[k] = v
	}
	log := logger.OrNop(o.Log)
	switch e.Kind {
	case StageFailed:
		log.Errorf("%s failed: %s", e.Stage, e.Error)
	case Diagnostic:
		log.Warnf("diagnostic: %s %v", e.Message, fields)
	default:
		msg := e.Message
		if msg == "" {
			msg = string(e.Kind)
		}
		log.Infow(msg, fields)
	}
}

// BusObserver publishes events on an in-process bus.
type BusObserver struct {
	Bus *eventbus.TypedBus[Event]
}

func (o BusObserver) Notify(_ context.Context, e Event) {
	if o.Bus != nil {
		o.Bus.Publish(e)
	}
}
