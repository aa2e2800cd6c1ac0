// Package metrics defines the sinks that record delivery and cycle
// statistics. Concrete sinks (Prometheus, InfluxDB) live in infra/metrics
// and register themselves in the module registry.
package metrics

import (
	"time"

	"github.com/kilianp07/fleetremind/core/factory"
)

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr is the listen address of the /metrics endpoint, empty disables it.
	PrometheusAddr string `json:"prometheus_addr"`
}

// DeliveryEvent describes one send attempt.
type DeliveryEvent struct {
	ReminderID string
	Channel    string
	Status     string
	Latency    time.Duration
	Time       time.Time
}

// CycleEvent summarises one daily cycle.
type CycleEvent struct {
	CycleID     string
	Repaired    int
	Deactivated int
	Created     int
	Refreshed   int
	Paused      int
	Due         int
	Delivered   int
	Failed      int
	Duration    time.Duration
	Time        time.Time
}

// Sink records engine metrics.
type Sink interface {
	RecordDelivery(ev DeliveryEvent) error
	RecordCycle(ev CycleEvent) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordDelivery(DeliveryEvent) error { return nil }
func (NopSink) RecordCycle(CycleEvent) error       { return nil }

// OrNop returns s, or a NopSink when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return NopSink{}
	}
	return s
}

// MultiSink fans records out to several sinks, returning the first error
// after every sink has been called.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink { return &MultiSink{Sinks: sinks} }

func (m *MultiSink) RecordDelivery(ev DeliveryEvent) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordDelivery(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) RecordCycle(ev CycleEvent) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordCycle(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
