package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fleetremind/core/metrics"
)

// PromSink records delivery attempts and cycle summaries in Prometheus metrics.
type PromSink struct {
	deliveries *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	cycles     prometheus.Counter
	cycleItems *prometheus.CounterVec
	lastCycle  *prometheus.GaugeVec
	duration   prometheus.Histogram
}

// NewPromSink registers the reminder metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_deliveries_total",
			Help: "Delivery attempts by channel and outcome",
		}, []string{"channel", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reminder_delivery_latency_seconds",
			Help:    "Time spent in the provider call",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminder_cycles_total",
			Help: "Completed reminder cycles",
		}),
		cycleItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_cycle_items_total",
			Help: "Reminders touched by cycle stages",
		}, []string{"kind"}),
		lastCycle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reminder_last_cycle",
			Help: "Counters of the most recent cycle",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reminder_cycle_duration_seconds",
			Help:    "Wall time of a reminder cycle",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
	var err error
	if s.deliveries, err = register(reg, s.deliveries); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, s.latency); err != nil {
		return nil, err
	}
	if s.cycles, err = register(reg, s.cycles); err != nil {
		return nil, err
	}
	if s.cycleItems, err = register(reg, s.cycleItems); err != nil {
		return nil, err
	}
	if s.lastCycle, err = register(reg, s.lastCycle); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when c was registered before.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDelivery increments the delivery counter and observes the provider latency.
func (s *PromSink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	s.deliveries.WithLabelValues(ev.Channel, ev.Status).Inc()
	if ev.Latency > 0 {
		s.latency.WithLabelValues(ev.Channel).Observe(ev.Latency.Seconds())
	}
	return nil
}

// RecordCycle accumulates the cycle counters and exposes the last cycle as gauges.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycles.Inc()
	s.duration.Observe(ev.Duration.Seconds())
	for kind, n := range cycleCounts(ev) {
		s.cycleItems.WithLabelValues(kind).Add(float64(n))
		s.lastCycle.WithLabelValues(kind).Set(float64(n))
	}
	return nil
}

func cycleCounts(ev coremetrics.CycleEvent) map[string]int {
	return map[string]int{
		"repaired":    ev.Repaired,
		"deactivated": ev.Deactivated,
		"created":     ev.Created,
		"refreshed":   ev.Refreshed,
		"paused":      ev.Paused,
		"due":         ev.Due,
		"delivered":   ev.Delivered,
		"failed":      ev.Failed,
	}
}
