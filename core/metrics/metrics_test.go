package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetremind/core/factory"
)

type countSink struct {
	deliveries, cycles int
	err                error
}

func (c *countSink) RecordDelivery(DeliveryEvent) error { c.deliveries++; return c.err }
func (c *countSink) RecordCycle(CycleEvent) error       { c.cycles++; return c.err }

func TestMultiSink_CallsAll(t *testing.T) {
	failing := &countSink{err: errors.New("down")}
	ok := &countSink{}
	m := NewMultiSink(failing, ok)
	assert.Error(t, m.RecordDelivery(DeliveryEvent{}))
	assert.Error(t, m.RecordCycle(CycleEvent{}))
	assert.Equal(t, 1, ok.deliveries)
	assert.Equal(t, 1, ok.cycles)
}

func TestNewSink(t *testing.T) {
	s, err := NewSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	require.NoError(t, RegisterSink("count-test", func(map[string]any) (Sink, error) { return &countSink{}, nil }))
	s, err = NewSink([]factory.ModuleConfig{{Type: "count-test"}, {Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, &MultiSink{}, s)

	_, err = NewSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.Error(t, err)
}
