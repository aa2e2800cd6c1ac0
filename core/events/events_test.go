package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/fleetremind/internal/eventbus"
)

func TestMultiAndBus(t *testing.T) {
	bus := eventbus.NewTyped[Event]()
	sub := bus.Subscribe()
	var seen []Kind
	m := Multi{
		ObserverFunc(func(_ context.Context, e Event) { seen = append(seen, e.Kind) }),
		nil,
		BusObserver{Bus: bus},
		LogObserver{},
	}
	m.Notify(context.Background(), Event{Kind: CycleStarted, CycleID: "c1"})
	assert.Equal(t, []Kind{CycleStarted}, seen)
	got := <-sub
	assert.Equal(t, "c1", got.CycleID)

	OrNop(nil).Notify(context.Background(), Event{Kind: Diagnostic})
}
