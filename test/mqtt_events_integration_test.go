//go:build !no_containers

package test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetremind/config"
	"github.com/kilianp07/fleetremind/core/events"
	"github.com/kilianp07/fleetremind/test/util"
)

func TestMQTTObserver_PublishesCycleEvents(t *testing.T) {
	util.RequireDocker(t)
	ctx := context.Background()
	broker, cleanup, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("mosquitto: %v", err)
	}
	defer cleanup()

	received := make(chan events.Event, 16)
	sub := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("listener"))
	require.NoError(t, waitToken(sub.Connect()))
	defer sub.Disconnect(100)
	require.NoError(t, waitToken(sub.Subscribe("fleetremind/events/#", 1, func(_ paho.Client, m paho.Message) {
		var e events.Event
		if json.Unmarshal(m.Payload(), &e) == nil {
			received <- e
		}
	})))

	svc := newService(t, func(c *config.Config) {
		c.MQTT.Broker = broker
		c.MQTT.QoS = map[string]byte{string(events.CycleCompleted): 1}
	})
	rep, err := svc.RunOnce(ctx)
	require.NoError(t, err)

	kinds := map[events.Kind]bool{}
	timeout := time.After(5 * time.Second)
	for !kinds[events.CycleCompleted] {
		select {
		case e := <-received:
			kinds[e.Kind] = true
			if e.Kind == events.CycleCompleted {
				assert.Equal(t, rep.CycleID, e.CycleID)
			}
		case <-timeout:
			t.Fatalf("cycle_completed not received, got %v", kinds)
		}
	}
	assert.True(t, kinds[events.CycleStarted])
}

func waitToken(tok paho.Token) error {
	if !tok.WaitTimeout(5 * time.Second) {
		return context.DeadlineExceeded
	}
	return tok.Error()
}
