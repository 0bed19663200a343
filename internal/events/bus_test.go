package events_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cogkernel/internal/events"
)

func TestBusPublishInvokesSubscriber(t *testing.T) {
	bus := events.NewBus()
	var got events.Event
	bus.Subscribe("tool-fired", func(ev events.Event) { got = ev })

	bus.Publish(events.Event{Name: "tool-fired", Data: "payload"})
	assert.Equal(t, "tool-fired", got.Name)
	assert.Equal(t, "payload", got.Data)
}

func TestBusPublishFansOutToAllSubscribers(t *testing.T) {
	bus := events.NewBus()
	var calls int
	bus.Subscribe("tick", func(ev events.Event) { calls++ })
	bus.Subscribe("tick", func(ev events.Event) { calls++ })

	bus.Publish(events.Event{Name: "tick"})
	assert.Equal(t, 2, calls)
}

func TestBusPublishOnlyReachesMatchingName(t *testing.T) {
	bus := events.NewBus()
	var calls int
	bus.Subscribe("a", func(ev events.Event) { calls++ })

	bus.Publish(events.Event{Name: "b"})
	assert.Equal(t, 0, calls)
}

func TestBusUnsubscribeStopsFutureDelivery(t *testing.T) {
	bus := events.NewBus()
	var calls int
	unsubscribe := bus.Subscribe("tick", func(ev events.Event) { calls++ })

	bus.Publish(events.Event{Name: "tick"})
	unsubscribe()
	bus.Publish(events.Event{Name: "tick"})

	assert.Equal(t, 1, calls)
}
