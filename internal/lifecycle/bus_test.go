package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBusDeliversToSubscribedKind(t *testing.T) {
	b := NewBus(nil)

	got := make(chan Event, 1)
	b.Subscribe(EventConnect, func(ev Event) { got <- ev })

	b.Publish(EventConnect, "payload")

	ev := waitForEvent(t, got)
	assert.Equal(t, EventConnect, ev.Kind)
	assert.Equal(t, "payload", ev.Payload)
	assert.False(t, ev.At.IsZero())
}

func TestBusIgnoresOtherKinds(t *testing.T) {
	b := NewBus(nil)

	got := make(chan Event, 1)
	b.Subscribe(EventError, func(ev Event) { got <- ev })

	b.Publish(EventConnect, nil)
	b.Publish(EventDisconnect, nil)

	select {
	case ev := <-got:
		t.Fatalf("handler received event for kind it never subscribed to: %s", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusFanOut(t *testing.T) {
	b := NewBus(nil)

	first := make(chan Event, 1)
	second := make(chan Event, 1)
	b.Subscribe(EventDisconnect, func(ev Event) { first <- ev })
	b.Subscribe(EventDisconnect, func(ev Event) { second <- ev })

	b.Publish(EventDisconnect, nil)

	waitForEvent(t, first)
	waitForEvent(t, second)
}

func TestBusHandlerPanicIsIsolated(t *testing.T) {
	b := NewBus(nil)

	got := make(chan Event, 1)
	b.Subscribe(EventError, func(Event) { panic("handler exploded") })
	b.Subscribe(EventError, func(ev Event) { got <- ev })

	require.NotPanics(t, func() {
		b.Publish(EventError, nil)
	})

	// The second handler still runs after the first one panicked.
	waitForEvent(t, got)
}

func TestBusNilHandlerIgnored(t *testing.T) {
	b := NewBus(nil)
	b.Subscribe(EventConnect, nil)

	assert.NotPanics(t, func() {
		b.Publish(EventConnect, nil)
	})
}

func TestBusPublishDoesNotBlockPublisher(t *testing.T) {
	b := NewBus(nil)

	release := make(chan struct{})
	done := make(chan struct{})
	b.Subscribe(EventConnect, func(Event) {
		<-release
		close(done)
	})

	start := time.Now()
	b.Publish(EventConnect, nil)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 100*time.Millisecond, "publish must return before handlers run")

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}
