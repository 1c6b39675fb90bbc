package utils_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"echoflow/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitFor = 2 * time.Second

func collect(t *testing.T, bus *utils.EventBus, topic string) (*utils.Subscription, <-chan utils.Event) {
	t.Helper()
	ch := make(chan utils.Event, 16)
	sub := bus.Subscribe(topic, func(e utils.Event) { ch <- e })
	t.Cleanup(sub.Cancel)
	return sub, ch
}

func next(t *testing.T, ch <-chan utils.Event) utils.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for event")
		return utils.Event{}
	}
}

func TestPublishReachesOnlyTopicSubscribers(t *testing.T) {
	bus := utils.NewEventBus(zap.NewNop())
	_, a := collect(t, bus, "threads:user:a")
	_, b := collect(t, bus, "threads:user:b")

	bus.Publish("threads:user:a", "thread.created", "t1")

	e := next(t, a)
	assert.Equal(t, "threads:user:a", e.Topic)
	assert.Equal(t, "thread.created", e.Event)
	assert.Equal(t, "t1", e.Data)

	select {
	case e := <-b:
		t.Fatalf("unexpected event on other topic: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventsAreDeliveredInOrder(t *testing.T) {
	bus := utils.NewEventBus(zap.NewNop())
	_, ch := collect(t, bus, "topic")

	for i := 0; i < 10; i++ {
		bus.Publish("topic", "tick", i)
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, i, next(t, ch).Data)
	}
}

func TestNotifyTargetsSingleSubscription(t *testing.T) {
	bus := utils.NewEventBus(zap.NewNop())
	first, a := collect(t, bus, "topic")
	_, b := collect(t, bus, "topic")

	first.Notify("snapshot", nil)

	assert.Equal(t, "snapshot", next(t, a).Event)
	select {
	case e := <-b:
		t.Fatalf("second subscriber got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelStopsDeliveryAndUnregisters(t *testing.T) {
	bus := utils.NewEventBus(zap.NewNop())
	sub, ch := collect(t, bus, "topic")
	require.Equal(t, 1, bus.SubscriberCount("topic"))

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 0, bus.SubscriberCount("topic"))

	bus.Publish("topic", "late", nil)
	select {
	case e := <-ch:
		t.Fatalf("event after cancel: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

type loopbackRelay struct {
	bus  *utils.EventBus
	fail bool

	mu   sync.Mutex
	sent []utils.Event
}

func (r *loopbackRelay) Publish(_ context.Context, e utils.Event) error {
	if r.fail {
		return errors.New("relay down")
	}
	r.mu.Lock()
	r.sent = append(r.sent, e)
	r.mu.Unlock()
	r.bus.Dispatch(e)
	return nil
}

func TestPublishGoesThroughRelay(t *testing.T) {
	bus := utils.NewEventBus(zap.NewNop())
	relay := &loopbackRelay{bus: bus}
	bus.SetRelay(relay)
	_, ch := collect(t, bus, "topic")

	bus.Publish("topic", "relayed", 1)

	assert.Equal(t, "relayed", next(t, ch).Event)
	relay.mu.Lock()
	defer relay.mu.Unlock()
	assert.Len(t, relay.sent, 1)
}

func TestPublishFallsBackToLocalDispatch(t *testing.T) {
	bus := utils.NewEventBus(zap.NewNop())
	bus.SetRelay(&loopbackRelay{bus: bus, fail: true})
	_, ch := collect(t, bus, "topic")

	bus.Publish("topic", "local", nil)

	assert.Equal(t, "local", next(t, ch).Event)
}
