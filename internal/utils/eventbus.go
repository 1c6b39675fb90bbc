package utils

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Event struct {
	Topic string      `json:"topic"`
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type Handler func(event Event)

// Relay carries published events to every instance, including this one.
// Whatever it receives must come back through EventBus.Dispatch.
type Relay interface {
	Publish(ctx context.Context, event Event) error
}

const subscriberBuffer = 32

type EventBus struct {
	subscribers map[string]map[uint64]*Subscription
	nextID      uint64
	relay       Relay
	logger      *zap.SugaredLogger
	mu          sync.RWMutex
}

func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string]map[uint64]*Subscription),
		logger:      logger.Sugar(),
	}
}

// SetRelay must be called before the bus is shared between goroutines.
func (eb *EventBus) SetRelay(relay Relay) {
	eb.relay = relay
}

// Subscribe registers handler for topic. Every subscription gets its own
// delivery goroutine, so handlers of one subscription run sequentially and
// never block other subscribers. No handler call starts after Cancel
// returns.
func (eb *EventBus) Subscribe(topic string, handler Handler) *Subscription {
	sub := &Subscription{
		topic:  topic,
		bus:    eb,
		events: make(chan Event, subscriberBuffer),
		done:   make(chan struct{}),
	}

	eb.mu.Lock()
	eb.nextID++
	sub.id = eb.nextID
	if eb.subscribers[topic] == nil {
		eb.subscribers[topic] = make(map[uint64]*Subscription)
	}
	eb.subscribers[topic][sub.id] = sub
	eb.mu.Unlock()

	go sub.run(handler)
	return sub
}

func (eb *EventBus) Publish(topic string, event string, data interface{}) {
	e := Event{Topic: topic, Event: event, Data: data}
	if eb.relay != nil {
		err := eb.relay.Publish(context.Background(), e)
		if err == nil {
			return
		}
		eb.logger.Warnw("Event relay failed, dispatching locally", "topic", topic, "event", event, "error", err)
	}
	eb.Dispatch(e)
}

// Dispatch delivers e to the local subscribers of e.Topic.
func (eb *EventBus) Dispatch(e Event) {
	eb.mu.RLock()
	subs := make([]*Subscription, 0, len(eb.subscribers[e.Topic]))
	for _, sub := range eb.subscribers[e.Topic] {
		subs = append(subs, sub)
	}
	eb.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(e)
	}
}

func (eb *EventBus) SubscriberCount(topic string) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[topic])
}

func (eb *EventBus) remove(sub *Subscription) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	subs, ok := eb.subscribers[sub.topic]
	if !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(eb.subscribers, sub.topic)
	}
}

type Subscription struct {
	id     uint64
	topic  string
	bus    *EventBus
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) Topic() string {
	return s.topic
}

// Notify delivers an event to this subscription only.
func (s *Subscription) Notify(event string, data interface{}) {
	s.deliver(Event{Topic: s.topic, Event: event, Data: data})
}

func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.done)
	})
}

func (s *Subscription) deliver(e Event) {
	select {
	case <-s.done:
	case s.events <- e:
	default:
		// subscribers reload full state, so a full queue already implies a refresh
		s.bus.logger.Debugw("Subscriber queue full, event dropped", "topic", s.topic, "event", e.Event)
	}
}

func (s *Subscription) run(handler Handler) {
	for {
		select {
		case <-s.done:
			return
		case e := <-s.events:
			select {
			case <-s.done:
				return
			default:
			}
			handler(e)
		}
	}
}
