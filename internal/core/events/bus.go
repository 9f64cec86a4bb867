// Package events is a synchronous in-process pub/sub bus for scene, editor and
// host notifications.
package events

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type (
	// Handler is invoked per delivered event. Publish joins handler errors.
	Handler func(Event) error
	// Filter drops an event before delivery when it returns false.
	Filter func(Event) bool
)

// Observer is told about every publish once at least one is registered.
type Observer interface {
	OnPublish(eventType string, event Event)
	OnDelivered(eventType string, handlers int, err error, duration time.Duration)
}

// Metrics are collected only while observers are registered.
type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	DroppedByFilters  uint64
	SubscribersActive uint64
}

// Subscription is a registered handler bound to an event type.
type Subscription struct {
	id        string
	eventType string
	handler   Handler
	active    bool
	cancel    func()
}

func (s *Subscription) ID() string        { return s.id }
func (s *Subscription) EventType() string { return s.eventType }
func (s *Subscription) IsActive() bool    { return s.active }

// Cancel removes the handler from its bus. Repeated calls are safe.
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
	s.active = false
}

// Bus fans events out by type. Delivery happens in the publisher's goroutine.
type Bus struct {
	mu        sync.RWMutex
	handlers  map[string]map[string]*Subscription
	observers map[Observer]struct{}
	metrics   Metrics
}

func NewBus() *Bus {
	return &Bus{
		handlers:  make(map[string]map[string]*Subscription),
		observers: make(map[Observer]struct{}),
	}
}

func (b *Bus) Subscribe(eventType string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]*Subscription)
	}
	id := uuid.NewString()
	s := &Subscription{id: id, eventType: eventType, handler: handler, active: true}
	s.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventType], id)
	}
	b.handlers[eventType][id] = s
	return s
}

// Unsubscribe cancels s. A nil subscription is ignored.
func (b *Bus) Unsubscribe(s *Subscription) {
	if s != nil {
		s.Cancel()
	}
}

func (b *Bus) Publish(e Event) error {
	return b.deliver(e)
}

// PublishWithFilters drops e silently if any filter rejects it.
func (b *Bus) PublishWithFilters(e Event, filters ...Filter) error {
	for _, f := range filters {
		if !f(e) {
			b.mu.Lock()
			if len(b.observers) > 0 {
				b.metrics.DroppedByFilters++
			}
			b.mu.Unlock()
			return nil
		}
	}
	return b.deliver(e)
}

func (b *Bus) PublishBatch(events ...Event) error {
	var all error
	for _, e := range events {
		if err := b.deliver(e); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}

func (b *Bus) AddObserver(o Observer) {
	b.mu.Lock()
	b.observers[o] = struct{}{}
	b.mu.Unlock()
}

func (b *Bus) RemoveObserver(o Observer) {
	b.mu.Lock()
	delete(b.observers, o)
	b.mu.Unlock()
}

func (b *Bus) Metrics() Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

func (b *Bus) deliver(e Event) error {
	start := time.Now()
	typ := e.Type()

	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.handlers[typ]))
	for _, s := range b.handlers[typ] {
		subs = append(subs, s)
	}
	observers := make([]Observer, 0, len(b.observers))
	for o := range b.observers {
		observers = append(observers, o)
	}
	b.mu.RUnlock()

	for _, o := range observers {
		o.OnPublish(typ, e)
	}

	var all error
	for _, s := range subs {
		if !s.active {
			continue
		}
		if err := s.handler(e); err != nil {
			all = errors.Join(all, err)
		}
	}

	if len(observers) == 0 {
		return all
	}
	dur := time.Since(start)
	for _, o := range observers {
		o.OnDelivered(typ, len(subs), all, dur)
	}

	b.mu.Lock()
	b.metrics.Published++
	b.metrics.DeliveredHandlers += uint64(len(subs))
	if all != nil {
		b.metrics.Errors++
	}
	var active uint64
	for _, m := range b.handlers {
		active += uint64(len(m))
	}
	b.metrics.SubscribersActive = active
	b.mu.Unlock()
	return all
}
