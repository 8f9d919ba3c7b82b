// Package events is the gateway's event fan-out: an in-process bus with
// optional Redis publish for multi-pod deployments and a WebSocket
// stream for dashboards.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the trust engine.
const (
	TypeTrustUpdated      = "trust.updated"
	TypeReputationFlushed = "reputation.flushed"
	TypeBudgetReset       = "budget.reset"
	TypeFeedbackReceived  = "feedback.received"
)

// Emitter is the interface core components publish through. Both the
// in-memory Bus and the Redis-backed bus satisfy it; components that
// tolerate a nil emitter must check before calling.
type Emitter interface {
	Emit(eventType, subject string, data map[string]interface{})
}

// Event is the envelope for all gateway events.
type Event struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"`
	Subject string                 `json:"subject,omitempty"`
	Time    time.Time              `json:"time"`
	Data    map[string]interface{} `json:"data"`
}

// NewEvent creates an event with a fresh ID.
func NewEvent(eventType, subject string, data map[string]interface{}) *Event {
	return &Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		Subject: subject,
		Time:    time.Now(),
		Data:    data,
	}
}

// JSON serializes the event.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// Bus is an in-process pub/sub event bus. Slow subscribers drop events
// rather than blocking publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *Event // eventType -> channels
	allSubs     []chan *Event
	bufferSize  int
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan *Event),
		bufferSize:  100,
	}
}

// Subscribe returns a channel receiving events of the given types, or
// all events when no types are passed.
func (b *Bus) Subscribe(eventTypes ...string) chan *Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *Event, b.bufferSize)
	if len(eventTypes) == 0 {
		b.allSubs = append(b.allSubs, ch)
	} else {
		for _, et := range eventTypes {
			b.subscribers[et] = append(b.subscribers[et], ch)
		}
	}
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (b *Bus) Unsubscribe(ch chan *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for et, subs := range b.subscribers {
		b.subscribers[et] = remove(subs, ch)
	}
	b.allSubs = remove(b.allSubs, ch)
	close(ch)
}

func remove(subs []chan *Event, ch chan *Event) []chan *Event {
	filtered := subs[:0]
	for _, s := range subs {
		if s != ch {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// Publish delivers an event to all matching subscribers.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[event.Type] {
		select {
		case ch <- event:
		default: // channel full, drop
		}
	}
	for _, ch := range b.allSubs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Emit creates and publishes an event.
func (b *Bus) Emit(eventType, subject string, data map[string]interface{}) {
	b.Publish(NewEvent(eventType, subject, data))
}
