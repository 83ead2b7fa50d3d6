package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
	EventSlotBlocked      = "slot_blocked"
	EventSlotUnblocked    = "slot_unblocked"

	// AllEvents subscribes a handler to every event type.
	AllEvents = "*"
)

// BookingEventPayload describes the booking snapshot for event consumers.
type BookingEventPayload struct {
	Date         string    `json:"date"`
	BatchID      string    `json:"batch_id,omitempty"`
	BookingIDs   []string  `json:"booking_ids"`
	Slots        []string  `json:"slots"`
	Sport        string    `json:"sport"`
	Ground       string    `json:"ground"`
	CustomerName string    `json:"customer_name"`
	Version      int64     `json:"version"`
	At           time.Time `json:"at"`
}

type BlockEventPayload struct {
	Date    string    `json:"date"`
	Slot    string    `json:"slot"`
	Blocked bool      `json:"blocked"`
	Version int64     `json:"version"`
	At      time.Time `json:"at"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Date extracts the ledger date every payload carries, "" when absent.
func (e *Event) Date() string {
	var probe struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(e.Payload, &probe); err != nil {
		return ""
	}
	return probe.Date
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

type subscription struct {
	id      uint64
	handler EventHandler
}

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]subscription
	nextID      uint64
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]subscription)}
}

// Subscribe registers a handler for a given event type (or AllEvents) and
// returns a function removing it.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[eventType]
		for i, s := range subs {
			if s.id == id {
				b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish notifies subscribers of the event type. Every handler runs; only the
// first handler error is returned.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subscribers[event.Type]...)
	subs = append(subs, b.subscribers[AllEvents]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	var first error
	for _, s := range subs {
		// Handlers run synchronously; caller decides concurrency model.
		if err := s.handler(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{ID: uuid.NewString(), Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
