package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// EventFreeTable tells a shop dashboard that a table type has a free table.
	EventFreeTable = "freeTable"
	// EventQueueNearby tells a customer their turn is close.
	EventQueueNearby = "queueNearby"
)

// CustomerChannel is the channel a customer's devices listen on.
func CustomerChannel(customerID string) string {
	return "customer-" + customerID
}

// Event is one message published on a channel.
type Event struct {
	Channel   string          `json:"channel"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewJSONEvent builds an Event with a JSON payload.
func NewJSONEvent(channel, eventType string, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{Channel: channel, Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// Hub is an in-process publish/subscribe hub keyed by channel.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]EventHandler
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[string]EventHandler)}
}

// Subscribe registers handler on channel and returns a function removing it.
func (h *Hub) Subscribe(channel string, handler EventHandler) func() {
	id := uuid.NewString()

	h.mu.Lock()
	if h.subscribers[channel] == nil {
		h.subscribers[channel] = make(map[string]EventHandler)
	}
	h.subscribers[channel][id] = handler
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subscribers[channel], id)
		if len(h.subscribers[channel]) == 0 {
			delete(h.subscribers, channel)
		}
	}
}

// Stream subscribes a buffered channel. Events are dropped while the buffer
// is full so a slow reader never blocks publishers.
func (h *Hub) Stream(channel string, buffer int) (<-chan *Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan *Event, buffer)
	var once sync.Once
	var closed bool
	var mu sync.Mutex

	unsubscribe := h.Subscribe(channel, func(event *Event) error {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return nil
		}
		select {
		case ch <- event:
		default:
		}
		return nil
	})

	return ch, func() {
		once.Do(func() {
			unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
}

// Subscribers returns the number of subscribers on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel])
}

// Dispatch delivers a ready event to the channel's subscribers.
func (h *Hub) Dispatch(event *Event) {
	h.mu.RLock()
	handlers := make([]EventHandler, 0, len(h.subscribers[event.Channel]))
	for _, handler := range h.subscribers[event.Channel] {
		handlers = append(handlers, handler)
	}
	h.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// Publish serializes payload and dispatches it on channel.
func (h *Hub) Publish(_ context.Context, channel, eventType string, payload any) error {
	if h == nil {
		return nil
	}
	event, err := NewJSONEvent(channel, eventType, payload)
	if err != nil {
		return err
	}
	h.Dispatch(event)
	return nil
}
