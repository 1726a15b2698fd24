package engine

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventTypeTrade           EventType = "Trade"
	EventTypeCancelled       EventType = "Cancelled"
	EventTypeOrderNotFound   EventType = "OrderNotFound"
	EventTypeMarketRemainder EventType = "MarketRemainder"
	EventTypeRejected        EventType = "Rejected"
)

// Event is a tagged value carried to every subscribed sink. Data holds the
// typed payload for the event type (*Trade for EventTypeTrade, the
// matching *Event struct below for the rest).
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// CancelledEvent confirms removal of a resting order.
type CancelledEvent struct {
	OrderID string
}

// OrderNotFoundEvent reports a cancel for an id that is not resting.
// It is informational; the operation itself is an idempotent no-op.
type OrderNotFoundEvent struct {
	OrderID string
}

// MarketRemainderEvent reports the unfilled tail of a market order after
// the opposite side ran dry. The remainder is discarded, never retried.
type MarketRemainderEvent struct {
	OrderID          string
	UnfilledQuantity decimal.Decimal
}

// RejectedEvent reports a command refused before it touched the book:
// validation failures and the unsupported modify operation.
type RejectedEvent struct {
	OrderID string
	Reason  string
}

type EventListener func(event Event)

// EventBus fans events out to subscribed listeners. Delivery is
// synchronous and in publish order: downstream consumers (ledgers, market
// data feeds) rely on seeing trades in execution order, so listeners run
// inline on the publishing goroutine rather than on one goroutine each.
type EventBus struct {
	listeners    map[EventType][]EventListener
	allListeners []EventListener
	mu           sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		listeners: make(map[EventType][]EventListener),
	}
}

func (eb *EventBus) Subscribe(eventType EventType, listener EventListener) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.listeners[eventType] = append(eb.listeners[eventType], listener)
}

// SubscribeAll registers a listener for every event type.
func (eb *EventBus) SubscribeAll(listener EventListener) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allListeners = append(eb.allListeners, listener)
}

func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	listeners := eb.listeners[event.Type]
	all := eb.allListeners
	eb.mu.RUnlock()

	for _, listener := range all {
		listener(event)
	}
	for _, listener := range listeners {
		listener(event)
	}
}

// Unsubscribe removes all listeners for a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	delete(eb.listeners, eventType)
}

// GetListenerCount returns the number of listeners for an event type
func (eb *EventBus) GetListenerCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.listeners[eventType])
}
