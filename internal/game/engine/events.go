package engine

import (
	"sync"
	"time"
)

// EventType indicates the category of an engine event.
type EventType string

const (
	EventActionExecuted EventType = "ACTION_EXECUTED"
	EventPhaseChanged   EventType = "PHASE_CHANGED"
	EventTurnStarted    EventType = "TURN_STARTED"
	EventCardMoved      EventType = "CARD_MOVED"
	EventCardRevealed   EventType = "CARD_REVEALED"
	EventCardHidden     EventType = "CARD_HIDDEN"
	EventDeckReshuffled EventType = "DECK_RESHUFFLED"
	EventEmergencyCard  EventType = "EMERGENCY_CARD"
	EventPlayerOut      EventType = "PLAYER_OUT"
	EventGameFinished   EventType = "GAME_FINISHED"
)

// Event describes a state change other subsystems may react to.
type Event struct {
	Type      EventType
	SessionID string
	PlayerID  string
	CardID    string
	Action    string
	From      string
	To        string
	Phase     string
	Amount    int
	Timestamp time.Time
}

// Listener reacts to incoming events. Listeners run synchronously while the
// engine holds its lock and must not call back into the engine.
type Listener func(Event)

type subscription struct {
	handle int
	only   EventType
	fn     Listener
}

// EventBus delivers events to subscribers in subscription order. A
// subscription with an empty type filter sees every event.
type EventBus struct {
	mu   sync.RWMutex
	subs []subscription
	next int
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers fn for every event. It returns -1 for a nil listener.
func (bus *EventBus) Subscribe(fn Listener) int {
	return bus.SubscribeTyped("", fn)
}

// SubscribeTyped registers fn for events of one type.
func (bus *EventBus) SubscribeTyped(only EventType, fn Listener) int {
	if fn == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.next++
	bus.subs = append(bus.subs, subscription{handle: bus.next, only: only, fn: fn})
	return bus.next
}

// Unsubscribe drops the subscription behind handle. Unknown handles are ignored.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	kept := bus.subs[:0]
	for _, sub := range bus.subs {
		if sub.handle != handle {
			kept = append(kept, sub)
		}
	}
	bus.subs = kept
}

// Publish calls every matching listener. Listeners may subscribe or
// unsubscribe from inside a callback; the change applies to the next event.
func (bus *EventBus) Publish(evt Event) {
	bus.mu.RLock()
	subs := make([]subscription, len(bus.subs))
	copy(subs, bus.subs)
	bus.mu.RUnlock()

	for _, sub := range subs {
		if sub.only == "" || sub.only == evt.Type {
			sub.fn(evt)
		}
	}
}

func (e *Engine) publish(evt Event) {
	evt.SessionID = e.state.ID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	e.events.Publish(evt)
}
