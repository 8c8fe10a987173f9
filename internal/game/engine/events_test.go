package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

func TestEventBusFiltersByType(t *testing.T) {
	bus := NewEventBus()

	var moved, finished int
	movedHandle := bus.SubscribeTyped(EventCardMoved, func(Event) { moved++ })
	bus.SubscribeTyped(EventGameFinished, func(Event) { finished++ })

	bus.Publish(Event{Type: EventCardMoved, CardID: "A-spades"})
	bus.Publish(Event{Type: EventTurnStarted})
	assert.Equal(t, 1, moved)
	assert.Zero(t, finished)

	bus.Unsubscribe(movedHandle)
	bus.Publish(Event{Type: EventCardMoved})
	bus.Publish(Event{Type: EventGameFinished})
	assert.Equal(t, 1, moved)
	assert.Equal(t, 1, finished)

	bus.Unsubscribe(movedHandle)
	bus.Unsubscribe(999)
}

func TestEventBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewEventBus()

	var order []string
	bus.Subscribe(func(Event) { order = append(order, "all-1") })
	bus.SubscribeTyped(EventPhaseChanged, func(Event) { order = append(order, "phase") })
	bus.Subscribe(func(Event) { order = append(order, "all-2") })

	bus.Publish(Event{Type: EventPhaseChanged})
	assert.Equal(t, []string{"all-1", "phase", "all-2"}, order)
}

func TestEventBusSubscribeDuringPublish(t *testing.T) {
	bus := NewEventBus()

	late := 0
	bus.Subscribe(func(Event) {
		bus.Subscribe(func(Event) { late++ })
	})

	bus.Publish(Event{Type: EventCardMoved})
	assert.Zero(t, late)
	bus.Publish(Event{Type: EventCardMoved})
	assert.Equal(t, 1, late)
}

func TestEventBusNilListener(t *testing.T) {
	bus := NewEventBus()
	assert.Equal(t, -1, bus.Subscribe(nil))
	assert.Equal(t, -1, bus.SubscribeTyped(EventCardMoved, nil))
}

func TestEngineStampsEvents(t *testing.T) {
	rules, err := schema.Template("crazy-eights")
	require.NoError(t, err)
	e := New(rules, zaptest.NewLogger(t), Options{SessionID: "evt", Seed: 9})

	var got []Event
	e.Events().Subscribe(func(evt Event) { got = append(got, evt) })

	_, err = e.AddPlayer("Ada", KindHuman)
	require.NoError(t, err)
	_, err = e.AddPlayer("Bot", KindBot)
	require.NoError(t, err)
	require.NoError(t, e.StartGame())

	res, err := e.ExecuteAction(e.CurrentPlayerID(), ActionDraw, nil, "")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	require.NotEmpty(t, got)
	types := map[EventType]bool{}
	for _, evt := range got {
		assert.Equal(t, "evt", evt.SessionID)
		assert.False(t, evt.Timestamp.IsZero())
		types[evt.Type] = true
	}
	assert.True(t, types[EventActionExecuted])
}
