package engine

import (
	"fmt"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
)

// LocationKind names a card container.
type LocationKind string

const (
	LocHand      LocationKind = "hand"
	LocZone      LocationKind = "zone"
	LocDiscard   LocationKind = "discard"
	LocDeck      LocationKind = "deck"
	LocCommunity LocationKind = "community"
)

// Location addresses one container. PlayerID applies to hands, ZoneID to zones.
type Location struct {
	Kind     LocationKind `json:"kind"`
	PlayerID string       `json:"playerId,omitempty"`
	ZoneID   string       `json:"zoneId,omitempty"`
}

func (l Location) String() string {
	switch l.Kind {
	case LocHand:
		return "hand:" + l.PlayerID
	case LocZone:
		return "zone:" + l.ZoneID
	}
	return string(l.Kind)
}

// locate finds where a card currently lives.
func (e *Engine) locate(cardID string) (Location, bool) {
	for _, p := range e.state.Players {
		if p.HandIndex(cardID) >= 0 {
			return Location{Kind: LocHand, PlayerID: p.ID}, true
		}
	}
	for _, z := range e.state.Zones {
		if z.Index(cardID) >= 0 {
			return Location{Kind: LocZone, ZoneID: z.ID}, true
		}
	}
	if indexOf(e.state.Discard, cardID) >= 0 {
		return Location{Kind: LocDiscard}, true
	}
	if indexOf(e.state.Community, cardID) >= 0 {
		return Location{Kind: LocCommunity}, true
	}
	if e.state.Deck != nil {
		if indexOf(e.state.Deck.Cards(), cardID) >= 0 {
			return Location{Kind: LocDeck}, true
		}
	}
	return Location{}, false
}

// detach removes a card from wherever it is and voids its deferred effects.
func (e *Engine) detach(cardID string) (*cards.Card, Location, error) {
	from, ok := e.locate(cardID)
	if !ok {
		return nil, from, fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	var c *cards.Card
	switch from.Kind {
	case LocHand:
		p := e.state.Player(from.PlayerID)
		i := p.HandIndex(cardID)
		c = p.Hand[i]
		p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
	case LocZone:
		z := e.state.Zone(from.ZoneID)
		i := z.Index(cardID)
		c = z.Cards[i]
		z.Cards = append(z.Cards[:i], z.Cards[i+1:]...)
	case LocDiscard:
		i := indexOf(e.state.Discard, cardID)
		c = e.state.Discard[i]
		e.state.Discard = append(e.state.Discard[:i], e.state.Discard[i+1:]...)
	case LocCommunity:
		i := indexOf(e.state.Community, cardID)
		c = e.state.Community[i]
		e.state.Community = append(e.state.Community[:i], e.state.Community[i+1:]...)
	case LocDeck:
		c, _ = e.state.Deck.Remove(cardID)
	}
	e.forget(cardID)
	return c, from, nil
}

// place puts a detached card into a container.
func (e *Engine) place(c *cards.Card, to Location) error {
	switch to.Kind {
	case LocHand:
		p := e.state.Player(to.PlayerID)
		if p == nil {
			return fmt.Errorf("%w: %s", ErrPlayerNotFound, to.PlayerID)
		}
		c.FaceUp = false
		p.Hand = append(p.Hand, c)
	case LocZone:
		z := e.state.Zone(to.ZoneID)
		if z == nil {
			return fmt.Errorf("%w: %s", ErrZoneNotFound, to.ZoneID)
		}
		c.FaceUp = !z.FaceDown
		z.Cards = append(z.Cards, c)
	case LocDiscard:
		c.FaceUp = true
		e.state.Discard = append(e.state.Discard, c)
	case LocCommunity:
		c.FaceUp = true
		e.state.Community = append(e.state.Community, c)
	case LocDeck:
		c.FaceUp = false
		e.state.Deck.AddToBottom(c)
	default:
		return fmt.Errorf("unknown location %q", to.Kind)
	}
	return nil
}

// moveCard transfers ownership of one card. The destination is validated first
// so a failed move leaves the card where it was.
func (e *Engine) moveCard(cardID string, to Location) error {
	switch to.Kind {
	case LocHand:
		if e.state.Player(to.PlayerID) == nil {
			return fmt.Errorf("%w: %s", ErrPlayerNotFound, to.PlayerID)
		}
	case LocZone:
		if e.state.Zone(to.ZoneID) == nil {
			return fmt.Errorf("%w: %s", ErrZoneNotFound, to.ZoneID)
		}
	case LocDiscard, LocCommunity, LocDeck:
	default:
		return fmt.Errorf("unknown location %q", to.Kind)
	}
	c, from, err := e.detach(cardID)
	if err != nil {
		return err
	}
	if err := e.place(c, to); err != nil {
		return err
	}
	e.publish(Event{Type: EventCardMoved, CardID: cardID, From: from.String(), To: to.String()})
	return nil
}

// forget drops every pending reference to a card that just changed container.
func (e *Engine) forget(cardID string) {
	e.scheduler.Cancel(cardID)
	delete(e.peeked, cardID)
	for i, c := range e.flipped {
		if c.ID == cardID {
			e.flipped = append(e.flipped[:i], e.flipped[i+1:]...)
			break
		}
	}
}

func indexOf(list []*cards.Card, cardID string) int {
	for i, c := range list {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}
