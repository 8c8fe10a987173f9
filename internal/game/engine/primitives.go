package engine

import (
	"fmt"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
)

// The methods in this file are the host surface used by IR programs. Each one
// locks the engine, so they must not be called from event listeners.

// DrawToPlayer draws n cards into a hand and returns their ids.
func (e *Engine) DrawToPlayer(playerID string, n int) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.state.Player(playerID)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	if e.state.Deck == nil {
		return nil, ErrGameNotActive
	}
	ids := make([]string, 0, n)
	for _, c := range e.dealTo(p, n) {
		e.state.LastDrawn = c.Clone()
		e.state.LastDrawnBy = p.ID
		e.noteProgressive(c)
		e.publish(Event{Type: EventCardMoved, PlayerID: p.ID, CardID: c.ID, From: string(LocDeck), To: "hand:" + p.ID})
		ids = append(ids, c.ID)
	}
	e.checkBust(p)
	return ids, nil
}

// SelectCards returns up to n card ids from a container without moving them:
// the first cards of a hand, the top cards of a zone, discard pile or deck.
func (e *Engine) SelectCards(from Location, n int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	src := e.container(from)
	if n > len(src) {
		n = len(src)
	}
	if n <= 0 {
		return nil
	}
	ids := make([]string, 0, n)
	switch from.Kind {
	case LocHand:
		for _, c := range src[:n] {
			ids = append(ids, c.ID)
		}
	default:
		for i := len(src) - 1; i >= len(src)-n; i-- {
			ids = append(ids, src[i].ID)
		}
	}
	return ids
}

// MoveCardTo moves one card to a container.
func (e *Engine) MoveCardTo(cardID string, to Location) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moveCard(cardID, to)
}

// RevealCard turns a card face up wherever it is.
func (e *Engine) RevealCard(cardID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	loc, ok := e.locate(cardID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	for _, c := range e.container(loc) {
		if c.ID != cardID {
			continue
		}
		c.FaceUp = true
		e.publish(Event{Type: EventCardRevealed, PlayerID: loc.PlayerID, CardID: cardID})
		if p := e.state.Player(loc.PlayerID); p != nil {
			e.noteReveal(p, c)
		} else if cur := e.state.Current(); cur != nil {
			e.noteReveal(cur, c)
		}
	}
	return nil
}

// AdjustScore adds delta to a player's score.
func (e *Engine) AdjustScore(playerID string, delta int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.state.Player(playerID)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	p.Score += delta
	return nil
}

// SetFlag and Flag manage named session flags.
func (e *Engine) SetFlag(name string, value bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Flags[name] = value
}

func (e *Engine) Flag(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Flags[name]
}

// EliminatePlayer knocks a seat out and moves its hand to the discard pile.
func (e *Engine) EliminatePlayer(playerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.state.Player(playerID)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	wasCurrent := e.state.Current() == p
	e.eliminate(p)
	if e.checkWin() {
		return nil
	}
	if wasCurrent && e.state.Status == StatusActive {
		e.endTurn()
	}
	return nil
}

// EnsureZone creates a zone if it does not exist yet.
func (e *Engine) EnsureZone(zoneID, kind string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureZone(zoneID, kind)
}

// DeclareWinner ends the session with the given winner.
func (e *Engine) DeclareWinner(playerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if playerID != "" && e.state.Player(playerID) == nil {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	e.finish(playerID, "declared")
	return nil
}

// EndTurn passes the turn without an action.
func (e *Engine) EndTurn() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status == StatusActive {
		e.endTurn()
	}
}

// AdvancePhase moves the current player to the next phase, ending the turn
// after the last one.
func (e *Engine) AdvancePhase() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p := e.state.Current(); p != nil {
		e.advance(p, false)
	}
}

// PlayerIDs lists seat ids in seat order.
func (e *Engine) PlayerIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, len(e.state.Players))
	for i, p := range e.state.Players {
		ids[i] = p.ID
	}
	return ids
}

func (e *Engine) CurrentPlayerID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p := e.state.Current(); p != nil {
		return p.ID
	}
	return ""
}

func (e *Engine) HandCount(playerID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p := e.state.Player(playerID); p != nil {
		return len(p.Hand)
	}
	return 0
}

func (e *Engine) ZoneCount(zoneID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if z := e.state.Zone(zoneID); z != nil {
		return len(z.Cards)
	}
	return 0
}

// HasCard reports whether a hand holds a card matching the pattern.
func (e *Engine) HasCard(playerID, pattern string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.state.Player(playerID)
	return p != nil && handHas(p.Hand, pattern)
}

// InHand reports whether cardID is in the player's hand.
func (e *Engine) InHand(playerID, cardID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.state.Player(playerID)
	return p != nil && p.HandIndex(cardID) >= 0
}

// Eliminated reports whether the seat has been knocked out or folded.
func (e *Engine) Eliminated(playerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.state.Player(playerID)
	return p != nil && (p.Eliminated || p.Folded)
}

func (e *Engine) Score(playerID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p := e.state.Player(playerID); p != nil {
		return p.Score
	}
	return 0
}

func (e *Engine) PhaseName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Phase
}

func (e *Engine) Winner() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Winner
}

// container returns the card slice behind a location. Deck order is top last
// to match zones and the discard pile.
func (e *Engine) container(loc Location) []*cards.Card {
	switch loc.Kind {
	case LocHand:
		if p := e.state.Player(loc.PlayerID); p != nil {
			return p.Hand
		}
	case LocZone:
		if z := e.state.Zone(loc.ZoneID); z != nil {
			return z.Cards
		}
	case LocDiscard:
		return e.state.Discard
	case LocCommunity:
		return e.state.Community
	case LocDeck:
		if e.state.Deck != nil {
			return reversed(e.state.Deck.Cards())
		}
	}
	return nil
}

func reversed(in []*cards.Card) []*cards.Card {
	out := make([]*cards.Card, len(in))
	for i, c := range in {
		out[len(in)-1-i] = c
	}
	return out
}
