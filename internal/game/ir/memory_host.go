package ir

import (
	"fmt"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
)

// MemoryPlayer is one seat of a MemoryHost.
type MemoryPlayer struct {
	ID         string
	Hand       []*cards.Card
	Score      int
	Eliminated bool
}

// MemoryHost is a self-contained table for dry runs of IR programs. Deck index
// 0 is the top; other piles keep their top card last.
type MemoryHost struct {
	Players   []*MemoryPlayer
	Deck      []*cards.Card
	Discard   []*cards.Card
	Community []*cards.Card
	Zones     map[string][]*cards.Card
	ZoneKinds map[string]string
	Flags     map[string]bool
	Phases    []string

	phase   int
	current int
	winner  string
}

// NewMemoryHost seats the given players in order with the first to act.
func NewMemoryHost(playerIDs []string, deck []*cards.Card, phases ...string) *MemoryHost {
	h := &MemoryHost{
		Deck:      deck,
		Zones:     make(map[string][]*cards.Card),
		ZoneKinds: make(map[string]string),
		Flags:     make(map[string]bool),
		Phases:    phases,
	}
	for _, id := range playerIDs {
		h.Players = append(h.Players, &MemoryPlayer{ID: id})
	}
	return h
}

var (
	_ Host     = (*MemoryHost)(nil)
	_ TurnHost = (*MemoryHost)(nil)
	_ Finisher = (*MemoryHost)(nil)
)

func (h *MemoryHost) player(id string) *MemoryPlayer {
	for _, p := range h.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (h *MemoryHost) CurrentPlayerID() string {
	if h.current < 0 || h.current >= len(h.Players) {
		return ""
	}
	return h.Players[h.current].ID
}

func (h *MemoryHost) PlayerIDs() []string {
	ids := make([]string, len(h.Players))
	for i, p := range h.Players {
		ids[i] = p.ID
	}
	return ids
}

func (h *MemoryHost) HandCount(playerID string) int {
	if p := h.player(playerID); p != nil {
		return len(p.Hand)
	}
	return 0
}

func (h *MemoryHost) ZoneCount(zoneID string) int {
	return len(h.Zones[zoneID])
}

func (h *MemoryHost) InHand(playerID, cardID string) bool {
	p := h.player(playerID)
	if p == nil {
		return false
	}
	for _, c := range p.Hand {
		if c.ID == cardID {
			return true
		}
	}
	return false
}

func (h *MemoryHost) HasCard(playerID, pattern string) bool {
	p := h.player(playerID)
	if p == nil {
		return false
	}
	for _, c := range p.Hand {
		if c.Matches(pattern) {
			return true
		}
	}
	return false
}

func (h *MemoryHost) Score(playerID string) int {
	if p := h.player(playerID); p != nil {
		return p.Score
	}
	return 0
}

func (h *MemoryHost) Eliminated(playerID string) bool {
	p := h.player(playerID)
	return p != nil && p.Eliminated
}

func (h *MemoryHost) Flag(name string) bool { return h.Flags[name] }

func (h *MemoryHost) SetFlag(name string, value bool) { h.Flags[name] = value }

func (h *MemoryHost) PhaseName() string {
	if h.phase < len(h.Phases) {
		return h.Phases[h.phase]
	}
	return ""
}

func (h *MemoryHost) Winner() string { return h.winner }

func (h *MemoryHost) DrawToPlayer(playerID string, n int) ([]string, error) {
	p := h.player(playerID)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", engine.ErrPlayerNotFound, playerID)
	}
	if n > len(h.Deck) {
		n = len(h.Deck)
	}
	drawn := h.Deck[:n]
	h.Deck = h.Deck[n:]
	ids := make([]string, n)
	for i, c := range drawn {
		p.Hand = append(p.Hand, c)
		ids[i] = c.ID
	}
	return ids, nil
}

func (h *MemoryHost) SelectCards(from engine.Location, n int) []string {
	pile := h.pile(from)
	if pile == nil {
		return nil
	}
	src := *pile
	if n > len(src) {
		n = len(src)
	}
	ids := make([]string, 0, n)
	switch from.Kind {
	case engine.LocHand, engine.LocDeck:
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

func (h *MemoryHost) MoveCardTo(cardID string, to engine.Location) error {
	if to.Kind == engine.LocZone {
		if _, ok := h.Zones[to.ZoneID]; !ok {
			return fmt.Errorf("%w: %s", engine.ErrZoneNotFound, to.ZoneID)
		}
		c, err := h.detach(cardID)
		if err != nil {
			return err
		}
		h.Zones[to.ZoneID] = append(h.Zones[to.ZoneID], c)
		return nil
	}
	dst := h.pile(to)
	if dst == nil {
		return fmt.Errorf("%w: %s", ErrUnknownLocation, to)
	}
	c, err := h.detach(cardID)
	if err != nil {
		return err
	}
	if to.Kind == engine.LocDeck {
		*dst = append([]*cards.Card{c}, *dst...)
		return nil
	}
	*dst = append(*dst, c)
	return nil
}

func (h *MemoryHost) RevealCard(cardID string) error {
	for _, pile := range h.piles() {
		for _, c := range *pile {
			if c.ID == cardID {
				c.FaceUp = true
				return nil
			}
		}
	}
	for _, z := range h.Zones {
		for _, c := range z {
			if c.ID == cardID {
				c.FaceUp = true
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", engine.ErrCardNotFound, cardID)
}

func (h *MemoryHost) AdjustScore(playerID string, delta int) error {
	p := h.player(playerID)
	if p == nil {
		return fmt.Errorf("%w: %s", engine.ErrPlayerNotFound, playerID)
	}
	p.Score += delta
	return nil
}

func (h *MemoryHost) EliminatePlayer(playerID string) error {
	p := h.player(playerID)
	if p == nil {
		return fmt.Errorf("%w: %s", engine.ErrPlayerNotFound, playerID)
	}
	h.Discard = append(h.Discard, p.Hand...)
	p.Hand = nil
	p.Eliminated = true
	return nil
}

func (h *MemoryHost) EnsureZone(zoneID, kind string) {
	if _, ok := h.Zones[zoneID]; !ok {
		h.Zones[zoneID] = []*cards.Card{}
		h.ZoneKinds[zoneID] = kind
	}
}

// EndTurn passes to the next seat that is not eliminated and resets the phase.
func (h *MemoryHost) EndTurn() {
	h.phase = 0
	for i := 1; i <= len(h.Players); i++ {
		next := (h.current + i) % len(h.Players)
		if !h.Players[next].Eliminated {
			h.current = next
			return
		}
	}
}

// AdvancePhase moves to the next phase, ending the turn after the last.
func (h *MemoryHost) AdvancePhase() {
	h.phase++
	if h.phase >= len(h.Phases) {
		h.EndTurn()
	}
}

func (h *MemoryHost) DeclareWinner(playerID string) error {
	if playerID != "" && h.player(playerID) == nil {
		return fmt.Errorf("%w: %s", engine.ErrPlayerNotFound, playerID)
	}
	h.winner = playerID
	return nil
}

// pile returns the container behind loc. Zone results are copies of the slice
// header and must only be read.
func (h *MemoryHost) pile(loc engine.Location) *[]*cards.Card {
	switch loc.Kind {
	case engine.LocHand:
		if p := h.player(loc.PlayerID); p != nil {
			return &p.Hand
		}
	case engine.LocDeck:
		return &h.Deck
	case engine.LocDiscard:
		return &h.Discard
	case engine.LocCommunity:
		return &h.Community
	case engine.LocZone:
		if z, ok := h.Zones[loc.ZoneID]; ok {
			return &z
		}
	}
	return nil
}

func (h *MemoryHost) piles() []*[]*cards.Card {
	out := []*[]*cards.Card{&h.Deck, &h.Discard, &h.Community}
	for _, p := range h.Players {
		out = append(out, &p.Hand)
	}
	return out
}

func (h *MemoryHost) detach(cardID string) (*cards.Card, error) {
	for _, pile := range h.piles() {
		if c := take(pile, cardID); c != nil {
			return c, nil
		}
	}
	for id, z := range h.Zones {
		if c := take(&z, cardID); c != nil {
			h.Zones[id] = z
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", engine.ErrCardNotFound, cardID)
}

func take(pile *[]*cards.Card, cardID string) *cards.Card {
	for i, c := range *pile {
		if c.ID == cardID {
			*pile = append((*pile)[:i], (*pile)[i+1:]...)
			return c
		}
	}
	return nil
}
