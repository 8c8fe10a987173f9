package engine

import (
	"errors"
	"time"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
)

// Structural errors. Invalid player input is never reported through these; it
// comes back as an unsuccessful ActionResult.
var (
	ErrRosterFull         = errors.New("roster is full")
	ErrNotEnoughPlayers   = errors.New("not enough players")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrGameNotActive      = errors.New("game is not active")
	ErrCardNotFound       = errors.New("card not found")
	ErrZoneNotFound       = errors.New("zone not found")
)

// GameStatus is the lifecycle state of a session.
type GameStatus string

const (
	StatusWaiting  GameStatus = "waiting"
	StatusActive   GameStatus = "active"
	StatusPaused   GameStatus = "paused"
	StatusFinished GameStatus = "finished"
)

// PlayerKind distinguishes who drives a seat.
type PlayerKind string

const (
	KindHuman  PlayerKind = "human"
	KindBot    PlayerKind = "bot"
	KindDealer PlayerKind = "dealer"
)

// DealerThresholds are the hit/stand limits of a dealer seat.
type DealerThresholds struct {
	HitUntil int `json:"hitUntil"`
	StandOn  int `json:"standOn"`
}

// Player is one seat. IsActive marks the seat whose turn it is; the out flags
// (Eliminated, Folded, Stood, Busted) remove a seat from rotation.
type Player struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Kind        PlayerKind        `json:"kind"`
	Hand        []*cards.Card     `json:"hand"`
	IsActive    bool              `json:"isActive"`
	Score       int               `json:"score"`
	Position    int               `json:"position"`
	Eliminated  bool              `json:"eliminated,omitempty"`
	Folded      bool              `json:"folded,omitempty"`
	Stood       bool              `json:"stood,omitempty"`
	Busted      bool              `json:"busted,omitempty"`
	CardsPlayed int               `json:"cardsPlayed"`
	Dealer      *DealerThresholds `json:"dealer,omitempty"`
	Chips       int               `json:"chips,omitempty"`
	Bet         int               `json:"bet,omitempty"`
}

// Out reports whether the seat no longer takes turns.
func (p *Player) Out() bool {
	return p.Eliminated || p.Folded || p.Stood || p.Busted
}

// IsHuman reports whether a person drives the seat.
func (p *Player) IsHuman() bool {
	return p.Kind == KindHuman
}

// HandIndex returns the position of a card in the hand, or -1.
func (p *Player) HandIndex(cardID string) int {
	for i, c := range p.Hand {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

func (p *Player) clone() *Player {
	cp := *p
	cp.Hand = cloneCards(p.Hand)
	if p.Dealer != nil {
		d := *p.Dealer
		cp.Dealer = &d
	}
	return &cp
}

// Zone is a named table region.
type Zone struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Cards        []*cards.Card `json:"cards"`
	FaceDown     bool          `json:"faceDown"`
	AcceptsDrops bool          `json:"acceptsDrops"`
	AcceptRule   string        `json:"acceptRule,omitempty"`
}

// Index returns the position of a card in the zone, or -1.
func (z *Zone) Index(cardID string) int {
	for i, c := range z.Cards {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

// Top returns the most recently placed card, or nil.
func (z *Zone) Top() *cards.Card {
	if len(z.Cards) == 0 {
		return nil
	}
	return z.Cards[len(z.Cards)-1]
}

func (z *Zone) clone() *Zone {
	cp := *z
	cp.Cards = cloneCards(z.Cards)
	return &cp
}

// ActionResult is returned for every action attempt.
type ActionResult struct {
	PlayerID  string    `json:"playerId"`
	Action    string    `json:"action"`
	Cards     []string  `json:"cards,omitempty"`
	Target    string    `json:"target,omitempty"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// GameState is the mutable session owned by one Engine.
type GameState struct {
	ID             string          `json:"id"`
	Players        []*Player       `json:"players"`
	Deck           *cards.Deck     `json:"-"`
	Discard        []*cards.Card   `json:"discard"`
	Community      []*cards.Card   `json:"community"`
	Zones          []*Zone         `json:"zones"`
	CurrentPlayer  int             `json:"currentPlayer"`
	Phase          string          `json:"phase"`
	PhaseIndex     int             `json:"phaseIndex"`
	Turn           int             `json:"turn"`
	Round          int             `json:"round"`
	Status         GameStatus      `json:"status"`
	Winner         string          `json:"winner,omitempty"`
	LastAction     *ActionResult   `json:"lastAction,omitempty"`
	LastDrawn      *cards.Card     `json:"lastDrawn,omitempty"`
	LastDrawnBy    string          `json:"lastDrawnBy,omitempty"`
	Pot            int             `json:"pot,omitempty"`
	CurrentBet     int             `json:"currentBet,omitempty"`
	Flags          map[string]bool `json:"flags,omitempty"`
	EmergencyCards int             `json:"emergencyCards"`
}

// Player returns the seat with the given id, or nil.
func (s *GameState) Player(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Current returns the seat whose turn it is, or nil before the game starts.
func (s *GameState) Current() *Player {
	if s.CurrentPlayer < 0 || s.CurrentPlayer >= len(s.Players) {
		return nil
	}
	return s.Players[s.CurrentPlayer]
}

// Zone returns the zone with the given id, or nil.
func (s *GameState) Zone(id string) *Zone {
	for _, z := range s.Zones {
		if z.ID == id {
			return z
		}
	}
	return nil
}

// DeckCount returns the number of cards left in the deck.
func (s *GameState) DeckCount() int {
	if s.Deck == nil {
		return 0
	}
	return s.Deck.Len()
}

// TableCard finds a card in any zone.
func (s *GameState) TableCard(cardID string) (*Zone, *cards.Card) {
	for _, z := range s.Zones {
		if i := z.Index(cardID); i >= 0 {
			return z, z.Cards[i]
		}
	}
	return nil, nil
}

// CardCount returns the total number of cards across deck, discard, community,
// hands and zones.
func CardCount(s *GameState) int {
	total := s.DeckCount() + len(s.Discard) + len(s.Community)
	for _, p := range s.Players {
		total += len(p.Hand)
	}
	for _, z := range s.Zones {
		total += len(z.Cards)
	}
	return total
}

// Clone deep-copies the state.
func (s *GameState) Clone() *GameState {
	cp := *s
	cp.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		cp.Players[i] = p.clone()
	}
	if s.Deck != nil {
		cp.Deck = s.Deck.Clone()
	}
	cp.Discard = cloneCards(s.Discard)
	cp.Community = cloneCards(s.Community)
	cp.Zones = make([]*Zone, len(s.Zones))
	for i, z := range s.Zones {
		cp.Zones[i] = z.clone()
	}
	if s.LastAction != nil {
		la := *s.LastAction
		la.Cards = append([]string(nil), s.LastAction.Cards...)
		cp.LastAction = &la
	}
	cp.LastDrawn = s.LastDrawn.Clone()
	cp.Flags = make(map[string]bool, len(s.Flags))
	for k, v := range s.Flags {
		cp.Flags[k] = v
	}
	return &cp
}

func cloneCards(in []*cards.Card) []*cards.Card {
	if in == nil {
		return nil
	}
	out := make([]*cards.Card, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
