package ir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
)

// State is the read side predicates are evaluated against.
type State interface {
	CurrentPlayerID() string
	PlayerIDs() []string
	HandCount(playerID string) int
	ZoneCount(zoneID string) int
	HasCard(playerID, pattern string) bool
	InHand(playerID, cardID string) bool
	Score(playerID string) int
	Eliminated(playerID string) bool
	Flag(name string) bool
	PhaseName() string
	Winner() string
}

// Host is a State that effects can mutate. Every mutation goes through these
// operations.
type Host interface {
	State
	DrawToPlayer(playerID string, n int) ([]string, error)
	SelectCards(from engine.Location, n int) []string
	MoveCardTo(cardID string, to engine.Location) error
	RevealCard(cardID string) error
	AdjustScore(playerID string, delta int) error
	SetFlag(name string, value bool)
	EliminatePlayer(playerID string) error
	EnsureZone(zoneID, kind string)
}

// TurnHost is implemented by hosts that own turn order.
type TurnHost interface {
	EndTurn()
	AdvancePhase()
}

// Finisher is implemented by hosts that can end the game.
type Finisher interface {
	DeclareWinner(playerID string) error
}

var (
	_ Host     = (*engine.Engine)(nil)
	_ TurnHost = (*engine.Engine)(nil)
	_ Finisher = (*engine.Engine)(nil)
)

// ErrUnknownLocation is returned for source or destination strings that name
// no container.
var ErrUnknownLocation = errors.New("unknown location")

// ParseLocation resolves a location string for the given subject player.
func ParseLocation(spec, subject string) (engine.Location, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == SourceHand || spec == "":
		return engine.Location{Kind: engine.LocHand, PlayerID: subject}, nil
	case strings.HasPrefix(spec, "hand:"):
		return engine.Location{Kind: engine.LocHand, PlayerID: strings.TrimPrefix(spec, "hand:")}, nil
	case spec == SourceDeck:
		return engine.Location{Kind: engine.LocDeck}, nil
	case spec == SourceDiscard:
		return engine.Location{Kind: engine.LocDiscard}, nil
	case spec == string(engine.LocCommunity):
		return engine.Location{Kind: engine.LocCommunity}, nil
	case strings.HasPrefix(spec, "zone:") && len(spec) > len("zone:"):
		return engine.Location{Kind: engine.LocZone, ZoneID: strings.TrimPrefix(spec, "zone:")}, nil
	}
	return engine.Location{}, fmt.Errorf("%w: %q", ErrUnknownLocation, spec)
}
