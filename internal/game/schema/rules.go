// Package schema defines the declarative game document interpreted by the engine,
// along with its defaulting rules, decoders, built-in templates and the archetype
// classifier.
package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Win condition types understood by the engine.
const (
	WinFirstToEmpty  = "first_to_empty"
	WinHighestScore  = "highest_score"
	WinLowestScore   = "lowest_score"
	WinSpecificCards = "specific_cards"
	WinCustom        = "custom"
	WinRevealCard    = "reveal_card"
)

// Zone types accepted in a table layout.
const (
	ZonePile     = "pile"
	ZoneSequence = "sequence"
	ZoneGrid     = "grid"
	ZoneDrop     = "drop_zone"
	ZoneDeck     = "deck"
	ZoneDiscard  = "discard"
	ZoneCustom   = "custom"
)

// GameRules is a declarative card game. Documents come from templates or from an
// external generator and may be incomplete; call Normalize before use.
type GameRules struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	Description   string         `json:"description" yaml:"description"`
	Players       PlayerRules    `json:"players" yaml:"players"`
	Setup         SetupRules     `json:"setup" yaml:"setup"`
	Objective     Objective      `json:"objective" yaml:"objective"`
	TurnStructure TurnStructure  `json:"turnStructure" yaml:"turnStructure"`
	Actions       []string       `json:"actions" yaml:"actions"`
	WinConditions []WinCondition `json:"winConditions" yaml:"winConditions"`
	SpecialRules  []string       `json:"specialRules,omitempty" yaml:"specialRules,omitempty"`
}

type PlayerRules struct {
	Min     int           `json:"min" yaml:"min"`
	Max     int           `json:"max" yaml:"max"`
	Dealer  *DealerRules  `json:"dealer,omitempty" yaml:"dealer,omitempty"`
	Betting *BettingRules `json:"betting,omitempty" yaml:"betting,omitempty"`
}

// DealerRules configures an automatic house player.
type DealerRules struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	HitUntil int    `json:"hitUntil,omitempty" yaml:"hitUntil,omitempty"`
	StandOn  int    `json:"standOn,omitempty" yaml:"standOn,omitempty"`
}

type BettingRules struct {
	Enabled       bool `json:"enabled" yaml:"enabled"`
	StartingChips int  `json:"startingChips,omitempty" yaml:"startingChips,omitempty"`
	MinBet        int  `json:"minBet,omitempty" yaml:"minBet,omitempty"`
	MaxBet        int  `json:"maxBet,omitempty" yaml:"maxBet,omitempty"`
}

// SetupRules covers dealing and table preparation. The fields after TableLayout
// are structured directives written by the enrichment pipeline.
type SetupRules struct {
	CardsPerPlayer         int          `json:"cardsPerPlayer" yaml:"cardsPerPlayer"`
	CardsPerPlayerPosition []int        `json:"cardsPerPlayerPosition,omitempty" yaml:"cardsPerPlayerPosition,omitempty"`
	DeckSize               int          `json:"deckSize" yaml:"deckSize"`
	DeckCount              int          `json:"deckCount" yaml:"deckCount"`
	IncludeJokers          bool         `json:"includeJokers,omitempty" yaml:"includeJokers,omitempty"`
	KeepDrawnCard          *bool        `json:"keepDrawnCard,omitempty" yaml:"keepDrawnCard,omitempty"`
	HandScoring            string       `json:"handScoring,omitempty" yaml:"handScoring,omitempty"`
	TableLayout            *TableLayout `json:"tableLayout,omitempty" yaml:"tableLayout,omitempty"`

	RandomHandRange    []int               `json:"randomHandRange,omitempty" yaml:"randomHandRange,omitempty"`
	ProgressiveDealing *ProgressiveDealing `json:"progressiveDealing,omitempty" yaml:"progressiveDealing,omitempty"`
	SharedPile         bool                `json:"sharedPile,omitempty" yaml:"sharedPile,omitempty"`
	EliminationRank    string              `json:"eliminationRank,omitempty" yaml:"eliminationRank,omitempty"`
	TargetSum          int                 `json:"targetSum,omitempty" yaml:"targetSum,omitempty"`
	Sandbox            bool                `json:"sandbox,omitempty" yaml:"sandbox,omitempty"`
	BotOnly            bool                `json:"botOnly,omitempty" yaml:"botOnly,omitempty"`
	RevealWinCards     []string            `json:"revealWinCards,omitempty" yaml:"revealWinCards,omitempty"`
}

// KeepsDrawnCard reports whether drawn cards go to the hand (the default) rather
// than straight to the discard pile.
func (s SetupRules) KeepsDrawnCard() bool {
	return s.KeepDrawnCard == nil || *s.KeepDrawnCard
}

// ProgressiveDealing deals CardsPerRound to every player at the start of each
// round until a card of TargetRank appears.
type ProgressiveDealing struct {
	CardsPerRound int    `json:"cardsPerRound" yaml:"cardsPerRound"`
	TargetRank    string `json:"targetRank,omitempty" yaml:"targetRank,omitempty"`
}

type TableLayout struct {
	Type  string     `json:"type,omitempty" yaml:"type,omitempty"`
	Zones []ZoneSpec `json:"zones,omitempty" yaml:"zones,omitempty"`
}

// ZoneSpec declares a named table region.
type ZoneSpec struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	Type         string `json:"type,omitempty" yaml:"type,omitempty"`
	InitialCards int    `json:"initialCards,omitempty" yaml:"initialCards,omitempty"`
	FaceDown     bool   `json:"faceDown,omitempty" yaml:"faceDown,omitempty"`
	AcceptsDrops bool   `json:"acceptsDrops,omitempty" yaml:"acceptsDrops,omitempty"`
	AcceptRule   string `json:"acceptRule,omitempty" yaml:"acceptRule,omitempty"`
}

type Objective struct {
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type TurnStructure struct {
	Order  string  `json:"order,omitempty" yaml:"order,omitempty"`
	Phases []Phase `json:"phases" yaml:"phases"`
}

// Phase is one step of a turn and the actions allowed during it.
type Phase struct {
	Name        string   `json:"name" yaml:"name"`
	Actions     []string `json:"actions" yaml:"actions"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Allows reports whether the phase lists the action.
func (p Phase) Allows(action string) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// WinCondition is a declared way to win. Target is either a number or a list of
// card patterns depending on Type.
type WinCondition struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Target      any    `json:"target,omitempty" yaml:"target,omitempty"`
}

// TargetNumber interprets Target as a number. Decoders produce float64 (JSON)
// or int (YAML); numeric strings are accepted too.
func (w WinCondition) TargetNumber() (int, bool) {
	switch v := w.Target.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

// TargetPatterns interprets Target as a list of card patterns. A single string
// counts as a one-element list.
func (w WinCondition) TargetPatterns() ([]string, bool) {
	switch v := w.Target.(type) {
	case []string:
		return v, len(v) > 0
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return nil, false
			}
			out = append(out, s)
		}
		return out, len(out) > 0
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, false
		}
		return []string{v}, true
	}
	return nil, false
}

// HasAction reports whether the action name is declared.
func (r *GameRules) HasAction(action string) bool {
	for _, a := range r.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// PhaseIndex returns the index of the named phase or -1.
func (r *GameRules) PhaseIndex(name string) int {
	for i, p := range r.TurnStructure.Phases {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// HasWinType reports whether any win condition has the given type.
func (r *GameRules) HasWinType(kind string) bool {
	for _, w := range r.WinConditions {
		if w.Type == kind {
			return true
		}
	}
	return false
}

// DealerEnabled reports whether a dealer seat is configured.
func (r *GameRules) DealerEnabled() bool {
	return r.Players.Dealer != nil && r.Players.Dealer.Enabled
}

// BettingEnabled reports whether chip betting is configured.
func (r *GameRules) BettingEnabled() bool {
	return r.Players.Betting != nil && r.Players.Betting.Enabled
}

// FreeText concatenates every prose field. Heuristics scan this text only.
func (r *GameRules) FreeText() string {
	parts := []string{r.Name, r.Description, r.Objective.Description}
	parts = append(parts, r.SpecialRules...)
	for _, w := range r.WinConditions {
		parts = append(parts, w.Description)
	}
	for _, p := range r.TurnStructure.Phases {
		parts = append(parts, p.Description)
	}
	return strings.Join(parts, "\n")
}

// Clone returns a deep copy.
func (r *GameRules) Clone() *GameRules {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Players.Dealer != nil {
		d := *r.Players.Dealer
		cp.Players.Dealer = &d
	}
	if r.Players.Betting != nil {
		b := *r.Players.Betting
		cp.Players.Betting = &b
	}
	cp.Setup.CardsPerPlayerPosition = append([]int(nil), r.Setup.CardsPerPlayerPosition...)
	if r.Setup.KeepDrawnCard != nil {
		k := *r.Setup.KeepDrawnCard
		cp.Setup.KeepDrawnCard = &k
	}
	if r.Setup.TableLayout != nil {
		l := *r.Setup.TableLayout
		l.Zones = append([]ZoneSpec(nil), r.Setup.TableLayout.Zones...)
		cp.Setup.TableLayout = &l
	}
	cp.Setup.RandomHandRange = append([]int(nil), r.Setup.RandomHandRange...)
	if r.Setup.ProgressiveDealing != nil {
		p := *r.Setup.ProgressiveDealing
		cp.Setup.ProgressiveDealing = &p
	}
	cp.Setup.RevealWinCards = append([]string(nil), r.Setup.RevealWinCards...)
	cp.TurnStructure.Phases = make([]Phase, len(r.TurnStructure.Phases))
	for i, p := range r.TurnStructure.Phases {
		p.Actions = append([]string(nil), p.Actions...)
		cp.TurnStructure.Phases[i] = p
	}
	cp.Actions = append([]string(nil), r.Actions...)
	cp.WinConditions = make([]WinCondition, len(r.WinConditions))
	for i, w := range r.WinConditions {
		switch t := w.Target.(type) {
		case []string:
			w.Target = append([]string(nil), t...)
		case []any:
			w.Target = append([]any(nil), t...)
		}
		cp.WinConditions[i] = w
	}
	cp.SpecialRules = append([]string(nil), r.SpecialRules...)
	return &cp
}

func (r *GameRules) String() string {
	return fmt.Sprintf("%s (%d-%d players, %d phases)", r.Name, r.Players.Min, r.Players.Max, len(r.TurnStructure.Phases))
}
