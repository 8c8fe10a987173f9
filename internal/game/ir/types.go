// Package ir is a declarative intermediate representation of a game document:
// typed predicates and effects interpreted by a fixed registry, so that
// actions can be described as data rather than code.
package ir

import "fmt"

// PredicateKind names a condition type.
type PredicateKind string

const (
	PredHandCount    PredicateKind = "handCount"
	PredZoneCount    PredicateKind = "zoneCount"
	PredHasCard      PredicateKind = "hasCard"
	PredScoreCompare PredicateKind = "scoreCompare"
	PredFlag         PredicateKind = "flag"
	PredPhaseIs      PredicateKind = "phaseIs"
	PredWinnerExists PredicateKind = "winnerExists"
	PredAnd          PredicateKind = "and"
	PredOr           PredicateKind = "or"
	PredNot          PredicateKind = "not"
	PredAlways       PredicateKind = "always"
	PredNever        PredicateKind = "never"
)

// Comparison operators used by count and score predicates.
const (
	OpEQ = "eq"
	OpNE = "ne"
	OpLT = "lt"
	OpLE = "le"
	OpGT = "gt"
	OpGE = "ge"
)

// Player selectors. The empty selector means the subject player: the one
// acting, or the one a win condition is evaluated for.
const (
	PlayerSelf = "self"
	PlayerAny  = "any"
	PlayerEach = "each"
)

// Predicate is a condition over game state.
type Predicate struct {
	Kind    PredicateKind `json:"kind" yaml:"kind"`
	Player  string        `json:"player,omitempty" yaml:"player,omitempty"`
	Zone    string        `json:"zone,omitempty" yaml:"zone,omitempty"`
	Pattern string        `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Op      string        `json:"op,omitempty" yaml:"op,omitempty"`
	Value   int           `json:"value,omitempty" yaml:"value,omitempty"`
	Flag    string        `json:"flag,omitempty" yaml:"flag,omitempty"`
	Phase   string        `json:"phase,omitempty" yaml:"phase,omitempty"`
	Args    []Predicate   `json:"args,omitempty" yaml:"args,omitempty"`
}

func (p Predicate) String() string {
	switch p.Kind {
	case PredHandCount, PredScoreCompare:
		return fmt.Sprintf("%s(%s %s %d)", p.Kind, p.playerOr(), p.Op, p.Value)
	case PredZoneCount:
		return fmt.Sprintf("%s(%s %s %d)", p.Kind, p.Zone, p.Op, p.Value)
	case PredHasCard:
		return fmt.Sprintf("%s(%s %s)", p.Kind, p.playerOr(), p.Pattern)
	case PredFlag:
		return fmt.Sprintf("%s(%s)", p.Kind, p.Flag)
	case PredPhaseIs:
		return fmt.Sprintf("%s(%s)", p.Kind, p.Phase)
	case PredAnd, PredOr, PredNot:
		return fmt.Sprintf("%s%v", p.Kind, p.Args)
	}
	return string(p.Kind)
}

func (p Predicate) playerOr() string {
	if p.Player == "" {
		return PlayerSelf
	}
	return p.Player
}

// Predicate constructors.

func Always() Predicate { return Predicate{Kind: PredAlways} }
func Never() Predicate  { return Predicate{Kind: PredNever} }

func HandCount(op string, n int) Predicate {
	return Predicate{Kind: PredHandCount, Op: op, Value: n}
}

func ZoneCount(zone, op string, n int) Predicate {
	return Predicate{Kind: PredZoneCount, Zone: zone, Op: op, Value: n}
}

func HasCard(pattern string) Predicate {
	return Predicate{Kind: PredHasCard, Pattern: pattern}
}

func ScoreCompare(op string, n int) Predicate {
	return Predicate{Kind: PredScoreCompare, Op: op, Value: n}
}

func FlagSet(name string) Predicate {
	return Predicate{Kind: PredFlag, Flag: name}
}

func PhaseIs(name string) Predicate {
	return Predicate{Kind: PredPhaseIs, Phase: name}
}

func WinnerExists() Predicate { return Predicate{Kind: PredWinnerExists} }

func And(args ...Predicate) Predicate { return Predicate{Kind: PredAnd, Args: args} }
func Or(args ...Predicate) Predicate  { return Predicate{Kind: PredOr, Args: args} }
func Not(arg Predicate) Predicate     { return Predicate{Kind: PredNot, Args: []Predicate{arg}} }

// EffectKind names a state mutation.
type EffectKind string

const (
	EffMoveCard        EffectKind = "moveCard"
	EffDraw            EffectKind = "draw"
	EffReveal          EffectKind = "reveal"
	EffModifyScore     EffectKind = "modifyScore"
	EffSetFlag         EffectKind = "setFlag"
	EffEliminatePlayer EffectKind = "eliminatePlayer"
	EffCreateZone      EffectKind = "createZone"
	EffConditional     EffectKind = "conditional"
	EffLoop            EffectKind = "loop"
	EffComposite       EffectKind = "composite"
	EffEndTurn         EffectKind = "endTurn"
	EffEndGame         EffectKind = "endGame"
)

// Card sources and destinations are written as "hand", "deck", "discard",
// "community" or "zone:<id>". "selected" stands for the cards the action was
// invoked with.
const (
	SourceSelected = "selected"
	SourceHand     = "hand"
	SourceDeck     = "deck"
	SourceDiscard  = "discard"
)

// Effect is one mutation. Only the fields of its Kind are read.
type Effect struct {
	Kind     EffectKind `json:"kind" yaml:"kind"`
	Player   string     `json:"player,omitempty" yaml:"player,omitempty"`
	Count    int        `json:"count,omitempty" yaml:"count,omitempty"`
	From     string     `json:"from,omitempty" yaml:"from,omitempty"`
	To       string     `json:"to,omitempty" yaml:"to,omitempty"`
	Zone     string     `json:"zone,omitempty" yaml:"zone,omitempty"`
	ZoneType string     `json:"zoneType,omitempty" yaml:"zoneType,omitempty"`
	Delta    int        `json:"delta,omitempty" yaml:"delta,omitempty"`
	Flag     string     `json:"flag,omitempty" yaml:"flag,omitempty"`
	Value    bool       `json:"value,omitempty" yaml:"value,omitempty"`
	If       *Predicate `json:"if,omitempty" yaml:"if,omitempty"`
	Then     []Effect   `json:"then,omitempty" yaml:"then,omitempty"`
	Else     []Effect   `json:"else,omitempty" yaml:"else,omitempty"`
	While    *Predicate `json:"while,omitempty" yaml:"while,omitempty"`
	Max      int        `json:"max,omitempty" yaml:"max,omitempty"`
	Effects  []Effect   `json:"effects,omitempty" yaml:"effects,omitempty"`
}

// ActionSpec is a named action: optional validation predicates, all of which
// must hold, followed by its effects.
type ActionSpec struct {
	Name        string      `json:"name" yaml:"name"`
	Validate    []Predicate `json:"validate,omitempty" yaml:"validate,omitempty"`
	Effects     []Effect    `json:"effects" yaml:"effects"`
	Placeholder bool        `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// PhaseSpec is one step of a turn.
type PhaseSpec struct {
	Name     string     `json:"name" yaml:"name"`
	Actions  []string   `json:"actions" yaml:"actions"`
	OnEnter  []Effect   `json:"onEnter,omitempty" yaml:"onEnter,omitempty"`
	ExitWhen *Predicate `json:"exitWhen,omitempty" yaml:"exitWhen,omitempty"`
	Next     string     `json:"next,omitempty" yaml:"next,omitempty"`
}

// Allows reports whether the phase lists the action.
func (p PhaseSpec) Allows(action string) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// WinConditionIR is evaluated for every seat; the first seat for which the
// predicate holds wins.
type WinConditionIR struct {
	ID          string    `json:"id" yaml:"id"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Predicate   Predicate `json:"predicate" yaml:"predicate"`
	Placeholder bool      `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// GameIR is a whole game.
type GameIR struct {
	Name          string           `json:"name" yaml:"name"`
	Setup         []Effect         `json:"setup,omitempty" yaml:"setup,omitempty"`
	Actions       []ActionSpec     `json:"actions" yaml:"actions"`
	Phases        []PhaseSpec      `json:"phases" yaml:"phases"`
	WinConditions []WinConditionIR `json:"winConditions" yaml:"winConditions"`
}

// Action returns the named action spec.
func (g *GameIR) Action(name string) (ActionSpec, bool) {
	for _, a := range g.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return ActionSpec{}, false
}

// Phase returns the named phase spec.
func (g *GameIR) Phase(name string) (PhaseSpec, bool) {
	for _, p := range g.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return PhaseSpec{}, false
}
