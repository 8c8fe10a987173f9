package ir

import (
	"errors"
	"fmt"
)

// Executor errors.
var (
	ErrUnknownPredicate = errors.New("unknown predicate kind")
	ErrUnknownEffect    = errors.New("unknown effect kind")
	ErrUnboundedLoop    = errors.New("loop needs a positive max")
	ErrTooDeep          = errors.New("effects nested too deeply")
	ErrNotOwned         = errors.New("selected card not in hand")
)

// DefaultMaxDepth bounds composite, conditional and loop nesting.
const DefaultMaxDepth = 16

// PredicateFunc evaluates one predicate kind. It must not mutate anything.
type PredicateFunc func(r *Registry, p Predicate, s State, subject string) bool

// EffectFunc applies one effect kind through the context.
type EffectFunc func(r *Registry, e Effect, ctx *Context) error

// Context is the mutable input of one effect run. Subject is the acting
// player; Selected holds the cards the action was invoked with.
type Context struct {
	Host     Host
	Subject  string
	Selected []string

	EndTurn bool
	EndGame bool
	Winner  string

	depth int
}

// Halted reports whether a turn or game end was signalled.
func (c *Context) Halted() bool {
	return c.EndTurn || c.EndGame
}

// Registry maps predicate and effect kinds to their implementations.
type Registry struct {
	predicates map[PredicateKind]PredicateFunc
	effects    map[EffectKind]EffectFunc
	maxDepth   int
}

// NewRegistry returns a registry holding every built-in kind.
func NewRegistry() *Registry {
	r := &Registry{
		predicates: make(map[PredicateKind]PredicateFunc),
		effects:    make(map[EffectKind]EffectFunc),
		maxDepth:   DefaultMaxDepth,
	}
	for k, fn := range builtinPredicates {
		r.predicates[k] = fn
	}
	for k, fn := range builtinEffects {
		r.effects[k] = fn
	}
	return r
}

// RegisterPredicate adds or replaces a predicate kind.
func (r *Registry) RegisterPredicate(kind PredicateKind, fn PredicateFunc) {
	r.predicates[kind] = fn
}

// RegisterEffect adds or replaces an effect kind.
func (r *Registry) RegisterEffect(kind EffectKind, fn EffectFunc) {
	r.effects[kind] = fn
}

// KnowsPredicate and KnowsEffect report whether a kind is registered.
func (r *Registry) KnowsPredicate(kind PredicateKind) bool {
	_, ok := r.predicates[kind]
	return ok
}

func (r *Registry) KnowsEffect(kind EffectKind) bool {
	_, ok := r.effects[kind]
	return ok
}

// Evaluate checks a predicate for subject. Unknown kinds are false.
func (r *Registry) Evaluate(p Predicate, s State, subject string) bool {
	fn, ok := r.predicates[p.Kind]
	if !ok {
		return false
	}
	return fn(r, p, s, subject)
}

// Execute runs effects in order. It stops after an effect signals the end of
// the turn or game, and on the first error.
func (r *Registry) Execute(effects []Effect, ctx *Context) error {
	if ctx.depth > r.maxDepth {
		return ErrTooDeep
	}
	for _, e := range effects {
		if ctx.Halted() {
			return nil
		}
		fn, ok := r.effects[e.Kind]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownEffect, e.Kind)
		}
		if err := fn(r, e, ctx); err != nil {
			return fmt.Errorf("%s: %w", e.Kind, err)
		}
	}
	return nil
}

func (r *Registry) nested(effects []Effect, ctx *Context) error {
	ctx.depth++
	defer func() { ctx.depth-- }()
	return r.Execute(effects, ctx)
}

// players resolves a selector to player ids.
func players(selector string, s State, subject string) []string {
	switch selector {
	case "", PlayerSelf:
		if subject == "" {
			subject = s.CurrentPlayerID()
		}
		if subject == "" {
			return nil
		}
		return []string{subject}
	case PlayerAny, PlayerEach:
		var out []string
		for _, id := range s.PlayerIDs() {
			if !s.Eliminated(id) {
				out = append(out, id)
			}
		}
		return out
	}
	return []string{selector}
}

func compare(op string, a, b int) bool {
	switch op {
	case OpEQ, "":
		return a == b
	case OpNE:
		return a != b
	case OpLT:
		return a < b
	case OpLE:
		return a <= b
	case OpGT:
		return a > b
	case OpGE:
		return a >= b
	}
	return false
}

// anyPlayer reports whether check holds for any player the selector names.
func anyPlayer(p Predicate, s State, subject string, check func(id string) bool) bool {
	for _, id := range players(p.Player, s, subject) {
		if check(id) {
			return true
		}
	}
	return false
}

var builtinPredicates = map[PredicateKind]PredicateFunc{
	PredAlways: func(*Registry, Predicate, State, string) bool { return true },
	PredNever:  func(*Registry, Predicate, State, string) bool { return false },
	PredHandCount: func(_ *Registry, p Predicate, s State, subject string) bool {
		return anyPlayer(p, s, subject, func(id string) bool { return compare(p.Op, s.HandCount(id), p.Value) })
	},
	PredZoneCount: func(_ *Registry, p Predicate, s State, _ string) bool {
		return compare(p.Op, s.ZoneCount(p.Zone), p.Value)
	},
	PredHasCard: func(_ *Registry, p Predicate, s State, subject string) bool {
		return anyPlayer(p, s, subject, func(id string) bool { return s.HasCard(id, p.Pattern) })
	},
	PredScoreCompare: func(_ *Registry, p Predicate, s State, subject string) bool {
		return anyPlayer(p, s, subject, func(id string) bool { return compare(p.Op, s.Score(id), p.Value) })
	},
	PredFlag: func(_ *Registry, p Predicate, s State, _ string) bool {
		return s.Flag(p.Flag)
	},
	PredPhaseIs: func(_ *Registry, p Predicate, s State, _ string) bool {
		return s.PhaseName() == p.Phase
	},
	PredWinnerExists: func(_ *Registry, _ Predicate, s State, _ string) bool {
		return s.Winner() != ""
	},
	PredAnd: func(r *Registry, p Predicate, s State, subject string) bool {
		for _, a := range p.Args {
			if !r.Evaluate(a, s, subject) {
				return false
			}
		}
		return true
	},
	PredOr: func(r *Registry, p Predicate, s State, subject string) bool {
		for _, a := range p.Args {
			if r.Evaluate(a, s, subject) {
				return true
			}
		}
		return false
	},
	PredNot: func(r *Registry, p Predicate, s State, subject string) bool {
		return len(p.Args) == 1 && !r.Evaluate(p.Args[0], s, subject)
	},
}

var builtinEffects = map[EffectKind]EffectFunc{
	EffDraw: func(_ *Registry, e Effect, ctx *Context) error {
		n := e.Count
		if n <= 0 {
			n = 1
		}
		for _, id := range players(e.Player, ctx.Host, ctx.Subject) {
			if _, err := ctx.Host.DrawToPlayer(id, n); err != nil {
				return err
			}
		}
		return nil
	},
	EffMoveCard: func(_ *Registry, e Effect, ctx *Context) error {
		to, err := ParseLocation(e.To, ctx.Subject)
		if err != nil {
			return err
		}
		ids, err := selectCards(e, ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := ctx.Host.MoveCardTo(id, to); err != nil {
				return err
			}
		}
		return nil
	},
	EffReveal: func(_ *Registry, e Effect, ctx *Context) error {
		ids, err := selectCards(e, ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := ctx.Host.RevealCard(id); err != nil {
				return err
			}
		}
		return nil
	},
	EffModifyScore: func(_ *Registry, e Effect, ctx *Context) error {
		for _, id := range players(e.Player, ctx.Host, ctx.Subject) {
			if err := ctx.Host.AdjustScore(id, e.Delta); err != nil {
				return err
			}
		}
		return nil
	},
	EffSetFlag: func(_ *Registry, e Effect, ctx *Context) error {
		if e.Flag == "" {
			return errors.New("flag name is empty")
		}
		ctx.Host.SetFlag(e.Flag, e.Value)
		return nil
	},
	EffEliminatePlayer: func(_ *Registry, e Effect, ctx *Context) error {
		for _, id := range players(e.Player, ctx.Host, ctx.Subject) {
			if err := ctx.Host.EliminatePlayer(id); err != nil {
				return err
			}
		}
		return nil
	},
	EffCreateZone: func(_ *Registry, e Effect, ctx *Context) error {
		if e.Zone == "" {
			return errors.New("zone id is empty")
		}
		ctx.Host.EnsureZone(e.Zone, e.ZoneType)
		return nil
	},
	EffConditional: func(r *Registry, e Effect, ctx *Context) error {
		cond := Always()
		if e.If != nil {
			cond = *e.If
		}
		if r.Evaluate(cond, ctx.Host, ctx.Subject) {
			return r.nested(e.Then, ctx)
		}
		return r.nested(e.Else, ctx)
	},
	EffLoop: func(r *Registry, e Effect, ctx *Context) error {
		if e.Max <= 0 {
			return ErrUnboundedLoop
		}
		for i := 0; i < e.Max; i++ {
			if e.While != nil && !r.Evaluate(*e.While, ctx.Host, ctx.Subject) {
				return nil
			}
			if err := r.nested(e.Effects, ctx); err != nil {
				return err
			}
			if ctx.Halted() {
				return nil
			}
		}
		return nil
	},
	EffComposite: func(r *Registry, e Effect, ctx *Context) error {
		return r.nested(e.Effects, ctx)
	},
	EffEndTurn: func(_ *Registry, _ Effect, ctx *Context) error {
		ctx.EndTurn = true
		return nil
	},
	EffEndGame: func(_ *Registry, e Effect, ctx *Context) error {
		ctx.EndGame = true
		switch e.Player {
		case "":
		case PlayerSelf:
			ctx.Winner = ctx.Subject
		default:
			ctx.Winner = e.Player
		}
		return nil
	},
}

// selectCards resolves the cards a move or reveal applies to: the invocation's
// selection, or the first Count cards of a container.
func selectCards(e Effect, ctx *Context) ([]string, error) {
	if e.From == SourceSelected {
		ids := ctx.Selected
		if e.Count > 0 && len(ids) > e.Count {
			ids = ids[:e.Count]
		}
		if len(ids) == 0 {
			return nil, errors.New("no cards selected")
		}
		for _, id := range ids {
			if !ctx.Host.InHand(ctx.Subject, id) {
				return nil, fmt.Errorf("%w: %s is not in %s's hand", ErrNotOwned, id, ctx.Subject)
			}
		}
		return ids, nil
	}
	from, err := ParseLocation(e.From, ctx.Subject)
	if err != nil {
		return nil, err
	}
	n := e.Count
	if n <= 0 {
		n = 1
	}
	return ctx.Host.SelectCards(from, n), nil
}
