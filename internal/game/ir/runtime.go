package ir

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
)

// Result reports one runtime call.
type Result struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	EndTurn bool   `json:"endTurn,omitempty"`
	EndGame bool   `json:"endGame,omitempty"`
	Winner  string `json:"winner,omitempty"`
}

// Runtime executes an IR program against a host.
type Runtime struct {
	ir       *GameIR
	host     Host
	registry *Registry
	logger   *zap.Logger
}

// NewRuntime binds g to host. A nil logger disables logging.
func NewRuntime(g *GameIR, host Host, logger *zap.Logger) *Runtime {
	return &Runtime{ir: g, host: host, registry: NewRegistry(), logger: logger}
}

// WithRegistry replaces the default registry.
func (rt *Runtime) WithRegistry(r *Registry) *Runtime {
	if r != nil {
		rt.registry = r
	}
	return rt
}

// IR returns the program being run.
func (rt *Runtime) IR() *GameIR {
	return rt.ir
}

// RunSetup applies the setup effects, then the entry effects of the current
// phase.
func (rt *Runtime) RunSetup() Result {
	ctx := &Context{Host: rt.host, Subject: rt.host.CurrentPlayerID()}
	if err := rt.registry.Execute(rt.ir.Setup, ctx); err != nil {
		return rt.fail("setup", err.Error())
	}
	if ph, ok := rt.ir.Phase(rt.host.PhaseName()); ok {
		if err := rt.registry.Execute(ph.OnEnter, ctx); err != nil {
			return rt.fail("setup", err.Error())
		}
	}
	return Result{Action: "setup", Success: true}
}

// ExecuteAction runs the named action for the current player with an optional
// card selection. Rejections leave the host untouched; an effect error may
// leave earlier effects of the same action applied.
func (rt *Runtime) ExecuteAction(name string, cardIDs ...string) Result {
	subject := rt.host.CurrentPlayerID()
	if subject == "" {
		return rt.fail(name, "no current player")
	}
	if rt.host.Winner() != "" {
		return rt.fail(name, "game is over")
	}
	spec, ok := rt.ir.Action(name)
	if !ok {
		return rt.fail(name, "undeclared action")
	}
	phase, hasPhase := rt.ir.Phase(rt.host.PhaseName())
	if hasPhase && name != engine.ActionPass && !phase.Allows(name) {
		return rt.fail(name, fmt.Sprintf("not allowed during %s", phase.Name))
	}
	for _, p := range spec.Validate {
		if !rt.registry.Evaluate(p, rt.host, subject) {
			return rt.fail(name, "precondition failed: "+p.String())
		}
	}

	if usesSelection(spec.Effects) {
		for _, id := range cardIDs {
			if !rt.host.InHand(subject, id) {
				return rt.fail(name, fmt.Sprintf("%s is not in %s's hand", id, subject))
			}
		}
	}

	ctx := &Context{Host: rt.host, Subject: subject, Selected: cardIDs}
	if err := rt.registry.Execute(spec.Effects, ctx); err != nil {
		if rt.logger != nil {
			rt.logger.Warn("ir effect failed",
				zap.String("action", name),
				zap.String("player_id", subject),
				zap.Error(err),
			)
		}
		return rt.fail(name, err.Error())
	}

	if !ctx.EndGame {
		if winner, ok := rt.CheckWin(); ok {
			ctx.EndGame = true
			ctx.Winner = winner
		}
	}
	rt.apply(ctx, phase, hasPhase)

	if rt.logger != nil {
		rt.logger.Debug("ir action executed",
			zap.String("action", name),
			zap.String("player_id", subject),
			zap.Bool("end_turn", ctx.EndTurn),
			zap.Bool("end_game", ctx.EndGame),
		)
	}
	return Result{
		Action:  name,
		Success: true,
		EndTurn: ctx.EndTurn,
		EndGame: ctx.EndGame,
		Winner:  ctx.Winner,
	}
}

// CheckWin evaluates the win conditions in order for every remaining seat.
func (rt *Runtime) CheckWin() (string, bool) {
	for _, w := range rt.ir.WinConditions {
		for _, id := range rt.host.PlayerIDs() {
			if rt.host.Eliminated(id) {
				continue
			}
			if rt.registry.Evaluate(w.Predicate, rt.host, id) {
				return id, true
			}
		}
	}
	return "", false
}

// apply hands turn and game signals to hosts that manage them. Without an end
// signal the phase advances once its exit condition, if any, holds.
func (rt *Runtime) apply(ctx *Context, phase PhaseSpec, hasPhase bool) {
	if ctx.EndGame {
		if f, ok := rt.host.(Finisher); ok {
			if err := f.DeclareWinner(ctx.Winner); err != nil && rt.logger != nil {
				rt.logger.Warn("declare winner failed", zap.String("player_id", ctx.Winner), zap.Error(err))
			}
		}
		return
	}
	th, ok := rt.host.(TurnHost)
	if !ok {
		return
	}
	if ctx.EndTurn {
		th.EndTurn()
		return
	}
	if hasPhase && phase.ExitWhen != nil && !rt.registry.Evaluate(*phase.ExitWhen, rt.host, ctx.Subject) {
		return
	}
	th.AdvancePhase()
	if next, ok := rt.ir.Phase(rt.host.PhaseName()); ok && len(next.OnEnter) > 0 {
		entry := &Context{Host: rt.host, Subject: rt.host.CurrentPlayerID()}
		if err := rt.registry.Execute(next.OnEnter, entry); err != nil && rt.logger != nil {
			rt.logger.Warn("phase entry effects failed", zap.String("phase", next.Name), zap.Error(err))
		}
	}
}

func (rt *Runtime) fail(action, msg string) Result {
	if rt.logger != nil {
		rt.logger.Debug("ir action rejected", zap.String("action", action), zap.String("reason", msg))
	}
	return Result{Action: action, Message: msg}
}

// usesSelection reports whether any effect, nested ones included, moves the
// cards the action was invoked with.
func usesSelection(effects []Effect) bool {
	for _, e := range effects {
		if e.From == SourceSelected {
			return true
		}
		if usesSelection(e.Then) || usesSelection(e.Else) || usesSelection(e.Effects) {
			return true
		}
	}
	return false
}
