package bot

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
)

// Actor is an Engine that also applies actions.
type Actor interface {
	Engine
	ExecuteAction(playerID, action string, cardIDs []string, target string) (engine.ActionResult, error)
}

// Runner paces bot turns with a think delay and feeds decisions back into the
// engine.
type Runner struct {
	decider  *Decider
	logger   *zap.Logger
	minDelay time.Duration
	maxDelay time.Duration
	observe  func(engine.ActionResult)
}

// NewRunner returns a runner that waits between minDelay and maxDelay before
// each action. Zero delays act immediately.
func NewRunner(decider *Decider, logger *zap.Logger, minDelay, maxDelay time.Duration) *Runner {
	if decider == nil {
		decider = NewDecider(logger)
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Runner{decider: decider, logger: logger, minDelay: minDelay, maxDelay: maxDelay}
}

// WithObserver registers fn to receive every result Drive produces.
func (r *Runner) WithObserver(fn func(engine.ActionResult)) *Runner {
	cp := *r
	cp.observe = fn
	return &cp
}

func (r *Runner) thinkDelay() time.Duration {
	if r.maxDelay <= 0 {
		return 0
	}
	if r.maxDelay == r.minDelay {
		return r.minDelay
	}
	return r.minDelay + time.Duration(rand.Int63n(int64(r.maxDelay-r.minDelay)))
}

// Act waits, decides and executes one action for botID. An action the engine
// rejects is replaced by pass.
func (r *Runner) Act(ctx context.Context, e Actor, botID string) (engine.ActionResult, error) {
	if d := r.thinkDelay(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return engine.ActionResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	a := r.decider.Decide(e, botID)
	res, err := e.ExecuteAction(botID, a.Action, a.CardIDs, a.Target)
	if err != nil {
		return res, err
	}
	if !res.Success && a.Action != engine.ActionPass {
		if r.logger != nil {
			r.logger.Warn("bot action rejected",
				zap.String("player_id", botID),
				zap.String("action", a.String()),
				zap.String("reason", res.Message),
			)
		}
		return e.ExecuteAction(botID, engine.ActionPass, nil, "")
	}
	return res, nil
}

// DefaultDriveLimit caps Drive when no limit is given.
const DefaultDriveLimit = 500

// Drive plays consecutive non-human turns until a human is to act, the game
// ends or limit actions have run. It returns the number of actions taken.
func (r *Runner) Drive(ctx context.Context, e Actor, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultDriveLimit
	}
	n := 0
	for n < limit {
		view := e.PublicState("")
		if view.Status != engine.StatusActive {
			break
		}
		cur := view.Player(view.CurrentPlayer)
		if cur == nil || cur.Kind == engine.KindHuman {
			break
		}
		res, err := r.Act(ctx, e, cur.ID)
		if err != nil {
			return n, err
		}
		n++
		if r.observe != nil {
			r.observe(res)
		}
	}
	if r.logger != nil && n > 0 {
		r.logger.Debug("bots acted", zap.Int("actions", n))
	}
	return n, nil
}
