package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

// Action names with built-in semantics.
const (
	ActionDraw    = "draw"
	ActionPlay    = "play"
	ActionHit     = "hit"
	ActionDiscard = "discard"
	ActionPass    = "pass"
	ActionSkip    = "skip"
	ActionEndTurn = "end_turn"
	ActionStand   = "stand"
	ActionFold    = "fold"
	ActionFlip    = "flip"
	ActionPeek    = "peek"
	ActionReveal  = "reveal"
	ActionBet     = "bet"
	ActionCall    = "call"
	ActionCheck   = "check"
	ActionRaise   = "raise"
	ActionAttack  = "attack"
	ActionDefend  = "defend"
)

var turnEnding = map[string]bool{
	ActionPass: true, ActionSkip: true, ActionEndTurn: true, ActionStand: true, ActionFold: true,
}

// EndsTurn reports whether the action ends the turn outright.
func EndsTurn(action string) bool {
	return turnEnding[normalizeAction(action)]
}

func normalizeAction(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}

// IsValidAction reports whether the player may perform the action with the
// given cards right now. It never mutates state.
func (e *Engine) IsValidAction(playerID, action string, cardIDs []string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok, _ := e.validate(e.state.Player(playerID), normalizeAction(action), e.resolveRefs(cardIDs), "")
	return ok
}

// PhaseAllows reports whether the current phase (or, in sandbox mode, the
// document) lists the action. Pass is always allowed.
func (e *Engine) PhaseAllows(action string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phaseAllows(normalizeAction(action))
}

func (e *Engine) phaseAllows(action string) bool {
	if action == ActionPass {
		return true
	}
	if e.rules.Setup.Sandbox {
		return e.rules.HasAction(action)
	}
	return e.turns.Allows(action)
}

func (e *Engine) cardRequest() bool {
	return e.class.Has(schema.TagCardRequest)
}

func (e *Engine) validate(p *Player, action string, ids []string, target string) (bool, string) {
	if e.state.Status != StatusActive {
		return false, "game is not active"
	}
	if p == nil {
		return false, "unknown player"
	}
	if !p.IsActive {
		return false, "not your turn"
	}
	if p.Out() {
		return false, "player is out of the round"
	}
	if action == ActionPass {
		return true, ""
	}
	if !e.phaseAllows(action) {
		return false, fmt.Sprintf("%s is not allowed during %s", action, e.state.Phase)
	}
	if hasDuplicates(ids) {
		return false, "duplicate card ids"
	}

	switch action {
	case ActionDraw, ActionSkip, ActionEndTurn, ActionStand, ActionFold:
		return true, ""
	case ActionPlay, ActionHit:
		if e.cardRequest() {
			return true, ""
		}
		if action == ActionHit {
			return e.validateCustom(p, ids)
		}
		if len(ids) == 0 {
			return false, "select at least one card to play"
		}
		played, ok := e.ownedCards(p, ids)
		if !ok {
			return false, "cards must be in your hand"
		}
		if !e.sequenceAllows(played) {
			return false, "card does not continue the sequence"
		}
		return true, ""
	case ActionDiscard, ActionAttack, ActionDefend:
		if len(ids) != 1 {
			return false, "select exactly one card"
		}
		if p.HandIndex(ids[0]) < 0 {
			return false, "card must be in your hand"
		}
		return true, ""
	case ActionFlip, ActionPeek:
		if len(ids) != 1 {
			return false, "select exactly one table card"
		}
		_, c := e.state.TableCard(ids[0])
		if c == nil {
			return false, "card is not on the table"
		}
		if c.FaceUp && !(action == ActionFlip && e.peeked[c.ID]) {
			return false, "card is already face up"
		}
		return true, ""
	case ActionReveal:
		if _, ok := e.ownedCards(p, ids); !ok {
			return false, "cards must be in your hand"
		}
		return true, ""
	case ActionBet, ActionRaise, ActionCall, ActionCheck:
		return e.validateBetting(p, action, target)
	}
	return e.validateCustom(p, ids)
}

// validateCustom accepts actions without built-in semantics as long as every
// referenced card exists in the hand or on the table.
func (e *Engine) validateCustom(p *Player, ids []string) (bool, string) {
	for _, id := range ids {
		if p.HandIndex(id) >= 0 {
			continue
		}
		if _, c := e.state.TableCard(id); c != nil {
			continue
		}
		return false, "unknown card " + id
	}
	return true, ""
}

func (e *Engine) validateBetting(p *Player, action, target string) (bool, string) {
	if !e.rules.BettingEnabled() {
		return false, "betting is not enabled"
	}
	switch action {
	case ActionCheck:
		if p.Bet < e.state.CurrentBet {
			return false, "cannot check facing a bet"
		}
	case ActionCall:
		if e.state.CurrentBet <= p.Bet {
			return false, "nothing to call"
		}
		if p.Chips <= 0 {
			return false, "no chips left"
		}
	case ActionBet, ActionRaise:
		if action == ActionBet && e.state.CurrentBet > 0 {
			return false, "a bet is already open"
		}
		owed := e.state.CurrentBet - p.Bet + e.betAmount(target)
		if owed > p.Chips {
			return false, "not enough chips"
		}
	}
	return true, ""
}

// betAmount reads the requested bet from target, clamped to table limits.
func (e *Engine) betAmount(target string) int {
	b := e.rules.Players.Betting
	amount := b.MinBet
	if n, err := strconv.Atoi(strings.TrimSpace(target)); err == nil && n > amount {
		amount = n
	}
	if b.MaxBet > 0 && amount > b.MaxBet {
		amount = b.MaxBet
	}
	return amount
}

func (e *Engine) ownedCards(p *Player, ids []string) ([]*cards.Card, bool) {
	out := make([]*cards.Card, 0, len(ids))
	for _, id := range ids {
		i := p.HandIndex(id)
		if i < 0 {
			return nil, false
		}
		out = append(out, p.Hand[i])
	}
	return out, true
}

// sequenceAllows enforces the recognised rank-gap rule against the play area.
// Without a recognised rule every play is allowed.
func (e *Engine) sequenceAllows(played []*cards.Card) bool {
	diffs := e.class.SequenceDifferences
	if len(diffs) == 0 {
		return true
	}
	var prev *cards.Card
	if z := e.state.Zone(ZonePlayArea); z != nil {
		prev = z.Top()
	}
	for _, c := range played {
		if prev != nil && !allowedGap(prev, c, diffs) {
			return false
		}
		prev = c
	}
	return true
}

// SequenceGapAllowed reports whether two cards may sit next to each other under
// the given gap set.
func SequenceGapAllowed(a, b *cards.Card, diffs []int) bool {
	return allowedGap(a, b, diffs)
}

func allowedGap(a, b *cards.Card, diffs []int) bool {
	gap := a.Rank.Value() - b.Rank.Value()
	if gap < 0 {
		gap = -gap
	}
	for _, d := range diffs {
		if gap == d {
			return true
		}
	}
	return false
}

// resolveRefs maps masked table references ("zone:<id>:<index>") back to card
// ids. Other ids pass through unchanged.
func (e *Engine) resolveRefs(ids []string) []string {
	if len(ids) == 0 {
		return ids
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id
		if !strings.HasPrefix(id, "zone:") {
			continue
		}
		rest := strings.TrimPrefix(id, "zone:")
		sep := strings.LastIndex(rest, ":")
		if sep < 0 {
			continue
		}
		z := e.state.Zone(rest[:sep])
		idx, err := strconv.Atoi(rest[sep+1:])
		if z == nil || err != nil || idx < 0 || idx >= len(z.Cards) {
			continue
		}
		out[i] = z.Cards[idx].ID
	}
	return out
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return true
		}
		seen[id] = true
	}
	return false
}
