package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

// BlackjackLimit is the hand value above which a card-request player busts.
const BlackjackLimit = 21

// ExecuteAction validates and applies one action. Invalid input comes back as an
// unsuccessful result with the state untouched; the error is reserved for an
// unknown player id.
func (e *Engine) ExecuteAction(playerID, action string, cardIDs []string, target string) (ActionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	action = normalizeAction(action)
	ids := e.resolveRefs(cardIDs)
	res := ActionResult{
		PlayerID:  playerID,
		Action:    action,
		Cards:     append([]string(nil), ids...),
		Target:    target,
		Timestamp: time.Now(),
	}

	p := e.state.Player(playerID)
	if p == nil {
		res.Message = "unknown player"
		return res, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	if ok, reason := e.validate(p, action, ids, target); !ok {
		res.Message = reason
		if e.logger != nil {
			e.logger.Debug("action rejected",
				zap.String("session_id", e.state.ID),
				zap.String("player_id", playerID),
				zap.String("action", action),
				zap.String("reason", reason),
			)
		}
		return res, nil
	}

	msg, endTurn := e.apply(p, action, ids, target)
	res.Success = true
	res.Message = msg
	last := res
	e.state.LastAction = &last
	e.publish(Event{Type: EventActionExecuted, PlayerID: p.ID, Action: action, Phase: e.state.Phase})

	if e.checkWin() {
		return res, nil
	}
	e.advance(p, endTurn)
	return res, nil
}

// apply performs a validated action and reports whether it ends the turn.
func (e *Engine) apply(p *Player, action string, ids []string, target string) (string, bool) {
	switch action {
	case ActionPass, ActionSkip, ActionEndTurn:
		return p.Name + " ends the turn", true
	case ActionStand:
		if e.cardRequest() {
			p.Stood = true
			e.publish(Event{Type: EventPlayerOut, PlayerID: p.ID, Action: action})
		}
		return fmt.Sprintf("%s stands on %d", p.Name, p.Score), true
	case ActionFold:
		return e.fold(p), true
	case ActionDraw:
		return e.draw(p), false
	case ActionPlay, ActionHit:
		if e.cardRequest() {
			return e.hit(p), false
		}
		if action == ActionPlay {
			return e.play(p, ids), false
		}
	case ActionDiscard:
		e.mustMove(ids[0], Location{Kind: LocDiscard})
		p.CardsPlayed++
		return p.Name + " discards a card", false
	case ActionFlip:
		return e.flip(p, ids[0]), false
	case ActionPeek:
		return e.peek(p, ids[0]), false
	case ActionReveal:
		return e.reveal(p, ids), false
	case ActionBet, ActionRaise, ActionCall, ActionCheck:
		return e.wager(p, action, target), false
	case ActionAttack, ActionDefend:
		return e.engage(p, action, ids[0]), false
	}
	return fmt.Sprintf("%s performs %s", p.Name, action), false
}

// mustMove is used after validation has established the card exists.
func (e *Engine) mustMove(cardID string, to Location) {
	if err := e.moveCard(cardID, to); err != nil && e.logger != nil {
		e.logger.Error("validated move failed",
			zap.String("session_id", e.state.ID),
			zap.String("card_id", cardID),
			zap.String("to", to.String()),
			zap.Error(err),
		)
	}
}

func (e *Engine) draw(p *Player) string {
	c := e.drawCard()
	e.state.LastDrawn = c.Clone()
	e.state.LastDrawnBy = p.ID
	e.noteProgressive(c)

	if !e.rules.Setup.KeepsDrawnCard() {
		c.FaceUp = true
		e.state.Discard = append(e.state.Discard, c)
		e.publish(Event{Type: EventCardRevealed, PlayerID: p.ID, CardID: c.ID, To: string(LocDiscard)})
		e.noteReveal(p, c)
		return fmt.Sprintf("%s draws %s", p.Name, c)
	}
	c.FaceUp = false
	p.Hand = append(p.Hand, c)
	e.rescore(p)
	e.checkBust(p)
	e.publish(Event{Type: EventCardMoved, PlayerID: p.ID, CardID: c.ID, From: string(LocDeck), To: "hand:" + p.ID})
	return p.Name + " draws a card"
}

// hit is play in a card-request game: one more card, then the bust check.
func (e *Engine) hit(p *Player) string {
	c := e.drawCard()
	c.FaceUp = false
	e.state.LastDrawn = c.Clone()
	e.state.LastDrawnBy = p.ID
	p.Hand = append(p.Hand, c)
	e.rescore(p)
	e.publish(Event{Type: EventCardMoved, PlayerID: p.ID, CardID: c.ID, From: string(LocDeck), To: "hand:" + p.ID})
	if e.checkBust(p) {
		return fmt.Sprintf("%s busts with %d", p.Name, p.Score)
	}
	return fmt.Sprintf("%s takes a card (%d)", p.Name, p.Score)
}

func (e *Engine) checkBust(p *Player) bool {
	if !e.cardRequest() || p.Score <= BlackjackLimit {
		return false
	}
	p.Busted = true
	p.Stood = true
	e.publish(Event{Type: EventPlayerOut, PlayerID: p.ID, Action: "bust", Amount: p.Score})
	return true
}

// play moves cards from the hand onto the shared sequence zone.
func (e *Engine) play(p *Player, ids []string) string {
	area := e.ensureZone(ZonePlayArea, schema.ZoneSequence)
	area.AcceptsDrops = true
	gained := 0
	for _, id := range ids {
		c := p.Hand[p.HandIndex(id)]
		gained += c.Value
		e.mustMove(id, Location{Kind: LocZone, ZoneID: area.ID})
		p.CardsPlayed++
	}
	if e.rules.Setup.TargetSum > 0 {
		p.Score += gained
	}
	return fmt.Sprintf("%s plays %d card(s)", p.Name, len(ids))
}

// reveal shows owned cards, or the whole hand when none are named. Under an
// elimination rank a reveal without that rank knocks the player out.
func (e *Engine) reveal(p *Player, ids []string) string {
	shown, _ := e.ownedCards(p, ids)
	if len(ids) == 0 {
		shown = append(shown, p.Hand...)
	}
	for _, c := range shown {
		c.FaceUp = true
		e.publish(Event{Type: EventCardRevealed, PlayerID: p.ID, CardID: c.ID})
		e.noteReveal(p, c)
	}

	rank := e.rules.Setup.EliminationRank
	if rank == "" {
		return fmt.Sprintf("%s reveals %d card(s)", p.Name, len(shown))
	}
	for _, c := range shown {
		if string(c.Rank) == rank {
			return fmt.Sprintf("%s reveals a %s", p.Name, rank)
		}
	}
	e.eliminate(p)
	return fmt.Sprintf("%s failed to reveal a %s and is eliminated", p.Name, rank)
}

// eliminate removes a seat from play; its hand goes to the discard pile.
func (e *Engine) eliminate(p *Player) {
	if p.Eliminated {
		return
	}
	for len(p.Hand) > 0 {
		e.mustMove(p.Hand[0].ID, Location{Kind: LocDiscard})
	}
	p.Eliminated = true
	p.IsActive = false
	e.publish(Event{Type: EventPlayerOut, PlayerID: p.ID, Action: "eliminated"})
	if e.logger != nil {
		e.logger.Info("player eliminated",
			zap.String("session_id", e.state.ID),
			zap.String("player_id", p.ID),
		)
	}
}

// noteProgressive stops progressive dealing once its target rank is drawn.
func (e *Engine) noteProgressive(c *cards.Card) {
	pd := e.rules.Setup.ProgressiveDealing
	if pd != nil && pd.TargetRank != "" && string(c.Rank) == pd.TargetRank {
		e.progressiveStopped = true
	}
}

// advance moves the phase pointer, ending the turn when the action was
// turn-ending, the player went out, or the last phase completed. A single
// flipped card holds the last phase open.
func (e *Engine) advance(p *Player, endTurn bool) {
	if e.state.Status != StatusActive {
		return
	}
	if endTurn || p.Out() || e.state.Current() != p {
		e.endTurn()
		return
	}
	if len(e.flipped) == 1 && e.turns.LastPhase() {
		// the turn stays open until the second flip of the pair
		return
	}
	if e.turns.AdvancePhase() {
		e.endTurn()
		return
	}
	e.syncPhase()
	e.publish(Event{Type: EventPhaseChanged, PlayerID: p.ID, Phase: e.state.Phase})
}

// endTurn hands the turn to the next seat that can still act.
func (e *Engine) endTurn() {
	if len(e.flipped) == 1 {
		e.scheduleRevert(e.flipped[0].ID)
		e.flipped = nil
	}

	current := e.state.CurrentPlayer
	next := e.nextSeat(current)
	if next < 0 {
		e.showdown()
		return
	}

	newRound := len(e.state.Players) == 1 || next <= current
	e.turns.NextTurn(newRound)
	e.syncPhase()
	if newRound {
		e.dealProgressive()
	}
	e.activate(next)
	e.publish(Event{Type: EventPhaseChanged, PlayerID: e.state.Players[next].ID, Phase: e.state.Phase})
	e.checkWin()
}

// nextSeat returns the first seat after from that is not out, wrapping around,
// or -1 when every seat is out. The seat itself is a candidate last.
func (e *Engine) nextSeat(from int) int {
	n := len(e.state.Players)
	for step := 1; step <= n; step++ {
		i := ((from+step)%n + n) % n
		if !e.state.Players[i].Out() {
			return i
		}
	}
	return -1
}

// finish ends the session. An empty winner means nobody won.
func (e *Engine) finish(winner, reason string) {
	if e.state.Status == StatusFinished {
		return
	}
	e.scheduler.CancelAll()
	e.state.Status = StatusFinished
	e.state.Winner = winner
	e.awardPot(winner)
	for _, p := range e.state.Players {
		p.IsActive = false
	}
	if e.logger != nil {
		e.logger.Info("game finished",
			zap.String("session_id", e.state.ID),
			zap.String("winner", winner),
			zap.String("reason", reason),
			zap.Int("turn", e.state.Turn),
			zap.Int("emergency_cards", e.state.EmergencyCards),
		)
	}
	e.publish(Event{Type: EventGameFinished, PlayerID: winner, Action: reason})
}
