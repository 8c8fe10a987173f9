package engine

import (
	"fmt"

	"go.uber.org/zap"
)

// flip turns a table card face up. Two flipped cards of the same rank are a
// pair and leave the table; a mismatch turns both back after RevertDelay.
func (e *Engine) flip(p *Player, cardID string) string {
	_, c := e.state.TableCard(cardID)
	e.scheduler.Cancel(cardID)
	delete(e.peeked, cardID)
	c.FaceUp = true
	e.publish(Event{Type: EventCardRevealed, PlayerID: p.ID, CardID: c.ID, Action: ActionFlip})
	e.noteReveal(p, c)

	if len(e.flipped) == 0 {
		e.flipped = append(e.flipped, c)
		return fmt.Sprintf("%s flips %s", p.Name, c)
	}

	first := e.flipped[0]
	e.flipped = nil
	if first.Rank == c.Rank {
		p.Score += e.opts.PairPoints
		e.mustMove(first.ID, Location{Kind: LocDiscard})
		e.mustMove(c.ID, Location{Kind: LocDiscard})
		return fmt.Sprintf("%s finds a pair of %s", p.Name, c.Rank)
	}
	e.scheduleRevert(first.ID)
	e.scheduleRevert(c.ID)
	return fmt.Sprintf("%s flips %s, no match", p.Name, c)
}

// peek shows a table card for PeekDelay at a score cost.
func (e *Engine) peek(p *Player, cardID string) string {
	_, c := e.state.TableCard(cardID)
	p.Score -= e.opts.PeekCost
	c.FaceUp = true
	e.peeked[cardID] = true
	e.publish(Event{Type: EventCardRevealed, PlayerID: p.ID, CardID: c.ID, Action: ActionPeek})
	e.scheduler.Schedule(cardID, e.opts.PeekDelay, func() {
		e.hide(cardID, ActionPeek)
	})
	return fmt.Sprintf("%s peeks at a card", p.Name)
}

func (e *Engine) scheduleRevert(cardID string) {
	e.scheduler.Schedule(cardID, e.opts.RevertDelay, func() {
		e.hide(cardID, ActionFlip)
	})
}

// hide is the deferred half of flip and peek. It does nothing when the session
// is over or the card has left the table or is already face down.
func (e *Engine) hide(cardID, cause string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status == StatusFinished {
		return
	}
	_, c := e.state.TableCard(cardID)
	if c == nil || !c.FaceUp {
		return
	}
	c.FaceUp = false
	delete(e.peeked, cardID)
	for i, f := range e.flipped {
		if f.ID == cardID {
			e.flipped = append(e.flipped[:i], e.flipped[i+1:]...)
			break
		}
	}
	if e.logger != nil {
		e.logger.Debug("card turned face down",
			zap.String("session_id", e.state.ID),
			zap.String("card_id", cardID),
			zap.String("cause", cause),
		)
	}
	e.publish(Event{Type: EventCardHidden, CardID: cardID, Action: cause})
}
