package engine

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
)

// drawCard yields the next card and never fails. Sources in order: the shared
// pile, the deck, the discard pile reshuffled into the deck, and finally a
// minted emergency card.
func (e *Engine) drawCard() *cards.Card {
	if pile := e.state.Zone(ZoneCentral); pile != nil && len(pile.Cards) > 0 {
		c := pile.Cards[len(pile.Cards)-1]
		pile.Cards = pile.Cards[:len(pile.Cards)-1]
		e.forget(c.ID)
		return c
	}
	if e.state.Deck.Empty() && len(e.state.Discard) > 0 {
		e.reshuffleDiscard()
	}
	if c := e.state.Deck.DealOne(); c != nil {
		return c
	}
	return e.mintEmergencyCard()
}

func (e *Engine) reshuffleDiscard() {
	n := len(e.state.Discard)
	for _, c := range e.state.Discard {
		c.FaceUp = false
	}
	e.state.Deck.AddToBottom(e.state.Discard...)
	e.state.Discard = nil
	e.state.Deck.Shuffle()
	if e.logger != nil {
		e.logger.Info("discard pile reshuffled into deck",
			zap.String("session_id", e.state.ID),
			zap.Int("cards", n),
		)
	}
	e.publish(Event{Type: EventDeckReshuffled, Amount: n})
}

// mintEmergencyCard creates a card out of nothing. It is the only operation that
// changes the card total.
func (e *Engine) mintEmergencyCard() *cards.Card {
	suit := cards.Suits[e.rng.Intn(len(cards.Suits))]
	rank := cards.Ranks[e.rng.Intn(len(cards.Ranks))]
	c := cards.NewCard(suit, rank)
	c.ID = "EMERGENCY-" + uuid.NewString()
	e.state.EmergencyCards++
	if e.logger != nil {
		e.logger.Warn("deck and discard exhausted, minted emergency card",
			zap.String("session_id", e.state.ID),
			zap.String("card_id", c.ID),
			zap.Int("emergency_cards", e.state.EmergencyCards),
		)
	}
	e.publish(Event{Type: EventEmergencyCard, CardID: c.ID})
	return c
}

// dealTo gives n cards to a player through drawCard.
func (e *Engine) dealTo(p *Player, n int) []*cards.Card {
	drawn := make([]*cards.Card, 0, n)
	for i := 0; i < n; i++ {
		c := e.drawCard()
		c.FaceUp = false
		p.Hand = append(p.Hand, c)
		drawn = append(drawn, c)
	}
	e.rescore(p)
	return drawn
}

// dealProgressive runs at the start of every new round.
func (e *Engine) dealProgressive() {
	pd := e.rules.Setup.ProgressiveDealing
	if pd == nil || pd.CardsPerRound <= 0 || e.progressiveStopped {
		return
	}
	for _, p := range e.state.Players {
		if p.Out() {
			continue
		}
		for _, c := range e.dealFromStock(p, pd.CardsPerRound) {
			if pd.TargetRank != "" && string(c.Rank) == pd.TargetRank {
				e.progressiveStopped = true
			}
		}
	}
	if e.progressiveStopped && e.logger != nil {
		e.logger.Debug("progressive dealing stopped",
			zap.String("session_id", e.state.ID),
			zap.String("rank", pd.TargetRank),
		)
	}
}

// dealFromStock deals from the deck (reshuffling discard) without minting.
func (e *Engine) dealFromStock(p *Player, n int) []*cards.Card {
	var dealt []*cards.Card
	for i := 0; i < n; i++ {
		if e.state.Deck.Empty() && len(e.state.Discard) > 0 {
			e.reshuffleDiscard()
		}
		c := e.state.Deck.DealOne()
		if c == nil {
			break
		}
		p.Hand = append(p.Hand, c)
		dealt = append(dealt, c)
	}
	e.rescore(p)
	return dealt
}
