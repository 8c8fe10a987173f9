package engine

import (
	"fmt"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

// battleEntry is a card committed to the battlefield and waiting for an
// opponent's card.
type battleEntry struct {
	playerID string
	cardID   string
}

// engage commits one card to the battlefield. When an opponent's card is
// already waiting there the higher card wins both.
func (e *Engine) engage(p *Player, action, cardID string) string {
	field := e.ensureZone(ZoneBattlefield, schema.ZoneCustom)
	field.AcceptsDrops = true
	c := p.Hand[p.HandIndex(cardID)]
	e.mustMove(cardID, Location{Kind: LocZone, ZoneID: field.ID})
	p.CardsPlayed++

	e.pruneBattle()
	for i, b := range e.battle {
		if b.playerID == p.ID {
			continue
		}
		e.battle = append(e.battle[:i], e.battle[i+1:]...)
		_, foeCard := e.state.TableCard(b.cardID)
		return e.resolveBattle(p, c, e.state.Player(b.playerID), foeCard)
	}
	e.battle = append(e.battle, battleEntry{playerID: p.ID, cardID: cardID})
	return fmt.Sprintf("%s commits %s (%s)", p.Name, c, action)
}

func (e *Engine) resolveBattle(p *Player, mine *cards.Card, foe *Player, theirs *cards.Card) string {
	a, b := combatStrength(mine), combatStrength(theirs)
	e.mustMove(mine.ID, Location{Kind: LocDiscard})
	e.mustMove(theirs.ID, Location{Kind: LocDiscard})
	switch {
	case a > b:
		p.Score += 2
		return fmt.Sprintf("%s's %s beats %s", p.Name, mine, theirs)
	case b > a:
		if foe != nil {
			foe.Score += 2
		}
		return fmt.Sprintf("%s's %s loses to %s", p.Name, mine, theirs)
	}
	return fmt.Sprintf("%s and %s tie", mine, theirs)
}

// pruneBattle drops entries whose card has left the battlefield.
func (e *Engine) pruneBattle() {
	field := e.state.Zone(ZoneBattlefield)
	kept := e.battle[:0]
	for _, b := range e.battle {
		if field != nil && field.Index(b.cardID) >= 0 && e.state.Player(b.playerID) != nil {
			kept = append(kept, b)
		}
	}
	e.battle = kept
}

// combatStrength ranks aces high.
func combatStrength(c *cards.Card) int {
	if c.Rank == cards.RankAce {
		return 14
	}
	return c.Rank.Value()
}
