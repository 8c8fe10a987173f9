package engine

import "fmt"

// wager applies a betting action that validateBetting already accepted.
func (e *Engine) wager(p *Player, action, target string) string {
	switch action {
	case ActionCheck:
		return p.Name + " checks"
	case ActionCall:
		owed := e.state.CurrentBet - p.Bet
		if owed > p.Chips {
			owed = p.Chips
		}
		e.commitChips(p, owed)
		return fmt.Sprintf("%s calls %d", p.Name, owed)
	}

	amount := e.betAmount(target)
	newBet := e.state.CurrentBet + amount
	e.commitChips(p, newBet-p.Bet)
	e.state.CurrentBet = newBet
	if action == ActionRaise {
		return fmt.Sprintf("%s raises to %d", p.Name, newBet)
	}
	return fmt.Sprintf("%s bets %d", p.Name, newBet)
}

func (e *Engine) commitChips(p *Player, n int) {
	if n <= 0 {
		return
	}
	p.Chips -= n
	p.Bet += n
	e.state.Pot += n
}

func (e *Engine) fold(p *Player) string {
	p.Folded = true
	e.publish(Event{Type: EventPlayerOut, PlayerID: p.ID, Action: ActionFold})
	return p.Name + " folds"
}

// awardPot pays the pot to the winner, if any.
func (e *Engine) awardPot(winnerID string) {
	if e.state.Pot == 0 {
		return
	}
	if w := e.state.Player(winnerID); w != nil {
		w.Chips += e.state.Pot
		e.state.Pot = 0
	}
}
