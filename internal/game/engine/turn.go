package engine

import (
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

// TurnManager walks the declared phase list and counts turns and rounds.
type TurnManager struct {
	phases      []schema.Phase
	phaseIndex  int
	turnNumber  int
	roundNumber int
}

// NewTurnManager starts at turn 1, round 1, first phase.
func NewTurnManager(phases []schema.Phase) *TurnManager {
	if len(phases) == 0 {
		phases = []schema.Phase{{Name: schema.DefaultPhaseName}}
	}
	return &TurnManager{
		phases:      phases,
		turnNumber:  1,
		roundNumber: 1,
	}
}

// CurrentPhase returns the phase currently in progress.
func (tm *TurnManager) CurrentPhase() schema.Phase {
	return tm.phases[tm.phaseIndex]
}

// PhaseIndex returns the zero-based index of the current phase.
func (tm *TurnManager) PhaseIndex() int {
	return tm.phaseIndex
}

// TurnNumber returns the current turn number (1-based).
func (tm *TurnManager) TurnNumber() int {
	return tm.turnNumber
}

// RoundNumber returns the current round number (1-based).
func (tm *TurnManager) RoundNumber() int {
	return tm.roundNumber
}

// LastPhase reports whether the current phase is the final one of the turn.
func (tm *TurnManager) LastPhase() bool {
	return tm.phaseIndex+1 >= len(tm.phases)
}

// AdvancePhase moves to the next phase. It reports true when the last phase
// completed; the caller then ends the turn.
func (tm *TurnManager) AdvancePhase() bool {
	if tm.LastPhase() {
		return true
	}
	tm.phaseIndex++
	return false
}

// NextTurn resets to the first phase and increments the turn counter, and the
// round counter as well when newRound is set.
func (tm *TurnManager) NextTurn(newRound bool) {
	tm.phaseIndex = 0
	tm.turnNumber++
	if newRound {
		tm.roundNumber++
	}
}

// Allows reports whether the current phase lists the action.
func (tm *TurnManager) Allows(action string) bool {
	return tm.CurrentPhase().Allows(action)
}
