package engine

import (
	"testing"

	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

func TestTurnManagerSequence(t *testing.T) {
	tm := NewTurnManager([]schema.Phase{
		{Name: "draw", Actions: []string{"draw"}},
		{Name: "play", Actions: []string{"play", "pass"}},
	})

	if tm.CurrentPhase().Name != "draw" {
		t.Fatalf("expected draw phase, got %s", tm.CurrentPhase().Name)
	}
	if !tm.Allows("draw") || tm.Allows("play") {
		t.Fatalf("draw phase should allow only draw")
	}
	if done := tm.AdvancePhase(); done {
		t.Fatalf("first advance should not complete the turn")
	}
	if tm.CurrentPhase().Name != "play" || tm.PhaseIndex() != 1 {
		t.Fatalf("expected play phase at index 1, got %s at %d", tm.CurrentPhase().Name, tm.PhaseIndex())
	}
	if done := tm.AdvancePhase(); !done {
		t.Fatalf("advancing past the last phase should complete the turn")
	}
}

func TestTurnManagerNextTurn(t *testing.T) {
	tm := NewTurnManager([]schema.Phase{{Name: "a"}, {Name: "b"}})
	tm.AdvancePhase()

	tm.NextTurn(false)
	if tm.TurnNumber() != 2 || tm.RoundNumber() != 1 {
		t.Fatalf("expected turn 2 round 1, got turn %d round %d", tm.TurnNumber(), tm.RoundNumber())
	}
	if tm.PhaseIndex() != 0 {
		t.Fatalf("expected phase reset to 0, got %d", tm.PhaseIndex())
	}

	tm.NextTurn(true)
	if tm.TurnNumber() != 3 || tm.RoundNumber() != 2 {
		t.Fatalf("expected turn 3 round 2, got turn %d round %d", tm.TurnNumber(), tm.RoundNumber())
	}
}

func TestTurnManagerDefaultPhase(t *testing.T) {
	tm := NewTurnManager(nil)
	if tm.CurrentPhase().Name != schema.DefaultPhaseName {
		t.Fatalf("expected default phase %q, got %q", schema.DefaultPhaseName, tm.CurrentPhase().Name)
	}
}
