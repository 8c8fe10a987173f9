package ir

import (
	"fmt"

	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

// FallbackWinID names the win condition added when a document declares none.
const FallbackWinID = "first-to-empty-hand"

// canonicalActions are the actions with a known effect list.
var canonicalActions = map[string]func() ActionSpec{
	engine.ActionDraw: func() ActionSpec {
		return ActionSpec{
			Name:    engine.ActionDraw,
			Effects: []Effect{{Kind: EffDraw, Count: 1}},
		}
	},
	engine.ActionPass: func() ActionSpec {
		return ActionSpec{
			Name:    engine.ActionPass,
			Effects: []Effect{{Kind: EffEndTurn}},
		}
	},
	engine.ActionPlay: func() ActionSpec {
		return ActionSpec{
			Name:     engine.ActionPlay,
			Validate: []Predicate{HandCount(OpGT, 0)},
			Effects: []Effect{
				{Kind: EffCreateZone, Zone: engine.ZonePlayArea, ZoneType: schema.ZoneSequence},
				{Kind: EffMoveCard, From: SourceSelected, To: "zone:" + engine.ZonePlayArea},
			},
		}
	},
	engine.ActionDiscard: func() ActionSpec {
		return ActionSpec{
			Name:     engine.ActionDiscard,
			Validate: []Predicate{HandCount(OpGT, 0)},
			Effects:  []Effect{{Kind: EffMoveCard, From: SourceSelected, To: SourceDiscard, Count: 1}},
		}
	},
}

// EmitIR translates a document into IR. Anything that cannot be translated
// faithfully gets a conservative placeholder and an issue string.
func EmitIR(rules *schema.GameRules) (*GameIR, []string) {
	r := schema.Normalize(rules)
	var issues []string

	g := &GameIR{Name: r.Name}
	g.Setup = emitSetup(r, &issues)

	for _, name := range r.Actions {
		if build, ok := canonicalActions[name]; ok {
			g.Actions = append(g.Actions, build())
			continue
		}
		g.Actions = append(g.Actions, ActionSpec{Name: name, Effects: []Effect{}, Placeholder: true})
		issues = append(issues, fmt.Sprintf("action %q has no canonical effects; emitted an empty placeholder", name))
	}

	phases := r.TurnStructure.Phases
	for i, p := range phases {
		g.Phases = append(g.Phases, PhaseSpec{
			Name:    p.Name,
			Actions: append([]string(nil), p.Actions...),
			Next:    phases[(i+1)%len(phases)].Name,
		})
	}

	for i, wc := range r.WinConditions {
		g.WinConditions = append(g.WinConditions, emitWin(i, wc, &issues))
	}
	if len(g.WinConditions) == 0 {
		g.WinConditions = append(g.WinConditions, WinConditionIR{
			ID:          FallbackWinID,
			Description: "First player to empty their hand wins",
			Predicate:   HandCount(OpEQ, 0),
		})
		issues = append(issues, "no win conditions declared; added first-to-empty-hand")
	}
	return g, issues
}

func emitSetup(r *schema.GameRules, issues *[]string) []Effect {
	var out []Effect
	if layout := r.Setup.TableLayout; layout != nil {
		for _, z := range layout.Zones {
			out = append(out, Effect{Kind: EffCreateZone, Zone: z.ID, ZoneType: z.Type})
			if z.InitialCards > 0 {
				out = append(out, Effect{Kind: EffMoveCard, From: SourceDeck, To: "zone:" + z.ID, Count: z.InitialCards})
			}
		}
	}
	if n := r.Setup.CardsPerPlayer; n > 0 && len(r.Setup.CardsPerPlayerPosition) == 0 && len(r.Setup.RandomHandRange) == 0 {
		out = append(out, Effect{Kind: EffDraw, Player: PlayerEach, Count: n})
	}

	// Directives without an IR form are reported rather than dropped silently.
	s := r.Setup
	if len(s.CardsPerPlayerPosition) > 0 {
		*issues = append(*issues, "per-position dealing is not expressed in IR setup")
	}
	if len(s.RandomHandRange) > 0 {
		*issues = append(*issues, "random hand range is not expressed in IR setup")
	}
	if s.ProgressiveDealing != nil {
		*issues = append(*issues, "progressive dealing is not expressed in IR setup")
	}
	return out
}

func emitWin(i int, wc schema.WinCondition, issues *[]string) WinConditionIR {
	w := WinConditionIR{
		ID:          fmt.Sprintf("%s-%d", wc.Type, i),
		Description: wc.Description,
	}
	placeholder := func(format string, args ...any) WinConditionIR {
		w.Predicate = Never()
		w.Placeholder = true
		*issues = append(*issues, fmt.Sprintf("win condition %s: ", w.ID)+fmt.Sprintf(format, args...))
		return w
	}

	switch wc.Type {
	case schema.WinFirstToEmpty:
		w.Predicate = HandCount(OpEQ, 0)
	case schema.WinHighestScore:
		target, ok := wc.TargetNumber()
		if !ok || target <= 0 {
			return placeholder("highest_score without a numeric target")
		}
		w.Predicate = ScoreCompare(OpGE, target)
	case schema.WinSpecificCards:
		patterns, ok := wc.TargetPatterns()
		if !ok {
			return placeholder("specific_cards target is malformed")
		}
		args := make([]Predicate, len(patterns))
		for j, pat := range patterns {
			args[j] = HasCard(pat)
		}
		w.Predicate = And(args...)
	case schema.WinLowestScore:
		return placeholder("lowest_score is decided at exhaustion and has no predicate form")
	case schema.WinCustom:
		if name, ok := engine.RecognizeCustomWin(wc.Description); ok {
			return placeholder("custom description matches engine rule %q but has no predicate form", name)
		}
		return placeholder("custom description %q is not recognised", wc.Description)
	default:
		return placeholder("type %q has no predicate form", wc.Type)
	}
	return w
}
