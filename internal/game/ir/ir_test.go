package ir

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

func deckOf(ids ...string) []*cards.Card {
	out := make([]*cards.Card, 0, len(ids))
	for _, id := range ids {
		parts := strings.SplitN(id, "-", 2)
		rank, _ := cards.ParseRank(parts[0])
		suit, _ := cards.ParseSuit(parts[1])
		out = append(out, cards.NewCard(suit, rank))
	}
	return out
}

func shedRules() *schema.GameRules {
	return &schema.GameRules{
		Name:    "Shed",
		Players: schema.PlayerRules{Min: 2, Max: 2},
		Setup:   schema.SetupRules{CardsPerPlayer: 2},
		TurnStructure: schema.TurnStructure{Phases: []schema.Phase{
			{Name: "main", Actions: []string{"draw", "discard", "pass"}},
		}},
		WinConditions: []schema.WinCondition{{Type: schema.WinFirstToEmpty}},
	}
}

func hasIssue(issues []string, fragment string) bool {
	for _, i := range issues {
		if strings.Contains(i, fragment) {
			return true
		}
	}
	return false
}

func TestEmitAddsFallbackWin(t *testing.T) {
	rules := shedRules()
	rules.WinConditions = nil

	g, issues := EmitIR(rules)
	require.Len(t, g.WinConditions, 1)
	assert.Equal(t, FallbackWinID, g.WinConditions[0].ID)
	assert.Equal(t, HandCount(OpEQ, 0), g.WinConditions[0].Predicate)
	assert.True(t, hasIssue(issues, "no win conditions"))
}

func TestEmitCanonicalActions(t *testing.T) {
	rules := shedRules()
	rules.Actions = []string{"play", "knock"}

	g, issues := EmitIR(rules)

	draw, ok := g.Action("draw")
	require.True(t, ok)
	assert.Equal(t, []Effect{{Kind: EffDraw, Count: 1}}, draw.Effects)

	pass, ok := g.Action("pass")
	require.True(t, ok)
	assert.Equal(t, EffEndTurn, pass.Effects[0].Kind)

	play, ok := g.Action("play")
	require.True(t, ok)
	assert.Equal(t, EffMoveCard, play.Effects[1].Kind)
	assert.Equal(t, SourceSelected, play.Effects[1].From)

	knock, ok := g.Action("knock")
	require.True(t, ok)
	assert.True(t, knock.Placeholder)
	assert.Empty(t, knock.Effects)
	assert.True(t, hasIssue(issues, `"knock"`))
}

func TestEmitWinConditions(t *testing.T) {
	rules := shedRules()
	rules.WinConditions = []schema.WinCondition{
		{Type: schema.WinHighestScore, Target: 21},
		{Type: schema.WinSpecificCards, Target: []any{"A-spades", "K"}},
		{Type: schema.WinSpecificCards, Target: 5},
		{Type: schema.WinLowestScore},
		{Type: schema.WinCustom, Description: "Draw a black card to win"},
		{Type: schema.WinCustom, Description: "Be the most charming player"},
	}

	g, issues := EmitIR(rules)
	require.Len(t, g.WinConditions, 6)

	assert.Equal(t, ScoreCompare(OpGE, 21), g.WinConditions[0].Predicate)
	assert.Equal(t, And(HasCard("A-spades"), HasCard("K")), g.WinConditions[1].Predicate)
	for _, w := range g.WinConditions[2:] {
		assert.True(t, w.Placeholder, w.ID)
		assert.Equal(t, Never(), w.Predicate, w.ID)
	}
	assert.True(t, hasIssue(issues, "malformed"))
	assert.True(t, hasIssue(issues, "lowest_score"))
	assert.True(t, hasIssue(issues, `"black_card"`))
	assert.True(t, hasIssue(issues, "not recognised"))
}

func TestEmittedTemplatesValidate(t *testing.T) {
	for _, name := range schema.TemplateNames() {
		rules, err := schema.Template(name)
		require.NoError(t, err)
		g, _ := EmitIR(rules)
		ok, issues := ValidateIR(g)
		assert.True(t, ok, "%s: %v", name, issues)
	}
}

func TestValidateIRRejectsBrokenPrograms(t *testing.T) {
	g := &GameIR{
		Actions: []ActionSpec{{Name: "draw", Effects: []Effect{{Kind: EffLoop, Effects: []Effect{{Kind: EffDraw}}}}}},
		Phases:  []PhaseSpec{{Name: "main", Actions: []string{"draw", "shout"}, Next: "nowhere"}},
	}
	ok, issues := ValidateIR(g)
	assert.False(t, ok)
	assert.True(t, hasIssue(issues, `undeclared action "shout"`))
	assert.True(t, hasIssue(issues, "no win conditions"))
	assert.True(t, hasIssue(issues, "loop without a positive max"))
	assert.True(t, hasIssue(issues, `unknown phase "nowhere"`))

	ok, issues = ValidateIR(nil)
	assert.False(t, ok)
	assert.NotEmpty(t, issues)
}

func newHost() *MemoryHost {
	h := NewMemoryHost([]string{"a", "b"}, deckOf("2-hearts", "3-hearts", "4-hearts", "5-hearts", "6-hearts", "7-hearts"), "main")
	h.Players[0].Hand = deckOf("A-spades", "K-clubs")
	h.Players[1].Score = 12
	h.Flags["lit"] = true
	return h
}

func TestPredicates(t *testing.T) {
	r := NewRegistry()
	h := newHost()

	cases := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"hand count", HandCount(OpEQ, 2), true},
		{"hand count of other", Predicate{Kind: PredHandCount, Player: "b", Op: OpEQ, Value: 0}, true},
		{"has card", HasCard("A-spades"), true},
		{"has rank", HasCard("Q"), false},
		{"score any", Predicate{Kind: PredScoreCompare, Player: PlayerAny, Op: OpGE, Value: 10}, true},
		{"score self", ScoreCompare(OpGE, 10), false},
		{"zone missing", ZoneCount("pile", OpEQ, 0), true},
		{"flag", FlagSet("lit"), true},
		{"flag unset", FlagSet("dark"), false},
		{"phase", PhaseIs("main"), true},
		{"winner", WinnerExists(), false},
		{"and", And(HasCard("K"), FlagSet("lit")), true},
		{"or", Or(Never(), FlagSet("lit")), true},
		{"not", Not(Always()), false},
		{"unknown kind", Predicate{Kind: "telepathy"}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, r.Evaluate(tc.p, h, "a"), tc.name)
	}
	assert.Len(t, h.Players[0].Hand, 2, "evaluation has no side effects")
	assert.Len(t, h.Deck, 6)
}

func TestExecutorControlFlow(t *testing.T) {
	r := NewRegistry()

	t.Run("conditional", func(t *testing.T) {
		h := newHost()
		cond := FlagSet("lit")
		ctx := &Context{Host: h, Subject: "a"}
		require.NoError(t, r.Execute([]Effect{{
			Kind: EffConditional, If: &cond,
			Then: []Effect{{Kind: EffModifyScore, Delta: 5}},
			Else: []Effect{{Kind: EffModifyScore, Delta: -5}},
		}}, ctx))
		assert.Equal(t, 5, h.Score("a"))
	})

	t.Run("loop stops at max", func(t *testing.T) {
		h := newHost()
		ctx := &Context{Host: h, Subject: "a"}
		require.NoError(t, r.Execute([]Effect{{Kind: EffLoop, Max: 3, Effects: []Effect{{Kind: EffDraw}}}}, ctx))
		assert.Equal(t, 5, h.HandCount("a"))
	})

	t.Run("loop stops when condition fails", func(t *testing.T) {
		h := newHost()
		while := HandCount(OpLT, 4)
		ctx := &Context{Host: h, Subject: "a"}
		require.NoError(t, r.Execute([]Effect{{Kind: EffLoop, Max: 10, While: &while, Effects: []Effect{{Kind: EffDraw}}}}, ctx))
		assert.Equal(t, 4, h.HandCount("a"))
	})

	t.Run("loop without max", func(t *testing.T) {
		ctx := &Context{Host: newHost(), Subject: "a"}
		err := r.Execute([]Effect{{Kind: EffLoop, Effects: []Effect{{Kind: EffDraw}}}}, ctx)
		assert.True(t, errors.Is(err, ErrUnboundedLoop))
	})

	t.Run("end turn halts the list", func(t *testing.T) {
		h := newHost()
		ctx := &Context{Host: h, Subject: "a"}
		require.NoError(t, r.Execute([]Effect{
			{Kind: EffComposite, Effects: []Effect{{Kind: EffDraw}, {Kind: EffEndTurn}, {Kind: EffDraw}}},
			{Kind: EffDraw},
		}, ctx))
		assert.True(t, ctx.EndTurn)
		assert.Equal(t, 3, h.HandCount("a"))
	})

	t.Run("end game names a winner", func(t *testing.T) {
		ctx := &Context{Host: newHost(), Subject: "a"}
		require.NoError(t, r.Execute([]Effect{{Kind: EffEndGame, Player: PlayerSelf}, {Kind: EffDraw}}, ctx))
		assert.True(t, ctx.EndGame)
		assert.Equal(t, "a", ctx.Winner)
	})

	t.Run("unknown effect", func(t *testing.T) {
		ctx := &Context{Host: newHost(), Subject: "a"}
		err := r.Execute([]Effect{{Kind: "summon"}}, ctx)
		assert.True(t, errors.Is(err, ErrUnknownEffect))
	})

	t.Run("nesting is bounded", func(t *testing.T) {
		e := Effect{Kind: EffDraw}
		for i := 0; i < DefaultMaxDepth+2; i++ {
			e = Effect{Kind: EffComposite, Effects: []Effect{e}}
		}
		ctx := &Context{Host: newHost(), Subject: "a"}
		assert.True(t, errors.Is(r.Execute([]Effect{e}, ctx), ErrTooDeep))
	})

	t.Run("moves and reveals", func(t *testing.T) {
		h := newHost()
		ctx := &Context{Host: h, Subject: "a", Selected: []string{"K-clubs"}}
		require.NoError(t, r.Execute([]Effect{
			{Kind: EffCreateZone, Zone: "pile", ZoneType: schema.ZonePile},
			{Kind: EffMoveCard, From: SourceSelected, To: "zone:pile"},
			{Kind: EffReveal, From: "zone:pile"},
			{Kind: EffMoveCard, From: SourceDeck, To: SourceDiscard, Count: 2},
			{Kind: EffSetFlag, Flag: "moved", Value: true},
		}, ctx))
		require.Len(t, h.Zones["pile"], 1)
		assert.True(t, h.Zones["pile"][0].FaceUp)
		assert.Len(t, h.Discard, 2)
		assert.Len(t, h.Deck, 4)
		assert.True(t, h.Flag("moved"))
	})

	t.Run("eliminate each", func(t *testing.T) {
		h := newHost()
		ctx := &Context{Host: h, Subject: "a"}
		require.NoError(t, r.Execute([]Effect{{Kind: EffEliminatePlayer, Player: "b"}}, ctx))
		assert.True(t, h.Eliminated("b"))
		assert.False(t, h.Eliminated("a"))
	})
}

func TestRegistryAcceptsCustomEffects(t *testing.T) {
	r := NewRegistry()
	r.RegisterEffect("double", func(_ *Registry, _ Effect, ctx *Context) error {
		return ctx.Host.AdjustScore(ctx.Subject, ctx.Host.Score(ctx.Subject))
	})
	h := newHost()
	ctx := &Context{Host: h, Subject: "b"}
	require.NoError(t, r.Execute([]Effect{{Kind: "double"}}, ctx))
	assert.Equal(t, 24, h.Score("b"))

	g := &GameIR{
		Actions:       []ActionSpec{{Name: "double", Effects: []Effect{{Kind: "double"}}}},
		Phases:        []PhaseSpec{{Name: "main", Actions: []string{"double"}}},
		WinConditions: []WinConditionIR{{ID: "w", Predicate: Never()}},
	}
	ok, _ := r.Validate(g)
	assert.True(t, ok)
	ok, _ = ValidateIR(g)
	assert.False(t, ok)
}

func TestRuntimeOnMemoryHost(t *testing.T) {
	g, _ := EmitIR(shedRules())
	h := NewMemoryHost([]string{"a", "b"}, deckOf("2-hearts", "3-hearts", "4-hearts", "5-hearts", "6-hearts"), "main")
	rt := NewRuntime(g, h, zaptest.NewLogger(t))

	require.True(t, rt.RunSetup().Success)
	assert.Equal(t, 2, h.HandCount("a"))
	assert.Equal(t, 2, h.HandCount("b"))

	res := rt.ExecuteAction("knock")
	assert.False(t, res.Success)
	assert.Equal(t, "undeclared action", res.Message)

	res = rt.ExecuteAction("discard", h.Players[0].Hand[0].ID)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "b", h.CurrentPlayerID())

	res = rt.ExecuteAction("pass")
	require.True(t, res.Success, res.Message)
	assert.True(t, res.EndTurn)
	assert.Equal(t, "a", h.CurrentPlayerID())

	res = rt.ExecuteAction("discard", h.Players[0].Hand[0].ID)
	require.True(t, res.Success, res.Message)
	assert.True(t, res.EndGame)
	assert.Equal(t, "a", res.Winner)
	assert.Equal(t, "a", h.Winner())
	assert.Len(t, h.Discard, 2)

	res = rt.ExecuteAction("draw")
	assert.False(t, res.Success)
	assert.Equal(t, "game is over", res.Message)
}

func TestRuntimeRejectsWithoutSideEffects(t *testing.T) {
	g, _ := EmitIR(shedRules())
	h := NewMemoryHost([]string{"a", "b"}, deckOf("2-hearts"), "main")
	rt := NewRuntime(g, h, nil)

	res := rt.ExecuteAction("discard")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "precondition failed")
	assert.Equal(t, "a", h.CurrentPlayerID())
	assert.Len(t, h.Deck, 1)
}

func TestSelectedCardsMustBeInHand(t *testing.T) {
	rules := shedRules()
	rules.TurnStructure.Phases[0].Actions = append(rules.TurnStructure.Phases[0].Actions, "play")
	g, _ := EmitIR(rules)
	h := NewMemoryHost([]string{"a", "b"}, deckOf("2-hearts", "3-hearts", "4-hearts", "5-hearts", "6-hearts"), "main")
	rt := NewRuntime(g, h, zaptest.NewLogger(t))
	require.True(t, rt.RunSetup().Success)

	res := rt.ExecuteAction("discard", h.Players[1].Hand[0].ID)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "not in a's hand")
	assert.Equal(t, 2, h.HandCount("a"))
	assert.Equal(t, 2, h.HandCount("b"))
	assert.Equal(t, "a", h.CurrentPlayerID())

	res = rt.ExecuteAction("discard", h.Deck[0].ID)
	assert.False(t, res.Success)
	assert.Len(t, h.Deck, 1)
	assert.Empty(t, h.Discard)

	res = rt.ExecuteAction("play", h.Players[0].Hand[0].ID, h.Players[1].Hand[0].ID)
	assert.False(t, res.Success)
	assert.Equal(t, 2, h.HandCount("a"))
	assert.NotContains(t, h.Zones, engine.ZonePlayArea)

	ctx := &Context{Host: h, Subject: "a", Selected: []string{"9-diamonds"}}
	err := NewRegistry().Execute([]Effect{{Kind: EffMoveCard, From: SourceSelected, To: SourceDiscard}}, ctx)
	assert.True(t, errors.Is(err, ErrNotOwned))
}

func TestRuntimePhaseExitCondition(t *testing.T) {
	exit := HandCount(OpGE, 2)
	g := &GameIR{
		Actions: []ActionSpec{
			{Name: "draw", Effects: []Effect{{Kind: EffDraw}}},
			{Name: "pass", Effects: []Effect{{Kind: EffEndTurn}}},
		},
		Phases: []PhaseSpec{
			{Name: "gather", Actions: []string{"draw"}, ExitWhen: &exit, Next: "rest"},
			{Name: "rest", Actions: []string{"pass"}, OnEnter: []Effect{{Kind: EffModifyScore, Delta: 1}}, Next: "gather"},
		},
		WinConditions: []WinConditionIR{{ID: "never", Predicate: Never()}},
	}
	h := NewMemoryHost([]string{"a"}, deckOf("2-hearts", "3-hearts", "4-hearts"), "gather", "rest")
	rt := NewRuntime(g, h, nil)

	require.True(t, rt.ExecuteAction("draw").Success)
	assert.Equal(t, "gather", h.PhaseName())

	require.True(t, rt.ExecuteAction("draw").Success)
	assert.Equal(t, "rest", h.PhaseName())
	assert.Equal(t, 1, h.Score("a"))

	res := rt.ExecuteAction("draw")
	assert.False(t, res.Success)
}

func TestRuntimeOnEngine(t *testing.T) {
	e := engine.New(shedRules(), zaptest.NewLogger(t), engine.Options{Seed: 3})
	for _, name := range []string{"A", "B"} {
		_, err := e.AddPlayer(name, engine.KindHuman)
		require.NoError(t, err)
	}
	require.NoError(t, e.StartGame())

	g, issues := EmitIR(e.Rules())
	assert.Empty(t, issues)
	rt := NewRuntime(g, e, zaptest.NewLogger(t))

	first := e.CurrentPlayerID()
	before := e.HandCount(first)
	res := rt.ExecuteAction("draw")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, before+1, e.HandCount(first))
	assert.NotEqual(t, first, e.CurrentPlayerID(), "single phase wraps into the next turn")

	res = rt.ExecuteAction("pass")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, first, e.CurrentPlayerID())

	hand := e.SelectCards(engine.Location{Kind: engine.LocHand, PlayerID: first}, 1)
	require.Len(t, hand, 1)
	res = rt.ExecuteAction("discard", hand...)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, before, e.HandCount(first))
	assert.Equal(t, 52, e.CardCount())
}
