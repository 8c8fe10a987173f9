package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

func rulesWith(description string, special ...string) *schema.GameRules {
	return schema.Normalize(&schema.GameRules{
		Name:         "Test Game",
		Description:  description,
		Setup:        schema.SetupRules{CardsPerPlayer: 5},
		Actions:      []string{"draw", "pass"},
		SpecialRules: special,
	})
}

func TestRandomHandRange(t *testing.T) {
	out := Enrich(rulesWith("Each player gets a hand size that is random between 2 and 5 cards."))
	assert.Equal(t, []int{2, 5}, out.Setup.RandomHandRange)
	assert.Equal(t, 0, out.Setup.CardsPerPlayer)

	swapped := Enrich(rulesWith("Deal randomly 6 to 3 cards."))
	assert.Equal(t, []int{3, 6}, swapped.Setup.RandomHandRange)

	none := Enrich(rulesWith("Deal five cards."))
	assert.Empty(t, none.Setup.RandomHandRange)
	assert.Equal(t, 5, none.Setup.CardsPerPlayer)
}

func TestProgressiveDealing(t *testing.T) {
	out := Enrich(rulesWith("Players receive two more cards each round until someone draws an ace."))
	require.NotNil(t, out.Setup.ProgressiveDealing)
	assert.Equal(t, 2, out.Setup.ProgressiveDealing.CardsPerRound)
	assert.Equal(t, "A", out.Setup.ProgressiveDealing.TargetRank)

	noRank := Enrich(rulesWith("Deal 1 card per round."))
	require.NotNil(t, noRank.Setup.ProgressiveDealing)
	assert.Equal(t, 1, noRank.Setup.ProgressiveDealing.CardsPerRound)
	assert.Empty(t, noRank.Setup.ProgressiveDealing.TargetRank)
}

func TestSharedPile(t *testing.T) {
	out := Enrich(rulesWith("All cards start in one pile in the middle of the table."))
	assert.True(t, out.Setup.SharedPile)
	assert.Equal(t, 0, out.Setup.CardsPerPlayer)
	assert.Contains(t, out.Actions, "flip")
	assert.Contains(t, out.Actions, "draw")
	assert.True(t, out.TurnStructure.Phases[0].Allows("flip"))
}

func TestEliminationRank(t *testing.T) {
	out := Enrich(rulesWith("Take turns revealing cards.", "If a player fails to reveal a king, they are eliminated."))
	assert.Equal(t, "K", out.Setup.EliminationRank)
	assert.Contains(t, out.Actions, "reveal")

	unrelated := Enrich(rulesWith("Reveal a king. Nobody is eliminated early", "You cannot reveal a queen twice."))
	assert.Empty(t, unrelated.Setup.EliminationRank)
}

func TestTargetSum(t *testing.T) {
	out := Enrich(rulesWith("Play cards so your total reaches exactly 31."))
	assert.Equal(t, 31, out.Setup.TargetSum)
	assert.Contains(t, out.Actions, "play")
	require.Len(t, out.WinConditions, 1)
	assert.Equal(t, schema.WinHighestScore, out.WinConditions[0].Type)
	n, ok := out.WinConditions[0].TargetNumber()
	assert.True(t, ok)
	assert.Equal(t, 31, n)
}

func TestTargetSumKeepsExistingTarget(t *testing.T) {
	r := rulesWith("Add up your cards to 50.")
	r.WinConditions = []schema.WinCondition{{Type: schema.WinHighestScore, Target: 40}}
	out := Enrich(r)
	assert.Equal(t, 50, out.Setup.TargetSum)
	require.Len(t, out.WinConditions, 1)
}

func TestSandboxAndBotOnly(t *testing.T) {
	out := Enrich(rulesWith("A sandbox table. Bots only."))
	assert.True(t, out.Setup.Sandbox)
	assert.True(t, out.Setup.BotOnly)
	for _, a := range []string{"draw", "play", "discard", "pass"} {
		assert.Contains(t, out.Actions, a)
	}
}

func TestRevealWinCardsFindsEveryPhrase(t *testing.T) {
	out := Enrich(rulesWith(
		"Reveal the queen of hearts to win.",
		"A player who reveals the ace of spades or reveals the 7 of clubs also wins.",
	))
	assert.Equal(t, []string{"Q-hearts", "A-spades", "7-clubs"}, out.Setup.RevealWinCards)
	require.True(t, out.HasWinType(schema.WinRevealCard))
	assert.Contains(t, out.Actions, "flip")

	var target []string
	for _, w := range out.WinConditions {
		if w.Type == schema.WinRevealCard {
			target, _ = w.TargetPatterns()
		}
	}
	assert.Equal(t, out.Setup.RevealWinCards, target)
}

func TestRevealNeedsWinningSentence(t *testing.T) {
	out := Enrich(rulesWith("Reveal the queen of hearts first."))
	assert.Empty(t, out.Setup.RevealWinCards)
}

func TestPipelineIdempotent(t *testing.T) {
	in := rulesWith(
		"Hand size is random between 2 and 4. Players receive one card each round until a king appears.",
		"All cards start in one pile.",
		"If you fail to reveal an ace you are out of the game.",
		"Sum your cards to 21.",
		"Sandbox practice mode, bots only.",
		"Reveal the jack of diamonds to win.",
	)
	p := NewPipeline(zaptest.NewLogger(t))
	once, applied := p.Run(in)
	assert.Len(t, applied, len(DefaultTransforms))

	twice, appliedAgain := p.Run(once)
	assert.Empty(t, appliedAgain)
	assert.Equal(t, once, twice)
}

func TestPipelineDoesNotMutateInput(t *testing.T) {
	in := rulesWith("All cards start in one pile.")
	before := in.Clone()
	_ = Enrich(in)
	assert.Equal(t, before, in)
}

func TestCustomTransformList(t *testing.T) {
	p := NewPipeline(nil).WithTransforms(Transform{"bot_only", BotOnly})
	out, applied := p.Run(rulesWith("All cards start in one pile. Bots only."))
	assert.Equal(t, []string{"bot_only"}, applied)
	assert.False(t, out.Setup.SharedPile)
}
