// Package enrich promotes recognised free-text phrasings in a game document into
// structured setup directives.
package enrich

import (
	"go.uber.org/zap"

	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

// Transform rewrites rules in place and reports whether it changed anything.
// Every transform must be idempotent on its own output.
type Transform struct {
	Name  string
	Apply func(rules *schema.GameRules) bool
}

// DefaultTransforms is the fixed order the pipeline runs in.
var DefaultTransforms = []Transform{
	{"random_hand_range", RandomHandRange},
	{"progressive_dealing", ProgressiveDealing},
	{"shared_pile", SharedPile},
	{"elimination_rank", EliminationRank},
	{"target_sum", TargetSum},
	{"sandbox", Sandbox},
	{"bot_only", BotOnly},
	{"reveal_win_cards", RevealWinCards},
}

// Pipeline applies transforms in order to a copy of the input.
type Pipeline struct {
	transforms []Transform
	logger     *zap.Logger
}

// NewPipeline builds a pipeline over DefaultTransforms.
func NewPipeline(logger *zap.Logger) *Pipeline {
	return &Pipeline{transforms: DefaultTransforms, logger: logger}
}

// WithTransforms returns a pipeline running the given list instead.
func (p *Pipeline) WithTransforms(transforms ...Transform) *Pipeline {
	return &Pipeline{transforms: transforms, logger: p.logger}
}

// Run returns an enriched copy of rules and the names of transforms that fired.
// The input is never modified.
func (p *Pipeline) Run(rules *schema.GameRules) (*schema.GameRules, []string) {
	out := schema.Normalize(rules)
	var applied []string
	for _, t := range p.transforms {
		if t.Apply(out) {
			applied = append(applied, t.Name)
			if p.logger != nil {
				p.logger.Debug("enrichment applied",
					zap.String("game", out.Name),
					zap.String("transform", t.Name),
				)
			}
		}
	}
	return out, applied
}

// Enrich runs the default pipeline without logging.
func Enrich(rules *schema.GameRules) *schema.GameRules {
	out, _ := NewPipeline(nil).Run(rules)
	return out
}
