package schema

import (
	"regexp"
	"strings"
)

// Tag is an archetype inferred from a game document.
type Tag string

const (
	TagCardRequest   Tag = "card_request"
	TagSequenceBuild Tag = "sequence_build"
	TagMemoryMatch   Tag = "memory_match"
	TagCombat        Tag = "combat"
	TagSuitBased     Tag = "suit_based"
	TagPileBased     Tag = "pile_based"
	TagScattered     Tag = "scattered"
	TagBetting       Tag = "betting"
)

// Layout is the table presentation inferred for a game.
type Layout string

const (
	LayoutNone      Layout = "none"
	LayoutSuitBased Layout = "suit-based"
	LayoutPile      Layout = "pile"
	LayoutSequence  Layout = "sequence"
	LayoutScattered Layout = "scattered"
	LayoutCustom    Layout = "custom"
)

// Pattern tags a document when Expr matches its free text.
type Pattern struct {
	Tag  Tag
	Expr *regexp.Regexp
}

// DifferenceRule recognises a phrase fixing the allowed gaps between
// consecutive cards of a sequence.
type DifferenceRule struct {
	Expr        *regexp.Regexp
	Differences []int
}

// DefaultPatterns is the archetype table used by Classify.
var DefaultPatterns = []Pattern{
	{TagCardRequest, regexp.MustCompile(`(?i)\bblackjack\b|\btwenty[- ]one\b|\bclosest? to 21\b|\bgo(ing)? bust\b|\bhit or stand\b`)},
	{TagSequenceBuild, regexp.MustCompile(`(?i)\bsequences?\b|\bin order\b|\bascending\b|\bdescending\b|\bconsecutive\b|\bbuild (up|down)\b|\bdiffer(s|ence)? (from|by)\b`)},
	{TagMemoryMatch, regexp.MustCompile(`(?i)\bmemory\b|\bconcentration\b|\bmatching pairs?\b|\bfind (the )?pairs?\b|\bflip (two|2) cards\b`)},
	{TagCombat, regexp.MustCompile(`(?i)\battack\b|\bdefend\b|\bbattles?\b|\bcombat\b|\bduel\b|\bwar\b`)},
	{TagSuitBased, regexp.MustCompile(`(?i)\bby suit\b|\bfoundations?\b|\bsuit piles?\b|\bfollow suit\b|\bone pile per suit\b`)},
	{TagPileBased, regexp.MustCompile(`(?i)\b(central|center|centre|shared|common|single|one) pile\b|\bpile in the (middle|center)\b`)},
	{TagScattered, regexp.MustCompile(`(?i)\bscattered\b|\bspread (out|face[- ]down)\b|\bface[- ]down (on the table|in a grid)\b|\bgrid\b`)},
	{TagBetting, regexp.MustCompile(`(?i)\bbet(s|ting)?\b|\bchips?\b|\bwagers?\b|\bthe pot\b`)},
}

// DefaultDifferenceRules covers the single numeric gap set that is recognised.
var DefaultDifferenceRules = []DifferenceRule{
	{regexp.MustCompile(`(?i)\b3\s*,\s*6\s*,?\s*(or|and)\s*9\b`), []int{3, 6, 9}},
}

// Classification is the cached result of classifying one document.
type Classification struct {
	Tags                []Tag  `json:"tags"`
	Layout              Layout `json:"layout"`
	SequenceDifferences []int  `json:"sequenceDifferences,omitempty"`
}

// Has reports whether the tag was inferred.
func (c Classification) Has(tag Tag) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Classifier maps documents to tags using swappable regex tables.
type Classifier struct {
	patterns    []Pattern
	differences []DifferenceRule
}

// NewClassifier builds a classifier. Nil tables select the defaults.
func NewClassifier(patterns []Pattern, differences []DifferenceRule) *Classifier {
	if patterns == nil {
		patterns = DefaultPatterns
	}
	if differences == nil {
		differences = DefaultDifferenceRules
	}
	return &Classifier{patterns: patterns, differences: differences}
}

var defaultClassifier = NewClassifier(nil, nil)

// Classify runs the default classifier.
func Classify(rules *GameRules) Classification {
	return defaultClassifier.Classify(rules)
}

// Classify combines text patterns with structural signals (dealer, betting
// configuration, declared actions and zones).
func (c *Classifier) Classify(rules *GameRules) Classification {
	var out Classification
	if rules == nil {
		out.Layout = LayoutNone
		return out
	}
	text := rules.FreeText()
	add := func(tag Tag) {
		if !out.Has(tag) {
			out.Tags = append(out.Tags, tag)
		}
	}

	for _, p := range c.patterns {
		if p.Expr.MatchString(text) {
			add(p.Tag)
		}
	}
	if rules.DealerEnabled() || strings.EqualFold(rules.Setup.HandScoring, "blackjack") ||
		(rules.HasAction("hit") && rules.HasAction("stand")) {
		add(TagCardRequest)
	}
	if rules.BettingEnabled() {
		add(TagBetting)
	}
	if rules.HasAction("flip") {
		add(TagMemoryMatch)
	}
	if rules.HasAction("attack") || rules.HasAction("defend") {
		add(TagCombat)
	}
	if rules.Setup.SharedPile {
		add(TagPileBased)
	}

	for _, d := range c.differences {
		if d.Expr.MatchString(text) {
			out.SequenceDifferences = append([]int(nil), d.Differences...)
			add(TagSequenceBuild)
			break
		}
	}

	out.Layout = c.layout(rules, out)
	return out
}

func (c *Classifier) layout(rules *GameRules, cls Classification) Layout {
	if l := rules.Setup.TableLayout; l != nil && l.Type != "" {
		switch Layout(strings.ToLower(l.Type)) {
		case LayoutSuitBased, LayoutPile, LayoutSequence, LayoutScattered, LayoutCustom, LayoutNone:
			return Layout(strings.ToLower(l.Type))
		}
		return LayoutCustom
	}
	switch {
	case cls.Has(TagSuitBased):
		return LayoutSuitBased
	case cls.Has(TagSequenceBuild):
		return LayoutSequence
	case cls.Has(TagMemoryMatch), cls.Has(TagScattered):
		return LayoutScattered
	case cls.Has(TagPileBased):
		return LayoutPile
	case cls.Has(TagCombat):
		return LayoutCustom
	}
	return LayoutNone
}
