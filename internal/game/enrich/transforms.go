package enrich

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

func parseCount(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

const countExpr = `(\d+|an?|one|two|three|four|five|six|seven|eight|nine|ten)`
const rankExpr = `(aces?|kings?|queens?|jacks?|jokers?|tens?|nines?|eights?|sevens?|sixes|six|fives?|fours?|threes?|twos?|deuces?|10|[2-9]|[akqj])`
const suitExpr = `(hearts?|diamonds?|clubs?|spades?)`

var (
	randomRangeRe = regexp.MustCompile(`(?i)\brandom(?:ly)?\b[^.\d]{0,40}?(\d+)\s*(?:and|to|-)\s*(\d+)|\bbetween\s+(\d+)\s*(?:and|to|-)\s*(\d+)\s+cards?[^.]{0,20}\bat random\b`)

	perRoundRe      = regexp.MustCompile(`(?i)\b` + countExpr + `\s+(?:more\s+|additional\s+|extra\s+|new\s+)?cards?\s+(?:each|every|per)\s+round\b`)
	untilRankRe     = regexp.MustCompile(`(?i)\buntil\b[^.]{0,40}?\b(?:an?|the|any)\s+` + rankExpr + `\b`)
	sharedPileRe    = regexp.MustCompile(`(?i)\b(?:all|every|the whole deck|all of the)(?:\s+of)?(?:\s+the)?\s*(?:cards?|deck)?\s+(?:starts?|begins?|is placed|are placed)\s+(?:in|as|into)\s+(?:one|a single|a shared|a central|the central|a common)\s+pile\b|\beverything starts in one pile\b`)
	eliminatedRe    = regexp.MustCompile(`(?i)\b(?:eliminated|out of the game|knocked out|is out|are out)\b`)
	failRevealRe    = regexp.MustCompile(`(?i)\b(?:fails?|unable|cannot|can't|doesn't|does not|don't|do not)\s+(?:to\s+)?reveal\s+(?:an?\s+|the\s+|any\s+)?` + rankExpr + `\b`)
	targetSumRe     = regexp.MustCompile(`(?i)\b(?:sum|total|adds?\s+up|adding\s+up|accumulate[sd]?)\b[^.\d]{0,30}?(\d+)`)
	sandboxRe       = regexp.MustCompile(`(?i)\b(?:sandbox|free[- ]?play|no rules|anything goes|no[- ]op|practice mode)\b`)
	botOnlyRe       = regexp.MustCompile(`(?i)\b(?:bots? only|only bots|all (?:players are )?bots|computer players only|ai[- ]only|bot[- ]only|watch the bots)\b`)
	revealCardRe    = regexp.MustCompile(`(?i)\breveal(?:s|ed|ing)?\s+(?:the\s+|a\s+|an\s+)?` + rankExpr + `\s+of\s+` + suitExpr + `\b`)
	sentenceSplitRe = regexp.MustCompile(`[.!?\n]+`)
)

// RandomHandRange turns "random between 2 and 5" into setup.randomHandRange and
// clears the fixed per-player count.
func RandomHandRange(r *schema.GameRules) bool {
	if len(r.Setup.RandomHandRange) == 2 {
		return false
	}
	m := randomRangeRe.FindStringSubmatch(r.FreeText())
	if m == nil {
		return false
	}
	loS, hiS := m[1], m[2]
	if loS == "" {
		loS, hiS = m[3], m[4]
	}
	lo, err1 := strconv.Atoi(loS)
	hi, err2 := strconv.Atoi(hiS)
	if err1 != nil || err2 != nil {
		return false
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	r.Setup.RandomHandRange = []int{lo, hi}
	r.Setup.CardsPerPlayer = 0
	r.Setup.CardsPerPlayerPosition = nil
	return true
}

// ProgressiveDealing recognises "N cards each round", optionally "until a <rank>".
func ProgressiveDealing(r *schema.GameRules) bool {
	if r.Setup.ProgressiveDealing != nil {
		return false
	}
	text := r.FreeText()
	m := perRoundRe.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	n, ok := parseCount(m[1])
	if !ok || n <= 0 {
		return false
	}
	pd := &schema.ProgressiveDealing{CardsPerRound: n}
	if rm := untilRankRe.FindStringSubmatch(text); rm != nil {
		if rank, ok := parseRankWord(rm[1]); ok {
			pd.TargetRank = string(rank)
		}
	}
	r.Setup.ProgressiveDealing = pd
	return true
}

// SharedPile recognises "all cards start in one pile".
func SharedPile(r *schema.GameRules) bool {
	if r.Setup.SharedPile || !sharedPileRe.MatchString(r.FreeText()) {
		return false
	}
	r.Setup.SharedPile = true
	r.Setup.CardsPerPlayer = 0
	r.Setup.CardsPerPlayerPosition = nil
	r.AddAction("draw")
	r.AddAction("flip")
	return true
}

// EliminationRank recognises "a player who fails to reveal a king is eliminated".
func EliminationRank(r *schema.GameRules) bool {
	if r.Setup.EliminationRank != "" {
		return false
	}
	for _, sentence := range sentences(r.FreeText()) {
		if !eliminatedRe.MatchString(sentence) {
			continue
		}
		m := failRevealRe.FindStringSubmatch(sentence)
		if m == nil {
			continue
		}
		rank, ok := parseRankWord(m[1])
		if !ok {
			continue
		}
		r.Setup.EliminationRank = string(rank)
		r.AddAction("reveal")
		return true
	}
	return false
}

// TargetSum recognises a numeric accumulation goal. Played cards add to the
// score, and a matching highest_score condition is appended.
func TargetSum(r *schema.GameRules) bool {
	if r.Setup.TargetSum > 0 {
		return false
	}
	m := targetSumRe.FindStringSubmatch(r.FreeText())
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return false
	}
	r.Setup.TargetSum = n
	r.AddAction("play")
	for _, w := range r.WinConditions {
		if w.Type == schema.WinHighestScore {
			if _, ok := w.TargetNumber(); ok {
				return true
			}
		}
	}
	r.WinConditions = append(r.WinConditions, schema.WinCondition{
		Type:        schema.WinHighestScore,
		Description: "Reach a total of " + strconv.Itoa(n),
		Target:      n,
	})
	return true
}

// Sandbox recognises free-play games: every action is allowed in every phase
// and nobody wins.
func Sandbox(r *schema.GameRules) bool {
	if r.Setup.Sandbox || !sandboxRe.MatchString(r.FreeText()) {
		return false
	}
	r.Setup.Sandbox = true
	for _, a := range []string{"draw", "play", "discard", "pass"} {
		r.AddAction(a)
	}
	return true
}

// BotOnly recognises games meant to be watched with no human seats.
func BotOnly(r *schema.GameRules) bool {
	if r.Setup.BotOnly || !botOnlyRe.MatchString(r.FreeText()) {
		return false
	}
	r.Setup.BotOnly = true
	return true
}

// RevealWinCards recognises every "reveal the <rank> of <suit> to win" phrase.
func RevealWinCards(r *schema.GameRules) bool {
	var found []string
	for _, sentence := range sentences(r.FreeText()) {
		if !strings.Contains(strings.ToLower(sentence), "win") {
			continue
		}
		for _, m := range revealCardRe.FindAllStringSubmatch(sentence, -1) {
			rank, ok := parseRankWord(m[1])
			if !ok {
				continue
			}
			suit, ok := cards.ParseSuit(m[2])
			if !ok {
				continue
			}
			found = append(found, cards.CardID(rank, suit))
		}
	}
	if len(found) == 0 {
		return false
	}

	changed := false
	for _, id := range found {
		if !contains(r.Setup.RevealWinCards, id) {
			r.Setup.RevealWinCards = append(r.Setup.RevealWinCards, id)
			changed = true
		}
	}
	if !r.HasWinType(schema.WinRevealCard) {
		r.WinConditions = append(r.WinConditions, schema.WinCondition{
			Type:        schema.WinRevealCard,
			Description: "Reveal a winning card",
			Target:      append([]string(nil), r.Setup.RevealWinCards...),
		})
		changed = true
	} else if changed {
		for i := range r.WinConditions {
			if r.WinConditions[i].Type == schema.WinRevealCard {
				r.WinConditions[i].Target = append([]string(nil), r.Setup.RevealWinCards...)
			}
		}
	}
	if !r.HasAction("flip") {
		r.AddAction("flip")
		changed = true
	}
	return changed
}

func parseRankWord(word string) (cards.Rank, bool) {
	w := strings.ToLower(word)
	if rank, ok := cards.ParseRank(w); ok {
		return rank, true
	}
	return cards.ParseRank(strings.TrimSuffix(w, "s"))
}

func sentences(text string) []string {
	return sentenceSplitRe.Split(text, -1)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
