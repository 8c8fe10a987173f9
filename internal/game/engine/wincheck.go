package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

// playerPredicate decides whether one seat satisfies a win condition.
type playerPredicate func(e *Engine, p *Player) bool

// customRule recognises one phrasing of a free-text win condition.
type customRule struct {
	name    string
	pattern *regexp.Regexp
	build   func(m []string) playerPredicate
}

// customRules is consulted in order; the first rule that matches and builds a
// predicate wins.
var customRules = []customRule{
	{"black_card", regexp.MustCompile(`(?i)\bblack card\b`), func([]string) playerPredicate {
		return lastDrawn(func(c *cards.Card) bool { return c.Suit.IsBlack() })
	}},
	{"red_card", regexp.MustCompile(`(?i)\bred card\b`), func([]string) playerPredicate {
		return lastDrawn(func(c *cards.Card) bool { return c.Suit.IsRed() })
	}},
	{"rank_to_win", regexp.MustCompile(`(?i)\b(?:draw|draws|drawing|get|gets|find|finds|pull|pulls)\s+(?:a|an|the|any)\s+([a-z0-9]+)\b.*\bwins?\b`), func(m []string) playerPredicate {
		rank, ok := cards.ParseRank(m[1])
		if !ok {
			return nil
		}
		return lastDrawn(func(c *cards.Card) bool { return c.Rank == rank })
	}},
	{"collect_cards", regexp.MustCompile(`(?i)\b(?:collect|collects|collecting|hold|holds|gather|gathers)\s+(\d+)\s+cards\b`), func(m []string) playerPredicate {
		n, _ := strconv.Atoi(m[1])
		return func(_ *Engine, p *Player) bool { return n > 0 && len(p.Hand) >= n }
	}},
	{"reach_points", regexp.MustCompile(`(?i)\b(?:reach|reaches|score|scores|get|gets|earn|earns)\s+(\d+)\s+points?\b`), func(m []string) playerPredicate {
		n, _ := strconv.Atoi(m[1])
		return func(_ *Engine, p *Player) bool { return p.Score >= n }
	}},
	{"empty_hand", regexp.MustCompile(`(?i)\bno cards\b|\bempty (?:your |their |the )?hand\b|\bget rid of (?:all )?(?:your |their )?cards\b|\brun(?:s)? out of cards\b|\bplay(?:s)? all (?:your |their )?cards\b`), func([]string) playerPredicate {
		return emptiedHand
	}},
	{"single_suit", regexp.MustCompile(`(?i)\bsame suit\b|\bsingle suit\b|\bone suit\b|\bflush\b`), func([]string) playerPredicate {
		return func(_ *Engine, p *Player) bool {
			return len(p.Hand) >= 3 && uniform(p.Hand, func(c *cards.Card) string { return string(c.Suit) })
		}
	}},
	{"single_rank", regexp.MustCompile(`(?i)\bsame rank\b|\bsame value\b|\bfour of a kind\b|\bmatching ranks\b`), func([]string) playerPredicate {
		return func(_ *Engine, p *Player) bool {
			return len(p.Hand) >= 3 && uniform(p.Hand, func(c *cards.Card) string { return string(c.Rank) })
		}
	}},
}

// RecognizeCustomWin returns the name of the rule a free-text win condition
// maps to.
func RecognizeCustomWin(description string) (string, bool) {
	name, pred := matchCustom(description)
	return name, pred != nil
}

func matchCustom(description string) (string, playerPredicate) {
	for _, r := range customRules {
		m := r.pattern.FindStringSubmatch(description)
		if m == nil {
			continue
		}
		if pred := r.build(m); pred != nil {
			return r.name, pred
		}
	}
	return "", nil
}

// compileCustomWins resolves each custom condition once. Entries stay nil for
// other types and for descriptions no rule recognises.
func compileCustomWins(conds []schema.WinCondition) []playerPredicate {
	out := make([]playerPredicate, len(conds))
	for i, wc := range conds {
		if wc.Type == schema.WinCustom {
			_, out[i] = matchCustom(wc.Description)
		}
	}
	return out
}

func lastDrawn(match func(*cards.Card) bool) playerPredicate {
	return func(e *Engine, p *Player) bool {
		c := e.state.LastDrawn
		return c != nil && e.state.LastDrawnBy == p.ID && match(c)
	}
}

func emptiedHand(_ *Engine, p *Player) bool {
	return len(p.Hand) == 0 && p.CardsPlayed > 0
}

func uniform(hand []*cards.Card, key func(*cards.Card) string) bool {
	for _, c := range hand[1:] {
		if key(c) != key(hand[0]) {
			return false
		}
	}
	return true
}

// checkWin evaluates the declared conditions, then the last-standing rule, and
// finishes the game on the first hit. Sandbox sessions never end this way.
func (e *Engine) checkWin() bool {
	if e.state.Status != StatusActive || e.rules.Setup.Sandbox {
		return e.state.Status == StatusFinished
	}

	for i, wc := range e.rules.WinConditions {
		for _, p := range e.state.Players {
			if p.Out() {
				continue
			}
			if e.satisfies(i, wc, p) {
				e.finish(p.ID, wc.Type)
				return true
			}
		}
		if winner, ok := e.decideByScore(wc); ok {
			e.finish(winner, wc.Type)
			return true
		}
	}

	if len(e.state.Players) >= 2 {
		var standing []*Player
		for _, p := range e.state.Players {
			if !p.Eliminated && !p.Folded {
				standing = append(standing, p)
			}
		}
		if len(standing) == 1 {
			e.finish(standing[0].ID, "last_standing")
			return true
		}
	}
	return false
}

// satisfies covers the per-player condition types.
func (e *Engine) satisfies(i int, wc schema.WinCondition, p *Player) bool {
	switch wc.Type {
	case schema.WinFirstToEmpty:
		return emptiedHand(e, p)
	case schema.WinHighestScore:
		target, ok := wc.TargetNumber()
		return ok && target > 0 && p.Score >= target
	case schema.WinSpecificCards:
		patterns, ok := wc.TargetPatterns()
		if !ok {
			return false
		}
		for _, pat := range patterns {
			if !handHas(p.Hand, pat) {
				return false
			}
		}
		return true
	case schema.WinCustom:
		return i < len(e.customWin) && e.customWin[i] != nil && e.customWin[i](e, p)
	case schema.WinRevealCard:
		return e.revealWinner == p.ID
	}
	return false
}

// decideByScore settles untargeted score races once the table is exhausted.
func (e *Engine) decideByScore(wc schema.WinCondition) (string, bool) {
	switch wc.Type {
	case schema.WinHighestScore:
		if target, ok := wc.TargetNumber(); ok && target > 0 {
			return "", false
		}
	case schema.WinLowestScore:
	default:
		return "", false
	}
	if !e.exhausted() {
		return "", false
	}
	lowest := wc.Type == schema.WinLowestScore
	var best *Player
	for _, p := range e.state.Players {
		if p.Eliminated {
			continue
		}
		if best == nil || (lowest && p.Score < best.Score) || (!lowest && p.Score > best.Score) {
			best = p
		}
	}
	if best == nil {
		return "", false
	}
	return best.ID, true
}

// exhausted reports that the deck is empty and no grid zone holds cards.
func (e *Engine) exhausted() bool {
	if e.state.DeckCount() > 0 {
		return false
	}
	if pile := e.state.Zone(ZoneCentral); pile != nil && len(pile.Cards) > 0 {
		return false
	}
	for _, z := range e.state.Zones {
		if z.Type == schema.ZoneGrid && len(z.Cards) > 0 {
			return false
		}
	}
	return true
}

// showdown ends a game in which every seat is out: the best score among the
// seats that did not bust or fold wins.
func (e *Engine) showdown() {
	limit := 0
	if e.cardRequest() {
		limit = BlackjackLimit
	}
	var best *Player
	for _, p := range e.state.Players {
		if p.Eliminated || p.Folded || p.Busted {
			continue
		}
		if limit > 0 && p.Score > limit {
			continue
		}
		if best == nil || p.Score > best.Score {
			best = p
		}
	}
	winner := ""
	if best != nil {
		winner = best.ID
	}
	e.finish(winner, "showdown")
}

// noteReveal records the first player to expose a reveal_card target.
func (e *Engine) noteReveal(p *Player, c *cards.Card) {
	if e.revealWinner != "" {
		return
	}
	for _, wc := range e.rules.WinConditions {
		if wc.Type != schema.WinRevealCard {
			continue
		}
		patterns, _ := wc.TargetPatterns()
		for _, pat := range patterns {
			if c.Matches(pat) {
				e.revealWinner = p.ID
				return
			}
		}
	}
}

func handHas(hand []*cards.Card, pattern string) bool {
	for _, c := range hand {
		if c.Matches(strings.TrimSpace(pattern)) {
			return true
		}
	}
	return false
}
