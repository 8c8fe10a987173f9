package schema

import (
	"regexp"
	"strings"
)

// Defaults applied by Normalize.
const (
	DefaultMaxPlayers    = 4
	DefaultDeckSize      = 52
	DefaultDealerHit     = 17
	DefaultStartingChips = 100
	DefaultMinBet        = 10
	DefaultPhaseName     = "play"
)

// DefaultActions is used when a document declares neither actions nor phases.
var DefaultActions = []string{"draw", "play", "discard", "pass"}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize returns a copy of rules with every absent field defaulted. Action
// and win-condition names are trimmed and lower-cased. The declared action list
// becomes the union of itself and every phase's actions.
func Normalize(rules *GameRules) *GameRules {
	if rules == nil {
		rules = &GameRules{}
	}
	r := rules.Clone()

	if r.ID == "" && r.Name != "" {
		r.ID = strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(r.Name), "-"), "-")
	}
	if r.Name == "" {
		r.Name = "Untitled Game"
	}

	normalizePlayers(&r.Players)
	normalizeSetup(&r.Setup)

	r.Actions = cleanNames(r.Actions)
	for i := range r.TurnStructure.Phases {
		p := &r.TurnStructure.Phases[i]
		p.Name = strings.TrimSpace(p.Name)
		p.Actions = cleanNames(p.Actions)
	}
	if len(r.Actions) == 0 && len(r.TurnStructure.Phases) == 0 {
		r.Actions = append([]string(nil), DefaultActions...)
	}
	for _, p := range r.TurnStructure.Phases {
		r.Actions = unionNames(r.Actions, p.Actions)
	}
	if len(r.TurnStructure.Phases) == 0 {
		r.TurnStructure.Phases = []Phase{{Name: DefaultPhaseName, Actions: append([]string(nil), r.Actions...)}}
	}
	for i := range r.TurnStructure.Phases {
		p := &r.TurnStructure.Phases[i]
		if p.Name == "" {
			p.Name = DefaultPhaseName
		}
		if len(p.Actions) == 0 {
			p.Actions = append([]string(nil), r.Actions...)
		}
	}
	if r.TurnStructure.Order == "" {
		r.TurnStructure.Order = "clockwise"
	}

	for i := range r.WinConditions {
		w := &r.WinConditions[i]
		w.Type = strings.ToLower(strings.TrimSpace(w.Type))
		if w.Type == "" {
			w.Type = WinCustom
		}
		w.Target = canonicalTarget(w.Target)
	}
	return r
}

// canonicalTarget makes YAML and JSON decodes of the same target compare equal:
// whole numbers become int and string lists become []string.
func canonicalTarget(target any) any {
	switch v := target.(type) {
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	case int64:
		return int(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return target
			}
			out = append(out, s)
		}
		return out
	}
	return target
}

func normalizePlayers(p *PlayerRules) {
	if p.Max <= 0 {
		p.Max = DefaultMaxPlayers
		if p.Min > p.Max {
			p.Max = p.Min
		}
	}
	if p.Min <= 0 {
		p.Min = 1
		if p.Max >= 2 {
			p.Min = 2
		}
	}
	if p.Max < p.Min {
		p.Max = p.Min
	}
	if d := p.Dealer; d != nil {
		if d.Name == "" {
			d.Name = "Dealer"
		}
		if d.HitUntil <= 0 {
			d.HitUntil = DefaultDealerHit
		}
		if d.StandOn <= 0 {
			d.StandOn = d.HitUntil
		}
	}
	if b := p.Betting; b != nil {
		if b.StartingChips <= 0 {
			b.StartingChips = DefaultStartingChips
		}
		if b.MinBet <= 0 {
			b.MinBet = DefaultMinBet
		}
		if b.MaxBet > 0 && b.MaxBet < b.MinBet {
			b.MaxBet = b.MinBet
		}
	}
}

func normalizeSetup(s *SetupRules) {
	if s.CardsPerPlayer < 0 {
		s.CardsPerPlayer = 0
	}
	if s.DeckSize <= 0 {
		s.DeckSize = DefaultDeckSize
		if s.IncludeJokers {
			s.DeckSize = 54
		}
	}
	if s.DeckCount <= 0 {
		s.DeckCount = 1
	}
	if s.KeepDrawnCard == nil {
		keep := true
		s.KeepDrawnCard = &keep
	}
	if s.HandScoring == "" {
		s.HandScoring = "sum"
	}
	if s.TableLayout != nil {
		for i := range s.TableLayout.Zones {
			z := &s.TableLayout.Zones[i]
			if z.Type == "" {
				z.Type = ZoneCustom
			}
			if z.Name == "" {
				z.Name = z.ID
			}
		}
	}
}

func cleanNames(names []string) []string {
	var out []string
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		out = unionNames(out, []string{n})
	}
	return out
}

func unionNames(base, extra []string) []string {
	for _, e := range extra {
		found := false
		for _, b := range base {
			if b == e {
				found = true
				break
			}
		}
		if !found {
			base = append(base, e)
		}
	}
	return base
}

// AddAction appends action to the declared list if missing and makes sure some
// phase allows it, adding it to the first phase otherwise.
func (r *GameRules) AddAction(action string) {
	r.Actions = unionNames(r.Actions, []string{action})
	for _, p := range r.TurnStructure.Phases {
		if p.Allows(action) {
			return
		}
	}
	if len(r.TurnStructure.Phases) == 0 {
		r.TurnStructure.Phases = []Phase{{Name: DefaultPhaseName}}
	}
	r.TurnStructure.Phases[0].Actions = append(r.TurnStructure.Phases[0].Actions, action)
}
