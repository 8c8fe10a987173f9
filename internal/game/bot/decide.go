// Package bot picks moves for computer-controlled seats. Decisions consult the
// engine's validator instead of reasoning from fixed game knowledge, so any
// document the engine can run is playable by a bot.
package bot

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

// Action is one decision. CardIDs may hold masked table references.
type Action struct {
	Action  string   `json:"action"`
	CardIDs []string `json:"cardIds,omitempty"`
	Target  string   `json:"target,omitempty"`
}

func (a Action) String() string {
	if len(a.CardIDs) == 0 {
		return a.Action
	}
	return fmt.Sprintf("%s %v", a.Action, a.CardIDs)
}

// Engine is the read surface a decision needs. *engine.Engine satisfies it.
type Engine interface {
	Rules() *schema.GameRules
	Classification() schema.Classification
	PhaseAllows(action string) bool
	IsValidAction(playerID, action string, cardIDs []string) bool
	PublicState(viewerID string) *engine.View
}

// DefaultMaxProbes bounds the combination search of one decision.
const DefaultMaxProbes = 4096

// basePriority ranks actions before classification bias. Unknown actions get
// customPriority.
var basePriority = map[string]int{
	engine.ActionPlay:    70,
	engine.ActionAttack:  65,
	engine.ActionDefend:  60,
	engine.ActionFlip:    60,
	engine.ActionHit:     60,
	engine.ActionReveal:  55,
	engine.ActionDraw:    50,
	engine.ActionDiscard: 40,
	engine.ActionStand:   30,
	engine.ActionPeek:    20,
	engine.ActionCheck:   20,
	engine.ActionCall:    20,
	engine.ActionBet:     15,
	engine.ActionRaise:   10,
	engine.ActionEndTurn: 10,
	engine.ActionPass:    5,
	engine.ActionSkip:    5,
	engine.ActionFold:    1,
}

const customPriority = 35

// Decider chooses actions for bot seats.
type Decider struct {
	logger    *zap.Logger
	maxProbes int
}

// NewDecider returns a decider. A nil logger disables logging.
func NewDecider(logger *zap.Logger) *Decider {
	return &Decider{logger: logger, maxProbes: DefaultMaxProbes}
}

// WithMaxProbes overrides the probe budget.
func (d *Decider) WithMaxProbes(n int) *Decider {
	if n > 0 {
		d.maxProbes = n
	}
	return d
}

// GetBotAction decides with a default decider. It reads game state only
// through e.PublicState(botID) and checks legality only through
// e.IsValidAction; the other Engine methods are schema lookups.
func GetBotAction(e Engine, botID string) Action {
	return NewDecider(nil).Decide(e, botID)
}

// Decide returns exactly one action for botID. It never panics; an internal
// failure degrades to pass.
func (d *Decider) Decide(e Engine, botID string) (act Action) {
	defer func() {
		if r := recover(); r != nil {
			if d.logger != nil {
				d.logger.Error("bot decision panicked",
					zap.String("player_id", botID),
					zap.Any("panic", r),
				)
			}
			act = Action{Action: engine.ActionPass}
		}
	}()

	t := &turn{
		d:     d,
		e:     e,
		id:    botID,
		rules: e.Rules(),
		class: e.Classification(),
		view:  e.PublicState(botID),
	}
	t.me = t.view.Player(botID)
	if t.me == nil {
		return Action{Action: engine.ActionPass}
	}

	if t.me.Kind == engine.KindDealer {
		if a, ok := t.dealer(); ok {
			return a
		}
	}
	if t.rules.BettingEnabled() {
		if a, ok := t.betting(); ok {
			return a
		}
	}
	if a, ok := t.general(); ok {
		return a
	}
	return t.fallback()
}

// turn holds the inputs of one decision.
type turn struct {
	d      *Decider
	e      Engine
	id     string
	rules  *schema.GameRules
	class  schema.Classification
	view   *engine.View
	me     *engine.PlayerView
	probes int
}

func (t *turn) valid(action string, ids []string) bool {
	t.probes++
	return t.e.IsValidAction(t.id, action, ids)
}

func (t *turn) exhausted() bool {
	return t.probes >= t.d.maxProbes
}

func (t *turn) try(action string, ids ...string) (Action, bool) {
	if !t.valid(action, ids) {
		return Action{}, false
	}
	return Action{Action: action, CardIDs: ids}, true
}

// dealer hits below its threshold and stands otherwise.
func (t *turn) dealer() (Action, bool) {
	hitUntil := schema.DefaultDealerHit
	if dr := t.rules.Players.Dealer; dr != nil && dr.HitUntil > 0 {
		hitUntil = dr.HitUntil
	}
	if t.me.Score < hitUntil {
		for _, name := range []string{engine.ActionHit, engine.ActionPlay, engine.ActionDraw} {
			if a, ok := t.try(name); ok {
				return a, true
			}
		}
	}
	for _, name := range []string{engine.ActionStand, engine.ActionEndTurn, engine.ActionPass} {
		if a, ok := t.try(name); ok {
			return a, true
		}
	}
	return Action{}, false
}

// betting plays chips conservatively: check when free, call small bets, fold
// when short or facing a large bet. It declines when the phase takes no
// betting action.
func (t *turn) betting() (Action, bool) {
	bettingPhase := false
	for _, name := range []string{engine.ActionCheck, engine.ActionCall, engine.ActionFold, engine.ActionBet, engine.ActionRaise} {
		if t.e.PhaseAllows(name) {
			bettingPhase = true
			break
		}
	}
	if !bettingPhase {
		return Action{}, false
	}

	minBet := schema.DefaultMinBet
	if b := t.rules.Players.Betting; b != nil && b.MinBet > 0 {
		minBet = b.MinBet
	}
	owed := t.view.CurrentBet - t.me.Bet
	low := t.me.Chips < 2*minBet

	if owed <= 0 {
		if a, ok := t.try(engine.ActionCheck); ok {
			return a, true
		}
		if !low {
			if a, ok := t.try(engine.ActionBet); ok {
				return a, true
			}
		}
		return Action{}, false
	}
	if !low && owed*4 <= t.me.Chips {
		if a, ok := t.try(engine.ActionCall); ok {
			return a, true
		}
	}
	if a, ok := t.try(engine.ActionFold); ok {
		return a, true
	}
	return Action{}, false
}

// candidates lists the declared actions the current phase allows, best first.
func (t *turn) candidates() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if seen[name] || !t.e.PhaseAllows(name) {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, ph := range t.rules.TurnStructure.Phases {
		if ph.Name != t.view.Phase && !t.rules.Setup.Sandbox {
			continue
		}
		for _, a := range ph.Actions {
			add(a)
		}
	}
	for _, a := range t.rules.Actions {
		add(a)
	}

	prio := make(map[string]int, len(out))
	for _, a := range out {
		prio[a] = t.priority(a)
	}
	sort.SliceStable(out, func(i, j int) bool { return prio[out[i]] > prio[out[j]] })
	return out
}

func (t *turn) priority(action string) int {
	p, ok := basePriority[action]
	if !ok {
		p = customPriority
	}
	switch {
	case t.class.Has(schema.TagMemoryMatch) && action == engine.ActionFlip:
		p += 40
	case t.class.Has(schema.TagMemoryMatch) && action == engine.ActionPeek:
		p += 10
	case t.class.Has(schema.TagCombat) && (action == engine.ActionAttack || action == engine.ActionDefend):
		p += 30
	case t.class.Has(schema.TagCardRequest) && action == engine.ActionStand && t.me.Score >= schema.DefaultDealerHit:
		p += 60
	case t.class.Has(schema.TagCardRequest) && (action == engine.ActionHit || action == engine.ActionPlay) && t.me.Score >= schema.DefaultDealerHit:
		p -= 60
	}
	return p
}

// general tries each candidate with no cards, then single cards, pairs and
// triples from the hand, and table references for table actions.
func (t *turn) general() (Action, bool) {
	for _, name := range t.candidates() {
		if a, ok := t.search(name); ok {
			return a, true
		}
		if t.exhausted() {
			break
		}
	}
	return Action{}, false
}

func (t *turn) search(action string) (Action, bool) {
	if action == engine.ActionFlip || action == engine.ActionPeek {
		for _, ref := range t.tableRefs() {
			if a, ok := t.try(action, ref); ok {
				return a, true
			}
		}
		return Action{}, false
	}

	if a, ok := t.try(action); ok {
		return a, true
	}
	hand := t.orderedHand(action)

	for _, c := range hand {
		if t.exhausted() {
			return Action{}, false
		}
		if a, ok := t.try(action, c); ok {
			return a, true
		}
	}
	for i := 0; i < len(hand)-1; i++ {
		for j := i + 1; j < len(hand); j++ {
			if t.exhausted() {
				return Action{}, false
			}
			if a, ok := t.try(action, hand[i], hand[j]); ok {
				return a, true
			}
		}
	}
	for i := 0; i < len(hand)-2; i++ {
		for j := i + 1; j < len(hand)-1; j++ {
			for k := j + 1; k < len(hand); k++ {
				if t.exhausted() {
					return Action{}, false
				}
				if a, ok := t.try(action, hand[i], hand[j], hand[k]); ok {
					return a, true
				}
			}
		}
	}
	return Action{}, false
}

// orderedHand returns hand ids, with the preferred sequence card first for play.
func (t *turn) orderedHand(action string) []string {
	ids := make([]string, 0, len(t.me.Hand))
	preferred := ""
	if action == engine.ActionPlay {
		preferred = t.preferredPlay()
	}
	if preferred != "" {
		ids = append(ids, preferred)
	}
	for _, c := range t.me.Hand {
		if c.ID != preferred {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// preferredPlay finds a hand card whose rank gap to the play-area top is one
// of the recognised sequence differences.
func (t *turn) preferredPlay() string {
	diffs := t.class.SequenceDifferences
	if len(diffs) == 0 {
		return ""
	}
	var top *cards.Card
	for _, z := range t.view.Zones {
		if z.ID == engine.ZonePlayArea && len(z.Cards) > 0 {
			top = z.Cards[len(z.Cards)-1]
		}
	}
	if top == nil || top.Rank == "" {
		return ""
	}
	for _, c := range t.me.Hand {
		if engine.SequenceGapAllowed(top, c, diffs) {
			return c.ID
		}
	}
	return ""
}

// tableRefs lists face-down table cards as the bot sees them.
func (t *turn) tableRefs() []string {
	var refs []string
	for _, z := range t.view.Zones {
		for i, c := range z.Cards {
			if c.ID == engine.ZoneRef(z.ID, i) {
				refs = append(refs, c.ID)
			}
		}
	}
	return refs
}

// fallback escalates through deck-safe actions, any held card, and finally
// every declared action before forcing a draw.
func (t *turn) fallback() Action {
	declared := func(name string) bool {
		return name == engine.ActionPass || t.rules.HasAction(name)
	}
	hand := make([]string, 0, len(t.me.Hand))
	for _, c := range t.me.Hand {
		hand = append(hand, c.ID)
	}

	for _, name := range []string{engine.ActionDraw, engine.ActionPass, engine.ActionSkip, engine.ActionStand} {
		if !declared(name) {
			continue
		}
		if a, ok := t.try(name); ok {
			t.logTier("safe", a)
			return a
		}
	}

	for _, name := range []string{engine.ActionPlay, engine.ActionDiscard} {
		if !declared(name) {
			continue
		}
		for _, id := range hand {
			if a, ok := t.try(name, id); ok {
				t.logTier("held card", a)
				return a
			}
		}
	}

	for _, name := range t.rules.Actions {
		if a, ok := t.try(name); ok {
			t.logTier("emergency", a)
			return a
		}
		if len(hand) > 0 {
			if a, ok := t.try(name, hand[0]); ok {
				t.logTier("emergency", a)
				return a
			}
		}
	}

	a := Action{Action: engine.ActionDraw}
	t.logTier("forced", a)
	return a
}

func (t *turn) logTier(tier string, a Action) {
	if t.d.logger == nil {
		return
	}
	t.d.logger.Debug("bot fallback",
		zap.String("player_id", t.id),
		zap.String("tier", tier),
		zap.String("action", a.String()),
		zap.Int("probes", t.probes),
	)
}
