// Package engine interprets a GameRules document as a playable session: it deals,
// validates and applies actions, advances phases and turns and detects winners.
package engine

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

// Zone ids the engine creates on its own.
const (
	ZonePlayArea    = "play-area"
	ZoneCentral     = "central-pile"
	ZoneCenter      = "center-pile"
	ZoneMemoryGrid  = "memory-grid"
	ZoneBattlefield = "battlefield"
)

// Options tune timing and scoring that documents do not describe.
type Options struct {
	SessionID   string
	RevertDelay time.Duration
	PeekDelay   time.Duration
	PeekCost    int // score penalty for peeking; negative disables it
	PairPoints  int
	Seed        int64
	AfterFunc   AfterFunc
}

func (o Options) withDefaults() Options {
	if o.SessionID == "" {
		o.SessionID = uuid.NewString()
	}
	if o.RevertDelay <= 0 {
		o.RevertDelay = time.Second
	}
	if o.PeekDelay <= 0 {
		o.PeekDelay = 2 * time.Second
	}
	switch {
	case o.PeekCost == 0:
		o.PeekCost = 1
	case o.PeekCost < 0:
		o.PeekCost = 0
	}
	if o.PairPoints <= 0 {
		o.PairPoints = 1
	}
	return o
}

// Engine owns exactly one GameState. All exported methods are safe for
// concurrent use; deferred effects run on timer goroutines and take the same lock.
type Engine struct {
	mu        sync.Mutex
	rules     *schema.GameRules
	class     schema.Classification
	customWin []playerPredicate
	state     *GameState
	turns     *TurnManager
	events    *EventBus
	scheduler *Scheduler
	logger    *zap.Logger
	opts      Options
	rng       *rand.Rand

	flipped            []*cards.Card
	peeked             map[string]bool
	battle             []battleEntry
	revealWinner       string
	progressiveStopped bool
}

// New builds an engine in the waiting state. The rules are normalized and
// classified once.
func New(rules *schema.GameRules, logger *zap.Logger, opts Options) *Engine {
	opts = opts.withDefaults()
	normalized := schema.Normalize(rules)

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &Engine{
		rules:     normalized,
		class:     schema.Classify(normalized),
		turns:     NewTurnManager(normalized.TurnStructure.Phases),
		events:    NewEventBus(),
		scheduler: NewScheduler(opts.AfterFunc),
		logger:    logger,
		opts:      opts,
		rng:       rand.New(rand.NewSource(seed)),
		peeked:    make(map[string]bool),
	}
	e.customWin = compileCustomWins(normalized.WinConditions)
	e.state = &GameState{
		ID:            opts.SessionID,
		Status:        StatusWaiting,
		CurrentPlayer: -1,
		Phase:         "setup",
		Flags:         make(map[string]bool),
	}
	return e
}

// Rules returns the normalized document the engine interprets.
func (e *Engine) Rules() *schema.GameRules {
	return e.rules
}

// Classification returns the cached archetype tags.
func (e *Engine) Classification() schema.Classification {
	return e.class
}

// Events exposes the engine's event bus.
func (e *Engine) Events() *EventBus {
	return e.events
}

// ID returns the session id.
func (e *Engine) ID() string {
	return e.state.ID
}

// AddPlayer seats a new player.
func (e *Engine) AddPlayer(name string, kind PlayerKind) (*Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status != StatusWaiting {
		return nil, ErrGameAlreadyStarted
	}
	if len(e.state.Players) >= e.rules.Players.Max {
		return nil, fmt.Errorf("%w: max %d players", ErrRosterFull, e.rules.Players.Max)
	}
	return e.addPlayerLocked(name, kind), nil
}

func (e *Engine) addPlayerLocked(name string, kind PlayerKind) *Player {
	if kind == "" {
		kind = KindHuman
	}
	p := &Player{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(name),
		Kind:     kind,
		Position: len(e.state.Players),
	}
	if p.Name == "" {
		p.Name = fmt.Sprintf("Player %d", p.Position+1)
	}
	if kind == KindDealer {
		hit, stand := schema.DefaultDealerHit, schema.DefaultDealerHit
		if d := e.rules.Players.Dealer; d != nil {
			hit, stand = d.HitUntil, d.StandOn
		}
		p.Dealer = &DealerThresholds{HitUntil: hit, StandOn: stand}
	}
	if e.rules.BettingEnabled() {
		p.Chips = e.rules.Players.Betting.StartingChips
	}
	e.state.Players = append(e.state.Players, p)
	if e.logger != nil {
		e.logger.Debug("player added",
			zap.String("session_id", e.state.ID),
			zap.String("player_id", p.ID),
			zap.String("kind", string(kind)),
		)
	}
	return p
}

// StartGame deals, prepares zones and hands the first turn to seat 0.
func (e *Engine) StartGame() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status != StatusWaiting {
		return ErrGameAlreadyStarted
	}

	if e.rules.DealerEnabled() && !e.hasDealer() {
		name := e.rules.Players.Dealer.Name
		e.addPlayerLocked(name, KindDealer)
	}
	if e.rules.Setup.BotOnly {
		for len(e.state.Players) < e.rules.Players.Min {
			e.addPlayerLocked(fmt.Sprintf("Bot %d", len(e.state.Players)+1), KindBot)
		}
	}
	if len(e.state.Players) < e.rules.Players.Min {
		return fmt.Errorf("%w: have %d, need %d", ErrNotEnoughPlayers, len(e.state.Players), e.rules.Players.Min)
	}

	e.state.Deck = e.buildDeck()
	e.deal()
	e.setupZones()

	for _, p := range e.state.Players {
		e.rescore(p)
	}

	e.state.Status = StatusActive
	e.state.Turn = e.turns.TurnNumber()
	e.state.Round = e.turns.RoundNumber()
	e.syncPhase()
	e.state.CurrentPlayer = -1
	if first := e.nextSeat(-1); first >= 0 {
		e.activate(first)
	}

	if e.logger != nil {
		e.logger.Info("game started",
			zap.String("session_id", e.state.ID),
			zap.String("game", e.rules.Name),
			zap.Int("players", len(e.state.Players)),
			zap.Int("deck", e.state.DeckCount()),
			zap.Int("zones", len(e.state.Zones)),
		)
	}
	return nil
}

func (e *Engine) hasDealer() bool {
	for _, p := range e.state.Players {
		if p.Kind == KindDealer {
			return true
		}
	}
	return false
}

// buildDeck creates, merges and shuffles the configured decks.
func (e *Engine) buildDeck() *cards.Deck {
	setup := e.rules.Setup
	size := setup.DeckSize
	if setup.IncludeJokers && size == schema.DefaultDeckSize {
		size = 54
	}
	if setup.DeckCount <= 1 {
		return cards.NewDeckOfSize(size, rand.NewSource(e.rng.Int63())).Shuffle()
	}
	decks := make([]*cards.Deck, setup.DeckCount)
	for i := range decks {
		decks[i] = cards.NewDeckOfSize(size, rand.NewSource(e.rng.Int63()))
	}
	return cards.Merge(rand.NewSource(e.rng.Int63()), decks...).Shuffle()
}

// deal fills starting hands: per-position counts, a random range, or a
// uniform count dealt round-robin.
func (e *Engine) deal() {
	setup := e.rules.Setup
	players := e.state.Players
	deck := e.state.Deck

	switch {
	case len(setup.CardsPerPlayerPosition) > 0:
		for i, p := range players {
			n := setup.CardsPerPlayer
			if i < len(setup.CardsPerPlayerPosition) {
				n = setup.CardsPerPlayerPosition[i]
			}
			p.Hand = append(p.Hand, deck.Deal(n)...)
		}
	case len(setup.RandomHandRange) == 2:
		lo, hi := setup.RandomHandRange[0], setup.RandomHandRange[1]
		for _, p := range players {
			n := lo
			if hi > lo {
				n += e.rng.Intn(hi - lo + 1)
			}
			p.Hand = append(p.Hand, deck.Deal(n)...)
		}
	case setup.CardsPerPlayer > 0:
		for i, hand := range deck.DealHand(len(players), setup.CardsPerPlayer) {
			players[i].Hand = append(players[i].Hand, hand...)
		}
	}
}

// activate hands the turn to seat idx.
func (e *Engine) activate(idx int) {
	for i, p := range e.state.Players {
		p.IsActive = i == idx
	}
	e.state.CurrentPlayer = idx
	e.publish(Event{Type: EventTurnStarted, PlayerID: e.state.Players[idx].ID, Phase: e.state.Phase})
}

func (e *Engine) syncPhase() {
	e.state.Phase = e.turns.CurrentPhase().Name
	e.state.PhaseIndex = e.turns.PhaseIndex()
	e.state.Turn = e.turns.TurnNumber()
	e.state.Round = e.turns.RoundNumber()
}

// scoresFromHand reports whether scores track hand value rather than points.
func (e *Engine) scoresFromHand() bool {
	if e.class.Has(schema.TagCardRequest) {
		return true
	}
	switch e.rules.Setup.HandScoring {
	case cards.ScoringBlackjack, cards.ScoringPoker, cards.ScoringPokerExact:
		return true
	}
	return false
}

func (e *Engine) rescore(p *Player) {
	if !e.scoresFromHand() {
		return
	}
	scheme := e.rules.Setup.HandScoring
	if e.class.Has(schema.TagCardRequest) && (scheme == "" || scheme == cards.ScoringSum) {
		scheme = cards.ScoringBlackjack
	}
	p.Score = cards.HandValue(p.Hand, scheme)
}

// GetGameState returns the live state. Callers must not mutate it and must not
// read it concurrently with engine calls; use Snapshot for that.
func (e *Engine) GetGameState() *GameState {
	return e.state
}

// Snapshot returns a deep copy of the state.
func (e *Engine) Snapshot() *GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// CardCount returns the current conservation total.
func (e *Engine) CardCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CardCount(e.state)
}

// PendingEffects returns the number of deferred effects not yet run.
func (e *Engine) PendingEffects() int {
	return e.scheduler.Pending()
}

// Close ends the session without a winner and voids pending deferred effects.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scheduler.CancelAll()
	if e.state.Status != StatusFinished {
		e.state.Status = StatusFinished
		for _, p := range e.state.Players {
			p.IsActive = false
		}
		e.publish(Event{Type: EventGameFinished})
	}
}

// Pause and Resume toggle between active and paused.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status != StatusActive {
		return ErrGameNotActive
	}
	e.state.Status = StatusPaused
	return nil
}

func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status != StatusPaused {
		return fmt.Errorf("resume: %w", ErrGameNotActive)
	}
	e.state.Status = StatusActive
	return nil
}
