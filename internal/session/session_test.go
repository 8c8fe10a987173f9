package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardsmith/cardsmith-server-go/internal/game/cards"
	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

// heldTimer never fires; deferred effects stay pending for the whole test.
type heldTimer struct{}

func (heldTimer) Stop() bool { return true }

func holdAfter(time.Duration, func()) engine.Timer { return heldTimer{} }

// queuedClock keeps deferred effects until fire runs them.
type queuedClock struct {
	mu     sync.Mutex
	timers []*queuedTimer
}

type queuedTimer struct {
	mu      sync.Mutex
	stopped bool
	fn      func()
}

func (t *queuedTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *queuedClock) after(_ time.Duration, fn func()) engine.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &queuedTimer{fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *queuedClock) fire() {
	c.mu.Lock()
	pending := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range pending {
		if t.Stop() {
			t.fn()
		}
	}
}

type collector struct {
	mu   sync.Mutex
	seen []Notification
}

func (c *collector) handle(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, n)
}

func (c *collector) find(match func(Notification) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.seen {
		if match(n) {
			return true
		}
	}
	return false
}

func (c *collector) has(kind string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.seen {
		if n.Type == kind {
			return true
		}
	}
	return false
}

type fakeCache struct {
	mu      sync.Mutex
	views   map[string]*engine.View
	deleted []string
}

func (f *fakeCache) Put(_ context.Context, id string, v *engine.View) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.views == nil {
		f.views = make(map[string]*engine.View)
	}
	f.views[id] = v
	return nil
}

func (f *fakeCache) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func newManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	opts.Engine.Seed = 5
	opts.Engine.AfterFunc = holdAfter
	return NewManager(zaptest.NewLogger(t), opts)
}

func TestCreateGetAndList(t *testing.T) {
	m := newManager(t, Options{})

	first, err := m.CreateFromTemplate("crazy-eights", CreateOptions{})
	require.NoError(t, err)
	second, err := m.CreateFromTemplate("memory", CreateOptions{})
	require.NoError(t, err)

	got, err := m.Get(first.ID)
	require.NoError(t, err)
	assert.Same(t, first, got)

	list := m.List()
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
	for _, s := range list {
		assert.Equal(t, engine.StatusWaiting, s.Status)
	}

	_, err = m.Get("missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	_, err = m.CreateFromTemplate("no-such-game", CreateOptions{})
	assert.Error(t, err)
}

func TestCreateRecordsIRIssues(t *testing.T) {
	m := newManager(t, Options{})

	_, err := m.Create(nil, CreateOptions{})
	assert.True(t, errors.Is(err, ErrNoRules))

	s, err := m.Create(&schema.GameRules{
		Name:    "Knock",
		Players: schema.PlayerRules{Min: 2, Max: 4},
		Setup:   schema.SetupRules{CardsPerPlayer: 3},
		Actions: []string{"draw", "knock", "pass"},
	}, CreateOptions{})
	require.NoError(t, err)
	require.NotNil(t, s.IR)
	assert.NotEmpty(t, s.IRIssues)

	placeholder, ok := s.IR.Action("knock")
	require.True(t, ok)
	assert.True(t, placeholder.Placeholder)
}

func TestCreateWithEnrichment(t *testing.T) {
	m := newManager(t, Options{})
	rules, err := schema.Template("crazy-eights")
	require.NoError(t, err)
	rules.SpecialRules = append(rules.SpecialRules, "Bots only: watch the bots play.")

	s, err := m.Create(rules, CreateOptions{Enrich: true})
	require.NoError(t, err)
	assert.Contains(t, s.Enrichments, "bot_only")
	assert.True(t, s.Engine.Rules().Setup.BotOnly)

	_, err = m.Join(s.ID, "Ada", engine.KindHuman)
	assert.True(t, errors.Is(err, ErrBotOnlySession))

	_, err = m.Join(s.ID, "Helper", engine.KindBot)
	assert.NoError(t, err)
}

func TestActDrivesBotsUntilHumanTurn(t *testing.T) {
	m := newManager(t, Options{MaxBotActions: 200})
	c := &collector{}
	m.SetNotificationHandler(c.handle)

	s, err := m.CreateFromTemplate("crazy-eights", CreateOptions{})
	require.NoError(t, err)
	human, err := m.Join(s.ID, "Ada", engine.KindHuman)
	require.NoError(t, err)
	_, err = m.Join(s.ID, "Bot A", engine.KindBot)
	require.NoError(t, err)
	_, err = m.Join(s.ID, "Bot B", engine.KindBot)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Start(ctx, s.ID))

	view, err := m.View(s.ID, human.ID)
	require.NoError(t, err)
	require.Equal(t, human.ID, view.CurrentPlayer)
	assert.False(t, view.Player(human.ID).HandHidden)
	for _, p := range view.Players {
		if p.ID != human.ID {
			assert.True(t, p.HandHidden)
		}
	}

	res, err := m.Act(ctx, s.ID, human.ID, engine.ActionDraw, nil, "")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	view, err = m.View(s.ID, human.ID)
	require.NoError(t, err)
	if view.Status == engine.StatusActive {
		assert.Equal(t, human.ID, view.CurrentPlayer)
		assert.Greater(t, view.Turn, 1)
	}

	state := s.Engine.GetGameState()
	assert.Equal(t, 52, engine.CardCount(state)-state.EmergencyCards)

	assert.Eventually(t, func() bool {
		return c.has(NotifyPlayerAction) && c.has(NotifyStateChange)
	}, time.Second, 10*time.Millisecond)
}

func TestActRejectionIsNotAnError(t *testing.T) {
	m := newManager(t, Options{})
	s, err := m.CreateFromTemplate("crazy-eights", CreateOptions{})
	require.NoError(t, err)
	a, err := m.Join(s.ID, "Ada", engine.KindHuman)
	require.NoError(t, err)
	b, err := m.Join(s.ID, "Bea", engine.KindHuman)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background(), s.ID))

	res, err := m.Act(context.Background(), s.ID, b.ID, engine.ActionDraw, nil, "")
	require.NoError(t, err)
	assert.False(t, res.Success)

	view, err := m.View(s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, a.ID, view.CurrentPlayer)

	_, err = m.Act(context.Background(), "missing", a.ID, engine.ActionDraw, nil, "")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestBotOnlySessionRecordsReplay(t *testing.T) {
	rec := NewReplayRecorder(zaptest.NewLogger(t), "")
	cache := &fakeCache{}
	m := newManager(t, Options{MaxBotActions: 60, Recorder: rec, Cache: cache})

	rules, err := schema.Template("crazy-eights")
	require.NoError(t, err)
	rules.Setup.BotOnly = true
	s, err := m.Create(rules, CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background(), s.ID))

	replay, ok := m.Replay(s.ID)
	require.True(t, ok)
	require.Greater(t, replay.Size(), 1)
	assert.LessOrEqual(t, replay.Size(), 61)

	first := replay.FrameAt(0)
	assert.Nil(t, first.Action)
	assert.Equal(t, 0, first.Seq)

	for i := 1; i < replay.Size(); i++ {
		f := replay.FrameAt(i)
		require.NotNil(t, f.Action)
		assert.Equal(t, i, f.Seq)
		assert.True(t, f.Action.Success)
		assert.NotEmpty(t, f.Checksum)
	}

	last := replay.FrameAt(replay.Size() - 1)
	ok, err = VerifyChecksum(s.Engine.Snapshot(), &Checksum{Hash: last.Checksum})
	require.NoError(t, err)
	assert.True(t, ok)

	cache.mu.Lock()
	cached := cache.views[s.ID]
	cache.mu.Unlock()
	require.NotNil(t, cached)
	assert.Equal(t, s.ID, cached.SessionID)

	state := s.Engine.GetGameState()
	assert.Equal(t, 52, engine.CardCount(state)-state.EmergencyCards)
}

func TestEndSavesReplayAndForgetsSession(t *testing.T) {
	dir := t.TempDir()
	rec := NewReplayRecorder(zaptest.NewLogger(t), dir)
	cache := &fakeCache{}
	m := newManager(t, Options{MaxBotActions: 20, Recorder: rec, Cache: cache})
	c := &collector{}
	m.SetNotificationHandler(c.handle)

	rules, err := schema.Template("crazy-eights")
	require.NoError(t, err)
	rules.Setup.BotOnly = true
	s, err := m.Create(rules, CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background(), s.ID))

	require.NoError(t, m.End(context.Background(), s.ID))
	_, err = m.Get(s.ID)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.True(t, errors.Is(m.End(context.Background(), s.ID), ErrSessionNotFound))
	assert.Equal(t, engine.StatusFinished, s.Engine.GetGameState().Status)
	assert.Contains(t, cache.deleted, s.ID)

	loaded, err := LoadReplayFromFile(dir, s.ID)
	require.NoError(t, err)
	require.Greater(t, loaded.Size(), 1)
	assert.Nil(t, loaded.FrameAt(0).Action)
	assert.Equal(t, s.ID, loaded.SessionID)
	assert.Equal(t, s.ID, loaded.FrameAt(1).View.SessionID)

	assert.Eventually(t, func() bool { return c.has(NotifyGameFinished) }, time.Second, 10*time.Millisecond)
}

func TestChecksumIsDeterministic(t *testing.T) {
	build := func() *engine.Engine {
		rules, err := schema.Template("crazy-eights")
		require.NoError(t, err)
		e := engine.New(rules, nil, engine.Options{SessionID: "fixed", Seed: 99, AfterFunc: holdAfter})
		_, err = e.AddPlayer("Ada", engine.KindHuman)
		require.NoError(t, err)
		_, err = e.AddPlayer("Bea", engine.KindHuman)
		require.NoError(t, err)
		require.NoError(t, e.StartGame())
		return e
	}
	a, b := build(), build()

	// Player ids are random, so compare each engine against itself over time
	// and across engines only through the id-free parts.
	sumA, err := ComputeChecksum(a.Snapshot())
	require.NoError(t, err)
	again, err := ComputeChecksum(a.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, sumA.Hash, again.Hash)
	assert.Equal(t, ChecksumVersion, sumA.Version)

	assert.Equal(t, a.Snapshot().Deck.Cards()[0].ID, b.Snapshot().Deck.Cards()[0].ID)

	cur := a.CurrentPlayerID()
	res, err := a.ExecuteAction(cur, engine.ActionDraw, nil, "")
	require.NoError(t, err)
	require.True(t, res.Success)

	ok, err := VerifyChecksum(a.Snapshot(), sumA)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ComputeChecksum(nil)
	assert.Error(t, err)
}

func TestReplayCursor(t *testing.T) {
	r := NewReplay("s")
	for i := 0; i < 4; i++ {
		r.Record(&Frame{Checksum: string(rune('a' + i))})
	}
	require.Equal(t, 4, r.Size())

	assert.Equal(t, "a", r.Next().Checksum)
	assert.Equal(t, "b", r.Next().Checksum)
	assert.Equal(t, "b", r.Previous().Checksum)
	assert.Equal(t, "d", r.Skip(10).Checksum)
	assert.Equal(t, "a", r.Skip(-10).Checksum)

	r.Start()
	for i := 0; i < 4; i++ {
		require.NotNil(t, r.Next())
	}
	assert.Nil(t, r.Next())
	assert.Nil(t, r.FrameAt(9))
}

func TestRecorderIgnoresStoppedSessions(t *testing.T) {
	rr := NewReplayRecorder(nil, "")
	rr.StartRecording("s")
	rr.Record("s", &Frame{})
	rr.StopRecording("s")
	rr.Record("s", &Frame{})

	replay, ok := rr.GetReplay("s")
	require.True(t, ok)
	assert.Equal(t, 1, replay.Size())
	assert.False(t, rr.IsRecording("s"))
	assert.Error(t, rr.SaveReplay("s"))

	rr.ClearReplay("s")
	_, ok = rr.GetReplay("s")
	assert.False(t, ok)
}

func TestCardTurnedBackIsPushed(t *testing.T) {
	clock := &queuedClock{}
	cache := &fakeCache{}
	m := NewManager(zaptest.NewLogger(t), Options{
		Engine: engine.Options{Seed: 5, AfterFunc: clock.after},
		Cache:  cache,
	})
	c := &collector{}
	m.SetNotificationHandler(c.handle)

	s, err := m.CreateFromTemplate("memory", CreateOptions{})
	require.NoError(t, err)
	p, err := m.Join(s.ID, "Ada", engine.KindHuman)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, m.Start(ctx, s.ID))

	grid := s.Engine.GetGameState().Zone(engine.ZoneMemoryGrid)
	require.NotNil(t, grid)
	first := grid.Cards[0]
	var second *cards.Card
	for _, card := range grid.Cards[1:] {
		if card.Rank != first.Rank {
			second = card
			break
		}
	}
	require.NotNil(t, second)

	for _, id := range []string{first.ID, second.ID} {
		res, err := m.Act(ctx, s.ID, p.ID, engine.ActionFlip, []string{id}, "")
		require.NoError(t, err)
		require.True(t, res.Success, res.Message)
	}

	clock.fire()

	assert.Eventually(t, func() bool {
		return c.find(func(n Notification) bool {
			return n.Type == NotifyStateChange && n.Data["cause"] == engine.ActionFlip && n.Data["cardId"] == second.ID
		})
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		cache.mu.Lock()
		defer cache.mu.Unlock()
		v := cache.views[s.ID]
		if v == nil {
			return false
		}
		for _, z := range v.Zones {
			for _, card := range z.Cards {
				if card.FaceUp {
					return false
				}
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEndDoesNotDoubleReportFinish(t *testing.T) {
	m := newManager(t, Options{})
	c := &collector{}
	m.SetNotificationHandler(c.handle)

	s, err := m.CreateFromTemplate("crazy-eights", CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, m.End(context.Background(), s.ID))

	assert.Eventually(t, func() bool { return c.has(NotifyGameFinished) }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	finished := 0
	for _, n := range c.seen {
		if n.Type == NotifyGameFinished {
			finished++
		}
	}
	assert.Equal(t, 1, finished)
}
