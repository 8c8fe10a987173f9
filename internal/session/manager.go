// Package session hosts many engines at once: it creates sessions from rule
// documents, seats players, forwards actions, drives bot turns and reports
// what happened to notification handlers and the replay recorder.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardsmith/cardsmith-server-go/internal/game/bot"
	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
	"github.com/cardsmith/cardsmith-server-go/internal/game/enrich"
	"github.com/cardsmith/cardsmith-server-go/internal/game/ir"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoRules         = errors.New("no rules supplied")
	ErrBotOnlySession  = errors.New("session is bot-only")
)

// Notification types.
const (
	NotifyStateChange  = "GAME_STATE_CHANGE"
	NotifyPlayerAction = "PLAYER_ACTION"
	NotifyGameFinished = "GAME_FINISHED"
)

// Notification is sent to the registered handler for UI and broker fan-out.
type Notification struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	PlayerID  string         `json:"playerId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NotificationHandler receives notifications on its own goroutine.
type NotificationHandler func(Notification)

// StateCache stores the public table of a session after every drive.
type StateCache interface {
	Put(ctx context.Context, sessionID string, view *engine.View) error
	Delete(ctx context.Context, sessionID string) error
}

// Options configure every session a manager creates.
type Options struct {
	Engine        engine.Options // SessionID is ignored
	ThinkMin      time.Duration
	ThinkMax      time.Duration
	MaxBotActions int
	MaxProbes     int
	Recorder      *ReplayRecorder
	Cache         StateCache
}

// CreateOptions tune a single session.
type CreateOptions struct {
	Enrich bool
	Seed   int64
}

// Session is one hosted game.
type Session struct {
	ID          string
	Engine      *engine.Engine
	IR          *ir.GameIR
	IRIssues    []string
	Enrichments []string
	CreatedAt   time.Time

	drive    sync.Mutex
	finished bool
}

// Summary is the listing entry of a session.
type Summary struct {
	ID        string            `json:"id"`
	GameName  string            `json:"gameName"`
	Status    engine.GameStatus `json:"status"`
	Players   int               `json:"players"`
	Turn      int               `json:"turn"`
	Winner    string            `json:"winner,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Manager owns the live sessions.
type Manager struct {
	logger   *zap.Logger
	opts     Options
	pipeline *enrich.Pipeline
	runner   *bot.Runner

	mu       sync.RWMutex
	sessions map[string]*Session
	handler  NotificationHandler
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger, opts Options) *Manager {
	if opts.MaxBotActions <= 0 {
		opts.MaxBotActions = bot.DefaultDriveLimit
	}
	decider := bot.NewDecider(logger).WithMaxProbes(opts.MaxProbes)
	return &Manager{
		logger:   logger,
		opts:     opts,
		pipeline: enrich.NewPipeline(logger),
		runner:   bot.NewRunner(decider, logger, opts.ThinkMin, opts.ThinkMax),
		sessions: make(map[string]*Session),
	}
}

// SetNotificationHandler installs the handler for all sessions.
func (m *Manager) SetNotificationHandler(handler NotificationHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

func (m *Manager) emit(n Notification) {
	m.mu.RLock()
	handler := m.handler
	m.mu.RUnlock()

	if handler == nil {
		return
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	go handler(n)
}

// Create hosts a new session for rules.
func (m *Manager) Create(rules *schema.GameRules, opts CreateOptions) (*Session, error) {
	if rules == nil {
		return nil, ErrNoRules
	}
	s := &Session{ID: uuid.NewString(), CreatedAt: time.Now()}

	if opts.Enrich {
		rules, s.Enrichments = m.pipeline.Run(rules)
	}

	eopts := m.opts.Engine
	eopts.SessionID = s.ID
	if opts.Seed != 0 {
		eopts.Seed = opts.Seed
	}
	s.Engine = engine.New(rules, m.logger, eopts)
	m.watch(s)

	var issues []string
	s.IR, issues = ir.EmitIR(s.Engine.Rules())
	if ok, problems := ir.ValidateIR(s.IR); !ok {
		issues = append(issues, problems...)
	}
	s.IRIssues = issues

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if m.opts.Recorder != nil {
		m.opts.Recorder.StartRecording(s.ID)
	}
	if m.logger != nil {
		m.logger.Info("session created",
			zap.String("session_id", s.ID),
			zap.String("game", s.Engine.Rules().Name),
			zap.Strings("enrichments", s.Enrichments),
		)
		if len(issues) > 0 {
			m.logger.Info("ir emission issues",
				zap.String("session_id", s.ID),
				zap.Strings("issues", issues),
			)
		}
	}
	return s, nil
}

// CreateFromTemplate hosts a session of a built-in game.
func (m *Manager) CreateFromTemplate(name string, opts CreateOptions) (*Session, error) {
	rules, err := schema.Template(name)
	if err != nil {
		return nil, err
	}
	return m.Create(rules, opts)
}

// Get returns a live session.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

// Join seats a player. Bot-only sessions refuse humans.
func (m *Manager) Join(sessionID, name string, kind engine.PlayerKind) (*engine.Player, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = engine.KindHuman
	}
	if kind == engine.KindHuman && s.Engine.Rules().Setup.BotOnly {
		return nil, ErrBotOnlySession
	}
	p, err := s.Engine.AddPlayer(name, kind)
	if err != nil {
		return nil, err
	}
	m.emit(Notification{
		Type:      NotifyStateChange,
		SessionID: s.ID,
		PlayerID:  p.ID,
		Data:      map[string]any{"joined": p.Name, "kind": string(p.Kind)},
	})
	return p, nil
}

// Start deals and then plays any bot turns that come first.
func (m *Manager) Start(ctx context.Context, sessionID string) error {
	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	s.drive.Lock()
	defer s.drive.Unlock()

	if err := s.Engine.StartGame(); err != nil {
		return err
	}
	m.record(s, nil)
	if m.logger != nil {
		m.logger.Info("session started",
			zap.String("session_id", s.ID),
			zap.Int("players", len(s.Engine.PlayerIDs())),
		)
	}
	m.checkFinished(s)
	return m.driveBots(ctx, s)
}

// Act applies a player's action and then plays the bot turns that follow it.
// Rejected input comes back as an unsuccessful result, not an error.
func (m *Manager) Act(ctx context.Context, sessionID, playerID, action string, cardIDs []string, target string) (engine.ActionResult, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return engine.ActionResult{}, err
	}
	s.drive.Lock()
	defer s.drive.Unlock()

	res, err := s.Engine.ExecuteAction(playerID, action, cardIDs, target)
	if err != nil {
		return res, err
	}
	m.afterAction(s, res)
	if !res.Success {
		return res, nil
	}
	return res, m.driveBots(ctx, s)
}

// View returns the table as seen by viewerID.
func (m *Manager) View(sessionID, viewerID string) (*engine.View, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.Engine.PublicState(viewerID), nil
}

// End closes a session and forgets it.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.drive.Lock()
	defer s.drive.Unlock()

	s.Engine.Close()
	if !s.finished {
		s.finished = true
		m.emit(Notification{
			Type:      NotifyGameFinished,
			SessionID: s.ID,
			Data:      map[string]any{"winner": s.Engine.Winner(), "reason": "ended"},
		})
		m.closeReplay(s.ID)
	}
	if m.opts.Cache != nil {
		if err := m.opts.Cache.Delete(ctx, s.ID); err != nil && m.logger != nil {
			m.logger.Warn("state cache delete failed", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
	if m.logger != nil {
		m.logger.Info("session ended", zap.String("session_id", s.ID))
	}
	return nil
}

// List returns summaries of the live sessions, oldest first.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	out := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		v := s.Engine.PublicState("")
		out = append(out, Summary{
			ID:        s.ID,
			GameName:  v.GameName,
			Status:    v.Status,
			Players:   len(v.Players),
			Turn:      v.Turn,
			Winner:    v.Winner,
			CreatedAt: s.CreatedAt,
		})
	}
	return out
}

// Replay returns the in-memory recording of a session.
func (m *Manager) Replay(sessionID string) (*Replay, bool) {
	if m.opts.Recorder == nil {
		return nil, false
	}
	return m.opts.Recorder.GetReplay(sessionID)
}

func (m *Manager) driveBots(ctx context.Context, s *Session) error {
	runner := m.runner.WithObserver(func(res engine.ActionResult) {
		m.afterAction(s, res)
	})
	n, err := runner.Drive(ctx, s.Engine, m.opts.MaxBotActions)
	if err != nil && m.logger != nil {
		m.logger.Warn("bot drive interrupted",
			zap.String("session_id", s.ID),
			zap.Int("actions", n),
			zap.Error(err),
		)
	}

	view := s.Engine.PublicState("")
	m.cache(ctx, s.ID, view)
	m.emit(Notification{
		Type:      NotifyStateChange,
		SessionID: s.ID,
		PlayerID:  view.CurrentPlayer,
		Data: map[string]any{
			"status":     string(view.Status),
			"phase":      view.Phase,
			"turn":       view.Turn,
			"botActions": n,
		},
	})
	return err
}

// watch reacts to engine events that happen outside an action, such as a
// flipped card turning back over on its timer. Engine listeners run under the
// engine lock, so the work happens on its own goroutine.
func (m *Manager) watch(s *Session) {
	bus := s.Engine.Events()
	bus.SubscribeTyped(engine.EventCardHidden, func(evt engine.Event) {
		go m.cardHidden(s, evt)
	})
	bus.SubscribeTyped(engine.EventGameFinished, func(engine.Event) {
		go func() {
			s.drive.Lock()
			defer s.drive.Unlock()
			m.checkFinished(s)
		}()
	})
}

func (m *Manager) cardHidden(s *Session, evt engine.Event) {
	s.drive.Lock()
	defer s.drive.Unlock()
	if _, err := m.Get(s.ID); err != nil {
		return
	}
	view := s.Engine.PublicState("")
	m.cache(context.Background(), s.ID, view)
	m.emit(Notification{
		Type:      NotifyStateChange,
		SessionID: s.ID,
		PlayerID:  view.CurrentPlayer,
		Data: map[string]any{
			"status": string(view.Status),
			"phase":  view.Phase,
			"turn":   view.Turn,
			"cause":  evt.Action,
			"cardId": evt.CardID,
		},
	})
}

func (m *Manager) cache(ctx context.Context, sessionID string, view *engine.View) {
	if m.opts.Cache == nil {
		return
	}
	if err := m.opts.Cache.Put(ctx, sessionID, view); err != nil && m.logger != nil {
		m.logger.Warn("state cache put failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (m *Manager) afterAction(s *Session, res engine.ActionResult) {
	if res.Success {
		m.record(s, &res)
	}
	m.emit(Notification{
		Type:      NotifyPlayerAction,
		SessionID: s.ID,
		PlayerID:  res.PlayerID,
		Data: map[string]any{
			"action":  res.Action,
			"success": res.Success,
			"message": res.Message,
		},
	})
	m.checkFinished(s)
}

func (m *Manager) checkFinished(s *Session) {
	if s.finished || s.Engine.PublicState("").Status != engine.StatusFinished {
		return
	}
	s.finished = true
	winner := s.Engine.Winner()
	if m.logger != nil {
		m.logger.Info("session finished",
			zap.String("session_id", s.ID),
			zap.String("winner", winner),
		)
	}
	m.emit(Notification{
		Type:      NotifyGameFinished,
		SessionID: s.ID,
		PlayerID:  winner,
		Data:      map[string]any{"winner": winner},
	})
	m.closeReplay(s.ID)
}

func (m *Manager) record(s *Session, res *engine.ActionResult) {
	rec := m.opts.Recorder
	if rec == nil || !rec.IsRecording(s.ID) {
		return
	}
	frame := &Frame{Action: res, View: s.Engine.PublicState("")}
	if sum, err := ComputeChecksum(s.Engine.Snapshot()); err == nil {
		frame.Checksum = sum.Hash
	}
	rec.Record(s.ID, frame)
}

// closeReplay stops recording and saves when a directory is configured. The
// in-memory copy stays available when nothing was saved.
func (m *Manager) closeReplay(sessionID string) {
	rec := m.opts.Recorder
	if rec == nil {
		return
	}
	rec.StopRecording(sessionID)
	if rec.saveDir == "" {
		return
	}
	if err := rec.SaveReplay(sessionID); err != nil && m.logger != nil {
		m.logger.Warn("replay save failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
