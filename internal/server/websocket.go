// Package server exposes the session manager over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cardsmith/cardsmith-server-go/internal/config"
	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
	"github.com/cardsmith/cardsmith-server-go/internal/session"
)

// Inbound message types.
const (
	MsgCreateSession = "create_session"
	MsgJoin          = "join"
	MsgStart         = "start"
	MsgAction        = "action"
	MsgState         = "state"
)

// Outbound message types.
const (
	MsgSession = "session"
	MsgResult  = "result"
	MsgError   = "error"
)

// Message is the envelope for both directions.
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	PlayerID  string          `json:"player_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// CreateRequest is the data of create_session. Exactly one source is used,
// in order: Rules, SchemaID, Template.
type CreateRequest struct {
	Template string            `json:"template,omitempty"`
	SchemaID string            `json:"schema_id,omitempty"`
	Rules    *schema.GameRules `json:"rules,omitempty"`
	Enrich   bool              `json:"enrich,omitempty"`
	Seed     int64             `json:"seed,omitempty"`
}

// SessionInfo answers create_session and join.
type SessionInfo struct {
	SessionID   string   `json:"session_id"`
	PlayerID    string   `json:"player_id,omitempty"`
	GameName    string   `json:"game_name"`
	Enrichments []string `json:"enrichments,omitempty"`
	IRIssues    []string `json:"ir_issues,omitempty"`
}

type JoinRequest struct {
	Name string            `json:"name"`
	Kind engine.PlayerKind `json:"kind,omitempty"`
}

type ActionRequest struct {
	Action string   `json:"action"`
	Cards  []string `json:"cards,omitempty"`
	Target string   `json:"target,omitempty"`
}

type errorData struct {
	Message string `json:"message"`
}

// SchemaSource resolves stored documents for create_session.
type SchemaSource interface {
	Get(ctx context.Context, id string) (*schema.GameRules, error)
}

// SchemaSourceFunc adapts a function to SchemaSource.
type SchemaSourceFunc func(ctx context.Context, id string) (*schema.GameRules, error)

func (f SchemaSourceFunc) Get(ctx context.Context, id string) (*schema.GameRules, error) {
	return f(ctx, id)
}

// Client is one connection. It is bound to at most one seat at a time.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	limiter   *rate.Limiter
	sessionID string
	playerID  string
}

// Server upgrades connections and routes their messages to the manager.
type Server struct {
	cfg      config.ServerConfig
	manager  *session.Manager
	schemas  SchemaSource
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]bool
}

// New builds a server. schemas may be nil.
func New(cfg config.ServerConfig, manager *session.Manager, schemas SchemaSource, logger *zap.Logger) *Server {
	if cfg.MessagesPerSec <= 0 {
		cfg.MessagesPerSec = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Server{
		cfg:     cfg,
		manager: manager,
		schemas: schemas,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*Client]bool),
	}
}

// ListenAndServe serves /ws until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s)
	srv := &http.Server{Addr: s.cfg.Address, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if s.logger != nil {
		s.logger.Info("websocket server listening", zap.String("address", s.cfg.Address))
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP upgrades the request and starts the client pumps.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", zap.Error(err))
		}
		return
	}
	if s.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageSize)
	}

	c := &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSec), s.cfg.Burst),
	}
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()

	go s.writePump(c)
	go s.readPump(r.Context(), c)
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[c] {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) readPump(ctx context.Context, c *Client) {
	defer func() {
		s.unregister(c)
		c.conn.Close()
	}()

	ctx = context.WithoutCancel(ctx)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			s.reply(c, errorMessage("", "rate limit exceeded"))
			continue
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.reply(c, errorMessage("", "malformed message"))
			continue
		}
		for _, out := range s.handle(ctx, c, msg) {
			s.reply(c, out)
		}
	}
}

func (s *Server) writePump(c *Client) {
	defer c.conn.Close()

	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (s *Server) reply(c *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		if s.logger != nil {
			s.logger.Warn("client send buffer full", zap.String("player_id", c.playerID))
		}
	}
}

func (s *Server) handle(ctx context.Context, c *Client, msg Message) []Message {
	switch msg.Type {
	case MsgCreateSession:
		return s.handleCreate(ctx, c, msg)
	case MsgJoin:
		return s.handleJoin(c, msg)
	case MsgStart:
		id := s.sessionOf(c, msg)
		if err := s.manager.Start(ctx, id); err != nil {
			return []Message{errorMessage(id, err.Error())}
		}
		return []Message{s.stateMessage(id, c.playerID)}
	case MsgAction:
		return s.handleAction(ctx, c, msg)
	case MsgState:
		return []Message{s.stateMessage(s.sessionOf(c, msg), s.viewerOf(c, msg))}
	default:
		return []Message{errorMessage(msg.SessionID, fmt.Sprintf("unknown message type %q", msg.Type))}
	}
}

func (s *Server) handleCreate(ctx context.Context, c *Client, msg Message) []Message {
	var req CreateRequest
	if err := decode(msg.Data, &req); err != nil {
		return []Message{errorMessage("", err.Error())}
	}
	opts := session.CreateOptions{Enrich: req.Enrich, Seed: req.Seed}

	var (
		sess *session.Session
		err  error
	)
	switch {
	case req.Rules != nil:
		sess, err = s.manager.Create(req.Rules, opts)
	case req.SchemaID != "":
		if s.schemas == nil {
			return []Message{errorMessage("", "schema store not configured")}
		}
		var rules *schema.GameRules
		if rules, err = s.schemas.Get(ctx, req.SchemaID); err == nil {
			sess, err = s.manager.Create(rules, opts)
		}
	case req.Template != "":
		sess, err = s.manager.CreateFromTemplate(req.Template, opts)
	default:
		err = errors.New("create_session needs rules, schema_id or template")
	}
	if err != nil {
		return []Message{errorMessage("", err.Error())}
	}

	s.bind(c, sess.ID, "")
	return []Message{dataMessage(MsgSession, sess.ID, "", SessionInfo{
		SessionID:   sess.ID,
		GameName:    sess.Engine.Rules().Name,
		Enrichments: sess.Enrichments,
		IRIssues:    sess.IRIssues,
	})}
}

func (s *Server) handleJoin(c *Client, msg Message) []Message {
	var req JoinRequest
	if err := decode(msg.Data, &req); err != nil {
		return []Message{errorMessage(msg.SessionID, err.Error())}
	}
	id := s.sessionOf(c, msg)
	p, err := s.manager.Join(id, req.Name, req.Kind)
	if err != nil {
		return []Message{errorMessage(id, err.Error())}
	}
	if p.Kind == engine.KindHuman {
		s.bind(c, id, p.ID)
	}
	sess, err := s.manager.Get(id)
	if err != nil {
		return []Message{errorMessage(id, err.Error())}
	}
	return []Message{dataMessage(MsgSession, id, p.ID, SessionInfo{
		SessionID: id,
		PlayerID:  p.ID,
		GameName:  sess.Engine.Rules().Name,
	})}
}

func (s *Server) handleAction(ctx context.Context, c *Client, msg Message) []Message {
	var req ActionRequest
	if err := decode(msg.Data, &req); err != nil {
		return []Message{errorMessage(msg.SessionID, err.Error())}
	}
	id := s.sessionOf(c, msg)
	player := s.viewerOf(c, msg)
	res, err := s.manager.Act(ctx, id, player, req.Action, req.Cards, req.Target)
	if err != nil {
		return []Message{errorMessage(id, err.Error())}
	}
	return []Message{dataMessage(MsgResult, id, player, res), s.stateMessage(id, player)}
}

func (s *Server) stateMessage(sessionID, viewerID string) Message {
	view, err := s.manager.View(sessionID, viewerID)
	if err != nil {
		return errorMessage(sessionID, err.Error())
	}
	return dataMessage(MsgState, sessionID, viewerID, view)
}

// Notify pushes fresh state to every client seated in the notified session.
// It is meant to be installed as (part of) the manager's notification handler.
func (s *Server) Notify(n session.Notification) {
	if n.Type != session.NotifyStateChange && n.Type != session.NotifyGameFinished {
		return
	}
	type target struct {
		client *Client
		viewer string
	}
	s.mu.RLock()
	var targets []target
	for c := range s.clients {
		if c.sessionID == n.SessionID {
			targets = append(targets, target{c, c.playerID})
		}
	}
	s.mu.RUnlock()

	for _, t := range targets {
		s.reply(t.client, s.stateMessage(n.SessionID, t.viewer))
	}
}

// bind seats c; Notify reads the binding from other goroutines.
func (s *Server) bind(c *Client, sessionID, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.sessionID = sessionID
	c.playerID = playerID
}

func (s *Server) sessionOf(c *Client, msg Message) string {
	if msg.SessionID != "" {
		return msg.SessionID
	}
	return c.sessionID
}

func (s *Server) viewerOf(c *Client, msg Message) string {
	if msg.PlayerID != "" {
		return msg.PlayerID
	}
	return c.playerID
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("malformed data: %w", err)
	}
	return nil
}

func dataMessage(kind, sessionID, playerID string, v any) Message {
	data, err := json.Marshal(v)
	if err != nil {
		return errorMessage(sessionID, err.Error())
	}
	return Message{Type: kind, SessionID: sessionID, PlayerID: playerID, Data: data}
}

func errorMessage(sessionID, text string) Message {
	data, _ := json.Marshal(errorData{Message: text})
	return Message{Type: MsgError, SessionID: sessionID, Data: data}
}
