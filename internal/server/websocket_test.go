package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardsmith/cardsmith-server-go/internal/config"
	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
	"github.com/cardsmith/cardsmith-server-go/internal/session"
)

func startServer(t *testing.T, cfg config.ServerConfig, schemas SchemaSource) (*websocket.Conn, *session.Manager) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	m := session.NewManager(logger, session.Options{Engine: engine.Options{Seed: 3}, MaxBotActions: 100})
	srv := New(cfg, m, schemas, logger)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, m
}

func send(t *testing.T, conn *websocket.Conn, kind string, data any) {
	t.Helper()
	msg := Message{Type: kind}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		msg.Data = raw
	}
	require.NoError(t, conn.WriteJSON(msg))
}

func receive(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestCreateJoinStartAndAct(t *testing.T) {
	conn, m := startServer(t, config.ServerConfig{MessagesPerSec: 1000, Burst: 100}, nil)

	send(t, conn, MsgCreateSession, CreateRequest{Template: "crazy-eights"})
	created := receive(t, conn)
	require.Equal(t, MsgSession, created.Type, string(created.Data))
	var info SessionInfo
	require.NoError(t, json.Unmarshal(created.Data, &info))
	assert.Equal(t, "Crazy Eights", info.GameName)
	require.NotEmpty(t, info.SessionID)

	send(t, conn, MsgJoin, JoinRequest{Name: "Ada"})
	joined := receive(t, conn)
	require.Equal(t, MsgSession, joined.Type, string(joined.Data))
	require.NoError(t, json.Unmarshal(joined.Data, &info))
	ada := info.PlayerID
	require.NotEmpty(t, ada)

	send(t, conn, MsgJoin, JoinRequest{Name: "Bot", Kind: engine.KindBot})
	require.Equal(t, MsgSession, receive(t, conn).Type)

	send(t, conn, MsgStart, nil)
	started := receive(t, conn)
	require.Equal(t, MsgState, started.Type, string(started.Data))
	var view engine.View
	require.NoError(t, json.Unmarshal(started.Data, &view))
	assert.Equal(t, engine.StatusActive, view.Status)
	me := view.Player(ada)
	require.NotNil(t, me)
	assert.False(t, me.HandHidden)
	assert.Len(t, me.Hand, 5)

	send(t, conn, MsgAction, ActionRequest{Action: engine.ActionDraw})
	result := receive(t, conn)
	require.Equal(t, MsgResult, result.Type, string(result.Data))
	var res engine.ActionResult
	require.NoError(t, json.Unmarshal(result.Data, &res))
	assert.True(t, res.Success, res.Message)
	assert.Equal(t, MsgState, receive(t, conn).Type)

	send(t, conn, MsgState, nil)
	assert.Equal(t, MsgState, receive(t, conn).Type)

	require.Len(t, m.List(), 1)
}

func TestErrorsComeBackAsMessages(t *testing.T) {
	conn, _ := startServer(t, config.ServerConfig{MessagesPerSec: 1000, Burst: 100}, nil)

	send(t, conn, "dance", nil)
	assert.Equal(t, MsgError, receive(t, conn).Type)

	send(t, conn, MsgCreateSession, CreateRequest{})
	assert.Equal(t, MsgError, receive(t, conn).Type)

	send(t, conn, MsgCreateSession, CreateRequest{SchemaID: "abc"})
	msg := receive(t, conn)
	assert.Equal(t, MsgError, msg.Type)
	assert.Contains(t, string(msg.Data), "schema store not configured")

	send(t, conn, MsgStart, nil)
	assert.Equal(t, MsgError, receive(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, MsgError, receive(t, conn).Type)
}

func TestCreateFromSchemaSource(t *testing.T) {
	schemas := SchemaSourceFunc(func(_ context.Context, id string) (*schema.GameRules, error) {
		if id != "memory" {
			return nil, errors.New("schema not found")
		}
		return schema.Template("memory")
	})
	conn, _ := startServer(t, config.ServerConfig{MessagesPerSec: 1000, Burst: 100}, schemas)

	send(t, conn, MsgCreateSession, CreateRequest{SchemaID: "memory"})
	created := receive(t, conn)
	require.Equal(t, MsgSession, created.Type, string(created.Data))

	send(t, conn, MsgCreateSession, CreateRequest{SchemaID: "other"})
	assert.Equal(t, MsgError, receive(t, conn).Type)
}

func TestRateLimit(t *testing.T) {
	conn, _ := startServer(t, config.ServerConfig{MessagesPerSec: 0.001, Burst: 1}, nil)

	send(t, conn, MsgState, nil)
	first := receive(t, conn)
	assert.NotContains(t, string(first.Data), "rate limit")

	send(t, conn, MsgState, nil)
	second := receive(t, conn)
	assert.Equal(t, MsgError, second.Type)
	assert.Contains(t, string(second.Data), "rate limit exceeded")
}
