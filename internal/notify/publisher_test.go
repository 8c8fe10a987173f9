package notify

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardsmith/cardsmith-server-go/internal/config"
	"github.com/cardsmith/cardsmith-server-go/internal/session"
)

type recordingConn struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestPublisherSubjectAndPayload(t *testing.T) {
	conn := &recordingConn{}
	p := NewPublisher(conn, "games.", zaptest.NewLogger(t))

	n := session.Notification{
		Type:      session.NotifyPlayerAction,
		SessionID: "abc",
		PlayerID:  "p1",
		Data:      map[string]any{"action": "draw"},
	}
	require.NoError(t, p.Publish(n))

	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "games.abc.player_action", conn.subjects[0])

	var decoded session.Notification
	require.NoError(t, json.Unmarshal(conn.payloads[0], &decoded))
	assert.Equal(t, "p1", decoded.PlayerID)
	assert.Equal(t, "draw", decoded.Data["action"])
}

func TestHandlerSwallowsErrors(t *testing.T) {
	conn := &recordingConn{err: errors.New("down")}
	p := NewPublisher(conn, "", zaptest.NewLogger(t))
	assert.Equal(t, "cardsmith.s.game_finished", p.Subject(session.Notification{Type: session.NotifyGameFinished, SessionID: "s"}))

	p.Handler()(session.Notification{Type: session.NotifyGameFinished, SessionID: "s"})
	assert.Empty(t, conn.subjects)
}

func TestFanout(t *testing.T) {
	var got []string
	h := Fanout(
		func(n session.Notification) { got = append(got, "a:"+n.Type) },
		nil,
		func(n session.Notification) { got = append(got, "b:"+n.Type) },
	)
	h(session.Notification{Type: "X"})
	assert.Equal(t, []string{"a:X", "b:X"}, got)
}

func TestPublishOverNATS(t *testing.T) {
	url := os.Getenv("CARDSMITH_TEST_NATS_URL")
	if url == "" {
		t.Skip("CARDSMITH_TEST_NATS_URL not set")
	}
	nc, err := Connect(config.NATSConfig{URL: url, MaxReconnects: 1, ReconnectWait: time.Second}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer nc.Close()

	msgs := make(chan *natsgo.Msg, 1)
	sub, err := nc.ChanSubscribe("test.*.>", msgs)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	p := NewPublisher(nc, "test", zaptest.NewLogger(t))
	require.NoError(t, p.Publish(session.Notification{Type: session.NotifyStateChange, SessionID: "s1"}))
	require.NoError(t, nc.Flush())

	select {
	case m := <-msgs:
		assert.Equal(t, "test.s1.game_state_change", m.Subject)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}
