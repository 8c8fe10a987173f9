// Package notify fans session notifications out over NATS.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/cardsmith/cardsmith-server-go/internal/config"
	"github.com/cardsmith/cardsmith-server-go/internal/session"
)

// Conn is the part of a NATS connection the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher sends every notification as JSON on
// <prefix>.<session id>.<notification type>.
type Publisher struct {
	conn   Conn
	prefix string
	logger *zap.Logger
}

// Connect dials NATS with reconnect settings from cfg.
func Connect(cfg config.NATSConfig, logger *zap.Logger) (*natsgo.Conn, error) {
	opts := []natsgo.Option{
		natsgo.Name("cardsmith"),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if logger != nil && err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			if logger != nil {
				logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
			}
		}),
	}
	nc, err := natsgo.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// NewPublisher publishes through conn. An empty prefix defaults to
// "cardsmith".
func NewPublisher(conn Conn, prefix string, logger *zap.Logger) *Publisher {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = "cardsmith"
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// Subject returns the subject a notification is published on.
func (p *Publisher) Subject(n session.Notification) string {
	return p.prefix + "." + n.SessionID + "." + strings.ToLower(n.Type)
}

// Publish encodes and sends n.
func (p *Publisher) Publish(n session.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.conn.Publish(p.Subject(n), data); err != nil {
		return fmt.Errorf("publish %s: %w", p.Subject(n), err)
	}
	return nil
}

// Handler adapts the publisher to a session.NotificationHandler. Failures are
// logged and dropped.
func (p *Publisher) Handler() session.NotificationHandler {
	return func(n session.Notification) {
		if err := p.Publish(n); err != nil && p.logger != nil {
			p.logger.Warn("notification publish failed",
				zap.String("session_id", n.SessionID),
				zap.String("type", n.Type),
				zap.Error(err),
			)
		}
	}
}

// Fanout combines handlers into one.
func Fanout(handlers ...session.NotificationHandler) session.NotificationHandler {
	return func(n session.Notification) {
		for _, h := range handlers {
			if h != nil {
				h(n)
			}
		}
	}
}
