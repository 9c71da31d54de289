package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/polysync/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using core NATS.
type Subscriber struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

// NewSubscriber connects to NATS.
func NewSubscriber(url string, logger *slog.Logger) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return NewSubscriberWithConn(conn, logger), nil
}

// NewSubscriberWithConn subscribes over an existing connection.
func NewSubscriberWithConn(conn *nats.Conn, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{conn: conn, logger: logger}
}

// SubscribePathUpdates delivers path updates for sessionID, or for every
// session when sessionID is empty. Undecodable messages are dropped.
func (s *Subscriber) SubscribePathUpdates(ctx context.Context, sessionID string, handler func(ctx context.Context, update domain.PathUpdate) error) error {
	sub, err := s.conn.Subscribe(PathSubject(sessionID), func(msg *nats.Msg) {
		var update domain.PathUpdate
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			s.logger.Warn("drop path update", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, update); err != nil {
			s.logger.Warn("path update handler", "session_id", update.SessionID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", PathSubject(sessionID), err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
