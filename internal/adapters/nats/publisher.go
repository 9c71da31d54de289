package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/polysync/internal/core/domain"
)

// PathSubjectPrefix prefixes every path update subject.
const PathSubjectPrefix = "polysync.path."

// PathSubject returns the subject for one session's updates. An empty
// sessionID matches every session.
func PathSubject(sessionID string) string {
	if sessionID == "" {
		return PathSubjectPrefix + "*"
	}
	return PathSubjectPrefix + sessionID
}

// Publisher implements ports.EventPublisher using core NATS. Path updates
// are a live feed for viewers; a missed update is superseded by the next.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to NATS.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// PublishPathUpdated sends update on its session subject.
func (p *Publisher) PublishPathUpdated(ctx context.Context, update domain.PathUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return p.conn.Publish(PathSubject(update.SessionID), data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
