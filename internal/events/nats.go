package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type natsPublisher struct {
	conn   *nats.Conn
	prefix string
	log    *zap.Logger
}

// Connect dials NATS with reconnect handlers that log through zap.
func Connect(url, name string, log *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

func NewNATSPublisher(conn *nats.Conn, prefix string, log *zap.Logger) Publisher {
	return &natsPublisher{conn: conn, prefix: prefix, log: log}
}

func (p *natsPublisher) Publish(ctx context.Context, subject string, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = ulid.Make().String()
	}
	if event.Type == "" {
		event.Type = subject
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	full := p.prefix + subject
	if err := p.conn.Publish(full, payload); err != nil {
		return fmt.Errorf("publish %s: %w", full, err)
	}
	p.log.Debug("event published", zap.String("subject", full), zap.String("event_id", event.ID))
	return nil
}
