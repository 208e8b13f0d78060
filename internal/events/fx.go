package events

import (
	"context"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/smsrent/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

// NewPublisher connects to NATS when NATS_URL is set, otherwise events are dropped.
func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Publisher, error) {
	log = log.Named("events")
	url := strings.TrimSpace(cfg.NATS.URL)
	if url == "" {
		log.Info("nats not configured; events disabled")
		return NewNopPublisher(), nil
	}

	conn, err := Connect(url, cfg.AppName, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return drain(conn)
		},
	})
	return NewNATSPublisher(conn, cfg.NATS.SubjectPrefix, log), nil
}

func drain(conn *nats.Conn) error {
	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Drain()
}
