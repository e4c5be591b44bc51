package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NasaVasa/cryptoalerts/internal/domain"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher fans fired alerts out to NATS for downstream consumers.
type Publisher struct {
	conn    *nats.Conn
	subject string
	publish func(subject string, data []byte) error
}

func NewPublisher(url, subject string, logger *zap.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("cryptoalerts-worker"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Publisher{conn: conn, subject: subject, publish: conn.Publish}, nil
}

func (p *Publisher) PublishFired(_ context.Context, event domain.FiredEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.publish(p.subject, data)
}

func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
