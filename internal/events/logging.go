package events

import (
	"context"

	"github.com/sirupsen/logrus"
)

type loggingPublisher struct {
	next Publisher
	log  logrus.FieldLogger
}

// NewLoggingPublisher reports every failed delivery of next as a warning.
func NewLoggingPublisher(next Publisher, log logrus.FieldLogger) Publisher {
	return &loggingPublisher{next: next, log: log}
}

func (p *loggingPublisher) Publish(ctx context.Context, key string, payload any) error {
	err := p.next.Publish(ctx, key, payload)
	if err != nil {
		p.log.WithError(err).WithField("routing_key", key).Warn("failed to publish event")
	}
	return err
}
