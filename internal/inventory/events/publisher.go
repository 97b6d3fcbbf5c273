package events

import (
	"context"

	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/messaging"
)

const eventSource = "medstock-api"

// StockEventPublisher publishes stock movement events. A nil publisher is
// valid and drops everything, so the broker stays optional.
type StockEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a publisher on the stock events exchange
func NewStockEventPublisher(rabbitmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	if rabbitmq == nil {
		return nil, nil
	}

	publisher, err := messaging.NewPublisher(rabbitmq, messaging.ExchangeStockEvents, eventSource, log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishStockReceived emits a stock.received event after a receipt commits
func (p *StockEventPublisher) PublishStockReceived(ctx context.Context, event *messaging.StockReceivedEvent) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventStockReceived, event)
}

// PublishStockIssued emits a stock.issued event after an issue commits
func (p *StockEventPublisher) PublishStockIssued(ctx context.Context, event *messaging.StockIssuedEvent) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventStockIssued, event)
}

// PublishSettingsUpdated emits a settings.updated event
func (p *StockEventPublisher) PublishSettingsUpdated(ctx context.Context, event *messaging.SettingsUpdatedEvent) {
	if p == nil {
		return
	}
	p.publish(ctx, messaging.EventSettingsUpdated, event)
}

// publish is best-effort: a broker failure is logged, never returned, so
// committed writes are not failed retroactively.
func (p *StockEventPublisher) publish(ctx context.Context, eventType string, data interface{}) {
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.WithError(err).Error().Str("event_type", eventType).Msg("failed to publish event")
	}
}
