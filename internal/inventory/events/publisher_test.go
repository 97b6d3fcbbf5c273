package events

import (
	"context"
	"testing"

	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStockEventPublisher_NilConnection(t *testing.T) {
	log := logger.New("test", "test")

	p, err := NewStockEventPublisher(nil, log)
	require.NoError(t, err)
	assert.Nil(t, p, "no broker configured means no publisher")
}

func TestNilPublisherCallsAreNoOps(t *testing.T) {
	var p *StockEventPublisher
	ctx := context.Background()

	// Must not panic; the service calls these unconditionally after commit
	p.PublishStockReceived(ctx, &messaging.StockReceivedEvent{ReceiptID: "r1"})
	p.PublishStockIssued(ctx, &messaging.StockIssuedEvent{StockIssueID: "i1"})
	p.PublishSettingsUpdated(ctx, &messaging.SettingsUpdatedEvent{UpdatedBy: "u1"})
}
