package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Exchanges
const (
	ExchangeStockEvents = "stock.events"
)

// Event types
const (
	// Stock ledger events
	EventStockReceived = "stock.received"
	EventStockIssued   = "stock.issued"

	// Threshold settings events
	EventSettingsUpdated = "stock.settings.updated"
)

// Event is the envelope for every published message
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// BatchBalance is one ledger row's balance after a mutation
type BatchBalance struct {
	BatchStockID   string `json:"batch_stock_id"`
	AvailableBoxes int    `json:"available_boxes"`
}

// StockReceivedEvent is published after a purchase receipt commits
type StockReceivedEvent struct {
	ReceiptID     string         `json:"receipt_id"`
	SupplierID    string         `json:"supplier_id"`
	InvoiceNumber string         `json:"invoice_number"`
	CreatedBy     string         `json:"created_by"`
	BatchUpdates  []BatchBalance `json:"batch_updates"`
}

// StockIssuedEvent is published after a stock issue commits
type StockIssuedEvent struct {
	StockIssueID   string `json:"stock_issue_id"`
	BatchStockID   string `json:"batch_stock_id"`
	IssuedBoxes    int    `json:"issued_boxes"`
	RemainingBoxes int    `json:"remaining_boxes"`
	CreatedBy      string `json:"created_by"`
}

// SettingsUpdatedEvent is published when the threshold settings change
type SettingsUpdatedEvent struct {
	LowStockLimitBoxes int    `json:"low_stock_limit_boxes"`
	ExpiryAlertDays    int    `json:"expiry_alert_days"`
	UpdatedBy          string `json:"updated_by"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
