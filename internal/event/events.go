package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types carried on the fulfillment stream.
const (
	TypeStockChanged       = "StockChanged"
	TypeOrderStatusChanged = "OrderStatusChanged"
)

// Envelope wraps a domain event for publication.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Wrap builds an envelope around an event payload.
func Wrap(eventType string, data any) (Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Data:      payload,
		Timestamp: time.Now(),
	}, nil
}

// StockChanged is emitted after the ledger has written a new stock value to
// every listed projection. NewStock is the post-write value.
type StockChanged struct {
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	NewStock    int       `json:"new_stock"`
	Delta       int       `json:"delta"`
	Projections []string  `json:"projections"`
	ChangedAt   time.Time `json:"changed_at"`
}

// OrderStatusChanged is emitted after a status transition has been persisted.
type OrderStatusChanged struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	OldStatus   int       `json:"old_status"`
	NewStatus   int       `json:"new_status"`
	ChangedAt   time.Time `json:"changed_at"`
}
