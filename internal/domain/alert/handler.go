package alert

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/shop-fulfillment/internal/event"
)

// Handler observes the fulfillment event stream and records alerts for
// stock threshold crossings. It is run in-process by the API binary and
// standalone by cmd/alerter.
type Handler struct {
	service    *Service
	thresholds Thresholds
}

// NewHandler creates a new alert handler
func NewHandler(service *Service, thresholds Thresholds) *Handler {
	return &Handler{
		service:    service,
		thresholds: thresholds,
	}
}

// HandleEvent processes one message from the event stream.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var env event.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		log.Printf("[Alerter] Failed to unmarshal event: %v", err)
		return err
	}

	// Only stock changes can cross a threshold.
	if env.Type != event.TypeStockChanged {
		return nil
	}

	var e event.StockChanged
	if err := json.Unmarshal(env.Data, &e); err != nil {
		log.Printf("[Alerter] Failed to unmarshal StockChanged event: %v", err)
		return err
	}

	a := Evaluate(e.ProductID, e.ProductName, e.NewStock, h.thresholds)
	if a == nil {
		return nil
	}

	rec, err := h.service.Record(ctx, a)
	if err != nil {
		log.Printf("[Alerter] Failed to record %s alert for %s: %v", a.Type, e.ProductID, err)
		return err
	}

	log.Printf("[Alerter] Recorded %s alert for %s (stock %d)", rec.Type, rec.ProductID, rec.CurrentStock)
	return nil
}
