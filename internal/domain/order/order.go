package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/shop-fulfillment/internal/model"
)

var (
	ErrInvalidOrder         = errors.New("invalid order")
	ErrOrderNotFound        = errors.New("order not found")
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
)

// canTransitionTo reports whether an operator may move an order from its
// current status to target. Transitions are forward-only and may skip
// intermediate states; moving backward requires the separate Correct
// operation so every correction is audited.
func canTransitionTo(current, target model.OrderStatus) bool {
	return target.Valid() && target > current
}

// newOrderNumber generates the human-readable, unique order number used in
// customer communication.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

// cloneOrder deep-copies an order so callers never share slices with the
// stored document.
func cloneOrder(o *model.Order) *model.Order {
	copied := *o
	copied.Items = make([]model.OrderItem, len(o.Items))
	copy(copied.Items, o.Items)
	copied.StatusHistory = make([]model.StatusChange, len(o.StatusHistory))
	copy(copied.StatusHistory, o.StatusHistory)
	return &copied
}
