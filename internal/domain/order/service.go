package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/shop-fulfillment/internal/domain/stock"
	"github.com/example/shop-fulfillment/internal/email"
	"github.com/example/shop-fulfillment/internal/event"
	"github.com/example/shop-fulfillment/internal/infrastructure/kafka"
	"github.com/example/shop-fulfillment/internal/infrastructure/store"
	"github.com/example/shop-fulfillment/internal/model"
	"github.com/example/shop-fulfillment/internal/notification"
)

// ItemRequest is one requested line item at checkout. Only the product id
// and quantity come from the client; names and prices are resolved from
// the catalog projections, never trusted from client input.
type ItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CreateOrder is the checkout command. The customer fields become the
// order's snapshot of the purchaser.
type CreateOrder struct {
	CustomerID    string        `json:"customer_id"`
	CustomerEmail string        `json:"customer_email"`
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone,omitempty"`
	Items         []ItemRequest `json:"items"`
}

// Service owns the order entity and its status state machine. Creation
// reserves stock through the ledger; transitions append history and
// dispatch best-effort notifications.
type Service struct {
	docStore    store.DocStore
	ledger      *stock.Service
	dispatcher  *notification.Dispatcher
	publisher   kafka.Publisher // optional
	projections []string        // projection collections the ledger fans out to

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(docStore store.DocStore, ledger *stock.Service, dispatcher *notification.Dispatcher, publisher kafka.Publisher, projections []string) *Service {
	return &Service{
		docStore:    docStore,
		ledger:      ledger,
		dispatcher:  dispatcher,
		publisher:   publisher,
		projections: projections,
		locks:       make(map[string]*sync.Mutex),
	}
}

// orderLock returns the mutex serializing mutations of one order.
func (s *Service) orderLock(orderID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[orderID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[orderID] = l
	}
	return l
}

// Create validates the requested items, decrements stock for each line
// item (strict, all-or-nothing) and persists the order with status Placed.
// The total is computed server-side from authoritative unit prices.
func (s *Service) Create(ctx context.Context, cmd CreateOrder) (*model.Order, error) {
	if len(cmd.Items) == 0 {
		return nil, fmt.Errorf("%w: order must have at least one item", ErrInvalidOrder)
	}
	if cmd.CustomerID == "" || cmd.CustomerEmail == "" {
		return nil, fmt.Errorf("%w: customer id and email are required", ErrInvalidOrder)
	}

	// Resolve each line item against the catalog. Quantities are validated
	// here; the authoritative stock check happens in the strict decrement
	// below.
	items := make([]model.OrderItem, 0, len(cmd.Items))
	total := 0
	for _, req := range cmd.Items {
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive for product %s", ErrInvalidOrder, req.ProductID)
		}
		prod, err := s.ledger.Lookup(ctx, req.ProductID, s.projections)
		if err != nil {
			if errors.Is(err, stock.ErrProductNotFound) {
				return nil, fmt.Errorf("%w: unknown product %s", ErrInvalidOrder, req.ProductID)
			}
			return nil, err
		}
		items = append(items, model.OrderItem{
			ProductID: prod.ID,
			Name:      prod.Name,
			UnitPrice: prod.UnitPrice,
			Quantity:  req.Quantity,
			Image:     prod.Image,
		})
		total += prod.UnitPrice * req.Quantity
	}

	// Decrement stock strictly for every line item. Any failure rolls the
	// earlier decrements forward again so no partial reservation survives.
	decremented := make([]model.OrderItem, 0, len(items))
	for _, item := range items {
		if _, err := s.ledger.ApplyDelta(ctx, item.ProductID, -item.Quantity, s.projections, stock.Strict); err != nil {
			s.rollbackDecrements(ctx, decremented)
			return nil, err
		}
		decremented = append(decremented, item)
	}

	now := time.Now()
	o := &model.Order{
		ID:            uuid.New().String(),
		OrderNumber:   newOrderNumber(now),
		CustomerID:    cmd.CustomerID,
		CustomerEmail: cmd.CustomerEmail,
		CustomerName:  cmd.CustomerName,
		CustomerPhone: cmd.CustomerPhone,
		Items:         items,
		Total:         total,
		Status:        model.StatusPlaced,
		StatusHistory: []model.StatusChange{
			{Status: model.StatusPlaced, Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The order write and the decrements form one logical transaction: if
	// the write fails, undo the decrements.
	if err := s.docStore.Set(ctx, store.CollectionOrders, o.ID, o); err != nil {
		s.rollbackDecrements(ctx, decremented)
		return nil, err
	}

	return cloneOrder(o), nil
}

// rollbackDecrements restores stock for line items whose decrement already
// succeeded. Clamping mode: a rollback must never fail on the invariant.
func (s *Service) rollbackDecrements(ctx context.Context, items []model.OrderItem) {
	for _, item := range items {
		if _, err := s.ledger.ApplyDelta(ctx, item.ProductID, item.Quantity, s.projections, stock.Clamp); err != nil {
			log.Printf("[Orders] Failed to restore stock for %s after aborted order: %v", item.ProductID, err)
		}
	}
}

// Transition moves an order to a later status, appends the status history
// entry and persists, then dispatches notifications on the requested
// channels. Notification outcomes never fail the transition; they are
// returned alongside it as non-fatal warnings.
func (s *Service) Transition(ctx context.Context, orderID string, newStatus model.OrderStatus, trackingNumber, notes string, channels []notification.Channel) (*model.Order, []notification.Result, error) {
	lock := s.orderLock(orderID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.load(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	if !canTransitionTo(current.Status, newStatus) {
		return nil, nil, fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, current.Status.Label(), newStatus.Label())
	}

	oldStatus := current.Status
	updated := cloneOrder(current)
	now := time.Now()
	updated.Status = newStatus
	updated.StatusHistory = append(updated.StatusHistory, model.StatusChange{
		Status:    newStatus,
		Timestamp: now,
		Notes:     notes,
	})
	if trackingNumber != "" {
		updated.TrackingNumber = trackingNumber
	}
	updated.UpdatedAt = now

	if err := s.docStore.Set(ctx, store.CollectionOrders, updated.ID, updated); err != nil {
		return nil, nil, err
	}

	s.publishStatusChange(ctx, updated, oldStatus)

	// Phase two: the authoritative state change is committed, now fire the
	// notifications and collect outcomes.
	results := s.notify(ctx, updated, channels)

	return cloneOrder(updated), results, nil
}

// Correct moves an order to any valid status, including backward, for
// operator corrections. The history entry is marked so corrections stay
// auditable. No notifications are sent.
func (s *Service) Correct(ctx context.Context, orderID string, newStatus model.OrderStatus, notes string) (*model.Order, error) {
	lock := s.orderLock(orderID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !newStatus.Valid() || newStatus == current.Status {
		return nil, fmt.Errorf("%w: correction to %s", ErrTransitionNotAllowed, newStatus.Label())
	}

	oldStatus := current.Status
	updated := cloneOrder(current)
	now := time.Now()
	updated.Status = newStatus
	updated.StatusHistory = append(updated.StatusHistory, model.StatusChange{
		Status:    newStatus,
		Timestamp: now,
		Notes:     "correction: " + notes,
	})
	updated.UpdatedAt = now

	if err := s.docStore.Set(ctx, store.CollectionOrders, updated.ID, updated); err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, updated, oldStatus)
	return cloneOrder(updated), nil
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return cloneOrder(o), nil
}

// ListByCustomer returns a customer's orders, newest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]*model.Order, error) {
	all, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	var orders []*model.Order
	for _, o := range all {
		if o.CustomerID == customerID {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

// ListAll returns every order, newest first.
func (s *Service) ListAll(ctx context.Context) ([]*model.Order, error) {
	return s.list(ctx)
}

func (s *Service) load(ctx context.Context, orderID string) (*model.Order, error) {
	doc, ok, err := s.docStore.Get(ctx, store.CollectionOrders, orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	o, ok := doc.(*model.Order)
	if !ok {
		return nil, fmt.Errorf("%w: orders collection holds unexpected document type", store.ErrStorage)
	}
	return o, nil
}

func (s *Service) list(ctx context.Context) ([]*model.Order, error) {
	docs, err := s.docStore.GetAll(ctx, store.CollectionOrders)
	if err != nil {
		return nil, err
	}
	orders := make([]*model.Order, 0, len(docs))
	for _, doc := range docs {
		if o, ok := doc.(*model.Order); ok {
			orders = append(orders, cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// notify dispatches the requested channels concurrently and waits for both
// outcomes. A missing phone number fails that channel's dispatch without
// touching the others.
func (s *Service) notify(ctx context.Context, o *model.Order, channels []notification.Channel) []notification.Result {
	if s.dispatcher == nil || len(channels) == 0 {
		return nil
	}

	results := make([]notification.Result, len(channels))
	var wg sync.WaitGroup
	for i, channel := range channels {
		wg.Add(1)
		go func(i int, channel notification.Channel) {
			defer wg.Done()
			switch channel {
			case notification.ChannelEmail:
				outcome, err := s.dispatcher.SendEmail(ctx,
					o.CustomerEmail,
					email.StatusSubject(o.OrderNumber, o.Status),
					email.BuildStatusChangeBody(o, o.TrackingNumber))
				results[i] = notification.Result{Channel: channel, Recipient: o.CustomerEmail, Outcome: outcome}
				if err != nil {
					results[i].Reason = err.Error()
				}
			case notification.ChannelSMS:
				if o.CustomerPhone == "" {
					results[i] = notification.Result{
						Channel: channel,
						Outcome: notification.OutcomeFailed,
						Reason:  "no phone number on order",
					}
					return
				}
				outcome, err := s.dispatcher.SendSMS(ctx, o.CustomerPhone, email.StatusSMSText(o, o.TrackingNumber))
				results[i] = notification.Result{Channel: channel, Recipient: o.CustomerPhone, Outcome: outcome}
				if err != nil {
					results[i].Reason = err.Error()
				}
			default:
				results[i] = notification.Result{
					Channel: channel,
					Outcome: notification.OutcomeFailed,
					Reason:  "unknown channel",
				}
			}
		}(i, channel)
	}
	wg.Wait()
	return results
}

// publishStatusChange emits an OrderStatusChanged event. Best-effort.
func (s *Service) publishStatusChange(ctx context.Context, o *model.Order, oldStatus model.OrderStatus) {
	if s.publisher == nil {
		return
	}
	env, err := event.Wrap(event.TypeOrderStatusChanged, event.OrderStatusChanged{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		OldStatus:   int(oldStatus),
		NewStatus:   int(o.Status),
		ChangedAt:   o.UpdatedAt,
	})
	if err != nil {
		log.Printf("[Orders] Failed to build OrderStatusChanged event for %s: %v", o.ID, err)
		return
	}
	if err := s.publisher.Publish(ctx, o.ID, env); err != nil {
		log.Printf("[Orders] Failed to publish OrderStatusChanged for %s: %v", o.ID, err)
	}
}
