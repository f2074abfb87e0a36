package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/example/shop-fulfillment/internal/infrastructure/store"
	"github.com/example/shop-fulfillment/internal/model"
)

var ErrAlertNotFound = errors.New("alert not found")

// Service persists alert records and exposes the unread state the operator
// dashboard polls. At most one unread alert per (product, type) is kept:
// a repeated crossing refreshes the existing unread alert instead of
// piling up duplicates; read alerts stay as history.
type Service struct {
	docStore store.DocStore
}

func NewService(docStore store.DocStore) *Service {
	return &Service{docStore: docStore}
}

// Record persists an evaluated alert, upserting by (product, type, unread).
func (s *Service) Record(ctx context.Context, a *model.StockAlert) (*model.StockAlert, error) {
	existing, err := s.findUnread(ctx, a.ProductID, a.Type)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if existing != nil {
		updated, err := s.docStore.Update(ctx, store.CollectionAlerts, existing.ID, func(current any) any {
			rec := current.(*model.StockAlert)
			rec.CurrentStock = a.CurrentStock
			rec.Threshold = a.Threshold
			rec.Priority = a.Priority
			rec.Message = a.Message
			rec.CreatedAt = now
			return rec
		})
		if err != nil {
			return nil, err
		}
		if updated {
			return s.get(ctx, existing.ID)
		}
		// Marked read between the scan and the update; fall through to a
		// fresh record.
	}

	rec := *a
	rec.ID = uuid.New().String()
	rec.Read = false
	rec.CreatedAt = now
	if err := s.docStore.Set(ctx, store.CollectionAlerts, rec.ID, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkRead marks an alert as read. Idempotent: marking an already-read
// alert again is not an error.
func (s *Service) MarkRead(ctx context.Context, alertID string) error {
	updated, err := s.docStore.Update(ctx, store.CollectionAlerts, alertID, func(current any) any {
		rec := current.(*model.StockAlert)
		rec.Read = true
		return rec
	})
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
	}
	return nil
}

// CountUnread returns the number of unread alerts, optionally restricted
// to the given types.
func (s *Service) CountUnread(ctx context.Context, types ...string) (int, error) {
	alerts, err := s.list(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, a := range alerts {
		if a.Read {
			continue
		}
		if len(types) == 0 || containsType(types, a.Type) {
			count++
		}
	}
	return count, nil
}

// List returns all alerts, newest first.
func (s *Service) List(ctx context.Context) ([]*model.StockAlert, error) {
	alerts, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	return alerts, nil
}

func (s *Service) list(ctx context.Context) ([]*model.StockAlert, error) {
	docs, err := s.docStore.GetAll(ctx, store.CollectionAlerts)
	if err != nil {
		return nil, err
	}
	alerts := make([]*model.StockAlert, 0, len(docs))
	for _, doc := range docs {
		if a, ok := doc.(*model.StockAlert); ok {
			alerts = append(alerts, a)
		}
	}
	return alerts, nil
}

func (s *Service) get(ctx context.Context, alertID string) (*model.StockAlert, error) {
	doc, ok, err := s.docStore.Get(ctx, store.CollectionAlerts, alertID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
	}
	return doc.(*model.StockAlert), nil
}

func (s *Service) findUnread(ctx context.Context, productID, alertType string) (*model.StockAlert, error) {
	alerts, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range alerts {
		if !a.Read && a.ProductID == productID && a.Type == alertType {
			return a, nil
		}
	}
	return nil, nil
}

func containsType(types []string, t string) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
