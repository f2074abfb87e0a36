package stock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/shop-fulfillment/internal/event"
	"github.com/example/shop-fulfillment/internal/infrastructure/kafka"
	"github.com/example/shop-fulfillment/internal/infrastructure/store"
	"github.com/example/shop-fulfillment/internal/model"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found in any listed projection")
	ErrNoProjections     = errors.New("no projections listed")
	ErrNegativeStock     = errors.New("stock must not be negative")
)

// Mode selects how a decrement that would cross zero is handled.
type Mode int

const (
	// Strict rejects a decrement below zero. The customer order path
	// always uses strict mode.
	Strict Mode = iota
	// Clamp floors the result at zero. Administrative stock edits use it.
	Clamp
)

// writeAttempts bounds the per-projection retry of a fan-out write. A
// projection that still fails after this many attempts fails the operation.
const writeAttempts = 3

// Service is the stock ledger. Every stock mutation in the system goes
// through it; it fans the new value out to every listed projection and
// enforces the non-negative invariant. Mutations for the same product are
// serialized; different products proceed in parallel.
type Service struct {
	docStore  store.DocStore
	publisher kafka.Publisher // optional; nil disables event publication

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(docStore store.DocStore, publisher kafka.Publisher) *Service {
	return &Service{
		docStore:  docStore,
		publisher: publisher,
		locks:     make(map[string]*sync.Mutex),
	}
}

// productLock returns the mutex serializing mutations of one product.
func (s *Service) productLock(productID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[productID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[productID] = l
	}
	return l
}

// Available returns the current stock of a product, read from the first
// listed projection that contains it.
func (s *Service) Available(ctx context.Context, productID string, projections []string) (int, error) {
	prod, _, err := s.locate(ctx, productID, projections)
	if err != nil {
		return 0, err
	}
	return prod.Stock, nil
}

// Lookup returns the product document from the first listed projection that
// contains it. Order creation uses it for authoritative names and prices.
func (s *Service) Lookup(ctx context.Context, productID string, projections []string) (*model.Product, error) {
	prod, _, err := s.locate(ctx, productID, projections)
	if err != nil {
		return nil, err
	}
	copied := *prod
	return &copied, nil
}

// ApplyDelta applies a signed stock delta to a product across every listed
// projection and returns the resulting stock. Projections that do not
// contain the product are skipped. Either every present projection reflects
// the new value or an error is returned.
func (s *Service) ApplyDelta(ctx context.Context, productID string, delta int, projections []string, mode Mode) (int, error) {
	lock := s.productLock(productID)
	lock.Lock()
	defer lock.Unlock()

	prod, present, err := s.locate(ctx, productID, projections)
	if err != nil {
		return 0, err
	}

	newStock := prod.Stock + delta
	if newStock < 0 {
		if mode == Strict && delta < 0 {
			return 0, fmt.Errorf("%w: product %s has %d, requested %d", ErrInsufficientStock, productID, prod.Stock, -delta)
		}
		newStock = 0
	}

	if err := s.fanOut(ctx, productID, newStock, present); err != nil {
		return 0, err
	}

	s.publishChange(ctx, prod.Name, productID, newStock, delta, present)
	return newStock, nil
}

// SetAbsolute writes an absolute stock value across every listed projection.
// Used for direct administrative correction.
func (s *Service) SetAbsolute(ctx context.Context, productID string, newStock int, projections []string) error {
	if newStock < 0 {
		return ErrNegativeStock
	}

	lock := s.productLock(productID)
	lock.Lock()
	defer lock.Unlock()

	prod, present, err := s.locate(ctx, productID, projections)
	if err != nil {
		return err
	}

	if err := s.fanOut(ctx, productID, newStock, present); err != nil {
		return err
	}

	s.publishChange(ctx, prod.Name, productID, newStock, newStock-prod.Stock, present)
	return nil
}

// Delete removes the product from the listed projections only. Other
// projections keep their copy; one view dropping a product does not mean
// the product is gone.
func (s *Service) Delete(ctx context.Context, productID string, projections []string) error {
	if len(projections) == 0 {
		return ErrNoProjections
	}

	lock := s.productLock(productID)
	lock.Lock()
	defer lock.Unlock()

	for _, collection := range projections {
		if err := s.docStore.Delete(ctx, collection, productID); err != nil {
			return fmt.Errorf("delete %s from %s: %w", productID, collection, err)
		}
	}
	return nil
}

// locate reads the product from the projections, returning the canonical
// copy (first hit) and the subset of projections that contain it.
func (s *Service) locate(ctx context.Context, productID string, projections []string) (*model.Product, []string, error) {
	if len(projections) == 0 {
		return nil, nil, ErrNoProjections
	}

	var canonical *model.Product
	var present []string
	for _, collection := range projections {
		doc, ok, err := s.docStore.Get(ctx, collection, productID)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s from %s: %w", productID, collection, err)
		}
		if !ok {
			continue
		}
		prod, ok := doc.(*model.Product)
		if !ok {
			return nil, nil, fmt.Errorf("%w: collection %s holds unexpected document type", store.ErrStorage, collection)
		}
		if canonical == nil {
			canonical = prod
		}
		present = append(present, collection)
	}

	if canonical == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return canonical, present, nil
}

// fanOut writes the new stock value (and the derived status) to every
// projection in present. Each write is retried; any projection that still
// fails makes the whole operation fail so callers never see partial
// success.
func (s *Service) fanOut(ctx context.Context, productID string, newStock int, present []string) error {
	now := time.Now()
	status := model.ProductActive
	if newStock == 0 {
		status = model.ProductInactive
	}

	for _, collection := range present {
		var lastErr error
		for attempt := 1; attempt <= writeAttempts; attempt++ {
			_, err := s.docStore.Update(ctx, collection, productID, func(current any) any {
				prod := current.(*model.Product)
				prod.Stock = newStock
				prod.Status = status
				prod.UpdatedAt = now
				return prod
			})
			if err == nil {
				lastErr = nil
				break
			}
			lastErr = err
			log.Printf("[Ledger] Write to %s/%s failed (attempt %d/%d): %v",
				collection, productID, attempt, writeAttempts, err)
		}
		if lastErr != nil {
			return fmt.Errorf("write %s to %s: %w", productID, collection, lastErr)
		}
	}
	return nil
}

// publishChange emits a StockChanged event. Publication failure is logged
// and swallowed; observers are best-effort and must not fail the write.
func (s *Service) publishChange(ctx context.Context, productName, productID string, newStock, delta int, projections []string) {
	if s.publisher == nil {
		return
	}

	env, err := event.Wrap(event.TypeStockChanged, event.StockChanged{
		ProductID:   productID,
		ProductName: productName,
		NewStock:    newStock,
		Delta:       delta,
		Projections: projections,
		ChangedAt:   time.Now(),
	})
	if err != nil {
		log.Printf("[Ledger] Failed to build StockChanged event for %s: %v", productID, err)
		return
	}
	if err := s.publisher.Publish(ctx, productID, env); err != nil {
		log.Printf("[Ledger] Failed to publish StockChanged for %s: %v", productID, err)
	}
}
