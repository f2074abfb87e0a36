package stock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/shop-fulfillment/internal/event"
	"github.com/example/shop-fulfillment/internal/infrastructure/store"
	"github.com/example/shop-fulfillment/internal/infrastructure/store/mocks"
	"github.com/example/shop-fulfillment/internal/model"
)

var testProjections = []string{"products_storefront", "products_featured", "products_admin"}

type capturingPublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, e any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func newTestLedger() (*Service, *mocks.MockDocStore, *capturingPublisher) {
	docStore := mocks.NewMockDocStore()
	publisher := &capturingPublisher{}
	return NewService(docStore, publisher), docStore, publisher
}

func seedProduct(docStore *mocks.MockDocStore, id string, stock int, collections ...string) {
	for _, collection := range collections {
		docStore.SetData(collection, id, &model.Product{
			ID:        id,
			Name:      "Widget " + id,
			UnitPrice: 1500,
			Stock:     stock,
			Status:    model.ProductActive,
			UpdatedAt: time.Now(),
		})
	}
}

func stockIn(t *testing.T, docStore *mocks.MockDocStore, collection, id string) int {
	t.Helper()
	doc, ok := docStore.GetData(collection, id)
	require.True(t, ok, "product %s missing from %s", id, collection)
	return doc.(*model.Product).Stock
}

// ============================================
// ApplyDelta Tests
// ============================================

func TestService_ApplyDelta_FansOutToAllProjections(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 10, testProjections...)

	newStock, err := service.ApplyDelta(ctx, "prod-1", -3, testProjections, Strict)

	require.NoError(t, err)
	assert.Equal(t, 7, newStock)
	for _, collection := range testProjections {
		assert.Equal(t, 7, stockIn(t, docStore, collection, "prod-1"))
	}
}

func TestService_ApplyDelta_Increment(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 2, testProjections...)

	newStock, err := service.ApplyDelta(ctx, "prod-1", 5, testProjections, Strict)

	require.NoError(t, err)
	assert.Equal(t, 7, newStock)
}

func TestService_ApplyDelta_StrictRejectsBelowZero(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 2, testProjections...)

	_, err := service.ApplyDelta(ctx, "prod-1", -3, testProjections, Strict)

	assert.ErrorIs(t, err, ErrInsufficientStock)
	// Nothing written
	for _, collection := range testProjections {
		assert.Equal(t, 2, stockIn(t, docStore, collection, "prod-1"))
	}
}

func TestService_ApplyDelta_ClampFloorsAtZero(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 2, testProjections...)

	newStock, err := service.ApplyDelta(ctx, "prod-1", -5, testProjections, Clamp)

	require.NoError(t, err)
	assert.Equal(t, 0, newStock)
	for _, collection := range testProjections {
		assert.Equal(t, 0, stockIn(t, docStore, collection, "prod-1"))
	}
}

func TestService_ApplyDelta_ZeroStockDeactivates(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 3, testProjections...)

	_, err := service.ApplyDelta(ctx, "prod-1", -3, testProjections, Strict)

	require.NoError(t, err)
	for _, collection := range testProjections {
		doc, _ := docStore.GetData(collection, "prod-1")
		assert.Equal(t, model.ProductInactive, doc.(*model.Product).Status)
	}
}

func TestService_ApplyDelta_RestockReactivates(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 0, testProjections...)

	_, err := service.ApplyDelta(ctx, "prod-1", 4, testProjections, Strict)

	require.NoError(t, err)
	doc, _ := docStore.GetData("products_storefront", "prod-1")
	assert.Equal(t, model.ProductActive, doc.(*model.Product).Status)
}

func TestService_ApplyDelta_SkipsProjectionsMissingTheProduct(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	// Present in storefront and admin only.
	seedProduct(docStore, "prod-1", 10, "products_storefront", "products_admin")

	newStock, err := service.ApplyDelta(ctx, "prod-1", -4, testProjections, Strict)

	require.NoError(t, err)
	assert.Equal(t, 6, newStock)
	assert.Equal(t, 6, stockIn(t, docStore, "products_storefront", "prod-1"))
	assert.Equal(t, 6, stockIn(t, docStore, "products_admin", "prod-1"))
	_, ok := docStore.GetData("products_featured", "prod-1")
	assert.False(t, ok)
}

func TestService_ApplyDelta_UnknownProduct(t *testing.T) {
	service, _, _ := newTestLedger()
	ctx := context.Background()

	_, err := service.ApplyDelta(ctx, "nope", -1, testProjections, Strict)

	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestService_ApplyDelta_NoProjections(t *testing.T) {
	service, _, _ := newTestLedger()
	ctx := context.Background()

	_, err := service.ApplyDelta(ctx, "prod-1", -1, nil, Strict)

	assert.ErrorIs(t, err, ErrNoProjections)
}

func TestService_ApplyDelta_PersistentWriteFailureFailsOperation(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 10, testProjections...)
	docStore.UpdateErr = store.ErrStorage

	_, err := service.ApplyDelta(ctx, "prod-1", -3, testProjections, Strict)

	assert.ErrorIs(t, err, store.ErrStorage)
	assert.Equal(t, 10, stockIn(t, docStore, "products_storefront", "prod-1"))
}

func TestService_ApplyDelta_PublishesStockChanged(t *testing.T) {
	service, docStore, publisher := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 10, testProjections...)

	_, err := service.ApplyDelta(ctx, "prod-1", -6, testProjections, Strict)

	require.NoError(t, err)
	require.Len(t, publisher.events, 1)
	env, ok := publisher.events[0].(event.Envelope)
	require.True(t, ok)
	assert.Equal(t, event.TypeStockChanged, env.Type)
}

func TestService_ApplyDelta_NilPublisher(t *testing.T) {
	docStore := mocks.NewMockDocStore()
	service := NewService(docStore, nil)
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 10, testProjections...)

	newStock, err := service.ApplyDelta(ctx, "prod-1", -1, testProjections, Strict)

	require.NoError(t, err)
	assert.Equal(t, 9, newStock)
}

// ============================================
// Concurrency Tests
// ============================================

func TestService_ApplyDelta_ConcurrentDecrementsNeverGoNegative(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()

	const initial = 20
	seedProduct(docStore, "prod-1", initial, testProjections...)

	// One more decrement than there is stock.
	var wg sync.WaitGroup
	errs := make([]error, initial+1)
	for i := 0; i <= initial; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.ApplyDelta(ctx, "prod-1", -1, testProjections, Strict)
		}(i)
	}
	wg.Wait()

	rejected := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrInsufficientStock)
			rejected++
		}
	}
	assert.Equal(t, 1, rejected)
	for _, collection := range testProjections {
		assert.Equal(t, 0, stockIn(t, docStore, collection, "prod-1"))
	}
}

func TestService_ApplyDelta_DifferentProductsProceedIndependently(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 5, testProjections...)
	seedProduct(docStore, "prod-2", 5, testProjections...)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = service.ApplyDelta(ctx, "prod-1", -1, testProjections, Strict)
		}()
		go func() {
			defer wg.Done()
			_, _ = service.ApplyDelta(ctx, "prod-2", -1, testProjections, Strict)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, stockIn(t, docStore, "products_storefront", "prod-1"))
	assert.Equal(t, 0, stockIn(t, docStore, "products_storefront", "prod-2"))
}

// ============================================
// SetAbsolute Tests
// ============================================

func TestService_SetAbsolute_Success(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 3, testProjections...)

	err := service.SetAbsolute(ctx, "prod-1", 50, testProjections)

	require.NoError(t, err)
	for _, collection := range testProjections {
		assert.Equal(t, 50, stockIn(t, docStore, collection, "prod-1"))
	}
}

func TestService_SetAbsolute_RejectsNegative(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 3, testProjections...)

	err := service.SetAbsolute(ctx, "prod-1", -1, testProjections)

	assert.ErrorIs(t, err, ErrNegativeStock)
	assert.Equal(t, 3, stockIn(t, docStore, "products_storefront", "prod-1"))
}

// ============================================
// Delete / Read Tests
// ============================================

func TestService_Delete_RemovesFromListedProjectionsOnly(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 3, testProjections...)

	err := service.Delete(ctx, "prod-1", []string{"products_featured"})

	require.NoError(t, err)
	_, ok := docStore.GetData("products_featured", "prod-1")
	assert.False(t, ok)
	_, ok = docStore.GetData("products_storefront", "prod-1")
	assert.True(t, ok)
	_, ok = docStore.GetData("products_admin", "prod-1")
	assert.True(t, ok)
}

func TestService_Available(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 7, testProjections...)

	stock, err := service.Available(ctx, "prod-1", testProjections)

	require.NoError(t, err)
	assert.Equal(t, 7, stock)
}

func TestService_Lookup_ReturnsCopy(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	seedProduct(docStore, "prod-1", 7, testProjections...)

	prod, err := service.Lookup(ctx, "prod-1", testProjections)
	require.NoError(t, err)

	prod.Stock = 999
	assert.Equal(t, 7, stockIn(t, docStore, "products_storefront", "prod-1"))
}

func TestService_Lookup_PropagatesStorageError(t *testing.T) {
	service, docStore, _ := newTestLedger()
	ctx := context.Background()
	docStore.GetErr = errors.New("connection refused")

	_, err := service.Lookup(ctx, "prod-1", testProjections)

	assert.Error(t, err)
}
