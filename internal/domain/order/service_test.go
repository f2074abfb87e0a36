package order

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/shop-fulfillment/internal/domain/stock"
	"github.com/example/shop-fulfillment/internal/infrastructure/store"
	"github.com/example/shop-fulfillment/internal/infrastructure/store/mocks"
	"github.com/example/shop-fulfillment/internal/model"
	"github.com/example/shop-fulfillment/internal/notification"
)

var testProjections = []string{"products_storefront", "products_featured", "products_admin"}

type stubProvider struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *stubProvider) record() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
}

func (p *stubProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stubEmail struct{ stubProvider }

func (p *stubEmail) Send(_ context.Context, _, _, _ string) error {
	p.record()
	return p.err
}

type stubSMS struct{ stubProvider }

func (p *stubSMS) Send(_ context.Context, _, _ string) error {
	p.record()
	return p.err
}

type testEnv struct {
	service  *Service
	docStore *mocks.MockDocStore
	email    *stubEmail
	sms      *stubSMS
}

func newTestEnv() *testEnv {
	docStore := mocks.NewMockDocStore()
	emailStub := &stubEmail{}
	smsStub := &stubSMS{}
	dispatcher := notification.NewDispatcher(emailStub, smsStub, "+254", 100*time.Millisecond)
	ledger := stock.NewService(docStore, nil)
	service := NewService(docStore, ledger, dispatcher, nil, testProjections)
	return &testEnv{service: service, docStore: docStore, email: emailStub, sms: smsStub}
}

func (env *testEnv) seedProduct(id string, price, stockLevel int) {
	for _, collection := range testProjections {
		env.docStore.SetData(collection, id, &model.Product{
			ID:        id,
			Name:      "Widget " + id,
			UnitPrice: price,
			Stock:     stockLevel,
			Status:    model.ProductActive,
			UpdatedAt: time.Now(),
		})
	}
}

func (env *testEnv) stockOf(t *testing.T, id string) int {
	t.Helper()
	doc, ok := env.docStore.GetData("products_storefront", id)
	require.True(t, ok)
	return doc.(*model.Product).Stock
}

func validCreate(items ...ItemRequest) CreateOrder {
	return CreateOrder{
		CustomerID:    "cust-1",
		CustomerEmail: "jane@example.com",
		CustomerName:  "Jane Doe",
		CustomerPhone: "0712345678",
		Items:         items,
	}
}

// ============================================
// Create Tests
// ============================================

func TestService_Create_Success(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedProduct("prod-1", 1000, 10)
	env.seedProduct("prod-2", 2500, 4)

	o, err := env.service.Create(ctx, validCreate(
		ItemRequest{ProductID: "prod-1", Quantity: 2},
		ItemRequest{ProductID: "prod-2", Quantity: 1},
	))

	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 4500, o.Total) // 2*1000 + 1*2500
	assert.Equal(t, model.StatusPlaced, o.Status)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, model.StatusPlaced, o.StatusHistory[0].Status)
	assert.Equal(t, "cust-1", o.CustomerID)

	// Stock reserved across all projections
	assert.Equal(t, 8, env.stockOf(t, "prod-1"))
	assert.Equal(t, 3, env.stockOf(t, "prod-2"))
}

func TestService_Create_OrderNumberFormat(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedProduct("prod-1", 1000, 10)

	o, err := env.service.Create(ctx, validCreate(ItemRequest{ProductID: "prod-1", Quantity: 1}))

	require.NoError(t, err)
	parts := strings.Split(o.OrderNumber, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "ORD", parts[0])
	assert.Equal(t, time.Now().Format("20060102"), parts[1])
	assert.Len(t, parts[2], 8)
	assert.Equal(t, strings.ToUpper(parts[2]), parts[2])
}

func TestService_Create_UsesAuthoritativePrices(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedProduct("prod-1", 9999, 10)

	// Client supplies only id and quantity; the catalog price wins.
	o, err := env.service.Create(ctx, validCreate(ItemRequest{ProductID: "prod-1", Quantity: 1}))

	require.NoError(t, err)
	assert.Equal(t, 9999, o.Total)
	assert.Equal(t, "Widget prod-1", o.Items[0].Name)
}

func TestService_Create_EmptyItems(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	o, err := env.service.Create(ctx, validCreate())

	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.Nil(t, o)
}

func TestService_Create_MissingCustomer(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedProduct("prod-1", 1000, 10)

	cmd := validCreate(ItemRequest{ProductID: "prod-1", Quantity: 1})
	cmd.CustomerEmail = ""

	_, err := env.service.Create(ctx, cmd)

	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestService_Create_NonPositiveQuantity(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedProduct("prod-1", 1000, 10)

	_, err := env.service.Create(ctx, validCreate(ItemRequest{ProductID: "prod-1", Quantity: 0}))

	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestService_Create_UnknownProduct(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.service.Create(ctx, validCreate(ItemRequest{ProductID: "ghost", Quantity: 1}))

	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestService_Create_InsufficientStock(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedProduct("prod-1", 1000, 2)

	_, err := env.service.Create(ctx, validCreate(ItemRequest{ProductID: "prod-1", Quantity: 3}))

	assert.ErrorIs(t, err, stock.ErrInsufficientStock)
	assert.Equal(t, 2, env.stockOf(t, "prod-1"))
}

func TestService_Create_RollsBackEarlierDecrements(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedProduct("prod-1", 1000, 5)
	env.seedProduct("prod-2", 1000, 1)

	// The first line item reserves, the second fails; the reservation on
	// prod-1 must be undone.
	_, err := env.service.Create(ctx, validCreate(
		ItemRequest{ProductID: "prod-1", Quantity: 2},
		ItemRequest{ProductID: "prod-2", Quantity: 3},
	))

	assert.ErrorIs(t, err, stock.ErrInsufficientStock)
	assert.Equal(t, 5, env.stockOf(t, "prod-1"))
	assert.Equal(t, 1, env.stockOf(t, "prod-2"))
}

func TestService_Create_PersistFailureRollsBackStock(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedProduct("prod-1", 1000, 5)
	env.docStore.SetErr = store.ErrStorage

	_, err := env.service.Create(ctx, validCreate(ItemRequest{ProductID: "prod-1", Quantity: 2}))

	assert.ErrorIs(t, err, store.ErrStorage)
	assert.Equal(t, 5, env.stockOf(t, "prod-1"))
}

// ============================================
// Transition Tests
// ============================================

func placeOrder(t *testing.T, env *testEnv) *model.Order {
	t.Helper()
	env.seedProduct("prod-1", 1000, 10)
	o, err := env.service.Create(context.Background(), validCreate(ItemRequest{ProductID: "prod-1", Quantity: 1}))
	require.NoError(t, err)
	return o
}

func TestService_Transition_Success(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	o := placeOrder(t, env)

	updated, results, err := env.service.Transition(ctx, o.ID, model.StatusShipped, "TRK-001", "left warehouse", []notification.Channel{notification.ChannelEmail})

	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, updated.Status)
	assert.Equal(t, "TRK-001", updated.TrackingNumber)
	require.Len(t, updated.StatusHistory, 2)
	assert.Equal(t, model.StatusShipped, updated.StatusHistory[1].Status)
	assert.Equal(t, "left warehouse", updated.StatusHistory[1].Notes)

	require.Len(t, results, 1)
	assert.Equal(t, notification.ChannelEmail, results[0].Channel)
	assert.Equal(t, notification.OutcomeSent, results[0].Outcome)
	assert.Equal(t, 1, env.email.count())
}

func TestService_Transition_SkipsIntermediateStates(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	o := placeOrder(t, env)

	updated, _, err := env.service.Transition(ctx, o.ID, model.StatusDelivered, "", "", nil)

	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, updated.Status)
}

func TestService_Transition_BackwardRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	o := placeOrder(t, env)

	_, _, err := env.service.Transition(ctx, o.ID, model.StatusShipped, "", "", nil)
	require.NoError(t, err)

	_, _, err = env.service.Transition(ctx, o.ID, model.StatusConsolidated, "", "", nil)
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
}

func TestService_Transition_SameStatusRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	o := placeOrder(t, env)

	_, _, err := env.service.Transition(ctx, o.ID, model.StatusPlaced, "", "", nil)

	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
}

func TestService_Transition_UnknownStatusRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	o := placeOrder(t, env)

	_, _, err := env.service.Transition(ctx, o.ID, model.OrderStatus(9), "", "", nil)

	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
}

func TestService_Transition_OrderNotFound(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, _, err := env.service.Transition(ctx, "missing", model.StatusShipped, "", "", nil)

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestService_Transition_KeepsExistingTrackingNumber(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	o := placeOrder(t, env)

	_, _, err := env.service.Transition(ctx, o.ID, model.StatusShipped, "TRK-001", "", nil)
	require.NoError(t, err)

	updated, _, err := env.service.Transition(ctx, o.ID, model.StatusDelivered, "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "TRK-001", updated.TrackingNumber)
}

func TestService_Transition_DegradedNotificationDoesNotFail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	o := placeOrder(t, env)
	env.email.err = errors.New("smtp connection refused")

	updated, results, err := env.service.Transition(ctx, o.ID, model.StatusShipped, "", "", []notification.Channel{notification.ChannelEmail})

	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, updated.Status)
	require.Len(t, results, 1)
	assert.Equal(t, notification.OutcomeAcceptedDegraded, results[0].Outcome)
}

func TestService_Transition_SMSWithoutPhone(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedProduct("prod-1", 1000, 10)
	cmd := validCreate(ItemRequest{ProductID: "prod-1", Quantity: 1})
	cmd.CustomerPhone = ""
	o, err := env.service.Create(ctx, cmd)
	require.NoError(t, err)

	_, results, err := env.service.Transition(ctx, o.ID, model.StatusShipped, "", "", []notification.Channel{notification.ChannelSMS})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, notification.OutcomeFailed, results[0].Outcome)
	assert.Equal(t, "no phone number on order", results[0].Reason)
	assert.Equal(t, 0, env.sms.count())
}

func TestService_Transition_BothChannels(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	o := placeOrder(t, env)

	_, results, err := env.service.Transition(ctx, o.ID, model.StatusShipped, "TRK-001", "",
		[]notification.Channel{notification.ChannelEmail, notification.ChannelSMS})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, notification.OutcomeSent, results[0].Outcome)
	assert.Equal(t, notification.OutcomeSent, results[1].Outcome)
	assert.Equal(t, 1, env.email.count())
	assert.Equal(t, 1, env.sms.count())
}

// ============================================
// Correct Tests
// ============================================

func TestService_Correct_Backward(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	o := placeOrder(t, env)
	_, _, err := env.service.Transition(ctx, o.ID, model.StatusShipped, "", "", nil)
	require.NoError(t, err)

	updated, err := env.service.Correct(ctx, o.ID, model.StatusConsolidated, "scanned in error")

	require.NoError(t, err)
	assert.Equal(t, model.StatusConsolidated, updated.Status)
	last := updated.StatusHistory[len(updated.StatusHistory)-1]
	assert.Equal(t, "correction: scanned in error", last.Notes)
	// Corrections are silent
	assert.Equal(t, 0, env.email.count())
	assert.Equal(t, 0, env.sms.count())
}

func TestService_Correct_SameStatusRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	o := placeOrder(t, env)

	_, err := env.service.Correct(ctx, o.ID, model.StatusPlaced, "noop")

	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
}

func TestService_Correct_InvalidStatusRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	o := placeOrder(t, env)

	_, err := env.service.Correct(ctx, o.ID, model.OrderStatus(0), "bad")

	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
}

// ============================================
// Query Tests
// ============================================

func TestService_Get_NotFound(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.service.Get(ctx, "missing")

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestService_Get_ReturnsCopy(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	o := placeOrder(t, env)

	got, err := env.service.Get(ctx, o.ID)
	require.NoError(t, err)

	got.Status = model.StatusDelivered
	again, err := env.service.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPlaced, again.Status)
}

func TestService_ListByCustomer(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedProduct("prod-1", 1000, 10)

	_, err := env.service.Create(ctx, validCreate(ItemRequest{ProductID: "prod-1", Quantity: 1}))
	require.NoError(t, err)

	other := validCreate(ItemRequest{ProductID: "prod-1", Quantity: 1})
	other.CustomerID = "cust-2"
	_, err = env.service.Create(ctx, other)
	require.NoError(t, err)

	orders, err := env.service.ListByCustomer(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "cust-1", orders[0].CustomerID)
}

func TestService_ListAll(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedProduct("prod-1", 1000, 10)

	for i := 0; i < 3; i++ {
		_, err := env.service.Create(ctx, validCreate(ItemRequest{ProductID: "prod-1", Quantity: 1}))
		require.NoError(t, err)
	}

	orders, err := env.service.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}

// ============================================
// Transition Rule Tests
// ============================================

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, canTransitionTo(model.StatusPlaced, model.StatusConsolidated))
	assert.True(t, canTransitionTo(model.StatusPlaced, model.StatusDelivered))
	assert.True(t, canTransitionTo(model.StatusConsolidated, model.StatusShipped))
	assert.False(t, canTransitionTo(model.StatusShipped, model.StatusConsolidated))
	assert.False(t, canTransitionTo(model.StatusPlaced, model.StatusPlaced))
	assert.False(t, canTransitionTo(model.StatusPlaced, model.OrderStatus(9)))
	assert.False(t, canTransitionTo(model.StatusDelivered, model.OrderStatus(0)))
}
