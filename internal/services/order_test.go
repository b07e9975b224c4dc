package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront_back_end/internal/apperr"
	"shopfront_back_end/internal/events"
	"shopfront_back_end/internal/metrics"
	"shopfront_back_end/internal/models"
)

type orderFixture struct {
	svc      *OrderService
	orders   *memOrders
	users    *memUsers
	gateway  *fakeGateway
	notifier *recordingNotifier
	events   *recordingEvents
	mailer   *recordingMailer
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	f := &orderFixture{
		orders:   newMemOrders(),
		users:    newMemUsers(),
		gateway:  &fakeGateway{},
		notifier: &recordingNotifier{},
		events:   &recordingEvents{},
		mailer:   &recordingMailer{},
	}
	f.users.add(models.User{
		ID:       "u1",
		Name:     "Alice",
		Email:    "alice@example.com",
		CartData: models.CartData{"p1": {"M": 2}},
	})
	f.svc = NewOrderService(OrderConfig{Currency: "thb", DeliveryCharge: 10}, OrderDeps{
		Orders:   f.orders,
		Users:    f.users,
		Gateway:  f.gateway,
		Locker:   &stubLocker{},
		Notifier: f.notifier,
		Events:   f.events,
		Mailer:   f.mailer,
		Metrics:  metrics.New(),
		Log:      discardLogger(),
	})
	return f
}

func sampleOrderInput() PlaceOrderInput {
	return PlaceOrderInput{
		UserID: "u1",
		Items: []models.OrderItem{
			{ProductID: "p1", Name: "Shirt", Price: 100, Quantity: 2, Size: "M"},
			{ProductID: "p2", Name: "Cap", Price: 40, Quantity: 1, Size: "L"},
		},
		Amount:  250,
		Address: models.Address{"city": "Bangkok"},
		Origin:  "http://localhost:5173/",
	}
}

func (f *orderFixture) place(t *testing.T) string {
	t.Helper()
	res, err := f.svc.PlaceOrder(context.Background(), sampleOrderInput())
	require.NoError(t, err)
	return res.OrderID
}

func TestPlaceOrderCreatesPendingOrderAndSession(t *testing.T) {
	f := newOrderFixture(t)

	res, err := f.svc.PlaceOrder(context.Background(), sampleOrderInput())
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", res.SessionURL)

	order, ok := f.orders.get(res.OrderID)
	require.True(t, ok)
	assert.False(t, order.Payment)
	assert.Equal(t, models.StatusOrderPlaced, order.Status)
	assert.Equal(t, models.PaymentMethodStripe, order.PaymentMethod)
	assert.Equal(t, 250.0, order.Amount)

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, "thb", req.Currency)
	assert.Equal(t, res.OrderID, req.Reference)
	assert.Equal(t, "http://localhost:5173/verify?success=true&orderId="+res.OrderID, req.SuccessURL)
	assert.Equal(t, "http://localhost:5173/verify?success=false&orderId="+res.OrderID, req.CancelURL)

	require.Len(t, req.LineItems, 3)
	assert.Equal(t, int64(10000), req.LineItems[0].UnitAmount)
	assert.Equal(t, int64(2), req.LineItems[0].Quantity)
	delivery := req.LineItems[2]
	assert.Equal(t, DeliveryLineItemName, delivery.Name)
	assert.Equal(t, int64(1000), delivery.UnitAmount)
	assert.Equal(t, int64(1), delivery.Quantity)

	assert.Equal(t, []string{events.OrderPlaced}, f.events.types)
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newOrderFixture(t)
	in := sampleOrderInput()
	in.Items = nil
	in.Amount = 0
	in.Address = nil

	_, err := f.svc.PlaceOrder(context.Background(), in)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, []string{
		"Order items are required",
		"Amount must be greater than 0",
		"Delivery address is required",
	}, apperr.From(err).Details)
	assert.Empty(t, f.gateway.requests)
}

func TestPlaceOrderCheckoutFailureLeavesOrderPending(t *testing.T) {
	f := newOrderFixture(t)
	f.gateway.sessionErr = errors.New("stripe: invalid api key")

	_, err := f.svc.PlaceOrder(context.Background(), sampleOrderInput())
	require.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Equal(t, "Payment session could not be created for order order-1", apperr.From(err).Message)

	order, ok := f.orders.get("order-1")
	require.True(t, ok)
	assert.False(t, order.Payment)
}

func TestVerifyPaymentSuccessMarksPaidAndClearsCart(t *testing.T) {
	f := newOrderFixture(t)
	id := f.place(t)

	paid, err := f.svc.VerifyPayment(context.Background(), id, true, "u1")
	require.NoError(t, err)
	assert.True(t, paid)
	f.svc.Wait()

	order, _ := f.orders.get(id)
	assert.True(t, order.Payment)
	user, _ := f.users.FindByID(context.Background(), "u1")
	assert.Empty(t, user.CartData)
	assert.Equal(t, []string{"u1:cleared"}, f.notifier.events)
	assert.Equal(t, []string{events.OrderPlaced, events.OrderPaid}, f.events.types)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "alice@example.com", f.mailer.sent[0].to)
}

func TestVerifyPaymentSuccessIsIdempotent(t *testing.T) {
	f := newOrderFixture(t)
	id := f.place(t)
	ctx := context.Background()

	_, err := f.svc.VerifyPayment(ctx, id, true, "u1")
	require.NoError(t, err)
	require.NoError(t, f.users.UpdateCart(ctx, "u1", models.CartData{"p5": {"S": 1}}))

	paid, err := f.svc.VerifyPayment(ctx, id, true, "u1")
	require.NoError(t, err)
	assert.True(t, paid)
	f.svc.Wait()

	// the cart filled after the first verification survives
	user, _ := f.users.FindByID(ctx, "u1")
	assert.Equal(t, 1, user.CartData.Quantity("p5", "S"))
	assert.Len(t, f.mailer.sent, 1)
}

func TestVerifyPaymentRetryAfterCartClearFailure(t *testing.T) {
	f := newOrderFixture(t)
	id := f.place(t)
	ctx := context.Background()
	locker := &stubLocker{err: errors.New("redis down")}
	f.svc.Locker = locker

	_, err := f.svc.VerifyPayment(ctx, id, true, "u1")
	require.ErrorIs(t, err, apperr.ErrUpstream)
	order, _ := f.orders.get(id)
	assert.False(t, order.Payment)

	locker.err = nil
	paid, err := f.svc.VerifyPayment(ctx, id, true, "u1")
	require.NoError(t, err)
	assert.True(t, paid)
	f.svc.Wait()

	order, _ = f.orders.get(id)
	assert.True(t, order.Payment)
	user, _ := f.users.FindByID(ctx, "u1")
	assert.Empty(t, user.CartData)
	assert.Equal(t, []string{events.OrderPlaced, events.OrderPaid}, f.events.types)
	assert.Len(t, f.mailer.sent, 1)
}

// vanishingOrders deletes the order right before it is flagged paid.
type vanishingOrders struct {
	*memOrders
}

func (v vanishingOrders) SetPayment(ctx context.Context, id string, paid bool) error {
	o, _ := v.get(id)
	_ = v.Delete(ctx, id, o.UserID)
	return v.memOrders.SetPayment(ctx, id, paid)
}

func TestVerifyPaymentOrderCancelledConcurrently(t *testing.T) {
	f := newOrderFixture(t)
	id := f.place(t)
	f.svc.Orders = vanishingOrders{f.orders}

	_, err := f.svc.VerifyPayment(context.Background(), id, true, "u1")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Order not found", apperr.From(err).Message)

	orders, err := f.svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.NotContains(t, f.events.types, events.OrderPaid)
}

func TestVerifyPaymentFailureDeletesOrder(t *testing.T) {
	f := newOrderFixture(t)
	id := f.place(t)

	paid, err := f.svc.VerifyPayment(context.Background(), id, false, "u1")
	require.NoError(t, err)
	assert.False(t, paid)

	_, ok := f.orders.get(id)
	assert.False(t, ok)
	user, _ := f.users.FindByID(context.Background(), "u1")
	assert.Equal(t, 2, user.CartData.Quantity("p1", "M"))
	assert.Contains(t, f.events.types, events.OrderCancelled)
}

func TestVerifyPaymentFailureKeepsPaidOrder(t *testing.T) {
	f := newOrderFixture(t)
	id := f.place(t)
	ctx := context.Background()
	require.NoError(t, f.orders.SetPayment(ctx, id, true))

	paid, err := f.svc.VerifyPayment(ctx, id, false, "u1")
	require.NoError(t, err)
	assert.False(t, paid)

	_, ok := f.orders.get(id)
	assert.True(t, ok)
}

func TestVerifyPaymentErrors(t *testing.T) {
	f := newOrderFixture(t)
	id := f.place(t)
	ctx := context.Background()

	_, err := f.svc.VerifyPayment(ctx, id, true, "someone-else")
	require.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, "Order does not belong to this user", apperr.From(err).Message)

	_, err = f.svc.VerifyPayment(ctx, "missing", true, "u1")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Order not found", apperr.From(err).Message)

	_, err = f.svc.VerifyPayment(ctx, " ", true, "u1")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	order, _ := f.orders.get(id)
	assert.False(t, order.Payment)
}

func TestListOrders(t *testing.T) {
	f := newOrderFixture(t)
	f.users.add(models.User{ID: "u2"})
	ctx := context.Background()
	f.place(t)
	in := sampleOrderInput()
	in.UserID = "u2"
	_, err := f.svc.PlaceOrder(ctx, in)
	require.NoError(t, err)

	all, err := f.svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.svc.ListByUser(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "u2", mine[0].UserID)

	none, err := f.svc.ListByUser(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateStatus(t *testing.T) {
	f := newOrderFixture(t)
	id := f.place(t)
	ctx := context.Background()

	order, err := f.svc.UpdateStatus(ctx, id, "Shipped")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, order.Status)
	f.svc.Wait()

	stored, _ := f.orders.get(id)
	assert.Equal(t, models.StatusShipped, stored.Status)
	assert.Contains(t, f.events.types, events.OrderStatusChanged)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "Order "+id+": Shipped", f.mailer.sent[0].subject)

	_, err = f.svc.UpdateStatus(ctx, id, "Lost")
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, []string{"Invalid order status"}, apperr.From(err).Details)

	_, err = f.svc.UpdateStatus(ctx, "missing", "Packing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDashboardStats(t *testing.T) {
	f := newOrderFixture(t)
	f.gateway.balance = 1234.5
	ctx := context.Background()

	stats, err := f.svc.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DashboardStats{AvailableBalance: 1234.5}, *stats)

	paidID := f.place(t)
	f.place(t)
	_, err = f.svc.VerifyPayment(ctx, paidID, true, "u1")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, paidID, string(models.StatusDelivered))
	require.NoError(t, err)
	f.svc.Wait()

	stats, err = f.svc.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250.0, stats.TotalSales)
	assert.Equal(t, 1, stats.TotalOrders)
	assert.Equal(t, 1, stats.PendingOrders)
}

func TestDashboardStatsStripeFailure(t *testing.T) {
	f := newOrderFixture(t)
	f.gateway.balanceErr = errors.New("timeout")

	_, err := f.svc.DashboardStats(context.Background())
	require.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Equal(t, "Failed to fetch Stripe balance", apperr.From(err).Message)
}

func TestOrderServiceWithoutOptionalDeps(t *testing.T) {
	users := newMemUsers()
	users.add(models.User{ID: "u1", CartData: models.CartData{"p1": {"M": 1}}})
	orders := newMemOrders()
	svc := NewOrderService(OrderConfig{Currency: "usd", DeliveryCharge: 5}, OrderDeps{
		Orders:  orders,
		Users:   users,
		Gateway: &fakeGateway{},
		Log:     discardLogger(),
	})
	ctx := context.Background()

	res, err := svc.PlaceOrder(ctx, sampleOrderInput())
	require.NoError(t, err)
	paid, err := svc.VerifyPayment(ctx, res.OrderID, true, "u1")
	require.NoError(t, err)
	assert.True(t, paid)
	svc.Wait()

	user, _ := users.FindByID(ctx, "u1")
	assert.Empty(t, user.CartData)
}
