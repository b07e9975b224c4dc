package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"shopfront_back_end/internal/apperr"
	"shopfront_back_end/internal/cache"
	"shopfront_back_end/internal/events"
	"shopfront_back_end/internal/metrics"
	"shopfront_back_end/internal/models"
	"shopfront_back_end/internal/payment"
	"shopfront_back_end/internal/utils"
	"shopfront_back_end/internal/validation"
)

const (
	DeliveryLineItemName = "Delivery Charges"
	mailTimeout          = 30 * time.Second
)

type OrderConfig struct {
	Currency       string
	DeliveryCharge float64
	PaymentMethod  string
}

// OrderDeps groups the collaborators of OrderService. Locker, Notifier,
// Events, Mailer and Metrics are optional.
type OrderDeps struct {
	Orders   OrderStore
	Users    UserStore
	Gateway  PaymentGateway
	Locker   CartLocker
	Notifier CartNotifier
	Events   OrderEventPublisher
	Mailer   MailSender
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

type OrderService struct {
	OrderDeps
	cfg OrderConfig
	// mails tracks in-flight notification mails
	mails sync.WaitGroup
}

func NewOrderService(cfg OrderConfig, deps OrderDeps) *OrderService {
	if cfg.PaymentMethod == "" {
		cfg.PaymentMethod = models.PaymentMethodStripe
	}
	return &OrderService{OrderDeps: deps, cfg: cfg}
}

type PlaceOrderInput struct {
	UserID  string
	Items   []models.OrderItem
	Amount  float64
	Address models.Address
	// Origin is the storefront base URL the checkout redirects back to.
	Origin string
}

type PlaceOrderResult struct {
	OrderID    string
	SessionURL string
}

// PlaceOrder persists a pending order and opens a Stripe checkout session for it.
// When the session cannot be created the order stays pending and the error names it.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	if res := validation.Order(in.UserID, in.Items, in.Amount, in.Address); !res.IsValid {
		return nil, apperr.Validation(res.Errors...)
	}

	order := &models.Order{
		UserID:        in.UserID,
		Items:         in.Items,
		Address:       in.Address,
		Amount:        in.Amount,
		PaymentMethod: s.cfg.PaymentMethod,
		Payment:       false,
		Status:        models.StatusOrderPlaced,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.Orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.Metrics.OrderEvent("placed")
	s.publish(ctx, events.OrderPlaced, *order)

	origin := strings.TrimRight(in.Origin, "/")
	session, err := s.Gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		Currency:   s.cfg.Currency,
		LineItems:  s.LineItems(order.Items),
		SuccessURL: VerifyURL(origin, true, order.ID),
		CancelURL:  VerifyURL(origin, false, order.ID),
		Reference:  order.ID,
	})
	if err != nil {
		s.Log.Warn("checkout session failed, order left pending", "order_id", order.ID, "user_id", order.UserID, "error", err)
		return nil, apperr.Upstream(fmt.Sprintf("Payment session could not be created for order %s", order.ID), err)
	}

	return &PlaceOrderResult{OrderID: order.ID, SessionURL: session.URL}, nil
}

// LineItems converts the order items to checkout lines and appends the delivery line.
func (s *OrderService) LineItems(items []models.OrderItem) []payment.LineItem {
	lines := make([]payment.LineItem, 0, len(items)+1)
	for _, item := range items {
		lines = append(lines, payment.LineItem{
			Name:       item.Name,
			UnitAmount: payment.MinorUnits(item.Price),
			Quantity:   int64(item.Quantity),
		})
	}
	return append(lines, payment.LineItem{
		Name:       DeliveryLineItemName,
		UnitAmount: payment.MinorUnits(s.cfg.DeliveryCharge),
		Quantity:   1,
	})
}

func VerifyURL(origin string, success bool, orderID string) string {
	return fmt.Sprintf("%s/verify?success=%t&orderId=%s", origin, success, url.QueryEscape(orderID))
}

// VerifyPayment settles an order from the client-reported checkout outcome.
// Success marks the order paid and empties the cart. Failure deletes the
// order unless it was already paid.
func (s *OrderService) VerifyPayment(ctx context.Context, orderID string, success bool, userID string) (bool, error) {
	if strings.TrimSpace(orderID) == "" {
		return false, apperr.Validation("Order ID is required")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.UserID != userID {
		return false, apperr.Forbidden("Order does not belong to this user")
	}

	if !success {
		if order.Payment {
			return false, nil
		}
		if err := s.Orders.Delete(ctx, order.ID, order.UserID); err != nil {
			return false, fmt.Errorf("delete cancelled order: %w", err)
		}
		s.Metrics.OrderEvent("cancelled")
		s.publish(ctx, events.OrderCancelled, *order)
		return false, nil
	}

	if order.Payment {
		return true, nil
	}
	// cart first: an order is only flagged paid once the cart is empty
	if err := s.clearCart(ctx, userID); err != nil {
		return false, err
	}
	notifyCart(ctx, s.Notifier, s.Log, userID, cache.CartCleared)

	if err := s.Orders.SetPayment(ctx, order.ID, true); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, apperr.NotFound("Order not found")
		}
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	order.Payment = true

	s.Metrics.OrderEvent("paid")
	s.publish(ctx, events.OrderPaid, *order)
	s.mail(*order, utils.OrderPaidEmail)
	return true, nil
}

func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	orders, err := s.Orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("User ID is required")
	}
	orders, err := s.Orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders of user: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves an order to any known status; transitions are not restricted.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, status string) (*models.Order, error) {
	if res := validation.OrderStatus(orderID, status); !res.IsValid {
		return nil, apperr.Validation(res.Errors...)
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	next := models.OrderStatus(status)
	if err := s.Orders.UpdateStatus(ctx, order.ID, next); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = next

	s.publish(ctx, events.OrderStatusChanged, *order)
	s.mail(*order, utils.OrderStatusEmail)
	return order, nil
}

// DashboardStats aggregates the Stripe balance with the stored orders.
func (s *OrderService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	balance, err := s.Gateway.AvailableBalance(ctx)
	if err != nil {
		return nil, apperr.Upstream("Failed to fetch Stripe balance", err)
	}
	orders, err := s.Orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	stats := &models.DashboardStats{AvailableBalance: balance}
	for _, o := range orders {
		if o.Payment {
			stats.TotalSales += o.Amount
			stats.TotalOrders++
		}
		if o.Status != models.StatusDelivered {
			stats.PendingOrders++
		}
	}
	return stats, nil
}

func (s *OrderService) clearCart(ctx context.Context, userID string) error {
	if s.Locker != nil {
		unlock, err := s.Locker.Lock(ctx, userID)
		if err != nil {
			if errors.Is(err, cache.ErrLockTimeout) {
				return apperr.Conflict("Cart is being updated, please retry")
			}
			return apperr.Upstream("Cart could not be cleared, payment not recorded", err)
		}
		defer unlock()
	}
	if err := s.Users.UpdateCart(ctx, userID, models.NewCartData()); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Wait blocks until pending notification mails are sent.
func (s *OrderService) Wait() {
	s.mails.Wait()
}

func (s *OrderService) loadOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.Orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	return order, nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, o models.Order) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishOrder(ctx, events.NewOrderEvent(eventType, o)); err != nil {
		s.Log.Warn("order event not published", "event", eventType, "order_id", o.ID, "error", err)
	}
}

// mail renders and sends a customer mail in the background.
func (s *OrderService) mail(o models.Order, render func(models.Order, string) (string, string)) {
	if s.Mailer == nil {
		return
	}
	s.mails.Add(1)
	go func() {
		defer s.mails.Done()
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()

		user, err := s.Users.FindByID(ctx, o.UserID)
		if err != nil {
			s.Log.Warn("order mail skipped, customer not loaded", "order_id", o.ID, "error", err)
			return
		}
		subject, body := render(o, user.Name)
		if err := s.Mailer.Send(ctx, user.Email, subject, body); err != nil {
			s.Log.Warn("order mail failed", "order_id", o.ID, "to", user.Email, "error", err)
		}
	}()
}
