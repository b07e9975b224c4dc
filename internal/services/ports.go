package services

import (
	"context"
	"io"

	"shopfront_back_end/internal/events"
	"shopfront_back_end/internal/models"
	"shopfront_back_end/internal/payment"
)

// Stores report missing rows with an error matching apperr.ErrNotFound.

type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	UpdateCart(ctx context.Context, id string, cart models.CartData) error
}

type ProductStore interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	Delete(ctx context.Context, id string) error
}

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context) ([]models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	SetPayment(ctx context.Context, id string, paid bool) error
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
	Delete(ctx context.Context, id, userID string) error
}

type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error)
	AvailableBalance(ctx context.Context) (float64, error)
}

type TokenIssuer interface {
	GenerateUserToken(userID string) (string, error)
	GenerateAdminToken(userID string) (string, error)
}

// CartLocker serializes the read-modify-write cycle on one user's cart.
type CartLocker interface {
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}

type CartNotifier interface {
	Publish(ctx context.Context, userID, event string) error
}

type OrderEventPublisher interface {
	PublishOrder(ctx context.Context, event events.OrderEvent) error
}

type MailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type ImageStore interface {
	Upload(ctx context.Context, img ImageUpload) (url string, err error)
	Delete(ctx context.Context, url string) error
}

type ProductIndex interface {
	Index(ctx context.Context, p models.Product) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string) ([]models.Product, error)
}
