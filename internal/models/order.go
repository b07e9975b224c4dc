package models

import "time"

type OrderStatus string

const (
	StatusOrderPlaced    OrderStatus = "Order Placed"
	StatusPacking        OrderStatus = "Packing"
	StatusShipped        OrderStatus = "Shipped"
	StatusOutForDelivery OrderStatus = "Out for delivery"
	StatusDelivered      OrderStatus = "Delivered"
)

// OrderStatuses lists the delivery progress in display order.
var OrderStatuses = []OrderStatus{
	StatusOrderPlaced,
	StatusPacking,
	StatusShipped,
	StatusOutForDelivery,
	StatusDelivered,
}

func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

const PaymentMethodStripe = "Stripe"

// OrderItem is a snapshot of a product taken when the order is placed.
type OrderItem struct {
	ProductID string   `json:"_id"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	Quantity  int      `json:"quantity"`
	Size      string   `json:"size"`
	Image     []string `json:"image,omitempty"`
}

// Address is kept opaque; the client decides its fields.
type Address map[string]any

type Order struct {
	ID            string      `json:"_id"`
	UserID        string      `json:"userId"`
	Items         []OrderItem `json:"items"`
	Address       Address     `json:"address"`
	Amount        float64     `json:"amount"`
	PaymentMethod string      `json:"paymentMethod"`
	Payment       bool        `json:"payment"`
	Status        OrderStatus `json:"status"`
	CreatedAt     time.Time   `json:"date"`
}

type DashboardStats struct {
	TotalSales       float64 `json:"totalSales"`
	AvailableBalance float64 `json:"availableBalance"`
	PendingOrders    int     `json:"pendingOrders"`
	TotalOrders      int     `json:"totalOrders"`
}
