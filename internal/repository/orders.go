package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"

	"shopfront_back_end/internal/apperr"
	"shopfront_back_end/internal/models"
)

const orderColumns = "order_id, user_id, items, address, amount, payment_method, payment, status, created_at"

type OrderStore struct {
	session *gocql.Session
}

func NewOrderStore(session *gocql.Session) *OrderStore {
	return &OrderStore{session: session}
}

// orderRow is the stored shape: items and address are JSON snapshots.
type orderRow struct {
	OrderID       gocql.UUID
	UserID        gocql.UUID
	Items         string
	Address       string
	Amount        float64
	PaymentMethod string
	Payment       bool
	Status        string
	CreatedAt     time.Time
}

func (r *orderRow) dest() []interface{} {
	return []interface{}{&r.OrderID, &r.UserID, &r.Items, &r.Address, &r.Amount,
		&r.PaymentMethod, &r.Payment, &r.Status, &r.CreatedAt}
}

func encodeOrder(o *models.Order) (items, address string, err error) {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return "", "", fmt.Errorf("encode items: %w", err)
	}
	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return "", "", fmt.Errorf("encode address: %w", err)
	}
	return string(itemsJSON), string(addressJSON), nil
}

func (r *orderRow) toModel() (models.Order, error) {
	o := models.Order{
		ID:            r.OrderID.String(),
		UserID:        r.UserID.String(),
		Amount:        r.Amount,
		PaymentMethod: r.PaymentMethod,
		Payment:       r.Payment,
		Status:        models.OrderStatus(r.Status),
		CreatedAt:     r.CreatedAt,
	}
	if r.Items != "" {
		if err := json.Unmarshal([]byte(r.Items), &o.Items); err != nil {
			return o, fmt.Errorf("decode items of order %s: %w", o.ID, err)
		}
	}
	if r.Address != "" {
		if err := json.Unmarshal([]byte(r.Address), &o.Address); err != nil {
			return o, fmt.Errorf("decode address of order %s: %w", o.ID, err)
		}
	}
	if o.Items == nil {
		o.Items = []models.OrderItem{}
	}
	return o, nil
}

// Create writes the order and its per-user index in one logged batch.
func (s *OrderStore) Create(ctx context.Context, o *models.Order) error {
	uid, err := parseID("user", o.UserID)
	if err != nil {
		return err
	}
	items, address, err := encodeOrder(o)
	if err != nil {
		return err
	}
	oid := gocql.TimeUUID()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		oid, uid, items, address, o.Amount, o.PaymentMethod, o.Payment, string(o.Status), o.CreatedAt)
	batch.Query(`INSERT INTO orders_by_user (user_id, order_id) VALUES (?, ?)`, uid, oid)
	if err := s.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	o.ID = oid.String()
	return nil
}

func (s *OrderStore) FindByID(ctx context.Context, id string) (*models.Order, error) {
	oid, err := parseID("order", id)
	if err != nil {
		return nil, err
	}
	var row orderRow
	err = s.session.Query(`SELECT `+orderColumns+` FROM orders WHERE order_id = ?`, oid).
		WithContext(ctx).
		Scan(row.dest()...)
	if err != nil {
		return nil, notFound(err, "order", id)
	}
	o, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OrderStore) List(ctx context.Context) ([]models.Order, error) {
	return s.scan(s.session.Query(`SELECT ` + orderColumns + ` FROM orders`).WithContext(ctx).Iter())
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	uid, err := parseID("user", userID)
	if err != nil {
		return []models.Order{}, nil
	}

	iter := s.session.Query(`SELECT order_id FROM orders_by_user WHERE user_id = ?`, uid).WithContext(ctx).Iter()
	var (
		ids []gocql.UUID
		oid gocql.UUID
	)
	for iter.Scan(&oid) {
		ids = append(ids, oid)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list order ids of user %s: %w", userID, err)
	}
	if len(ids) == 0 {
		return []models.Order{}, nil
	}

	return s.scan(s.session.Query(`SELECT `+orderColumns+` FROM orders WHERE order_id IN ?`, ids).WithContext(ctx).Iter())
}

// scan drains iter into orders sorted oldest first.
func (s *OrderStore) scan(iter *gocql.Iter) ([]models.Order, error) {
	orders := make([]models.Order, 0)
	var row orderRow
	for iter.Scan(row.dest()...) {
		o, err := row.toModel()
		if err != nil {
			_ = iter.Close()
			return nil, err
		}
		orders = append(orders, o)
		row = orderRow{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

// SetPayment and UpdateStatus are conditional: a cancelled order is never recreated.
func (s *OrderStore) SetPayment(ctx context.Context, id string, paid bool) error {
	oid, err := parseID("order", id)
	if err != nil {
		return err
	}
	applied, err := s.session.Query(`UPDATE orders SET payment = ? WHERE order_id = ? IF EXISTS`, paid, oid).
		WithContext(ctx).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("set payment of order %s: %w", id, err)
	}
	if !applied {
		return fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	oid, err := parseID("order", id)
	if err != nil {
		return err
	}
	applied, err := s.session.Query(`UPDATE orders SET status = ? WHERE order_id = ? IF EXISTS`, string(status), oid).
		WithContext(ctx).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("update status of order %s: %w", id, err)
	}
	if !applied {
		return fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Delete removes the order and its per-user index entry in one logged batch.
func (s *OrderStore) Delete(ctx context.Context, id, userID string) error {
	oid, err := parseID("order", id)
	if err != nil {
		return err
	}
	uid, err := parseID("user", userID)
	if err != nil {
		return err
	}
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM orders WHERE order_id = ?`, oid)
	batch.Query(`DELETE FROM orders_by_user WHERE user_id = ? AND order_id = ?`, uid, oid)
	if err := s.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return nil
}
