package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"shopfront_back_end/internal/models"
)

const productColumns = "product_id, name, description, price, category, sub_category, sizes, image, bestseller, created_at"

type ProductStore struct {
	session *gocql.Session
}

func NewProductStore(session *gocql.Session) *ProductStore {
	return &ProductStore{session: session}
}

func (s *ProductStore) Create(ctx context.Context, p *models.Product) error {
	pid := gocql.UUID(uuid.New())
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := s.session.Query(`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pid, p.Name, p.Description, p.Price, p.Category, p.SubCategory, p.Sizes, p.Image, p.Bestseller, p.CreatedAt).
		WithContext(ctx).
		Exec()
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	p.ID = pid.String()
	return nil
}

func (s *ProductStore) FindByID(ctx context.Context, id string) (*models.Product, error) {
	pid, err := parseID("product", id)
	if err != nil {
		return nil, err
	}
	var p models.Product
	var productID gocql.UUID
	err = s.session.Query(`SELECT `+productColumns+` FROM products WHERE product_id = ?`, pid).
		WithContext(ctx).
		Scan(&productID, &p.Name, &p.Description, &p.Price, &p.Category, &p.SubCategory,
			&p.Sizes, &p.Image, &p.Bestseller, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	p.ID = productID.String()
	return &p, nil
}

// List returns every product, oldest first.
func (s *ProductStore) List(ctx context.Context) ([]models.Product, error) {
	iter := s.session.Query(`SELECT ` + productColumns + ` FROM products`).WithContext(ctx).Iter()

	products := make([]models.Product, 0)
	var (
		p         models.Product
		productID gocql.UUID
	)
	for iter.Scan(&productID, &p.Name, &p.Description, &p.Price, &p.Category, &p.SubCategory,
		&p.Sizes, &p.Image, &p.Bestseller, &p.CreatedAt) {
		p.ID = productID.String()
		products = append(products, p)
		p = models.Product{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].CreatedAt.Before(products[j].CreatedAt)
	})
	return products, nil
}

func (s *ProductStore) Delete(ctx context.Context, id string) error {
	pid, err := parseID("product", id)
	if err != nil {
		return err
	}
	if err := s.session.Query(`DELETE FROM products WHERE product_id = ?`, pid).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}
