package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"shopfront_back_end/internal/apperr"
	"shopfront_back_end/internal/models"
	"shopfront_back_end/internal/validation"
)

type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Category    string
	SubCategory string
	Sizes       []string
	Bestseller  bool
}

type ProductService struct {
	products ProductStore
	images   ImageStore
	index    ProductIndex
	log      *slog.Logger
}

// NewProductService wires the catalog. index may be nil; search then scans the store.
func NewProductService(products ProductStore, images ImageStore, index ProductIndex, log *slog.Logger) *ProductService {
	return &ProductService{products: products, images: images, index: index, log: log}
}

// Add uploads up to four images, stores the product and indexes it for search.
func (s *ProductService) Add(ctx context.Context, in ProductInput, images []ImageUpload) (*models.Product, error) {
	if res := validation.Product(in.Name, in.Description, in.Price, in.Category, in.SubCategory, in.Sizes); !res.IsValid {
		return nil, apperr.Validation(res.Errors...)
	}
	if len(images) > models.MaxProductImages {
		images = images[:models.MaxProductImages]
	}

	urls := make([]string, 0, len(images))
	for _, img := range images {
		url, err := s.images.Upload(ctx, img)
		if err != nil {
			s.discardImages(urls)
			return nil, apperr.Upstream("Image upload failed", err)
		}
		urls = append(urls, url)
	}

	product := &models.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		SubCategory: in.SubCategory,
		Sizes:       in.Sizes,
		Image:       urls,
		Bestseller:  in.Bestseller,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.products.Create(ctx, product); err != nil {
		s.discardImages(urls)
		return nil, fmt.Errorf("create product: %w", err)
	}

	if s.index != nil {
		if err := s.index.Index(ctx, *product); err != nil {
			s.log.Warn("product not indexed", "product_id", product.ID, "error", err)
		}
	}
	return product, nil
}

func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("Product ID is required")
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, fmt.Errorf("load product: %w", err)
	}
	return product, nil
}

// Delete removes the product and returns it. Search index removal is best effort.
func (s *ProductService) Delete(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.products.Delete(ctx, product.ID); err != nil {
		return nil, fmt.Errorf("delete product: %w", err)
	}
	if s.index != nil {
		if err := s.index.Delete(ctx, product.ID); err != nil {
			s.log.Warn("product not removed from index", "product_id", product.ID, "error", err)
		}
	}
	return product, nil
}

// Search queries the index. Without an index, or when it fails, it falls back
// to a case-insensitive scan of the catalog.
func (s *ProductService) Search(ctx context.Context, query string) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx)
	}
	if s.index != nil {
		products, err := s.index.Search(ctx, query)
		if err == nil {
			return products, nil
		}
		s.log.Warn("search index unavailable, scanning catalog", "error", err)
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	matches := make([]models.Product, 0)
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q) ||
			strings.Contains(strings.ToLower(p.Category), q) ||
			strings.Contains(strings.ToLower(p.SubCategory), q) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

func (s *ProductService) discardImages(urls []string) {
	if len(urls) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, url := range urls {
		if err := s.images.Delete(ctx, url); err != nil {
			s.log.Warn("orphan product image left in storage", "url", url, "error", err)
		}
	}
}

// ParseSizes accepts a JSON array (`["S","M"]`) or a comma separated list.
func ParseSizes(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var sizes []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &sizes); err == nil {
			return compact(sizes)
		}
	}
	return compact(strings.Split(raw, ","))
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ParsePrice returns NaN for anything that is not a number, which validation rejects.
func ParsePrice(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func ParseBool(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "true")
}
