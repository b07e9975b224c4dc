// Package search indexes products in Elasticsearch and runs full-text queries.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"shopfront_back_end/internal/models"
)

const DefaultIndex = "products"

var searchFields = []string{"name^3", "description", "category", "subCategory"}

// document is the indexed shape. Elasticsearch reserves _id, so the id lives under "id".
type document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	SubCategory string    `json:"subCategory"`
	Sizes       []string  `json:"sizes"`
	Image       []string  `json:"image"`
	Bestseller  bool      `json:"bestseller"`
	CreatedAt   time.Time `json:"date"`
}

func toDocument(p models.Product) document {
	return document(p)
}

func (d document) product() models.Product {
	return models.Product(d)
}

type ProductIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewProductIndex(client *elasticsearch.Client, index string) *ProductIndex {
	if index == "" {
		index = DefaultIndex
	}
	return &ProductIndex{client: client, index: index}
}

func (x *ProductIndex) Index(ctx context.Context, p models.Product) error {
	data, err := json.Marshal(toDocument(p))
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      x.index,
		DocumentID: p.ID,
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return fmt.Errorf("index product %s: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index product %s: %s", p.ID, res.Status())
	}
	return nil
}

// Delete removes the product document. A missing document is not an error.
func (x *ProductIndex) Delete(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{
		Index:      x.index,
		DocumentID: id,
		Refresh:    "true",
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return fmt.Errorf("delete product %s from index: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete product %s from index: %s", id, res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a multi_match over name, description, category and subCategory.
// A missing index yields no results.
func (x *ProductIndex) Search(ctx context.Context, query string) ([]models.Product, error) {
	var buf bytes.Buffer
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    searchFields,
				"fuzziness": "AUTO",
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{x.index},
		Body:  &buf,
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return []models.Product{}, nil
	}
	if res.IsError() {
		return nil, errors.New("search products: " + res.Status())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	products := make([]models.Product, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		products = append(products, hit.Source.product())
	}
	return products, nil
}
