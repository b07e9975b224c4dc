package models

import "time"

// MaxProductImages is the number of image slots (image1..image4) a product accepts.
const MaxProductImages = 4

type Product struct {
	ID          string    `json:"_id"`
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
