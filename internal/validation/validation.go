// Package validation holds the request checks shared by handlers and services.
// Every check runs; messages are collected in declaration order.
package validation

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"shopfront_back_end/internal/models"
)

const (
	minNameLength     = 4
	maxNameLength     = 30
	minPasswordLength = 8
)

var validate = validator.New()

type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

type collector struct {
	errs []string
}

func (c *collector) check(ok bool, msg string) {
	if !ok {
		c.errs = append(c.errs, msg)
	}
}

func (c *collector) result() Result {
	return Result{IsValid: len(c.errs) == 0, Errors: c.errs}
}

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

func positive(v float64) bool {
	return !math.IsNaN(v) && v > 0
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

func Register(name, email, password string) Result {
	var c collector
	n := utf8.RuneCountInString(name)
	c.check(n >= minNameLength && n <= maxNameLength, "Name must be between 4 and 30 characters")
	c.check(validEmail(email), "Email is not valid")
	c.check(utf8.RuneCountInString(password) >= minPasswordLength, "Password must be at least 8 characters")
	return c.result()
}

func Login(email, password string) Result {
	var c collector
	c.check(validEmail(email), "Email is not valid")
	c.check(utf8.RuneCountInString(password) >= minPasswordLength, "Password must be at least 8 characters")
	return c.result()
}

func cartKeys(c *collector, userID, itemID, size string) {
	c.check(present(userID), "User ID is required")
	c.check(present(itemID), "Item ID is required")
	c.check(present(size), "Size is required")
}

func Cart(userID, itemID, size string) Result {
	var c collector
	cartKeys(&c, userID, itemID, size)
	return c.result()
}

func UpdateCart(userID, itemID, size string, quantity int) Result {
	var c collector
	cartKeys(&c, userID, itemID, size)
	c.check(quantity > 0, "Quantity must be a positive number")
	return c.result()
}

func Order(userID string, items []models.OrderItem, amount float64, address models.Address) Result {
	var c collector
	c.check(present(userID), "User ID is required")
	c.check(len(items) > 0, "Order items are required")
	c.check(positive(amount), "Amount must be greater than 0")
	c.check(address != nil, "Delivery address is required")
	return c.result()
}

func Product(name, description string, price float64, category, subCategory string, sizes []string) Result {
	var c collector
	c.check(present(name), "Product name is required")
	c.check(present(description), "Product description is required")
	c.check(positive(price), "Please enter a valid price")
	c.check(present(category), "Category is required")
	c.check(present(subCategory), "SubCategory is required")
	c.check(len(sizes) > 0, "At least one size is required")
	return c.result()
}

func OrderStatus(orderID, status string) Result {
	var c collector
	c.check(present(orderID), "Order ID is required")
	c.check(present(status), "Status is required")
	if present(status) {
		c.check(models.OrderStatus(status).Valid(), "Invalid order status")
	}
	return c.result()
}
